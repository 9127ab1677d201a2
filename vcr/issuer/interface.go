/*
 * Copyright (C) 2025 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package issuer

import (
	"context"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/nuts-foundation/ebsi-issuer/vcr/openid4vci"
)

// OpenIDHandler sequences the OpenID4VCI protocol messages of wallets, from authorization request to deferred
// credential pickup, and offers the administrative operations of the issuer.
type OpenIDHandler interface {
	// IssuerMetadata returns the OpenID4VCI credential issuer metadata.
	IssuerMetadata() openid4vci.CredentialIssuerMetadata
	// ProviderMetadata returns the OpenID provider metadata of the issuer's authorization server.
	ProviderMetadata() openid4vci.ProviderMetadata
	// JWKS returns the public keys the issuer signs with.
	JWKS() jwk.Set

	// Authorize handles a wallet's authorization request and returns the redirect to the ID token (or VP token) request.
	Authorize(ctx context.Context, request openid4vci.AuthorizeRequest) (*openid4vci.Redirect, error)
	// DirectPost handles the wallet's ID token or VP token response and returns the redirect carrying the authorization code.
	DirectPost(ctx context.Context, request openid4vci.DirectPostRequest) (*openid4vci.Redirect, error)
	// Token exchanges an authorization code or pre-authorized code for an access token.
	Token(ctx context.Context, request openid4vci.TokenRequest) (*openid4vci.TokenResponse, error)
	// Credential issues (or defers) the credential the access token grants.
	Credential(ctx context.Context, accessToken string, request openid4vci.CredentialRequest) (*openid4vci.CredentialResponse, error)
	// DeferredCredential returns the credential of an acceptance token. It returns types.ErrCredentialPending if it
	// isn't issued yet, and types.ErrCredentialRejected if issuance was denied.
	DeferredCredential(ctx context.Context, acceptanceToken string) (*openid4vci.CredentialResponse, error)

	// CreateOffer creates a credential offer for a subject.
	CreateOffer(ctx context.Context, request OfferRequest) (*Offer, error)
	// GetOffer returns the offer document of a credential offer.
	GetOffer(ctx context.Context, id string) (*openid4vci.CredentialOffer, error)
	// RegisterPreAuthorisedCode registers a pre-authorized code and PIN for the given credential types.
	RegisterPreAuthorisedCode(ctx context.Context, request PreAuthorisedCodeRequest) (*PreAuthorisedCode, error)
	// Revoke revokes an issued credential.
	Revoke(ctx context.Context, credentialID string) error
	// RejectCredential denies issuance of a pending credential.
	RejectCredential(ctx context.Context, credentialID string) error
	// DeleteConformanceState deletes all issuance state records of a wallet and returns the number of deleted records.
	DeleteConformanceState(ctx context.Context, clientID string) (int64, error)
}

// TemplateRenderer renders the credentialSubject of a credential.
type TemplateRenderer interface {
	// Render returns the credentialSubject for a credential, selecting the template by its types.
	Render(data TemplateData) (map[string]interface{}, error)
}

// OfferRequest holds the parameters of a new credential offer.
type OfferRequest struct {
	SubjectDID      string
	CredentialTypes []string
	// GrantType is either authorization_code (default) or urn:ietf:params:oauth:grant-type:pre-authorized_code.
	GrantType string
	// ExpiresIn overrides the default validity of the offer.
	ExpiresIn time.Duration
}

// Offer is a created credential offer.
type Offer struct {
	ID    string
	Offer openid4vci.CredentialOffer
	// URI is the openid-credential-offer:// URI referring to the offer by reference.
	URI string
	// PIN is set for pre-authorized_code offers, it must be passed to the holder out of band.
	PIN string
}

// PreAuthorisedCodeRequest holds the parameters to register a pre-authorized code.
type PreAuthorisedCodeRequest struct {
	// ClientID binds the code to a wallet DID. If empty, the code is bound to the signer of the credential request proof.
	ClientID        string
	CredentialTypes []string
	// Code is generated if empty.
	Code string
	// PIN is generated if empty.
	PIN string
}

// PreAuthorisedCode is a registered pre-authorized code.
type PreAuthorisedCode struct {
	StateID string
	Code    string
	PIN     string
}
