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

package openid4vci

import (
	"context"
	"net/url"
	"time"

	"github.com/nuts-foundation/ebsi-issuer/crypto"
)

const (
	// TokenTypeBearer is the token_type of access tokens.
	TokenTypeBearer = "Bearer"
	// AccessTokenType is the typ header of access tokens.
	AccessTokenType = "at+jwt"
	// ClientAssertionTypeJWTBearer is the client_assertion_type of a JWT client assertion.
	ClientAssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
)

// TokenRequestParams are the parameters of a wallet's token request.
type TokenRequestParams struct {
	GrantType         string
	ClientID          string
	Code              string
	CodeVerifier      string
	RedirectURI       string
	PreAuthorizedCode string
	UserPIN           string
	// Audience is the token endpoint. When set, a client_assertion signed by the wallet is added.
	Audience  string
	ExpiresIn time.Duration
}

// ComposeTokenRequest returns the form parameters of a token request.
// The signer may be nil if no client_assertion is requested.
func ComposeTokenRequest(ctx context.Context, signer crypto.Signer, params TokenRequestParams) (url.Values, error) {
	result := url.Values{"grant_type": {params.GrantType}}
	switch params.GrantType {
	case AuthorizationCodeGrant:
		if err := requireFields("client_id", params.ClientID, "code", params.Code, "code_verifier", params.CodeVerifier); err != nil {
			return nil, err
		}
		result.Set("client_id", params.ClientID)
		result.Set("code", params.Code)
		result.Set("code_verifier", params.CodeVerifier)
		if params.RedirectURI != "" {
			result.Set("redirect_uri", params.RedirectURI)
		}
	case PreAuthorizedCodeGrant:
		if err := requireFields("pre-authorized_code", params.PreAuthorizedCode); err != nil {
			return nil, err
		}
		result.Set("pre-authorized_code", params.PreAuthorizedCode)
		if params.UserPIN != "" {
			result.Set("user_pin", params.UserPIN)
		}
		if params.ClientID != "" {
			result.Set("client_id", params.ClientID)
		}
	case "":
		return nil, incomplete("grant_type")
	default:
		return nil, Error{Code: UnsupportedGrantType, Description: "unsupported grant_type: " + params.GrantType}
	}
	if params.Audience != "" {
		if err := requireFields("client_id", params.ClientID); err != nil {
			return nil, err
		}
		if params.ExpiresIn <= 0 {
			return nil, incomplete("expires_in")
		}
		assertion, err := signClaims(ctx, signer, map[string]interface{}{
			"iss": params.ClientID,
			"sub": params.ClientID,
			"aud": params.Audience,
		}, nil, params.ExpiresIn)
		if err != nil {
			return nil, err
		}
		result.Set("client_assertion_type", ClientAssertionTypeJWTBearer)
		result.Set("client_assertion", assertion)
	}
	return result, nil
}

// TokenResponseParams are the parameters of the issuer's token response.
type TokenResponseParams struct {
	// Issuer is the authorization server, used as iss of the access token and the ID token.
	Issuer string
	// Subject is the client_id of the wallet.
	Subject string
	// Audience is the credential issuer the access token is presented to.
	Audience             string
	AuthorizationDetails []AuthorizationDetail
	CNonce               string
	CNonceExpiresIn      time.Duration
	ExpiresIn            time.Duration
	// Nonce is the nonce of the wallet's authorization request, echoed in the ID token. Optional.
	Nonce string
}

// ComposeTokenResponse mints the access token, which embeds the authorization details and c_nonce, and an ID token.
func ComposeTokenResponse(ctx context.Context, signer crypto.Signer, params TokenResponseParams) (*TokenResponse, error) {
	if err := requireFields("iss", params.Issuer, "sub", params.Subject, "aud", params.Audience, "c_nonce", params.CNonce); err != nil {
		return nil, err
	}
	if len(params.AuthorizationDetails) == 0 {
		return nil, incomplete("authorization_details")
	}
	if params.ExpiresIn <= 0 {
		return nil, incomplete("expires_in")
	}
	if params.CNonceExpiresIn <= 0 {
		return nil, incomplete("c_nonce_expires_in")
	}
	details, err := toClaim(params.AuthorizationDetails)
	if err != nil {
		return nil, err
	}
	cNonceExpiresIn := int(params.CNonceExpiresIn.Seconds())
	accessToken, err := signClaims(ctx, signer, map[string]interface{}{
		"iss":                   params.Issuer,
		"sub":                   params.Subject,
		"aud":                   params.Audience,
		"client_id":             params.Subject,
		"nonce":                 params.CNonce,
		"c_nonce":               params.CNonce,
		"c_nonce_expires_in":    cNonceExpiresIn,
		"authorization_details": details,
	}, map[string]interface{}{"typ": AccessTokenType}, params.ExpiresIn)
	if err != nil {
		return nil, err
	}
	idTokenClaims := map[string]interface{}{
		"iss": params.Issuer,
		"sub": params.Subject,
		"aud": params.Subject,
	}
	if params.Nonce != "" {
		idTokenClaims["nonce"] = params.Nonce
	}
	idToken, err := signClaims(ctx, signer, idTokenClaims, nil, params.ExpiresIn)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:     accessToken,
		TokenType:       TokenTypeBearer,
		ExpiresIn:       int(params.ExpiresIn.Seconds()),
		IDToken:         idToken,
		CNonce:          params.CNonce,
		CNonceExpiresIn: cNonceExpiresIn,
	}, nil
}
