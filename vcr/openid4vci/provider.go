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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/crypto"
	"github.com/nuts-foundation/ebsi-issuer/vcr/types"
)

// ProviderConfig holds the settings of the protocol engine.
type ProviderConfig struct {
	// IssuerURL is the credential issuer identifier, which is also its authorization server.
	IssuerURL string
	// CredentialTypes are the supported credential type sets.
	CredentialTypes [][]string
	// RequestTTL is the validity of ID token and VP token requests.
	RequestTTL time.Duration
	// AccessTokenTTL is the validity of access tokens.
	AccessTokenTTL time.Duration
	// CNonceTTL is the validity of c_nonce values.
	CNonceTTL time.Duration
	// AcceptanceTokenTTL is the validity of acceptance tokens.
	AcceptanceTokenTTL time.Duration
}

// Provider is the protocol engine: it validates inbound protocol messages and composes the outbound ones.
type Provider struct {
	signer      crypto.Signer
	keyResolver crypto.KeyResolver
	config      ProviderConfig
}

// NewProvider creates a Provider that signs with the given signer and verifies wallet JWTs with the key resolver.
func NewProvider(signer crypto.Signer, keyResolver crypto.KeyResolver, config ProviderConfig) *Provider {
	return &Provider{
		signer:      signer,
		keyResolver: keyResolver,
		config:      config,
	}
}

// Endpoint returns the URL of an endpoint of the issuer.
func (p *Provider) Endpoint(name string) string {
	return core.JoinURLPaths(p.config.IssuerURL, name)
}

// Config returns the provider's settings.
func (p *Provider) Config() ProviderConfig {
	return p.config
}

// HandleAuthorizationRequest validates a wallet's authorization request, classifies it by scope and composes the
// ID token or VP token request the wallet is redirected to. redirectURI is the endpoint the wallet must post its
// response to, it defaults to the issuer's direct_post endpoint. definition is only used by the VP token flow,
// it defaults to DefaultPresentationDefinition.
func (p *Provider) HandleAuthorizationRequest(ctx context.Context, request AuthorizeRequest, redirectURI string, definition *PresentationDefinition) (*AuthorizationResult, error) {
	params := AuthorizationRequestParams{
		ResponseType:         request.ResponseType,
		ClientID:             request.ClientID,
		RedirectURI:          request.RedirectURI,
		Scope:                request.Scope,
		CodeChallenge:        request.CodeChallenge,
		CodeChallengeMethod:  request.CodeChallengeMethod,
		State:                request.State,
		Nonce:                request.Nonce,
		AuthorizationDetails: request.AuthorizationDetails,
		ClientMetadata:       request.ClientMetadata,
	}
	flow, err := validateAuthorizationRequest(params, p.config.CredentialTypes)
	if err != nil {
		return nil, err
	}
	if err = validatePKCEParams(request.CodeChallenge, request.CodeChallengeMethod, flow == CredentialIssuanceFlow); err != nil {
		return nil, err
	}
	if redirectURI == "" {
		redirectURI = p.Endpoint("direct_post")
	}
	walletRedirectURI := DefaultWalletRedirectURI
	if request.ClientMetadata != nil && request.ClientMetadata.AuthorizationEndpoint != "" {
		walletRedirectURI = request.ClientMetadata.AuthorizationEndpoint
	}
	idTokenRequest := IDTokenRequestParams{
		Issuer:            p.config.IssuerURL,
		Audience:          request.ClientID,
		ResponseType:      ResponseTypeIDToken,
		RedirectURI:       redirectURI,
		WalletRedirectURI: walletRedirectURI,
		State:             crypto.GenerateNonce(),
		Nonce:             crypto.GenerateNonce(),
		ExpiresIn:         p.config.RequestTTL,
	}
	if flow == VPTokenTestFlow {
		if definition == nil {
			definition = DefaultPresentationDefinition()
		}
		idTokenRequest.ResponseType = ResponseTypeVPToken
		idTokenRequest.PresentationDefinition = definition
	}
	redirect, err := ComposeIDTokenRequest(ctx, p.signer, idTokenRequest)
	if err != nil {
		return nil, err
	}
	return &AuthorizationResult{
		Flow:                 flow,
		Redirect:             *redirect,
		AuthorizationDetails: request.AuthorizationDetails,
		ServerDefinedState:   idTokenRequest.State,
		ServerDefinedNonce:   idTokenRequest.Nonce,
		WalletRedirectURI:    walletRedirectURI,
	}, nil
}

// CreateAuthorizationRequest composes an authorization request to this issuer, e.g. for a wallet acting on behalf of a holder.
func (p *Provider) CreateAuthorizationRequest(ctx context.Context, signer crypto.Signer, params AuthorizationRequestParams) (*AuthorizationRequest, error) {
	params.Audience = p.config.IssuerURL
	params.ExpiresIn = p.config.RequestTTL
	return ComposeAuthorizationRequest(ctx, signer, params, p.config.CredentialTypes)
}

// DecodeIDTokenResponse decodes the ID token of a wallet without verifying its signature,
// since the key is resolved from the DID in its iss claim. It requires iss and nonce.
func (p *Provider) DecodeIDTokenResponse(idToken string) (*crypto.Token, error) {
	if idToken == "" {
		return nil, InvalidRequestError("id_token is required")
	}
	decoded, err := crypto.DecodeJWT(idToken)
	if err != nil {
		return nil, InvalidRequestError("id_token is malformed")
	}
	if !strings.HasPrefix(decoded.Issuer(), "did:") {
		return nil, InvalidRequestError("id_token iss must be a DID")
	}
	if decoded.StringClaim("nonce") == "" {
		return nil, InvalidRequestError("id_token nonce is required")
	}
	return decoded, nil
}

// VerifyHolderJWT verifies a JWT signed by a wallet, resolving the key from the signer's DID. The audience must contain
// the issuer URL. Failures are access_denied errors.
func (p *Provider) VerifyHolderJWT(ctx context.Context, token string) (*crypto.Token, error) {
	alg, err := crypto.AlgorithmIn(token, crypto.HolderAlgorithms...)
	if err != nil {
		return nil, AccessDeniedError("unsupported signature algorithm", err)
	}
	verified, err := crypto.VerifyJWTWithResolver(ctx, token, p.keyResolver, alg,
		crypto.WithClock(nowFunc), crypto.WithAudience(p.config.IssuerURL))
	if err != nil {
		return nil, AccessDeniedError("JWT could not be verified", err)
	}
	return verified, nil
}

// DecodeCredentialRequest validates the shape of a credential request and decodes its proof.
// The proof's signature is verified by VerifyProof.
func (p *Provider) DecodeCredentialRequest(request CredentialRequest) (*ProofClaims, error) {
	if request.Format != "" && request.Format != JWTVCFormat && request.Format != JWTVCJSONFormat {
		return nil, UnsupportedCredentialTypeError(fmt.Errorf("unsupported format: %s", request.Format))
	}
	if request.Proof == nil {
		return nil, InvalidProofError("proof is required", nil)
	}
	if request.Proof.ProofType != ProofTypeJWT {
		return nil, InvalidProofError("proof_type must be jwt", nil)
	}
	decoded, err := crypto.DecodeJWT(request.Proof.JWT)
	if err != nil {
		return nil, InvalidProofError("proof is malformed", err)
	}
	if decoded.Type() != ProofJWTType {
		return nil, InvalidProofError("proof typ must be "+ProofJWTType, nil)
	}
	if decoded.KeyID() == "" {
		return nil, InvalidProofError("proof kid is required", nil)
	}
	if decoded.Claims.IssuedAt().IsZero() {
		return nil, InvalidProofError("proof iat is required", nil)
	}
	issuer := decoded.Issuer()
	if issuer == "" {
		issuer, _, _ = strings.Cut(decoded.KeyID(), "#")
	}
	return &ProofClaims{
		Issuer:   issuer,
		KeyID:    decoded.KeyID(),
		Audience: decoded.Claims.Audience(),
		Nonce:    decoded.StringClaim("nonce"),
		IssuedAt: decoded.Claims.IssuedAt(),
		JWTID:    decoded.Claims.JwtID(),
		Raw:      request.Proof.JWT,
	}, nil
}

// VerifyProof verifies the signature of a decoded proof against the expected holder DID and its audience.
func (p *Provider) VerifyProof(ctx context.Context, proof ProofClaims, holder string) error {
	if proof.Issuer != holder {
		return InvalidProofError("proof is not signed by the holder", ErrInvalidIssuer)
	}
	if _, err := p.VerifyHolderJWT(ctx, proof.Raw); err != nil {
		return InvalidProofError("proof could not be verified", errors.Unwrap(err))
	}
	return nil
}

// ComposeTokenResponse composes the token response for the wallet, with a fresh access token bound to the c_nonce.
func (p *Provider) ComposeTokenResponse(ctx context.Context, clientID string, details []AuthorizationDetail, cNonce string, nonce string) (*TokenResponse, error) {
	return ComposeTokenResponse(ctx, p.signer, TokenResponseParams{
		Issuer:               p.config.IssuerURL,
		Subject:              clientID,
		Audience:             p.config.IssuerURL,
		AuthorizationDetails: details,
		CNonce:               cNonce,
		CNonceExpiresIn:      p.config.CNonceTTL,
		ExpiresIn:            p.config.AccessTokenTTL,
		Nonce:                nonce,
	})
}

// ComposeInTimeCredentialResponse composes the credential response carrying the signed credential.
func (p *Provider) ComposeInTimeCredentialResponse(credential string, cNonce string) (*CredentialResponse, error) {
	return ComposeInTimeCredentialResponse(InTimeCredentialParams{
		Format:          JWTVCFormat,
		Credential:      credential,
		CNonce:          cNonce,
		CNonceExpiresIn: p.config.CNonceTTL,
	})
}

// ComposeDeferredCredentialResponse composes the credential response carrying an acceptance token for the credential.
func (p *Provider) ComposeDeferredCredentialResponse(ctx context.Context, clientID string, credentialID string, cNonce string) (*CredentialResponse, error) {
	return ComposeDeferredCredentialResponse(ctx, p.signer, DeferredCredentialParams{
		Issuer:          p.config.IssuerURL,
		Audience:        clientID,
		CredentialID:    credentialID,
		Format:          JWTVCFormat,
		ExpiresIn:       p.config.AcceptanceTokenTTL,
		CNonce:          cNonce,
		CNonceExpiresIn: p.config.CNonceTTL,
	})
}

// VerifyAccessToken verifies an access token minted by ComposeTokenResponse and returns its claims.
func (p *Provider) VerifyAccessToken(token string) (*AccessTokenClaims, error) {
	verified, err := p.verifyOwnToken(token)
	if err != nil {
		return nil, err
	}
	if verified.Type() != AccessTokenType {
		return nil, InvalidTokenError(errors.New("not an access token"))
	}
	result := &AccessTokenClaims{
		Subject: verified.Claims.Subject(),
		CNonce:  verified.StringClaim("c_nonce"),
	}
	if expiresIn, ok := verified.Claims.Get("c_nonce_expires_in"); ok {
		if seconds, ok := expiresIn.(float64); ok {
			result.CNonceExpiresAt = verified.Claims.IssuedAt().Add(time.Duration(seconds) * time.Second)
		}
	}
	if details, ok := verified.Claims.Get("authorization_details"); ok {
		data, _ := json.Marshal(details)
		if err := json.Unmarshal(data, &result.AuthorizationDetails); err != nil {
			return nil, InvalidTokenError(fmt.Errorf("invalid authorization_details: %w", err))
		}
	}
	if result.Subject == "" || result.CNonce == "" {
		return nil, InvalidTokenError(errors.New("access token is missing sub or c_nonce"))
	}
	return result, nil
}

// VerifyAcceptanceToken verifies an acceptance token minted by ComposeDeferredCredentialResponse and returns the
// ID of the credential it refers to.
func (p *Provider) VerifyAcceptanceToken(token string) (string, error) {
	verified, err := p.verifyOwnToken(token)
	if err != nil {
		return "", err
	}
	if verified.Type() == AccessTokenType {
		return "", InvalidTokenError(errors.New("not an acceptance token"))
	}
	credentialID := verified.StringClaim(AcceptanceTokenCredentialIDClaim)
	if credentialID == "" {
		return "", InvalidTokenError(errors.New("acceptance token is missing vcId"))
	}
	return credentialID, nil
}

func (p *Provider) verifyOwnToken(token string) (*crypto.Token, error) {
	if token == "" {
		return nil, InvalidTokenError(errors.New("token is missing"))
	}
	// own tokens carry the issuer URL as iss and the signer's DID URL as kid, so both are checked here
	verified, err := crypto.VerifyJWT(token, p.signer.PublicKey(), "", crypto.SigningAlgorithm,
		crypto.WithClock(nowFunc), crypto.WithAudience(p.config.IssuerURL))
	if errors.Is(err, crypto.ErrTokenExpired) {
		return nil, InvalidTokenError(core.WrapError(types.ErrExpired, err))
	}
	if err != nil {
		return nil, InvalidTokenError(err)
	}
	if verified.Issuer() != p.config.IssuerURL {
		return nil, InvalidTokenError(fmt.Errorf("%w: iss is %s", crypto.ErrIssuerMismatch, verified.Issuer()))
	}
	if verified.KeyID() != p.signer.KeyID() {
		return nil, InvalidTokenError(fmt.Errorf("%w: unexpected kid %s", crypto.ErrIssuerMismatch, verified.KeyID()))
	}
	if verified.Claims.Expiration().IsZero() {
		return nil, InvalidTokenError(errors.New("token has no expiry"))
	}
	return verified, nil
}
