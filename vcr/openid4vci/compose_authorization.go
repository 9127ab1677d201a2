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
	"net/url"
	"slices"
	"time"

	"github.com/nuts-foundation/ebsi-issuer/crypto"
)

// AuthorizationRequestParams are the parameters of an OAuth2 authorization request for a credential.
type AuthorizationRequestParams struct {
	ResponseType         string
	ClientID             string
	RedirectURI          string
	Scope                string
	CodeChallenge        string
	CodeChallengeMethod  string
	State                string
	Nonce                string
	IssuerState          string
	AuthorizationDetails []AuthorizationDetail
	ClientMetadata       *ClientMetadata
	// Audience is the authorization server the request is sent to.
	Audience  string
	ExpiresIn time.Duration
}

// AuthorizationRequest is a composed authorization request.
type AuthorizationRequest struct {
	// Claims is the claim set of the signed request object.
	Claims map[string]interface{}
	// Request is the signed request object.
	Request string
	// Query holds the parameters to send to the authorization endpoint, including the request object.
	Query url.Values
}

// URL returns the authorization endpoint with the request parameters.
func (r AuthorizationRequest) URL(endpoint string) (string, error) {
	return withQuery(endpoint, r.Query)
}

// ComposeAuthorizationRequest validates the parameters against the supported credential type sets and returns the
// signed request object along with its query parameters.
func ComposeAuthorizationRequest(ctx context.Context, signer crypto.Signer, params AuthorizationRequestParams, supported [][]string) (*AuthorizationRequest, error) {
	if err := requireFields("audience", params.Audience); err != nil {
		return nil, err
	}
	if params.ExpiresIn <= 0 {
		return nil, incomplete("expires_in")
	}
	flow, err := validateAuthorizationRequest(params, supported)
	if err != nil {
		return nil, err
	}
	if err := validatePKCEParams(params.CodeChallenge, params.CodeChallengeMethod, flow == CredentialIssuanceFlow); err != nil {
		return nil, err
	}
	details, err := toClaim(params.AuthorizationDetails)
	if err != nil {
		return nil, err
	}
	claims := map[string]interface{}{
		"iss":                   params.ClientID,
		"aud":                   params.Audience,
		"response_type":         params.ResponseType,
		"client_id":             params.ClientID,
		"redirect_uri":          params.RedirectURI,
		"scope":                 params.Scope,
		"authorization_details": details,
	}
	optional := map[string]string{
		"code_challenge":        params.CodeChallenge,
		"code_challenge_method": params.CodeChallengeMethod,
		"state":                 params.State,
		"nonce":                 params.Nonce,
		"issuer_state":          params.IssuerState,
	}
	for key, value := range optional {
		if value != "" {
			claims[key] = value
		}
	}
	if params.ClientMetadata != nil {
		if claims["client_metadata"], err = toClaim(params.ClientMetadata); err != nil {
			return nil, err
		}
	}
	request, err := signClaims(ctx, signer, claims, nil, params.ExpiresIn)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	for key, value := range claims {
		switch typed := value.(type) {
		case string:
			if key != "iss" && key != "aud" {
				query.Set(key, typed)
			}
		case []interface{}, map[string]interface{}:
			data, _ := json.Marshal(typed)
			query.Set(key, string(data))
		}
	}
	query.Set("request", request)
	return &AuthorizationRequest{Claims: claims, Request: request, Query: query}, nil
}

// validateAuthorizationRequest checks the required parameters, the response type and the requested credential types.
// It returns the flow the request belongs to.
func validateAuthorizationRequest(params AuthorizationRequestParams, supported [][]string) (Flow, error) {
	if err := requireFields("client_id", params.ClientID, "redirect_uri", params.RedirectURI,
		"scope", params.Scope, "response_type", params.ResponseType); err != nil {
		return "", err
	}
	flow, err := classifyScope(params.Scope)
	if err != nil {
		return "", err
	}
	switch {
	case params.ResponseType == ResponseTypeCode:
	case flow != CredentialIssuanceFlow && (params.ResponseType == ResponseTypeIDToken || params.ResponseType == ResponseTypeVPToken):
		// conformance tests may request the token directly
	default:
		return "", Error{Code: UnsupportedResponseType, Description: "response_type must be code"}
	}
	if flow != CredentialIssuanceFlow && len(params.AuthorizationDetails) == 0 {
		return flow, nil
	}
	if len(params.AuthorizationDetails) == 0 {
		return "", incomplete("authorization_details")
	}
	for _, detail := range params.AuthorizationDetails {
		if detail.Type != OpenIDCredentialAuthorizationDetailType {
			return "", InvalidRequestError("authorization_details type must be %s", OpenIDCredentialAuthorizationDetailType)
		}
		if detail.Format != "" && detail.Format != JWTVCFormat && detail.Format != JWTVCJSONFormat {
			return "", InvalidRequestError("unsupported credential format: %s", detail.Format)
		}
		if !slices.ContainsFunc(supported, func(types []string) bool { return SameTypes(types, detail.Types) }) {
			return "", UnsupportedCredentialTypeError(errors.New("no supported credential matches the requested types"))
		}
	}
	return flow, nil
}

// classifyScope returns the flow requested by the scope: plain openid requests a credential,
// the ver_test scopes request the ID token or VP token conformance flows.
func classifyScope(scope string) (Flow, error) {
	request := AuthorizeRequest{Scope: scope}
	scopes := request.Scopes()
	if !slices.Contains(scopes, ScopeOpenID) {
		return "", Error{Code: InvalidScope, Description: "scope must contain openid"}
	}
	switch {
	case len(scopes) == 1:
		return CredentialIssuanceFlow, nil
	case len(scopes) == 2 && slices.Contains(scopes, ScopeIDTokenTest):
		return IDTokenTestFlow, nil
	case len(scopes) == 2 && slices.Contains(scopes, ScopeVPTokenTest):
		return VPTokenTestFlow, nil
	}
	return "", Error{Code: InvalidScope, Description: "unsupported scope: " + scope}
}
