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
	"net/http"
	"net/url"
	"time"

	"github.com/nuts-foundation/ebsi-issuer/crypto"
)

// IDTokenRequestParams are the parameters of an ID token (or VP token) request sent by the issuer to the wallet.
type IDTokenRequestParams struct {
	// Issuer is the client_id of the issuer, used as iss.
	Issuer string
	// Audience is the client_id of the wallet.
	Audience string
	// ResponseType is id_token or vp_token.
	ResponseType string
	// RedirectURI is the direct_post endpoint the wallet posts its response to.
	RedirectURI string
	// WalletRedirectURI is the authorization endpoint of the wallet, defaults to openid: when the wallet didn't declare one.
	WalletRedirectURI string
	State             string
	Nonce             string
	// PresentationDefinition is required for vp_token requests.
	PresentationDefinition *PresentationDefinition
	ExpiresIn              time.Duration
}

// ComposeIDTokenRequest signs an ID token or VP token request and returns the redirect to the wallet,
// which carries the signed request in its request parameter.
func ComposeIDTokenRequest(ctx context.Context, signer crypto.Signer, params IDTokenRequestParams) (*Redirect, error) {
	if err := requireFields("iss", params.Issuer, "aud", params.Audience, "response_type", params.ResponseType,
		"redirect_uri", params.RedirectURI, "state", params.State, "nonce", params.Nonce); err != nil {
		return nil, err
	}
	if params.ExpiresIn <= 0 {
		return nil, incomplete("expires_in")
	}
	if params.ResponseType != ResponseTypeIDToken && params.ResponseType != ResponseTypeVPToken {
		return nil, Error{Code: UnsupportedResponseType, Description: "response_type must be id_token or vp_token"}
	}
	if params.ResponseType == ResponseTypeVPToken && params.PresentationDefinition == nil {
		return nil, incomplete("presentation_definition")
	}
	claims := map[string]interface{}{
		"iss":           params.Issuer,
		"aud":           params.Audience,
		"client_id":     params.Issuer,
		"response_type": params.ResponseType,
		"response_mode": ResponseModeDirectPost,
		"redirect_uri":  params.RedirectURI,
		"scope":         ScopeOpenID,
		"state":         params.State,
		"nonce":         params.Nonce,
	}
	query := url.Values{
		"client_id":     {params.Issuer},
		"response_type": {params.ResponseType},
		"response_mode": {ResponseModeDirectPost},
		"redirect_uri":  {params.RedirectURI},
		"scope":         {ScopeOpenID},
		"state":         {params.State},
		"nonce":         {params.Nonce},
	}
	if params.PresentationDefinition != nil {
		definition, err := toClaim(params.PresentationDefinition)
		if err != nil {
			return nil, err
		}
		claims["presentation_definition"] = definition
		data, _ := json.Marshal(params.PresentationDefinition)
		query.Set("presentation_definition", string(data))
	}
	request, err := signClaims(ctx, signer, claims, nil, params.ExpiresIn)
	if err != nil {
		return nil, err
	}
	query.Set("request", request)
	walletURI := params.WalletRedirectURI
	if walletURI == "" {
		walletURI = DefaultWalletRedirectURI
	}
	location, err := withQuery(walletURI, query)
	if err != nil {
		return nil, err
	}
	return &Redirect{Code: http.StatusFound, URL: location}, nil
}

// IDTokenResponseParams are the parameters of the ID token a wallet returns to an ID token request.
type IDTokenResponseParams struct {
	// Issuer is the DID of the wallet, used as iss and sub.
	Issuer string
	// Audience is the client_id of the issuer.
	Audience  string
	Nonce     string
	ExpiresIn time.Duration
}

// ComposeIDTokenResponse signs the ID token of a wallet.
func ComposeIDTokenResponse(ctx context.Context, signer crypto.Signer, params IDTokenResponseParams) (string, error) {
	if err := requireFields("iss", params.Issuer, "aud", params.Audience, "nonce", params.Nonce); err != nil {
		return "", err
	}
	if params.ExpiresIn <= 0 {
		return "", incomplete("expires_in")
	}
	claims := map[string]interface{}{
		"iss":   params.Issuer,
		"sub":   params.Issuer,
		"aud":   params.Audience,
		"nonce": params.Nonce,
	}
	return signClaims(ctx, signer, claims, nil, params.ExpiresIn)
}
