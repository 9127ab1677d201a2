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

package v0

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/vcr/issuer"
	"github.com/nuts-foundation/ebsi-issuer/vcr/openid4vci"
)

// GetIssuerMetadata returns the OpenID4VCI credential issuer metadata.
func (w Wrapper) GetIssuerMetadata(ctx echo.Context, openid issuer.OpenIDHandler) error {
	return ctx.JSON(http.StatusOK, openid.IssuerMetadata())
}

// GetProviderMetadata returns the OpenID provider metadata of the authorization server.
func (w Wrapper) GetProviderMetadata(ctx echo.Context, openid issuer.OpenIDHandler) error {
	return ctx.JSON(http.StatusOK, openid.ProviderMetadata())
}

// GetDIDDocument returns the did:web document of the issuer, if it is hosted by this node.
func (w Wrapper) GetDIDDocument(ctx echo.Context) error {
	ctx.Set(core.OperationIDContextKey, "GetDIDDocument")
	document := w.VCR.DIDDocument()
	if document == nil {
		return core.NotFoundError("issuer DID document is not hosted by this node")
	}
	return ctx.JSON(http.StatusOK, document)
}

// GetJWKS returns the public keys of the issuer.
func (w Wrapper) GetJWKS(ctx echo.Context, openid issuer.OpenIDHandler) error {
	return ctx.JSON(http.StatusOK, openid.JWKS())
}

// Authorize handles the wallet's authorization request and redirects it to the ID token or VP token request.
func (w Wrapper) Authorize(ctx echo.Context, openid issuer.OpenIDHandler) error {
	request := openid4vci.AuthorizeRequest{
		ResponseType:        ctx.QueryParam("response_type"),
		ClientID:            ctx.QueryParam("client_id"),
		RedirectURI:         ctx.QueryParam("redirect_uri"),
		Scope:               ctx.QueryParam("scope"),
		CodeChallenge:       ctx.QueryParam("code_challenge"),
		CodeChallengeMethod: ctx.QueryParam("code_challenge_method"),
		State:               ctx.QueryParam("state"),
		Nonce:               ctx.QueryParam("nonce"),
		IssuerState:         ctx.QueryParam("issuer_state"),
	}
	var err error
	if request.AuthorizationDetails, err = openid4vci.ParseAuthorizationDetails(ctx.QueryParam("authorization_details")); err != nil {
		return err
	}
	if raw := ctx.QueryParam("client_metadata"); raw != "" {
		request.ClientMetadata = new(openid4vci.ClientMetadata)
		if err = json.Unmarshal([]byte(raw), request.ClientMetadata); err != nil {
			return openid4vci.InvalidRequestError("client_metadata is malformed")
		}
	}
	redirect, err := openid.Authorize(ctx.Request().Context(), request)
	if err != nil {
		return err
	}
	return ctx.Redirect(redirect.Code, redirect.URL)
}

// DirectPost handles the wallet's ID token or VP token response and redirects it with the authorization code.
func (w Wrapper) DirectPost(ctx echo.Context, openid issuer.OpenIDHandler) error {
	request := openid4vci.DirectPostRequest{
		IDToken: ctx.FormValue("id_token"),
		VPToken: ctx.FormValue("vp_token"),
		State:   ctx.FormValue("state"),
	}
	if request.IDToken == "" && request.VPToken == "" {
		return openid4vci.InvalidRequestError("id_token or vp_token is required")
	}
	if raw := ctx.FormValue("presentation_submission"); raw != "" {
		request.PresentationSubmission = new(openid4vci.PresentationSubmission)
		if err := json.Unmarshal([]byte(raw), request.PresentationSubmission); err != nil {
			return openid4vci.InvalidRequestError("presentation_submission is malformed")
		}
	}
	redirect, err := openid.DirectPost(ctx.Request().Context(), request)
	if err != nil {
		return err
	}
	return ctx.Redirect(redirect.Code, redirect.URL)
}

// RequestAccessToken handles the token request (application/x-www-form-urlencoded).
func (w Wrapper) RequestAccessToken(ctx echo.Context, openid issuer.OpenIDHandler) error {
	request := openid4vci.TokenRequest{
		GrantType:           ctx.FormValue("grant_type"),
		Code:                ctx.FormValue("code"),
		CodeVerifier:        ctx.FormValue("code_verifier"),
		ClientID:            ctx.FormValue("client_id"),
		RedirectURI:         ctx.FormValue("redirect_uri"),
		PreAuthorizedCode:   ctx.FormValue("pre-authorized_code"),
		UserPIN:             ctx.FormValue("user_pin"),
		ClientAssertion:     ctx.FormValue("client_assertion"),
		ClientAssertionType: ctx.FormValue("client_assertion_type"),
	}
	if request.GrantType == "" {
		return openid4vci.InvalidRequestError("grant_type is required")
	}
	response, err := openid.Token(ctx.Request().Context(), request)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, response)
}

// RequestCredential handles the credential request, authorized by the access token.
func (w Wrapper) RequestCredential(ctx echo.Context, openid issuer.OpenIDHandler) error {
	accessToken, err := bearerToken(ctx)
	if err != nil {
		return err
	}
	var request openid4vci.CredentialRequest
	if err = json.NewDecoder(ctx.Request().Body).Decode(&request); err != nil {
		return openid4vci.InvalidRequestError("credential request is malformed")
	}
	response, err := openid.Credential(ctx.Request().Context(), accessToken, request)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, response)
}

// RequestDeferredCredential returns a deferred credential, authorized by the acceptance token.
func (w Wrapper) RequestDeferredCredential(ctx echo.Context, openid issuer.OpenIDHandler) error {
	acceptanceToken, err := bearerToken(ctx)
	if err != nil {
		return err
	}
	response, err := openid.DeferredCredential(ctx.Request().Context(), acceptanceToken)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, response)
}

// GetCredentialOffer returns a credential offer by reference (credential_offer_uri).
func (w Wrapper) GetCredentialOffer(ctx echo.Context, openid issuer.OpenIDHandler) error {
	offer, err := openid.GetOffer(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, offer)
}
