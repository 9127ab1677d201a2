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
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nuts-foundation/ebsi-issuer/audit"
	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/http/cache"
	"github.com/nuts-foundation/ebsi-issuer/vcr"
	"github.com/nuts-foundation/ebsi-issuer/vcr/issuer"
	"github.com/nuts-foundation/ebsi-issuer/vcr/log"
	"github.com/nuts-foundation/ebsi-issuer/vcr/openid4vci"
	"github.com/nuts-foundation/ebsi-issuer/vcr/types"
)

// InternalPathPrefix is the prefix of the administrative endpoints, which must only be reachable on the internal interface.
const InternalPathPrefix = "/internal"

var protocolStatusCodes = map[openid4vci.ErrorCode]int{
	openid4vci.InvalidRequest:            http.StatusBadRequest,
	openid4vci.InvalidClient:             http.StatusUnauthorized,
	openid4vci.InvalidGrant:              http.StatusBadRequest,
	openid4vci.InvalidToken:              http.StatusUnauthorized,
	openid4vci.InvalidProof:              http.StatusBadRequest,
	openid4vci.InvalidNonce:              http.StatusBadRequest,
	openid4vci.InvalidScope:              http.StatusBadRequest,
	openid4vci.UnsupportedGrantType:      http.StatusBadRequest,
	openid4vci.UnsupportedResponseType:   http.StatusBadRequest,
	openid4vci.UnsupportedCredentialType: http.StatusBadRequest,
	openid4vci.AccessDenied:              http.StatusForbidden,
	openid4vci.ServerError:               http.StatusInternalServerError,
}

var _ core.ErrorStatusCodeResolver = (*Wrapper)(nil)
var _ core.ErrorWriter = (*protocolErrorWriter)(nil)

// protocolErrorWriter writes errors as OAuth2 error response: {"error": code, "error_description": description}.
type protocolErrorWriter struct{}

func (p protocolErrorWriter) Write(echoContext echo.Context, statusCode int, _ string, err error) error {
	var protocolError openid4vci.Error
	switch {
	case errors.As(err, &protocolError):
	case errors.Is(err, types.ErrCredentialPending):
		protocolError = openid4vci.Error{Code: issuancePending, Description: "credential is not yet available"}
	case errors.Is(err, types.ErrCredentialRejected):
		protocolError = openid4vci.Error{Code: openid4vci.AccessDenied, Description: "credential issuance was rejected"}
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrExpired), errors.Is(err, types.ErrCredentialNotFound):
		protocolError = openid4vci.InvalidRequestError("not found")
	default:
		// never disclose internal errors
		protocolError = openid4vci.Error{Code: openid4vci.ServerError}
	}
	if protocolError.Code == openid4vci.InvalidToken {
		echoContext.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer error="invalid_token"`)
	}
	// the underlying error is logged by the error handler, only code and description are returned
	return echoContext.JSON(statusCode, openid4vci.Error{Code: protocolError.Code, Description: protocolError.Description})
}

// issuancePending is returned by the deferred credential endpoint while the credential is being issued.
const issuancePending openid4vci.ErrorCode = "issuance_pending"

// Wrapper binds the OpenID4VCI issuer to HTTP.
type Wrapper struct {
	VCR vcr.VCR
}

// ResolveStatusCode maps errors to HTTP status codes. Protocol errors are mapped by their code.
func (w Wrapper) ResolveStatusCode(err error) int {
	var protocolError openid4vci.Error
	if errors.As(err, &protocolError) {
		return protocolStatusCodes[protocolError.Code]
	}
	return core.ResolveStatusCode(err, map[error]int{
		types.ErrCredentialPending:  http.StatusAccepted,
		types.ErrCredentialRejected: http.StatusForbidden,
		types.ErrNotFound:           http.StatusNotFound,
		types.ErrExpired:            http.StatusNotFound,
		types.ErrCredentialNotFound: http.StatusNotFound,
	})
}

// Routes registers the API routes.
func (w Wrapper) Routes(router core.EchoRouter) {
	router.Use(cache.MaxAge(5*time.Minute, "/.well-known/openid-credential-issuer", "/.well-known/openid-configuration", "/.well-known/did.json", "/jwks").Handle)
	router.Use(cache.NoCache("/authorize", "/direct_post", "/token", "/credential", "/credential_deferred", "/offers/:id").Handle)
	router.GET("/.well-known/openid-credential-issuer", w.handle("GetIssuerMetadata", w.GetIssuerMetadata))
	router.GET("/.well-known/openid-configuration", w.handle("GetProviderMetadata", w.GetProviderMetadata))
	router.GET("/.well-known/did.json", w.GetDIDDocument)
	router.GET("/jwks", w.handle("GetJWKS", w.GetJWKS))
	router.GET("/authorize", w.handle("Authorize", w.Authorize))
	router.POST("/direct_post", w.handle("DirectPost", w.DirectPost))
	router.POST("/token", w.handle("RequestAccessToken", w.RequestAccessToken))
	router.POST("/credential", w.handle("RequestCredential", w.RequestCredential))
	router.POST("/credential_deferred", w.handle("RequestDeferredCredential", w.RequestDeferredCredential))
	router.GET("/offers/:id", w.handle("GetCredentialOffer", w.GetCredentialOffer))

	router.POST(InternalPathPrefix+"/offers", w.handleInternal("CreateCredentialOffer", w.CreateCredentialOffer))
	router.POST(InternalPathPrefix+"/preauthorised-codes", w.handleInternal("RegisterPreAuthorisedCode", w.RegisterPreAuthorisedCode))
	router.POST(InternalPathPrefix+"/credentials/revoke", w.handleInternal("RevokeCredential", w.RevokeCredential))
	router.POST(InternalPathPrefix+"/credentials/:id/reject", w.handleInternal("RejectCredential", w.RejectCredential))
	router.DELETE(InternalPathPrefix+"/conformance/:clientID", w.handleInternal("DeleteConformanceState", w.DeleteConformanceState))
}

// handle wraps protocol endpoints: errors are written as OAuth2 error response.
func (w Wrapper) handle(operationID string, handler func(ctx echo.Context, openid issuer.OpenIDHandler) error) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctx.Set(core.OperationIDContextKey, operationID)
		ctx.Set(core.ModuleNameContextKey, vcr.ModuleName+"/OpenID4VCI")
		ctx.Set(core.StatusCodeResolverContextKey, w)
		ctx.Set(core.ErrorWriterContextKey, &protocolErrorWriter{})
		openid := w.VCR.OpenID()
		if openid == nil {
			log.Logger().Warnf("OpenID4VCI endpoint called before the issuer was started (operation=%s)", operationID)
			return core.Error(http.StatusServiceUnavailable, "issuer is not started")
		}
		return handler(ctx, openid)
	}
}

// handleInternal wraps administrative endpoints: errors are written as RFC 7807 problem.
func (w Wrapper) handleInternal(operationID string, handler func(ctx echo.Context, openid issuer.OpenIDHandler) error) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctx.Set(core.OperationIDContextKey, operationID)
		ctx.Set(core.ModuleNameContextKey, vcr.ModuleName+"/Admin")
		ctx.Set(core.StatusCodeResolverContextKey, w)
		audit.Middleware(ctx, vcr.ModuleName, operationID)
		openid := w.VCR.OpenID()
		if openid == nil {
			return core.Error(http.StatusServiceUnavailable, "issuer is not started")
		}
		return handler(ctx, openid)
	}
}

// bearerToken returns the token of an "Authorization: Bearer <token>" header.
func bearerToken(ctx echo.Context) (string, error) {
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", openid4vci.Error{Code: openid4vci.InvalidToken, Description: "missing authorization header"}
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", openid4vci.Error{Code: openid4vci.InvalidToken, Description: "invalid authorization header"}
	}
	return strings.TrimSpace(token), nil
}
