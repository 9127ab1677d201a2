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
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/http/cache"
	"github.com/nuts-foundation/ebsi-issuer/vcr"
	"github.com/nuts-foundation/ebsi-issuer/vcr/types"
)

// JWTContentType is the content type of a status list credential in jwt_vc format.
const JWTContentType = "application/jwt"

var _ core.ErrorStatusCodeResolver = (*Wrapper)(nil)

// Wrapper serves the StatusList2021 credentials of the issuer.
type Wrapper struct {
	VCR vcr.VCR
}

// Routes registers the API routes.
func (w Wrapper) Routes(router core.EchoRouter) {
	router.Use(cache.MaxAge(time.Minute, "/statuslist/:id").Handle)
	router.GET("/statuslist/:id", func(ctx echo.Context) error {
		ctx.Set(core.OperationIDContextKey, "GetStatusList")
		ctx.Set(core.ModuleNameContextKey, vcr.ModuleName+"/StatusList")
		ctx.Set(core.StatusCodeResolverContextKey, w)
		return w.GetStatusList(ctx)
	})
}

// ResolveStatusCode maps errors to HTTP status codes.
func (w Wrapper) ResolveStatusCode(err error) int {
	return core.ResolveStatusCode(err, map[error]int{
		types.ErrNotFound: http.StatusNotFound,
	})
}

// GetStatusList returns the StatusList2021Credential as signed JWT if the client accepts it, otherwise as (unsigned) JSON-LD.
func (w Wrapper) GetStatusList(ctx echo.Context) error {
	statusList := w.VCR.StatusList()
	if statusList == nil {
		return core.Error(http.StatusServiceUnavailable, "issuer is not started")
	}
	listID := ctx.Param("id")
	if acceptsJWT(ctx.Request().Header.Get(echo.HeaderAccept)) {
		token, err := statusList.SignedDocument(ctx.Request().Context(), listID)
		if err != nil {
			return err
		}
		return ctx.Blob(http.StatusOK, JWTContentType, []byte(token))
	}
	document, err := statusList.Document(ctx.Request().Context(), listID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, document)
}

func acceptsJWT(accept string) bool {
	for _, mediaType := range strings.Split(accept, ",") {
		mediaType, _, _ = strings.Cut(strings.TrimSpace(mediaType), ";")
		switch mediaType {
		case JWTContentType, "application/vc+jwt":
			return true
		case "application/json", "application/ld+json", "application/vc+ld+json":
			return false
		}
	}
	return false
}
