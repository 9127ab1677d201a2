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

package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusCodeResolver map[error]int

func (s statusCodeResolver) ResolveStatusCode(err error) int {
	return ResolveStatusCode(err, s)
}

func TestCreateHTTPErrorHandler(t *testing.T) {
	errTeapot := errors.New("teapot")
	run := func(t *testing.T, err error, setup func(ctx echo.Context)) (*httptest.ResponseRecorder, map[string]interface{}) {
		server := NewEchoServer()
		server.GET("/", func(c echo.Context) error {
			c.Set(OperationIDContextKey, "GetThing")
			c.Set(ModuleNameContextKey, "Test")
			if setup != nil {
				setup(c)
			}
			return err
		})
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec, body
	}

	t.Run("unmapped error is 500 problem", func(t *testing.T) {
		rec, body := run(t, errors.New("boom"), nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "GetThing failed", body["title"])
		assert.Equal(t, "boom", body["detail"])
	})
	t.Run("status code error", func(t *testing.T) {
		rec, body := run(t, NotFoundError("no thing %s", "x"), nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "no thing x", body["detail"])
	})
	t.Run("resolver", func(t *testing.T) {
		rec, _ := run(t, WrapError(errTeapot, errors.New("cause")), func(ctx echo.Context) {
			ctx.Set(StatusCodeResolverContextKey, statusCodeResolver{errTeapot: http.StatusTeapot})
		})

		assert.Equal(t, http.StatusTeapot, rec.Code)
	})
	t.Run("echo error", func(t *testing.T) {
		rec, body := run(t, echo.NewHTTPError(http.StatusBadRequest, "bad bind"), nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "bad bind", body["detail"])
	})
}

func TestInvalidInputError(t *testing.T) {
	cause := errors.New("cause")

	err := InvalidInputError("invalid: %w", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadRequest, err.(HTTPStatusCodeError).StatusCode())
}

func TestWrapError(t *testing.T) {
	outer := errors.New("outer")
	cause := errors.New("cause")

	err := WrapError(outer, cause)

	assert.ErrorIs(t, err, outer)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "outer: cause")
}
