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

package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_requestLoggerMiddleware(t *testing.T) {
	run := func(t *testing.T, handler echo.HandlerFunc) *test.Hook {
		e := echo.New()
		request := httptest.NewRequest(http.MethodGet, "/test", nil)
		request.RemoteAddr = "10.0.0.1:1234"
		ctx := e.NewContext(request, httptest.NewRecorder())
		logger, hook := test.NewNullLogger()
		logFunc := requestLoggerMiddleware(func(c echo.Context) bool {
			return false
		}, logger.WithFields(logrus.Fields{}))

		_ = logFunc(handler)(ctx)

		require.Len(t, hook.Entries, 1)
		return hook
	}
	t.Run("it logs", func(t *testing.T) {
		hook := run(t, func(context echo.Context) error {
			return context.NoContent(http.StatusNoContent)
		})

		assert.Equal(t, "10.0.0.1", hook.LastEntry().Data["remote_ip"])
		assert.Equal(t, http.StatusNoContent, hook.LastEntry().Data["status"])
		assert.Equal(t, "/test", hook.LastEntry().Data["uri"])
		assert.Equal(t, http.MethodGet, hook.LastEntry().Data["method"])
	})
	t.Run("it handles echo.HTTPErrors", func(t *testing.T) {
		hook := run(t, func(context echo.Context) error {
			return echo.NewHTTPError(http.StatusForbidden)
		})

		assert.Equal(t, http.StatusForbidden, hook.LastEntry().Data["status"])
	})
	t.Run("it handles httpStatusCodeError", func(t *testing.T) {
		hook := run(t, func(context echo.Context) error {
			return core.NotFoundError("not found")
		})

		assert.Equal(t, http.StatusNotFound, hook.LastEntry().Data["status"])
	})
	t.Run("it handles go errors", func(t *testing.T) {
		hook := run(t, func(context echo.Context) error {
			return errors.New("failed")
		})

		assert.Equal(t, http.StatusInternalServerError, hook.LastEntry().Data["status"])
	})
}

func Test_bodyLoggerMiddleware(t *testing.T) {
	run := func(t *testing.T, contentType string, requestBody string, responseBody string) *test.Hook {
		e := echo.New()
		request := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(requestBody))
		request.Header.Set("Content-Type", contentType)
		ctx := e.NewContext(request, httptest.NewRecorder())
		logger, hook := test.NewNullLogger()
		logFunc := bodyLoggerMiddleware(func(c echo.Context) bool {
			return false
		}, logger.WithFields(logrus.Fields{}))

		err := logFunc(func(context echo.Context) error {
			return context.Blob(http.StatusOK, contentType, []byte(responseBody))
		})(ctx)

		require.NoError(t, err)
		require.Len(t, hook.Entries, 2)
		return hook
	}
	t.Run("it logs", func(t *testing.T) {
		hook := run(t, "application/json", `"request"`, `"response"`)

		assert.Equal(t, `HTTP request body: "request"`, hook.AllEntries()[0].Message)
		assert.Equal(t, `HTTP response body: "response"`, hook.AllEntries()[1].Message)
	})
	t.Run("token response is redacted", func(t *testing.T) {
		hook := run(t, "application/json; charset=utf-8", `{}`, `{"access_token":"ey.secret","token_type":"bearer","c_nonce":"n"}`)

		assert.Equal(t, `HTTP response body: {"access_token":"redacted","c_nonce":"n","token_type":"bearer"}`, hook.AllEntries()[1].Message)
	})
	t.Run("nested proof and credential are redacted", func(t *testing.T) {
		hook := run(t, "application/json", `{"types":["VerifiableCredential"],"proof":{"proof_type":"jwt","jwt":"ey.proof"}}`, `{"credential":"ey.vc"}`)

		assert.Equal(t, `HTTP request body: {"proof":{"jwt":"redacted","proof_type":"jwt"},"types":["VerifiableCredential"]}`, hook.AllEntries()[0].Message)
		assert.Equal(t, `HTTP response body: {"credential":"redacted"}`, hook.AllEntries()[1].Message)
	})
	t.Run("token request form is redacted", func(t *testing.T) {
		hook := run(t, "application/x-www-form-urlencoded", "grant_type=authorization_code&code=abc&code_verifier=xyz", "")

		assert.Equal(t, `HTTP request body: code=redacted&code_verifier=redacted&grant_type=authorization_code`, hook.AllEntries()[0].Message)
	})
	t.Run("JWT bodies are not logged", func(t *testing.T) {
		hook := run(t, "application/jwt", "ey.a.b", "ey.c.d")

		assert.Equal(t, `HTTP request body: (jwt, 6 bytes)`, hook.AllEntries()[0].Message)
		assert.Equal(t, `HTTP response body: (jwt, 6 bytes)`, hook.AllEntries()[1].Message)
	})
	t.Run("invalid JSON", func(t *testing.T) {
		hook := run(t, "application/json", `{"access_token":`, `{}`)

		assert.Equal(t, `HTTP request body: (not loggable: invalid JSON)`, hook.AllEntries()[0].Message)
	})
	t.Run("request and response not loggable", func(t *testing.T) {
		hook := run(t, "application/binary", "\x01\x02", "\x01\x02")

		assert.Equal(t, `HTTP request body: (not loggable: application/binary)`, hook.AllEntries()[0].Message)
		assert.Equal(t, `HTTP response body: (not loggable: application/binary)`, hook.AllEntries()[1].Message)
	})
}

func Test_redactURI(t *testing.T) {
	assert.Equal(t, "/authorize?client_id=did%3Akey%3Az6&issuer_state=redacted", redactURI("/authorize?issuer_state=s3cr3t&client_id=did%3Akey%3Az6"))
	assert.Equal(t, "/authorize?client_id=did%3Akey%3Az6", redactURI("/authorize?client_id=did%3Akey%3Az6"))
	assert.Equal(t, "/.well-known/openid-credential-issuer", redactURI("/.well-known/openid-credential-issuer"))
	assert.Equal(t, "/direct_post", redactURI("/direct_post?%zz"))
}
