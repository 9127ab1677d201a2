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
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

const redacted = "redacted"

// secretParameters are OAuth2 and OpenID4VCI parameters that carry codes, bearer tokens or issued credentials.
var secretParameters = map[string]bool{
	"access_token":        true,
	"refresh_token":       true,
	"code":                true,
	"code_verifier":       true,
	"pre-authorized_code": true,
	"issuer_state":        true,
	"tx_code":             true,
	"user_pin":            true,
	"id_token":            true,
	"vp_token":            true,
	"jwt":                 true,
	"credential":          true,
	"acceptance_token":    true,
}

// requestLoggerMiddleware returns middleware that logs metadata of HTTP requests.
// Secret query parameters (e.g. issuer_state on /authorize) are redacted from the logged URI.
// Should be added as the outer middleware to catch all errors and potential status rewrites
func requestLoggerMiddleware(skipper middleware.Skipper, logger *logrus.Entry) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:     skipper,
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogRemoteIP: true,
		LogError:    true,
		LogLatency:  true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			status := values.Status
			if values.Error != nil {
				// core.HTTPStatusCodeError and the OAuth2 errors provide `func StatusCode() int`
				if x, ok := values.Error.(interface{ StatusCode() int }); ok {
					status = x.StatusCode()
				} else if x, ok := values.Error.(*echo.HTTPError); ok {
					status = x.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			logger.WithFields(logrus.Fields{
				"remote_ip":  values.RemoteIP,
				"method":     values.Method,
				"uri":        redactURI(values.URI),
				"status":     status,
				"latency_ms": values.Latency.Milliseconds(),
			}).Info("HTTP request")

			return nil
		},
	})
}

// bodyLoggerMiddleware returns middleware that logs body of HTTP requests and their replies.
// JSON and form bodies are logged with secret parameters redacted, JWT bodies are never logged.
// Should be added as the outer middleware to catch all errors and potential status rewrites
func bodyLoggerMiddleware(skipper middleware.Skipper, logger *logrus.Entry) echo.MiddlewareFunc {
	return middleware.BodyDumpWithConfig(middleware.BodyDumpConfig{
		Handler: func(e echo.Context, request []byte, response []byte) {
			logger.Infof("HTTP request body: %s", loggableBody(e.Request().Header.Get("Content-Type"), request))
			logger.Infof("HTTP response body: %s", loggableBody(e.Response().Header().Get("Content-Type"), response))
		},
		Skipper: skipper,
	})
}

func loggableBody(contentType string, body []byte) string {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "application/json", "application/did+json", "application/problem+json":
		return redactJSON(body)
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return "(not loggable: invalid form)"
		}
		return redactValues(values).Encode()
	case "application/jwt":
		return fmt.Sprintf("(jwt, %d bytes)", len(body))
	}
	return "(not loggable: " + contentType + ")"
}

func redactJSON(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var document interface{}
	if err := json.Unmarshal(body, &document); err != nil {
		return "(not loggable: invalid JSON)"
	}
	result, _ := json.Marshal(redactDocument(document))
	return string(result)
}

func redactDocument(document interface{}) interface{} {
	switch value := document.(type) {
	case map[string]interface{}:
		for key, item := range value {
			if secretParameters[key] {
				value[key] = redacted
			} else {
				value[key] = redactDocument(item)
			}
		}
	case []interface{}:
		for i, item := range value {
			value[i] = redactDocument(item)
		}
	}
	return document
}

func redactValues(values url.Values) url.Values {
	for key := range values {
		if secretParameters[key] {
			values[key] = []string{redacted}
		}
	}
	return values
}

// redactURI returns the URI with secret query parameters redacted. URIs without secrets are returned as-is.
func redactURI(uri string) string {
	path, query, found := strings.Cut(uri, "?")
	if !found {
		return uri
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return path
	}
	for key := range values {
		if secretParameters[key] {
			return path + "?" + redactValues(values).Encode()
		}
	}
	return uri
}
