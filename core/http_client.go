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
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrHTTPSRequired is returned by StrictHTTPClient when a plain HTTP request is made in strict mode.
var ErrHTTPSRequired = errors.New("strictmode is enabled, but request is not over HTTPS")

// maxErrorBodyLength limits how much of an unexpected response body is kept in an HttpError.
const maxErrorBodyLength = 512

// HttpError describes an error returned when invoking a remote server.
type HttpError struct {
	error
	StatusCode   int
	ResponseBody []byte
}

// TestResponseCode checks whether the returned HTTP status response code matches the expected code.
// If it doesn't match it returns an HttpError containing the received status code and (part of) the response body.
func TestResponseCode(expectedStatusCode int, response *http.Response) error {
	if response.StatusCode == expectedStatusCode {
		return nil
	}
	responseData, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyLength))
	return HttpError{
		error:        fmt.Errorf("server returned HTTP %d (expected: %d)", response.StatusCode, expectedStatusCode),
		StatusCode:   response.StatusCode,
		ResponseBody: responseData,
	}
}

// HTTPRequestDoer defines the Do method of the http.Client interface.
type HTTPRequestDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// CreateHTTPClient creates a new HTTP client for the given client configuration.
// If a token is configured, it is passed as bearer token with every request.
func CreateHTTPClient(cfg ClientConfig) (HTTPRequestDoer, error) {
	authToken, err := cfg.GetAuthToken()
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: cfg.Timeout}
	if authToken == "" {
		return client, nil
	}
	return httpRequestDoerAdapter{fn: func(req *http.Request) (*http.Response, error) {
		req.Header.Set("Authorization", "Bearer "+authToken)
		return client.Do(req)
	}}, nil
}

// httpRequestDoerAdapter wraps a function in a struct, so it can be used where HTTPRequestDoer is required.
type httpRequestDoerAdapter struct {
	fn func(req *http.Request) (*http.Response, error)
}

// Do calls the wrapped function.
func (w httpRequestDoerAdapter) Do(req *http.Request) (*http.Response, error) {
	return w.fn(req)
}

// NewStrictHTTPClient creates a HTTPRequestDoer that only allows HTTPS calls when strictmode is enabled.
func NewStrictHTTPClient(strictmode bool, timeout time.Duration, tlsConfig *tls.Config) *StrictHTTPClient {
	if tlsConfig == nil {
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}
	transport := http.DefaultTransport
	// Might not be http.Transport in testing
	if httpTransport, ok := transport.(*http.Transport); ok {
		httpTransport = httpTransport.Clone()
		httpTransport.TLSClientConfig = tlsConfig
		transport = httpTransport
	}
	return &StrictHTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		strictMode: strictmode,
	}
}

// StrictHTTPClient is an HTTPRequestDoer that refuses plain HTTP requests in strict mode.
type StrictHTTPClient struct {
	client     *http.Client
	strictMode bool
}

// Do executes the request, unless strict mode forbids it.
func (s *StrictHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if s.strictMode && req.URL.Scheme != "https" {
		return nil, ErrHTTPSRequired
	}
	return s.client.Do(req)
}
