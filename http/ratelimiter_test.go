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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func Test_clientRateLimiter(t *testing.T) {
	e := echo.New()
	rlMiddleware := newClientRateLimiter(map[string][]string{
		http.MethodPost: {"/token"},
	}, RateLimitConfig{Rate: 1, Burst: 2, Interval: time.Second})
	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "test")
	}
	do := func(method, path, clientIP string) int {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = clientIP + ":1234"
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath(path)
		if err := rlMiddleware(handler)(c); err != nil {
			e.HTTPErrorHandler(err, c)
		}
		return rec.Code
	}

	testcases := []struct {
		method            string
		clientIP          string
		expectedStatus    int
		waitBeforeRequest time.Duration
		path              string
	}{
		{http.MethodPost, "10.0.0.1", http.StatusOK, 0, "/token"},                       // first request in burst
		{http.MethodPost, "10.0.0.1", http.StatusOK, 0, "/token"},                       // second request in burst
		{http.MethodPost, "10.0.0.1", http.StatusTooManyRequests, 0, "/token"},          // bucket empty
		{http.MethodPost, "10.0.0.2", http.StatusOK, 0, "/token"},                       // other client has its own bucket
		{http.MethodPost, "10.0.0.1", http.StatusOK, 0, "/other"},                       // unprotected path should still work
		{http.MethodGet, "10.0.0.1", http.StatusOK, 0, "/token"},                        // other method same path should still work
		{http.MethodPost, "10.0.0.1", http.StatusOK, 1100 * time.Millisecond, "/token"}, // bucket refilled with one token
		{http.MethodPost, "10.0.0.1", http.StatusTooManyRequests, 0, "/token"},          // bucket empty again
	}
	for _, testcase := range testcases {
		time.Sleep(testcase.waitBeforeRequest)
		actual := do(testcase.method, testcase.path, testcase.clientIP)
		assert.Equalf(t, testcase.expectedStatus, actual, "unexpected HTTP response for %s on %s from %s", testcase.method, testcase.path, testcase.clientIP)
	}
}

func Test_newClientRateLimiterStore(t *testing.T) {
	store := newClientRateLimiterStore(time.Minute, 60, 1)

	allowed, _ := store.Allow("a")
	assert.True(t, allowed)
	allowed, _ = store.Allow("a")
	assert.False(t, allowed)
	allowed, _ = store.Allow("b")
	assert.True(t, allowed)
}
