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
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// clientRateLimiterStore keeps a token bucket per client identifier (IP address).
// Buckets of clients that haven't been seen for a while are evicted.
type clientRateLimiterStore struct {
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

// Allow checks whether the client identified by identifier has not exceeded its rate.
func (s *clientRateLimiterStore) Allow(identifier string) (bool, error) {
	if existing, ok := s.limiters.Get(identifier); ok {
		return existing.(*rate.Limiter).Allow(), nil
	}
	limiter := rate.NewLimiter(s.limit, s.burst)
	// Add fails if another request created the limiter concurrently, use that one then
	if err := s.limiters.Add(identifier, limiter, cache.DefaultExpiration); err != nil {
		if existing, ok := s.limiters.Get(identifier); ok {
			limiter = existing.(*rate.Limiter)
		}
	}
	return limiter.Allow(), nil
}

// newClientRateLimiterStore creates a new rate limiter store that allows limitPerInterval requests per interval per client, with the given burst.
func newClientRateLimiterStore(interval time.Duration, limitPerInterval float64, burst int) *clientRateLimiterStore {
	limit := rate.Every(time.Duration(float64(interval) / limitPerInterval))
	// a bucket is full again after burst/limit, after which forgetting it makes no difference
	expiry := time.Duration(float64(burst)/float64(limit)*float64(time.Second)) + time.Minute
	return &clientRateLimiterStore{
		limiters: cache.New(expiry, expiry),
		limit:    limit,
		burst:    burst,
	}
}

// newClientRateLimiter creates a rate limiter middleware, limiting requests per client IP.
// It accepts a list of paths which will become limited. Paths are matched against the exact router path, so you can use paths that contain a variable.
func newClientRateLimiter(protectedPaths map[string][]string, cfg RateLimitConfig) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		// Returning true means skipping the middleware
		Skipper: func(c echo.Context) bool {
			for _, path := range protectedPaths[c.Request().Method] {
				if c.Path() == path {
					return false
				}
			}
			return true
		},
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return &echo.HTTPError{
				Code:     middleware.ErrExtractorError.Code,
				Message:  middleware.ErrExtractorError.Message,
				Internal: err,
			}
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return &echo.HTTPError{
				Code:     middleware.ErrRateLimitExceeded.Code,
				Message:  middleware.ErrRateLimitExceeded.Message,
				Internal: err,
			}
		},
		Store: newClientRateLimiterStore(cfg.Interval, cfg.Rate, cfg.Burst),
	})
}
