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
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/http/log"
	"github.com/nuts-foundation/ebsi-issuer/http/tokenV2"
)

// ModuleName is the name of the HTTP engine, also used as config key.
const ModuleName = "HTTP"

// InternalPaths are the first path segments served on the internal interface.
var InternalPaths = []string{"/internal", "/status", "/health", "/metrics"}

// rateLimitedPaths are the public endpoints that mint tokens or credentials.
var rateLimitedPaths = map[string][]string{
	http.MethodPost: {
		"/token",
		"/credential",
		"/credential_deferred",
	},
}

// New returns a new HTTP engine. The callback is called when an HTTP interface shuts down unexpectedly.
func New(serverShutdownCb func()) *Engine {
	return &Engine{
		serverShutdownCb: serverShutdownCb,
		config:           DefaultConfig(),
	}
}

// Engine is the HTTP engine.
type Engine struct {
	server           *MultiEcho
	serverShutdownCb func()
	config           Config
}

// Router returns the router of the HTTP engine, which can be used by other engines to register HTTP handlers.
func (h Engine) Router() core.EchoRouter {
	return h.server
}

// Configure loads the configuration for the HTTP engine.
func (h *Engine) Configure(serverConfig core.ServerConfig) error {
	h.server = NewMultiEcho()
	log.Logger().Infof("Binding %s -> %s", RootPath, h.config.Public.Address)
	if err := h.server.Bind(RootPath, h.config.Public.Address, h.createEchoServer); err != nil {
		return err
	}
	for _, httpPath := range InternalPaths {
		log.Logger().Infof("Binding %s -> %s", httpPath, h.config.Internal.Address)
		if err := h.server.Bind(httpPath, h.config.Internal.Address, h.createEchoServer); err != nil {
			return err
		}
	}

	h.applyGlobalMiddleware(h.server)

	internalServer := h.server.getInterface(InternalPaths[0])
	publicServer := h.server.getInterface(RootPath)
	if internalServer == publicServer {
		// Both interfaces share an address, so middleware must be applied once with path-based skippers.
		if err := h.applyPublicMiddleware(publicServer, InternalPaths, serverConfig); err != nil {
			return err
		}
		return h.applyInternalMiddleware(internalServer, InternalPaths)
	}
	if err := h.applyPublicMiddleware(publicServer, nil, serverConfig); err != nil {
		return err
	}
	return h.applyInternalMiddleware(internalServer, nil)
}

func (h *Engine) createEchoServer() (EchoServer, error) {
	echoServer := core.NewEchoServer()
	echoServer.IPExtractor = clientIPExtractor(h.config.ClientIPHeaderName)
	return echoServer, nil
}

// clientIPExtractor returns an IP extractor that takes the last value of the given header,
// which is the address the closest reverse proxy saw. It falls back to the address of the connection.
func clientIPExtractor(headerName string) echo.IPExtractor {
	if headerName == "" {
		return echo.ExtractIPDirect()
	}
	direct := echo.ExtractIPDirect()
	return func(request *http.Request) string {
		values := strings.Split(request.Header.Get(headerName), ",")
		if ip := net.ParseIP(strings.TrimSpace(values[len(values)-1])); ip != nil {
			return ip.String()
		}
		return direct(request)
	}
}

// Name returns the name of the engine.
func (h *Engine) Name() string {
	return ModuleName
}

// Config returns the configuration of the HTTP engine.
func (h *Engine) Config() interface{} {
	return &h.config
}

// Start starts the HTTP engine.
func (h *Engine) Start() error {
	go func(server *MultiEcho, cancel func()) {
		if err := server.Start(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				log.Logger().
					WithError(err).
					Error("HTTP server stopped due to error")
			}
		}
		cancel()
	}(h.server, h.serverShutdownCb)
	return nil
}

// Shutdown shuts down the HTTP engine.
func (h *Engine) Shutdown() error {
	return h.server.Shutdown(context.Background())
}

// decodeURIPath is echo middleware that decodes path parameters
func decodeURIPath(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// FIXME: This is a hack because of https://github.com/labstack/echo/issues/1258
		newValues := make([]string, len(c.ParamValues()))
		for i, value := range c.ParamValues() {
			path, err := url.PathUnescape(value)
			if err != nil {
				path = value
			}
			newValues[i] = path
		}
		c.SetParamNames(c.ParamNames()...)
		c.SetParamValues(newValues...)
		return next(c)
	}
}

// matchesPath checks whether the request URI path hierarchically matches the given path.
// Examples:
// / matches /
// /foo matches /
// /foo/ matches /
// /foo/bla matches /
// /foo/bla does not match /bla
func matchesPath(requestURI string, path string) bool {
	if path == "/" {
		return true
	}
	if index := strings.IndexByte(requestURI, '?'); index >= 0 {
		requestURI = requestURI[:index]
	}
	if !strings.HasSuffix(requestURI, "/") {
		requestURI += "/"
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return requestURI == path || strings.HasPrefix(requestURI, path)
}

func matchesAnyPath(requestURI string, paths []string) bool {
	for _, path := range paths {
		if matchesPath(requestURI, path) {
			return true
		}
	}
	return false
}

func (h Engine) applyGlobalMiddleware(echoServer core.EchoRouter) {
	// Use middleware to decode URL encoded path parameters like did%3Aebsi%3A123 -> did:ebsi:123
	echoServer.Use(decodeURIPath)

	if h.config.RateLimit.Enabled() {
		echoServer.Use(newClientRateLimiter(rateLimitedPaths, h.config.RateLimit))
	}
}

// applyPublicMiddleware applies logging and CORS to the public interface.
// Requests for excludePaths are served by the same echo server but belong to the internal interface.
func (h Engine) applyPublicMiddleware(echoServer EchoServer, excludePaths []string, serverConfig core.ServerConfig) error {
	skipper := func(c echo.Context) bool {
		return matchesAnyPath(c.Request().RequestURI, excludePaths)
	}
	h.applyLogMiddleware(echoServer, skipper)

	if h.config.Public.CORS.Enabled() {
		log.Logger().Infof("Enabling CORS for HTTP endpoint: %s", h.config.Public.Address)
		if serverConfig.Strictmode {
			for _, origin := range h.config.Public.CORS.Origin {
				if strings.TrimSpace(origin) == "*" {
					return errors.New("wildcard CORS origin is not allowed in strict mode")
				}
			}
		}
		echoServer.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: h.config.Public.CORS.Origin, Skipper: skipper}))
	}
	return nil
}

// applyInternalMiddleware applies logging and authentication to the internal interface.
// When onlyPaths is set, requests for other paths are skipped.
func (h Engine) applyInternalMiddleware(echoServer EchoServer, onlyPaths []string) error {
	skipper := func(c echo.Context) bool {
		return len(onlyPaths) > 0 && !matchesAnyPath(c.Request().RequestURI, onlyPaths)
	}
	h.applyLogMiddleware(echoServer, skipper)

	cfg := h.config.Internal.Auth
	switch cfg.Type {
	// Allow API endpoints without authentication
	case NoAuth:
		return nil

	// Bearer tokens signed by an SSH key listed in the authorized keys file
	case BearerTokenAuthV2:
		log.Logger().Infof("Enabling token authentication (v2) for HTTP interface: %s%s", h.config.Internal.Address, InternalPaths[0])

		// Use the configured audience or the hostname by default
		audience := cfg.Audience
		if audience == "" {
			var err error
			audience, err = os.Hostname()
			if err != nil {
				return fmt.Errorf("unable to discover hostname: %w", err)
			}
			log.Logger().Infof("Enforcing default audience: %v", audience)
		}

		// Only the administrative API requires authentication, status and metrics are left open for health checks
		authSkipper := func(c echo.Context) bool {
			return !matchesPath(c.Request().RequestURI, InternalPaths[0])
		}
		authenticator, err := tokenV2.NewFromFile(authSkipper, audience, cfg.AuthorizedKeysPath)
		if err != nil {
			return fmt.Errorf("unable to create token v2 middleware: %v", err)
		}
		echoServer.Use(authenticator.Handler)

	// Any other configuration value causes an error condition
	default:
		return fmt.Errorf("unsupported authentication engine: %v", cfg.Type)
	}
	return nil
}

func (h Engine) applyLogMiddleware(echoServer EchoServer, skipper middleware.Skipper) {
	loggerSkipper := func(c echo.Context) bool {
		// Aside from interface-driven skipper, skip logging for calls to /metrics, /status, and /health
		return skipper(c) || matchesAnyPath(c.Request().RequestURI, []string{"/metrics", "/status", "/health"})
	}
	if h.config.Log != LogNothingLevel {
		// Log when level is set to LogMetadataLevel or LogMetadataAndBodyLevel
		echoServer.Use(requestLoggerMiddleware(loggerSkipper, log.Logger()))
	}
	if h.config.Log == LogMetadataAndBodyLevel {
		echoServer.Use(bodyLoggerMiddleware(skipper, log.Logger()))
	}
}
