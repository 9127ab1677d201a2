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
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/http/log"
)

// RootPath is the bind of every route whose first path segment isn't bound explicitly.
const RootPath = "/"

// EchoServer is an HTTP interface: a router that can be started on an address. *echo.Echo implements it.
type EchoServer interface {
	core.EchoRouter
	Start(address string) error
	Shutdown(ctx context.Context) error
}

var _ EchoServer = (*echo.Echo)(nil)
var _ core.EchoRouter = (*MultiEcho)(nil)

// NewMultiEcho creates a MultiEcho without binds.
func NewMultiEcho() *MultiEcho {
	return &MultiEcho{
		interfaces: map[string]EchoServer{},
		binds:      map[string]string{},
	}
}

// MultiEcho dispatches routes to HTTP interfaces by the first segment of their path.
// This is how the administrative API, status and metrics endpoints end up on the internal interface,
// while the protocol endpoints are served on the public one.
type MultiEcho struct {
	// interfaces maps listen addresses to their server
	interfaces map[string]EchoServer
	// binds maps the first path segment to a listen address
	binds map[string]string
}

// Bind binds the given path (first segment of the URL) to the HTTP interface on the given address.
// Interfaces are created on first use of an address, so multiple binds can share one interface.
func (c *MultiEcho) Bind(path string, address string, creatorFn func() (EchoServer, error)) error {
	if address == "" {
		return errors.New("empty address")
	}
	if strings.Contains(strings.Trim(path, "/"), "/") {
		return fmt.Errorf("bind can't contain subpaths: %s", path)
	}
	bind := bindOf(path)
	if _, exists := c.binds[bind]; exists {
		return fmt.Errorf("http bind already exists: %s", bind)
	}
	c.binds[bind] = address
	if _, exists := c.interfaces[address]; exists {
		return nil
	}
	server, err := creatorFn()
	if err != nil {
		return err
	}
	c.interfaces[address] = server
	return nil
}

// Start starts all interfaces and blocks until they have all stopped.
// The first error of an interface is returned.
func (c *MultiEcho) Start() error {
	var wg sync.WaitGroup
	errs := make(chan error, len(c.interfaces))
	for address, server := range c.interfaces {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Logger().Debugf("Starting HTTP interface: %s", address)
			if err := server.Start(address); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	return <-errs
}

// Shutdown stops all interfaces. It continues when an interface fails to stop.
func (c *MultiEcho) Shutdown(ctx context.Context) error {
	var result error
	for address, server := range c.interfaces {
		if err := server.Shutdown(ctx); err != nil {
			log.Logger().
				WithError(err).
				Errorf("Unable to shutdown HTTP interface: %s", address)
			result = errors.New("one or more HTTP interfaces failed to shutdown")
		}
	}
	return result
}

// Use applies the middleware to all interfaces. It must be called after all binds have been made.
func (c *MultiEcho) Use(middleware ...echo.MiddlewareFunc) {
	for _, server := range c.interfaces {
		server.Use(middleware...)
	}
}

// Add registers the route on the interface its path is bound to, or the RootPath interface when it isn't bound.
func (c *MultiEcho) Add(method, path string, handler echo.HandlerFunc, middleware ...echo.MiddlewareFunc) *echo.Route {
	return c.getInterface(path).Add(method, path, handler, middleware...)
}

// DELETE registers a new DELETE route.
func (c *MultiEcho) DELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route {
	return c.Add(http.MethodDelete, path, h, m...)
}

// GET registers a new GET route.
func (c *MultiEcho) GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route {
	return c.Add(http.MethodGet, path, h, m...)
}

// POST registers a new POST route.
func (c *MultiEcho) POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route {
	return c.Add(http.MethodPost, path, h, m...)
}

// PUT registers a new PUT route.
func (c *MultiEcho) PUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route {
	return c.Add(http.MethodPut, path, h, m...)
}

func (c *MultiEcho) getInterface(path string) EchoServer {
	if address, bound := c.binds[bindOf(path)]; bound {
		return c.interfaces[address]
	}
	return c.interfaces[c.binds[RootPath]]
}

// bindOf returns the lower-cased first segment of the path, e.g. /internal for /internal/offers.
func bindOf(path string) string {
	first, _, _ := strings.Cut(strings.Trim(path, "/"), "/")
	if first == "" {
		return RootPath
	}
	return "/" + strings.ToLower(first)
}
