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

package vdr

import (
	"errors"

	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/vdr/didkey"
	"github.com/nuts-foundation/ebsi-issuer/vdr/didweb"
	"github.com/nuts-foundation/ebsi-issuer/vdr/resolver"
)

var _ core.Injectable = (*Module)(nil)
var _ core.Configurable = (*Module)(nil)

// Module is the VDR engine. It resolves the keys of did:key and did:web DIDs for JWT verification.
type Module struct {
	config      Config
	keyResolver resolver.KeyResolver
}

// NewVDR creates a new VDR engine with the default config.
func NewVDR() *Module {
	return &Module{config: DefaultConfig()}
}

// Name returns the name of the engine.
func (m *Module) Name() string {
	return ModuleName
}

// Config returns a pointer to the engine's config.
func (m *Module) Config() interface{} {
	return &m.config
}

// Configure sets up the DID method resolvers.
func (m *Module) Configure(config core.ServerConfig) error {
	if m.config.CacheTTL < 0 {
		return errors.New("vdr.cachettl must not be negative")
	}
	methods := resolver.MethodResolver{
		didkey.MethodName: didkey.NewResolver(),
		didweb.MethodName: didweb.NewResolver(core.NewStrictHTTPClient(config.Strictmode, m.config.Timeout, nil)),
	}
	m.keyResolver = resolver.DIDKeyResolver{Resolver: methods}
	if m.config.CacheTTL > 0 {
		m.keyResolver = resolver.NewCachingKeyResolver(m.keyResolver, m.config.CacheTTL)
	}
	return nil
}

// KeyResolver returns the key resolver. It is only available after Configure.
func (m *Module) KeyResolver() resolver.KeyResolver {
	return m.keyResolver
}
