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

package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/nuts-foundation/go-did/did"
)

// ErrDIDMethodNotSupported is returned when a DID method is not supported by the DID resolver
var ErrDIDMethodNotSupported = errors.New("DID method not supported")

// ErrNotFound The DID resolver was unable to find the DID document resulting from this resolution request.
var ErrNotFound = errors.New("unable to find the DID document")

// ErrKeyNotFound is returned when the DID document does not contain any usable verification method.
var ErrKeyNotFound = errors.New("key not found in DID document")

// DIDResolver is the interface for DID resolvers: the process of getting the backing document of a DID.
type DIDResolver interface {
	// Resolve returns the DID Document for the provided DID.
	// It returns ErrNotFound if there is no corresponding DID document.
	Resolve(ctx context.Context, id did.DID) (*did.Document, error)
}

var _ DIDResolver = MethodResolver{}

// MethodResolver dispatches resolution to the resolver registered for the DID's method.
type MethodResolver map[string]DIDResolver

// Resolve resolves the DID using the resolver registered for its method.
func (m MethodResolver) Resolve(ctx context.Context, id did.DID) (*did.Document, error) {
	resolver, ok := m[id.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDIDMethodNotSupported, id.Method)
	}
	return resolver.Resolve(ctx, id)
}
