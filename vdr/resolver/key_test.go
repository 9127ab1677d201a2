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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/did"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticDIDResolver map[string]*did.Document

func (s staticDIDResolver) Resolve(_ context.Context, id did.DID) (*did.Document, error) {
	document, ok := s[id.String()]
	if !ok {
		return nil, ErrNotFound
	}
	return document, nil
}

func TestMethodResolver_Resolve(t *testing.T) {
	id := did.MustParseDID("did:web:example.com")
	document := &did.Document{ID: id}
	resolver := MethodResolver{"web": staticDIDResolver{id.String(): document}}

	t.Run("ok", func(t *testing.T) {
		result, err := resolver.Resolve(context.Background(), id)

		require.NoError(t, err)
		assert.Same(t, document, result)
	})
	t.Run("unsupported method", func(t *testing.T) {
		_, err := resolver.Resolve(context.Background(), did.MustParseDID("did:example:123"))

		assert.ErrorIs(t, err, ErrDIDMethodNotSupported)
		assert.EqualError(t, err, "DID method not supported: example")
	})
}

func TestDIDKeyResolver_ResolveKeys(t *testing.T) {
	id := did.MustParseDID("did:web:example.com")
	privateKey, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	vm, err := did.NewVerificationMethod(did.MustParseDIDURL("did:web:example.com#key-1"), ssi.JsonWebKey2020, id, privateKey.Public())
	require.NoError(t, err)
	withKey := &did.Document{ID: id}
	withKey.AddAssertionMethod(vm)
	empty := did.MustParseDID("did:web:empty.example.com")
	resolver := DIDKeyResolver{Resolver: staticDIDResolver{
		id.String():    withKey,
		empty.String(): {ID: empty},
	}}

	t.Run("ok", func(t *testing.T) {
		keys, err := resolver.ResolveKeys(context.Background(), id.String())

		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, "did:web:example.com#key-1", keys[0].KeyID())
	})
	t.Run("invalid DID", func(t *testing.T) {
		_, err := resolver.ResolveKeys(context.Background(), "not a DID")

		assert.ErrorContains(t, err, "invalid DID (id=not a DID)")
	})
	t.Run("not found", func(t *testing.T) {
		_, err := resolver.ResolveKeys(context.Background(), "did:web:unknown.example.com")

		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("no verification methods", func(t *testing.T) {
		_, err := resolver.ResolveKeys(context.Background(), empty.String())

		assert.ErrorIs(t, err, ErrKeyNotFound)
	})
}
