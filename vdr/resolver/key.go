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
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/nuts-foundation/go-did/did"
)

// KeyResolver resolves the public keys of a DID.
// It is the only DID capability the issuer depends on: verifying JWTs signed by wallets and issuers.
type KeyResolver interface {
	// ResolveKeys returns the public keys of the verification methods of the given DID, as JWK with the verification method ID as kid.
	// It returns ErrNotFound when the DID document can't be found, and ErrKeyNotFound if it contains no verification methods.
	ResolveKeys(ctx context.Context, id string) ([]jwk.Key, error)
}

var _ KeyResolver = DIDKeyResolver{}

// DIDKeyResolver implements KeyResolver using keys from resolved DID documents.
type DIDKeyResolver struct {
	Resolver DIDResolver
}

// ResolveKeys resolves the DID document and converts its verification methods to JWKs.
func (r DIDKeyResolver) ResolveKeys(ctx context.Context, id string) ([]jwk.Key, error) {
	parsed, err := did.ParseDID(id)
	if err != nil {
		return nil, fmt.Errorf("invalid DID (id=%s): %w", id, err)
	}
	document, err := r.Resolver.Resolve(ctx, *parsed)
	if err != nil {
		return nil, err
	}
	var result []jwk.Key
	for _, method := range document.VerificationMethod {
		publicKey, err := method.PublicKey()
		if err != nil {
			return nil, fmt.Errorf("invalid verification method (id=%s): %w", method.ID, err)
		}
		key, err := jwk.FromRaw(publicKey)
		if err != nil {
			return nil, fmt.Errorf("unsupported verification method key (id=%s): %w", method.ID, err)
		}
		if err = key.Set(jwk.KeyIDKey, method.ID.String()); err != nil {
			return nil, err
		}
		result = append(result, key)
	}
	if len(result) == 0 {
		return nil, ErrKeyNotFound
	}
	return result, nil
}
