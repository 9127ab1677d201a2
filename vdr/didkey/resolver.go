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

package didkey

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multicodec"
	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/ebsi-issuer/vdr/resolver"
)

// MethodName is the name of this DID method.
const MethodName = "key"

var _ resolver.DIDResolver = &Resolver{}

var errInvalidPublicKeyLength = errors.New("invalid did:key: invalid public key length")

// NewResolver creates a new Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolver resolves did:key DIDs by decoding the public key from the method-specific identifier.
// Besides the common key types it supports the jwk_jcs-pub multicodec used by EBSI natural person wallets.
type Resolver struct{}

// Resolve decodes the did:key and returns a DID document with a single JsonWebKey2020 verification method.
func (r Resolver) Resolve(_ context.Context, id did.DID) (*did.Document, error) {
	if id.Method != MethodName {
		return nil, fmt.Errorf("%w: %s", resolver.ErrDIDMethodNotSupported, id.Method)
	}
	key, err := decodePublicKey(id.ID)
	if err != nil {
		return nil, err
	}
	document := did.Document{
		Context: []interface{}{
			did.DIDContextV1URI(),
			ssi.MustParseURI("https://w3c-ccg.github.io/lds-jws2020/contexts/lds-jws2020-v1.json"),
		},
		ID: id,
	}
	keyID := did.DIDURL{DID: id}
	keyID.Fragment = id.ID
	vm, err := did.NewVerificationMethod(keyID, ssi.JsonWebKey2020, id, key)
	if err != nil {
		return nil, err
	}
	document.AddAssertionMethod(vm)
	document.AddAuthenticationMethod(vm)
	return &document, nil
}

func decodePublicKey(encodedKey string) (crypto.PublicKey, error) {
	if len(encodedKey) == 0 || encodedKey[0] != 'z' {
		return nil, errors.New("did:key does not start with 'z'")
	}
	mcBytes, err := base58.Decode(encodedKey[1:])
	if err != nil {
		return nil, fmt.Errorf("did:key: invalid base58btc: %w", err)
	}
	reader := bytes.NewReader(mcBytes)
	keyType, err := binary.ReadUvarint(reader)
	if err != nil {
		return nil, fmt.Errorf("did:key: invalid multicodec value: %w", err)
	}
	keyBytes, _ := io.ReadAll(reader)

	switch multicodec.Code(keyType) {
	case multicodec.Ed25519Pub:
		if len(keyBytes) != ed25519.PublicKeySize {
			return nil, errInvalidPublicKeyLength
		}
		return ed25519.PublicKey(keyBytes), nil
	case multicodec.P256Pub:
		return unmarshalEC(elliptic.P256(), 33, keyBytes)
	case multicodec.P384Pub:
		return unmarshalEC(elliptic.P384(), 49, keyBytes)
	case multicodec.Jwk_jcsPub:
		return decodeJWK(keyBytes)
	default:
		return nil, fmt.Errorf("did:key: unsupported public key type: 0x%x", keyType)
	}
}

func decodeJWK(data []byte) (crypto.PublicKey, error) {
	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, fmt.Errorf("did:key: invalid jwk_jcs-pub key: %w", err)
	}
	if _, hasD := key.Get("d"); hasD {
		return nil, errors.New("did:key: jwk_jcs-pub contains a private key")
	}
	var result interface{}
	if err = key.Raw(&result); err != nil {
		return nil, fmt.Errorf("did:key: invalid jwk_jcs-pub key: %w", err)
	}
	return result, nil
}

func unmarshalEC(curve elliptic.Curve, expectedLen int, pubKeyBytes []byte) (*ecdsa.PublicKey, error) {
	if len(pubKeyBytes) != expectedLen {
		return nil, errInvalidPublicKeyLength
	}
	x, y := elliptic.UnmarshalCompressed(curve, pubKeyBytes)
	if x == nil {
		return nil, errors.New("did:key: invalid compressed EC point")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}
