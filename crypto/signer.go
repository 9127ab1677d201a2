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

package crypto

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/nuts-foundation/ebsi-issuer/crypto/log"
)

// ErrUnsupportedSigningKey is returned when a key other than an ECDSA P-256 private key is used for signing.
var ErrUnsupportedSigningKey = errors.New("signing key algorithm not supported, only ES256 (P-256) keys are")

// SigningAlgorithm is the algorithm of every JWT the issuer signs.
const SigningAlgorithm = jwa.ES256

// Signer signs JWTs with the issuer's key.
type Signer interface {
	// KeyID returns the kid header set on every signed JWT.
	KeyID() string
	// PublicKey returns the public key that verifies the signed JWTs.
	PublicKey() jwk.Key
	// Sign signs the claims as compact JWS.
	Sign(ctx context.Context, claims map[string]interface{}, headers map[string]interface{}) (string, error)
}

var _ Signer = (*JWTSigner)(nil)

// JWTSigner signs claim sets with the issuer's private key.
// It is created explicitly before any engine uses it, so it is always usable once constructed.
type JWTSigner struct {
	kid        string
	privateKey jwk.Key
	publicKey  jwk.Key
}

// NewJWTSigner creates a JWTSigner for the given key. The kid is placed in the header of every JWT it signs,
// typically a DID URL referencing the verification method of the issuer's DID.
func NewJWTSigner(key crypto.Signer, kid string) (*JWTSigner, error) {
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok || ecKey.Curve != elliptic.P256() {
		return nil, ErrUnsupportedSigningKey
	}
	if kid == "" {
		return nil, errors.New("key ID is required")
	}
	privateKey, err := jwk.FromRaw(ecKey)
	if err != nil {
		return nil, err
	}
	if err = privateKey.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, err
	}
	publicKey, err := privateKey.PublicKey()
	if err != nil {
		return nil, err
	}
	_ = publicKey.Set(jwk.AlgorithmKey, SigningAlgorithm)
	_ = publicKey.Set(jwk.KeyUsageKey, jwk.ForSignature)
	return &JWTSigner{
		kid:        kid,
		privateKey: privateKey,
		publicKey:  publicKey,
	}, nil
}

// LoadJWTSigner reads a PEM encoded (PKCS#8 or SEC 1) P-256 private key from the given file.
func LoadJWTSigner(path string, kid string) (*JWTSigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read private key file: %w", err)
	}
	parsed, err := jwk.ParseKey(data, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key file: %w", err)
	}
	var privateKey ecdsa.PrivateKey
	if err = parsed.Raw(&privateKey); err != nil {
		return nil, ErrUnsupportedSigningKey
	}
	return NewJWTSigner(&privateKey, kid)
}

// GenerateJWTSigner creates a JWTSigner with a new, ephemeral P-256 key.
func GenerateJWTSigner(kid string) (*JWTSigner, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewJWTSigner(key, kid)
}

// LoadOrCreateJWTSigner loads the key from the given file, or generates a new key and writes it to the file if it does not exist.
func LoadOrCreateJWTSigner(path string, kid string) (*JWTSigner, error) {
	if _, err := os.Stat(path); err == nil {
		return LoadJWTSigner(path, kid)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	log.Logger().
		WithField("file", path).
		Warn("Issuer private key file does not exist, generating a new key")
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	if err = os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	if err = os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0600); err != nil {
		return nil, fmt.Errorf("unable to write private key file: %w", err)
	}
	return NewJWTSigner(key, kid)
}

// KeyID returns the kid placed in the header of signed JWTs.
func (s *JWTSigner) KeyID() string {
	return s.kid
}

// PublicKey returns the public key as JWK.
func (s *JWTSigner) PublicKey() jwk.Key {
	return s.publicKey
}

// JWKS returns a key set containing the public key, for publishing on the jwks_uri.
func (s *JWTSigner) JWKS() jwk.Set {
	set := jwk.NewSet()
	_ = set.AddKey(s.publicKey)
	return set
}

// Sign signs the claims as compact JWS with alg ES256. The kid header is always set to the signer's key ID,
// the typ header defaults to JWT unless overridden by the given headers.
func (s *JWTSigner) Sign(_ context.Context, claims map[string]interface{}, headers map[string]interface{}) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", WrapSigningFailure(err)
	}
	hdr := jws.NewHeaders()
	_ = hdr.Set(jws.TypeKey, "JWT")
	for k, v := range headers {
		if err = hdr.Set(k, v); err != nil {
			return "", WrapSigningFailure(fmt.Errorf("invalid header %s: %w", k, err))
		}
	}
	_ = hdr.Set(jws.KeyIDKey, s.kid)
	signed, err := jws.Sign(payload, jws.WithKey(SigningAlgorithm, s.privateKey, jws.WithProtectedHeaders(hdr)))
	if err != nil {
		return "", WrapSigningFailure(err)
	}
	return string(signed), nil
}

// WrapSigningFailure marks the given error as signing failure.
func WrapSigningFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrSigningFailure, err)
}
