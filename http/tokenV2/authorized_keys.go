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

package tokenV2

import (
	"crypto/rsa"
	b64 "encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/nuts-foundation/ebsi-issuer/http/log"
	"golang.org/x/crypto/ssh"
)

// authorizedKey is an SSH authorized key
type authorizedKey struct {
	Key     ssh.PublicKey
	Comment string
	Options []string
	JWK     jwk.Key
	// Thumbprint is the RFC 7638 JWK thumbprint of the key, which is accepted as kid next to the SSH fingerprint.
	Thumbprint string
}

// String returns a string representation of an authorized key
func (a authorizedKey) String() string {
	encodedOptions := strings.Join(a.Options, ",")
	if encodedOptions != "" {
		encodedOptions += " "
	}
	return fmt.Sprintf("%v%v %v %v", encodedOptions, a.Key.Type(), b64.StdEncoding.EncodeToString(a.Key.Marshal()), a.Comment)
}

// matchesKeyID returns whether the kid of a JWT header identifies this key.
func (a authorizedKey) matchesKeyID(kid string) bool {
	return kid == a.JWK.KeyID() || kid == a.Thumbprint
}

// jwkFromSSHKey converts a standard SSH library key to a JWX jwk.Key type
func jwkFromSSHKey(key ssh.PublicKey) (jwk.Key, error) {
	// The optional ssh.CryptoPublicKey interface returns the standard go crypto primitive jwk needs
	cryptoPublicKey, ok := key.(ssh.CryptoPublicKey)
	if !ok {
		return nil, fmt.Errorf("key (%T) does not implement the ssh.CryptoPublicKey interface and cannot be converted", key)
	}
	converted, err := jwk.FromRaw(cryptoPublicKey.CryptoPublicKey())
	if err != nil {
		return nil, err
	}
	if err := converted.Set(jwk.KeyIDKey, ssh.FingerprintSHA256(key)); err != nil {
		return nil, fmt.Errorf("failed to set key id: %w", err)
	}
	return converted, nil
}

// parseAuthorizedKeys parses the contents of an SSH authorized_keys file
// into data structures and usable crypto primitives
func parseAuthorizedKeys(contents []byte) ([]authorizedKey, error) {
	var authorizedKeys []authorizedKey
	for _, line := range strings.Split(string(contents), "\n") {
		line = strings.Trim(line, " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		publicKey, comment, options, rest, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("unparseable line (%v): %w", line, err)
		}
		// DSA keys can't be converted to JWK keys
		if publicKey.Type() == ssh.KeyAlgoDSA {
			log.Logger().Warnf("ignoring insecure key: %v", line)
			continue
		}
		if len(rest) > 0 {
			return nil, fmt.Errorf("line not completely parseable: %v: rest=%v", line, string(rest))
		}
		// the comment is the user name, it must match the iss claim of tokens signed by the key
		if comment == "" {
			return nil, fmt.Errorf("authorized key has no user (comment): %v", line)
		}

		jwkPublicKey, err := jwkFromSSHKey(publicKey)
		if err != nil {
			return nil, err
		}
		if err := insecureKey(jwkPublicKey); err != nil {
			log.Logger().Warnf("ignoring insecure key: %v", line)
			continue
		}
		thumbprint, err := jwkPublicKey.Thumbprint(cryptoHash)
		if err != nil {
			return nil, fmt.Errorf("unable to compute thumbprint: %w", err)
		}

		authorizedKeys = append(authorizedKeys, authorizedKey{
			Key:        publicKey,
			Comment:    comment,
			Options:    options,
			JWK:        jwkPublicKey,
			Thumbprint: b64.RawURLEncoding.EncodeToString(thumbprint),
		})
	}
	return authorizedKeys, nil
}

// insecureKey returns a non-nil error if a key is considered inherently insecure
func insecureKey(key jwk.Key) error {
	switch key.KeyType() {
	// RSA keys are only secure if they are at least 2048-bits in length
	case jwa.RSA:
		var rsaKey rsa.PublicKey
		if err := key.Raw(&rsaKey); err != nil {
			return fmt.Errorf("unable to convert jwk key: %w", err)
		}
		if rsaKey.N.BitLen() >= 2048 {
			return nil
		}
		return errors.New("RSA keys must be at least 2048-bit")
	default:
		return nil
	}
}
