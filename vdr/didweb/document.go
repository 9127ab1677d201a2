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

package didweb

import (
	"errors"
	"net/url"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwk"
	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/did"
)

// DIDFromURL returns the did:web DID that resolves to the given base URL.
// A URL without a path maps to the domain DID, path segments are appended as colon-separated parts.
func DIDFromURL(baseURL *url.URL) (did.DID, error) {
	if baseURL.Host == "" {
		return did.DID{}, errors.New("URL has no host")
	}
	id := "did:web:" + strings.ReplaceAll(baseURL.Host, ":", "%3A")
	path := strings.Trim(baseURL.Path, "/")
	if path != "" {
		id += ":" + strings.ReplaceAll(path, "/", ":")
	}
	parsed, err := did.ParseDID(id)
	if err != nil {
		return did.DID{}, err
	}
	return *parsed, nil
}

// Document returns a DID document for the given did:web DID, with the key as its sole verification method.
// The key's kid must be a DID URL of the DID.
func Document(id did.DID, key jwk.Key) (*did.Document, error) {
	keyID, err := did.ParseDIDURL(key.KeyID())
	if err != nil {
		return nil, err
	}
	if !keyID.DID.Equals(id) {
		return nil, errors.New("key ID does not belong to the DID")
	}
	var rawKey interface{}
	if err = key.Raw(&rawKey); err != nil {
		return nil, err
	}
	vm, err := did.NewVerificationMethod(*keyID, ssi.JsonWebKey2020, id, rawKey)
	if err != nil {
		return nil, err
	}
	document := &did.Document{
		Context: []interface{}{did.DIDContextV1URI(), ssi.MustParseURI(jsonWebKey2020Context)},
		ID:      id,
	}
	document.AddAssertionMethod(vm)
	document.AddAuthenticationMethod(vm)
	return document, nil
}

const jsonWebKey2020Context = "https://w3id.org/security/suites/jws-2020/v1"
