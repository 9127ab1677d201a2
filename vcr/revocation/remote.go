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

package revocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/eko/gocache/store/go_cache/v4"
	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/crypto"
	"github.com/nuts-foundation/ebsi-issuer/vcr/log"
	gocacheclient "github.com/patrickmn/go-cache"
)

// maxAgeExternal is how long a downloaded status list is used before it is fetched again.
const maxAgeExternal = 15 * time.Minute

// maxStatusListDocumentSize limits the size of a downloaded status list document.
const maxStatusListDocumentSize = 4 << 20

// RemoteVerifier checks credential status entries against (remote) status list documents.
// Downloaded lists are cached for 15 minutes.
type RemoteVerifier struct {
	client      core.HTTPRequestDoer
	keyResolver crypto.KeyResolver
	cache       *cache.Cache[[]byte]
	// Attempts is the number of times a failed download is attempted.
	Attempts uint
	// RequireSignature rejects status lists that aren't served as JWT.
	RequireSignature bool
}

// NewRemoteVerifier creates a RemoteVerifier that downloads status lists with the given client
// and verifies signed (JWT) status lists with keys resolved from the issuer's DID.
func NewRemoteVerifier(client core.HTTPRequestDoer, keyResolver crypto.KeyResolver) *RemoteVerifier {
	gocacheClient := gocacheclient.New(maxAgeExternal, 2*maxAgeExternal)
	return &RemoteVerifier{
		client:      client,
		keyResolver: keyResolver,
		cache:       cache.New[[]byte](go_cache.NewGoCache(gocacheClient)),
		Attempts:    3,
	}
}

// IsRevoked returns true if the entry's bit is set in the status list it refers to.
func (v *RemoteVerifier) IsRevoked(ctx context.Context, entry StatusList2021Entry) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, err
	}
	index, _ := entry.Index()
	subject, err := v.statusList(ctx, entry.StatusListCredential)
	if err != nil {
		return false, fmt.Errorf("status list: %w", err)
	}
	if subject.StatusPurpose != entry.StatusPurpose {
		return false, fmt.Errorf("StatusList2021Credential.credentialSubject.statusPurpose='%s' does not match credentialStatus.statusPurpose='%s'", subject.StatusPurpose, entry.StatusPurpose)
	}
	expanded, err := expand(subject.EncodedList)
	if err != nil {
		return false, fmt.Errorf("credentialSubject.encodedList is invalid: %w", err)
	}
	return expanded.bit(index)
}

func (v *RemoteVerifier) statusList(ctx context.Context, listURL string) (*StatusList2021CredentialSubject, error) {
	var subject StatusList2021CredentialSubject
	if cached, err := v.cache.Get(ctx, listURL); err == nil {
		if err = json.Unmarshal(cached, &subject); err == nil {
			return &subject, nil
		}
	}
	document, err := v.download(ctx, listURL)
	if err != nil {
		return nil, err
	}
	if err = document.Validate(); err != nil {
		return nil, err
	}
	if document.ID != listURL && !strings.HasPrefix(document.CredentialSubject.ID, listURL) {
		return nil, fmt.Errorf("wrong credential: expected '%s', got '%s'", listURL, document.ID)
	}
	if _, err = expand(document.CredentialSubject.EncodedList); err != nil {
		return nil, fmt.Errorf("credentialSubject.encodedList is invalid: %w", err)
	}
	subject = document.CredentialSubject
	data, _ := json.Marshal(subject)
	if err = v.cache.Set(ctx, listURL, data, store.WithExpiration(maxAgeExternal)); err != nil {
		log.Logger().WithError(err).Debug("Unable to cache status list")
	}
	return &subject, nil
}

func (v *RemoteVerifier) download(ctx context.Context, listURL string) (*StatusList2021Credential, error) {
	var data []byte
	var contentType string
	err := retry.Do(func() error {
		var err error
		data, contentType, err = v.fetch(ctx, listURL)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(v.Attempts),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(string(data))
	if strings.Contains(contentType, "jwt") || strings.HasPrefix(body, "ey") {
		return v.parseJWT(ctx, body)
	}
	if v.RequireSignature {
		return nil, errors.New("status list is not signed")
	}
	var document StatusList2021Credential
	if err = json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("invalid status list document: %w", err)
	}
	return &document, nil
}

func (v *RemoteVerifier) parseJWT(ctx context.Context, token string) (*StatusList2021Credential, error) {
	alg, err := crypto.AlgorithmIn(token, crypto.HolderAlgorithms...)
	if err != nil {
		return nil, err
	}
	verified, err := crypto.VerifyJWTWithResolver(ctx, token, v.keyResolver, alg)
	if err != nil {
		return nil, err
	}
	vcClaim, ok := verified.Claims.Get("vc")
	if !ok {
		return nil, errors.New("status list JWT has no vc claim")
	}
	var document StatusList2021Credential
	if err = remarshal(vcClaim, &document); err != nil {
		return nil, fmt.Errorf("invalid status list document: %w", err)
	}
	if document.Issuer != verified.Issuer() {
		return nil, fmt.Errorf("%w: vc.issuer does not match iss", crypto.ErrIssuerMismatch)
	}
	return &document, nil
}

func (v *RemoteVerifier) fetch(ctx context.Context, listURL string) ([]byte, string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, "", retry.Unrecoverable(err)
	}
	request.Header.Set("Accept", "application/jwt, application/vc+jwt, application/json, application/ld+json")
	response, err := v.client.Do(request)
	if err != nil {
		return nil, "", err
	}
	defer response.Body.Close()
	if response.StatusCode == http.StatusNotFound || response.StatusCode == http.StatusGone {
		return nil, "", retry.Unrecoverable(fmt.Errorf("fetching StatusList2021Credential from '%s' failed: not found", listURL))
	}
	if err = core.TestResponseCode(http.StatusOK, response); err != nil {
		return nil, "", fmt.Errorf("fetching StatusList2021Credential from '%s' failed: %w", listURL, err)
	}
	data, err := io.ReadAll(io.LimitReader(response.Body, maxStatusListDocumentSize))
	if err != nil {
		return nil, "", err
	}
	return data, response.Header.Get("Content-Type"), nil
}

// remarshal converts a decoded JSON value (e.g. a JWT claim) into target.
func remarshal(source interface{}, target interface{}) error {
	data, err := json.Marshal(source)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func toMap(source interface{}) (map[string]interface{}, error) {
	var result map[string]interface{}
	err := remarshal(source, &result)
	return result, err
}
