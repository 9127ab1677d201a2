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
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nuts-foundation/go-did/did"
	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/vdr/log"
	"github.com/nuts-foundation/ebsi-issuer/vdr/resolver"
)

// MethodName is the name of this DID method.
const MethodName = "web"

// maxDocumentSize limits the size of a did:web document.
const maxDocumentSize = 1 << 20

var _ resolver.DIDResolver = (*Resolver)(nil)

// Resolver is a DID resolver for the did:web method.
type Resolver struct {
	HttpClient core.HTTPRequestDoer
	// Attempts is the number of times a failed (non-404) request is attempted.
	Attempts uint
}

// NewResolver creates a new Resolver using the given HTTP client.
func NewResolver(client core.HTTPRequestDoer) *Resolver {
	return &Resolver{
		HttpClient: client,
		Attempts:   3,
	}
}

// URL returns the location of the DID document of the given did:web DID.
func URL(id did.DID) (string, error) {
	var baseID = id.ID
	var path string
	subpathIdx := strings.Index(id.ID, ":")
	if subpathIdx == -1 {
		path = "/.well-known/did.json"
	} else {
		// subpaths are encoded as / -> :
		baseID = id.ID[:subpathIdx]
		path = strings.ReplaceAll(id.ID[subpathIdx:], ":", "/") + "/did.json"
	}
	unescapedID, err := url.PathUnescape(baseID)
	if err != nil {
		return "", fmt.Errorf("invalid did:web: %w", err)
	}
	return "https://" + unescapedID + path, nil
}

// Resolve implements the DIDResolver interface.
func (w Resolver) Resolve(ctx context.Context, id did.DID) (*did.Document, error) {
	if id.Method != MethodName {
		return nil, fmt.Errorf("%w: %s", resolver.ErrDIDMethodNotSupported, id.Method)
	}
	targetURL, err := URL(id)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = retry.Do(func() error {
		data, err = w.fetch(ctx, targetURL)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(w.Attempts),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Logger().WithError(err).Debugf("Retrying did:web resolution of %s (attempt %d)", id, n+1)
		}),
	)
	if err != nil {
		return nil, err
	}
	var document did.Document
	if err = document.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("did:web JSON unmarshal error: %w", err)
	}
	if !document.ID.Equals(id) {
		return nil, fmt.Errorf("did:web document ID mismatch: %s != %s", document.ID, id)
	}
	return &document, nil
}

func (w Resolver) fetch(ctx context.Context, targetURL string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	request.Header.Set("Accept", "application/did+json, application/json")
	httpResponse, err := w.HttpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("did:web HTTP error: %w", err)
	}
	defer httpResponse.Body.Close()
	if httpResponse.StatusCode == http.StatusNotFound || httpResponse.StatusCode == http.StatusGone {
		return nil, retry.Unrecoverable(resolver.ErrNotFound)
	}
	if err = core.TestResponseCode(http.StatusOK, httpResponse); err != nil {
		return nil, fmt.Errorf("did:web non-ok HTTP status: %w", err)
	}
	ct, _, _ := strings.Cut(httpResponse.Header.Get("Content-Type"), ";")
	switch strings.TrimSpace(ct) {
	case "application/did+ld+json", "application/json", "application/did+json":
	default:
		return nil, retry.Unrecoverable(fmt.Errorf("did:web unsupported content-type: %s", ct))
	}
	data, err := io.ReadAll(io.LimitReader(httpResponse.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("did:web HTTP response read error: %w", err)
	}
	return data, nil
}
