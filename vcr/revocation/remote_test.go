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
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/nuts-foundation/ebsi-issuer/crypto"
	"github.com/nuts-foundation/ebsi-issuer/storage"
	"github.com/nuts-foundation/ebsi-issuer/vdr/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type statusListServer struct {
	statusList *StatusList
	signed     bool
	requests   atomic.Int32
}

func (s *statusListServer) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	s.requests.Add(1)
	listID := strings.TrimPrefix(request.URL.Path, "/statuslist/")
	if s.signed {
		token, err := s.statusList.SignedDocument(request.Context(), listID)
		if err != nil {
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		writer.Header().Set("Content-Type", "application/jwt")
		_, _ = writer.Write([]byte(token))
		return
	}
	document, err := s.statusList.Document(request.Context(), listID)
	if err != nil {
		writer.WriteHeader(http.StatusNotFound)
		return
	}
	writer.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(writer).Encode(document)
}

func setupRemote(t *testing.T, signed bool) (*statusListServer, *httptest.Server, *crypto.JWTSigner) {
	handler := &statusListServer{signed: signed}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	signer, err := crypto.GenerateJWTSigner(testIssuer + "#key-1")
	require.NoError(t, err)
	db := storage.NewTestStorageEngine(t).GetSQLDatabase()
	handler.statusList = NewStatusList(db, signer, server.URL, DefaultConfig())
	return handler, server, signer
}

func TestRemoteVerifier_IsRevoked(t *testing.T) {
	ctx := context.Background()

	t.Run("JSON-LD document reflects revocation", func(t *testing.T) {
		handler, server, _ := setupRemote(t, false)
		entry, err := handler.statusList.Entry(ctx, testIssuer, "urn:uuid:1", StatusPurposeRevocation)
		require.NoError(t, err)
		verifier := NewRemoteVerifier(server.Client(), nil)

		revoked, err := verifier.IsRevoked(ctx, *entry)
		require.NoError(t, err)
		assert.False(t, revoked)

		require.NoError(t, handler.statusList.Revoke(ctx, "urn:uuid:1"))
		// a fresh verifier, the other one has the list cached
		revoked, err = NewRemoteVerifier(server.Client(), nil).IsRevoked(ctx, *entry)
		require.NoError(t, err)
		assert.True(t, revoked)
	})
	t.Run("list is cached", func(t *testing.T) {
		handler, server, _ := setupRemote(t, false)
		entry, err := handler.statusList.Entry(ctx, testIssuer, "urn:uuid:1", StatusPurposeRevocation)
		require.NoError(t, err)
		verifier := NewRemoteVerifier(server.Client(), nil)

		_, err = verifier.IsRevoked(ctx, *entry)
		require.NoError(t, err)
		_, err = verifier.IsRevoked(ctx, *entry)
		require.NoError(t, err)

		assert.Equal(t, int32(1), handler.requests.Load())
	})
	t.Run("signed document", func(t *testing.T) {
		handler, server, signer := setupRemote(t, true)
		entry, err := handler.statusList.Entry(ctx, testIssuer, "urn:uuid:1", StatusPurposeRevocation)
		require.NoError(t, err)
		require.NoError(t, handler.statusList.Revoke(ctx, "urn:uuid:1"))
		ctrl := gomock.NewController(t)
		keyResolver := resolver.NewMockKeyResolver(ctrl)
		keyResolver.EXPECT().ResolveKeys(gomock.Any(), testIssuer).Return([]jwk.Key{signer.PublicKey()}, nil)
		verifier := NewRemoteVerifier(server.Client(), keyResolver)
		verifier.RequireSignature = true

		revoked, err := verifier.IsRevoked(ctx, *entry)

		require.NoError(t, err)
		assert.True(t, revoked)
	})
	t.Run("signed document with wrong key", func(t *testing.T) {
		handler, server, _ := setupRemote(t, true)
		entry, err := handler.statusList.Entry(ctx, testIssuer, "urn:uuid:1", StatusPurposeRevocation)
		require.NoError(t, err)
		otherSigner, err := crypto.GenerateJWTSigner(testIssuer + "#key-1")
		require.NoError(t, err)
		ctrl := gomock.NewController(t)
		keyResolver := resolver.NewMockKeyResolver(ctrl)
		keyResolver.EXPECT().ResolveKeys(gomock.Any(), testIssuer).Return([]jwk.Key{otherSigner.PublicKey()}, nil)

		_, err = NewRemoteVerifier(server.Client(), keyResolver).IsRevoked(ctx, *entry)

		assert.ErrorIs(t, err, crypto.ErrNoMatchingKey)
	})
	t.Run("unsigned document rejected when signature is required", func(t *testing.T) {
		handler, server, _ := setupRemote(t, false)
		entry, err := handler.statusList.Entry(ctx, testIssuer, "urn:uuid:1", StatusPurposeRevocation)
		require.NoError(t, err)
		verifier := NewRemoteVerifier(server.Client(), nil)
		verifier.RequireSignature = true

		_, err = verifier.IsRevoked(ctx, *entry)

		assert.EqualError(t, err, "status list: status list is not signed")
	})
	t.Run("unknown list is not retried", func(t *testing.T) {
		handler, server, _ := setupRemote(t, false)
		entry := StatusList2021Entry{
			ID:                   server.URL + "/statuslist/unknown#1",
			Type:                 StatusList2021EntryType,
			StatusPurpose:        "revocation",
			StatusListIndex:      "1",
			StatusListCredential: server.URL + "/statuslist/unknown",
		}

		_, err := NewRemoteVerifier(server.Client(), nil).IsRevoked(ctx, entry)

		assert.ErrorContains(t, err, "not found")
		assert.Equal(t, int32(1), handler.requests.Load())
	})
	t.Run("purpose mismatch", func(t *testing.T) {
		handler, server, _ := setupRemote(t, false)
		entry, err := handler.statusList.Entry(ctx, testIssuer, "urn:uuid:1", StatusPurposeRevocation)
		require.NoError(t, err)
		entry.StatusPurpose = "suspension"

		_, err = NewRemoteVerifier(server.Client(), nil).IsRevoked(ctx, *entry)

		assert.ErrorContains(t, err, "does not match")
	})
	t.Run("invalid entry", func(t *testing.T) {
		_, err := NewRemoteVerifier(http.DefaultClient, nil).IsRevoked(ctx, StatusList2021Entry{Type: "other"})

		assert.Error(t, err)
	})
}
