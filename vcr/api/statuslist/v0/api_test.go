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

package v0

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/crypto"
	"github.com/nuts-foundation/ebsi-issuer/storage"
	"github.com/nuts-foundation/ebsi-issuer/vcr"
	"github.com/nuts-foundation/ebsi-issuer/vcr/revocation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const issuerDID = "did:web:issuer.example.com"

func TestWrapper_GetStatusList(t *testing.T) {
	signer, err := crypto.GenerateJWTSigner(issuerDID + "#key-1")
	require.NoError(t, err)
	statusList := revocation.NewStatusList(storage.NewTestStorageEngine(t).GetSQLDatabase(), signer, "https://issuer.example.com", revocation.DefaultConfig())
	list, err := statusList.GetOrCreate(context.Background(), issuerDID, revocation.StatusPurposeRevocation)
	require.NoError(t, err)
	ctrl := gomock.NewController(t)
	service := vcr.NewMockVCR(ctrl)
	service.EXPECT().StatusList().Return(statusList).AnyTimes()
	server := core.NewEchoServer()
	Wrapper{VCR: service}.Routes(server)
	get := func(path string, accept string) *httptest.ResponseRecorder {
		request := httptest.NewRequest(http.MethodGet, path, nil)
		if accept != "" {
			request.Header.Set("Accept", accept)
		}
		recorder := httptest.NewRecorder()
		server.ServeHTTP(recorder, request)
		return recorder
	}

	t.Run("JSON-LD", func(t *testing.T) {
		response := get("/statuslist/"+list.ID, "application/json")

		require.Equal(t, http.StatusOK, response.Code)
		var document revocation.StatusList2021Credential
		require.NoError(t, json.Unmarshal(response.Body.Bytes(), &document))
		assert.Equal(t, list.URL, document.ID)
		assert.Equal(t, issuerDID, document.Issuer)
		assert.Equal(t, "revocation", string(document.CredentialSubject.StatusPurpose))
	})
	t.Run("JWT", func(t *testing.T) {
		response := get("/statuslist/"+list.ID, "application/jwt, application/json")

		require.Equal(t, http.StatusOK, response.Code)
		assert.Equal(t, JWTContentType, response.Header().Get("Content-Type"))
		token, err := crypto.DecodeJWT(response.Body.String())
		require.NoError(t, err)
		assert.Equal(t, issuerDID+"#key-1", token.KeyID())
		assert.Equal(t, issuerDID, token.Issuer())
	})
	t.Run("no Accept header", func(t *testing.T) {
		response := get("/statuslist/"+list.ID, "")

		assert.Equal(t, http.StatusOK, response.Code)
		assert.True(t, strings.HasPrefix(response.Header().Get("Content-Type"), "application/json"))
	})
	t.Run("unknown list", func(t *testing.T) {
		response := get("/statuslist/unknown", "application/json")

		assert.Equal(t, http.StatusNotFound, response.Code)
		assert.Equal(t, "application/problem+json", response.Header().Get("Content-Type"))
	})
}

func Test_acceptsJWT(t *testing.T) {
	assert.True(t, acceptsJWT("application/jwt"))
	assert.True(t, acceptsJWT("application/vc+jwt;q=0.9, application/json"))
	assert.False(t, acceptsJWT("application/json, application/jwt"))
	assert.False(t, acceptsJWT("*/*"))
	assert.False(t, acceptsJWT(""))
}
