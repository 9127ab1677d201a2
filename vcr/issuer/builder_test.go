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

package issuer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nuts-foundation/ebsi-issuer/crypto"
	"github.com/nuts-foundation/ebsi-issuer/storage"
	"github.com/nuts-foundation/ebsi-issuer/vcr/revocation"
	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/vc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialBuilder_Build(t *testing.T) {
	const issuerDID = "did:web:issuer.example.com"
	const holderDID = "did:key:z2dmzD81cgPx8Vki7JbuuMmFYrWPgYoytykUZ3eyqht1j9KbsEYvdrjxMjQ4tpnje9BDBTzuNDP3knn6qLZErzd4bJ5go2CChoPjd5GAH3zpFJP5fuwSk66U5Pq6EhF4nKnHzDnznEP8fX99nZGgwbAh1o7Gj1X52Tdhf7U4KTk66xsA5r"
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	signer, err := crypto.GenerateJWTSigner(issuerDID + "#key-1")
	require.NoError(t, err)
	templates, err := NewTemplateRenderer("")
	require.NoError(t, err)
	db := storage.NewTestStorageEngine(t).GetSQLDatabase()
	builder := credentialBuilder{
		issuerDID:  issuerDID,
		signer:     signer,
		templates:  templates,
		statusList: revocation.NewStatusList(db, signer, "https://issuer.example.com", revocation.DefaultConfig()),
		validity:   time.Hour,
		now: func() time.Time {
			return now
		},
	}
	record := VerifiableCredentialRecord{
		ID:                   "urn:uuid:0d5f0a5e-3e2f-4d32-9f1c-8c3f6f0c2a11",
		Holder:               HolderDID{DID: holderDID},
		RequestedCredentials: []string{"VerifiableCredential", "VerifiableAttestation", "CTWalletSameInTime"},
	}

	unsigned, signed, err := builder.build(context.Background(), record)

	require.NoError(t, err)
	t.Run("single credential subject with holder ID", func(t *testing.T) {
		var document map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(unsigned), &document))
		subject, ok := document["credentialSubject"].(map[string]interface{})
		require.True(t, ok, "credentialSubject should be a single object")
		assert.Equal(t, holderDID, subject["id"])
		assert.Equal(t, issuerDID, document["issuer"])
		assert.Equal(t, "2024-01-02T03:04:05Z", document["issuanceDate"])
		assert.Equal(t, "2024-01-02T04:04:05Z", document["expirationDate"])
	})
	t.Run("signed credential", func(t *testing.T) {
		credential, err := vc.ParseVerifiableCredential(signed)
		require.NoError(t, err)

		require.Len(t, credential.CredentialSubject, 1)
		assert.Equal(t, holderDID, credential.CredentialSubject[0]["id"])
		assert.Equal(t, record.ID, credential.ID.String())
		assert.True(t, credential.IsType(ssi.MustParseURI("CTWalletSameInTime")))
		assert.Len(t, credential.CredentialStatus, 1)
	})
}
