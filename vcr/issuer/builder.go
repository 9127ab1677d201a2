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
	"fmt"
	"time"

	"github.com/nuts-foundation/ebsi-issuer/crypto"
	"github.com/nuts-foundation/ebsi-issuer/vcr/revocation"
	ssi "github.com/nuts-foundation/go-did"
	"github.com/nuts-foundation/go-did/vc"
)

// credentialBuilder builds, status-enrolls and signs credentials in jwt_vc format.
type credentialBuilder struct {
	issuerDID  string
	signer     crypto.Signer
	templates  TemplateRenderer
	statusList *revocation.StatusList
	validity   time.Duration
	now        func() time.Time
}

// build returns the unsigned credential (JSON) and the signed credential (JWT) for the record.
// It allocates a revocation status entry for the credential.
func (b credentialBuilder) build(ctx context.Context, record VerifiableCredentialRecord) (string, string, error) {
	issuedAt := b.now().UTC().Truncate(time.Second)
	subject, err := b.templates.Render(TemplateData{
		CredentialID: record.ID,
		Issuer:       b.issuerDID,
		Subject:      record.Holder.DID,
		Types:        record.RequestedCredentials,
		IssuedAt:     issuedAt,
	})
	if err != nil {
		return "", "", err
	}
	subject["id"] = record.Holder.DID

	credentialID, err := ssi.ParseURI(record.ID)
	if err != nil {
		return "", "", fmt.Errorf("invalid credential ID: %w", err)
	}
	issuer, err := ssi.ParseURI(b.issuerDID)
	if err != nil {
		return "", "", fmt.Errorf("invalid issuer DID: %w", err)
	}
	credentialTypes := []ssi.URI{vc.VerifiableCredentialTypeV1URI()}
	for _, curr := range record.RequestedCredentials {
		if curr == vc.VerifiableCredentialType {
			continue
		}
		credentialType, err := ssi.ParseURI(curr)
		if err != nil {
			return "", "", fmt.Errorf("invalid credential type %q: %w", curr, err)
		}
		credentialTypes = append(credentialTypes, *credentialType)
	}
	entry, err := b.statusList.Entry(ctx, b.issuerDID, record.ID, revocation.StatusPurposeRevocation)
	if err != nil {
		return "", "", fmt.Errorf("unable to allocate status list entry: %w", err)
	}
	expirationDate := issuedAt.Add(b.validity)
	credential := vc.VerifiableCredential{
		Context:           []ssi.URI{vc.VCContextV1URI()},
		ID:                credentialID,
		Type:              credentialTypes,
		Issuer:            *issuer,
		IssuanceDate:      issuedAt,
		ExpirationDate:    &expirationDate,
		CredentialSubject: []map[string]any{subject},
		CredentialStatus:  []any{entry},
	}
	unsigned, err := json.Marshal(credential)
	if err != nil {
		return "", "", err
	}
	var vcClaim map[string]interface{}
	if err = json.Unmarshal(unsigned, &vcClaim); err != nil {
		return "", "", err
	}
	vcClaim["validFrom"] = issuedAt.Format(time.RFC3339)
	claims := map[string]interface{}{
		"iss": b.issuerDID,
		"sub": record.Holder.DID,
		"jti": record.ID,
		"iat": issuedAt.Unix(),
		"nbf": issuedAt.Unix(),
		"exp": expirationDate.Unix(),
		"vc":  vcClaim,
	}
	signed, err := b.signer.Sign(ctx, claims, map[string]interface{}{"typ": "JWT"})
	if err != nil {
		return "", "", err
	}
	return string(unsigned), signed, nil
}
