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

package openid4vci

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nuts-foundation/ebsi-issuer/crypto"
)

// VPTokenResponseParams are the parameters of a wallet's response to a VP token request.
type VPTokenResponseParams struct {
	// Holder is the DID of the wallet, used as iss and sub.
	Holder string
	// Audience is the client_id of the verifier.
	Audience string
	Nonce    string
	State    string
	// Credentials are the jwt_vc credentials to present.
	Credentials []string
	// DefinitionID is the ID of the presentation definition the credentials satisfy.
	DefinitionID string
	// DescriptorIDs are the IDs of the input descriptors, one per credential.
	DescriptorIDs []string
	ExpiresIn     time.Duration
}

// ComposeVPTokenResponse signs a presentation of the credentials and returns it together with its presentation submission.
func ComposeVPTokenResponse(ctx context.Context, signer crypto.Signer, params VPTokenResponseParams) (*VPTokenResponse, error) {
	if err := requireFields("iss", params.Holder, "aud", params.Audience, "nonce", params.Nonce, "definition_id", params.DefinitionID); err != nil {
		return nil, err
	}
	if len(params.Credentials) == 0 {
		return nil, incomplete("verifiableCredential")
	}
	if len(params.DescriptorIDs) != len(params.Credentials) {
		return nil, InvalidRequestError("expected %d input descriptor IDs, got %d", len(params.Credentials), len(params.DescriptorIDs))
	}
	if params.ExpiresIn <= 0 {
		return nil, incomplete("expires_in")
	}
	presentationID := "urn:uuid:" + uuid.NewString()
	credentials := make([]interface{}, len(params.Credentials))
	submission := PresentationSubmission{
		ID:           uuid.NewString(),
		DefinitionID: params.DefinitionID,
	}
	for i, credential := range params.Credentials {
		credentials[i] = credential
		submission.DescriptorMap = append(submission.DescriptorMap, DescriptorMapping{
			ID:     params.DescriptorIDs[i],
			Format: JWTVPFormat,
			Path:   "$",
			PathNested: &DescriptorMapping{
				ID:     params.DescriptorIDs[i],
				Format: JWTVCFormat,
				Path:   fmt.Sprintf("$.vp.verifiableCredential[%d]", i),
			},
		})
	}
	claims := map[string]interface{}{
		"iss":   params.Holder,
		"sub":   params.Holder,
		"aud":   params.Audience,
		"nonce": params.Nonce,
		"nbf":   nowFunc().Unix(),
		"jti":   presentationID,
		"vp": map[string]interface{}{
			"@context":             []interface{}{"https://www.w3.org/2018/credentials/v1"},
			"id":                   presentationID,
			"type":                 []interface{}{"VerifiablePresentation"},
			"holder":               params.Holder,
			"verifiableCredential": credentials,
		},
	}
	vpToken, err := signClaims(ctx, signer, claims, nil, params.ExpiresIn)
	if err != nil {
		return nil, err
	}
	return &VPTokenResponse{
		VPToken:                vpToken,
		PresentationSubmission: submission,
		State:                  params.State,
	}, nil
}
