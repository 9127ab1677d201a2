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
	"time"

	"github.com/nuts-foundation/ebsi-issuer/crypto"
)

// AcceptanceTokenCredentialIDClaim is the private claim of an acceptance token that holds the deferred credential's ID.
const AcceptanceTokenCredentialIDClaim = "vcId"

// InTimeCredentialParams are the parameters of a credential response carrying the signed credential.
type InTimeCredentialParams struct {
	Format     string
	Credential string
	// CNonce is a fresh c_nonce the wallet may use for its next request. Optional.
	CNonce          string
	CNonceExpiresIn time.Duration
}

// ComposeInTimeCredentialResponse returns the credential response for a credential that is issued immediately.
func ComposeInTimeCredentialResponse(params InTimeCredentialParams) (*CredentialResponse, error) {
	if err := requireFields("format", params.Format, "credential", params.Credential); err != nil {
		return nil, err
	}
	result := &CredentialResponse{
		Format:     params.Format,
		Credential: params.Credential,
	}
	if params.CNonce != "" {
		result.CNonce = params.CNonce
		result.CNonceExpiresIn = int(params.CNonceExpiresIn.Seconds())
	}
	return result, nil
}

// DeferredCredentialParams are the parameters of a credential response for a credential that is issued later.
type DeferredCredentialParams struct {
	// Issuer is the credential issuer, used as iss of the acceptance token.
	Issuer string
	// Audience is the client_id of the wallet.
	Audience     string
	CredentialID string
	Format       string
	ExpiresIn    time.Duration
	// CNonce is a fresh c_nonce the wallet may use for its next request. Optional.
	CNonce          string
	CNonceExpiresIn time.Duration
}

// ComposeDeferredCredentialResponse mints an acceptance token for the credential and returns the deferred credential response.
func ComposeDeferredCredentialResponse(ctx context.Context, signer crypto.Signer, params DeferredCredentialParams) (*CredentialResponse, error) {
	if err := requireFields("iss", params.Issuer, "aud", params.Audience, "vcId", params.CredentialID, "format", params.Format); err != nil {
		return nil, err
	}
	if params.ExpiresIn <= 0 {
		return nil, incomplete("expires_in")
	}
	acceptanceToken, err := signClaims(ctx, signer, map[string]interface{}{
		"iss":                            params.Issuer,
		"sub":                            params.Audience,
		"aud":                            params.Issuer,
		AcceptanceTokenCredentialIDClaim: params.CredentialID,
	}, nil, params.ExpiresIn)
	if err != nil {
		return nil, err
	}
	result := &CredentialResponse{
		Format:          params.Format,
		AcceptanceToken: acceptanceToken,
	}
	if params.CNonce != "" {
		result.CNonce = params.CNonce
		result.CNonceExpiresIn = int(params.CNonceExpiresIn.Seconds())
	}
	return result, nil
}
