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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/nuts-foundation/ebsi-issuer/core"
)

// HTTPClient calls the administrative API of a running issuer.
type HTTPClient struct {
	core.ClientConfig
}

func (hb HTTPClient) do(ctx context.Context, method string, path string, body interface{}, expectedStatusCode int, result interface{}) error {
	client, err := core.CreateHTTPClient(hb.ClientConfig)
	if err != nil {
		return err
	}
	var requestBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		requestBody = bytes.NewReader(data)
	}
	request, err := http.NewRequestWithContext(ctx, method, hb.GetAddress()+InternalPathPrefix+path, requestBody)
	if err != nil {
		return err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if err := core.TestResponseCode(expectedStatusCode, response); err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(result); err != nil {
		return fmt.Errorf("unable to decode response: %w", err)
	}
	return nil
}

// CreateCredentialOffer creates a credential offer and returns it.
func (hb HTTPClient) CreateCredentialOffer(ctx context.Context, request CreateCredentialOfferRequest) (*CreateCredentialOfferResponse, error) {
	var result CreateCredentialOfferResponse
	if err := hb.do(ctx, http.MethodPost, "/offers", request, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RegisterPreAuthorisedCode registers a pre-authorized code and returns the code and PIN.
func (hb HTTPClient) RegisterPreAuthorisedCode(ctx context.Context, request RegisterPreAuthorisedCodeRequest) (*RegisterPreAuthorisedCodeResponse, error) {
	var result RegisterPreAuthorisedCodeResponse
	if err := hb.do(ctx, http.MethodPost, "/preauthorised-codes", request, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RevokeCredential revokes an issued credential.
func (hb HTTPClient) RevokeCredential(ctx context.Context, credentialID string) error {
	return hb.do(ctx, http.MethodPost, "/credentials/revoke", RevokeCredentialRequest{CredentialID: credentialID}, http.StatusNoContent, nil)
}

// RejectCredential rejects a pending deferred credential.
func (hb HTTPClient) RejectCredential(ctx context.Context, credentialID string) error {
	return hb.do(ctx, http.MethodPost, "/credentials/"+url.PathEscape(credentialID)+"/reject", nil, http.StatusNoContent, nil)
}

// DeleteConformanceState deletes the issuance state of a conformance test wallet.
func (hb HTTPClient) DeleteConformanceState(ctx context.Context, clientID string) (int64, error) {
	var result DeleteConformanceStateResponse
	if err := hb.do(ctx, http.MethodDelete, "/conformance/"+url.PathEscape(clientID), nil, http.StatusOK, &result); err != nil {
		return 0, err
	}
	return result.Deleted, nil
}
