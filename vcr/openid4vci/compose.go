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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nuts-foundation/ebsi-issuer/crypto"
)

// nowFunc is used to set iat, nbf and exp claims.
var nowFunc = time.Now

// signClaims adds iat and exp (when expiresIn > 0) and a jti to the claims and signs them.
func signClaims(ctx context.Context, signer crypto.Signer, claims map[string]interface{}, headers map[string]interface{}, expiresIn time.Duration) (string, error) {
	now := nowFunc()
	claims["iat"] = now.Unix()
	if expiresIn > 0 {
		claims["exp"] = now.Add(expiresIn).Unix()
	}
	if _, ok := claims["jti"]; !ok {
		claims["jti"] = uuid.NewString()
	}
	token, err := signer.Sign(ctx, claims, headers)
	if err != nil {
		return "", fmt.Errorf("unable to sign %v: %w", headers["typ"], err)
	}
	return token, nil
}

// toClaim converts a struct into its JSON object form, so it can be embedded into a JWT claim set.
func toClaim(value interface{}) (interface{}, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var result interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// withQuery returns the base URL with the given query parameters added to its existing ones.
// The base is kept as given, so custom scheme URIs like openid:// keep their form.
func withQuery(base string, params url.Values) (string, error) {
	if _, err := url.Parse(base); err != nil {
		return "", fmt.Errorf("invalid redirect URI: %w", err)
	}
	base, fragment, hasFragment := strings.Cut(base, "#")
	base, rawQuery, _ := strings.Cut(base, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URI query: %w", err)
	}
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	result := base
	if len(query) > 0 {
		result += "?" + query.Encode()
	}
	if hasFragment {
		result += "#" + fragment
	}
	return result, nil
}

// NewRedirect returns a 302 redirect to the base URL with the given query parameters.
func NewRedirect(base string, params url.Values) (*Redirect, error) {
	location, err := withQuery(base, params)
	if err != nil {
		return nil, err
	}
	return &Redirect{Code: http.StatusFound, URL: location}, nil
}

// requireFields takes (name, value) pairs and fails on the first empty value.
func requireFields(fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if fields[i+1] == "" {
			return incomplete(fields[i])
		}
	}
	return nil
}
