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
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

const (
	minCodeVerifierLength = 43
	maxCodeVerifierLength = 128
)

var errPKCEMismatch = errors.New("code_verifier does not match code_challenge")

// CodeChallenge returns the S256 code challenge of the verifier: base64url(sha256(verifier)), without padding.
func CodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// ValidateCodeChallenge checks the code_verifier of a token request against the code_challenge of the authorization request.
// It returns an invalid_grant Error if they don't match.
func ValidateCodeChallenge(challenge string, method string, verifier string) error {
	if method != PKCEMethodS256 {
		return InvalidGrantError(errors.New("unsupported code_challenge_method"))
	}
	if len(verifier) < minCodeVerifierLength || len(verifier) > maxCodeVerifierLength {
		return InvalidGrantError(errors.New("code_verifier has an invalid length"))
	}
	if subtle.ConstantTimeCompare([]byte(CodeChallenge(verifier)), []byte(challenge)) != 1 {
		return InvalidGrantError(errPKCEMismatch)
	}
	return nil
}

// validatePKCEParams checks the PKCE parameters of an authorization request.
// When required is false, absent parameters are accepted.
func validatePKCEParams(challenge string, method string, required bool) error {
	if challenge == "" && method == "" && !required {
		return nil
	}
	if challenge == "" {
		return InvalidRequestError("code_challenge is required")
	}
	if len(challenge) < minCodeVerifierLength || len(challenge) > maxCodeVerifierLength {
		return InvalidRequestError("code_challenge must be between %d and %d characters", minCodeVerifierLength, maxCodeVerifierLength)
	}
	if method != PKCEMethodS256 {
		return InvalidRequestError("code_challenge_method must be %s", PKCEMethodS256)
	}
	return nil
}
