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
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeChallenge(t *testing.T) {
	t.Run("RFC 7636 appendix B", func(t *testing.T) {
		assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", CodeChallenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"))
	})
	t.Run("round trip for random verifiers", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			buf := make([]byte, 32)
			_, _ = rand.Read(buf)
			verifier := base64.RawURLEncoding.EncodeToString(buf)

			challenge := CodeChallenge(verifier)

			assert.NoError(t, ValidateCodeChallenge(challenge, PKCEMethodS256, verifier))
		}
	})
}

func TestValidateCodeChallenge(t *testing.T) {
	verifier := strings.Repeat("a", 43)
	challenge := CodeChallenge(verifier)

	t.Run("ok", func(t *testing.T) {
		assert.NoError(t, ValidateCodeChallenge(challenge, PKCEMethodS256, verifier))
	})
	t.Run("other verifier", func(t *testing.T) {
		err := ValidateCodeChallenge(challenge, PKCEMethodS256, strings.Repeat("b", 43))
		assert.ErrorIs(t, err, ErrInvalidGrant)
		assert.ErrorIs(t, err, errPKCEMismatch)
	})
	t.Run("challenge encoded twice is rejected", func(t *testing.T) {
		doubleEncoded := base64.RawURLEncoding.EncodeToString([]byte(challenge))
		assert.ErrorIs(t, ValidateCodeChallenge(doubleEncoded, PKCEMethodS256, verifier), ErrInvalidGrant)
	})
	t.Run("plain method", func(t *testing.T) {
		assert.ErrorIs(t, ValidateCodeChallenge(verifier, "plain", verifier), ErrInvalidGrant)
	})
	t.Run("verifier too short", func(t *testing.T) {
		short := strings.Repeat("a", 42)
		assert.ErrorIs(t, ValidateCodeChallenge(CodeChallenge(short), PKCEMethodS256, short), ErrInvalidGrant)
	})
	t.Run("verifier too long", func(t *testing.T) {
		long := strings.Repeat("a", 129)
		assert.ErrorIs(t, ValidateCodeChallenge(CodeChallenge(long), PKCEMethodS256, long), ErrInvalidGrant)
	})
}

func Test_validatePKCEParams(t *testing.T) {
	challenge := CodeChallenge(strings.Repeat("a", 43))

	t.Run("ok", func(t *testing.T) {
		assert.NoError(t, validatePKCEParams(challenge, PKCEMethodS256, true))
	})
	t.Run("absent and optional", func(t *testing.T) {
		assert.NoError(t, validatePKCEParams("", "", false))
	})
	t.Run("absent and required", func(t *testing.T) {
		err := validatePKCEParams("", "", true)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
	t.Run("method without challenge", func(t *testing.T) {
		assert.ErrorIs(t, validatePKCEParams("", PKCEMethodS256, false), ErrInvalidRequest)
	})
	t.Run("too short", func(t *testing.T) {
		assert.ErrorIs(t, validatePKCEParams("abc", PKCEMethodS256, true), ErrInvalidRequest)
	})
	t.Run("plain method", func(t *testing.T) {
		assert.ErrorIs(t, validatePKCEParams(challenge, "plain", true), ErrInvalidRequest)
	})
}
