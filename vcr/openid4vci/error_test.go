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
	"errors"
	"fmt"
	"testing"

	"github.com/nuts-foundation/ebsi-issuer/vcr/types"
	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	t.Run("code only", func(t *testing.T) {
		assert.EqualError(t, Error{Code: InvalidRequest}, "invalid_request")
	})
	t.Run("with description and cause", func(t *testing.T) {
		err := Error{Code: InvalidGrant, Description: "code unknown", Err: errors.New("not found")}

		assert.EqualError(t, err, "invalid_grant - code unknown: not found")
	})
}

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("token: %w", InvalidGrantError(types.ErrExpired))

	assert.ErrorIs(t, err, ErrInvalidGrant)
	assert.ErrorIs(t, err, types.ErrExpired)
	assert.NotErrorIs(t, err, ErrInvalidToken)
	assert.NotErrorIs(t, err, types.ErrNotFound)
}

func TestError_As(t *testing.T) {
	var target Error
	err := fmt.Errorf("credential: %w", InvalidProofError("nonce mismatch", nil))

	assert.ErrorAs(t, err, &target)
	assert.Equal(t, InvalidProof, target.Code)
	assert.Equal(t, "nonce mismatch", target.Description)
}

func Test_incomplete(t *testing.T) {
	err := incomplete("client_id")

	assert.ErrorIs(t, err, ErrIncompleteRequest)
	assert.EqualError(t, err, "incomplete request: client_id is required")
}
