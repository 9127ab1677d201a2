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

package types

import "errors"

// ErrNotFound is returned when a record can't be found by its identifier or correlation value.
var ErrNotFound = errors.New("not found")

// ErrExpired is returned when a correlation value (code, c_nonce, acceptance token) was found but has expired.
var ErrExpired = errors.New("expired")

// ErrCredentialNotFound is returned when no status entry or credential exists for a credential ID.
// It is never interpreted as "valid".
var ErrCredentialNotFound = errors.New("credential not found")

// ErrCapacityExceeded is returned when no free index could be allocated in a status list.
var ErrCapacityExceeded = errors.New("status list capacity exceeded")

// ErrCredentialPending is returned when a deferred credential hasn't been issued yet.
var ErrCredentialPending = errors.New("credential is pending")

// ErrCredentialRejected is returned when issuance of a deferred credential was denied.
var ErrCredentialRejected = errors.New("credential is rejected")

// ErrUnsupportedCredentialType is returned when the requested credential types don't match any type set the issuer supports.
var ErrUnsupportedCredentialType = errors.New("unsupported credential type")

// ErrRevoked is returned when a credential has been revoked.
var ErrRevoked = errors.New("credential is revoked")
