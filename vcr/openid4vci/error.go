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
)

// ErrorCode specifies error codes as defined by OAuth2, OpenID4VCI and OpenID4VP.
type ErrorCode string

const (
	// InvalidRequest is returned when the request is missing a required parameter, or a parameter is malformed.
	InvalidRequest ErrorCode = "invalid_request"
	// InvalidClient is returned when the client can't be identified or authenticated.
	InvalidClient ErrorCode = "invalid_client"
	// InvalidGrant is returned when the authorization code, pre-authorized code or PIN is unknown, expired, already used
	// or doesn't match the PKCE code verifier.
	InvalidGrant ErrorCode = "invalid_grant"
	// InvalidToken is returned when the access token or acceptance token is missing, invalid or expired.
	InvalidToken ErrorCode = "invalid_token"
	// InvalidProof is returned when the credential request proof is missing or invalid, e.g. not signed by the wallet.
	InvalidProof ErrorCode = "invalid_proof"
	// InvalidNonce is returned when the proof isn't bound to an unused and unexpired c_nonce.
	InvalidNonce ErrorCode = "invalid_nonce"
	// InvalidScope is returned when the requested scope isn't supported.
	InvalidScope ErrorCode = "invalid_scope"
	// UnsupportedGrantType is returned when the grant type is not supported.
	UnsupportedGrantType ErrorCode = "unsupported_grant_type"
	// UnsupportedResponseType is returned when the response type is not supported.
	UnsupportedResponseType ErrorCode = "unsupported_response_type"
	// UnsupportedCredentialType is returned when the credential issuer does not support the requested credential type.
	UnsupportedCredentialType ErrorCode = "unsupported_credential_type"
	// AccessDenied is returned when the wallet's ID token or VP token couldn't be verified.
	AccessDenied ErrorCode = "access_denied"
	// ServerError is returned when the server encounters an unexpected condition.
	ServerError ErrorCode = "server_error"
)

var (
	// ErrInvalidRequest matches every Error with code invalid_request.
	ErrInvalidRequest = Error{Code: InvalidRequest}
	// ErrInvalidGrant matches every Error with code invalid_grant.
	ErrInvalidGrant = Error{Code: InvalidGrant}
	// ErrInvalidToken matches every Error with code invalid_token.
	ErrInvalidToken = Error{Code: InvalidToken}
	// ErrInvalidProof matches every Error with code invalid_proof.
	ErrInvalidProof = Error{Code: InvalidProof}
	// ErrInvalidNonce matches every Error with code invalid_nonce.
	ErrInvalidNonce = Error{Code: InvalidNonce}
	// ErrUnsupportedCredentialType matches every Error with code unsupported_credential_type.
	ErrUnsupportedCredentialType = Error{Code: UnsupportedCredentialType}
	// ErrAccessDenied matches every Error with code access_denied.
	ErrAccessDenied = Error{Code: AccessDenied}
)

// ErrIncompleteRequest is returned by the composers when a required field is missing.
var ErrIncompleteRequest = errors.New("incomplete request")

// ErrInvalidIssuer is returned when the signer of a wallet JWT isn't the DID the flow is bound to.
var ErrInvalidIssuer = errors.New("invalid issuer")

// Error is a protocol error that is returned to the client as {"error": code, "error_description": description}.
// Err is the underlying error, it is not returned to the client.
type Error struct {
	// Code is the error code.
	Code ErrorCode `json:"error"`
	// Description is a human-readable description, returned to the client.
	Description string `json:"error_description,omitempty"`
	// Err is the underlying error, may be omitted.
	Err error `json:"-"`
}

// Error returns the error message, which is the code followed by the description and underlying error.
func (e Error) Error() string {
	result := string(e.Code)
	if e.Description != "" {
		result += " - " + e.Description
	}
	if e.Err != nil {
		result += ": " + e.Err.Error()
	}
	return result
}

// Unwrap returns the underlying error.
func (e Error) Unwrap() error {
	return e.Err
}

// Is returns true if the target is an Error with the same code.
func (e Error) Is(target error) bool {
	var other Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

func newError(code ErrorCode, description string, err error) Error {
	return Error{Code: code, Description: description, Err: err}
}

// InvalidRequestError creates an invalid_request Error.
func InvalidRequestError(format string, args ...interface{}) Error {
	return newError(InvalidRequest, fmt.Sprintf(format, args...), nil)
}

// InvalidGrantError creates an invalid_grant Error. The description is deliberately generic so clients can't
// distinguish an unknown code from a wrong PIN.
func InvalidGrantError(err error) Error {
	return newError(InvalidGrant, "grant is invalid, expired or already used", err)
}

// InvalidTokenError creates an invalid_token Error.
func InvalidTokenError(err error) Error {
	return newError(InvalidToken, "token is invalid or expired", err)
}

// InvalidProofError creates an invalid_proof Error.
func InvalidProofError(description string, err error) Error {
	return newError(InvalidProof, description, err)
}

// InvalidNonceError creates an invalid_nonce Error.
func InvalidNonceError(err error) Error {
	return newError(InvalidNonce, "c_nonce is invalid, expired or already used", err)
}

// UnsupportedCredentialTypeError creates an unsupported_credential_type Error.
func UnsupportedCredentialTypeError(err error) Error {
	return newError(UnsupportedCredentialType, "requested credential types are not supported", err)
}

// AccessDeniedError creates an access_denied Error.
func AccessDeniedError(description string, err error) Error {
	return newError(AccessDenied, description, err)
}

func incomplete(field string) error {
	return fmt.Errorf("%w: %s is required", ErrIncompleteRequest, field)
}
