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

package revocation

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
)

const (
	// StatusList2021CredentialType is the type of StatusList2021Credential
	StatusList2021CredentialType = "StatusList2021Credential"
	// StatusList2021CredentialSubjectType is the credentialSubject.type in a StatusList2021Credential
	StatusList2021CredentialSubjectType = "StatusList2021"
	// StatusList2021EntryType is the credentialStatus.type
	StatusList2021EntryType = "StatusList2021Entry"
	// VerifiableCredentialType is the base type of every credential.
	VerifiableCredentialType = "VerifiableCredential"
	// VCContextV1 is the W3C Verifiable Credentials Data Model v1.1 context.
	VCContextV1 = "https://www.w3.org/2018/credentials/v1"
	// StatusList2021Context is the JSON-LD context of StatusList2021.
	StatusList2021Context = "https://w3id.org/vc/status-list/2021/v1"
)

// StatusPurpose indicates what it means if a credential's bit is set.
type StatusPurpose string

const (
	StatusPurposeRevocation StatusPurpose = "revocation"
	StatusPurposeSuspension StatusPurpose = "suspension"
)

// ParseStatusPurpose returns the StatusPurpose for the given value.
func ParseStatusPurpose(value string) (StatusPurpose, error) {
	switch StatusPurpose(value) {
	case StatusPurposeRevocation, StatusPurposeSuspension:
		return StatusPurpose(value), nil
	}
	return "", fmt.Errorf("unsupported status purpose: %s", value)
}

// StatusList2021Entry is the "credentialStatus" property used by issuers to enable VerifiableCredential status information.
type StatusList2021Entry struct {
	// ID is expected to be a URL that identifies the status information associated with the verifiable credential.
	// It MUST NOT be the URL for the status list, which is in StatusListCredential.
	ID string `json:"id,omitempty"`
	// Type MUST be "StatusList2021Entry"
	Type string `json:"type,omitempty"`
	// StatusPurpose must match credentialSubject.statusPurpose of the status list.
	StatusPurpose string `json:"statusPurpose,omitempty"`
	// StatusListIndex is an integer greater than or equal to 0, expressed as a string.
	StatusListIndex string `json:"statusListIndex,omitempty"`
	// StatusListCredential is the URL of the StatusList2021Credential.
	StatusListCredential string `json:"statusListCredential,omitempty"`
}

// Validate returns an error if the contents of the StatusList2021Entry are invalid.
func (e StatusList2021Entry) Validate() error {
	if e.ID == e.StatusListCredential {
		return errors.New("StatusList2021Entry.id is the same as the StatusList2021Entry.statusListCredential")
	}
	if e.Type != StatusList2021EntryType {
		return errors.New("StatusList2021Entry.type must be StatusList2021Entry")
	}
	if e.StatusPurpose == "" {
		return errors.New("StatusList2021Entry.statusPurpose is required")
	}
	if _, err := e.Index(); err != nil {
		return err
	}
	if _, err := url.ParseRequestURI(e.StatusListCredential); err != nil {
		return fmt.Errorf("parse StatusList2021Entry.statusListCredential URL: %w", err)
	}
	return nil
}

// Index returns the parsed statusListIndex.
func (e StatusList2021Entry) Index() (int, error) {
	n, err := strconv.Atoi(e.StatusListIndex)
	if err != nil || n < 0 {
		return 0, errors.New("invalid StatusList2021Entry.statusListIndex")
	}
	return n, nil
}

// StatusList2021CredentialSubject of a StatusList2021Credential
type StatusList2021CredentialSubject struct {
	ID string `json:"id"`
	// Type MUST be "StatusList2021"
	Type string `json:"type"`
	// StatusPurpose defines the reason credentials are listed. ('revocation', 'suspension')
	StatusPurpose string `json:"statusPurpose"`
	// EncodedList is the GZIP-compressed, base64url encoded bitstring.
	EncodedList string `json:"encodedList"`
}

// StatusList2021Credential is the (unsigned) JSON-LD document describing a status list.
type StatusList2021Credential struct {
	Context           []string                        `json:"@context"`
	ID                string                          `json:"id"`
	Type              []string                        `json:"type"`
	Issuer            string                          `json:"issuer"`
	IssuanceDate      string                          `json:"issuanceDate"`
	ValidFrom         string                          `json:"validFrom,omitempty"`
	ExpirationDate    string                          `json:"expirationDate,omitempty"`
	CredentialSubject StatusList2021CredentialSubject `json:"credentialSubject"`
}

// Validate checks the document is a StatusList2021Credential with a single StatusList2021 subject.
func (c StatusList2021Credential) Validate() error {
	if !slices.Contains(c.Context, VCContextV1) {
		return errors.New("default context is required")
	}
	if !slices.Contains(c.Context, StatusList2021Context) {
		return fmt.Errorf("context '%s' is required", StatusList2021Context)
	}
	if !slices.Contains(c.Type, VerifiableCredentialType) {
		return fmt.Errorf("type '%s' is required", VerifiableCredentialType)
	}
	if !slices.Contains(c.Type, StatusList2021CredentialType) {
		return fmt.Errorf("type '%s' is required", StatusList2021CredentialType)
	}
	if c.Issuer == "" {
		return errors.New("'issuer' is required")
	}
	if c.CredentialSubject.Type != StatusList2021CredentialSubjectType {
		return fmt.Errorf("credentialSubject.type '%s' is required", StatusList2021CredentialSubjectType)
	}
	if c.CredentialSubject.EncodedList == "" {
		return errors.New("credentialSubject.encodedList is required")
	}
	return nil
}

// List describes a status list.
type List struct {
	ID            string
	Issuer        string
	StatusPurpose StatusPurpose
	// Size is the number of entries that can be allocated.
	Size int
	// Allocated is the number of allocated entries.
	Allocated int
	URL       string
}
