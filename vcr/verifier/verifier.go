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

package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nuts-foundation/ebsi-issuer/crypto"
	"github.com/nuts-foundation/ebsi-issuer/vcr/openid4vci"
	"github.com/nuts-foundation/ebsi-issuer/vcr/revocation"
	"github.com/nuts-foundation/ebsi-issuer/vcr/types"
)

var timeFunc = time.Now

const maxSkew = 5 * time.Second

var (
	// ErrInvalidPresentation is returned when the VP token or its presentation submission is invalid.
	ErrInvalidPresentation = errors.New("invalid presentation")
	// ErrInvalidCredential is returned when a presented credential is invalid.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrInvalidPeriod is returned when a presented credential is not valid yet, or no longer valid.
	ErrInvalidPeriod = errors.New("credential is not valid at this time")
)

// VerifiedCredential is a presented credential whose signature, validity and status were verified.
type VerifiedCredential struct {
	ID      string
	Issuer  string
	Subject string
	Types   []string
	// DescriptorID is the input descriptor the credential was submitted for.
	DescriptorID string
	Raw          string
}

// VerifiedPresentation is a verified VP token.
type VerifiedPresentation struct {
	Holder      string
	Credentials []VerifiedCredential
}

// Verifier verifies VP tokens presented by wallets, including the JWT credentials they contain.
type Verifier struct {
	keyResolver crypto.KeyResolver
	status      StatusChecker
}

// NewVerifier creates a Verifier. It resolves keys of holders and issuers through the key resolver,
// and checks credentialStatus through the status checker.
func NewVerifier(keyResolver crypto.KeyResolver, status StatusChecker) *Verifier {
	return &Verifier{keyResolver: keyResolver, status: status}
}

// vcClaim is the vc claim of a jwt_vc.
type vcClaim struct {
	ID                string          `json:"id"`
	Type              []string        `json:"type"`
	IssuanceDate      *time.Time      `json:"issuanceDate"`
	ValidFrom         *time.Time      `json:"validFrom"`
	ExpirationDate    *time.Time      `json:"expirationDate"`
	CredentialSubject json.RawMessage `json:"credentialSubject"`
	CredentialStatus  json.RawMessage `json:"credentialStatus"`
}

// Verify verifies the VP token against the expected nonce and audience, then every credential the presentation
// submission refers to. Every credential must be issued to the holder of the presentation.
func (v *Verifier) Verify(ctx context.Context, vpToken string, submission openid4vci.PresentationSubmission, expectedNonce string, expectedAudience string) (*VerifiedPresentation, error) {
	token, err := v.verifyJWT(ctx, vpToken, expectedAudience)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPresentation, err)
	}
	if expectedNonce == "" || token.StringClaim("nonce") != expectedNonce {
		return nil, fmt.Errorf("%w: nonce does not match", ErrInvalidPresentation)
	}
	holder := token.Issuer()
	credentials, err := presentedCredentials(token)
	if err != nil {
		return nil, err
	}
	if submission.DefinitionID == "" || len(submission.DescriptorMap) == 0 {
		return nil, fmt.Errorf("%w: presentation_submission is empty", ErrInvalidPresentation)
	}
	result := &VerifiedPresentation{Holder: holder}
	for _, mapping := range submission.DescriptorMap {
		index, err := credentialIndex(mapping)
		if err != nil {
			return nil, err
		}
		if index >= len(credentials) {
			return nil, fmt.Errorf("%w: descriptor %s points to a missing credential", ErrInvalidPresentation, mapping.ID)
		}
		verified, err := v.verifyCredential(ctx, credentials[index], holder)
		if err != nil {
			return nil, fmt.Errorf("descriptor %s: %w", mapping.ID, err)
		}
		verified.DescriptorID = mapping.ID
		result.Credentials = append(result.Credentials, *verified)
	}
	return result, nil
}

func (v *Verifier) verifyJWT(ctx context.Context, token string, audience string) (*crypto.Token, error) {
	alg, err := crypto.AlgorithmIn(token, crypto.HolderAlgorithms...)
	if err != nil {
		return nil, err
	}
	opts := []crypto.VerifyOption{crypto.WithClock(timeFunc)}
	if audience != "" {
		opts = append(opts, crypto.WithAudience(audience))
	}
	return crypto.VerifyJWTWithResolver(ctx, token, v.keyResolver, alg, opts...)
}

func (v *Verifier) verifyCredential(ctx context.Context, credential string, holder string) (*VerifiedCredential, error) {
	token, err := v.verifyJWT(ctx, credential, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	raw, ok := token.Claims.Get("vc")
	if !ok {
		return nil, fmt.Errorf("%w: vc claim is missing", ErrInvalidCredential)
	}
	data, _ := json.Marshal(raw)
	var claim vcClaim
	if err = json.Unmarshal(data, &claim); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	subject, err := subjectID(claim.CredentialSubject)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid credentialSubject: %w", ErrInvalidCredential, err)
	}
	if subject == "" {
		subject = token.Claims.Subject()
	}
	if subject != holder {
		return nil, fmt.Errorf("%w: credential subject is not the holder", ErrInvalidCredential)
	}
	if err = validateAtTime(claim, timeFunc()); err != nil {
		return nil, err
	}
	if err = v.checkStatus(ctx, claim.CredentialStatus); err != nil {
		return nil, err
	}
	id := claim.ID
	if id == "" {
		id = token.Claims.JwtID()
	}
	return &VerifiedCredential{
		ID:      id,
		Issuer:  token.Issuer(),
		Subject: subject,
		Types:   claim.Type,
		Raw:     credential,
	}, nil
}

// checkStatus checks every StatusList2021Entry of the credential. Other status types are ignored.
func (v *Verifier) checkStatus(ctx context.Context, raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var entries []revocation.StatusList2021Entry
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return fmt.Errorf("%w: invalid credentialStatus: %w", ErrInvalidCredential, err)
		}
	} else {
		var entry revocation.StatusList2021Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("%w: invalid credentialStatus: %w", ErrInvalidCredential, err)
		}
		entries = append(entries, entry)
	}
	for _, entry := range entries {
		if entry.Type != revocation.StatusList2021EntryType {
			continue
		}
		revoked, err := v.status.IsRevoked(ctx, entry)
		if err != nil {
			return fmt.Errorf("unable to check credential status: %w", err)
		}
		if revoked {
			return types.ErrRevoked
		}
	}
	return nil
}

// subjectID returns the id of the credential subject, which is either an object or an array holding one object.
func subjectID(raw json.RawMessage) (string, error) {
	type subject struct {
		ID string `json:"id"`
	}
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		var subjects []subject
		if err := json.Unmarshal(raw, &subjects); err != nil {
			return "", err
		}
		if len(subjects) != 1 {
			return "", errors.New("expected exactly one credential subject")
		}
		return subjects[0].ID, nil
	}
	var result subject
	err := json.Unmarshal(raw, &result)
	return result.ID, err
}

// validateAtTime checks the validity period of the vc claim, nbf and exp of the JWT are checked on verification.
func validateAtTime(claim vcClaim, at time.Time) error {
	validFrom := claim.ValidFrom
	if validFrom == nil {
		validFrom = claim.IssuanceDate
	}
	if validFrom != nil && validFrom.After(at.Add(maxSkew)) {
		return ErrInvalidPeriod
	}
	if claim.ExpirationDate != nil && claim.ExpirationDate.Add(maxSkew).Before(at) {
		return ErrInvalidPeriod
	}
	return nil
}

func presentedCredentials(token *crypto.Token) ([]string, error) {
	raw, ok := token.Claims.Get("vp")
	if !ok {
		return nil, fmt.Errorf("%w: vp claim is missing", ErrInvalidPresentation)
	}
	vp, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: vp claim is not an object", ErrInvalidPresentation)
	}
	var result []string
	switch credentials := vp["verifiableCredential"].(type) {
	case string:
		result = append(result, credentials)
	case []interface{}:
		for _, credential := range credentials {
			jwtVC, ok := credential.(string)
			if !ok {
				return nil, fmt.Errorf("%w: only jwt_vc credentials are supported", ErrInvalidPresentation)
			}
			result = append(result, jwtVC)
		}
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: no credentials presented", ErrInvalidPresentation)
	}
	return result, nil
}

// credentialIndex returns the index in vp.verifiableCredential the descriptor mapping refers to.
func credentialIndex(mapping openid4vci.DescriptorMapping) (int, error) {
	path := mapping.Path
	if mapping.PathNested != nil {
		path = mapping.PathNested.Path
	}
	for _, prefix := range []string{"$.vp.verifiableCredential[", "$.verifiableCredential["} {
		if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, "]") {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(path, prefix), "]"))
		if err != nil || index < 0 {
			break
		}
		return index, nil
	}
	return 0, fmt.Errorf("%w: unsupported descriptor path %s", ErrInvalidPresentation, path)
}
