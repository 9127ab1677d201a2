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

package issuer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/nuts-foundation/ebsi-issuer/vcr/openid4vci"
	"github.com/nuts-foundation/ebsi-issuer/vcr/types"
	"gorm.io/gorm"
)

// Step is the position of an issuance flow in the protocol sequence.
type Step string

const (
	StepAuthorize           Step = "AUTHORIZE"
	StepVPRequest           Step = "VP_REQUEST"
	StepAuthResponse        Step = "AUTH_RESPONSE"
	StepTokenRequest        Step = "TOKEN_REQUEST"
	StepDeferredRequest     Step = "DEFERRED_REQUEST"
	StepVerificationRequest Step = "VERIFICATION_REQUEST"
)

// StateStatus marks whether the correlation value of the current step has been consumed.
type StateStatus string

const (
	StatusUnclaimed StateStatus = "UNCLAIMED"
	StatusClaimed   StateStatus = "CLAIMED"
)

// allowedTransitions lists the steps each step may advance to. Steps are never skipped.
var allowedTransitions = map[Step][]Step{
	StepAuthorize:    {StepAuthResponse},
	StepAuthResponse: {StepTokenRequest},
	StepTokenRequest: {StepDeferredRequest},
	StepVPRequest:    {StepVerificationRequest},
}

var (
	// ErrStateConflict is returned when a state record no longer is at the expected step and status,
	// because it was consumed or advanced by another request.
	ErrStateConflict = errors.New("issuance state was already consumed or advanced")
	// ErrInvalidTransition is returned when advancing to a step that doesn't directly follow the current one.
	ErrInvalidTransition = errors.New("invalid issuance state transition")
)

// StatePayload holds the free-form data of an issuance flow.
type StatePayload struct {
	AuthorizationDetails []openid4vci.AuthorizationDetail `json:"authorizationDetails,omitempty"`
	IDToken              string                           `json:"idToken,omitempty"`
	VPToken              string                           `json:"vpToken,omitempty"`
}

// IssuanceState correlates the requests of a single wallet interaction.
type IssuanceState struct {
	ID                      string          `gorm:"column:id;primaryKey"`
	Flow                    openid4vci.Flow `gorm:"column:flow"`
	Step                    Step            `gorm:"column:step"`
	Status                  StateStatus     `gorm:"column:status"`
	ClientID                string          `gorm:"column:client_id"`
	CodeChallenge           string          `gorm:"column:code_challenge"`
	CodeChallengeMethod     string          `gorm:"column:code_challenge_method"`
	RedirectURI             string          `gorm:"column:redirect_uri"`
	Scope                   string          `gorm:"column:scope"`
	ResponseType            string          `gorm:"column:response_type"`
	ServerDefinedState      string          `gorm:"column:server_defined_state"`
	ServerDefinedNonce      string          `gorm:"column:server_defined_nonce"`
	WalletDefinedState      string          `gorm:"column:wallet_defined_state"`
	WalletDefinedNonce      string          `gorm:"column:wallet_defined_nonce"`
	WalletRedirectURI       string          `gorm:"column:wallet_redirect_uri"`
	Code                    string          `gorm:"column:code"`
	CodeExpiresAt           int64           `gorm:"column:code_expires_at"`
	CNonce                  string          `gorm:"column:c_nonce"`
	CNonceExpiresAt         int64           `gorm:"column:c_nonce_expires_at"`
	PreAuthorisedCode       string          `gorm:"column:pre_authorised_code"`
	PreAuthorisedCodePin    string          `gorm:"column:pre_authorised_code_pin"`
	PreAuthorisedCodeIsUsed bool            `gorm:"column:pre_authorised_code_is_used"`
	AcceptanceToken         string          `gorm:"column:acceptance_token"`
	CredentialID            string          `gorm:"column:credential_id"`
	Payload                 StatePayload    `gorm:"column:payload;serializer:json"`
	OfferID                 *string         `gorm:"column:offer_id"`
	CreatedAt               int64           `gorm:"column:created_at"`
	UpdatedAt               int64           `gorm:"column:updated_at"`
}

// TableName returns the table of IssuanceState records.
func (IssuanceState) TableName() string {
	return "issuance_state"
}

func expired(expiresAt int64, now time.Time) bool {
	return expiresAt != 0 && now.Unix() > expiresAt
}

// CodeExpired returns true if the authorization code has expired.
func (s IssuanceState) CodeExpired(now time.Time) bool {
	return expired(s.CodeExpiresAt, now)
}

// CNonceExpired returns true if the c_nonce has expired.
func (s IssuanceState) CNonceExpired(now time.Time) bool {
	return expired(s.CNonceExpiresAt, now)
}

// RequestedTypes returns the credential types of the first authorization detail.
func (s IssuanceState) RequestedTypes() []string {
	if len(s.Payload.AuthorizationDetails) == 0 {
		return nil
	}
	return s.Payload.AuthorizationDetails[0].Types
}

// Transition holds the fields set when a state advances or is claimed. Zero values are left untouched.
type Transition struct {
	ClientID        string
	Code            string
	CodeExpiresAt   time.Time
	CNonce          string
	CNonceExpiresAt time.Time
	AcceptanceToken string
	CredentialID    string
	Payload         *StatePayload
	// MarkPreAuthorisedCodeUsed sets pre_authorised_code_is_used, and requires it to be unset.
	MarkPreAuthorisedCodeUsed bool
}

// marshalPayload is replaced in tests.
var marshalPayload = func(payload StatePayload) ([]byte, error) {
	return json.Marshal(payload)
}

func (t Transition) columns() (map[string]interface{}, error) {
	result := map[string]interface{}{}
	set := func(column string, value string) {
		if value != "" {
			result[column] = value
		}
	}
	set("client_id", t.ClientID)
	set("code", t.Code)
	set("c_nonce", t.CNonce)
	set("acceptance_token", t.AcceptanceToken)
	set("credential_id", t.CredentialID)
	if !t.CodeExpiresAt.IsZero() {
		result["code_expires_at"] = t.CodeExpiresAt.Unix()
	}
	if !t.CNonceExpiresAt.IsZero() {
		result["c_nonce_expires_at"] = t.CNonceExpiresAt.Unix()
	}
	if t.Payload != nil {
		// the map form of Updates bypasses the serializer
		data, err := marshalPayload(*t.Payload)
		if err != nil {
			return nil, fmt.Errorf("unable to marshal state payload: %w", err)
		}
		result["payload"] = string(data)
	}
	if t.MarkPreAuthorisedCodeUsed {
		result["pre_authorised_code_is_used"] = true
	}
	return result, nil
}

// StateStore persists IssuanceState records. Every consumption of a correlation value is a single conditional update
// on (id, step, status), so concurrent or replayed requests for the same record have exactly one winner.
type StateStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStateStore creates a StateStore on the given database.
func NewStateStore(db *gorm.DB) *StateStore {
	return &StateStore{db: db, now: time.Now}
}

// withDB returns a StateStore that operates on the given database handle, e.g. a transaction.
func (s *StateStore) withDB(db *gorm.DB) *StateStore {
	return &StateStore{db: db, now: s.now}
}

// Create stores a new state record. The ID is generated if empty, the status is always UNCLAIMED.
func (s *StateStore) Create(ctx context.Context, state *IssuanceState) error {
	if state.ID == "" {
		state.ID = uuid.NewString()
	}
	if state.Step == "" {
		return errors.New("issuance state step is required")
	}
	now := s.now().Unix()
	state.Status = StatusUnclaimed
	state.CreatedAt = now
	state.UpdatedAt = now
	return s.db.WithContext(ctx).Create(state).Error
}

// FindByID returns the state record with the given ID, regardless of step and status.
func (s *StateStore) FindByID(ctx context.Context, id string) (*IssuanceState, error) {
	var result IssuanceState
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FindByServerDefinedState returns the unclaimed record at the given step (AUTHORIZE or VP_REQUEST) with the given server-defined state.
func (s *StateStore) FindByServerDefinedState(ctx context.Context, state string, step Step) (*IssuanceState, error) {
	return s.find(ctx, "server_defined_state", state, step)
}

// FindByCode returns the unclaimed AUTH_RESPONSE record with the given authorization code.
func (s *StateStore) FindByCode(ctx context.Context, code string) (*IssuanceState, error) {
	return s.find(ctx, "code", code, StepAuthResponse)
}

// FindByCNonce returns the unclaimed TOKEN_REQUEST record with the given c_nonce.
func (s *StateStore) FindByCNonce(ctx context.Context, cNonce string) (*IssuanceState, error) {
	return s.find(ctx, "c_nonce", cNonce, StepTokenRequest)
}

// FindByPreAuthorisedCode returns the unclaimed AUTH_RESPONSE record with the given pre-authorized code.
func (s *StateStore) FindByPreAuthorisedCode(ctx context.Context, code string) (*IssuanceState, error) {
	return s.find(ctx, "pre_authorised_code", code, StepAuthResponse)
}

// FindByAcceptanceToken returns the unclaimed DEFERRED_REQUEST record with the given acceptance token.
func (s *StateStore) FindByAcceptanceToken(ctx context.Context, token string) (*IssuanceState, error) {
	return s.find(ctx, "acceptance_token", token, StepDeferredRequest)
}

func (s *StateStore) find(ctx context.Context, column string, value string, step Step) (*IssuanceState, error) {
	if value == "" {
		return nil, types.ErrNotFound
	}
	var result IssuanceState
	err := s.db.WithContext(ctx).
		Where(column+" = ? AND step = ? AND status = ?", value, step, StatusUnclaimed).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// PreAuthorisedCodeExists returns true if a record with the given pre-authorized code exists, regardless of its step and status.
func (s *StateStore) PreAuthorisedCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&IssuanceState{}).Where("pre_authorised_code = ?", code).Count(&count).Error
	return count > 0, err
}

// Advance moves the record from one step to the next, if it is still unclaimed at the from step.
// It returns ErrInvalidTransition if to doesn't directly follow from, and ErrStateConflict if the record was
// consumed or advanced in the meantime.
func (s *StateStore) Advance(ctx context.Context, id string, from Step, to Step, transition Transition) error {
	if !slices.Contains(allowedTransitions[from], to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}
	updates, err := transition.columns()
	if err != nil {
		return err
	}
	updates["step"] = to
	return s.update(ctx, id, from, transition.MarkPreAuthorisedCodeUsed, updates)
}

// Claim marks the record as consumed at its current step. A claimed record is never found by the lookups again.
func (s *StateStore) Claim(ctx context.Context, id string, step Step, transition Transition) error {
	updates, err := transition.columns()
	if err != nil {
		return err
	}
	updates["status"] = StatusClaimed
	return s.update(ctx, id, step, transition.MarkPreAuthorisedCodeUsed, updates)
}

func (s *StateStore) update(ctx context.Context, id string, step Step, requireUnusedCode bool, updates map[string]interface{}) error {
	updates["updated_at"] = s.now().Unix()
	query := s.db.WithContext(ctx).Model(&IssuanceState{}).
		Where("id = ? AND step = ? AND status = ?", id, step, StatusUnclaimed)
	if requireUnusedCode {
		query = query.Where("pre_authorised_code_is_used = ?", false)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateConflict
	}
	return nil
}

// DeleteByClientID deletes all records of the given wallet. It returns the number of deleted records.
func (s *StateStore) DeleteByClientID(ctx context.Context, clientID string) (int64, error) {
	if clientID == "" {
		return 0, errors.New("client ID is required")
	}
	result := s.db.WithContext(ctx).Where("client_id = ?", clientID).Delete(&IssuanceState{})
	return result.RowsAffected, result.Error
}
