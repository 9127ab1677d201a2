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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nuts-foundation/ebsi-issuer/storage"
	"github.com/nuts-foundation/ebsi-issuer/vcr/openid4vci"
	"github.com/nuts-foundation/ebsi-issuer/vcr/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateStore(t *testing.T) *StateStore {
	return NewStateStore(storage.NewTestStorageEngine(t).GetSQLDatabase())
}

func newAuthorizeState() *IssuanceState {
	return &IssuanceState{
		Flow:                openid4vci.CredentialIssuanceFlow,
		Step:                StepAuthorize,
		ClientID:            "did:key:abc",
		CodeChallenge:       "challenge",
		CodeChallengeMethod: openid4vci.PKCEMethodS256,
		RedirectURI:         "openid://",
		Scope:               openid4vci.ScopeOpenID,
		ResponseType:        openid4vci.ResponseTypeCode,
		ServerDefinedState:  "server-state",
		ServerDefinedNonce:  "server-nonce",
		Payload: StatePayload{AuthorizationDetails: []openid4vci.AuthorizationDetail{{
			Type:   openid4vci.OpenIDCredentialAuthorizationDetailType,
			Format: openid4vci.JWTVCFormat,
			Types:  []string{"VerifiableCredential", "VerifiableAttestation", "CTWalletSameInTime"},
		}}},
	}
}

func TestStateStore_Create(t *testing.T) {
	ctx := context.Background()
	store := newTestStateStore(t)
	state := newAuthorizeState()

	err := store.Create(ctx, state)

	require.NoError(t, err)
	assert.NotEmpty(t, state.ID)
	assert.Equal(t, StatusUnclaimed, state.Status)
	stored, err := store.FindByID(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, state.ClientID, stored.ClientID)
	assert.Nil(t, stored.OfferID)
	assert.Equal(t, []string{"VerifiableCredential", "VerifiableAttestation", "CTWalletSameInTime"}, stored.RequestedTypes())

	t.Run("step is required", func(t *testing.T) {
		err := store.Create(ctx, &IssuanceState{ClientID: "did:key:abc"})

		assert.EqualError(t, err, "issuance state step is required")
	})
}

func TestStateStore_Find(t *testing.T) {
	ctx := context.Background()
	store := newTestStateStore(t)
	state := newAuthorizeState()
	require.NoError(t, store.Create(ctx, state))

	t.Run("by server defined state", func(t *testing.T) {
		found, err := store.FindByServerDefinedState(ctx, "server-state", StepAuthorize)

		require.NoError(t, err)
		assert.Equal(t, state.ID, found.ID)
	})
	t.Run("wrong step", func(t *testing.T) {
		_, err := store.FindByServerDefinedState(ctx, "server-state", StepVPRequest)

		assert.ErrorIs(t, err, types.ErrNotFound)
	})
	t.Run("empty value never matches", func(t *testing.T) {
		_, err := store.FindByCode(ctx, "")

		assert.ErrorIs(t, err, types.ErrNotFound)
	})
	t.Run("code is only found at AUTH_RESPONSE", func(t *testing.T) {
		other := newAuthorizeState()
		other.ServerDefinedState = "other"
		other.Code = "code-at-authorize"
		require.NoError(t, store.Create(ctx, other))

		_, err := store.FindByCode(ctx, "code-at-authorize")

		assert.ErrorIs(t, err, types.ErrNotFound)
	})
	t.Run("unknown ID", func(t *testing.T) {
		_, err := store.FindByID(ctx, "unknown")

		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestStateStore_Advance(t *testing.T) {
	ctx := context.Background()
	expiry := time.Now().Add(time.Minute).Truncate(time.Second)

	t.Run("sets fields and moves to the next step", func(t *testing.T) {
		store := newTestStateStore(t)
		state := newAuthorizeState()
		require.NoError(t, store.Create(ctx, state))
		payload := state.Payload
		payload.IDToken = "id-token"

		err := store.Advance(ctx, state.ID, StepAuthorize, StepAuthResponse, Transition{Code: "code", CodeExpiresAt: expiry, Payload: &payload})

		require.NoError(t, err)
		found, err := store.FindByCode(ctx, "code")
		require.NoError(t, err)
		assert.Equal(t, StepAuthResponse, found.Step)
		assert.Equal(t, expiry.Unix(), found.CodeExpiresAt)
		assert.Equal(t, "id-token", found.Payload.IDToken)
		assert.Equal(t, state.RequestedTypes(), found.RequestedTypes())
	})
	t.Run("payload marshal error", func(t *testing.T) {
		store := newTestStateStore(t)
		state := newAuthorizeState()
		require.NoError(t, store.Create(ctx, state))
		marshalPayload = func(_ StatePayload) ([]byte, error) {
			return nil, errors.New("failed")
		}
		defer func() {
			marshalPayload = func(payload StatePayload) ([]byte, error) {
				return json.Marshal(payload)
			}
		}()

		err := store.Advance(ctx, state.ID, StepAuthorize, StepAuthResponse, Transition{Code: "code", Payload: &state.Payload})

		assert.EqualError(t, err, "unable to marshal state payload: failed")
		_, err = store.FindByCode(ctx, "code")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
	t.Run("steps can't be skipped", func(t *testing.T) {
		store := newTestStateStore(t)
		state := newAuthorizeState()
		require.NoError(t, store.Create(ctx, state))

		for _, to := range []Step{StepTokenRequest, StepDeferredRequest, StepVerificationRequest, StepAuthorize} {
			err := store.Advance(ctx, state.ID, StepAuthorize, to, Transition{})

			assert.ErrorIs(t, err, ErrInvalidTransition, string(to))
		}
		found, err := store.FindByID(ctx, state.ID)
		require.NoError(t, err)
		assert.Equal(t, StepAuthorize, found.Step)
	})
	t.Run("advancing from a step the record isn't at fails", func(t *testing.T) {
		store := newTestStateStore(t)
		state := newAuthorizeState()
		require.NoError(t, store.Create(ctx, state))

		err := store.Advance(ctx, state.ID, StepAuthResponse, StepTokenRequest, Transition{CNonce: "nonce"})

		assert.ErrorIs(t, err, ErrStateConflict)
	})
	t.Run("a correlation value is consumed once", func(t *testing.T) {
		store := newTestStateStore(t)
		state := newAuthorizeState()
		require.NoError(t, store.Create(ctx, state))
		require.NoError(t, store.Advance(ctx, state.ID, StepAuthorize, StepAuthResponse, Transition{Code: "code"}))

		first := store.Advance(ctx, state.ID, StepAuthResponse, StepTokenRequest, Transition{CNonce: "c-nonce-1"})
		second := store.Advance(ctx, state.ID, StepAuthResponse, StepTokenRequest, Transition{CNonce: "c-nonce-2"})

		assert.NoError(t, first)
		assert.ErrorIs(t, second, ErrStateConflict)
		_, err := store.FindByCode(ctx, "code")
		assert.ErrorIs(t, err, types.ErrNotFound)
		found, err := store.FindByCNonce(ctx, "c-nonce-1")
		require.NoError(t, err)
		assert.Equal(t, state.ID, found.ID)
	})
	t.Run("concurrent advances have exactly one winner", func(t *testing.T) {
		store := newTestStateStore(t)
		state := newAuthorizeState()
		require.NoError(t, store.Create(ctx, state))
		var wg sync.WaitGroup
		var succeeded atomic.Int32
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if store.Advance(ctx, state.ID, StepAuthorize, StepAuthResponse, Transition{Code: "code"}) == nil {
					succeeded.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), succeeded.Load())
	})
	t.Run("pre-authorized code can only be used once", func(t *testing.T) {
		store := newTestStateStore(t)
		state := &IssuanceState{
			Flow:                 openid4vci.PreAuthorisedFlow,
			Step:                 StepAuthResponse,
			PreAuthorisedCode:    "pre-auth",
			PreAuthorisedCodePin: "1234",
		}
		require.NoError(t, store.Create(ctx, state))

		err := store.Advance(ctx, state.ID, StepAuthResponse, StepTokenRequest, Transition{CNonce: "c", MarkPreAuthorisedCodeUsed: true})

		require.NoError(t, err)
		found, err := store.FindByID(ctx, state.ID)
		require.NoError(t, err)
		assert.True(t, found.PreAuthorisedCodeIsUsed)
		exists, err := store.PreAuthorisedCodeExists(ctx, "pre-auth")
		require.NoError(t, err)
		assert.True(t, exists)
		_, err = store.FindByPreAuthorisedCode(ctx, "pre-auth")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
	t.Run("VP branch", func(t *testing.T) {
		store := newTestStateStore(t)
		state := newAuthorizeState()
		state.Step = StepVPRequest
		require.NoError(t, store.Create(ctx, state))

		assert.ErrorIs(t, store.Advance(ctx, state.ID, StepVPRequest, StepAuthResponse, Transition{}), ErrInvalidTransition)
		assert.NoError(t, store.Advance(ctx, state.ID, StepVPRequest, StepVerificationRequest, Transition{Code: "code"}))
	})
}

func TestStateStore_Claim(t *testing.T) {
	ctx := context.Background()
	store := newTestStateStore(t)
	state := newAuthorizeState()
	require.NoError(t, store.Create(ctx, state))
	require.NoError(t, store.Advance(ctx, state.ID, StepAuthorize, StepAuthResponse, Transition{Code: "code"}))
	require.NoError(t, store.Advance(ctx, state.ID, StepAuthResponse, StepTokenRequest, Transition{CNonce: "c-nonce"}))

	first := store.Claim(ctx, state.ID, StepTokenRequest, Transition{CredentialID: "urn:uuid:1"})
	second := store.Claim(ctx, state.ID, StepTokenRequest, Transition{CredentialID: "urn:uuid:2"})

	assert.NoError(t, first)
	assert.ErrorIs(t, second, ErrStateConflict)
	_, err := store.FindByCNonce(ctx, "c-nonce")
	assert.ErrorIs(t, err, types.ErrNotFound)
	found, err := store.FindByID(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusClaimed, found.Status)
	assert.Equal(t, StepTokenRequest, found.Step)
	assert.Equal(t, "urn:uuid:1", found.CredentialID)
	t.Run("claimed record can't advance", func(t *testing.T) {
		err := store.Advance(ctx, state.ID, StepTokenRequest, StepDeferredRequest, Transition{AcceptanceToken: "token"})

		assert.ErrorIs(t, err, ErrStateConflict)
	})
}

func TestStateStore_DeleteByClientID(t *testing.T) {
	ctx := context.Background()
	store := newTestStateStore(t)
	require.NoError(t, store.Create(ctx, newAuthorizeState()))
	other := newAuthorizeState()
	other.ClientID = "did:key:other"
	require.NoError(t, store.Create(ctx, other))

	count, err := store.DeleteByClientID(ctx, "did:key:abc")

	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	_, err = store.FindByID(ctx, other.ID)
	assert.NoError(t, err)
	t.Run("client ID is required", func(t *testing.T) {
		_, err := store.DeleteByClientID(ctx, "")

		assert.Error(t, err)
	})
}

func TestIssuanceState_Expired(t *testing.T) {
	now := time.Now()
	assert.False(t, IssuanceState{}.CodeExpired(now))
	assert.False(t, IssuanceState{CodeExpiresAt: now.Add(time.Second).Unix()}.CodeExpired(now))
	assert.True(t, IssuanceState{CNonceExpiresAt: now.Add(-2 * time.Second).Unix()}.CNonceExpired(now))
}
