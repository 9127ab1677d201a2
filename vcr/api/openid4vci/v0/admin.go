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

package v0

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nuts-foundation/ebsi-issuer/audit"
	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/vcr/issuer"
	"github.com/nuts-foundation/ebsi-issuer/vcr/log"
	"github.com/nuts-foundation/ebsi-issuer/vcr/openid4vci"
)

// CreateCredentialOfferRequest is the body of the create credential offer operation.
type CreateCredentialOfferRequest struct {
	SubjectDID      string   `json:"subject_did"`
	CredentialTypes []string `json:"credential_types"`
	// GrantType is authorization_code (default) or urn:ietf:params:oauth:grant-type:pre-authorized_code.
	GrantType string `json:"grant_type,omitempty"`
	// ExpiresIn is the validity of the offer in seconds.
	ExpiresIn int `json:"expires_in,omitempty"`
}

// CreateCredentialOfferResponse is returned by the create credential offer operation.
type CreateCredentialOfferResponse struct {
	ID                 string                     `json:"id"`
	CredentialOffer    openid4vci.CredentialOffer `json:"credential_offer"`
	CredentialOfferURI string                     `json:"credential_offer_uri"`
	// UserPIN must be passed to the holder out of band, it is only set for pre-authorized_code offers.
	UserPIN string `json:"user_pin,omitempty"`
}

// RegisterPreAuthorisedCodeRequest is the body of the register pre-authorized code operation.
type RegisterPreAuthorisedCodeRequest struct {
	ClientID        string   `json:"client_id,omitempty"`
	CredentialTypes []string `json:"credential_types"`
	Code            string   `json:"pre-authorized_code,omitempty"`
	PIN             string   `json:"user_pin,omitempty"`
}

// RegisterPreAuthorisedCodeResponse is returned by the register pre-authorized code operation.
type RegisterPreAuthorisedCodeResponse struct {
	StateID string `json:"state_id"`
	Code    string `json:"pre-authorized_code"`
	PIN     string `json:"user_pin"`
}

// RevokeCredentialRequest is the body of the revoke credential operation.
type RevokeCredentialRequest struct {
	CredentialID string `json:"credential_id"`
}

// DeleteConformanceStateResponse is returned by the delete conformance state operation.
type DeleteConformanceStateResponse struct {
	Deleted int64 `json:"deleted"`
}

// CreateCredentialOffer creates a credential offer for a holder.
func (w Wrapper) CreateCredentialOffer(ctx echo.Context, openid issuer.OpenIDHandler) error {
	var body CreateCredentialOfferRequest
	if err := ctx.Bind(&body); err != nil {
		return core.InvalidInputError("invalid request body: %w", err)
	}
	if body.ExpiresIn < 0 {
		return core.InvalidInputError("expires_in must not be negative")
	}
	offer, err := openid.CreateOffer(ctx.Request().Context(), issuer.OfferRequest{
		SubjectDID:      body.SubjectDID,
		CredentialTypes: body.CredentialTypes,
		GrantType:       body.GrantType,
		ExpiresIn:       time.Duration(body.ExpiresIn) * time.Second,
	})
	if err != nil {
		return err
	}
	audit.Log(ctx.Request().Context(), log.Logger(), audit.CredentialOfferCreatedEvent).
		WithField(core.LogFieldIssuanceStateID, offer.ID).
		Infof("Created credential offer for %s", body.SubjectDID)
	return ctx.JSON(http.StatusOK, CreateCredentialOfferResponse{
		ID:                 offer.ID,
		CredentialOffer:    offer.Offer,
		CredentialOfferURI: offer.URI,
		UserPIN:            offer.PIN,
	})
}

// RegisterPreAuthorisedCode registers a pre-authorized code, e.g. for the conformance tests.
func (w Wrapper) RegisterPreAuthorisedCode(ctx echo.Context, openid issuer.OpenIDHandler) error {
	var body RegisterPreAuthorisedCodeRequest
	if err := ctx.Bind(&body); err != nil {
		return core.InvalidInputError("invalid request body: %w", err)
	}
	result, err := openid.RegisterPreAuthorisedCode(ctx.Request().Context(), issuer.PreAuthorisedCodeRequest{
		ClientID:        body.ClientID,
		CredentialTypes: body.CredentialTypes,
		Code:            body.Code,
		PIN:             body.PIN,
	})
	if err != nil {
		return err
	}
	audit.Log(ctx.Request().Context(), log.Logger(), audit.PreAuthorisedCodeRegisteredEvent).
		WithField(core.LogFieldIssuanceStateID, result.StateID).
		Info("Registered pre-authorised code")
	return ctx.JSON(http.StatusOK, RegisterPreAuthorisedCodeResponse{
		StateID: result.StateID,
		Code:    result.Code,
		PIN:     result.PIN,
	})
}

// RevokeCredential revokes an issued credential by setting its bit in the status list.
func (w Wrapper) RevokeCredential(ctx echo.Context, openid issuer.OpenIDHandler) error {
	var body RevokeCredentialRequest
	if err := ctx.Bind(&body); err != nil {
		return core.InvalidInputError("invalid request body: %w", err)
	}
	if body.CredentialID == "" {
		return core.InvalidInputError("credential_id is required")
	}
	if err := openid.Revoke(ctx.Request().Context(), body.CredentialID); err != nil {
		return err
	}
	audit.Log(ctx.Request().Context(), log.Logger(), audit.CredentialRevokedEvent).
		WithField(core.LogFieldCredentialID, body.CredentialID).
		Info("Revoked credential")
	return ctx.NoContent(http.StatusNoContent)
}

// RejectCredential rejects a pending (deferred) credential.
func (w Wrapper) RejectCredential(ctx echo.Context, openid issuer.OpenIDHandler) error {
	if err := openid.RejectCredential(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	audit.Log(ctx.Request().Context(), log.Logger(), audit.CredentialRejectedEvent).
		WithField(core.LogFieldIssuanceStateID, ctx.Param("id")).
		Info("Rejected deferred credential")
	return ctx.NoContent(http.StatusNoContent)
}

// DeleteConformanceState deletes the issuance state of a wallet, so a conformance test run can start over.
func (w Wrapper) DeleteConformanceState(ctx echo.Context, openid issuer.OpenIDHandler) error {
	count, err := openid.DeleteConformanceState(ctx.Request().Context(), ctx.Param("clientID"))
	if err != nil {
		return err
	}
	audit.Log(ctx.Request().Context(), log.Logger(), audit.ConformanceStateDeletedEvent).
		WithField(core.LogFieldClientID, ctx.Param("clientID")).
		Infof("Deleted %d issuance state records", count)
	return ctx.JSON(http.StatusOK, DeleteConformanceStateResponse{Deleted: count})
}
