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
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/crypto"
	"github.com/nuts-foundation/ebsi-issuer/storage"
	"github.com/nuts-foundation/ebsi-issuer/vcr/log"
	"github.com/nuts-foundation/ebsi-issuer/vcr/openid4vci"
	"github.com/nuts-foundation/ebsi-issuer/vcr/revocation"
	"github.com/nuts-foundation/ebsi-issuer/vcr/types"
	"github.com/nuts-foundation/ebsi-issuer/vcr/verifier"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// ConformanceCodePrefix is the prefix of pre-authorized codes that are provisioned on first use when conformance mode is enabled.
	ConformanceCodePrefix = "conformance"
	// DefaultConformancePIN is the PIN that must accompany conformance pre-authorized codes.
	DefaultConformancePIN = "1234"
	// preAuthorisedPINDigits is the length of generated PINs.
	preAuthorisedPINDigits = 4
)

var errReplayed = errors.New("value was already used")

// Config holds the settings of the OpenID handler.
type Config struct {
	// IssuerDID is the DID credentials are issued under.
	IssuerDID string
	// CodeTTL is the validity of authorization codes.
	CodeTTL time.Duration
	// OfferTTL is the default validity of credential offers.
	OfferTTL time.Duration
	// CredentialValidity is the validity of issued credentials.
	CredentialValidity time.Duration
	// ReplayTTL is how long used ID tokens, VP tokens and proofs are remembered.
	ReplayTTL time.Duration
	// DeferredDelay is the time after which a deferred credential is issued.
	DeferredDelay time.Duration
	// DeferredTypes are the credential types that are issued deferred.
	DeferredTypes []string
	// Conformance configures the conformance test support.
	Conformance ConformanceConfig
}

// ConformanceConfig configures support for the EBSI wallet conformance tests.
type ConformanceConfig struct {
	// Enabled enables auto-provisioning of pre-authorized codes starting with ConformanceCodePrefix.
	Enabled bool
	// PIN is the PIN conformance codes must be accompanied by.
	PIN string
}

var _ OpenIDHandler = (*openidHandler)(nil)

type openidHandler struct {
	config      Config
	db          *gorm.DB
	provider    *openid4vci.Provider
	signer      crypto.Signer
	states      *StateStore
	credentials *CredentialStore
	statusList  *revocation.StatusList
	verifier    *verifier.Verifier
	builder     credentialBuilder
	replay      storage.SessionStore
	deferred    *deferredIssuer
	metrics     *issuerMetrics
	now         func() time.Time
}

// NewOpenIDHandler creates an OpenIDHandler. Call Shutdown to stop deferred issuance.
func NewOpenIDHandler(provider *openid4vci.Provider, signer crypto.Signer, db *gorm.DB, sessions storage.SessionDatabase,
	statusList *revocation.StatusList, presentationVerifier *verifier.Verifier, templates TemplateRenderer, config Config) (*OpenIDService, error) {
	metrics, err := newIssuerMetrics()
	if err != nil {
		return nil, err
	}
	h := &openidHandler{
		config:      config,
		db:          db,
		provider:    provider,
		signer:      signer,
		states:      NewStateStore(db),
		credentials: NewCredentialStore(db),
		statusList:  statusList,
		verifier:    presentationVerifier,
		replay:      sessions.GetStore(config.ReplayTTL, "openid4vci", "replay"),
		metrics:     metrics,
		now:         time.Now,
	}
	h.builder = credentialBuilder{
		issuerDID:  config.IssuerDID,
		signer:     signer,
		templates:  templates,
		statusList: statusList,
		validity:   config.CredentialValidity,
		now:        func() time.Time { return h.now() },
	}
	h.deferred = newDeferredIssuer(config.DeferredDelay, h.issueDeferred)
	return &OpenIDService{OpenIDHandler: h, shutdown: h.deferred.shutdown}, nil
}

// OpenIDService is the OpenIDHandler with its lifecycle.
type OpenIDService struct {
	OpenIDHandler
	shutdown func()
}

// Shutdown cancels scheduled deferred issuance and waits for running issuance to finish.
func (s *OpenIDService) Shutdown() {
	s.shutdown()
}

func (h *openidHandler) IssuerMetadata() openid4vci.CredentialIssuerMetadata {
	return h.provider.IssuerMetadata()
}

func (h *openidHandler) ProviderMetadata() openid4vci.ProviderMetadata {
	return h.provider.ProviderMetadata()
}

func (h *openidHandler) JWKS() jwk.Set {
	set := jwk.NewSet()
	_ = set.AddKey(h.signer.PublicKey())
	return set
}

func (h *openidHandler) Authorize(ctx context.Context, request openid4vci.AuthorizeRequest) (*openid4vci.Redirect, error) {
	var offer *CredentialOffer
	if request.IssuerState != "" {
		var err error
		offer, err = h.credentials.FindOfferByIssuerState(ctx, request.IssuerState)
		if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrExpired) {
			return nil, openid4vci.InvalidRequestError("issuer_state is unknown, expired or already used")
		}
		if err != nil {
			return nil, err
		}
		if offer.SubjectDID != request.ClientID {
			return nil, openid4vci.InvalidRequestError("issuer_state was issued to another subject")
		}
	}
	result, err := h.provider.HandleAuthorizationRequest(ctx, request, "", nil)
	if err != nil {
		h.metrics.protocolErr.WithLabelValues("authorize").Inc()
		return nil, err
	}
	step := StepAuthorize
	if result.Flow == openid4vci.VPTokenTestFlow {
		step = StepVPRequest
	}
	state := &IssuanceState{
		Flow:                result.Flow,
		Step:                step,
		ClientID:            request.ClientID,
		CodeChallenge:       request.CodeChallenge,
		CodeChallengeMethod: request.CodeChallengeMethod,
		RedirectURI:         request.RedirectURI,
		Scope:               request.Scope,
		ResponseType:        request.ResponseType,
		ServerDefinedState:  result.ServerDefinedState,
		ServerDefinedNonce:  result.ServerDefinedNonce,
		WalletDefinedState:  request.State,
		WalletDefinedNonce:  request.Nonce,
		WalletRedirectURI:   result.WalletRedirectURI,
		Payload:             StatePayload{AuthorizationDetails: result.AuthorizationDetails},
	}
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if offer != nil {
			if err := h.credentials.withDB(tx).MarkOfferUsed(ctx, offer.ID); err != nil {
				return err
			}
			state.OfferID = &offer.ID
		}
		if err := h.states.withDB(tx).Create(ctx, state); err != nil {
			return fmt.Errorf("unable to store issuance state: %w", err)
		}
		return nil
	})
	if errors.Is(err, ErrStateConflict) {
		return nil, openid4vci.InvalidRequestError("issuer_state is unknown, expired or already used")
	}
	if err != nil {
		return nil, err
	}
	h.logger(state).Debugf("Authorization request accepted (flow=%s)", state.Flow)
	return &result.Redirect, nil
}

func (h *openidHandler) DirectPost(ctx context.Context, request openid4vci.DirectPostRequest) (*openid4vci.Redirect, error) {
	if request.VPToken != "" {
		return h.directPostVPToken(ctx, request)
	}
	state, err := h.states.FindByServerDefinedState(ctx, request.State, StepAuthorize)
	if errors.Is(err, types.ErrNotFound) {
		h.metrics.protocolErr.WithLabelValues("direct_post").Inc()
		return nil, openid4vci.InvalidGrantError(err)
	}
	if err != nil {
		return nil, err
	}
	decoded, err := h.provider.DecodeIDTokenResponse(request.IDToken)
	if err != nil {
		return h.errorRedirect(state, err)
	}
	if decoded.Issuer() != state.ClientID {
		return h.errorRedirect(state, openid4vci.AccessDeniedError("id_token is not issued by the client", openid4vci.ErrInvalidIssuer))
	}
	if subtle.ConstantTimeCompare([]byte(decoded.StringClaim("nonce")), []byte(state.ServerDefinedNonce)) != 1 {
		return h.errorRedirect(state, openid4vci.AccessDeniedError("id_token nonce doesn't match", nil))
	}
	verified, err := h.provider.VerifyHolderJWT(ctx, request.IDToken)
	if err != nil {
		return h.errorRedirect(state, err)
	}
	if err = h.markUsed("id_token", verified.Issuer(), verified.Claims.JwtID(), request.IDToken); err != nil {
		return h.errorRedirect(state, openid4vci.AccessDeniedError("id_token was already used", err))
	}
	payload := state.Payload
	payload.IDToken = request.IDToken
	return h.issueCode(ctx, state, StepAuthResponse, payload)
}

func (h *openidHandler) directPostVPToken(ctx context.Context, request openid4vci.DirectPostRequest) (*openid4vci.Redirect, error) {
	state, err := h.states.FindByServerDefinedState(ctx, request.State, StepVPRequest)
	if errors.Is(err, types.ErrNotFound) {
		h.metrics.protocolErr.WithLabelValues("direct_post").Inc()
		return nil, openid4vci.InvalidGrantError(err)
	}
	if err != nil {
		return nil, err
	}
	if request.PresentationSubmission == nil {
		return h.errorRedirect(state, openid4vci.InvalidRequestError("presentation_submission is required"))
	}
	presentation, err := h.verifier.Verify(ctx, request.VPToken, *request.PresentationSubmission, state.ServerDefinedNonce, h.provider.Config().IssuerURL)
	if err != nil {
		return h.errorRedirect(state, openid4vci.AccessDeniedError("vp_token could not be verified", err))
	}
	if presentation.Holder != state.ClientID {
		return h.errorRedirect(state, openid4vci.AccessDeniedError("vp_token is not issued by the client", openid4vci.ErrInvalidIssuer))
	}
	if err = h.markUsed("vp_token", presentation.Holder, "", request.VPToken); err != nil {
		return h.errorRedirect(state, openid4vci.AccessDeniedError("vp_token was already used", err))
	}
	payload := state.Payload
	payload.VPToken = request.VPToken
	return h.issueCode(ctx, state, StepVerificationRequest, payload)
}

// issueCode advances the state to the given step with a fresh authorization code, and redirects the wallet with it.
func (h *openidHandler) issueCode(ctx context.Context, state *IssuanceState, to Step, payload StatePayload) (*openid4vci.Redirect, error) {
	code := crypto.GenerateNonce()
	err := h.states.Advance(ctx, state.ID, state.Step, to, Transition{
		Code:          code,
		CodeExpiresAt: h.now().Add(h.config.CodeTTL),
		Payload:       &payload,
	})
	if errors.Is(err, ErrStateConflict) {
		return nil, openid4vci.InvalidGrantError(err)
	}
	if err != nil {
		return nil, err
	}
	h.logger(state).WithField(core.LogFieldStep, to).Debug("Wallet response verified, authorization code issued")
	params := url.Values{"code": {code}}
	if state.WalletDefinedState != "" {
		params.Set("state", state.WalletDefinedState)
	}
	return openid4vci.NewRedirect(state.RedirectURI, params)
}

// errorRedirect redirects the wallet to its redirect_uri with the protocol error.
// Errors that aren't protocol errors are returned as-is.
func (h *openidHandler) errorRedirect(state *IssuanceState, err error) (*openid4vci.Redirect, error) {
	h.metrics.protocolErr.WithLabelValues("direct_post").Inc()
	var protocolErr openid4vci.Error
	if !errors.As(err, &protocolErr) || state.RedirectURI == "" {
		return nil, err
	}
	h.logger(state).WithError(err).Info("Wallet response rejected")
	params := url.Values{"error": {string(protocolErr.Code)}}
	if protocolErr.Description != "" {
		params.Set("error_description", protocolErr.Description)
	}
	if state.WalletDefinedState != "" {
		params.Set("state", state.WalletDefinedState)
	}
	redirect, redirectErr := openid4vci.NewRedirect(state.RedirectURI, params)
	if redirectErr != nil {
		return nil, err
	}
	return redirect, nil
}

func (h *openidHandler) Token(ctx context.Context, request openid4vci.TokenRequest) (*openid4vci.TokenResponse, error) {
	var response *openid4vci.TokenResponse
	var err error
	switch request.GrantType {
	case openid4vci.AuthorizationCodeGrant:
		response, err = h.tokenWithAuthorizationCode(ctx, request)
	case openid4vci.PreAuthorizedCodeGrant:
		response, err = h.tokenWithPreAuthorisedCode(ctx, request)
	case "":
		err = openid4vci.InvalidRequestError("grant_type is required")
	default:
		err = openid4vci.Error{Code: openid4vci.UnsupportedGrantType, Description: "grant_type is not supported"}
	}
	if err != nil {
		h.metrics.protocolErr.WithLabelValues("token").Inc()
		return nil, err
	}
	h.metrics.tokens.WithLabelValues(request.GrantType).Inc()
	return response, nil
}

func (h *openidHandler) tokenWithAuthorizationCode(ctx context.Context, request openid4vci.TokenRequest) (*openid4vci.TokenResponse, error) {
	if request.Code == "" {
		return nil, openid4vci.InvalidRequestError("code is required")
	}
	state, err := h.states.FindByCode(ctx, request.Code)
	if errors.Is(err, types.ErrNotFound) {
		return nil, openid4vci.InvalidGrantError(err)
	}
	if err != nil {
		return nil, err
	}
	if state.CodeExpired(h.now()) {
		return nil, openid4vci.InvalidGrantError(types.ErrExpired)
	}
	if request.ClientID != "" && request.ClientID != state.ClientID {
		return nil, openid4vci.InvalidGrantError(errors.New("client_id doesn't match the authorization request"))
	}
	if request.RedirectURI != "" && request.RedirectURI != state.RedirectURI {
		return nil, openid4vci.InvalidGrantError(errors.New("redirect_uri doesn't match the authorization request"))
	}
	if state.Flow == openid4vci.CredentialIssuanceFlow || state.CodeChallenge != "" {
		if err = openid4vci.ValidateCodeChallenge(state.CodeChallenge, state.CodeChallengeMethod, request.CodeVerifier); err != nil {
			return nil, err
		}
	}
	cNonce := crypto.GenerateNonce()
	err = h.states.Advance(ctx, state.ID, StepAuthResponse, StepTokenRequest, Transition{
		CNonce:          cNonce,
		CNonceExpiresAt: h.now().Add(h.provider.Config().CNonceTTL),
	})
	if errors.Is(err, ErrStateConflict) {
		return nil, openid4vci.InvalidGrantError(err)
	}
	if err != nil {
		return nil, err
	}
	h.logger(state).Debug("Authorization code exchanged for access token")
	return h.provider.ComposeTokenResponse(ctx, state.ClientID, state.Payload.AuthorizationDetails, cNonce, state.WalletDefinedNonce)
}

func (h *openidHandler) tokenWithPreAuthorisedCode(ctx context.Context, request openid4vci.TokenRequest) (*openid4vci.TokenResponse, error) {
	if request.PreAuthorizedCode == "" {
		return nil, openid4vci.InvalidRequestError("pre-authorized_code is required")
	}
	state, err := h.states.FindByPreAuthorisedCode(ctx, request.PreAuthorizedCode)
	if errors.Is(err, types.ErrNotFound) && h.isConformanceCode(request.PreAuthorizedCode, request.UserPIN) {
		state, err = h.provisionConformanceState(ctx, request.PreAuthorizedCode, request.ClientID)
	}
	if errors.Is(err, types.ErrNotFound) {
		return nil, openid4vci.InvalidGrantError(err)
	}
	if err != nil {
		return nil, err
	}
	// unknown code, used code and wrong PIN all yield the same error
	if state.PreAuthorisedCodeIsUsed || subtle.ConstantTimeCompare([]byte(request.UserPIN), []byte(state.PreAuthorisedCodePin)) != 1 {
		return nil, openid4vci.InvalidGrantError(errors.New("pre-authorized code is used or PIN doesn't match"))
	}
	transition := Transition{
		CNonce:                    crypto.GenerateNonce(),
		CNonceExpiresAt:           h.now().Add(h.provider.Config().CNonceTTL),
		MarkPreAuthorisedCodeUsed: true,
	}
	subject := state.ClientID
	if subject == "" && request.ClientID != "" {
		subject = request.ClientID
		transition.ClientID = request.ClientID
	} else if request.ClientID != "" && request.ClientID != subject {
		return nil, openid4vci.InvalidGrantError(errors.New("client_id doesn't match the pre-authorized code"))
	}
	err = h.states.Advance(ctx, state.ID, StepAuthResponse, StepTokenRequest, transition)
	if errors.Is(err, ErrStateConflict) {
		return nil, openid4vci.InvalidGrantError(err)
	}
	if err != nil {
		return nil, err
	}
	if subject == "" {
		// bound to the signer of the credential request proof
		subject = state.ID
	}
	h.logger(state).Debug("Pre-authorized code exchanged for access token")
	return h.provider.ComposeTokenResponse(ctx, subject, state.Payload.AuthorizationDetails, transition.CNonce, "")
}

func (h *openidHandler) isConformanceCode(code string, pin string) bool {
	return h.config.Conformance.Enabled &&
		strings.HasPrefix(code, ConformanceCodePrefix) &&
		subtle.ConstantTimeCompare([]byte(pin), []byte(h.config.Conformance.PIN)) == 1
}

// provisionConformanceState creates the state of a conformance pre-authorized code on its first use.
// A code can only be provisioned once, so a replayed code fails like any other used code.
func (h *openidHandler) provisionConformanceState(ctx context.Context, code string, clientID string) (*IssuanceState, error) {
	if err := h.markUsed("conformance", "", code, code); errors.Is(err, errReplayed) {
		return nil, types.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	if exists, err := h.states.PreAuthorisedCodeExists(ctx, code); err != nil {
		return nil, err
	} else if exists {
		return nil, types.ErrNotFound
	}
	state := &IssuanceState{
		Flow:                 openid4vci.PreAuthorisedFlow,
		Step:                 StepAuthResponse,
		ClientID:             clientID,
		PreAuthorisedCode:    code,
		PreAuthorisedCodePin: h.config.Conformance.PIN,
		Payload: StatePayload{AuthorizationDetails: []openid4vci.AuthorizationDetail{{
			Type:   openid4vci.OpenIDCredentialAuthorizationDetailType,
			Format: openid4vci.JWTVCFormat,
			Types:  ConformanceCredentialTypes(code),
		}}},
	}
	if err := h.states.Create(ctx, state); err != nil {
		return nil, err
	}
	h.logger(state).Info("Provisioned conformance pre-authorized code")
	return state, nil
}

// ConformanceCredentialTypes returns the credential types a conformance pre-authorized code grants:
// the deferred variant if the code mentions "deferred", otherwise the in-time variant.
func ConformanceCredentialTypes(code string) []string {
	credentialType := "CTWalletSamePreAuthorisedInTime"
	if strings.Contains(strings.ToLower(code), "deferred") {
		credentialType = "CTWalletSamePreAuthorisedDeferred"
	}
	return []string{"VerifiableCredential", "VerifiableAttestation", credentialType}
}

func (h *openidHandler) Credential(ctx context.Context, accessToken string, request openid4vci.CredentialRequest) (*openid4vci.CredentialResponse, error) {
	response, err := h.credential(ctx, accessToken, request)
	if err != nil {
		h.metrics.protocolErr.WithLabelValues("credential").Inc()
	}
	return response, err
}

func (h *openidHandler) credential(ctx context.Context, accessToken string, request openid4vci.CredentialRequest) (*openid4vci.CredentialResponse, error) {
	token, err := h.provider.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	proof, err := h.provider.DecodeCredentialRequest(request)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(proof.Nonce), []byte(token.CNonce)) != 1 {
		return nil, openid4vci.InvalidNonceError(errors.New("proof nonce doesn't match c_nonce"))
	}
	state, err := h.states.FindByCNonce(ctx, token.CNonce)
	if errors.Is(err, types.ErrNotFound) {
		return nil, openid4vci.InvalidNonceError(err)
	}
	if err != nil {
		return nil, err
	}
	if state.CNonceExpired(h.now()) {
		return nil, openid4vci.InvalidNonceError(types.ErrExpired)
	}
	holder := state.ClientID
	if holder == "" {
		holder = proof.Issuer
	} else if token.Subject != holder {
		return nil, openid4vci.InvalidTokenError(errors.New("access token was issued to another client"))
	}
	if err = h.provider.VerifyProof(ctx, *proof, holder); err != nil {
		return nil, err
	}
	requestedTypes := state.RequestedTypes()
	if len(requestedTypes) == 0 || (len(request.Types) > 0 && !openid4vci.SameTypes(request.Types, requestedTypes)) {
		return nil, openid4vci.UnsupportedCredentialTypeError(types.ErrUnsupportedCredentialType)
	}
	if err = h.markUsed("proof", proof.Issuer, proof.JWTID, proof.Raw); err != nil {
		return nil, openid4vci.InvalidProofError("proof was already used", err)
	}
	binding := ""
	if state.ClientID == "" {
		binding = holder
	}
	credentialID := NewCredentialID()
	if h.isDeferred(requestedTypes) {
		return h.deferCredential(ctx, state, credentialID, holder, binding)
	}
	if err = h.states.Claim(ctx, state.ID, StepTokenRequest, Transition{CredentialID: credentialID, ClientID: binding}); err != nil {
		if errors.Is(err, ErrStateConflict) {
			return nil, openid4vci.InvalidNonceError(err)
		}
		return nil, err
	}
	record, err := h.createPending(ctx, credentialID, holder, requestedTypes)
	if err != nil {
		return nil, err
	}
	signed, err := h.issue(ctx, *record)
	if err != nil {
		if rejectErr := h.credentials.Reject(ctx, record.ID); rejectErr != nil {
			log.Logger().WithError(rejectErr).WithField(core.LogFieldCredentialID, record.ID).Warn("Unable to reject failed credential")
		}
		return nil, err
	}
	h.metrics.issued.WithLabelValues(issuanceInTime).Inc()
	return h.provider.ComposeInTimeCredentialResponse(signed, crypto.GenerateNonce())
}

func (h *openidHandler) deferCredential(ctx context.Context, state *IssuanceState, credentialID string, holder string, binding string) (*openid4vci.CredentialResponse, error) {
	response, err := h.provider.ComposeDeferredCredentialResponse(ctx, holder, credentialID, crypto.GenerateNonce())
	if err != nil {
		return nil, err
	}
	err = h.states.Advance(ctx, state.ID, StepTokenRequest, StepDeferredRequest, Transition{
		AcceptanceToken: response.AcceptanceToken,
		CredentialID:    credentialID,
		ClientID:        binding,
	})
	if errors.Is(err, ErrStateConflict) {
		return nil, openid4vci.InvalidNonceError(err)
	}
	if err != nil {
		return nil, err
	}
	if _, err = h.createPending(ctx, credentialID, holder, state.RequestedTypes()); err != nil {
		return nil, err
	}
	h.deferred.schedule(credentialID)
	h.logger(state).WithField(core.LogFieldCredentialID, credentialID).Info("Credential issuance deferred")
	return response, nil
}

func (h *openidHandler) createPending(ctx context.Context, credentialID string, holder string, requestedTypes []string) (*VerifiableCredentialRecord, error) {
	holderRecord, err := h.credentials.FindOrCreateHolder(ctx, holder)
	if err != nil {
		return nil, fmt.Errorf("unable to store holder: %w", err)
	}
	record, err := h.credentials.CreatePending(ctx, credentialID, *holderRecord, requestedTypes, openid4vci.JWTVCFormat)
	if err != nil {
		return nil, fmt.Errorf("unable to store credential: %w", err)
	}
	return record, nil
}

// issue builds and signs the credential, and marks its record ISSUED.
func (h *openidHandler) issue(ctx context.Context, record VerifiableCredentialRecord) (string, error) {
	unsigned, signed, err := h.builder.build(ctx, record)
	if err != nil {
		return "", fmt.Errorf("unable to build credential: %w", err)
	}
	if err = h.credentials.MarkIssued(ctx, record.ID, unsigned, signed); err != nil {
		return "", err
	}
	log.Logger().
		WithField(core.LogFieldCredentialID, record.ID).
		WithField(core.LogFieldCredentialType, record.RequestedCredentials).
		WithField(core.LogFieldDID, record.Holder.DID).
		Info("Issued credential")
	return signed, nil
}

// issueDeferred is run by the deferred issuer. Credentials that were rejected in the meantime are skipped.
func (h *openidHandler) issueDeferred(ctx context.Context, credentialID string) error {
	record, err := h.credentials.Get(ctx, credentialID)
	if err != nil {
		return err
	}
	if record.Status != CredentialPending {
		return nil
	}
	if _, err = h.issue(ctx, *record); err != nil {
		return err
	}
	h.metrics.issued.WithLabelValues(issuanceDeferred).Inc()
	return nil
}

func (h *openidHandler) isDeferred(requestedTypes []string) bool {
	for _, curr := range requestedTypes {
		if slices.Contains(h.config.DeferredTypes, curr) {
			return true
		}
	}
	return false
}

func (h *openidHandler) DeferredCredential(ctx context.Context, acceptanceToken string) (*openid4vci.CredentialResponse, error) {
	credentialID, err := h.provider.VerifyAcceptanceToken(acceptanceToken)
	if err != nil {
		return nil, err
	}
	state, err := h.states.FindByAcceptanceToken(ctx, acceptanceToken)
	if errors.Is(err, types.ErrNotFound) {
		return nil, openid4vci.InvalidTokenError(err)
	}
	if err != nil {
		return nil, err
	}
	if state.CredentialID != credentialID {
		return nil, openid4vci.InvalidTokenError(errors.New("acceptance token doesn't match the issuance state"))
	}
	record, err := h.credentials.Get(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	switch record.Status {
	case CredentialIssued:
		if err = h.states.Claim(ctx, state.ID, StepDeferredRequest, Transition{}); errors.Is(err, ErrStateConflict) {
			return nil, openid4vci.InvalidTokenError(err)
		} else if err != nil {
			return nil, err
		}
		return h.provider.ComposeInTimeCredentialResponse(record.CredentialSigned, crypto.GenerateNonce())
	case CredentialPending:
		return nil, types.ErrCredentialPending
	case CredentialRejected:
		return nil, types.ErrCredentialRejected
	}
	return nil, fmt.Errorf("credential %s has unknown status: %s", record.ID, record.Status)
}

func (h *openidHandler) CreateOffer(ctx context.Context, request OfferRequest) (*Offer, error) {
	if !strings.HasPrefix(request.SubjectDID, "did:") {
		return nil, openid4vci.InvalidRequestError("subject must be a DID")
	}
	if !h.supported(request.CredentialTypes) {
		return nil, openid4vci.UnsupportedCredentialTypeError(types.ErrUnsupportedCredentialType)
	}
	if request.GrantType == "" {
		request.GrantType = openid4vci.AuthorizationCodeGrant
	}
	expiresIn := request.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = h.config.OfferTTL
	}
	record := &CredentialOffer{
		SubjectDID:      request.SubjectDID,
		CredentialTypes: request.CredentialTypes,
		GrantType:       request.GrantType,
		ExpiresAt:       h.now().Add(expiresIn).Unix(),
	}
	var preAuthorisedState *IssuanceState
	switch request.GrantType {
	case openid4vci.AuthorizationCodeGrant:
		record.IssuerState = crypto.GenerateNonce()
		record.Offer.Grants = map[string]interface{}{
			openid4vci.AuthorizationCodeGrant: openid4vci.AuthorizationCodeGrantParams{IssuerState: record.IssuerState},
		}
	case openid4vci.PreAuthorizedCodeGrant:
		record.PreAuthorisedCode = crypto.GenerateNonce()
		record.PIN = crypto.GeneratePIN(preAuthorisedPINDigits)
		record.Offer.Grants = map[string]interface{}{
			openid4vci.PreAuthorizedCodeGrant: openid4vci.PreAuthorizedCodeGrantParams{PreAuthorizedCode: record.PreAuthorisedCode, UserPINRequired: true},
		}
		preAuthorisedState = &IssuanceState{
			Flow:                 openid4vci.PreAuthorisedFlow,
			Step:                 StepAuthResponse,
			ClientID:             request.SubjectDID,
			PreAuthorisedCode:    record.PreAuthorisedCode,
			PreAuthorisedCodePin: record.PIN,
			Payload:              StatePayload{AuthorizationDetails: authorizationDetails(request.CredentialTypes)},
		}
	default:
		return nil, openid4vci.Error{Code: openid4vci.UnsupportedGrantType, Description: "grant_type is not supported"}
	}
	record.Offer.CredentialIssuer = h.provider.Config().IssuerURL
	record.Offer.Credentials = []openid4vci.OfferedCredential{{
		Format: openid4vci.JWTVCFormat,
		Types:  request.CredentialTypes,
	}}
	if err := h.credentials.CreateOffer(ctx, record); err != nil {
		return nil, fmt.Errorf("unable to store credential offer: %w", err)
	}
	if preAuthorisedState != nil {
		preAuthorisedState.OfferID = &record.ID
		if err := h.states.Create(ctx, preAuthorisedState); err != nil {
			return nil, fmt.Errorf("unable to store issuance state: %w", err)
		}
	}
	offerURI := "openid-credential-offer://?" + url.Values{
		"credential_offer_uri": {h.provider.Endpoint("offers/" + record.ID)},
	}.Encode()
	log.Logger().
		WithField(core.LogFieldDID, request.SubjectDID).
		WithField(core.LogFieldCredentialType, request.CredentialTypes).
		Infof("Created credential offer (id=%s, grant=%s)", record.ID, record.GrantType)
	return &Offer{ID: record.ID, Offer: record.Offer, URI: offerURI, PIN: record.PIN}, nil
}

func (h *openidHandler) GetOffer(ctx context.Context, id string) (*openid4vci.CredentialOffer, error) {
	offer, err := h.credentials.GetOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	return &offer.Offer, nil
}

func (h *openidHandler) RegisterPreAuthorisedCode(ctx context.Context, request PreAuthorisedCodeRequest) (*PreAuthorisedCode, error) {
	if !h.supported(request.CredentialTypes) {
		return nil, openid4vci.UnsupportedCredentialTypeError(types.ErrUnsupportedCredentialType)
	}
	if request.Code == "" {
		request.Code = crypto.GenerateNonce()
	}
	if request.PIN == "" {
		request.PIN = crypto.GeneratePIN(preAuthorisedPINDigits)
	}
	if exists, err := h.states.PreAuthorisedCodeExists(ctx, request.Code); err != nil {
		return nil, err
	} else if exists {
		return nil, openid4vci.InvalidRequestError("pre-authorized code is already registered")
	}
	state := &IssuanceState{
		Flow:                 openid4vci.PreAuthorisedFlow,
		Step:                 StepAuthResponse,
		ClientID:             request.ClientID,
		PreAuthorisedCode:    request.Code,
		PreAuthorisedCodePin: request.PIN,
		Payload:              StatePayload{AuthorizationDetails: authorizationDetails(request.CredentialTypes)},
	}
	if err := h.states.Create(ctx, state); err != nil {
		return nil, fmt.Errorf("unable to store issuance state: %w", err)
	}
	h.logger(state).Info("Registered pre-authorized code")
	return &PreAuthorisedCode{StateID: state.ID, Code: request.Code, PIN: request.PIN}, nil
}

func (h *openidHandler) supported(credentialTypes []string) bool {
	for _, curr := range h.provider.Config().CredentialTypes {
		if openid4vci.SameTypes(curr, credentialTypes) {
			return true
		}
	}
	return false
}

func authorizationDetails(credentialTypes []string) []openid4vci.AuthorizationDetail {
	return []openid4vci.AuthorizationDetail{{
		Type:   openid4vci.OpenIDCredentialAuthorizationDetailType,
		Format: openid4vci.JWTVCFormat,
		Types:  credentialTypes,
	}}
}

func (h *openidHandler) Revoke(ctx context.Context, credentialID string) error {
	if err := h.statusList.Revoke(ctx, credentialID); err != nil {
		return err
	}
	h.metrics.revoked.Inc()
	log.Logger().WithField(core.LogFieldCredentialID, credentialID).Info("Revoked credential")
	return nil
}

func (h *openidHandler) RejectCredential(ctx context.Context, credentialID string) error {
	if err := h.credentials.Reject(ctx, credentialID); err != nil {
		return err
	}
	log.Logger().WithField(core.LogFieldCredentialID, credentialID).Info("Rejected credential")
	return nil
}

func (h *openidHandler) DeleteConformanceState(ctx context.Context, clientID string) (int64, error) {
	count, err := h.states.DeleteByClientID(ctx, clientID)
	if err != nil {
		return 0, err
	}
	log.Logger().WithField(core.LogFieldClientID, clientID).Infof("Deleted %d issuance state record(s)", count)
	return count, nil
}

// markUsed records a single-use value (ID token, VP token, proof) in the replay cache.
// The key is the value's jti, or its hash if it has none. It returns errReplayed if it was used before.
func (h *openidHandler) markUsed(kind string, issuer string, jti string, raw string) error {
	key := jti
	if key == "" {
		sum := sha256.Sum256([]byte(raw))
		key = base64.RawURLEncoding.EncodeToString(sum[:])
	}
	added, err := h.replay.PutIfAbsent(strings.Join([]string{kind, issuer, key}, "|"), true)
	if err != nil {
		return err
	}
	if !added {
		return errReplayed
	}
	return nil
}

func (h *openidHandler) logger(state *IssuanceState) *logrus.Entry {
	return log.Logger().
		WithField(core.LogFieldIssuanceStateID, state.ID).
		WithField(core.LogFieldClientID, state.ClientID)
}
