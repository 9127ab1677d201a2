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
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/nuts-foundation/ebsi-issuer/crypto"
	"github.com/nuts-foundation/ebsi-issuer/storage"
	"github.com/nuts-foundation/ebsi-issuer/vcr/openid4vci"
	"github.com/nuts-foundation/ebsi-issuer/vcr/revocation"
	"github.com/nuts-foundation/ebsi-issuer/vcr/types"
	"github.com/nuts-foundation/ebsi-issuer/vcr/verifier"
	"github.com/nuts-foundation/ebsi-issuer/vdr/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"
)

const (
	testIssuerURL = "https://issuer.example.com"
	testIssuerDID = "did:web:issuer.example.com"
	testWalletDID = "did:key:z2dmzD81cgPx8Vki7JbuuMmFYrWPgYoytykUZ3eyqht1j9Kbsp"
)

var testVerifier = strings.Repeat("v", 43)

var (
	inTimeTypes          = []string{"VerifiableCredential", "VerifiableAttestation", "CTWalletSameAuthorisedInTime"}
	deferredTypes        = []string{"VerifiableCredential", "VerifiableAttestation", "CTWalletSameAuthorisedDeferred"}
	preAuthInTimeTypes   = ConformanceCredentialTypes("conformanceInTime")
	preAuthDeferredTypes = ConformanceCredentialTypes("conformanceDeferred")
)

type handlerTestContext struct {
	handler       *openidHandler
	issuer        *crypto.JWTSigner
	wallet        *crypto.JWTSigner
	statusList    *revocation.StatusList
	statusServer  *httptest.Server
	statusChecker *verifier.MockStatusChecker
}

func newHandlerTestContext(t *testing.T) handlerTestContext {
	ctrl := gomock.NewController(t)
	issuer, err := crypto.GenerateJWTSigner(testIssuerDID + "#key-1")
	require.NoError(t, err)
	wallet, err := crypto.GenerateJWTSigner(testWalletDID + "#" + strings.TrimPrefix(testWalletDID, "did:key:"))
	require.NoError(t, err)
	keyResolver := resolver.NewMockKeyResolver(ctrl)
	keyResolver.EXPECT().ResolveKeys(gomock.Any(), testWalletDID).Return([]jwk.Key{wallet.PublicKey()}, nil).AnyTimes()
	keyResolver.EXPECT().ResolveKeys(gomock.Any(), testIssuerDID).Return([]jwk.Key{issuer.PublicKey()}, nil).AnyTimes()

	engine := storage.NewTestStorageEngine(t)
	c := handlerTestContext{issuer: issuer, wallet: wallet}
	c.statusServer = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		document, err := c.statusList.Document(request.Context(), strings.TrimPrefix(request.URL.Path, "/statuslist/"))
		if err != nil {
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(writer).Encode(document)
	}))
	t.Cleanup(c.statusServer.Close)
	c.statusList = revocation.NewStatusList(engine.GetSQLDatabase(), issuer, c.statusServer.URL, revocation.DefaultConfig())
	c.statusChecker = verifier.NewMockStatusChecker(ctrl)

	provider := openid4vci.NewProvider(issuer, keyResolver, openid4vci.ProviderConfig{
		IssuerURL:          testIssuerURL,
		CredentialTypes:    [][]string{inTimeTypes, deferredTypes, preAuthInTimeTypes, preAuthDeferredTypes},
		RequestTTL:         time.Minute,
		AccessTokenTTL:     time.Hour,
		CNonceTTL:          5 * time.Minute,
		AcceptanceTokenTTL: time.Hour,
	})
	templates, err := NewTemplateRenderer("")
	require.NoError(t, err)
	service, err := NewOpenIDHandler(provider, issuer, engine.GetSQLDatabase(), engine.GetSessionDatabase(), c.statusList,
		verifier.NewVerifier(keyResolver, c.statusChecker), templates, Config{
			IssuerDID:          testIssuerDID,
			CodeTTL:            time.Minute,
			OfferTTL:           time.Hour,
			CredentialValidity: 365 * 24 * time.Hour,
			ReplayTTL:          time.Hour,
			DeferredDelay:      time.Hour,
			DeferredTypes:      []string{"CTWalletSameAuthorisedDeferred", "CTWalletSamePreAuthorisedDeferred"},
			Conformance:        ConformanceConfig{Enabled: true, PIN: DefaultConformancePIN},
		})
	require.NoError(t, err)
	t.Cleanup(service.Shutdown)
	c.handler = service.OpenIDHandler.(*openidHandler)
	return c
}

func authorizeRequest(credentialTypes []string) openid4vci.AuthorizeRequest {
	return openid4vci.AuthorizeRequest{
		ResponseType:        openid4vci.ResponseTypeCode,
		ClientID:            testWalletDID,
		RedirectURI:         "openid://",
		Scope:               openid4vci.ScopeOpenID,
		CodeChallenge:       openid4vci.CodeChallenge(testVerifier),
		CodeChallengeMethod: openid4vci.PKCEMethodS256,
		State:               "wallet-state",
		Nonce:               "wallet-nonce",
		AuthorizationDetails: []openid4vci.AuthorizationDetail{{
			Type:   openid4vci.OpenIDCredentialAuthorizationDetailType,
			Format: openid4vci.JWTVCFormat,
			Types:  credentialTypes,
		}},
	}
}

func query(t *testing.T, redirect *openid4vci.Redirect) url.Values {
	require.NotNil(t, redirect)
	location, err := url.Parse(redirect.URL)
	require.NoError(t, err)
	return location.Query()
}

// authorize runs the authorization request and ID token response, and returns the authorization code.
func (c handlerTestContext) authorize(t *testing.T, request openid4vci.AuthorizeRequest) string {
	ctx := context.Background()
	redirect, err := c.handler.Authorize(ctx, request)
	require.NoError(t, err)
	idTokenRequest := query(t, redirect)
	idToken, err := openid4vci.ComposeIDTokenResponse(ctx, c.wallet, openid4vci.IDTokenResponseParams{
		Issuer:    testWalletDID,
		Audience:  testIssuerURL,
		Nonce:     idTokenRequest.Get("nonce"),
		ExpiresIn: time.Minute,
	})
	require.NoError(t, err)
	redirect, err = c.handler.DirectPost(ctx, openid4vci.DirectPostRequest{IDToken: idToken, State: idTokenRequest.Get("state")})
	require.NoError(t, err)
	response := query(t, redirect)
	assert.Equal(t, request.State, response.Get("state"))
	require.NotEmpty(t, response.Get("code"))
	return response.Get("code")
}

func (c handlerTestContext) proof(t *testing.T, nonce string) *openid4vci.Proof {
	token, err := c.wallet.Sign(context.Background(), map[string]interface{}{
		"iss":   testWalletDID,
		"aud":   testIssuerURL,
		"nonce": nonce,
		"iat":   time.Now().Unix(),
		"jti":   uuid.NewString(),
	}, map[string]interface{}{"typ": openid4vci.ProofJWTType})
	require.NoError(t, err)
	return &openid4vci.Proof{ProofType: openid4vci.ProofTypeJWT, JWT: token}
}

func (c handlerTestContext) credentialRequest(t *testing.T, token *openid4vci.TokenResponse, credentialTypes []string) (*openid4vci.CredentialResponse, error) {
	return c.handler.Credential(context.Background(), token.AccessToken, openid4vci.CredentialRequest{
		Types:  credentialTypes,
		Format: openid4vci.JWTVCFormat,
		Proof:  c.proof(t, token.CNonce),
	})
}

func (c handlerTestContext) verifyCredential(t *testing.T, credential string) *crypto.Token {
	verified, err := crypto.VerifyJWT(credential, c.issuer.PublicKey(), testIssuerDID, jwa.ES256)
	require.NoError(t, err)
	return verified
}

func TestOpenIDHandler_HappyPath(t *testing.T) {
	ctx := context.Background()
	c := newHandlerTestContext(t)

	code := c.authorize(t, authorizeRequest(inTimeTypes))
	token, err := c.handler.Token(ctx, openid4vci.TokenRequest{
		GrantType:    openid4vci.AuthorizationCodeGrant,
		Code:         code,
		CodeVerifier: testVerifier,
		ClientID:     testWalletDID,
	})
	require.NoError(t, err)
	require.NotEmpty(t, token.CNonce)
	response, err := c.credentialRequest(t, token, inTimeTypes)
	require.NoError(t, err)

	assert.Equal(t, openid4vci.JWTVCFormat, response.Format)
	assert.NotEmpty(t, response.CNonce)
	assert.NotEqual(t, token.CNonce, response.CNonce)
	credential := c.verifyCredential(t, response.Credential)
	assert.Equal(t, testWalletDID, credential.Claims.Subject())
	vcClaim, _ := credential.Claims.Get("vc")
	data, _ := json.Marshal(vcClaim)
	assert.Contains(t, string(data), `"CTWalletSameAuthorisedInTime"`)
	assert.Contains(t, string(data), `"StatusList2021Entry"`)
	record, err := c.handler.credentials.Get(ctx, credential.Claims.JwtID())
	require.NoError(t, err)
	assert.Equal(t, CredentialIssued, record.Status)

	t.Run("code can't be exchanged twice", func(t *testing.T) {
		_, err := c.handler.Token(ctx, openid4vci.TokenRequest{GrantType: openid4vci.AuthorizationCodeGrant, Code: code, CodeVerifier: testVerifier})

		assert.ErrorIs(t, err, openid4vci.ErrInvalidGrant)
	})
	t.Run("c_nonce can't be used twice", func(t *testing.T) {
		_, err := c.credentialRequest(t, token, inTimeTypes)

		assert.ErrorIs(t, err, openid4vci.ErrInvalidNonce)
	})
}

func TestOpenIDHandler_Authorize(t *testing.T) {
	ctx := context.Background()
	t.Run("stores state", func(t *testing.T) {
		c := newHandlerTestContext(t)

		redirect, err := c.handler.Authorize(ctx, authorizeRequest(inTimeTypes))

		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, redirect.Code)
		state, err := c.handler.states.FindByServerDefinedState(ctx, query(t, redirect).Get("state"), StepAuthorize)
		require.NoError(t, err)
		assert.Equal(t, testWalletDID, state.ClientID)
		assert.Equal(t, "wallet-state", state.WalletDefinedState)
		assert.Equal(t, inTimeTypes, state.RequestedTypes())
	})
	t.Run("PKCE is required for credential issuance", func(t *testing.T) {
		c := newHandlerTestContext(t)
		request := authorizeRequest(inTimeTypes)
		request.CodeChallenge = ""

		_, err := c.handler.Authorize(ctx, request)

		assert.ErrorIs(t, err, openid4vci.ErrInvalidRequest)
	})
	t.Run("unsupported credential type", func(t *testing.T) {
		c := newHandlerTestContext(t)

		_, err := c.handler.Authorize(ctx, authorizeRequest([]string{"VerifiableCredential", "Unknown"}))

		assert.ErrorIs(t, err, openid4vci.ErrUnsupportedCredentialType)
	})
	t.Run("VP token flow starts at VP_REQUEST", func(t *testing.T) {
		c := newHandlerTestContext(t)
		request := authorizeRequest(nil)
		request.AuthorizationDetails = nil
		request.Scope = openid4vci.ScopeOpenID + " " + openid4vci.ScopeVPTokenTest

		redirect, err := c.handler.Authorize(ctx, request)

		require.NoError(t, err)
		assert.Equal(t, openid4vci.ResponseTypeVPToken, query(t, redirect).Get("response_type"))
		_, err = c.handler.states.FindByServerDefinedState(ctx, query(t, redirect).Get("state"), StepVPRequest)
		assert.NoError(t, err)
	})
	t.Run("offer is linked through issuer_state", func(t *testing.T) {
		c := newHandlerTestContext(t)
		offer, err := c.handler.CreateOffer(ctx, OfferRequest{SubjectDID: testWalletDID, CredentialTypes: inTimeTypes})
		require.NoError(t, err)
		grant := offer.Offer.Grants[openid4vci.AuthorizationCodeGrant].(openid4vci.AuthorizationCodeGrantParams)
		request := authorizeRequest(inTimeTypes)
		request.IssuerState = grant.IssuerState

		redirect, err := c.handler.Authorize(ctx, request)
		require.NoError(t, err)

		state, err := c.handler.states.FindByServerDefinedState(ctx, query(t, redirect).Get("state"), StepAuthorize)
		require.NoError(t, err)
		require.NotNil(t, state.OfferID)
		assert.Equal(t, offer.ID, *state.OfferID)
		t.Run("issuer_state can't be used twice", func(t *testing.T) {
			_, err := c.handler.Authorize(ctx, request)

			assert.ErrorIs(t, err, openid4vci.ErrInvalidRequest)
		})
	})
	t.Run("offer stays usable if the state can't be stored", func(t *testing.T) {
		c := newHandlerTestContext(t)
		offer, err := c.handler.CreateOffer(ctx, OfferRequest{SubjectDID: testWalletDID, CredentialTypes: inTimeTypes})
		require.NoError(t, err)
		grant := offer.Offer.Grants[openid4vci.AuthorizationCodeGrant].(openid4vci.AuthorizationCodeGrantParams)
		request := authorizeRequest(inTimeTypes)
		request.IssuerState = grant.IssuerState
		failStateCreation := true
		err = c.handler.db.Callback().Create().Before("gorm:create").Register("test:fail_issuance_state", func(tx *gorm.DB) {
			if failStateCreation && tx.Statement.Table == IssuanceState{}.TableName() {
				_ = tx.AddError(errors.New("disk full"))
			}
		})
		require.NoError(t, err)

		_, err = c.handler.Authorize(ctx, request)
		require.ErrorContains(t, err, "disk full")
		failStateCreation = false
		_, err = c.handler.Authorize(ctx, request)

		assert.NoError(t, err)
	})
}

func TestOpenIDHandler_DirectPost(t *testing.T) {
	ctx := context.Background()
	t.Run("unknown state", func(t *testing.T) {
		c := newHandlerTestContext(t)

		_, err := c.handler.DirectPost(ctx, openid4vci.DirectPostRequest{IDToken: "token", State: "unknown"})

		assert.ErrorIs(t, err, openid4vci.ErrInvalidGrant)
	})
	t.Run("wrong nonce redirects with error", func(t *testing.T) {
		c := newHandlerTestContext(t)
		redirect, err := c.handler.Authorize(ctx, authorizeRequest(inTimeTypes))
		require.NoError(t, err)
		idToken, err := openid4vci.ComposeIDTokenResponse(ctx, c.wallet, openid4vci.IDTokenResponseParams{
			Issuer: testWalletDID, Audience: testIssuerURL, Nonce: "other", ExpiresIn: time.Minute,
		})
		require.NoError(t, err)

		redirect, err = c.handler.DirectPost(ctx, openid4vci.DirectPostRequest{IDToken: idToken, State: query(t, redirect).Get("state")})

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(redirect.URL, "openid://"))
		assert.Equal(t, string(openid4vci.AccessDenied), query(t, redirect).Get("error"))
		assert.Equal(t, "wallet-state", query(t, redirect).Get("state"))
	})
	t.Run("ID token of another DID is rejected", func(t *testing.T) {
		c := newHandlerTestContext(t)
		redirect, err := c.handler.Authorize(ctx, authorizeRequest(inTimeTypes))
		require.NoError(t, err)
		idToken, err := openid4vci.ComposeIDTokenResponse(ctx, c.wallet, openid4vci.IDTokenResponseParams{
			Issuer: "did:key:other", Audience: testIssuerURL, Nonce: query(t, redirect).Get("nonce"), ExpiresIn: time.Minute,
		})
		require.NoError(t, err)

		redirect, err = c.handler.DirectPost(ctx, openid4vci.DirectPostRequest{IDToken: idToken, State: query(t, redirect).Get("state")})

		require.NoError(t, err)
		assert.Equal(t, string(openid4vci.AccessDenied), query(t, redirect).Get("error"))
	})
	t.Run("state can't be used twice", func(t *testing.T) {
		c := newHandlerTestContext(t)
		redirect, err := c.handler.Authorize(ctx, authorizeRequest(inTimeTypes))
		require.NoError(t, err)
		request := query(t, redirect)
		idToken, err := openid4vci.ComposeIDTokenResponse(ctx, c.wallet, openid4vci.IDTokenResponseParams{
			Issuer: testWalletDID, Audience: testIssuerURL, Nonce: request.Get("nonce"), ExpiresIn: time.Minute,
		})
		require.NoError(t, err)
		_, err = c.handler.DirectPost(ctx, openid4vci.DirectPostRequest{IDToken: idToken, State: request.Get("state")})
		require.NoError(t, err)

		_, err = c.handler.DirectPost(ctx, openid4vci.DirectPostRequest{IDToken: idToken, State: request.Get("state")})

		assert.ErrorIs(t, err, openid4vci.ErrInvalidGrant)
	})
}

func TestOpenIDHandler_Token(t *testing.T) {
	ctx := context.Background()
	t.Run("PKCE verifier must match", func(t *testing.T) {
		c := newHandlerTestContext(t)
		code := c.authorize(t, authorizeRequest(inTimeTypes))

		_, err := c.handler.Token(ctx, openid4vci.TokenRequest{
			GrantType:    openid4vci.AuthorizationCodeGrant,
			Code:         code,
			CodeVerifier: strings.Repeat("x", 43),
		})

		assert.ErrorIs(t, err, openid4vci.ErrInvalidGrant)
		t.Run("failed attempt doesn't consume the code", func(t *testing.T) {
			_, err := c.handler.Token(ctx, openid4vci.TokenRequest{GrantType: openid4vci.AuthorizationCodeGrant, Code: code, CodeVerifier: testVerifier})

			assert.NoError(t, err)
		})
	})
	t.Run("expired code", func(t *testing.T) {
		c := newHandlerTestContext(t)
		code := c.authorize(t, authorizeRequest(inTimeTypes))
		c.handler.now = func() time.Time { return time.Now().Add(time.Hour) }

		_, err := c.handler.Token(ctx, openid4vci.TokenRequest{GrantType: openid4vci.AuthorizationCodeGrant, Code: code, CodeVerifier: testVerifier})

		assert.ErrorIs(t, err, openid4vci.ErrInvalidGrant)
		assert.ErrorIs(t, err, types.ErrExpired)
	})
	t.Run("client_id must match", func(t *testing.T) {
		c := newHandlerTestContext(t)
		code := c.authorize(t, authorizeRequest(inTimeTypes))

		_, err := c.handler.Token(ctx, openid4vci.TokenRequest{GrantType: openid4vci.AuthorizationCodeGrant, Code: code, CodeVerifier: testVerifier, ClientID: "did:key:other"})

		assert.ErrorIs(t, err, openid4vci.ErrInvalidGrant)
	})
	t.Run("unsupported grant type", func(t *testing.T) {
		c := newHandlerTestContext(t)

		_, err := c.handler.Token(ctx, openid4vci.TokenRequest{GrantType: "password"})

		assert.ErrorIs(t, err, openid4vci.Error{Code: openid4vci.UnsupportedGrantType})
	})
	t.Run("pre-authorized code", func(t *testing.T) {
		c := newHandlerTestContext(t)
		registered, err := c.handler.RegisterPreAuthorisedCode(ctx, PreAuthorisedCodeRequest{ClientID: testWalletDID, CredentialTypes: preAuthInTimeTypes})
		require.NoError(t, err)
		assert.Len(t, registered.PIN, 4)

		t.Run("wrong PIN and unknown code fail the same way", func(t *testing.T) {
			_, wrongPIN := c.handler.Token(ctx, openid4vci.TokenRequest{GrantType: openid4vci.PreAuthorizedCodeGrant, PreAuthorizedCode: registered.Code, UserPIN: "wrong"})
			_, unknownCode := c.handler.Token(ctx, openid4vci.TokenRequest{GrantType: openid4vci.PreAuthorizedCodeGrant, PreAuthorizedCode: "unknown", UserPIN: registered.PIN})

			require.ErrorIs(t, wrongPIN, openid4vci.ErrInvalidGrant)
			require.ErrorIs(t, unknownCode, openid4vci.ErrInvalidGrant)
			assert.Equal(t, wrongPIN.(openid4vci.Error).Description, unknownCode.(openid4vci.Error).Description)
		})
		t.Run("code and PIN are used once", func(t *testing.T) {
			request := openid4vci.TokenRequest{GrantType: openid4vci.PreAuthorizedCodeGrant, PreAuthorizedCode: registered.Code, UserPIN: registered.PIN}

			_, first := c.handler.Token(ctx, request)
			_, second := c.handler.Token(ctx, request)

			assert.NoError(t, first)
			assert.ErrorIs(t, second, openid4vci.ErrInvalidGrant)
		})
	})
	t.Run("conformance code is provisioned once", func(t *testing.T) {
		c := newHandlerTestContext(t)
		request := openid4vci.TokenRequest{GrantType: openid4vci.PreAuthorizedCodeGrant, PreAuthorizedCode: "conformanceInTime" + uuid.NewString(), UserPIN: DefaultConformancePIN}

		_, first := c.handler.Token(ctx, request)
		_, second := c.handler.Token(ctx, request)

		assert.NoError(t, first)
		assert.ErrorIs(t, second, openid4vci.ErrInvalidGrant)
	})
	t.Run("conformance code requires the conformance PIN", func(t *testing.T) {
		c := newHandlerTestContext(t)

		_, err := c.handler.Token(ctx, openid4vci.TokenRequest{GrantType: openid4vci.PreAuthorizedCodeGrant, PreAuthorizedCode: "conformanceInTime", UserPIN: "0000"})

		assert.ErrorIs(t, err, openid4vci.ErrInvalidGrant)
	})
}

func TestOpenIDHandler_Credential(t *testing.T) {
	ctx := context.Background()
	token := func(t *testing.T, c handlerTestContext) *openid4vci.TokenResponse {
		code := c.authorize(t, authorizeRequest(inTimeTypes))
		result, err := c.handler.Token(ctx, openid4vci.TokenRequest{GrantType: openid4vci.AuthorizationCodeGrant, Code: code, CodeVerifier: testVerifier})
		require.NoError(t, err)
		return result
	}
	t.Run("proof nonce must match c_nonce", func(t *testing.T) {
		c := newHandlerTestContext(t)
		accessToken := token(t, c)

		_, err := c.handler.Credential(ctx, accessToken.AccessToken, openid4vci.CredentialRequest{Format: openid4vci.JWTVCFormat, Proof: c.proof(t, "other")})

		assert.ErrorIs(t, err, openid4vci.ErrInvalidNonce)
	})
	t.Run("requested types must match the authorization", func(t *testing.T) {
		c := newHandlerTestContext(t)

		_, err := c.credentialRequest(t, token(t, c), deferredTypes)

		assert.ErrorIs(t, err, openid4vci.ErrUnsupportedCredentialType)
	})
	t.Run("proof can be retried after a type mismatch", func(t *testing.T) {
		c := newHandlerTestContext(t)
		accessToken := token(t, c)
		proof := c.proof(t, accessToken.CNonce)

		_, err := c.handler.Credential(ctx, accessToken.AccessToken, openid4vci.CredentialRequest{Types: deferredTypes, Format: openid4vci.JWTVCFormat, Proof: proof})
		require.ErrorIs(t, err, openid4vci.ErrUnsupportedCredentialType)
		response, err := c.handler.Credential(ctx, accessToken.AccessToken, openid4vci.CredentialRequest{Types: inTimeTypes, Format: openid4vci.JWTVCFormat, Proof: proof})

		require.NoError(t, err)
		assert.NotEmpty(t, response.Credential)
		t.Run("but not after it was accepted", func(t *testing.T) {
			_, err := c.handler.Credential(ctx, accessToken.AccessToken, openid4vci.CredentialRequest{Types: inTimeTypes, Format: openid4vci.JWTVCFormat, Proof: proof})

			assert.Error(t, err)
		})
	})
	t.Run("invalid access token", func(t *testing.T) {
		c := newHandlerTestContext(t)

		_, err := c.handler.Credential(ctx, "invalid", openid4vci.CredentialRequest{Proof: c.proof(t, "nonce")})

		assert.ErrorIs(t, err, openid4vci.ErrInvalidToken)
	})
	t.Run("proof must be signed by the client", func(t *testing.T) {
		c := newHandlerTestContext(t)
		accessToken := token(t, c)
		other, err := crypto.GenerateJWTSigner("did:key:other#key-1")
		require.NoError(t, err)
		proof, err := other.Sign(ctx, map[string]interface{}{
			"iss": "did:key:other", "aud": testIssuerURL, "nonce": accessToken.CNonce, "iat": time.Now().Unix(),
		}, map[string]interface{}{"typ": openid4vci.ProofJWTType})
		require.NoError(t, err)

		_, err = c.handler.Credential(ctx, accessToken.AccessToken, openid4vci.CredentialRequest{
			Proof: &openid4vci.Proof{ProofType: openid4vci.ProofTypeJWT, JWT: proof},
		})

		assert.ErrorIs(t, err, openid4vci.ErrInvalidProof)
		assert.ErrorIs(t, err, openid4vci.ErrInvalidIssuer)
	})
}

func TestOpenIDHandler_PreAuthorisedDeferred(t *testing.T) {
	ctx := context.Background()
	c := newHandlerTestContext(t)
	code := "conformanceDeferred" + uuid.NewString()
	_, err := c.handler.RegisterPreAuthorisedCode(ctx, PreAuthorisedCodeRequest{
		CredentialTypes: preAuthDeferredTypes,
		Code:            code,
		PIN:             DefaultConformancePIN,
	})
	require.NoError(t, err)

	token, err := c.handler.Token(ctx, openid4vci.TokenRequest{GrantType: openid4vci.PreAuthorizedCodeGrant, PreAuthorizedCode: code, UserPIN: DefaultConformancePIN})
	require.NoError(t, err)
	response, err := c.credentialRequest(t, token, preAuthDeferredTypes)
	require.NoError(t, err)
	require.NotEmpty(t, response.AcceptanceToken)
	assert.Empty(t, response.Credential)

	_, err = c.handler.DeferredCredential(ctx, response.AcceptanceToken)
	assert.ErrorIs(t, err, types.ErrCredentialPending)

	credentialID, err := c.handler.provider.VerifyAcceptanceToken(response.AcceptanceToken)
	require.NoError(t, err)
	require.NoError(t, c.handler.issueDeferred(ctx, credentialID))

	deferred, err := c.handler.DeferredCredential(ctx, response.AcceptanceToken)
	require.NoError(t, err)
	credential := c.verifyCredential(t, deferred.Credential)
	assert.Equal(t, testWalletDID, credential.Claims.Subject())

	t.Run("acceptance token is used once", func(t *testing.T) {
		_, err := c.handler.DeferredCredential(ctx, response.AcceptanceToken)

		assert.ErrorIs(t, err, openid4vci.ErrInvalidToken)
	})
	t.Run("state is bound to the proof signer", func(t *testing.T) {
		states, err := c.handler.states.FindByID(ctx, mustStateID(t, c, code))
		require.NoError(t, err)
		assert.Equal(t, testWalletDID, states.ClientID)
	})
}

func mustStateID(t *testing.T, c handlerTestContext, preAuthorisedCode string) string {
	var state IssuanceState
	require.NoError(t, c.handler.states.db.Where("pre_authorised_code = ?", preAuthorisedCode).First(&state).Error)
	return state.ID
}

func TestOpenIDHandler_RejectedDeferred(t *testing.T) {
	ctx := context.Background()
	c := newHandlerTestContext(t)
	code := c.authorize(t, authorizeRequest(deferredTypes))
	token, err := c.handler.Token(ctx, openid4vci.TokenRequest{GrantType: openid4vci.AuthorizationCodeGrant, Code: code, CodeVerifier: testVerifier})
	require.NoError(t, err)
	response, err := c.credentialRequest(t, token, deferredTypes)
	require.NoError(t, err)
	credentialID, err := c.handler.provider.VerifyAcceptanceToken(response.AcceptanceToken)
	require.NoError(t, err)

	require.NoError(t, c.handler.RejectCredential(ctx, credentialID))

	_, err = c.handler.DeferredCredential(ctx, response.AcceptanceToken)
	assert.ErrorIs(t, err, types.ErrCredentialRejected)
	assert.NoError(t, c.handler.issueDeferred(ctx, credentialID), "rejected credentials are skipped")
}

func TestOpenIDHandler_Revoke(t *testing.T) {
	ctx := context.Background()
	c := newHandlerTestContext(t)
	code := c.authorize(t, authorizeRequest(inTimeTypes))
	token, err := c.handler.Token(ctx, openid4vci.TokenRequest{GrantType: openid4vci.AuthorizationCodeGrant, Code: code, CodeVerifier: testVerifier})
	require.NoError(t, err)
	response, err := c.credentialRequest(t, token, inTimeTypes)
	require.NoError(t, err)
	credential := c.verifyCredential(t, response.Credential)
	credentialID := credential.Claims.JwtID()
	entry := statusEntryOf(t, credential)
	remote := revocation.NewRemoteVerifier(c.statusServer.Client(), nil)

	valid, err := c.statusList.Verify(ctx, credentialID)
	require.NoError(t, err)
	assert.True(t, valid)
	revoked, err := remote.IsRevoked(ctx, entry)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, c.handler.Revoke(ctx, credentialID))
	require.NoError(t, c.handler.Revoke(ctx, credentialID))

	valid, err = c.statusList.Verify(ctx, credentialID)
	require.NoError(t, err)
	assert.False(t, valid)
	// a fresh verifier, the other one caches the list
	revoked, err = revocation.NewRemoteVerifier(c.statusServer.Client(), nil).IsRevoked(ctx, entry)
	require.NoError(t, err)
	assert.True(t, revoked)

	t.Run("unknown credential", func(t *testing.T) {
		assert.ErrorIs(t, c.handler.Revoke(ctx, "urn:uuid:unknown"), types.ErrCredentialNotFound)
	})
}

func statusEntryOf(t *testing.T, credential *crypto.Token) revocation.StatusList2021Entry {
	vcClaim, ok := credential.Claims.Get("vc")
	require.True(t, ok)
	data, _ := json.Marshal(vcClaim)
	var parsed struct {
		CredentialStatus json.RawMessage `json:"credentialStatus"`
	}
	require.NoError(t, json.Unmarshal(data, &parsed))
	var entry revocation.StatusList2021Entry
	if strings.HasPrefix(string(parsed.CredentialStatus), "[") {
		var entries []revocation.StatusList2021Entry
		require.NoError(t, json.Unmarshal(parsed.CredentialStatus, &entries))
		require.Len(t, entries, 1)
		entry = entries[0]
	} else {
		require.NoError(t, json.Unmarshal(parsed.CredentialStatus, &entry))
	}
	require.NoError(t, entry.Validate())
	return entry
}

func TestOpenIDHandler_VPToken(t *testing.T) {
	ctx := context.Background()
	c := newHandlerTestContext(t)
	code := c.authorize(t, authorizeRequest(inTimeTypes))
	token, err := c.handler.Token(ctx, openid4vci.TokenRequest{GrantType: openid4vci.AuthorizationCodeGrant, Code: code, CodeVerifier: testVerifier})
	require.NoError(t, err)
	issued, err := c.credentialRequest(t, token, inTimeTypes)
	require.NoError(t, err)

	request := authorizeRequest(nil)
	request.AuthorizationDetails = nil
	request.CodeChallenge = ""
	request.CodeChallengeMethod = ""
	request.Scope = openid4vci.ScopeOpenID + " " + openid4vci.ScopeVPTokenTest
	redirect, err := c.handler.Authorize(ctx, request)
	require.NoError(t, err)
	vpTokenRequest := query(t, redirect)
	presentation := func(t *testing.T) *openid4vci.VPTokenResponse {
		result, err := openid4vci.ComposeVPTokenResponse(ctx, c.wallet, openid4vci.VPTokenResponseParams{
			Holder:        testWalletDID,
			Audience:      testIssuerURL,
			Nonce:         vpTokenRequest.Get("nonce"),
			State:         vpTokenRequest.Get("state"),
			Credentials:   []string{issued.Credential},
			DefinitionID:  openid4vci.DefaultPresentationDefinition().ID,
			DescriptorIDs: []string{"same-device-in-time-credential"},
			ExpiresIn:     time.Minute,
		})
		require.NoError(t, err)
		return result
	}

	t.Run("revoked credential is rejected", func(t *testing.T) {
		c.statusChecker.EXPECT().IsRevoked(gomock.Any(), gomock.Any()).Return(true, nil)
		vp := presentation(t)

		redirect, err := c.handler.DirectPost(ctx, openid4vci.DirectPostRequest{VPToken: vp.VPToken, PresentationSubmission: &vp.PresentationSubmission, State: vp.State})

		require.NoError(t, err)
		assert.Equal(t, string(openid4vci.AccessDenied), query(t, redirect).Get("error"))
	})
	t.Run("valid presentation", func(t *testing.T) {
		c.statusChecker.EXPECT().IsRevoked(gomock.Any(), gomock.Any()).Return(false, nil)
		vp := presentation(t)

		redirect, err := c.handler.DirectPost(ctx, openid4vci.DirectPostRequest{VPToken: vp.VPToken, PresentationSubmission: &vp.PresentationSubmission, State: vp.State})

		require.NoError(t, err)
		assert.NotEmpty(t, query(t, redirect).Get("code"))
		state, err := c.handler.states.FindByCode(ctx, query(t, redirect).Get("code"))
		assert.ErrorIs(t, err, types.ErrNotFound, "VP flow codes are not exchangeable")
		assert.Nil(t, state)
	})
}

func TestOpenIDHandler_CreateOffer(t *testing.T) {
	ctx := context.Background()
	t.Run("pre-authorized code", func(t *testing.T) {
		c := newHandlerTestContext(t)

		offer, err := c.handler.CreateOffer(ctx, OfferRequest{
			SubjectDID:      testWalletDID,
			CredentialTypes: preAuthInTimeTypes,
			GrantType:       openid4vci.PreAuthorizedCodeGrant,
		})

		require.NoError(t, err)
		assert.Len(t, offer.PIN, 4)
		assert.Equal(t, testIssuerURL, offer.Offer.CredentialIssuer)
		assert.Contains(t, offer.URI, url.QueryEscape(testIssuerURL+"/offers/"+offer.ID))
		grant := offer.Offer.Grants[openid4vci.PreAuthorizedCodeGrant].(openid4vci.PreAuthorizedCodeGrantParams)
		assert.True(t, grant.UserPINRequired)
		token, err := c.handler.Token(ctx, openid4vci.TokenRequest{GrantType: openid4vci.PreAuthorizedCodeGrant, PreAuthorizedCode: grant.PreAuthorizedCode, UserPIN: offer.PIN})
		require.NoError(t, err)
		response, err := c.credentialRequest(t, token, preAuthInTimeTypes)
		require.NoError(t, err)
		assert.NotEmpty(t, response.Credential)
		document, err := c.handler.GetOffer(ctx, offer.ID)
		require.NoError(t, err)
		assert.Equal(t, preAuthInTimeTypes, document.Credentials[0].Types)
	})
	t.Run("unsupported types", func(t *testing.T) {
		c := newHandlerTestContext(t)

		_, err := c.handler.CreateOffer(ctx, OfferRequest{SubjectDID: testWalletDID, CredentialTypes: []string{"Other"}})

		assert.ErrorIs(t, err, openid4vci.ErrUnsupportedCredentialType)
	})
	t.Run("subject must be a DID", func(t *testing.T) {
		c := newHandlerTestContext(t)

		_, err := c.handler.CreateOffer(ctx, OfferRequest{SubjectDID: "someone", CredentialTypes: inTimeTypes})

		assert.ErrorIs(t, err, openid4vci.ErrInvalidRequest)
	})
}

func TestOpenIDHandler_DeleteConformanceState(t *testing.T) {
	ctx := context.Background()
	c := newHandlerTestContext(t)
	_, err := c.handler.Authorize(ctx, authorizeRequest(inTimeTypes))
	require.NoError(t, err)

	count, err := c.handler.DeleteConformanceState(ctx, testWalletDID)

	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestOpenIDHandler_JWKS(t *testing.T) {
	c := newHandlerTestContext(t)

	set := c.handler.JWKS()

	assert.Equal(t, 1, set.Len())
	assert.Equal(t, testIssuerURL, c.handler.IssuerMetadata().CredentialIssuer)
}
