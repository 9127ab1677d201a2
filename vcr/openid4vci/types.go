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
	"encoding/json"
	"slices"
	"strings"
	"time"
)

const (
	// JWTVCFormat is the format of credentials issued as JWT.
	JWTVCFormat = "jwt_vc"
	// JWTVCJSONFormat is an alias of jwt_vc used by newer wallets.
	JWTVCJSONFormat = "jwt_vc_json"
	// JWTVPFormat is the format of presentations submitted as JWT.
	JWTVPFormat = "jwt_vp"
	// OpenIDCredentialAuthorizationDetailType is the type of the authorization details requesting a credential.
	OpenIDCredentialAuthorizationDetailType = "openid_credential"
	// ProofTypeJWT is the only supported proof type of credential requests.
	ProofTypeJWT = "jwt"
	// ProofJWTType is the typ header of a credential request proof.
	ProofJWTType = "openid4vci-proof+jwt"
	// PKCEMethodS256 is the only supported code_challenge_method.
	PKCEMethodS256 = "S256"
	// ResponseModeDirectPost is the response mode of ID token and VP token requests.
	ResponseModeDirectPost = "direct_post"
	// DefaultWalletRedirectURI is used to redirect to the wallet if it doesn't declare an authorization endpoint.
	DefaultWalletRedirectURI = "openid://"
)

const (
	// AuthorizationCodeGrant is the grant_type of the authorization code flow.
	AuthorizationCodeGrant = "authorization_code"
	// PreAuthorizedCodeGrant is the grant_type of the pre-authorized code flow.
	PreAuthorizedCodeGrant = "urn:ietf:params:oauth:grant-type:pre-authorized_code"
)

const (
	// ResponseTypeCode is the response_type of the authorization code flow.
	ResponseTypeCode = "code"
	// ResponseTypeIDToken is the response_type of an ID token request.
	ResponseTypeIDToken = "id_token"
	// ResponseTypeVPToken is the response_type of a VP token request.
	ResponseTypeVPToken = "vp_token"
)

const (
	// ScopeOpenID is the scope of a credential issuance flow.
	ScopeOpenID = "openid"
	// ScopeIDTokenTest is the additional scope requesting only an ID token, used by conformance tests.
	ScopeIDTokenTest = "ver_test:id_token"
	// ScopeVPTokenTest is the additional scope requesting a VP token, used by conformance tests.
	ScopeVPTokenTest = "ver_test:vp_token"
)

// Flow is the branch of the protocol an authorization request is classified into.
type Flow string

const (
	// CredentialIssuanceFlow is the authorization code flow ending with a credential.
	CredentialIssuanceFlow Flow = "credential_issuance"
	// IDTokenTestFlow is the conformance flow that only requests and verifies an ID token.
	IDTokenTestFlow Flow = "id_token_test"
	// VPTokenTestFlow is the conformance flow that requests and verifies a VP token.
	VPTokenTestFlow Flow = "vp_token_test"
	// PreAuthorisedFlow is the pre-authorized code flow.
	PreAuthorisedFlow Flow = "pre_authorised"
)

// AuthorizationDetail describes a requested credential.
type AuthorizationDetail struct {
	Type      string   `json:"type"`
	Format    string   `json:"format,omitempty"`
	Types     []string `json:"types,omitempty"`
	Locations []string `json:"locations,omitempty"`
}

// ClientMetadata is the metadata a wallet passes in the authorization request.
type ClientMetadata struct {
	// AuthorizationEndpoint is where the issuer sends ID token and VP token requests.
	AuthorizationEndpoint  string                 `json:"authorization_endpoint,omitempty"`
	VPFormatsSupported     map[string]interface{} `json:"vp_formats_supported,omitempty"`
	ResponseTypesSupported []string               `json:"response_types_supported,omitempty"`
}

// AuthorizeRequest is the authorization request of a wallet.
type AuthorizeRequest struct {
	ResponseType         string
	ClientID             string
	RedirectURI          string
	Scope                string
	CodeChallenge        string
	CodeChallengeMethod  string
	State                string
	Nonce                string
	IssuerState          string
	AuthorizationDetails []AuthorizationDetail
	ClientMetadata       *ClientMetadata
}

// Scopes returns the space-separated scope values.
func (r AuthorizeRequest) Scopes() []string {
	return strings.Fields(r.Scope)
}

// DirectPostRequest is the response of a wallet to an ID token or VP token request, posted to the direct_post endpoint.
type DirectPostRequest struct {
	IDToken                string
	VPToken                string
	PresentationSubmission *PresentationSubmission
	State                  string
}

// TokenRequest is the token request of a wallet.
type TokenRequest struct {
	GrantType           string
	Code                string
	CodeVerifier        string
	ClientID            string
	RedirectURI         string
	PreAuthorizedCode   string
	UserPIN             string
	ClientAssertion     string
	ClientAssertionType string
}

// TokenResponse is returned by the token endpoint.
type TokenResponse struct {
	AccessToken     string `json:"access_token"`
	TokenType       string `json:"token_type"`
	ExpiresIn       int    `json:"expires_in"`
	IDToken         string `json:"id_token,omitempty"`
	CNonce          string `json:"c_nonce"`
	CNonceExpiresIn int    `json:"c_nonce_expires_in"`
}

// Proof is the proof of possession of a credential request.
type Proof struct {
	ProofType string `json:"proof_type"`
	JWT       string `json:"jwt"`
}

// CredentialRequest is the credential request of a wallet.
type CredentialRequest struct {
	Types  []string `json:"types,omitempty"`
	Format string   `json:"format,omitempty"`
	Proof  *Proof   `json:"proof,omitempty"`
}

// CredentialResponse is returned by the credential and deferred credential endpoints.
// Either Credential (in-time) or AcceptanceToken (deferred) is set.
type CredentialResponse struct {
	Format          string `json:"format"`
	Credential      string `json:"credential,omitempty"`
	AcceptanceToken string `json:"acceptance_token,omitempty"`
	CNonce          string `json:"c_nonce,omitempty"`
	CNonceExpiresIn int    `json:"c_nonce_expires_in,omitempty"`
}

// Redirect describes a 302 redirect.
type Redirect struct {
	Code int
	URL  string
}

// VPTokenResponse is the response of a wallet to a VP token request.
type VPTokenResponse struct {
	VPToken                string                 `json:"vp_token"`
	PresentationSubmission PresentationSubmission `json:"presentation_submission"`
	State                  string                 `json:"state,omitempty"`
}

// PresentationDefinition describes the credentials a verifier requests.
type PresentationDefinition struct {
	ID               string                 `json:"id"`
	Format           map[string]interface{} `json:"format,omitempty"`
	InputDescriptors []InputDescriptor      `json:"input_descriptors"`
}

// InputDescriptor describes a single requested credential.
type InputDescriptor struct {
	ID          string                 `json:"id"`
	Format      map[string]interface{} `json:"format,omitempty"`
	Constraints Constraints            `json:"constraints"`
}

// Constraints of an InputDescriptor.
type Constraints struct {
	Fields []Field `json:"fields,omitempty"`
}

// Field is a JSON path constraint on a credential.
type Field struct {
	Path   []string               `json:"path"`
	Filter map[string]interface{} `json:"filter,omitempty"`
}

// PresentationSubmission maps the credentials in a VP token to the input descriptors of the presentation definition.
type PresentationSubmission struct {
	ID            string              `json:"id"`
	DefinitionID  string              `json:"definition_id"`
	DescriptorMap []DescriptorMapping `json:"descriptor_map"`
}

// DescriptorMapping points to the credential that satisfies an input descriptor.
type DescriptorMapping struct {
	ID         string             `json:"id"`
	Format     string             `json:"format"`
	Path       string             `json:"path"`
	PathNested *DescriptorMapping `json:"path_nested,omitempty"`
}

// AuthorizationResult is the outcome of a handled authorization request.
type AuthorizationResult struct {
	Flow                 Flow
	Redirect             Redirect
	AuthorizationDetails []AuthorizationDetail
	ServerDefinedState   string
	ServerDefinedNonce   string
	// WalletRedirectURI is the endpoint the ID token or VP token request was sent to.
	WalletRedirectURI string
}

// ProofClaims are the decoded claims of a credential request proof.
type ProofClaims struct {
	Issuer   string
	KeyID    string
	Audience []string
	Nonce    string
	IssuedAt time.Time
	JWTID    string
	// Raw is the proof JWT, its signature is not verified yet.
	Raw string
}

// AccessTokenClaims are the verified claims of an access token.
type AccessTokenClaims struct {
	Subject              string
	CNonce               string
	CNonceExpiresAt      time.Time
	AuthorizationDetails []AuthorizationDetail
}

// CredentialOffer is the offer document a wallet receives to start issuance.
type CredentialOffer struct {
	CredentialIssuer string                 `json:"credential_issuer"`
	Credentials      []OfferedCredential    `json:"credentials"`
	Grants           map[string]interface{} `json:"grants"`
}

// OfferedCredential is a credential in a CredentialOffer.
type OfferedCredential struct {
	Format         string          `json:"format"`
	Types          []string        `json:"types"`
	TrustFramework *TrustFramework `json:"trust_framework,omitempty"`
}

// TrustFramework describes the trust framework an issuer is accredited in.
type TrustFramework struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URI  string `json:"uri,omitempty"`
}

// AuthorizationCodeGrantParams are the grant parameters of an offer for the authorization code flow.
type AuthorizationCodeGrantParams struct {
	IssuerState string `json:"issuer_state,omitempty"`
}

// PreAuthorizedCodeGrantParams are the grant parameters of an offer for the pre-authorized code flow.
type PreAuthorizedCodeGrantParams struct {
	PreAuthorizedCode string `json:"pre-authorized_code"`
	UserPINRequired   bool   `json:"user_pin_required"`
}

// SameTypes returns true if both type sets contain the same types, regardless of order.
func SameTypes(a []string, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sortedA := slices.Clone(a)
	sortedB := slices.Clone(b)
	slices.Sort(sortedA)
	slices.Sort(sortedB)
	return slices.Equal(sortedA, sortedB)
}

// ParseAuthorizationDetails parses the JSON encoded authorization_details parameter.
func ParseAuthorizationDetails(value string) ([]AuthorizationDetail, error) {
	if value == "" {
		return nil, nil
	}
	var result []AuthorizationDetail
	if err := json.Unmarshal([]byte(value), &result); err != nil {
		return nil, InvalidRequestError("authorization_details is malformed")
	}
	return result, nil
}
