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

import "github.com/nuts-foundation/ebsi-issuer/crypto"

// CredentialIssuerMetadataWellKnownPath is the path of the credential issuer metadata.
const CredentialIssuerMetadataWellKnownPath = "/.well-known/openid-credential-issuer"

// ProviderMetadataWellKnownPath is the path of the authorization server metadata.
const ProviderMetadataWellKnownPath = "/.well-known/openid-configuration"

// CredentialIssuerMetadata is the metadata of a credential issuer.
type CredentialIssuerMetadata struct {
	CredentialIssuer           string                 `json:"credential_issuer"`
	AuthorizationServer        string                 `json:"authorization_server"`
	CredentialEndpoint         string                 `json:"credential_endpoint"`
	DeferredCredentialEndpoint string                 `json:"deferred_credential_endpoint"`
	CredentialsSupported       []CredentialsSupported `json:"credentials_supported"`
}

// CredentialsSupported describes a credential the issuer can issue.
type CredentialsSupported struct {
	Format string   `json:"format"`
	Types  []string `json:"types"`
}

// ProviderMetadata is the metadata of the issuer's authorization server.
type ProviderMetadata struct {
	Issuer                                     string                 `json:"issuer"`
	AuthorizationEndpoint                      string                 `json:"authorization_endpoint"`
	TokenEndpoint                              string                 `json:"token_endpoint"`
	JWKSURI                                    string                 `json:"jwks_uri"`
	ScopesSupported                            []string               `json:"scopes_supported"`
	ResponseTypesSupported                     []string               `json:"response_types_supported"`
	ResponseModesSupported                     []string               `json:"response_modes_supported"`
	GrantTypesSupported                        []string               `json:"grant_types_supported"`
	SubjectTypesSupported                      []string               `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported           []string               `json:"id_token_signing_alg_values_supported"`
	RequestObjectSigningAlgValuesSupported     []string               `json:"request_object_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported          []string               `json:"token_endpoint_auth_methods_supported"`
	RequestParameterSupported                  bool                   `json:"request_parameter_supported"`
	RequestURIParameterSupported               bool                   `json:"request_uri_parameter_supported"`
	PreAuthorizedGrantAnonymousAccessSupported bool                   `json:"pre-authorized_grant_anonymous_access_supported"`
	VPFormatsSupported                         map[string]interface{} `json:"vp_formats_supported"`
	RedirectURIs                               []string               `json:"redirect_uris"`
}

// IssuerMetadata returns the credential issuer metadata, listing the supported credential type sets.
func (p *Provider) IssuerMetadata() CredentialIssuerMetadata {
	result := CredentialIssuerMetadata{
		CredentialIssuer:           p.config.IssuerURL,
		AuthorizationServer:        p.config.IssuerURL,
		CredentialEndpoint:         p.Endpoint("credential"),
		DeferredCredentialEndpoint: p.Endpoint("credential_deferred"),
		CredentialsSupported:       []CredentialsSupported{},
	}
	for _, types := range p.config.CredentialTypes {
		result.CredentialsSupported = append(result.CredentialsSupported, CredentialsSupported{
			Format: JWTVCFormat,
			Types:  types,
		})
	}
	return result
}

// ProviderMetadata returns the authorization server metadata.
func (p *Provider) ProviderMetadata() ProviderMetadata {
	holderAlgs := holderAlgorithmNames()
	return ProviderMetadata{
		Issuer:                                     p.config.IssuerURL,
		AuthorizationEndpoint:                      p.Endpoint("authorize"),
		TokenEndpoint:                              p.Endpoint("token"),
		JWKSURI:                                    p.Endpoint("jwks"),
		ScopesSupported:                            []string{ScopeOpenID},
		ResponseTypesSupported:                     []string{ResponseTypeCode, ResponseTypeIDToken, ResponseTypeVPToken},
		ResponseModesSupported:                     []string{"query", "fragment"},
		GrantTypesSupported:                        []string{AuthorizationCodeGrant, PreAuthorizedCodeGrant},
		SubjectTypesSupported:                      []string{"public"},
		IDTokenSigningAlgValuesSupported:           holderAlgs,
		RequestObjectSigningAlgValuesSupported:     holderAlgs,
		TokenEndpointAuthMethodsSupported:          []string{"private_key_jwt"},
		RequestParameterSupported:                  true,
		RequestURIParameterSupported:               false,
		PreAuthorizedGrantAnonymousAccessSupported: true,
		VPFormatsSupported: map[string]interface{}{
			JWTVPFormat: map[string]interface{}{"alg_values_supported": holderAlgs},
			JWTVCFormat: map[string]interface{}{"alg_values_supported": holderAlgs},
		},
		RedirectURIs: []string{p.Endpoint("direct_post")},
	}
}

// DefaultPresentationDefinition requests three VerifiableAttestation credentials as jwt_vc, as used by the
// VP token conformance flow.
func DefaultPresentationDefinition() *PresentationDefinition {
	descriptor := func(id string) InputDescriptor {
		return InputDescriptor{
			ID: id,
			Format: map[string]interface{}{
				JWTVCFormat: map[string]interface{}{"alg": holderAlgorithmNames()},
			},
			Constraints: Constraints{
				Fields: []Field{{
					Path: []string{"$.vc.type"},
					Filter: map[string]interface{}{
						"type":     "array",
						"contains": map[string]interface{}{"const": "VerifiableAttestation"},
					},
				}},
			},
		}
	}
	return &PresentationDefinition{
		ID: "holder-wallet-qualification-presentation",
		Format: map[string]interface{}{
			JWTVPFormat: map[string]interface{}{"alg": holderAlgorithmNames()},
		},
		InputDescriptors: []InputDescriptor{descriptor("same-device-in-time-credential"), descriptor("same-device-deferred-credential"), descriptor("same-device-pre_authorised-in-time-credential")},
	}
}

func holderAlgorithmNames() []string {
	result := make([]string, 0, len(crypto.HolderAlgorithms))
	for _, alg := range crypto.HolderAlgorithms {
		result = append(result, alg.String())
	}
	return result
}
