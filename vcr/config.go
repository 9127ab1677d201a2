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

package vcr

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nuts-foundation/ebsi-issuer/vcr/issuer"
	"github.com/nuts-foundation/ebsi-issuer/vcr/revocation"
)

// ModuleName is the name of this module.
const ModuleName = "VCR"

// Config holds the config for the vcr engine
type Config struct {
	// Issuer configures the identity credentials are issued under.
	Issuer IssuerConfig `koanf:"issuer"`
	// OpenID4VCI holds the config of the OpenID4VCI credential issuer and its authorization server.
	OpenID4VCI OpenID4VCIConfig `koanf:"openid4vci"`
	// Revocation holds the config of the StatusList2021 status lists.
	Revocation revocation.Config `koanf:"revocation"`
	// Templates configures the credential subject templates.
	Templates TemplatesConfig `koanf:"templates"`
}

// IssuerConfig configures the issuer identity and its signing key.
type IssuerConfig struct {
	// DID is the issuer DID. When empty, a did:web DID is derived from the public URL of the node.
	DID string `koanf:"did"`
	// KeyFile is the PEM file holding the ES256 signing key. It is generated when it doesn't exist.
	// A relative path is resolved against the data directory.
	KeyFile string `koanf:"keyfile"`
	// KID is the key ID in the header of signed JWTs. Defaults to <DID>#key-1.
	KID string `koanf:"kid"`
}

// OpenID4VCIConfig holds the timing and protocol settings of the issuer.
type OpenID4VCIConfig struct {
	// Timeout is the HTTP timeout for fetching remote status lists.
	Timeout time.Duration `koanf:"timeout"`
	// CodeTTL is the validity of authorization codes and pre-authorized codes.
	CodeTTL time.Duration `koanf:"codettl"`
	// CNonceTTL is the validity of c_nonce values.
	CNonceTTL time.Duration `koanf:"cnoncettl"`
	// AcceptanceTTL is the validity of acceptance tokens for deferred credentials.
	AcceptanceTTL time.Duration `koanf:"acceptancettl"`
	// AccessTokenTTL is the validity of access tokens.
	AccessTokenTTL time.Duration `koanf:"accesstokenttl"`
	// RequestTTL is the validity of ID token and VP token requests.
	RequestTTL time.Duration `koanf:"requestttl"`
	// OfferTTL is the default validity of credential offers.
	OfferTTL time.Duration `koanf:"offerttl"`
	// CredentialValidity is the validity of issued credentials.
	CredentialValidity time.Duration `koanf:"credentialvalidity"`
	// ReplayTTL is how long used ID tokens, VP tokens and proofs are remembered.
	ReplayTTL time.Duration `koanf:"replayttl"`
	// DeferredDelay is the time after which a deferred credential becomes available.
	DeferredDelay time.Duration `koanf:"deferreddelay"`
	// DeferredTypes are the credential types that are issued deferred.
	DeferredTypes []string `koanf:"deferredtypes"`
	// CredentialTypes are the supported credential type sets. Each entry is a space-separated list of types.
	CredentialTypes []string `koanf:"credentialtypes"`
	// Conformance configures support for the EBSI wallet conformance tests.
	Conformance ConformanceConfig `koanf:"conformance"`
}

// ConformanceConfig configures support for the EBSI wallet conformance tests.
type ConformanceConfig struct {
	Enabled bool   `koanf:"enabled"`
	PIN     string `koanf:"pin"`
}

// TemplatesConfig configures credential subject templates.
type TemplatesConfig struct {
	// Dir is a directory with <CredentialType>.mustache files, which take precedence over the embedded templates.
	Dir string `koanf:"dir"`
}

// DefaultConfig returns a fresh Config filled with default values
func DefaultConfig() Config {
	return Config{
		Issuer: IssuerConfig{
			KeyFile: "issuer-key.pem",
		},
		OpenID4VCI: OpenID4VCIConfig{
			Timeout:            5 * time.Second,
			CodeTTL:            5 * time.Minute,
			CNonceTTL:          5 * time.Minute,
			AcceptanceTTL:      24 * time.Hour,
			AccessTokenTTL:     24 * time.Hour,
			RequestTTL:         5 * time.Minute,
			OfferTTL:           24 * time.Hour,
			CredentialValidity: 365 * 24 * time.Hour,
			ReplayTTL:          time.Hour,
			DeferredDelay:      5 * time.Second,
			DeferredTypes: []string{
				"CTWalletSameAuthorisedDeferred",
				"CTWalletSamePreAuthorisedDeferred",
				"CTWalletCrossAuthorisedDeferred",
				"CTWalletCrossPreAuthorisedDeferred",
			},
			CredentialTypes: []string{
				"VerifiableCredential VerifiableAttestation CTWalletSameAuthorisedInTime",
				"VerifiableCredential VerifiableAttestation CTWalletSameAuthorisedDeferred",
				"VerifiableCredential VerifiableAttestation CTWalletSamePreAuthorisedInTime",
				"VerifiableCredential VerifiableAttestation CTWalletSamePreAuthorisedDeferred",
				"VerifiableCredential VerifiableAttestation CTWalletCrossAuthorisedInTime",
				"VerifiableCredential VerifiableAttestation CTWalletCrossAuthorisedDeferred",
				"VerifiableCredential VerifiableAttestation CTWalletCrossPreAuthorisedInTime",
				"VerifiableCredential VerifiableAttestation CTWalletCrossPreAuthorisedDeferred",
			},
			Conformance: ConformanceConfig{
				PIN: issuer.DefaultConformancePIN,
			},
		},
		Revocation: revocation.DefaultConfig(),
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	o := c.OpenID4VCI
	durations := map[string]time.Duration{
		"codettl":            o.CodeTTL,
		"cnoncettl":          o.CNonceTTL,
		"acceptancettl":      o.AcceptanceTTL,
		"accesstokenttl":     o.AccessTokenTTL,
		"requestttl":         o.RequestTTL,
		"offerttl":           o.OfferTTL,
		"credentialvalidity": o.CredentialValidity,
		"replayttl":          o.ReplayTTL,
	}
	for key, value := range durations {
		if value <= 0 {
			return fmt.Errorf("vcr.openid4vci.%s must be positive", key)
		}
	}
	if o.DeferredDelay < 0 {
		return errors.New("vcr.openid4vci.deferreddelay must not be negative")
	}
	if len(o.CredentialTypes) == 0 {
		return errors.New("vcr.openid4vci.credentialtypes must contain at least one type set")
	}
	if o.Conformance.Enabled && o.Conformance.PIN == "" {
		return errors.New("vcr.openid4vci.conformance.pin is required when conformance mode is enabled")
	}
	return c.Revocation.Validate()
}

// credentialTypeSets splits the configured type sets into their members.
func (o OpenID4VCIConfig) credentialTypeSets() [][]string {
	var result [][]string
	for _, set := range o.CredentialTypes {
		if types := strings.Fields(set); len(types) > 0 {
			result = append(result, types)
		}
	}
	return result
}
