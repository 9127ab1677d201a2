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
	"net/url"
	"path/filepath"

	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/crypto"
	"github.com/nuts-foundation/ebsi-issuer/storage"
	"github.com/nuts-foundation/ebsi-issuer/vcr/issuer"
	"github.com/nuts-foundation/ebsi-issuer/vcr/log"
	"github.com/nuts-foundation/ebsi-issuer/vcr/openid4vci"
	"github.com/nuts-foundation/ebsi-issuer/vcr/revocation"
	"github.com/nuts-foundation/ebsi-issuer/vcr/verifier"
	"github.com/nuts-foundation/ebsi-issuer/vdr/didweb"
	"github.com/nuts-foundation/go-did/did"
)

var _ core.Injectable = (*Module)(nil)
var _ core.Configurable = (*Module)(nil)
var _ core.Runnable = (*Module)(nil)
var _ core.ViewableDiagnostics = (*Module)(nil)
var _ VCR = (*Module)(nil)

// NewVCRInstance creates a new VCR engine with the default config.
// The key resolver is provided by a func, since it is only available after the VDR engine has been configured.
func NewVCRInstance(storageEngine storage.Engine, keyResolver func() crypto.KeyResolver) *Module {
	return &Module{
		config:        DefaultConfig(),
		storageEngine: storageEngine,
		keyResolver:   keyResolver,
	}
}

// Module is the VCR engine: the EBSI OpenID4VCI credential issuer and its StatusList2021 revocation lists.
type Module struct {
	config        Config
	strictmode    bool
	storageEngine storage.Engine
	keyResolver   func() crypto.KeyResolver

	baseURL     *url.URL
	issuerDID   did.DID
	didDocument *did.Document
	signer      *crypto.JWTSigner

	statusList *revocation.StatusList
	openid     *issuer.OpenIDService
}

// Name returns the name of the engine.
func (m *Module) Name() string {
	return ModuleName
}

// Config returns a pointer to the engine's config.
func (m *Module) Config() interface{} {
	return &m.config
}

// Configure checks the config and loads (or creates) the issuer's signing key.
func (m *Module) Configure(config core.ServerConfig) error {
	var err error
	if err = m.config.Validate(); err != nil {
		return err
	}
	m.strictmode = config.Strictmode
	m.baseURL, err = core.ParseBaseURL(config.URL, config.Strictmode)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if err = m.configureIssuerDID(); err != nil {
		return err
	}
	kid := m.config.Issuer.KID
	if kid == "" {
		kid = m.issuerDID.String() + "#key-1"
	}
	keyFile := m.config.Issuer.KeyFile
	if keyFile == "" {
		return errors.New("vcr.issuer.keyfile is required")
	}
	if !filepath.IsAbs(keyFile) {
		keyFile = filepath.Join(config.Datadir, keyFile)
	}
	if m.signer, err = crypto.LoadOrCreateJWTSigner(keyFile, kid); err != nil {
		return fmt.Errorf("unable to load issuer key: %w", err)
	}
	if m.issuerDID.Method == didweb.MethodName {
		if selfDID, _ := didweb.DIDFromURL(m.baseURL); selfDID.Equals(m.issuerDID) {
			if m.didDocument, err = didweb.Document(m.issuerDID, m.signer.PublicKey()); err != nil {
				return fmt.Errorf("unable to create issuer DID document: %w", err)
			}
		}
	}
	log.Logger().
		WithField(core.LogFieldDID, m.issuerDID.String()).
		WithField(core.LogFieldKeyID, kid).
		Info("Credential issuer configured")
	return nil
}

func (m *Module) configureIssuerDID() error {
	if m.config.Issuer.DID == "" {
		id, err := didweb.DIDFromURL(m.baseURL)
		if err != nil {
			return fmt.Errorf("unable to derive issuer DID from url: %w", err)
		}
		m.issuerDID = id
		return nil
	}
	id, err := did.ParseDID(m.config.Issuer.DID)
	if err != nil {
		return fmt.Errorf("invalid vcr.issuer.did: %w", err)
	}
	m.issuerDID = *id
	return nil
}

// Start sets up the issuer on top of the storage engine, which must have been started before.
func (m *Module) Start() error {
	db := m.storageEngine.GetSQLDatabase()
	if db == nil {
		return errors.New("SQL database is not available")
	}
	keyResolver := m.keyResolver()
	settings := m.config.OpenID4VCI
	m.statusList = revocation.NewStatusList(db, m.signer, m.baseURL.String(), m.config.Revocation)
	provider := openid4vci.NewProvider(m.signer, keyResolver, openid4vci.ProviderConfig{
		IssuerURL:          m.baseURL.String(),
		CredentialTypes:    settings.credentialTypeSets(),
		RequestTTL:         settings.RequestTTL,
		AccessTokenTTL:     settings.AccessTokenTTL,
		CNonceTTL:          settings.CNonceTTL,
		AcceptanceTokenTTL: settings.AcceptanceTTL,
	})
	remoteStatus := revocation.NewRemoteVerifier(core.NewStrictHTTPClient(m.strictmode, settings.Timeout, nil), keyResolver)
	templates, err := issuer.NewTemplateRenderer(m.config.Templates.Dir)
	if err != nil {
		return err
	}
	m.openid, err = issuer.NewOpenIDHandler(provider, m.signer, db, m.storageEngine.GetSessionDatabase(), m.statusList,
		verifier.NewVerifier(keyResolver, remoteStatus), templates, issuer.Config{
			IssuerDID:          m.issuerDID.String(),
			CodeTTL:            settings.CodeTTL,
			OfferTTL:           settings.OfferTTL,
			CredentialValidity: settings.CredentialValidity,
			ReplayTTL:          settings.ReplayTTL,
			DeferredDelay:      settings.DeferredDelay,
			DeferredTypes:      settings.DeferredTypes,
			Conformance: issuer.ConformanceConfig{
				Enabled: settings.Conformance.Enabled,
				PIN:     settings.Conformance.PIN,
			},
		})
	if err != nil {
		return err
	}
	if settings.Conformance.Enabled {
		log.Logger().Warn("Conformance mode is enabled: pre-authorized codes are provisioned on first use, do not use in production")
	}
	return nil
}

// Shutdown stops deferred issuance.
func (m *Module) Shutdown() error {
	if m.openid != nil {
		m.openid.Shutdown()
	}
	return nil
}

// OpenID returns the OpenID4VCI issuance handler.
func (m *Module) OpenID() issuer.OpenIDHandler {
	if m.openid == nil {
		return nil
	}
	return m.openid
}

// StatusList returns the issuer's status lists.
func (m *Module) StatusList() *revocation.StatusList {
	return m.statusList
}

// DIDDocument returns the issuer's did:web document, if it is hosted by this node.
func (m *Module) DIDDocument() *did.Document {
	return m.didDocument
}

// IssuerDID returns the DID credentials are issued under.
func (m *Module) IssuerDID() did.DID {
	return m.issuerDID
}

// Diagnostics returns the identity of the issuer.
func (m *Module) Diagnostics() []core.DiagnosticResult {
	credentialIssuer := ""
	if m.baseURL != nil {
		credentialIssuer = m.baseURL.String()
	}
	return []core.DiagnosticResult{
		core.GenericDiagnosticResult{Title: "issuer_did", Outcome: m.issuerDID.String()},
		core.GenericDiagnosticResult{Title: "credential_issuer", Outcome: credentialIssuer},
		core.GenericDiagnosticResult{Title: "conformance_mode", Outcome: m.config.OpenID4VCI.Conformance.Enabled},
	}
}
