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
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nuts-foundation/ebsi-issuer/vcr/openid4vci"
	"github.com/nuts-foundation/ebsi-issuer/vcr/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CredentialStatus is the issuance status of a VerifiableCredentialRecord.
type CredentialStatus string

const (
	CredentialPending  CredentialStatus = "PENDING"
	CredentialIssued   CredentialStatus = "ISSUED"
	CredentialRejected CredentialStatus = "REJECTED"
)

// OfferStatus is the status of a CredentialOffer.
type OfferStatus string

const (
	OfferPending OfferStatus = "PENDING"
	OfferUsed    OfferStatus = "USED"
	OfferExpired OfferStatus = "EXPIRED"
)

// HolderDID is a wallet DID credentials were issued to.
type HolderDID struct {
	ID        string `gorm:"column:id;primaryKey"`
	DID       string `gorm:"column:did"`
	CreatedAt int64  `gorm:"column:created_at"`
}

func (HolderDID) TableName() string {
	return "holder_did"
}

// VerifiableCredentialRecord tracks a credential from request to issuance (or rejection).
type VerifiableCredentialRecord struct {
	ID                   string           `gorm:"column:id;primaryKey"`
	HolderDIDID          string           `gorm:"column:holder_did_id"`
	Holder               HolderDID        `gorm:"foreignKey:HolderDIDID"`
	RequestedCredentials []string         `gorm:"column:requested_credentials;serializer:json"`
	Credential           string           `gorm:"column:credential"`
	CredentialSigned     string           `gorm:"column:credential_signed"`
	Format               string           `gorm:"column:format"`
	Status               CredentialStatus `gorm:"column:status"`
	IssuedAt             int64            `gorm:"column:issued_at"`
	CreatedAt            int64            `gorm:"column:created_at"`
	UpdatedAt            int64            `gorm:"column:updated_at"`
}

func (VerifiableCredentialRecord) TableName() string {
	return "verifiable_credential"
}

// CredentialOffer is an issuer-initiated offer of credentials to a subject.
type CredentialOffer struct {
	ID                string                     `gorm:"column:id;primaryKey"`
	SubjectDID        string                     `gorm:"column:subject_did"`
	CredentialTypes   []string                   `gorm:"column:credential_types;serializer:json"`
	GrantType         string                     `gorm:"column:grant_type"`
	PIN               string                     `gorm:"column:pin"`
	PreAuthorisedCode string                     `gorm:"column:pre_authorised_code"`
	Status            OfferStatus                `gorm:"column:status"`
	IssuerState       string                     `gorm:"column:issuer_state"`
	ExpiresAt         int64                      `gorm:"column:expires_at"`
	Offer             openid4vci.CredentialOffer `gorm:"column:offer;serializer:json"`
	CreatedAt         int64                      `gorm:"column:created_at"`
}

func (CredentialOffer) TableName() string {
	return "credential_offer"
}

// CredentialStore persists credential records, holder DIDs and credential offers.
type CredentialStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCredentialStore creates a CredentialStore on the given database.
func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db, now: time.Now}
}

func (s *CredentialStore) withDB(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db, now: s.now}
}

// FindOrCreateHolder returns the holder record of the given DID, creating it if it doesn't exist yet.
func (s *CredentialStore) FindOrCreateHolder(ctx context.Context, did string) (*HolderDID, error) {
	holder := HolderDID{ID: uuid.NewString(), DID: did, CreatedAt: s.now().Unix()}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "did"}}, DoNothing: true}).
		Create(&holder).Error
	if err != nil {
		return nil, err
	}
	var result HolderDID
	if err = s.db.WithContext(ctx).Where("did = ?", did).First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

// NewCredentialID returns a new credential identifier.
func NewCredentialID() string {
	return "urn:uuid:" + uuid.NewString()
}

// CreatePending creates a PENDING credential record with the given ID for the holder.
func (s *CredentialStore) CreatePending(ctx context.Context, id string, holder HolderDID, requestedTypes []string, format string) (*VerifiableCredentialRecord, error) {
	now := s.now().Unix()
	record := VerifiableCredentialRecord{
		ID:                   id,
		HolderDIDID:          holder.ID,
		RequestedCredentials: requestedTypes,
		Format:               format,
		Status:               CredentialPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.db.WithContext(ctx).Omit("Holder").Create(&record).Error; err != nil {
		return nil, err
	}
	record.Holder = holder
	return &record, nil
}

// Get returns the credential record with its holder, or types.ErrCredentialNotFound.
func (s *CredentialStore) Get(ctx context.Context, id string) (*VerifiableCredentialRecord, error) {
	var result VerifiableCredentialRecord
	err := s.db.WithContext(ctx).Preload("Holder").Where("id = ?", id).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// MarkIssued stores the (signed) credential and moves the record from PENDING to ISSUED.
func (s *CredentialStore) MarkIssued(ctx context.Context, id string, credential string, credentialSigned string) error {
	now := s.now().Unix()
	return s.transition(ctx, id, map[string]interface{}{
		"credential":        credential,
		"credential_signed": credentialSigned,
		"status":            CredentialIssued,
		"issued_at":         now,
		"updated_at":        now,
	})
}

// Reject moves the record from PENDING to REJECTED.
func (s *CredentialStore) Reject(ctx context.Context, id string) error {
	return s.transition(ctx, id, map[string]interface{}{
		"status":     CredentialRejected,
		"updated_at": s.now().Unix(),
	})
}

func (s *CredentialStore) transition(ctx context.Context, id string, updates map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(&VerifiableCredentialRecord{}).
		Where("id = ? AND status = ?", id, CredentialPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrStateConflict
	}
	return nil
}

// CreateOffer stores a new credential offer.
func (s *CredentialStore) CreateOffer(ctx context.Context, offer *CredentialOffer) error {
	if offer.ID == "" {
		offer.ID = uuid.NewString()
	}
	offer.Status = OfferPending
	offer.CreatedAt = s.now().Unix()
	return s.db.WithContext(ctx).Create(offer).Error
}

// GetOffer returns the credential offer with the given ID, or types.ErrNotFound.
func (s *CredentialStore) GetOffer(ctx context.Context, id string) (*CredentialOffer, error) {
	var result CredentialOffer
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FindOfferByIssuerState returns the PENDING offer with the given issuer_state.
// An offer past its expiry is marked EXPIRED and types.ErrExpired is returned.
func (s *CredentialStore) FindOfferByIssuerState(ctx context.Context, issuerState string) (*CredentialOffer, error) {
	if issuerState == "" {
		return nil, types.ErrNotFound
	}
	var result CredentialOffer
	err := s.db.WithContext(ctx).Where("issuer_state = ? AND status = ?", issuerState, OfferPending).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if expired(result.ExpiresAt, s.now()) {
		s.db.WithContext(ctx).Model(&CredentialOffer{}).
			Where("id = ? AND status = ?", result.ID, OfferPending).
			Update("status", OfferExpired)
		return nil, types.ErrExpired
	}
	return &result, nil
}

// MarkOfferUsed moves the offer from PENDING to USED. It returns ErrStateConflict if it was used already.
func (s *CredentialStore) MarkOfferUsed(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&CredentialOffer{}).
		Where("id = ? AND status = ?", id, OfferPending).
		Update("status", OfferUsed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateConflict
	}
	return nil
}
