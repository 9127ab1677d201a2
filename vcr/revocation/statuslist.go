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

package revocation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/crypto"
	"github.com/nuts-foundation/ebsi-issuer/vcr/log"
	"github.com/nuts-foundation/ebsi-issuer/vcr/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultListSize is the default number of entries of a status list (16kB bitstring).
const DefaultListSize = minBitstringLengthInBytes * 8

// DefaultMaxAttempts is the default number of random indices tried before allocation gives up.
const DefaultMaxAttempts = 64

// maxTransactionRetries bounds retries of transactions that lost a race with a concurrent writer.
const maxTransactionRetries = 10

// errVersionConflict is returned when a status list was modified by another writer during the transaction.
var errVersionConflict = errors.New("status list was modified concurrently")

type statusListRecord struct {
	ID            string `gorm:"primaryKey"`
	Issuer        string
	StatusPurpose string
	// Sequence numbers the lists of an issuer and purpose, it is unique per issuer and purpose.
	Sequence    int
	EncodedList bitstring
	ListSize      int
	Allocated     int
	Version       int
	ValidFrom     int64
	ValidUntil    *int64
	CreatedAt     int64
}

func (statusListRecord) TableName() string {
	return "status_list"
}

// full returns true if at least 80% of the list is allocated, after which the list isn't used for new entries.
func (r statusListRecord) full() bool {
	return r.Allocated*5 >= r.ListSize*4
}

type statusEntryRecord struct {
	ID              string `gorm:"primaryKey"`
	CredentialID    string
	StatusListID    string
	StatusListIndex int
	Revoked         bool
	CreatedAt       int64
}

func (statusEntryRecord) TableName() string {
	return "status_list_entry"
}

// Config contains the settings of the status lists.
type Config struct {
	// ListSize is the number of entries of a new status list.
	ListSize int `koanf:"listsize"`
	// MaxAttempts bounds the number of random indices tried when allocating an entry.
	MaxAttempts int `koanf:"maxattempts"`
}

// DefaultConfig returns the default status list settings.
func DefaultConfig() Config {
	return Config{
		ListSize:    DefaultListSize,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.ListSize <= 0 || c.ListSize%8 != 0 {
		return errors.New("vcr.revocation.listsize must be a positive multiple of 8")
	}
	if c.MaxAttempts <= 0 {
		return errors.New("vcr.revocation.maxattempts must be positive")
	}
	return nil
}

// StatusList manages the StatusList2021 lists of the issuer.
// Allocation and revocation are serialized per list through a row lock and an optimistic version check.
type StatusList struct {
	db      *gorm.DB
	signer  crypto.Signer
	baseURL string
	config  Config
	// randomIndex returns a random index in [0, n)
	randomIndex func(n int) int
	now         func() time.Time
}

// NewStatusList creates a StatusList. Status list documents are published at <baseURL>/statuslist/<id>.
func NewStatusList(db *gorm.DB, signer crypto.Signer, baseURL string, config Config) *StatusList {
	return &StatusList{
		db:          db,
		signer:      signer,
		baseURL:     baseURL,
		config:      config,
		randomIndex: rand.IntN,
		now:         time.Now,
	}
}

// URL returns the URL of the status list document.
func (s *StatusList) URL(listID string) string {
	return core.JoinURLPaths(s.baseURL, "statuslist", listID)
}

// GetOrCreate returns the newest list of the issuer for the given purpose if less than 80% of it is allocated,
// otherwise it creates a new list. Concurrent callers get the same list.
func (s *StatusList) GetOrCreate(ctx context.Context, issuer string, purpose StatusPurpose) (*List, error) {
	return s.current(ctx, issuer, purpose, "")
}

// current returns the newest list, or creates its successor if the newest list is full or retired.
// Creation is serialized by locking the newest list, and by the unique sequence of lists for when there's no list yet.
func (s *StatusList) current(ctx context.Context, issuer string, purpose StatusPurpose, retired string) (*List, error) {
	var result *List
	err := s.retry(func() error {
		sequence := 0
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			newest, err := newestList(tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}), issuer, purpose)
			if err != nil {
				return err
			}
			if newest != nil {
				// another writer may have created a list while we waited for the lock
				if newest, err = newestList(tx, issuer, purpose); err != nil {
					return err
				}
			}
			if newest != nil && !newest.full() && newest.ID != retired {
				result = s.toList(*newest)
				return nil
			}
			sequence = 1
			if newest != nil {
				sequence = newest.Sequence + 1
			}
			result, err = s.create(tx, issuer, purpose, sequence)
			return err
		})
		if err != nil && sequence > 0 {
			var count int64
			if countErr := s.db.WithContext(ctx).Model(&statusListRecord{}).
				Where("issuer = ? AND status_purpose = ? AND sequence = ?", issuer, string(purpose), sequence).
				Count(&count).Error; countErr == nil && count > 0 {
				return errVersionConflict
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func newestList(db *gorm.DB, issuer string, purpose StatusPurpose) (*statusListRecord, error) {
	var record statusListRecord
	err := db.Where("issuer = ? AND status_purpose = ?", issuer, string(purpose)).
		Order("sequence desc").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *StatusList) create(tx *gorm.DB, issuer string, purpose StatusPurpose, sequence int) (*List, error) {
	now := s.now().Unix()
	record := statusListRecord{
		ID:            uuid.NewString(),
		Issuer:        issuer,
		StatusPurpose: string(purpose),
		Sequence:      sequence,
		EncodedList:   *newBitstring(s.config.ListSize),
		ListSize:      s.config.ListSize,
		ValidFrom:     now,
		CreatedAt:     now,
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("unable to create status list: %w", err)
	}
	log.Logger().
		WithField(core.LogFieldStatusListID, record.ID).
		WithField(core.LogFieldCredentialIssuer, issuer).
		Infof("Created new status list (purpose=%s, size=%d, sequence=%d)", purpose, record.ListSize, sequence)
	return s.toList(record), nil
}

// AllocateIndex allocates a random free index in the given list for the credential.
// It returns types.ErrCapacityExceeded if no free index was found within the configured number of attempts,
// in which case the caller must use a new list.
func (s *StatusList) AllocateIndex(ctx context.Context, listID string, credentialID string) (int, error) {
	var index int
	err := s.retry(func() error {
		var err error
		index, err = s.allocate(ctx, listID, credentialID)
		return err
	})
	return index, err
}

func (s *StatusList) allocate(ctx context.Context, listID string, credentialID string) (int, error) {
	index := -1
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		list, err := lockList(tx, listID)
		if err != nil {
			return err
		}
		if list.Allocated >= list.ListSize {
			return types.ErrCapacityExceeded
		}
		var existing int64
		if err = tx.Model(&statusEntryRecord{}).Where("credential_id = ?", credentialID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("status entry already exists for credential %s", credentialID)
		}
		var usedIndices []int
		if err = tx.Model(&statusEntryRecord{}).Where("status_list_id = ?", listID).Pluck("status_list_index", &usedIndices).Error; err != nil {
			return err
		}
		used := make(map[int]struct{}, len(usedIndices))
		for _, i := range usedIndices {
			used[i] = struct{}{}
		}
		for attempt := 0; attempt < s.config.MaxAttempts; attempt++ {
			candidate := s.randomIndex(list.ListSize)
			if _, taken := used[candidate]; !taken {
				index = candidate
				break
			}
		}
		if index < 0 {
			return types.ErrCapacityExceeded
		}
		entry := statusEntryRecord{
			ID:              uuid.NewString(),
			CredentialID:    credentialID,
			StatusListID:    listID,
			StatusListIndex: index,
			CreatedAt:       s.now().Unix(),
		}
		if err = tx.Create(&entry).Error; err != nil {
			return err
		}
		return updateList(tx, *list, map[string]interface{}{"allocated": list.Allocated + 1})
	})
	if err != nil {
		return -1, err
	}
	return index, nil
}

// Entry allocates an index for the credential in the issuer's current list and returns the credentialStatus to include in it.
// The list is rotated when it is 80% full or when allocation fails.
func (s *StatusList) Entry(ctx context.Context, issuer string, credentialID string, purpose StatusPurpose) (*StatusList2021Entry, error) {
	list, err := s.GetOrCreate(ctx, issuer, purpose)
	if err != nil {
		return nil, err
	}
	index, err := s.AllocateIndex(ctx, list.ID, credentialID)
	if errors.Is(err, types.ErrCapacityExceeded) {
		log.Logger().
			WithField(core.LogFieldStatusListID, list.ID).
			Warn("Status list has no free index, rotating")
		if list, err = s.current(ctx, issuer, purpose, list.ID); err != nil {
			return nil, err
		}
		index, err = s.AllocateIndex(ctx, list.ID, credentialID)
	}
	if err != nil {
		return nil, err
	}
	return &StatusList2021Entry{
		ID:                   fmt.Sprintf("%s#%d", list.URL, index),
		Type:                 StatusList2021EntryType,
		StatusPurpose:        string(purpose),
		StatusListIndex:      strconv.Itoa(index),
		StatusListCredential: list.URL,
	}, nil
}

// Revoke sets the bit of the credential's entry. Revoking an already revoked credential is a no-op.
// It returns types.ErrCredentialNotFound if the credential has no entry.
func (s *StatusList) Revoke(ctx context.Context, credentialID string) error {
	return s.retry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			entry, err := findEntry(tx, credentialID)
			if err != nil {
				return err
			}
			if entry.Revoked {
				return nil
			}
			list, err := lockList(tx, entry.StatusListID)
			if err != nil {
				return err
			}
			if err = list.EncodedList.setBit(entry.StatusListIndex, true); err != nil {
				return err
			}
			if err = updateList(tx, *list, map[string]interface{}{"encoded_list": list.EncodedList}); err != nil {
				return err
			}
			return tx.Model(&statusEntryRecord{}).Where("id = ?", entry.ID).Update("revoked", true).Error
		})
	})
}

// Verify returns true if the credential is not revoked.
// It returns types.ErrCredentialNotFound if the credential has no entry.
func (s *StatusList) Verify(ctx context.Context, credentialID string) (bool, error) {
	db := s.db.WithContext(ctx)
	entry, err := findEntry(db, credentialID)
	if err != nil {
		return false, err
	}
	var list statusListRecord
	if err = db.First(&list, "id = ?", entry.StatusListID).Error; err != nil {
		return false, err
	}
	revoked, err := list.EncodedList.bit(entry.StatusListIndex)
	if err != nil {
		return false, err
	}
	return !revoked, nil
}

// Document returns the unsigned StatusList2021Credential of the list.
func (s *StatusList) Document(ctx context.Context, listID string) (*StatusList2021Credential, error) {
	var record statusListRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", listID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("status list %s: %w", listID, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	encodedList, err := compress(record.EncodedList)
	if err != nil {
		return nil, err
	}
	listURL := s.URL(record.ID)
	validFrom := time.Unix(record.ValidFrom, 0).UTC().Format(time.RFC3339)
	document := StatusList2021Credential{
		Context:      []string{VCContextV1, StatusList2021Context},
		ID:           listURL,
		Type:         []string{VerifiableCredentialType, StatusList2021CredentialType},
		Issuer:       record.Issuer,
		IssuanceDate: validFrom,
		ValidFrom:    validFrom,
		CredentialSubject: StatusList2021CredentialSubject{
			ID:            listURL + "#list",
			Type:          StatusList2021CredentialSubjectType,
			StatusPurpose: record.StatusPurpose,
			EncodedList:   encodedList,
		},
	}
	if record.ValidUntil != nil {
		document.ExpirationDate = time.Unix(*record.ValidUntil, 0).UTC().Format(time.RFC3339)
	}
	return &document, nil
}

// SignedDocument returns the StatusList2021Credential of the list as jwt_vc, signed by the issuer.
func (s *StatusList) SignedDocument(ctx context.Context, listID string) (string, error) {
	document, err := s.Document(ctx, listID)
	if err != nil {
		return "", err
	}
	vcClaim, err := toMap(document)
	if err != nil {
		return "", err
	}
	now := s.now()
	claims := map[string]interface{}{
		"iss": document.Issuer,
		"sub": document.ID,
		"jti": document.ID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"vc":  vcClaim,
	}
	return s.signer.Sign(ctx, claims, nil)
}

func (s *StatusList) toList(record statusListRecord) *List {
	return &List{
		ID:            record.ID,
		Issuer:        record.Issuer,
		StatusPurpose: StatusPurpose(record.StatusPurpose),
		Size:          record.ListSize,
		Allocated:     record.Allocated,
		URL:           s.URL(record.ID),
	}
}

// retry runs fn again when it lost a race with a concurrent writer.
func (s *StatusList) retry(fn func() error) error {
	var err error
	for i := 0; i < maxTransactionRetries; i++ {
		err = fn()
		if !errors.Is(err, errVersionConflict) && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		log.Logger().WithError(err).Debug("Status list transaction conflict, retrying")
	}
	return err
}

func lockList(tx *gorm.DB, listID string) (*statusListRecord, error) {
	var list statusListRecord
	err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).First(&list, "id = ?", listID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("status list %s: %w", listID, types.ErrNotFound)
	}
	return &list, err
}

// updateList applies the changes if the list wasn't modified since it was read.
func updateList(tx *gorm.DB, list statusListRecord, changes map[string]interface{}) error {
	changes["version"] = list.Version + 1
	result := tx.Model(&statusListRecord{}).
		Where("id = ? AND version = ?", list.ID, list.Version).
		Updates(changes)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errVersionConflict
	}
	return nil
}

func findEntry(db *gorm.DB, credentialID string) (*statusEntryRecord, error) {
	var entry statusEntryRecord
	err := db.First(&entry, "credential_id = ?", credentialID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
