// Package securestore is the at-rest encrypted key-value store scoped to one
// app installation.
package securestore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pmaschool/authcore/internal/shared/logger"
)

type Store struct {
	db     *gorm.DB
	cipher *Cipher
	logger logger.Interface
}

// New returns a store sealing with c. The secure_items table must already
// exist; the migration package creates it.
func New(db *gorm.DB, c *Cipher, logger logger.Interface) *Store {
	return &Store{db: db, cipher: c, logger: logger}
}

// Get returns the plaintext for key. found is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (value string, found bool, err error) {
	var item SecureItemModel
	err = s.db.WithContext(ctx).Where("item_key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load secure item: %w", err)
	}

	plaintext, err := s.cipher.Open(key, item.Nonce, item.Ciphertext)
	if err != nil {
		s.logger.Warnw("secure item failed authentication", "key", key, "error", err)
		return "", false, err
	}
	return string(plaintext), true, nil
}

// Set seals value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	nonce, ciphertext, err := s.cipher.Seal(key, []byte(value))
	if err != nil {
		return err
	}

	item := SecureItemModel{Key: key, Nonce: nonce, Ciphertext: ciphertext}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"nonce", "ciphertext", "updated_at"}),
	}).Create(&item).Error
	if err != nil {
		return fmt.Errorf("save secure item: %w", err)
	}
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("item_key IN ?", keys).Delete(&SecureItemModel{}).Error; err != nil {
		return fmt.Errorf("delete secure items: %w", err)
	}
	return nil
}
