// Package secrets – persisted device secret.
//
// This file manages the single secret_store row from which the cipher key is
// derived. The secret is generated from crypto/rand on first use and returned
// unchanged forever after. If secret storage is unavailable the load fails
// loudly; the core never falls back to a fixed key.
package secrets

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
)

// secretRowID is the fixed primary key of the single secret_store row.
const secretRowID = 1

// LoadOrCreateSecret returns the persisted device secret, generating and
// persisting a fresh cryptographically random one on first use. Concurrent
// first calls are resolved by the unique primary key: the loser of the race
// re-reads the winner's row.
func LoadOrCreateSecret(ctx context.Context, db *gorm.DB) ([]byte, error) {
	var row domain.Secret
	err := db.WithContext(ctx).First(&row, "id = ?", secretRowID).Error
	if err == nil {
		if len(row.Value) != secretLen {
			return nil, fmt.Errorf("persisted secret has invalid length %d", len(row.Value))
		}
		return row.Value, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("reading secret store: %w", err)
	}

	value := make([]byte, secretLen)
	if _, err := rand.Read(value); err != nil {
		return nil, fmt.Errorf("generating secret: %w", err)
	}

	row = domain.Secret{ID: secretRowID, Value: value, CreatedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		// Lost a first-use race: the row now exists, use it.
		var existing domain.Secret
		if rerr := db.WithContext(ctx).First(&existing, "id = ?", secretRowID).Error; rerr == nil {
			return existing.Value, nil
		}
		return nil, fmt.Errorf("persisting secret: %w", err)
	}
	return row.Value, nil
}
