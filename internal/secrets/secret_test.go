package secrets

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
)

func newSecretDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Secret{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestLoadOrCreateSecret_GeneratesOnceAndPersists(t *testing.T) {
	db := newSecretDB(t)
	ctx := context.Background()

	first, err := LoadOrCreateSecret(ctx, db)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if len(first) != 32 {
		t.Fatalf("expected 32-byte secret, got %d", len(first))
	}

	second, err := LoadOrCreateSecret(ctx, db)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("secret changed across loads")
	}

	var count int64
	if err := db.Model(&domain.Secret{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one secret row, got %d", count)
	}
}

func TestLoadOrCreateSecret_RejectsCorruptStoredSecret(t *testing.T) {
	db := newSecretDB(t)
	ctx := context.Background()

	row := domain.Secret{ID: 1, Value: []byte("too short"), CreatedAt: time.Now().UTC()}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := LoadOrCreateSecret(ctx, db); err == nil {
		t.Fatalf("expected error for corrupt stored secret")
	}
}
