// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for deduplicated
// subsidy applications keyed by their policy hash.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
)

// GetSubsidyByHash fetches the application recorded under policyHash, or
// ErrNotFound.
func GetSubsidyByHash(ctx context.Context, db *gorm.DB, policyHash string) (*domain.SubsidyApplication, error) {
	var a domain.SubsidyApplication
	err := db.WithContext(ctx).
		Where("policy_hash = ?", policyHash).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateSubsidy inserts a new application row. A concurrent write with the
// same policy hash surfaces as ErrDuplicate; the original row is never
// overwritten.
func CreateSubsidy(ctx context.Context, db *gorm.DB, policyHash string, payload []byte) (*domain.SubsidyApplication, error) {
	now := time.Now().UTC()
	a := &domain.SubsidyApplication{
		ID:         uuid.NewString(),
		PolicyHash: policyHash,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return a, nil
}
