// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Draft
// model: encrypted, field-mergeable in-progress user input keyed by
// (service_id, draft_key).
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only CRUD persistence and query composition.
// The merge-read-write cycle (decrypt, merge one field, re-encrypt) lives in
// the draft service, which also serializes concurrent writers per key.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
)

// GetDraft fetches the draft for (serviceID, draftKey), or ErrNotFound.
func GetDraft(ctx context.Context, db *gorm.DB, serviceID int, draftKey string) (*domain.Draft, error) {
	var d domain.Draft
	err := db.WithContext(ctx).
		Where("service_id = ? AND draft_key = ?", serviceID, draftKey).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UpsertDraft inserts or updates the draft row for (serviceID, draftKey)
// with the given encrypted payload, forcing sync_state back to queued.
// Every successful write re-queues the draft for synchronization.
func UpsertDraft(ctx context.Context, db *gorm.DB, serviceID int, draftKey string, payload []byte) (*domain.Draft, error) {
	now := time.Now().UTC()

	existing, err := GetDraft(ctx, db, serviceID, draftKey)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		d := &domain.Draft{
			ID:        uuid.NewString(),
			ServiceID: serviceID,
			DraftKey:  draftKey,
			Payload:   payload,
			SyncState: domain.StateQueued,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := db.WithContext(ctx).Create(d).Error; err != nil {
			return nil, err
		}
		return d, nil
	}

	existing.Payload = payload
	existing.SyncState = domain.StateQueued
	existing.UpdatedAt = now
	err = db.WithContext(ctx).
		Model(&domain.Draft{}).
		Where("id = ?", existing.ID).
		Updates(map[string]any{
			"payload":    payload,
			"sync_state": domain.StateQueued,
			"updated_at": now,
		}).Error
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// MarkDraftSyncState updates the sync state of a draft. A missing draft is
// not an error: the draft may have been cleared while its queue entry was
// still in flight.
func MarkDraftSyncState(ctx context.Context, db *gorm.DB, serviceID int, draftKey string, state domain.SyncState) error {
	return db.WithContext(ctx).
		Model(&domain.Draft{}).
		Where("service_id = ? AND draft_key = ?", serviceID, draftKey).
		Update("sync_state", state).Error
}

// DeleteDraft removes the draft row. Returns ErrNotFound when no row matched.
func DeleteDraft(ctx context.Context, db *gorm.DB, serviceID int, draftKey string) error {
	res := db.WithContext(ctx).
		Where("service_id = ? AND draft_key = ?", serviceID, draftKey).
		Delete(&domain.Draft{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
