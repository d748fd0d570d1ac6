// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// DraftAnalytics model: derived save/resume/abandonment counters that share
// a draft's natural key and lifecycle.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
)

// GetAnalytics fetches the analytics row for (serviceID, draftKey), or
// ErrNotFound.
func GetAnalytics(ctx context.Context, db *gorm.DB, serviceID int, draftKey string) (*domain.DraftAnalytics, error) {
	var a domain.DraftAnalytics
	err := db.WithContext(ctx).
		Where("service_id = ? AND draft_key = ?", serviceID, draftKey).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// TouchSave records one draft save: it creates the analytics row on the
// first save, and afterwards increments the save counter, stamps
// LastSavedAt, and clears any abandonment flag. Saving a draft always makes
// it non-abandoned.
func TouchSave(ctx context.Context, db *gorm.DB, serviceID int, draftKey string, now time.Time) (*domain.DraftAnalytics, error) {
	a, err := GetAnalytics(ctx, db, serviceID, draftKey)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		a = &domain.DraftAnalytics{
			ID:           uuid.NewString(),
			ServiceID:    serviceID,
			DraftKey:     draftKey,
			FirstSavedAt: now,
			LastSavedAt:  now,
			SaveCount:    1,
		}
		if err := db.WithContext(ctx).Create(a).Error; err != nil {
			return nil, err
		}
		return a, nil
	}

	a.SaveCount++
	a.LastSavedAt = now
	a.IsAbandoned = false
	a.AbandonedAt = nil
	err = db.WithContext(ctx).
		Model(&domain.DraftAnalytics{}).
		Where("id = ?", a.ID).
		Updates(map[string]any{
			"save_count":    a.SaveCount,
			"last_saved_at": now,
			"is_abandoned":  false,
			"abandoned_at":  nil,
		}).Error
	if err != nil {
		return nil, err
	}
	return a, nil
}

// MarkAbandoned sets the abandonment flag. Called when a status probe
// observes that the idle threshold has been crossed; abandonment is always
// recomputed lazily at query time, never by a background timer.
func MarkAbandoned(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.DraftAnalytics{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_abandoned": true,
			"abandoned_at": at,
		}).Error
}

// MarkResumed clears the abandonment flag, increments the resume counter,
// and stamps LastResumeAt. Called when an abandoned draft is read back.
func MarkResumed(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.DraftAnalytics{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_abandoned": false,
			"abandoned_at": nil,
			"resume_count": gorm.Expr("resume_count + 1"),
			"last_resume_at": at,
		}).Error
}

// DeleteAnalytics removes the analytics row for (serviceID, draftKey).
// Missing rows are not an error; the row is destroyed with its draft.
func DeleteAnalytics(ctx context.Context, db *gorm.DB, serviceID int, draftKey string) error {
	return db.WithContext(ctx).
		Where("service_id = ? AND draft_key = ?", serviceID, draftKey).
		Delete(&domain.DraftAnalytics{}).Error
}
