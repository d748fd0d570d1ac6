// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the durable
// sync queue drained by the sync service.
//
// Selection semantics:
//   - ListDueEntries picks entries with status in (queued, failed) whose
//     next_attempt_at has passed (or all of them when forceAll is set),
//     ordered by priority descending then queued_at ascending: oldest,
//     highest-priority first, FIFO within a weight.
//   - Terminal failures keep their error message and are never rescheduled;
//     forceAll does not resurrect them below because RecordEntryFailure only
//     marks an entry failed once the retry ceiling is hit.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
)

// EnqueueEntry inserts a new queue entry. Status, retry count, and
// timestamps are initialized here so every entry starts from the same state.
func EnqueueEntry(ctx context.Context, db *gorm.DB, e *domain.SyncQueueEntry) error {
	now := time.Now().UTC()
	e.Status = domain.StatusQueued
	e.RetryCount = 0
	e.QueuedAt = now
	e.NextAttemptAt = now
	e.ProcessedAt = nil
	return db.WithContext(ctx).Create(e).Error
}

// ListDueEntries returns the entries eligible for a drain pass at now:
// status queued or failed, with the next_attempt_at gate bypassed when
// forceAll is set. Terminally failed entries (retry count at the ceiling)
// are included in the selection; the driver skips them so that forceAll can
// never resurrect an entry past the retry ceiling.
func ListDueEntries(ctx context.Context, db *gorm.DB, now time.Time, forceAll bool) ([]domain.SyncQueueEntry, error) {
	q := db.WithContext(ctx).
		Where("status IN ?", []domain.QueueStatus{domain.StatusQueued, domain.StatusFailed})
	if !forceAll {
		q = q.Where("next_attempt_at <= ?", now)
	}

	var out []domain.SyncQueueEntry
	err := q.Order("priority desc").Order("queued_at asc").Find(&out).Error
	return out, err
}

// MarkEntrySyncing transitions an entry to syncing before the remote call.
func MarkEntrySyncing(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).
		Model(&domain.SyncQueueEntry{}).
		Where("id = ?", id).
		Update("status", domain.StatusSyncing).Error
}

// MarkEntrySynced transitions an entry to its terminal success state and
// stamps ProcessedAt.
func MarkEntrySynced(ctx context.Context, db *gorm.DB, id uint, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.SyncQueueEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       domain.StatusSynced,
			"processed_at": at,
		}).Error
}

// RecordEntryFailure records one failed remote attempt. Below the retry
// ceiling the entry reverts to queued with the backed-off nextAttemptAt;
// at the ceiling it becomes terminally failed and keeps the error message.
func RecordEntryFailure(ctx context.Context, db *gorm.DB, id uint, retryCount int, status domain.QueueStatus, nextAttemptAt time.Time, errMsg string) error {
	updates := map[string]any{
		"status":        status,
		"retry_count":   retryCount,
		"error_message": errMsg,
	}
	if status == domain.StatusQueued {
		updates["next_attempt_at"] = nextAttemptAt
	}
	return db.WithContext(ctx).
		Model(&domain.SyncQueueEntry{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ListRecentEntries returns up to limit entries, most recently queued first.
// Used by the read-only status snapshot.
func ListRecentEntries(ctx context.Context, db *gorm.DB, limit int) ([]domain.SyncQueueEntry, error) {
	var out []domain.SyncQueueEntry
	q := db.WithContext(ctx).Order("queued_at desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
