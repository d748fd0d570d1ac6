// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries over
// the sync queue used by the status snapshot and the aggregate connectivity
// state recomputed after each drain. Each function is context-aware and safe
// to call from services.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
)

// QueueCounts returns the number of queue entries per status. Statuses with
// no entries are present in the map with a zero count.
func QueueCounts(ctx context.Context, db *gorm.DB) (map[domain.QueueStatus]int64, error) {
	counts := map[domain.QueueStatus]int64{
		domain.StatusQueued:  0,
		domain.StatusSyncing: 0,
		domain.StatusSynced:  0,
		domain.StatusFailed:  0,
	}

	var rows []struct {
		Status domain.QueueStatus
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.SyncQueueEntry{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// LastSyncedAt returns the most recent ProcessedAt among synced entries, or
// nil when nothing has synced yet.
func LastSyncedAt(ctx context.Context, db *gorm.DB) (*time.Time, error) {
	var count int64
	q := db.WithContext(ctx).
		Model(&domain.SyncQueueEntry{}).
		Where("status = ?", domain.StatusSynced)
	if err := q.Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	// Get latest processed_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		ProcessedAt time.Time
	}
	if err := q.Select("processed_at").Order("processed_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return nil, err
	}
	return &row.ProcessedAt, nil
}
