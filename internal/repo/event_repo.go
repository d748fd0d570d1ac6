// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// append-only local event store.
//
// Error semantics:
//   - AppendEvent propagates raw DB errors (including ErrDuplicate for a
//     sequence key collision, which indicates a broken generator).
//   - ListPendingEvents orders strictly by sequence_key ascending; row ids
//     are never used for ordering.
//   - AdvanceEventStatus moves replay status forward only: a row already
//     marked synced is never demoted.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
)

// AppendEvent writes one immutable event row. The caller supplies the
// freshly minted sequence key; CreatedAt is stamped here.
func AppendEvent(ctx context.Context, db *gorm.DB, ev *domain.LocalEvent) error {
	ev.CreatedAt = time.Now().UTC()
	if ev.ReplayStatus == "" {
		ev.ReplayStatus = domain.ReplayQueued
	}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// ListPendingEvents returns up to limit events still awaiting replay
// (queued or failed), ordered strictly by sequence key ascending so replay
// preserves append order even for same-millisecond bursts.
func ListPendingEvents(ctx context.Context, db *gorm.DB, limit int) ([]domain.LocalEvent, error) {
	var out []domain.LocalEvent
	q := db.WithContext(ctx).
		Where("replay_status IN ?", []domain.ReplayStatus{domain.ReplayQueued, domain.ReplayFailed}).
		Order("sequence_key asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// AdvanceEventStatus moves an event's replay status forward. Rows already
// synced are left untouched; consumers never move a status backwards.
func AdvanceEventStatus(ctx context.Context, db *gorm.DB, id uint, status domain.ReplayStatus) error {
	return db.WithContext(ctx).
		Model(&domain.LocalEvent{}).
		Where("id = ? AND replay_status <> ?", id, domain.ReplaySynced).
		Update("replay_status", status).Error
}
