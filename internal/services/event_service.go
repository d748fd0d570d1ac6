// Package services – EventService
//
// This file implements the append-only local event store and its replay.
// Every mutation intent is appended with a freshly minted monotonic sequence
// key; replay walks pending events strictly in sequence-key order, routes
// land-parcel operations through the ownership ledger, and materializes sync
// queue entries for everything else. One poisoned event never blocks the
// batch: failures are contained per event and replay is idempotent.
package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
	"github.com/Jos-zenith/uzhavan-sub000/internal/observability"
	"github.com/Jos-zenith/uzhavan-sub000/internal/repo"
	"github.com/Jos-zenith/uzhavan-sub000/internal/seq"
)

// Enqueuer materializes sync queue entries from replayed events.
// Implemented by SyncService.
type Enqueuer interface {
	Enqueue(ctx context.Context, serviceID int, draftKey *string, operationType string, payload []byte) (*domain.SyncQueueEntry, error)
}

// Ledger applies land-parcel events to the ownership state.
// Implemented by ParcelService.
type Ledger interface {
	// Apply returns true when the event won and the state was recorded,
	// false when it was rejected and a conflict row written.
	Apply(ctx context.Context, ev *domain.LocalEvent) (bool, error)
}

// ReplayResult summarizes one replay batch.
type ReplayResult struct {
	Processed int // events materialized into queue entries or applied to the ledger
	Failed    int // events rejected (conflicts) or errored
}

// EventService owns the append-only event log.
type EventService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Seq mints monotonic sequence keys for appended events.
	Seq *seq.Generator
	// Queue materializes replayed events into sync queue entries.
	Queue Enqueuer
	// Parcels applies the land-parcel operation family during replay.
	Parcels Ledger
}

// NewEventService constructs an EventService with a fresh sequence generator.
// Queue and Parcels are wired afterwards by the composition root, since the
// sync and parcel services in turn depend on the event service.
func NewEventService(db *gorm.DB) *EventService {
	return &EventService{DB: db, Seq: seq.NewGenerator()}
}

// Append writes one immutable event with a fresh monotonic sequence key and
// replay status queued.
func (s *EventService) Append(ctx context.Context, serviceID int, entityKey, operationType string, payload []byte) (*domain.LocalEvent, error) {
	ev := &domain.LocalEvent{
		ServiceID:     serviceID,
		EntityKey:     entityKey,
		OperationType: operationType,
		Payload:       payload,
		SequenceKey:   s.Seq.Next(),
		ReplayStatus:  domain.ReplayQueued,
	}
	if err := repo.AppendEvent(ctx, s.DB, ev); err != nil {
		return nil, fmt.Errorf("appending event: %w", err)
	}
	return ev, nil
}

// MarkMaterialized advances an event to synced once its queue entry has been
// created directly by the mutating service, so replay does not materialize
// it a second time.
func (s *EventService) MarkMaterialized(ctx context.Context, id uint) error {
	return repo.AdvanceEventStatus(ctx, s.DB, id, domain.ReplaySynced)
}

// ReplayPending drains up to limit pending events (queued or failed) in
// strict sequence-key order.
//
// Per event:
//   - land-parcel family: route through the ownership ledger first; a won
//     transition also materializes a queue entry carrying the mutation to
//     the backend, a rejected one records its conflict and marks the event
//     failed.
//   - everything else: materialize a sync queue entry directly.
//
// Failures never halt the batch; the next event is processed regardless.
// Re-running after a partial failure reprocesses only events still queued
// or failed, so replay is idempotent.
func (s *EventService) ReplayPending(ctx context.Context, limit int) (ReplayResult, error) {
	var res ReplayResult

	events, err := repo.ListPendingEvents(ctx, s.DB, limit)
	if err != nil {
		return res, fmt.Errorf("listing pending events: %w", err)
	}

	for i := range events {
		ev := &events[i]
		if err := s.replayOne(ctx, ev); err != nil {
			res.Failed++
			observability.ObserveReplay("failed")
			log.Warn().
				Err(err).
				Uint("event_id", ev.ID).
				Str("operation", ev.OperationType).
				Str("entity_key", ev.EntityKey).
				Msg("event replay failed")
			if err := repo.AdvanceEventStatus(ctx, s.DB, ev.ID, domain.ReplayFailed); err != nil {
				log.Error().Err(err).Uint("event_id", ev.ID).Msg("marking event failed")
			}
			continue
		}
		res.Processed++
	}
	return res, nil
}

// replayOne processes a single event and advances its replay status.
// An ownership rejection is reported as an error so the caller counts and
// marks it failed; the conflict row itself has already been recorded.
func (s *EventService) replayOne(ctx context.Context, ev *domain.LocalEvent) error {
	if domain.IsParcelOp(ev.OperationType) {
		applied, err := s.Parcels.Apply(ctx, ev)
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("parcel %s: ownership conflict", ev.EntityKey)
		}
	}

	draftKey := draftKeyFor(ev)
	if _, err := s.Queue.Enqueue(ctx, ev.ServiceID, draftKey, ev.OperationType, ev.Payload); err != nil {
		return fmt.Errorf("materializing queue entry: %w", err)
	}

	if err := repo.AdvanceEventStatus(ctx, s.DB, ev.ID, domain.ReplaySynced); err != nil {
		return fmt.Errorf("advancing replay status: %w", err)
	}
	observability.ObserveReplay("materialized")
	return nil
}

// draftKeyFor ties draft-family events to their draft so queue success can
// flip the draft's sync state.
func draftKeyFor(ev *domain.LocalEvent) *string {
	if ev.OperationType == domain.OpDraftUpsert {
		k := ev.EntityKey
		return &k
	}
	return nil
}
