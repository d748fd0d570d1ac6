// Package services – SyncService
//
// This file implements the durable sync queue and the driver that drains
// it. Entries carry a static per-service priority, retry/backoff
// bookkeeping, and a terminal failure ceiling: below MaxRetry a failed
// attempt reverts the entry to queued with an exponentially backed-off next
// attempt (capped), at the ceiling the entry is terminally failed and the
// error message preserved for the caller.
//
// A drain runs only while the connectivity signal reports online, holds a
// single driver mutex (one drain at a time), replays the event store first
// so freshly generated entries are included, and processes eligible entries
// oldest-highest-priority first. Remote failures are contained per entry
// and never propagate out of the loop. After each pass the aggregate
// connectivity state is recomputed from the queue counts and reported
// through the signal's hooks.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/Jos-zenith/uzhavan-sub000/internal/connectivity"
	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
	"github.com/Jos-zenith/uzhavan-sub000/internal/observability"
	"github.com/Jos-zenith/uzhavan-sub000/internal/repo"
	"github.com/Jos-zenith/uzhavan-sub000/internal/utils"
)

// RemoteExecutor is the opaque remote execution function supplied by the
// transport layer. The core only reacts to its resolution or rejection;
// timeout policy is the executor's own concern.
type RemoteExecutor func(ctx context.Context, operationType string, payload []byte) error

// SyncPolicy bundles the retry/backoff and priority tunables of the queue.
type SyncPolicy struct {
	MaxRetry          int
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	DefaultPriority   int
	PriorityOverrides map[int]int
	ReplayBatchLimit  int
}

// StatusSnapshot is the read-only view returned by Snapshot.
type StatusSnapshot struct {
	QueueCounts          map[domain.QueueStatus]int64 `json:"queue_counts"`
	LastSuccessfulSyncAt *time.Time                   `json:"last_successful_sync_at,omitempty"`
	Actions              []domain.SyncQueueEntry      `json:"actions"`
}

// SyncService owns the queue and the drain loop.
type SyncService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Signal is the injected connectivity signal; drains are gated on it.
	Signal connectivity.Signal
	// Events is replayed at the start of every drain.
	Events *EventService
	// Execute is the injected remote execution function.
	Execute RemoteExecutor
	// Policy holds retry, backoff, and priority tunables.
	Policy SyncPolicy

	// limiter bounds how often mutations may auto-trigger a drain.
	limiter *rate.Limiter

	// drainCh serializes drains; buffered with one token so the lock is
	// context-aware (a cancelled waiter gives up instead of blocking).
	drainCh chan struct{}

	// now is a test seam for the clock.
	now func() time.Time
}

// NewSyncService constructs a SyncService. drainRPS/drainBurst bound the
// rate at which MaybeDrain actually starts a pass.
func NewSyncService(db *gorm.DB, signal connectivity.Signal, events *EventService, execute RemoteExecutor, policy SyncPolicy, drainRPS float64, drainBurst int) *SyncService {
	s := &SyncService{
		DB:      db,
		Signal:  signal,
		Events:  events,
		Execute: execute,
		Policy:  policy,
		limiter: rate.NewLimiter(rate.Limit(drainRPS), drainBurst),
		drainCh: make(chan struct{}, 1),
		now:     time.Now,
	}
	s.drainCh <- struct{}{}
	return s
}

// priorityFor resolves the static per-service queue weight.
func (s *SyncService) priorityFor(serviceID int) int {
	if w, ok := s.Policy.PriorityOverrides[serviceID]; ok {
		return w
	}
	return s.Policy.DefaultPriority
}

// Enqueue adds a unit of remote work. Entries always start queued with a
// zero retry count and an immediate next attempt.
func (s *SyncService) Enqueue(ctx context.Context, serviceID int, draftKey *string, operationType string, payload []byte) (*domain.SyncQueueEntry, error) {
	e := &domain.SyncQueueEntry{
		ServiceID:     serviceID,
		DraftKey:      draftKey,
		OperationType: operationType,
		Payload:       payload,
		Priority:      s.priorityFor(serviceID),
	}
	if err := repo.EnqueueEntry(ctx, s.DB, e); err != nil {
		return nil, fmt.Errorf("enqueueing sync entry: %w", err)
	}
	return e, nil
}

// MaybeDrain triggers a background-priority drain if the device is online
// and the trigger rate limit allows it. Errors are logged, not returned;
// callers that need the outcome use Drain directly.
func (s *SyncService) MaybeDrain(ctx context.Context) {
	if s.Signal == nil || !s.Signal.IsOnline() {
		return
	}
	if !s.limiter.Allow() {
		return
	}
	if _, err := s.Drain(ctx, false); err != nil {
		log.Warn().Err(err).Msg("auto-triggered drain failed")
	}
}

// Drain replays the event store and processes every eligible queue entry.
// It is idempotent and safe to call repeatedly; offline it is a no-op
// reporting StateOffline. forceAll bypasses the next-attempt gating but
// neither resets retry counts nor resurrects terminally failed entries.
func (s *SyncService) Drain(ctx context.Context, forceAll bool) (connectivity.State, error) {
	if s.Signal == nil || !s.Signal.IsOnline() {
		return connectivity.StateOffline, nil
	}
	if s.Execute == nil {
		return connectivity.StateOffline, ErrNoRemoteExecutor
	}

	select {
	case <-s.drainCh:
		defer func() { s.drainCh <- struct{}{} }()
	case <-ctx.Done():
		return connectivity.StateOffline, ctx.Err()
	}

	ctx, span := observability.Tracer().Start(ctx, "sync.drain",
		trace.WithAttributes(attribute.Bool("force_all", forceAll)))
	defer span.End()

	s.Signal.MarkSyncing()

	if res, err := s.Events.ReplayPending(ctx, s.Policy.ReplayBatchLimit); err != nil {
		log.Error().Err(err).Msg("event replay failed")
	} else if res.Processed+res.Failed > 0 {
		log.Info().Int("processed", res.Processed).Int("failed", res.Failed).Msg("event store replayed")
	}

	entries, err := repo.ListDueEntries(ctx, s.DB, s.now().UTC(), forceAll)
	if err != nil {
		return connectivity.StateSyncFailed, fmt.Errorf("selecting due entries: %w", err)
	}

	for i := range entries {
		s.processEntry(ctx, &entries[i])
	}

	state, err := s.recomputeState(ctx)
	if err != nil {
		return state, err
	}
	span.SetAttributes(attribute.String("aggregate_state", string(state)))
	return state, nil
}

// processEntry runs one queue entry to completion: syncing, then synced or
// a recorded failure. A dispatched remote call is never abandoned midway;
// the entry's outcome is decided before the driver moves on.
func (s *SyncService) processEntry(ctx context.Context, e *domain.SyncQueueEntry) {
	// The terminal ceiling survives forceAll.
	if e.Status == domain.StatusFailed && e.RetryCount >= s.Policy.MaxRetry {
		return
	}

	ctx, span := observability.Tracer().Start(ctx, "sync.entry",
		trace.WithAttributes(
			attribute.Int("entry_id", int(e.ID)),
			attribute.String("operation", e.OperationType),
		))
	defer span.End()

	if err := repo.MarkEntrySyncing(ctx, s.DB, e.ID); err != nil {
		log.Error().Err(err).Uint("entry_id", e.ID).Msg("marking entry syncing")
		return
	}

	start := s.now()
	execErr := s.Execute(ctx, e.OperationType, e.Payload)
	observability.ObserveRemote(e.OperationType, start, execErr)

	if execErr == nil {
		s.markSuccess(ctx, e)
		return
	}
	s.markFailure(ctx, e, execErr)
}

// markSuccess finalizes a synced entry and propagates the state to the
// draft it carries, if any.
func (s *SyncService) markSuccess(ctx context.Context, e *domain.SyncQueueEntry) {
	now := s.now().UTC()
	if err := repo.MarkEntrySynced(ctx, s.DB, e.ID, now); err != nil {
		log.Error().Err(err).Uint("entry_id", e.ID).Msg("marking entry synced")
		return
	}
	if e.DraftKey != nil {
		if err := repo.MarkDraftSyncState(ctx, s.DB, e.ServiceID, *e.DraftKey, domain.StateSynced); err != nil {
			log.Warn().Err(err).Int("service_id", e.ServiceID).Str("draft_key", *e.DraftKey).Msg("marking draft synced")
		}
	}
	log.Debug().Uint("entry_id", e.ID).Str("operation", e.OperationType).Msg("entry synced")
}

// markFailure records a failed attempt: exponential backoff below the retry
// ceiling, terminal failure with the preserved error message at it.
func (s *SyncService) markFailure(ctx context.Context, e *domain.SyncQueueEntry, execErr error) {
	retry := e.RetryCount + 1
	now := s.now().UTC()

	status := domain.StatusQueued
	var next time.Time
	if retry >= s.Policy.MaxRetry {
		status = domain.StatusFailed
	} else {
		next = now.Add(s.backoffDelay(retry))
	}

	if err := repo.RecordEntryFailure(ctx, s.DB, e.ID, retry, status, next, execErr.Error()); err != nil {
		log.Error().Err(err).Uint("entry_id", e.ID).Msg("recording entry failure")
		return
	}

	evt := log.Warn().
		Uint("entry_id", e.ID).
		Str("operation", e.OperationType).
		Int("retry_count", retry).
		Err(execErr)
	if status == domain.StatusFailed {
		evt.Msg("entry terminally failed")
	} else {
		evt.Time("next_attempt_at", next).Msg("entry rescheduled")
	}
}

// backoffDelay computes min(base * 2^retry, cap).
func (s *SyncService) backoffDelay(retry int) time.Duration {
	d := s.Policy.BackoffBase
	for i := 0; i < retry; i++ {
		d *= 2
		if d >= s.Policy.BackoffCap {
			return s.Policy.BackoffCap
		}
	}
	return d
}

// recomputeState derives the coarse aggregate status from the queue counts
// and reports it through the connectivity hooks: fully synced when nothing
// is pending, sync failed while terminal failures remain, syncing otherwise.
func (s *SyncService) recomputeState(ctx context.Context) (connectivity.State, error) {
	counts, err := repo.QueueCounts(ctx, s.DB)
	if err != nil {
		return connectivity.StateSyncFailed, fmt.Errorf("counting queue: %w", err)
	}

	pending := counts[domain.StatusQueued] + counts[domain.StatusSyncing]
	var state connectivity.State
	switch {
	case counts[domain.StatusFailed] > 0:
		state = connectivity.StateSyncFailed
		s.Signal.MarkSyncFailed()
	case pending == 0:
		state = connectivity.StateFullySynced
		s.Signal.MarkSynced()
	default:
		state = connectivity.StateSyncing
	}

	observability.ObserveDrain(string(state), pending)
	return state, nil
}

// Snapshot page-size bounds.
const (
	defaultSnapshotLimit = 20
	maxSnapshotLimit     = 200
)

// Snapshot returns the read-only sync status view: queue counts, the last
// successful sync time, and up to limit recent queue actions.
func (s *SyncService) Snapshot(ctx context.Context, limit int) (StatusSnapshot, error) {
	limit = utils.ClampLimit(limit, defaultSnapshotLimit, maxSnapshotLimit)
	counts, err := repo.QueueCounts(ctx, s.DB)
	if err != nil {
		return StatusSnapshot{}, err
	}
	last, err := repo.LastSyncedAt(ctx, s.DB)
	if err != nil {
		return StatusSnapshot{}, err
	}
	actions, err := repo.ListRecentEntries(ctx, s.DB, limit)
	if err != nil {
		return StatusSnapshot{}, err
	}
	return StatusSnapshot{
		QueueCounts:          counts,
		LastSuccessfulSyncAt: last,
		Actions:              actions,
	}, nil
}
