// Package domain defines the core persistence models for the application.
// This file holds the append-only local event store and the durable sync
// queue that is regenerated from it during replay.
package domain

import "time"

// ReplayStatus describes where an event sits in the replay pipeline.
type ReplayStatus string

// Event replay statuses. Events are never deleted; consumers only advance
// the status forward (queued -> synced, or queued -> failed -> synced).
const (
	ReplayQueued ReplayStatus = "queued"
	ReplaySynced ReplayStatus = "synced"
	ReplayFailed ReplayStatus = "failed"
)

// Operation types recorded in the event store. The parcel family routes
// through the ownership ledger during replay; everything else materializes
// a sync queue entry directly.
const (
	OpDraftUpsert      = "draft_upsert"
	OpDraftResumed     = "draft_resumed_after_abandonment"
	OpSubsidySubmit    = "subsidy_submit"
	OpSubsidyDuplicate = "subsidy_duplicate"
	OpParcelClaim      = "parcel_claim"
	OpParcelUpdate     = "parcel_update"
	OpParcelRelease    = "parcel_release"
)

// IsParcelOp reports whether op belongs to the land-parcel operation family.
func IsParcelOp(op string) bool {
	return op == OpParcelClaim || op == OpParcelUpdate || op == OpParcelRelease
}

// LocalEvent is one immutable mutation intent in the append-only log.
// Ordering is defined solely by SequenceKey, a monotonic key minted at
// append time, never by the storage-assigned row id (row ids can be
// reordered by migrations; sequence keys cannot).
//
// Fields:
//   - ID: auto-incrementing row id (storage identity only).
//   - ServiceID / EntityKey: which service and which entity the intent targets.
//   - OperationType: one of the Op* constants above.
//   - Payload: envelope blob for sensitive payloads, plain JSON otherwise.
//   - SequenceKey: monotonic ordering key; unique, lexically ordered.
//   - ReplayStatus: queued | synced | failed; advances forward only.
type LocalEvent struct {
	ID            uint         `json:"id"             gorm:"primaryKey;autoIncrement"`
	ServiceID     int          `json:"service_id"     gorm:"not null;index"`
	EntityKey     string       `json:"entity_key"     gorm:"type:varchar(128);not null;index"`
	OperationType string       `json:"operation_type" gorm:"type:varchar(64);not null"`
	Payload       []byte       `json:"-"              gorm:"type:blob"`
	SequenceKey   string       `json:"sequence_key"   gorm:"type:varchar(40);not null;uniqueIndex:ux_event_sequence_key"`
	ReplayStatus  ReplayStatus `json:"replay_status"  gorm:"type:varchar(16);not null;default:'queued';index;check:replay_status IN ('queued','synced','failed')"`
	CreatedAt     time.Time    `json:"created_at"`
}

// TableName returns the database table name for LocalEvent.
func (LocalEvent) TableName() string { return "local_event_store" }

// QueueStatus describes the lifecycle of a sync queue entry.
type QueueStatus string

// Queue entry statuses. StatusFailed is terminal and only reached once the
// retry count hits the configured ceiling; below the ceiling a failed
// attempt reverts the entry to StatusQueued with a backed-off NextAttemptAt.
const (
	StatusQueued  QueueStatus = "queued"
	StatusSyncing QueueStatus = "syncing"
	StatusSynced  QueueStatus = "synced"
	StatusFailed  QueueStatus = "failed"
)

// SyncQueueEntry is a durable, retryable unit of remote work. Entries are
// drained in priority order (highest weight first, FIFO within a weight)
// and carry their own retry/backoff bookkeeping.
//
// Fields:
//   - DraftKey: set when the entry carries a draft payload, so success can
//     flip the draft's sync state; nil for non-draft mutations.
//   - Priority: static per-service weight resolved at enqueue time.
//   - RetryCount / NextAttemptAt: exponential backoff bookkeeping.
//   - ErrorMessage: last remote failure, preserved on terminal failure.
type SyncQueueEntry struct {
	ID            uint        `json:"id"              gorm:"primaryKey;autoIncrement"`
	ServiceID     int         `json:"service_id"      gorm:"not null;index"`
	DraftKey      *string     `json:"draft_key,omitempty" gorm:"type:varchar(128)"`
	OperationType string      `json:"operation_type"  gorm:"type:varchar(64);not null"`
	Payload       []byte      `json:"-"               gorm:"type:blob"`
	Priority      int         `json:"priority"        gorm:"not null;default:50;index:idx_queue_drain,priority:2"`
	RetryCount    int         `json:"retry_count"     gorm:"not null;default:0"`
	NextAttemptAt time.Time   `json:"next_attempt_at" gorm:"not null;index"`
	QueuedAt      time.Time   `json:"queued_at"       gorm:"not null"`
	ProcessedAt   *time.Time  `json:"processed_at,omitempty"`
	Status        QueueStatus `json:"status"          gorm:"type:varchar(16);not null;default:'queued';index:idx_queue_drain,priority:1;check:status IN ('queued','syncing','synced','failed')"`
	ErrorMessage  *string     `json:"error_message,omitempty" gorm:"type:text"`
}

// TableName returns the database table name for SyncQueueEntry.
func (SyncQueueEntry) TableName() string { return "sync_queue" }
