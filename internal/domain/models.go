// Package domain defines the persistence models for the offline-first core:
// encrypted drafts, draft analytics, the local event store, the sync queue,
// subsidy applications, and the land parcel ownership ledger. These types are
// mapped with GORM and are shared across the repository and service layers.
package domain

import "time"

// SyncState describes how far a draft has progressed towards the backend.
type SyncState string

// Draft sync states. A draft always re-enters StateQueued on every field
// write; it only reaches StateSynced when the queue entry carrying its
// latest payload has been executed remotely.
const (
	StateQueued  SyncState = "queued"
	StateSyncing SyncState = "syncing"
	StateSynced  SyncState = "synced"
)

// Draft represents in-progress, not-yet-submitted user input for one service
// form. The field map is stored encrypted as a single envelope blob; only the
// identity and status columns are cleartext so they remain queryable.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - ServiceID / DraftKey: composite natural key, unique per draft.
//   - Payload: encrypted envelope holding the merged field map.
//   - SyncState: queued | syncing | synced.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Draft struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ServiceID int       `json:"service_id" gorm:"not null;uniqueIndex:ux_draft_service_key,priority:1"`
	DraftKey  string    `json:"draft_key"  gorm:"type:varchar(128);not null;uniqueIndex:ux_draft_service_key,priority:2"`
	Payload   []byte    `json:"-"          gorm:"type:blob;not null"`
	SyncState SyncState `json:"sync_state" gorm:"type:varchar(16);not null;default:'queued';check:sync_state IN ('queued','syncing','synced')"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Draft.
func (Draft) TableName() string { return "drafts" }

// DraftAnalytics tracks derived counters for a draft: how often it was
// saved, whether it went idle past the abandonment threshold, and how often
// the user came back to it afterwards. It shares the draft's natural key and
// is deleted together with the draft.
type DraftAnalytics struct {
	ID           string     `json:"id"             gorm:"type:char(36);primaryKey"`
	ServiceID    int        `json:"service_id"     gorm:"not null;uniqueIndex:ux_analytics_service_key,priority:1"`
	DraftKey     string     `json:"draft_key"      gorm:"type:varchar(128);not null;uniqueIndex:ux_analytics_service_key,priority:2"`
	FirstSavedAt time.Time  `json:"first_saved_at" gorm:"not null"`
	LastSavedAt  time.Time  `json:"last_saved_at"  gorm:"not null;index"`
	SaveCount    int        `json:"save_count"     gorm:"not null;default:0"`
	ResumeCount  int        `json:"resume_count"   gorm:"not null;default:0"`
	IsAbandoned  bool       `json:"is_abandoned"   gorm:"not null;default:false"`
	AbandonedAt  *time.Time `json:"abandoned_at,omitempty"`
	LastResumeAt *time.Time `json:"last_resume_at,omitempty"`
}

// TableName returns the database table name for DraftAnalytics.
func (DraftAnalytics) TableName() string { return "draft_analytics" }

// SubsidyApplication is a deduplicated application record. The policy hash
// is a deterministic digest of (farmerID | schemeID | year) and is the only
// cleartext identity column; the application body, which carries
// farmer-identifying data, is stored as an encrypted envelope.
type SubsidyApplication struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	PolicyHash string    `json:"policy_hash" gorm:"type:char(64);not null;uniqueIndex:ux_subsidy_policy_hash"`
	Payload    []byte    `json:"-"           gorm:"type:blob;not null"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for SubsidyApplication.
func (SubsidyApplication) TableName() string { return "subsidy_applications" }

// Secret is the single persisted device secret from which the cipher key is
// derived. Exactly one row exists; it is created on first use and never
// rotated by the core.
type Secret struct {
	ID        int       `gorm:"primaryKey"`
	Value     []byte    `gorm:"type:blob;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for Secret.
func (Secret) TableName() string { return "secret_store" }
