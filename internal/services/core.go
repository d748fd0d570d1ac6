// Package services – Core
//
// This file exposes the narrow entry-point surface the surrounding
// application consumes. Core owns no logic of its own; it delegates to the
// draft, event, parcel, subsidy, and sync services and exists so embedders
// depend on one type instead of five.
package services

import (
	"context"

	"github.com/Jos-zenith/uzhavan-sub000/internal/connectivity"
	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
)

// Core is the facade over the offline-first persistence and sync services.
type Core struct {
	Drafts    *DraftService
	Events    *EventService
	Parcels   *ParcelService
	Subsidies *SubsidyService
	Sync      *SyncService
}

// UpsertDraftField merges one field into a draft and queues it for sync.
func (c *Core) UpsertDraftField(ctx context.Context, serviceID int, draftKey, field, value string) error {
	return c.Drafts.UpsertField(ctx, serviceID, draftKey, field, value)
}

// LoadDraft returns the draft's decrypted field map, or nil when absent.
func (c *Core) LoadDraft(ctx context.Context, serviceID int, draftKey string) (map[string]string, error) {
	return c.Drafts.Load(ctx, serviceID, draftKey)
}

// GetResumePrompt probes whether a resumable draft exists and how stale it is.
func (c *Core) GetResumePrompt(ctx context.Context, serviceID int, draftKey string) (ResumePrompt, error) {
	return c.Drafts.HasDraft(ctx, serviceID, draftKey)
}

// ClearDraft deletes a draft and its analytics record.
func (c *Core) ClearDraft(ctx context.Context, serviceID int, draftKey string) error {
	return c.Drafts.Clear(ctx, serviceID, draftKey)
}

// GetDraftAnalytics returns the draft's analytics counters, or nil.
func (c *Core) GetDraftAnalytics(ctx context.Context, serviceID int, draftKey string) (*domain.DraftAnalytics, error) {
	return c.Drafts.Analytics(ctx, serviceID, draftKey)
}

// RecordLandParcelMutation records a fire-and-forget ownership intent; the
// outcome is observed later via ListLandParcelConflicts.
func (c *Core) RecordLandParcelMutation(ctx context.Context, serviceID int, parcelID, farmerID, operation string, mutationCtx map[string]string) error {
	if err := c.Parcels.RecordMutation(ctx, serviceID, parcelID, farmerID, operation, mutationCtx); err != nil {
		return err
	}
	c.Sync.MaybeDrain(ctx)
	return nil
}

// ListLandParcelConflicts returns recorded ownership conflicts; parcelID ==
// "" lists all.
func (c *Core) ListLandParcelConflicts(ctx context.Context, parcelID string) ([]domain.LandParcelConflict, error) {
	return c.Parcels.ListConflicts(ctx, parcelID)
}

// UpsertSubsidyApplication records a deduplicated application write.
func (c *Core) UpsertSubsidyApplication(ctx context.Context, farmerID string, schemeID, year int, payload map[string]any) (SubsidyResult, error) {
	return c.Subsidies.Upsert(ctx, farmerID, schemeID, year, payload)
}

// DrainQueue drives the sync queue and returns the aggregate state. It is
// idempotent, safe to call repeatedly, and a no-op while offline.
func (c *Core) DrainQueue(ctx context.Context, forceAll bool) (connectivity.State, error) {
	return c.Sync.Drain(ctx, forceAll)
}

// GetSyncStatusSnapshot returns the read-only queue status view.
func (c *Core) GetSyncStatusSnapshot(ctx context.Context, limit int) (StatusSnapshot, error) {
	return c.Sync.Snapshot(ctx, limit)
}
