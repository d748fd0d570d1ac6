// Package services – DraftService
//
// This file implements encrypted, field-mergeable draft storage. A draft's
// encrypted payload is the source of truth; the event store and sync queue
// carry downstream copies that self-heal on the next save if a write fails
// partway. Concurrent upserts to the same (serviceID, draftKey) are
// serialized by a per-key in-process mutex so the read-decrypt-merge-
// encrypt-write cycle never loses an update; cross-key operations do not
// block each other.
//
// Abandonment is recomputed lazily at query time by comparing the idle gap
// against the configured threshold; there is no background timer. Reading
// an abandoned draft back clears the flag, counts the resume, and records a
// draft_resumed_after_abandonment event.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
	"github.com/Jos-zenith/uzhavan-sub000/internal/repo"
	"github.com/Jos-zenith/uzhavan-sub000/internal/secrets"
)

// SyncScheduler is the slice of the sync service the draft and subsidy
// services need: direct enqueue of fresh work and a rate-limited nudge to
// drain it when the device is online.
type SyncScheduler interface {
	Enqueue(ctx context.Context, serviceID int, draftKey *string, operationType string, payload []byte) (*domain.SyncQueueEntry, error)
	MaybeDrain(ctx context.Context)
}

// ResumePrompt is the read-only status probe returned by HasDraft.
type ResumePrompt struct {
	HasDraft             bool       `json:"has_draft"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
	IsAbandoned          bool       `json:"is_abandoned,omitempty"`
	MinutesSinceLastSave int        `json:"minutes_since_last_save,omitempty"`
}

// DraftService provides the draft store and its analytics counters.
type DraftService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Cipher seals and opens draft payloads.
	Cipher *secrets.Cipher
	// Events records one mutation intent per save.
	Events *EventService
	// Sync enqueues remote work and triggers drains when online.
	Sync SyncScheduler

	// AbandonThreshold is the idle gap after which a draft counts as
	// abandoned (default 30m, configurable per deployment).
	AbandonThreshold time.Duration

	// now is a test seam for the clock.
	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDraftService constructs a DraftService.
func NewDraftService(db *gorm.DB, cipher *secrets.Cipher, events *EventService, sched SyncScheduler, abandonThreshold time.Duration) *DraftService {
	return &DraftService{
		DB:               db,
		Cipher:           cipher,
		Events:           events,
		Sync:             sched,
		AbandonThreshold: abandonThreshold,
		now:              time.Now,
		locks:            map[string]*sync.Mutex{},
	}
}

// keyLock returns the mutex serializing writers of one draft key.
func (s *DraftService) keyLock(serviceID int, draftKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := fmt.Sprintf("%d\x00%s", serviceID, draftKey)
	l, ok := s.locks[k]
	if !ok {
		l = &sync.Mutex{}
		s.locks[k] = l
	}
	return l
}

// UpsertField merges a single field into the draft for (serviceID,
// draftKey): read the existing encrypted record, decrypt, merge the field
// (existing fields untouched), re-encrypt, and upsert with sync_state forced
// back to queued. The same call touches the analytics counters, appends one
// draft_upsert event carrying the merged payload, enqueues one sync queue
// entry, and nudges the drain loop when online.
func (s *DraftService) UpsertField(ctx context.Context, serviceID int, draftKey, field, value string) error {
	l := s.keyLock(serviceID, draftKey)
	l.Lock()
	defer l.Unlock()

	fields := map[string]string{}
	existing, err := repo.GetDraft(ctx, s.DB, serviceID, draftKey)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if existing != nil {
		if err := s.Cipher.DecryptBytes(existing.Payload, &fields); err != nil {
			return err
		}
	}
	fields[field] = value

	payload, err := s.Cipher.EncryptBytes(fields)
	if err != nil {
		return err
	}

	// Draft row and analytics move together; event and queue entry are
	// downstream copies written after the source of truth.
	now := s.now().UTC()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.UpsertDraft(ctx, tx, serviceID, draftKey, payload); err != nil {
			return err
		}
		_, err := repo.TouchSave(ctx, tx, serviceID, draftKey, now)
		return err
	})
	if err != nil {
		return err
	}

	ev, err := s.Events.Append(ctx, serviceID, draftKey, domain.OpDraftUpsert, payload)
	if err != nil {
		return err
	}
	if _, err := s.Sync.Enqueue(ctx, serviceID, &draftKey, domain.OpDraftUpsert, payload); err != nil {
		// The event stays pending; the next replay materializes the entry.
		log.Warn().Err(err).Int("service_id", serviceID).Str("draft_key", draftKey).Msg("direct enqueue failed, deferring to replay")
	} else if err := s.Events.MarkMaterialized(ctx, ev.ID); err != nil {
		log.Warn().Err(err).Uint("event_id", ev.ID).Msg("marking event materialized")
	}

	s.Sync.MaybeDrain(ctx)
	return nil
}

// Load decrypts and returns the draft's field map, or nil when no draft
// exists. Reading back an abandoned draft clears the abandonment flag,
// increments the resume counter, and appends a resume event.
func (s *DraftService) Load(ctx context.Context, serviceID int, draftKey string) (map[string]string, error) {
	d, err := repo.GetDraft(ctx, s.DB, serviceID, draftKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	fields := map[string]string{}
	if err := s.Cipher.DecryptBytes(d.Payload, &fields); err != nil {
		return nil, err
	}

	if err := s.noteResume(ctx, serviceID, draftKey); err != nil {
		log.Warn().Err(err).Int("service_id", serviceID).Str("draft_key", draftKey).Msg("recording draft resume")
	}
	return fields, nil
}

// noteResume clears abandonment on read-back. The flag may be stored or
// merely derivable (threshold crossed since the last probe); both count.
func (s *DraftService) noteResume(ctx context.Context, serviceID int, draftKey string) error {
	a, err := repo.GetAnalytics(ctx, s.DB, serviceID, draftKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	now := s.now().UTC()
	if !a.IsAbandoned && now.Sub(a.LastSavedAt) <= s.AbandonThreshold {
		return nil
	}

	if err := repo.MarkResumed(ctx, s.DB, a.ID, now); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"service_id": serviceID,
		"draft_key":  draftKey,
		"resumed_at": now,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	_, err = s.Events.Append(ctx, serviceID, draftKey, domain.OpDraftResumed, payload)
	return err
}

// Clear deletes the draft and its analytics record. Already-written events
// stay in the log; history is immutable.
func (s *DraftService) Clear(ctx context.Context, serviceID int, draftKey string) error {
	l := s.keyLock(serviceID, draftKey)
	l.Lock()
	defer l.Unlock()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.DeleteDraft(ctx, tx, serviceID, draftKey); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDraftNotFound
			}
			return err
		}
		return repo.DeleteAnalytics(ctx, tx, serviceID, draftKey)
	})
}

// HasDraft is a read-only status probe. Abandonment is recomputed lazily
// against the idle threshold and persisted once crossed, so the very next
// Load observes the stored flag.
func (s *DraftService) HasDraft(ctx context.Context, serviceID int, draftKey string) (ResumePrompt, error) {
	d, err := repo.GetDraft(ctx, s.DB, serviceID, draftKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ResumePrompt{}, nil
		}
		return ResumePrompt{}, err
	}

	prompt := ResumePrompt{HasDraft: true, UpdatedAt: &d.UpdatedAt}

	a, err := s.refreshAbandonment(ctx, serviceID, draftKey)
	if err != nil {
		return prompt, err
	}
	if a != nil {
		prompt.IsAbandoned = a.IsAbandoned
		prompt.MinutesSinceLastSave = int(s.now().UTC().Sub(a.LastSavedAt).Minutes())
	}
	return prompt, nil
}

// Analytics returns the draft's analytics record with abandonment lazily
// refreshed, or nil when none exists.
func (s *DraftService) Analytics(ctx context.Context, serviceID int, draftKey string) (*domain.DraftAnalytics, error) {
	return s.refreshAbandonment(ctx, serviceID, draftKey)
}

// refreshAbandonment persists the abandonment flag when the idle threshold
// has been crossed and the draft still exists. Returns the current record,
// or nil when there is none.
func (s *DraftService) refreshAbandonment(ctx context.Context, serviceID int, draftKey string) (*domain.DraftAnalytics, error) {
	a, err := repo.GetAnalytics(ctx, s.DB, serviceID, draftKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	now := s.now().UTC()
	if !a.IsAbandoned && now.Sub(a.LastSavedAt) > s.AbandonThreshold {
		if err := repo.MarkAbandoned(ctx, s.DB, a.ID, now); err != nil {
			return nil, err
		}
		a.IsAbandoned = true
		a.AbandonedAt = &now
	}
	return a, nil
}
