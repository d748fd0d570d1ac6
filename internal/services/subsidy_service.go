// Package services – SubsidyService
//
// This file implements deduplicated subsidy applications. The natural key
// (farmerID, schemeID, year) is reduced to a deterministic policy hash; a
// second write under the same hash is detected and recorded as a duplicate
// event rather than silently overwritten or silently rejected, and reported
// back to the caller as a structured result so it can decide what to do.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
	"github.com/Jos-zenith/uzhavan-sub000/internal/repo"
	"github.com/Jos-zenith/uzhavan-sub000/internal/secrets"
)

// subsidyServiceID tags subsidy events and queue entries in the absence of
// a caller-supplied service id (applications are a single logical service).
const subsidyServiceID = 0

// SubsidyResult reports the outcome of an application upsert.
type SubsidyResult struct {
	PolicyHash           string     `json:"policy_hash"`
	IsDuplicate          bool       `json:"is_duplicate"`
	DuplicateOfUpdatedAt *time.Time `json:"duplicate_of_updated_at,omitempty"`
}

// SubsidyService implements deduplicated application writes.
type SubsidyService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Cipher seals application payloads, which carry farmer-identifying data.
	Cipher *secrets.Cipher
	// Events records the submit or duplicate intent.
	Events *EventService
	// Sync enqueues the submission for remote execution.
	Sync SyncScheduler
}

// Upsert records a subsidy application. The first write under a policy hash
// stores the encrypted payload, appends a subsidy_submit event, and enqueues
// it for sync; any later write under the same hash leaves the original
// untouched, appends a subsidy_duplicate event, and reports the duplicate.
func (s *SubsidyService) Upsert(ctx context.Context, farmerID string, schemeID, year int, payload map[string]any) (SubsidyResult, error) {
	policyHash := secrets.Hash(farmerID, strconv.Itoa(schemeID), strconv.Itoa(year))
	res := SubsidyResult{PolicyHash: policyHash}

	existing, err := repo.GetSubsidyByHash(ctx, s.DB, policyHash)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return res, err
	}
	if existing != nil {
		return s.recordDuplicate(ctx, res, existing)
	}

	sealed, err := s.Cipher.EncryptBytes(payload)
	if err != nil {
		return res, err
	}

	if _, err := repo.CreateSubsidy(ctx, s.DB, policyHash, sealed); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// Lost a write race under the same hash; the winner's row stands.
			if existing, gerr := repo.GetSubsidyByHash(ctx, s.DB, policyHash); gerr == nil {
				return s.recordDuplicate(ctx, res, existing)
			}
		}
		return res, err
	}

	ev, err := s.Events.Append(ctx, subsidyServiceID, policyHash, domain.OpSubsidySubmit, sealed)
	if err != nil {
		return res, err
	}
	if _, err := s.Sync.Enqueue(ctx, subsidyServiceID, nil, domain.OpSubsidySubmit, sealed); err == nil {
		if merr := s.Events.MarkMaterialized(ctx, ev.ID); merr != nil {
			return res, merr
		}
	}

	s.Sync.MaybeDrain(ctx)
	return res, nil
}

// recordDuplicate appends the duplicate signal and reports the original's
// timestamp. The original record is never overwritten.
func (s *SubsidyService) recordDuplicate(ctx context.Context, res SubsidyResult, existing *domain.SubsidyApplication) (SubsidyResult, error) {
	res.IsDuplicate = true
	res.DuplicateOfUpdatedAt = &existing.UpdatedAt

	payload, err := json.Marshal(map[string]any{
		"policy_hash": res.PolicyHash,
		"original_id": existing.ID,
	})
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if _, err := s.Events.Append(ctx, subsidyServiceID, res.PolicyHash, domain.OpSubsidyDuplicate, payload); err != nil {
		return res, err
	}
	return res, nil
}
