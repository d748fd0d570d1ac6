// Package services – ParcelService
//
// This file implements the land parcel ownership ledger: single-writer-per-
// key state used to detect conflicting exclusive claims without a central
// lock. Conflicting writers are rejected and logged, never merged and never
// allowed to overwrite the current holder (optimistic concurrency with
// after-the-fact detection; resolution is an external operator action).
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
	"github.com/Jos-zenith/uzhavan-sub000/internal/observability"
	"github.com/Jos-zenith/uzhavan-sub000/internal/repo"
)

// ParcelMutation is the plain JSON payload of a land-parcel event. Parcel
// and farmer identifiers are ledger lookup columns, so the payload is not
// wrapped in an envelope.
type ParcelMutation struct {
	ParcelID string            `json:"parcel_id"`
	FarmerID string            `json:"farmer_id"`
	Context  map[string]string `json:"context,omitempty"`
}

// ParcelService implements the ownership ledger and its conflict log.
type ParcelService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Events receives the fire-and-forget mutation intents.
	Events *EventService
}

// RecordMutation appends a claim/update/release intent to the event store.
// The outcome is observed later through ListConflicts once replay has run;
// the call itself only validates and records the intent.
func (s *ParcelService) RecordMutation(ctx context.Context, serviceID int, parcelID, farmerID, operation string, mutationCtx map[string]string) error {
	if !domain.IsParcelOp(operation) {
		return fmt.Errorf("%w: %q", ErrInvalidOperation, operation)
	}
	if parcelID == "" || farmerID == "" {
		return fmt.Errorf("%w: parcel and farmer ids are required", ErrInvalidOperation)
	}

	payload, err := json.Marshal(ParcelMutation{ParcelID: parcelID, FarmerID: farmerID, Context: mutationCtx})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	_, err = s.Events.Append(ctx, serviceID, parcelID, operation, payload)
	return err
}

// Apply replays one parcel event against the ledger state machine
// (Unclaimed -> Claimed(farmer)). It returns true when the transition won,
// false when it was rejected; every rejection records exactly one conflict
// row, keyed by the event id so re-replays cannot duplicate it.
func (s *ParcelService) Apply(ctx context.Context, ev *domain.LocalEvent) (bool, error) {
	var m ParcelMutation
	if err := json.Unmarshal(ev.Payload, &m); err != nil {
		return false, fmt.Errorf("decoding parcel mutation: %w", err)
	}
	if m.ParcelID == "" {
		m.ParcelID = ev.EntityKey
	}

	state, err := repo.GetParcelState(ctx, s.DB, m.ParcelID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("reading parcel state: %w", err)
	}
	claimed := err == nil

	switch ev.OperationType {
	case domain.OpParcelClaim, domain.OpParcelUpdate:
		if claimed && state.FarmerID != m.FarmerID {
			return false, s.reject(ctx, ev, state.FarmerID, m)
		}
		err := repo.PutParcelState(ctx, s.DB, &domain.LandParcelState{
			ParcelID:      m.ParcelID,
			FarmerID:      m.FarmerID,
			ServiceID:     ev.ServiceID,
			SourceEventID: ev.ID,
		})
		if err != nil {
			return false, fmt.Errorf("recording parcel state: %w", err)
		}
		return true, nil

	case domain.OpParcelRelease:
		if !claimed || state.FarmerID != m.FarmerID {
			existing := ""
			if claimed {
				existing = state.FarmerID
			}
			return false, s.reject(ctx, ev, existing, m)
		}
		if err := repo.ReleaseParcel(ctx, s.DB, m.ParcelID); err != nil {
			return false, fmt.Errorf("releasing parcel: %w", err)
		}
		return true, nil

	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidOperation, ev.OperationType)
	}
}

// reject records the conflict for a lost transition. Returning nil keeps the
// ledger's contract: rejections are logged signals, not errors.
func (s *ParcelService) reject(ctx context.Context, ev *domain.LocalEvent, existingFarmerID string, m ParcelMutation) error {
	created, err := repo.CreateConflictIfAbsent(ctx, s.DB, &domain.LandParcelConflict{
		ParcelID:         m.ParcelID,
		ExistingFarmerID: existingFarmerID,
		IncomingFarmerID: m.FarmerID,
		OperationType:    ev.OperationType,
		EventStoreID:     ev.ID,
	})
	if err != nil {
		return fmt.Errorf("recording parcel conflict: %w", err)
	}
	if created {
		observability.ObserveParcelConflict()
		log.Warn().
			Str("parcel_id", m.ParcelID).
			Str("existing_farmer_id", existingFarmerID).
			Str("incoming_farmer_id", m.FarmerID).
			Str("operation", ev.OperationType).
			Uint("event_id", ev.ID).
			Msg("land parcel ownership conflict")
	}
	return nil
}

// ListConflicts returns recorded ownership conflicts, newest first.
// parcelID == "" lists conflicts across all parcels.
func (s *ParcelService) ListConflicts(ctx context.Context, parcelID string) ([]domain.LandParcelConflict, error) {
	return repo.ListConflicts(ctx, s.DB, parcelID)
}
