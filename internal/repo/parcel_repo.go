// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the land
// parcel ownership ledger: the current-holder state and the conflict rows
// written when a non-owner tries to claim or release a parcel.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Jos-zenith/uzhavan-sub000/internal/domain"
)

// GetParcelState fetches the ledger row for parcelID, or ErrNotFound when
// the parcel is unclaimed.
func GetParcelState(ctx context.Context, db *gorm.DB, parcelID string) (*domain.LandParcelState, error) {
	var s domain.LandParcelState
	err := db.WithContext(ctx).
		Where("parcel_id = ?", parcelID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// PutParcelState records the winning holder for a parcel, creating the row
// for a first claim or updating it when the current holder re-claims.
func PutParcelState(ctx context.Context, db *gorm.DB, s *domain.LandParcelState) error {
	s.UpdatedAt = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.LandParcelState{}).
		Where("parcel_id = ?", s.ParcelID).
		Updates(map[string]any{
			"farmer_id":       s.FarmerID,
			"service_id":      s.ServiceID,
			"source_event_id": s.SourceEventID,
			"updated_at":      s.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.WithContext(ctx).Create(s).Error
	}
	return nil
}

// ReleaseParcel removes the ledger row, returning the parcel to unclaimed.
// Returns ErrNotFound when the parcel was not claimed.
func ReleaseParcel(ctx context.Context, db *gorm.DB, parcelID string) error {
	res := db.WithContext(ctx).
		Where("parcel_id = ?", parcelID).
		Delete(&domain.LandParcelState{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateConflictIfAbsent writes a conflict row for a rejected transition.
// The unique index on event_store_id makes the write idempotent: replaying
// the same conflicting event again records nothing and returns false.
func CreateConflictIfAbsent(ctx context.Context, db *gorm.DB, c *domain.LandParcelConflict) (bool, error) {
	c.DetectedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isDuplicate(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListConflicts returns conflict rows, newest first, optionally filtered to
// a single parcel. parcelID == "" lists all conflicts.
func ListConflicts(ctx context.Context, db *gorm.DB, parcelID string) ([]domain.LandParcelConflict, error) {
	q := db.WithContext(ctx).Order("detected_at desc").Order("id desc")
	if parcelID != "" {
		q = q.Where("parcel_id = ?", parcelID)
	}
	var out []domain.LandParcelConflict
	err := q.Find(&out).Error
	return out, err
}
