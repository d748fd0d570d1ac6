// Package domain defines the core persistence models for the application.
// This file holds the land parcel ownership ledger: the single-writer-per-key
// state and the conflict records produced when that invariant is violated.
package domain

import "time"

// LandParcelState records the current exclusive holder of a parcel. At most
// one farmer holds a parcel at a time; a replayed claim or update naming a
// different farmer is rejected and logged as a LandParcelConflict, never
// silently overwritten.
type LandParcelState struct {
	ParcelID      string    `json:"parcel_id"       gorm:"type:varchar(128);primaryKey"`
	FarmerID      string    `json:"farmer_id"       gorm:"type:varchar(64);not null;index"`
	ServiceID     int       `json:"service_id"      gorm:"not null"`
	SourceEventID uint      `json:"source_event_id" gorm:"not null"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for LandParcelState.
func (LandParcelState) TableName() string { return "land_parcel_state" }

// LandParcelConflict is written exactly once per rejected ledger transition.
// Resolution is an external operator action; the core only exposes the rows
// and the ResolvedAt / ResolutionNote columns the operator fills in.
//
// EventStoreID carries a unique index so that re-replaying a conflicting
// event cannot record the same rejection twice.
type LandParcelConflict struct {
	ID               uint       `json:"id"                 gorm:"primaryKey;autoIncrement"`
	ParcelID         string     `json:"parcel_id"          gorm:"type:varchar(128);not null;index"`
	ExistingFarmerID string     `json:"existing_farmer_id" gorm:"type:varchar(64);not null"`
	IncomingFarmerID string     `json:"incoming_farmer_id" gorm:"type:varchar(64);not null"`
	OperationType    string     `json:"operation_type"     gorm:"type:varchar(64);not null"`
	EventStoreID     uint       `json:"event_store_id"     gorm:"not null;uniqueIndex:ux_conflict_event"`
	DetectedAt       time.Time  `json:"detected_at"        gorm:"not null"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	ResolutionNote   *string    `json:"resolution_note,omitempty" gorm:"type:text"`
}

// TableName returns the database table name for LandParcelConflict.
func (LandParcelConflict) TableName() string { return "land_parcel_conflicts" }
