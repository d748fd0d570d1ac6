// Package services implements the business logic of the offline core:
// encrypted draft storage, the append-only event store and its replay, the
// land parcel ownership ledger, subsidy deduplication, and the prioritized
// sync queue. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// Translation into user-facing messages is performed by the embedding
// application; the core only guarantees the taxonomy: decryption failures
// are fatal to a single record, duplicates and ownership conflicts are
// signals rather than thrown errors, and remote failures never escape the
// drain loop.
package services

import (
	"errors"

	"github.com/Jos-zenith/uzhavan-sub000/internal/secrets"
)

var (
	// ErrDecryption indicates a tampered or corrupted encrypted record. The
	// record is unreadable; the system as a whole is unaffected.
	ErrDecryption = secrets.ErrDecryption

	// ErrEncoding is returned when a caller-supplied value cannot be
	// serialized for storage.
	ErrEncoding = secrets.ErrEncoding

	// ErrDraftNotFound indicates that no draft exists for the requested
	// (serviceID, draftKey).
	ErrDraftNotFound = errors.New("draft not found")

	// ErrInvalidOperation is returned when a land parcel mutation names an
	// operation outside the claim/update/release family.
	ErrInvalidOperation = errors.New("invalid land parcel operation")

	// ErrNoRemoteExecutor is returned when a drain is requested but the
	// surrounding system has not supplied a remote execution function.
	ErrNoRemoteExecutor = errors.New("no remote executor configured")
)
