package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Jos-zenith/uzhavan-sub000/internal/connectivity"
	"github.com/Jos-zenith/uzhavan-sub000/internal/repo"
	"github.com/Jos-zenith/uzhavan-sub000/internal/secrets"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "core.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestCipher(t *testing.T) *secrets.Cipher {
	t.Helper()
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i)
	}
	c, err := secrets.NewCipher(secret)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	return c
}

// fakeExecutor is a scripted RemoteExecutor that records every dispatched
// operation and fails while failures > 0.
type fakeExecutor struct {
	mu       sync.Mutex
	calls    []string
	failures int
	err      error
}

func (f *fakeExecutor) exec(ctx context.Context, operationType string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, operationType)
	if f.failures != 0 {
		if f.failures > 0 {
			f.failures--
		}
		return f.err
	}
	return nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeExecutor) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// harness wires a full service graph over a throwaway database, mirroring the
// composition root.
type harness struct {
	db        *gorm.DB
	signal    *connectivity.ManualSignal
	executor  *fakeExecutor
	events    *EventService
	sync      *SyncService
	parcels   *ParcelService
	drafts    *DraftService
	subsidies *SubsidyService
	core      *Core
}

func defaultTestPolicy() SyncPolicy {
	return SyncPolicy{
		MaxRetry:          5,
		BackoffBase:       30 * time.Second,
		BackoffCap:        15 * time.Minute,
		DefaultPriority:   50,
		PriorityOverrides: map[int]int{},
		ReplayBatchLimit:  200,
	}
}

func newHarness(t *testing.T, online bool, policy SyncPolicy) *harness {
	t.Helper()

	db := newServiceDB(t)
	signal := connectivity.NewManualSignal(online)
	executor := &fakeExecutor{}

	events := NewEventService(db)
	syncSvc := NewSyncService(db, signal, events, executor.exec, policy, 1000, 1000)
	parcels := &ParcelService{DB: db, Events: events}
	events.Queue = syncSvc
	events.Parcels = parcels

	cipher := newTestCipher(t)
	drafts := NewDraftService(db, cipher, events, syncSvc, 30*time.Minute)
	subsidies := &SubsidyService{DB: db, Cipher: cipher, Events: events, Sync: syncSvc}

	return &harness{
		db:        db,
		signal:    signal,
		executor:  executor,
		events:    events,
		sync:      syncSvc,
		parcels:   parcels,
		drafts:    drafts,
		subsidies: subsidies,
		core: &Core{
			Drafts:    drafts,
			Events:    events,
			Parcels:   parcels,
			Subsidies: subsidies,
			Sync:      syncSvc,
		},
	}
}
