// Package connectivity defines the contract the surrounding system fulfils
// to tell the core whether the device is online, and the hooks the core
// calls back to surface coarse sync progress. The core never detects
// network state itself; it only reads the injected signal.
package connectivity

import "sync"

// State is the coarse aggregate connectivity/sync status reported outward
// after every queue drain.
type State string

// Aggregate states. Offline is reported when a drain is requested while the
// signal says the device has no connectivity.
const (
	StateOffline     State = "offline"
	StateSyncing     State = "syncing"
	StateFullySynced State = "fully_synced"
	StateSyncFailed  State = "sync_failed"
)

// Signal is implemented by the surrounding system (typically the mobile
// shell's reachability layer). IsOnline gates queue draining; the three
// Mark hooks let the shell reflect sync progress in its UI.
type Signal interface {
	IsOnline() bool
	MarkSyncing()
	MarkSynced()
	MarkSyncFailed()
}

// ManualSignal is a concurrency-safe Signal whose online flag is flipped
// explicitly. It records the last marked state, which makes it usable both
// as a reference implementation for simple hosts and as a deterministic
// fake in tests.
type ManualSignal struct {
	mu     sync.Mutex
	online bool
	last   State
}

// NewManualSignal returns a ManualSignal with the given initial online flag.
func NewManualSignal(online bool) *ManualSignal {
	return &ManualSignal{online: online}
}

// SetOnline flips the online flag.
func (s *ManualSignal) SetOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = online
}

// IsOnline reports the current online flag.
func (s *ManualSignal) IsOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// MarkSyncing records that a drain has started.
func (s *ManualSignal) MarkSyncing() { s.mark(StateSyncing) }

// MarkSynced records that the queue fully drained.
func (s *ManualSignal) MarkSynced() { s.mark(StateFullySynced) }

// MarkSyncFailed records that terminal failures remain in the queue.
func (s *ManualSignal) MarkSyncFailed() { s.mark(StateSyncFailed) }

// Last returns the most recently marked state, or "" when no drain has
// reported yet.
func (s *ManualSignal) Last() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *ManualSignal) mark(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = st
}
