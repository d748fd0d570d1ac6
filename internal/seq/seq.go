// Package seq mints the monotonic ordering keys used by the local event
// store. Replay order is defined solely by these keys, never by
// storage-assigned row ids, so migrating or compacting storage can never
// silently reorder replay.
//
// A key concatenates a coarse wall-clock component (Unix milliseconds,
// zero-padded) with a fine process-lifetime counter (zero-padded), so that
// lexical ordering matches temporal ordering even for keys minted within the
// same millisecond. The wall-clock component is clamped to be non-decreasing,
// which keeps ordering correct across backwards clock adjustments.
package seq

import (
	"fmt"
	"sync"
	"time"
)

const (
	// msWidth is the zero-padded width of the millisecond component.
	msWidth = 15
	// counterWidth is the zero-padded width of the counter component.
	counterWidth = 9
)

// Generator mints strictly increasing sequence keys. The zero value is not
// usable; construct with NewGenerator. Safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	now     func() time.Time
	lastMS  int64
	counter uint64
}

// NewGenerator returns a Generator backed by the system clock.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// NewGeneratorWithClock returns a Generator backed by the given clock.
// Used by tests to force same-millisecond bursts and clock skew.
func NewGeneratorWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Next returns the next sequence key. Keys are strictly increasing in both
// lexical and temporal order for the lifetime of the process.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms < g.lastMS {
		// Clock moved backwards; pin to the last observed value so the
		// counter alone keeps the ordering strict.
		ms = g.lastMS
	}
	g.lastMS = ms
	g.counter++

	return fmt.Sprintf("%0*d-%0*d", msWidth, ms, counterWidth, g.counter)
}
