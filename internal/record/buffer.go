// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package record

import (
	"sync"
	"time"
)

// DoubleBuffer holds two record sets. The acquisition loop fills the write
// side while readers see the read side; Swap flips the roles once a sweep is
// complete.
//
// Stage and Commit may only be called from the goroutine that calls Swap.
type DoubleBuffer struct {
	mu      sync.RWMutex
	sets    [2]Set
	read    int
	sweeps  uint64
	swapped time.Time
}

// Snapshot is an immutable copy of the read side
type Snapshot struct {
	Sweep uint64
	Taken time.Time
	Sites Set
}

// NewDoubleBuffer creates a buffer with an empty record for every site
func NewDoubleBuffer(sites map[uint8]string) *DoubleBuffer {
	b := &DoubleBuffer{}
	for i := range b.sets {
		b.sets[i] = make(Set, len(sites))
		for id, class := range sites {
			b.sets[i][id] = &SiteRecord{Site: id, Class: class}
		}
	}
	return b
}

// Stage returns a copy of the write-side record of a site for the caller to fill
func (b *DoubleBuffer) Stage(site uint8) (*SiteRecord, bool) {
	r, ok := b.sets[1-b.read][site]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Commit stores a filled record on the write side
func (b *DoubleBuffer) Commit(r *SiteRecord) {
	if _, ok := b.sets[1-b.read][r.Site]; !ok {
		return
	}
	b.sets[1-b.read][r.Site] = r
}

// Swap publishes the write side. The new write side starts as a copy of the
// published records so a site skipped in the next sweep keeps its data.
func (b *DoubleBuffer) Swap() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.read = 1 - b.read
	b.sets[1-b.read] = b.sets[b.read].Clone()
	b.sweeps++
	b.swapped = time.Now()
	return b.sweeps
}

// View calls fn with the published record of a site under the read lock.
// fn must not retain the record.
func (b *DoubleBuffer) View(site uint8, fn func(r *SiteRecord)) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.sets[b.read][site]
	if !ok {
		return false
	}
	fn(r)
	return true
}

// Registers returns published host registers of a site
func (b *DoubleBuffer) Registers(site uint8, start, quantity uint16) ([]uint16, bool) {
	var out []uint16
	ok := b.View(site, func(r *SiteRecord) {
		out = r.Registers(start, quantity)
	})
	return out, ok
}

// Snapshot returns a deep copy of the read side
func (b *DoubleBuffer) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{
		Sweep: b.sweeps,
		Taken: b.swapped,
		Sites: b.sets[b.read].Clone(),
	}
}

// Published returns the number of published sweeps and the time of the last one
func (b *DoubleBuffer) Published() (uint64, time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sweeps, b.swapped
}
