// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package acquisition

import (
	"sync"
	"time"
)

// SiteHealth summarizes the poll history of one site
type SiteHealth struct {
	Site        uint8
	Name        string
	Class       string
	Polls       uint64
	Failures    uint64
	Consecutive int // failures since the last success
	LastError   string
	LastSuccess time.Time
	Learned     bool
}

// healthTable tracks SiteHealth for every configured site in poll order
type healthTable struct {
	mu    sync.Mutex
	order []uint8
	sites map[uint8]*SiteHealth
}

func newHealthTable() *healthTable {
	return &healthTable{sites: make(map[uint8]*SiteHealth)}
}

func (h *healthTable) add(site uint8, name, class string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.order = append(h.order, site)
	h.sites[site] = &SiteHealth{Site: site, Name: name, Class: class}
}

func (h *healthTable) success(site uint8, learned bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.sites[site]
	s.Polls++
	s.Consecutive = 0
	s.LastSuccess = time.Now()
	s.Learned = learned
}

func (h *healthTable) failure(site uint8, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.sites[site]
	s.Polls++
	s.Failures++
	s.Consecutive++
	s.LastError = err.Error()
}

func (h *healthTable) snapshot() []SiteHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]SiteHealth, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, *h.sites[id])
	}
	return out
}
