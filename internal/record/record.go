// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package record

import (
	"time"
)

// SiteRecord is the latest complete set of registers read from one site.
// Groups a site's class does not use stay nil.
type SiteRecord struct {
	Site     uint8
	Class    string
	Address  uint64
	Captured time.Time

	WellBase          []uint16
	DiagramBasic      []uint16
	Diagram           []uint16
	Water             []uint16
	Valve             []uint16
	ValvePresentation []uint16
	ManifoldPressure  []uint16
}

// Valid reports whether the site has been polled successfully at least once
func (r *SiteRecord) Valid() bool {
	return !r.Captured.IsZero()
}

// Clone returns a deep copy of the record
func (r *SiteRecord) Clone() *SiteRecord {
	c := *r
	c.WellBase = clone(r.WellBase)
	c.DiagramBasic = clone(r.DiagramBasic)
	c.Diagram = clone(r.Diagram)
	c.Water = clone(r.Water)
	c.Valve = clone(r.Valve)
	c.ValvePresentation = clone(r.ValvePresentation)
	c.ManifoldPressure = clone(r.ManifoldPressure)
	return &c
}

// groups lists the record's populated groups in lookup order
func (r *SiteRecord) groups() []struct {
	g    Group
	regs []uint16
} {
	all := []struct {
		g    Group
		regs []uint16
	}{
		{WellBase, r.WellBase},
		{DiagramBasic, r.DiagramBasic},
		{Diagram, r.Diagram},
		{Water, r.Water},
		{Valve, r.Valve},
		{ValveView, r.ValvePresentation},
		{Manifold, r.ManifoldPressure},
	}
	out := all[:0]
	for _, e := range all {
		if e.regs != nil {
			out = append(out, e)
		}
	}
	return out
}

// Registers returns quantity host registers starting at start.
// Addresses no populated group covers read as zero.
func (r *SiteRecord) Registers(start, quantity uint16) []uint16 {
	out := make([]uint16, quantity)
	groups := r.groups()
	for i := range out {
		addr := int(start) + i
		for _, e := range groups {
			if e.g.Contains(addr) {
				idx := addr - int(e.g.Start)
				if idx < len(e.regs) {
					out[i] = e.regs[idx]
				}
				break
			}
		}
	}
	return out
}

func clone(s []uint16) []uint16 {
	if s == nil {
		return nil
	}
	return append([]uint16(nil), s...)
}

// Set is one side of the double buffer, keyed by site id
type Set map[uint8]*SiteRecord

// Clone returns a deep copy of the set
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for id, r := range s {
		c[id] = r.Clone()
	}
	return c
}
