// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package acquisition

import (
	"github.com/Thermoquad/wellgate/internal/record"
)

// readRange is one register read of a poll table
type readRange struct {
	group *[]uint16 // record field the registers land in
	start uint16    // terminal register address
	qty   uint16
	at    int // index into the group
}

// oilWellReads returns the read table of an oil well poll: the base data in
// two reads, the diagram summary, then one read per buffered diagram block
func oilWellReads(r *record.SiteRecord, blocks int) []readRange {
	reads := []readRange{
		{group: &r.WellBase, start: record.WellBase.Start, qty: 40, at: 0},
		{group: &r.WellBase, start: record.WellBase.Start + 40, qty: 20, at: 40},
		{group: &r.DiagramBasic, start: record.DiagramBasic.Start, qty: uint16(record.DiagramBasic.Size), at: 0},
	}
	for b := 0; b < blocks; b++ {
		off := b * record.DiagramBlockSize
		reads = append(reads, readRange{
			group: &r.Diagram,
			start: record.Diagram.Start + uint16(off),
			qty:   record.DiagramBlockSize,
			at:    off,
		})
	}
	return reads
}

// waterWellReads returns the read table of a water well poll
func waterWellReads(r *record.SiteRecord) []readRange {
	return []readRange{
		{group: &r.Water, start: record.Water.Start, qty: uint16(record.Water.Size), at: 0},
	}
}

// Raw subordinate valve registers
const (
	valveID = iota
	valveFlow
	valveTotalHi
	valveTotalLo
	valvePressure
	valveTemperature
	valveOpening
	valveSetpoint
)

// temperatureOffset is added to the raw temperature so it stays unsigned
const temperatureOffset = 500

// buildValveView derives the host presentation of count subordinate valves
// from the raw valve registers. Pressure goes from kPa to 0.1 bar and the
// temperature offset is removed.
func buildValveView(raw []uint16, count int) []uint16 {
	view := make([]uint16, record.ValveView.Size)
	for i := 0; i < count; i++ {
		base := int(record.ValveOffset(i))
		if base+record.ValveSize > len(raw) {
			break
		}
		v := raw[base : base+record.ValveSize]
		out := view[i*record.ValvePresentSize : (i+1)*record.ValvePresentSize]

		out[0] = v[valveID]
		out[1] = v[valveOpening]
		out[2] = v[valveFlow]
		out[3] = v[valveSetpoint]
		out[4] = v[valveTotalHi]
		out[5] = v[valveTotalLo]
		out[6] = v[valvePressure] / 10
		out[7] = uint16(int16(v[valveTemperature]) - temperatureOffset)
	}
	return view
}
