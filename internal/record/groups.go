// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package record holds the per-site register records assembled by the
// acquisition loop and the double buffer that publishes them to the host.
package record

// Group is a contiguous run of host registers backed by one record field.
// Host register addresses equal the terminal's own register addresses.
type Group struct {
	Name  string
	Start uint16
	Size  int
}

// End returns the first address past the group
func (g Group) End() int { return int(g.Start) + g.Size }

// Contains reports whether addr falls inside the group
func (g Group) Contains(addr int) bool { return addr >= int(g.Start) && addr < g.End() }

// Valve group layout
const (
	ValveHeaderSize  = 10
	ValveCountIndex  = 2 // header register holding the subordinate count
	ValveSize        = 20
	ValveMax         = 8
	ValvePresentSize = 8
)

// Register groups
var (
	WellBase     = Group{Name: "basic", Start: 0, Size: 60}
	DiagramBasic = Group{Name: "diagram_basic", Start: 100, Size: 20}
	Diagram      = Group{Name: "diagram", Start: 200, Size: 200}
	Water        = Group{Name: "water", Start: 0, Size: 30}
	Valve        = Group{Name: "valve", Start: 0, Size: ValveHeaderSize + ValveMax*ValveSize}
	ValveView    = Group{Name: "valve_view", Start: 300, Size: ValveMax * ValvePresentSize}
	Manifold     = Group{Name: "manifold", Start: 600, Size: 1}

	// LiveDiagram is never buffered; reads go to the terminal.
	LiveDiagram = Group{Name: "live_diagram", Start: 1000, Size: 1000}
)

// DiagramBlockSize is the register count of one buffered diagram block
const DiagramBlockSize = 40

// ValveOffset returns the address of subordinate i's raw registers
func ValveOffset(i int) uint16 {
	return uint16(ValveHeaderSize + i*ValveSize)
}
