// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package acquisition

import (
	"fmt"
)

// Phase is a state of the acquisition machine
type Phase int

const (
	PhaseStart Phase = iota
	PhaseValveGroup
	PhaseWaterWell
	PhaseOilWellBasic
	PhaseManifoldPressure
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseValveGroup:
		return "valve_group"
	case PhaseWaterWell:
		return "water_well"
	case PhaseOilWellBasic:
		return "oil_well_basic"
	case PhaseManifoldPressure:
		return "manifold_pressure"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}
