// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
	"strconv"
)

// Register group limits
const (
	MaxDiagramBlocks = 5
	MaxValves        = 8
)

// ValidationError reports one invalid configuration field.
// It is fatal at startup.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Msg)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg.Gateway.Attempts < 1 {
		return invalid("gateway.attempts", "must be at least 1")
	}
	switch cfg.Gateway.ValveWiring {
	case WiringRadio, WiringBus:
	default:
		return invalid("gateway.valve_wiring", "unknown wiring %q", cfg.Gateway.ValveWiring)
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", "unknown level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return invalid("log.format", "unknown format %q", cfg.Log.Format)
	}

	// ------------------------------------------------------------
	// RADIO
	// ------------------------------------------------------------

	r := cfg.Radio
	if (r.Port == "") == (r.BridgeURL == "") {
		return invalid("radio", "exactly one of port and bridge_url must be set")
	}
	if r.APIMode != 1 && r.APIMode != 2 {
		return invalid("radio.api_mode", "must be 1 or 2, got %d", r.APIMode)
	}
	if !r.SkipHandshake {
		if r.PanID == "" {
			return invalid("radio.pan_id", "required unless skip_handshake is set")
		}
		if _, err := strconv.ParseUint(r.PanID, 16, 64); err != nil {
			return invalid("radio.pan_id", "must be hex, got %q", r.PanID)
		}
	}

	// ------------------------------------------------------------
	// SITES
	// ------------------------------------------------------------

	if len(cfg.Sites) == 0 {
		return invalid("sites", "no sites configured")
	}

	seen := make(map[uint8]bool)
	usesBus := false
	for i, s := range cfg.Sites {
		field := fmt.Sprintf("sites[%d]", i)

		if s.ID == 0 {
			return invalid(field+".id", "must be 1..255")
		}
		if seen[s.ID] {
			return invalid(field+".id", "duplicate site id %d", s.ID)
		}
		seen[s.ID] = true

		switch s.Class {
		case ClassOilWell, ClassWaterWell, ClassManifold:
		case ClassValveGroup:
			if cfg.Gateway.ValveWiring == WiringBus {
				usesBus = true
			}
		default:
			return invalid(field+".class", "unknown class %q", s.Class)
		}

		if _, err := ParseAddress(s.Address); err != nil {
			return invalid(field+".address", "%v", err)
		}
		if s.DiagramBlocks < 0 || s.DiagramBlocks > MaxDiagramBlocks {
			return invalid(field+".diagram_blocks", "must be 0..%d", MaxDiagramBlocks)
		}
		if s.MaxValves < 0 || s.MaxValves > MaxValves {
			return invalid(field+".max_valves", "must be 0..%d", MaxValves)
		}
	}

	if usesBus && cfg.Bus.Port == "" {
		return invalid("bus.port", "required when valve groups are wired to the bus")
	}
	switch cfg.Bus.Parity {
	case "N", "E", "O":
	default:
		return invalid("bus.parity", "must be N, E or O")
	}

	// ------------------------------------------------------------
	// MANIFOLD PRESSURE
	// ------------------------------------------------------------

	m := cfg.Manifold
	if m.Enabled() {
		if !seen[m.SiteID] {
			return invalid("manifold.site_id", "site %d is not configured", m.SiteID)
		}
		switch m.Source {
		case SourceRadio:
		case SourceAnalog:
			if m.Channel < 0 || m.Channel > 3 {
				return invalid("manifold.channel", "analog channel must be 0..3")
			}
		default:
			return invalid("manifold.source", "unknown source %q", m.Source)
		}
	}
	for i, s := range cfg.Sites {
		if s.Class == ClassManifold && s.ID != m.SiteID {
			return invalid(fmt.Sprintf("sites[%d].class", i), "manifold site %d is not manifold.site_id", s.ID)
		}
	}

	if cfg.Storage.Enabled && cfg.Storage.Path == "" {
		return invalid("storage.path", "required when storage is enabled")
	}

	return nil
}
