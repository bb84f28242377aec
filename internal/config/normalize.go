// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"fmt"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	for i := range cfg.Sites {
		s := &cfg.Sites[i]

		if s.Slave == 0 {
			s.Slave = s.ID
		}
		if s.Name == "" {
			s.Name = fmt.Sprintf("site-%d", s.ID)
		}

		// Canonical 16-digit upper-case hex
		s.Address = fmt.Sprintf("%016X", s.RadioAddress())

		switch s.Class {
		case ClassOilWell:
			if s.DiagramBlocks == 0 {
				s.DiagramBlocks = MaxDiagramBlocks
			}
		case ClassValveGroup:
			if s.MaxValves == 0 {
				s.MaxValves = MaxValves
			}
		}
	}

	if cfg.Manifold.Enabled() && cfg.Manifold.Source == SourceRadio && cfg.Manifold.Register == 0 {
		cfg.Manifold.Register = DefaultManifoldRegister
	}
}
