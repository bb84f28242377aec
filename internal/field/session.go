// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package field

import (
	"sync"
)

// FrameIDs hands out frame ids 1..255 in sequence. 0 is never used because it
// suppresses the radio's transmit status.
type FrameIDs struct {
	mu   sync.Mutex
	last uint8
}

// Next returns the next frame id
func (f *FrameIDs) Next() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last++
	if f.last == 0 {
		f.last = 1
	}
	return f.last
}
