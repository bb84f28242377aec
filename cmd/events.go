// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"strings"
	"sync"
)

// eventWriter keeps the last log lines written to it for the monitor's
// event pane. Partial lines are held until their newline arrives.
type eventWriter struct {
	mu      sync.Mutex
	lines   []string
	max     int
	partial []byte
	total   uint64
}

func newEventWriter(max int) *eventWriter {
	return &eventWriter{max: max}
}

func (w *eventWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(w.partial[:i]))
		w.partial = w.partial[i+1:]
		if line == "" {
			continue
		}
		w.lines = append(w.lines, line)
		w.total++
		if len(w.lines) > w.max {
			w.lines = w.lines[len(w.lines)-w.max:]
		}
	}
	return len(p), nil
}

// Last returns up to n of the most recent lines, oldest first
func (w *eventWriter) Last(n int) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n > len(w.lines) {
		n = len(w.lines)
	}
	return append([]string(nil), w.lines[len(w.lines)-n:]...)
}

// Total returns the number of lines ever written
func (w *eventWriter) Total() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}
