// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Statistics tracks frame counts and error rates of one decoder stream.
// It is safe for concurrent use.
type Statistics struct {
	mu sync.Mutex
	s  StatisticsSnapshot
}

// StatisticsSnapshot is a point-in-time copy of the counters
type StatisticsSnapshot struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames      uint64
	ValidFrames      uint64
	ChecksumErrors   uint64
	OversizeFrames   uint64
	UnexpectedStarts uint64
	DecodeErrors     uint64
	UnknownTypes     uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{s: StatisticsSnapshot{StartTime: now, LastUpdateTime: now}}
}

// Update records one decode outcome: a frame, a decode error, or both nil
// for nothing
func (s *Statistics) Update(frame *Frame, decodeErr error) {
	if frame == nil && decodeErr == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.s.TotalFrames++
	s.s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		var fe *FrameError
		var ue *UnknownFrameTypeError
		switch {
		case errors.As(decodeErr, &fe):
			switch fe.Kind {
			case ChecksumFailure:
				s.s.ChecksumErrors++
			case FrameTooLarge:
				s.s.OversizeFrames++
			case UnexpectedStartByte:
				s.s.UnexpectedStarts++
			default:
				s.s.DecodeErrors++
			}
		case errors.As(decodeErr, &ue):
			s.s.UnknownTypes++
		default:
			s.s.DecodeErrors++
		}
		return
	}

	s.s.ValidFrames++
}

// Snapshot returns a copy of the counters with rates calculated
func (s *Statistics) Snapshot() StatisticsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.s
	elapsed := time.Since(snap.StartTime).Seconds()
	if elapsed > 0 {
		snap.FrameRate = float64(snap.TotalFrames) / elapsed
		snap.ErrorRate = float64(snap.Errors()) / elapsed
	}
	return snap
}

// Errors returns the total number of failed frames
func (s StatisticsSnapshot) Errors() uint64 {
	return s.ChecksumErrors + s.OversizeFrames + s.UnexpectedStarts + s.DecodeErrors + s.UnknownTypes
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	percent := func(n uint64) float64 {
		if snap.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(snap.TotalFrames)
	}

	elapsed := time.Since(snap.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", snap.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", snap.ValidFrames, percent(snap.ValidFrames))

	if snap.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", snap.ChecksumErrors, percent(snap.ChecksumErrors))
	}
	if snap.OversizeFrames > 0 {
		result += fmt.Sprintf("Oversize Frames: %8d (%.1f%%)\n", snap.OversizeFrames, percent(snap.OversizeFrames))
	}
	if snap.UnexpectedStarts > 0 {
		result += fmt.Sprintf("Unexpected Start:%8d (%.1f%%)\n", snap.UnexpectedStarts, percent(snap.UnexpectedStarts))
	}
	if snap.UnknownTypes > 0 {
		result += fmt.Sprintf("Unknown Types:   %8d (%.1f%%)\n", snap.UnknownTypes, percent(snap.UnknownTypes))
	}
	if snap.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", snap.DecodeErrors, percent(snap.DecodeErrors))
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", snap.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", snap.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.s = StatisticsSnapshot{StartTime: now, LastUpdateTime: now}
}
