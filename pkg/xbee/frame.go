// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"time"
)

// Frame is one checksum-valid API frame as it came off the wire.
// Data holds the type-specific bytes that follow the frame type. Frames returned
// by the decoder own their data.
type Frame struct {
	Type     FrameType
	Data     []byte
	Received time.Time
}

// NewFrame creates a frame with a private copy of data
func NewFrame(t FrameType, data []byte) *Frame {
	return &Frame{Type: t, Data: append([]byte(nil), data...)}
}

// Length returns the value of the frame's length field
func (f *Frame) Length() int {
	return 1 + len(f.Data)
}

// Body returns the checksummed bytes: the frame type followed by the data
func (f *Frame) Body() []byte {
	body := make([]byte, 0, f.Length())
	body = append(body, byte(f.Type))
	return append(body, f.Data...)
}

// Checksum returns the checksum byte that terminates the frame on the wire
func (f *Frame) Checksum() byte {
	return Checksum(f.Body())
}

// IsRequest reports whether the frame type is one the gateway sends
func (f *Frame) IsRequest() bool {
	switch f.Type {
	case TypeATCommand, TypeTransmitRequest, TypeExplicitTransmit, TypeRemoteATCommand:
		return true
	}
	return false
}
