// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"fmt"
)

// fieldID names a fixed-width field of a frame variant
type fieldID int

const (
	fieldFrameID fieldID = iota
	fieldDest64
	fieldDest16
	fieldSrc64
	fieldSrc16
	fieldRadius
	fieldOptions
	fieldSrcEndpoint
	fieldDstEndpoint
	fieldCluster
	fieldProfile
	fieldCommand
	fieldATStatus
	fieldRetries
	fieldDelivery
	fieldDiscovery
	fieldReceiveOptions
	fieldEvent
)

type fieldSpec struct {
	id     fieldID
	offset int
	size   int
}

// layout is the declarative table of a variant's fixed header.
// Multi-byte fields are big-endian. A variable tail (payload, AT value,
// samples) starts at size.
type layout struct {
	name   string
	fields []fieldSpec
	size   int
}

type fieldSize struct {
	id   fieldID
	size int
}

// newLayout lays the fields out back to back
func newLayout(name string, fields ...fieldSize) *layout {
	l := &layout{name: name}
	for _, f := range fields {
		l.fields = append(l.fields, fieldSpec{id: f.id, offset: l.size, size: f.size})
		l.size += f.size
	}
	return l
}

// Request layouts. The frame id is emitted by the encoder and is not part of
// the type-specific bytes.
var (
	transmitLayout = newLayout("transmit request",
		fieldSize{fieldDest64, 8},
		fieldSize{fieldDest16, 2},
		fieldSize{fieldRadius, 1},
		fieldSize{fieldOptions, 1},
	)
	explicitTransmitLayout = newLayout("explicit transmit request",
		fieldSize{fieldDest64, 8},
		fieldSize{fieldDest16, 2},
		fieldSize{fieldSrcEndpoint, 1},
		fieldSize{fieldDstEndpoint, 1},
		fieldSize{fieldCluster, 2},
		fieldSize{fieldProfile, 2},
		fieldSize{fieldRadius, 1},
		fieldSize{fieldOptions, 1},
	)
	atCommandLayout = newLayout("AT command",
		fieldSize{fieldCommand, 2},
	)
	remoteATCommandLayout = newLayout("remote AT command",
		fieldSize{fieldDest64, 8},
		fieldSize{fieldDest16, 2},
		fieldSize{fieldOptions, 1},
		fieldSize{fieldCommand, 2},
	)
)

// Response layouts, over the frame data that follows the frame type
var (
	transmitStatusLayout = newLayout("transmit status",
		fieldSize{fieldFrameID, 1},
		fieldSize{fieldDest16, 2},
		fieldSize{fieldRetries, 1},
		fieldSize{fieldDelivery, 1},
		fieldSize{fieldDiscovery, 1},
	)
	receivePacketLayout = newLayout("receive packet",
		fieldSize{fieldSrc64, 8},
		fieldSize{fieldSrc16, 2},
		fieldSize{fieldReceiveOptions, 1},
	)
	explicitReceiveLayout = newLayout("explicit receive packet",
		fieldSize{fieldSrc64, 8},
		fieldSize{fieldSrc16, 2},
		fieldSize{fieldSrcEndpoint, 1},
		fieldSize{fieldDstEndpoint, 1},
		fieldSize{fieldCluster, 2},
		fieldSize{fieldProfile, 2},
		fieldSize{fieldReceiveOptions, 1},
	)
	ioSampleLayout = newLayout("I/O sample indicator",
		fieldSize{fieldSrc64, 8},
		fieldSize{fieldSrc16, 2},
		fieldSize{fieldReceiveOptions, 1},
	)
	atResponseLayout = newLayout("AT command response",
		fieldSize{fieldFrameID, 1},
		fieldSize{fieldCommand, 2},
		fieldSize{fieldATStatus, 1},
	)
	remoteATResponseLayout = newLayout("remote AT command response",
		fieldSize{fieldFrameID, 1},
		fieldSize{fieldSrc64, 8},
		fieldSize{fieldSrc16, 2},
		fieldSize{fieldCommand, 2},
		fieldSize{fieldATStatus, 1},
	)
	modemStatusLayout = newLayout("modem status",
		fieldSize{fieldEvent, 1},
	)
)

func (l *layout) spec(id fieldID) (fieldSpec, bool) {
	for _, f := range l.fields {
		if f.id == id {
			return f, true
		}
	}
	return fieldSpec{}, false
}

// byteAt returns header byte i, taking field values from value.
// Returns 0 outside the header.
func (l *layout) byteAt(i int, value func(fieldID) uint64) byte {
	for _, f := range l.fields {
		if i >= f.offset && i < f.offset+f.size {
			shift := 8 * uint(f.offset+f.size-1-i)
			return byte(value(f.id) >> shift)
		}
	}
	return 0
}

// get reads a field from data. The caller has checked data against l.size.
func (l *layout) get(data []byte, id fieldID) uint64 {
	f, ok := l.spec(id)
	if !ok || f.offset+f.size > len(data) {
		return 0
	}
	var v uint64
	for _, b := range data[f.offset : f.offset+f.size] {
		v = v<<8 | uint64(b)
	}
	return v
}

// tail returns an owned copy of the bytes after the fixed header
func (l *layout) tail(data []byte) []byte {
	if len(data) <= l.size {
		return nil
	}
	return append([]byte(nil), data[l.size:]...)
}

// check verifies that data holds at least the fixed header
func (l *layout) check(t FrameType, data []byte) error {
	if len(data) < l.size {
		return &ShortFrameError{Type: t, Variant: l.name, Want: l.size, Got: len(data)}
	}
	return nil
}

// tailByte returns tail[i], or 0 when i is out of range
func tailByte(tail []byte, i int) byte {
	if i < 0 || i >= len(tail) {
		return 0
	}
	return tail[i]
}

// ShortFrameError is returned when frame data is shorter than its variant's header
type ShortFrameError struct {
	Type    FrameType
	Variant string
	Want    int
	Got     int
}

func (e *ShortFrameError) Error() string {
	return fmt.Sprintf("short %s frame (0x%02X): need %d data bytes, got %d", e.Variant, uint8(e.Type), e.Want, e.Got)
}

// UnknownFrameTypeError is returned for a frame type the gateway does not interpret
type UnknownFrameTypeError struct {
	Type FrameType
}

func (e *UnknownFrameTypeError) Error() string {
	return fmt.Sprintf("unknown frame type 0x%02X", uint8(e.Type))
}
