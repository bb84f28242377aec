// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"fmt"
	"time"
)

// FrameErrorKind classifies a failed parse attempt
type FrameErrorKind int

const (
	// ChecksumFailure means the received checksum did not match the frame bytes
	ChecksumFailure FrameErrorKind = iota + 1

	// FrameTooLarge means the declared length is zero or exceeds MaxFrameDataSize
	FrameTooLarge

	// UnexpectedStartByte means a start marker arrived inside a frame.
	// Only detected in escaped mode, where the marker cannot appear in frame bytes.
	UnexpectedStartByte
)

// String returns the name of the error kind
func (k FrameErrorKind) String() string {
	switch k {
	case ChecksumFailure:
		return "checksum failure"
	case FrameTooLarge:
		return "frame too large"
	case UnexpectedStartByte:
		return "unexpected start byte"
	default:
		return fmt.Sprintf("frame error %d", int(k))
	}
}

// FrameError is returned by the decoder when a parse attempt fails.
// The decoder has already reset when it is returned.
type FrameError struct {
	Kind   FrameErrorKind
	Detail string
}

func (e *FrameError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Detail
}

// Is matches any *FrameError of the same kind, so errors.Is(err, &FrameError{Kind: k}) works
func (e *FrameError) Is(target error) bool {
	t, ok := target.(*FrameError)
	return ok && t.Kind == e.Kind
}

// Decoder implements the API frame decoder state machine
type Decoder struct {
	escaped    bool
	state      int
	escapeNext bool
	length     int
	index      int
	sum        byte
	buffer     [MaxFrameDataSize]byte
	rawBuffer  []byte // raw bytes of the frame in progress, including framing
}

// NewDecoder creates a frame decoder. escaped selects API mode 2 framing.
func NewDecoder(escaped bool) *Decoder {
	return &Decoder{
		escaped:   escaped,
		state:     stateIdle,
		rawBuffer: make([]byte, 0, 2*(MaxFrameDataSize+headerSize+1)),
	}
}

// Escaped reports whether the decoder runs in API mode 2
func (d *Decoder) Escaped() bool {
	return d.escaped
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.escapeNext = false
	d.length = 0
	d.index = 0
	d.sum = 0
	d.rawBuffer = d.rawBuffer[:0]
}

// InFrame reports whether a frame has been started but not finished
func (d *Decoder) InFrame() bool {
	return d.state != stateIdle
}

// RawBytes returns the raw bytes accumulated since the current frame started
func (d *Decoder) RawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed frame, nil/nil if the frame is incomplete, or a
// *FrameError if the parse attempt failed.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	if b == StartByte && (d.state == stateIdle || d.escaped) {
		inFrame := d.state != stateIdle
		d.Reset()
		d.rawBuffer = append(d.rawBuffer, b)
		d.state = stateLengthHi
		if inFrame {
			// The marker starts the next frame
			return nil, &FrameError{Kind: UnexpectedStartByte}
		}
		return nil, nil
	}

	if d.state == stateIdle {
		// Line noise between frames
		return nil, nil
	}

	if len(d.rawBuffer) < cap(d.rawBuffer) {
		d.rawBuffer = append(d.rawBuffer, b)
	}

	if d.escaped {
		if d.escapeNext {
			b ^= EscXor
			d.escapeNext = false
		} else if b == EscByte {
			d.escapeNext = true
			return nil, nil
		}
	}

	switch d.state {
	case stateLengthHi:
		d.length = int(b) << 8
		d.state = stateLengthLo
		return nil, nil

	case stateLengthLo:
		d.length |= int(b)
		if d.length == 0 || d.length > MaxFrameDataSize {
			length := d.length
			d.Reset()
			return nil, &FrameError{
				Kind:   FrameTooLarge,
				Detail: fmt.Sprintf("declared length %d (max %d)", length, MaxFrameDataSize),
			}
		}
		d.state = stateData
		return nil, nil

	case stateData:
		d.buffer[d.index] = b
		d.index++
		d.sum += b
		if d.index >= d.length {
			d.state = stateChecksum
		}
		return nil, nil

	case stateChecksum:
		if d.sum+b != 0xFF {
			expected := 0xFF - d.sum
			d.Reset()
			return nil, &FrameError{
				Kind:   ChecksumFailure,
				Detail: fmt.Sprintf("expected 0x%02X, got 0x%02X", expected, b),
			}
		}

		frame := &Frame{
			Type:     FrameType(d.buffer[0]),
			Data:     append([]byte(nil), d.buffer[1:d.length]...),
			Received: time.Now(),
		}
		d.Reset()
		return frame, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid decoder state: %d", d.state)
	}
}
