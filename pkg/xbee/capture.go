// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Capture directions
const (
	DirectionRx uint8 = 0
	DirectionTx uint8 = 1
)

// CaptureRecord is one frame in a capture file. Records are written as a
// sequence of CBOR maps with integer keys.
type CaptureRecord struct {
	Time      int64  `cbor:"0,keyasint"` // unix nanoseconds
	Direction uint8  `cbor:"1,keyasint"`
	Type      uint8  `cbor:"2,keyasint"`
	Data      []byte `cbor:"3,keyasint"`
}

// Frame converts the record back to a frame
func (r CaptureRecord) Frame() *Frame {
	f := NewFrame(FrameType(r.Type), r.Data)
	f.Received = time.Unix(0, r.Time)
	return f
}

// CaptureWriter appends frames to a capture stream
type CaptureWriter struct {
	enc *cbor.Encoder
}

// NewCaptureWriter creates a capture writer on w
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{enc: cbor.NewEncoder(w)}
}

// WriteFrame appends one frame
func (c *CaptureWriter) WriteFrame(f *Frame, direction uint8) error {
	ts := f.Received
	if ts.IsZero() {
		ts = time.Now()
	}
	rec := CaptureRecord{
		Time:      ts.UnixNano(),
		Direction: direction,
		Type:      uint8(f.Type),
		Data:      f.Data,
	}
	if err := c.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode capture record: %w", err)
	}
	return nil
}

// CaptureReader reads frames back from a capture stream
type CaptureReader struct {
	dec *cbor.Decoder
}

// NewCaptureReader creates a capture reader on r
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the stream
func (c *CaptureReader) Next() (CaptureRecord, error) {
	var rec CaptureRecord
	if err := c.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("failed to decode capture record: %w", err)
	}
	return rec, nil
}
