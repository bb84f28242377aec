// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"fmt"
	"io"
	"time"
)

// TimeoutReader is a byte source whose reads give up after a timeout.
// A read that times out returns 0, nil.
type TimeoutReader interface {
	io.Reader
	SetReadTimeout(t time.Duration) error
}

// ReadStatus is the outcome of Reader.ReadFrame
type ReadStatus int

const (
	// ReadReady means a frame was decoded
	ReadReady ReadStatus = iota
	// ReadError means the stream failed or a parse attempt failed
	ReadError
	// ReadTimedOut means no complete frame arrived before the timeout
	ReadTimedOut
)

func (s ReadStatus) String() string {
	switch s {
	case ReadReady:
		return "ready"
	case ReadError:
		return "error"
	case ReadTimedOut:
		return "timed out"
	default:
		return fmt.Sprintf("status %d", int(s))
	}
}

// ReadResult carries a frame when Status is ReadReady and the cause when
// Status is ReadError
type ReadResult struct {
	Status ReadStatus
	Frame  *Frame
	Err    error
}

// Reader pulls frames out of a TimeoutReader. Bytes read past the end of a
// frame are kept for the next call.
type Reader struct {
	src     TimeoutReader
	decoder *Decoder
	stats   *Statistics
	buf     []byte
	pending []byte
}

// NewReader creates a frame reader over src
func NewReader(src TimeoutReader, escaped bool) *Reader {
	return &Reader{
		src:     src,
		decoder: NewDecoder(escaped),
		stats:   NewStatistics(),
		buf:     make([]byte, 256),
	}
}

// Statistics returns the reader's decode statistics
func (r *Reader) Statistics() *Statistics {
	return r.stats
}

// Decoder returns the reader's decoder
func (r *Reader) Decoder() *Decoder {
	return r.decoder
}

// Reset drops buffered bytes and any partial frame
func (r *Reader) Reset() {
	r.pending = nil
	r.decoder.Reset()
}

// ReadFrame returns the next frame, a parse or stream error, or a timeout.
// Frame errors do not poison the stream: the next call carries on after them.
func (r *Reader) ReadFrame(timeout time.Duration) ReadResult {
	deadline := time.Now().Add(timeout)

	for {
		for len(r.pending) > 0 {
			b := r.pending[0]
			r.pending = r.pending[1:]

			frame, err := r.decoder.DecodeByte(b)
			if err != nil {
				r.stats.Update(nil, err)
				return ReadResult{Status: ReadError, Err: err}
			}
			if frame != nil {
				r.stats.Update(frame, nil)
				return ReadResult{Status: ReadReady, Frame: frame}
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ReadResult{Status: ReadTimedOut}
		}
		if err := r.src.SetReadTimeout(remaining); err != nil {
			return ReadResult{Status: ReadError, Err: fmt.Errorf("set read timeout: %w", err)}
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.pending = append(r.pending[:0:0], r.buf[:n]...)
		}
		if err != nil && n == 0 {
			return ReadResult{Status: ReadError, Err: fmt.Errorf("read: %w", err)}
		}
	}
}
