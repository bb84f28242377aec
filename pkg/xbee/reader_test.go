// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

// chunkReader serves scripted chunks and behaves like a serial port that
// times out once the script is exhausted
type chunkReader struct {
	chunks   [][]byte
	reads    int
	timeouts []time.Duration
	err      error
}

func (c *chunkReader) Read(p []byte) (int, error) {
	c.reads++
	if len(c.chunks) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func (c *chunkReader) SetReadTimeout(t time.Duration) error {
	c.timeouts = append(c.timeouts, t)
	return nil
}

var modemStatusFrame = []byte{0x7E, 0x00, 0x02, 0x8A, 0x06, 0x6F}

func TestReader_ReadFrame(t *testing.T) {
	src := &chunkReader{chunks: [][]byte{atIDFrame[:3], atIDFrame[3:]}}
	r := NewReader(src, true)

	res := r.ReadFrame(100 * time.Millisecond)
	if res.Status != ReadReady {
		t.Fatalf("Expected ReadReady, got %s (%v)", res.Status, res.Err)
	}
	if res.Frame.Type != TypeATCommand {
		t.Errorf("Unexpected frame type %s", res.Frame.Type)
	}
	if len(src.timeouts) == 0 || src.timeouts[0] > 100*time.Millisecond {
		t.Errorf("Read timeout should be bounded by the call timeout: %v", src.timeouts)
	}
}

func TestReader_CarriesOverBytes(t *testing.T) {
	both := append(append([]byte(nil), atIDFrame...), modemStatusFrame...)
	src := &chunkReader{chunks: [][]byte{both}}
	r := NewReader(src, true)

	first := r.ReadFrame(50 * time.Millisecond)
	if first.Status != ReadReady || first.Frame.Type != TypeATCommand {
		t.Fatalf("Expected AT command frame first, got %s", first.Status)
	}
	reads := src.reads

	second := r.ReadFrame(50 * time.Millisecond)
	if second.Status != ReadReady || second.Frame.Type != TypeModemStatus {
		t.Fatalf("Expected modem status frame second, got %s", second.Status)
	}
	if src.reads != reads {
		t.Error("Second frame should come from carried-over bytes")
	}
}

func TestReader_TimesOut(t *testing.T) {
	src := &chunkReader{chunks: [][]byte{atIDFrame[:5]}}
	r := NewReader(src, true)

	start := time.Now()
	res := r.ReadFrame(20 * time.Millisecond)
	if res.Status != ReadTimedOut {
		t.Fatalf("Expected ReadTimedOut, got %s", res.Status)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("ReadFrame returned before the timeout")
	}
	if !r.Decoder().InFrame() {
		t.Error("Partial frame should be kept until Reset")
	}
	r.Reset()
	if r.Decoder().InFrame() {
		t.Error("Reset should drop the partial frame")
	}
}

func TestReader_FrameError(t *testing.T) {
	bad := append([]byte(nil), atIDFrame...)
	bad[len(bad)-1] ^= 0xFF
	src := &chunkReader{chunks: [][]byte{bad, modemStatusFrame}}
	r := NewReader(src, true)

	res := r.ReadFrame(50 * time.Millisecond)
	if res.Status != ReadError {
		t.Fatalf("Expected ReadError, got %s", res.Status)
	}
	if !errors.Is(res.Err, &FrameError{Kind: ChecksumFailure}) {
		t.Errorf("Expected checksum failure, got %v", res.Err)
	}

	res = r.ReadFrame(50 * time.Millisecond)
	if res.Status != ReadReady || res.Frame.Type != TypeModemStatus {
		t.Fatalf("Reader should recover after a frame error, got %s", res.Status)
	}

	snap := r.Statistics().Snapshot()
	if snap.TotalFrames != 2 || snap.ValidFrames != 1 || snap.ChecksumErrors != 1 {
		t.Errorf("Unexpected statistics: %+v", snap)
	}
}

func TestReader_StreamError(t *testing.T) {
	src := &chunkReader{err: io.ErrUnexpectedEOF}
	r := NewReader(src, true)

	res := r.ReadFrame(50 * time.Millisecond)
	if res.Status != ReadError || !errors.Is(res.Err, io.ErrUnexpectedEOF) {
		t.Fatalf("Expected wrapped stream error, got %s (%v)", res.Status, res.Err)
	}
}

// ============================================================
// Capture Tests
// ============================================================

func TestCapture_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewCaptureWriter(&buf)

	frames := []*Frame{
		NewFrame(TypeTransmitStatus, []byte{0x01, 0xFF, 0xFE, 0x00, 0x00, 0x00}),
		NewFrame(TypeModemStatus, []byte{0x06}),
	}
	frames[0].Received = time.Unix(1700000000, 5)
	if err := w.WriteFrame(frames[0], DirectionRx); err != nil {
		t.Fatalf("WriteFrame error: %v", err)
	}
	if err := w.WriteFrame(frames[1], DirectionTx); err != nil {
		t.Fatalf("WriteFrame error: %v", err)
	}

	r := NewCaptureReader(&buf)
	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	f := rec.Frame()
	if f.Type != TypeTransmitStatus || !bytes.Equal(f.Data, frames[0].Data) {
		t.Errorf("First record mismatch: %+v", rec)
	}
	if !f.Received.Equal(frames[0].Received) || rec.Direction != DirectionRx {
		t.Errorf("First record metadata mismatch: %+v", rec)
	}

	rec, err = r.Next()
	if err != nil || rec.Type != uint8(TypeModemStatus) || rec.Direction != DirectionTx {
		t.Fatalf("Second record mismatch: %+v (%v)", rec, err)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Expected io.EOF at end of capture, got %v", err)
	}
}
