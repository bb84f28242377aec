// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"fmt"
)

// EncodeFrame encodes a frame to wire format.
// It is the inverse of the decoder: decoding the result yields f again.
func EncodeFrame(f *Frame, escaped bool) ([]byte, error) {
	return encodeBody(f.Body(), escaped)
}

// EncodeRequest encodes a request variant to wire format: start marker, length,
// frame type, frame id, type-specific bytes and checksum
func EncodeRequest(r Request, escaped bool) ([]byte, error) {
	n := r.Len()
	body := make([]byte, 0, 2+n)
	body = append(body, byte(r.FrameType()), r.FrameID())
	for i := 0; i < n; i++ {
		body = append(body, r.ByteAt(i))
	}
	return encodeBody(body, escaped)
}

// encodeBody frames the checksummed bytes
func encodeBody(body []byte, escaped bool) ([]byte, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty frame body")
	}
	if len(body) > MaxFrameDataSize {
		return nil, fmt.Errorf("frame too large: %d bytes (max %d)", len(body), MaxFrameDataSize)
	}

	// Everything after the start marker: length, body, checksum
	data := make([]byte, 0, len(body)+3)
	data = append(data, byte(len(body)>>8), byte(len(body)))
	data = append(data, body...)
	data = append(data, Checksum(body))

	if escaped {
		data = escapeBytes(data)
	}

	out := make([]byte, 0, len(data)+1)
	out = append(out, StartByte)
	return append(out, data...), nil
}

// needsEscape reports whether b must be escaped in API mode 2
func needsEscape(b byte) bool {
	return b == StartByte || b == EscByte || b == XonByte || b == XoffByte
}

// escapeBytes replaces each reserved byte with ESC + (byte XOR EscXor)
func escapeBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)
	for _, b := range data {
		if needsEscape(b) {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}
	return result
}

// UnescapeBytes removes API mode 2 escaping.
// This is the inverse of the escaping applied by the encoder.
func UnescapeBytes(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))
	escapeNext := false

	for _, b := range data {
		if escapeNext {
			result = append(result, b^EscXor)
			escapeNext = false
		} else if b == EscByte {
			escapeNext = true
		} else {
			result = append(result, b)
		}
	}

	if escapeNext {
		return nil, fmt.Errorf("incomplete escape sequence at end of data")
	}

	return result, nil
}
