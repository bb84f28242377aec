// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"fmt"
)

// Analog channel numbers
const (
	AnalogAD0          = 0
	AnalogAD1          = 1
	AnalogAD2          = 2
	AnalogAD3          = 3
	AnalogSupplyVolts  = 7
	analogChannelCount = 8
)

// IOSample is one set of I/O line readings, as carried by an I/O sample
// indicator frame or returned by the IS command
type IOSample struct {
	DigitalMask uint16
	AnalogMask  uint8
	Digital     uint16
	Analog      [analogChannelCount]uint16
}

// ParseIOSample parses sample data: sample count, digital mask (2), analog mask (1),
// digital samples (2, present when the digital mask is non-zero) and one 2-byte
// reading per analog mask bit
func ParseIOSample(data []byte) (IOSample, error) {
	var s IOSample
	if len(data) < 4 {
		return s, fmt.Errorf("short I/O sample: %d bytes", len(data))
	}
	if data[0] != 1 {
		return s, fmt.Errorf("unsupported I/O sample count %d", data[0])
	}
	s.DigitalMask = uint16(data[1])<<8 | uint16(data[2])
	s.AnalogMask = data[3]

	pos := 4
	if s.DigitalMask != 0 {
		if len(data) < pos+2 {
			return s, fmt.Errorf("short I/O sample: missing digital readings")
		}
		s.Digital = uint16(data[pos])<<8 | uint16(data[pos+1])
		pos += 2
	}
	for ch := 0; ch < analogChannelCount; ch++ {
		if s.AnalogMask&(1<<ch) == 0 {
			continue
		}
		if len(data) < pos+2 {
			return s, fmt.Errorf("short I/O sample: missing reading for analog channel %d", ch)
		}
		s.Analog[ch] = uint16(data[pos])<<8 | uint16(data[pos+1])
		pos += 2
	}
	return s, nil
}

// AnalogValue returns the reading of an analog channel, if it was sampled
func (s IOSample) AnalogValue(ch int) (uint16, bool) {
	if ch < 0 || ch >= analogChannelCount || s.AnalogMask&(1<<ch) == 0 {
		return 0, false
	}
	return s.Analog[ch], true
}

// DigitalValue returns the level of a digital line, if it was sampled
func (s IOSample) DigitalValue(line int) (bool, bool) {
	if line < 0 || line > 15 || s.DigitalMask&(1<<line) == 0 {
		return false, false
	}
	return s.Digital&(1<<line) != 0, true
}
