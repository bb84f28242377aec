// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

// Checksum computes the frame checksum over the frame type and data bytes
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return 0xFF - sum
}

// VerifyChecksum reports whether cs is the checksum of data.
// The low byte of the sum of every byte plus the checksum must be 0xFF.
func VerifyChecksum(data []byte, cs byte) bool {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum+cs == 0xFF
}
