// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package field

import (
	"encoding/binary"
)

// BytesToRegisters converts big-endian register bytes to values
func BytesToRegisters(data []byte) []uint16 {
	regs := make([]uint16, len(data)/2)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return regs
}

// RegistersToBytes converts register values to big-endian bytes
func RegistersToBytes(regs []uint16) []byte {
	data := make([]byte, 2*len(regs))
	for i, v := range regs {
		binary.BigEndian.PutUint16(data[2*i:], v)
	}
	return data
}
