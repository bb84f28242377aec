// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Node device types
const (
	DeviceCoordinator uint8 = 0
	DeviceRouter      uint8 = 1
	DeviceEndDevice   uint8 = 2
)

// Node is one entry of a node discovery (ND) answer
type Node struct {
	Addr16       uint16
	Addr64       uint64
	Identifier   string
	Parent16     uint16
	DeviceType   uint8
	Status       uint8
	Profile      uint16
	Manufacturer uint16
}

// DeviceTypeName names the node's role in the mesh
func (n Node) DeviceTypeName() string {
	switch n.DeviceType {
	case DeviceCoordinator:
		return "coordinator"
	case DeviceRouter:
		return "router"
	case DeviceEndDevice:
		return "end device"
	default:
		return fmt.Sprintf("type %d", n.DeviceType)
	}
}

// ParseNode interprets the value of an ND command response: MY, SH, SL, a
// NUL-terminated NI string, parent address, device type, status, profile
// and manufacturer. Trailing optional fields are ignored.
func ParseNode(value []byte) (Node, error) {
	const head = 2 + 8
	const tail = 2 + 1 + 1 + 2 + 2

	if len(value) < head+1+tail {
		return Node{}, &ShortFrameError{Type: TypeATCommandResponse, Variant: "node discovery", Want: head + 1 + tail, Got: len(value)}
	}

	n := Node{
		Addr16: binary.BigEndian.Uint16(value[0:2]),
		Addr64: binary.BigEndian.Uint64(value[2:10]),
	}

	end := bytes.IndexByte(value[head:], 0)
	if end < 0 {
		return Node{}, fmt.Errorf("node discovery: unterminated identifier")
	}
	n.Identifier = string(value[head : head+end])

	rest := value[head+end+1:]
	if len(rest) < tail {
		return Node{}, &ShortFrameError{Type: TypeATCommandResponse, Variant: "node discovery", Want: head + end + 1 + tail, Got: len(value)}
	}
	n.Parent16 = binary.BigEndian.Uint16(rest[0:2])
	n.DeviceType = rest[2]
	n.Status = rest[3]
	n.Profile = binary.BigEndian.Uint16(rest[4:6])
	n.Manufacturer = binary.BigEndian.Uint16(rest[6:8])
	return n, nil
}
