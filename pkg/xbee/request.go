// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"fmt"
)

// Request is a frame variant the gateway sends to its radio module.
// The set of variants is closed: TransmitRequest, ExplicitTransmitRequest,
// ATCommand and RemoteATCommand.
type Request interface {
	// FrameType returns the frame type discriminant
	FrameType() FrameType
	// FrameID returns the id used to correlate the response; 0 asks for none
	FrameID() uint8
	// Len returns the number of type-specific bytes, excluding the frame id
	Len() int
	// ByteAt returns type-specific byte i, or 0 when i is out of range
	ByteAt(i int) byte

	isRequest()
}

// Command is a two-character AT command such as "ID" or "IS"
type Command [2]byte

// ParseCommand converts a two-character string to a Command
func ParseCommand(s string) (Command, error) {
	if len(s) != 2 {
		return Command{}, fmt.Errorf("AT command must be 2 characters, got %q", s)
	}
	return Command{s[0], s[1]}, nil
}

func (c Command) String() string {
	return string(c[:])
}

func (c Command) value() uint64 {
	return uint64(c[0])<<8 | uint64(c[1])
}

func commandFrom(v uint64) Command {
	return Command{byte(v >> 8), byte(v)}
}

// TransmitRequest (0x10) sends an RF payload to a remote module
type TransmitRequest struct {
	ID      uint8
	Dest64  uint64
	Dest16  uint16
	Radius  uint8
	Options uint8
	Payload []byte
}

// NewTransmitRequest creates a unicast transmit request with a private copy of payload
func NewTransmitRequest(id uint8, dest64 uint64, payload []byte) (*TransmitRequest, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}
	return &TransmitRequest{
		ID:      id,
		Dest64:  dest64,
		Dest16:  Address16Unknown,
		Payload: append([]byte(nil), payload...),
	}, nil
}

func (r *TransmitRequest) FrameType() FrameType { return TypeTransmitRequest }
func (r *TransmitRequest) FrameID() uint8       { return r.ID }
func (r *TransmitRequest) Len() int             { return transmitLayout.size + len(r.Payload) }
func (r *TransmitRequest) isRequest()           {}

func (r *TransmitRequest) ByteAt(i int) byte {
	if i < transmitLayout.size {
		return transmitLayout.byteAt(i, r.field)
	}
	return tailByte(r.Payload, i-transmitLayout.size)
}

func (r *TransmitRequest) field(id fieldID) uint64 {
	switch id {
	case fieldDest64:
		return r.Dest64
	case fieldDest16:
		return uint64(r.Dest16)
	case fieldRadius:
		return uint64(r.Radius)
	case fieldOptions:
		return uint64(r.Options)
	}
	return 0
}

// ExplicitTransmitRequest (0x11) is a transmit request with application-layer
// addressing
type ExplicitTransmitRequest struct {
	ID          uint8
	Dest64      uint64
	Dest16      uint16
	SrcEndpoint uint8
	DstEndpoint uint8
	ClusterID   uint16
	ProfileID   uint16
	Radius      uint8
	Options     uint8
	Payload     []byte
}

// NewExplicitTransmitRequest creates an explicit transmit request with a private
// copy of payload
func NewExplicitTransmitRequest(id uint8, dest64 uint64, srcEP, dstEP uint8, cluster, profile uint16, payload []byte) (*ExplicitTransmitRequest, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(payload), MaxPayloadSize)
	}
	return &ExplicitTransmitRequest{
		ID:          id,
		Dest64:      dest64,
		Dest16:      Address16Unknown,
		SrcEndpoint: srcEP,
		DstEndpoint: dstEP,
		ClusterID:   cluster,
		ProfileID:   profile,
		Payload:     append([]byte(nil), payload...),
	}, nil
}

func (r *ExplicitTransmitRequest) FrameType() FrameType { return TypeExplicitTransmit }
func (r *ExplicitTransmitRequest) FrameID() uint8       { return r.ID }
func (r *ExplicitTransmitRequest) Len() int             { return explicitTransmitLayout.size + len(r.Payload) }
func (r *ExplicitTransmitRequest) isRequest()           {}

func (r *ExplicitTransmitRequest) ByteAt(i int) byte {
	if i < explicitTransmitLayout.size {
		return explicitTransmitLayout.byteAt(i, r.field)
	}
	return tailByte(r.Payload, i-explicitTransmitLayout.size)
}

func (r *ExplicitTransmitRequest) field(id fieldID) uint64 {
	switch id {
	case fieldDest64:
		return r.Dest64
	case fieldDest16:
		return uint64(r.Dest16)
	case fieldSrcEndpoint:
		return uint64(r.SrcEndpoint)
	case fieldDstEndpoint:
		return uint64(r.DstEndpoint)
	case fieldCluster:
		return uint64(r.ClusterID)
	case fieldProfile:
		return uint64(r.ProfileID)
	case fieldRadius:
		return uint64(r.Radius)
	case fieldOptions:
		return uint64(r.Options)
	}
	return 0
}

// ATCommand (0x08) queries or sets a parameter on the local module.
// An empty Value is a query.
type ATCommand struct {
	ID      uint8
	Command Command
	Value   []byte
}

// NewATCommand creates a local AT command with a private copy of value
func NewATCommand(id uint8, cmd string, value []byte) (*ATCommand, error) {
	c, err := ParseCommand(cmd)
	if err != nil {
		return nil, err
	}
	return &ATCommand{ID: id, Command: c, Value: append([]byte(nil), value...)}, nil
}

func (r *ATCommand) FrameType() FrameType { return TypeATCommand }
func (r *ATCommand) FrameID() uint8       { return r.ID }
func (r *ATCommand) Len() int             { return atCommandLayout.size + len(r.Value) }
func (r *ATCommand) isRequest()           {}

func (r *ATCommand) ByteAt(i int) byte {
	if i < atCommandLayout.size {
		return atCommandLayout.byteAt(i, r.field)
	}
	return tailByte(r.Value, i-atCommandLayout.size)
}

func (r *ATCommand) field(id fieldID) uint64 {
	if id == fieldCommand {
		return r.Command.value()
	}
	return 0
}

// RemoteATCommand (0x17) queries or sets a parameter on a remote module
type RemoteATCommand struct {
	ID      uint8
	Dest64  uint64
	Dest16  uint16
	Options uint8
	Command Command
	Value   []byte
}

// NewRemoteATCommand creates a remote AT command with a private copy of value.
// Changes are applied on the remote module immediately.
func NewRemoteATCommand(id uint8, dest64 uint64, cmd string, value []byte) (*RemoteATCommand, error) {
	c, err := ParseCommand(cmd)
	if err != nil {
		return nil, err
	}
	return &RemoteATCommand{
		ID:      id,
		Dest64:  dest64,
		Dest16:  Address16Unknown,
		Options: RemoteOptionApplyChange,
		Command: c,
		Value:   append([]byte(nil), value...),
	}, nil
}

func (r *RemoteATCommand) FrameType() FrameType { return TypeRemoteATCommand }
func (r *RemoteATCommand) FrameID() uint8       { return r.ID }
func (r *RemoteATCommand) Len() int             { return remoteATCommandLayout.size + len(r.Value) }
func (r *RemoteATCommand) isRequest()           {}

func (r *RemoteATCommand) ByteAt(i int) byte {
	if i < remoteATCommandLayout.size {
		return remoteATCommandLayout.byteAt(i, r.field)
	}
	return tailByte(r.Value, i-remoteATCommandLayout.size)
}

func (r *RemoteATCommand) field(id fieldID) uint64 {
	switch id {
	case fieldDest64:
		return r.Dest64
	case fieldDest16:
		return uint64(r.Dest16)
	case fieldOptions:
		return uint64(r.Options)
	case fieldCommand:
		return r.Command.value()
	}
	return 0
}
