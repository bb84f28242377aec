// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

// Response is a frame variant received from the radio module.
// The set of variants is closed; ParseResponse is the only constructor.
type Response interface {
	FrameType() FrameType
	isResponse()
}

// TransmitStatus (0x8B) reports the delivery outcome of a transmit request
type TransmitStatus struct {
	ID        uint8
	Dest16    uint16
	Retries   uint8
	Delivery  DeliveryStatus
	Discovery DiscoveryStatus
}

func (r *TransmitStatus) FrameType() FrameType { return TypeTransmitStatus }
func (r *TransmitStatus) isResponse()          {}

// Success reports whether the payload was delivered
func (r *TransmitStatus) Success() bool { return r.Delivery == DeliverySuccess }

// ReceivePacket (0x90) carries an RF payload from a remote module
type ReceivePacket struct {
	Src64   uint64
	Src16   uint16
	Options uint8
	Payload []byte
}

func (r *ReceivePacket) FrameType() FrameType { return TypeReceivePacket }
func (r *ReceivePacket) isResponse()          {}

// Broadcast reports whether the packet was sent as a broadcast
func (r *ReceivePacket) Broadcast() bool { return r.Options&ReceiveBroadcast != 0 }

// ExplicitReceivePacket (0x91) is a receive packet with application-layer addressing
type ExplicitReceivePacket struct {
	Src64       uint64
	Src16       uint16
	SrcEndpoint uint8
	DstEndpoint uint8
	ClusterID   uint16
	ProfileID   uint16
	Options     uint8
	Payload     []byte
}

func (r *ExplicitReceivePacket) FrameType() FrameType { return TypeExplicitReceivePacket }
func (r *ExplicitReceivePacket) isResponse()          {}

// IOSampleIndicator (0x92) carries an I/O sample pushed by a remote module
type IOSampleIndicator struct {
	Src64   uint64
	Src16   uint16
	Options uint8
	Sample  IOSample
}

func (r *IOSampleIndicator) FrameType() FrameType { return TypeIOSampleIndicator }
func (r *IOSampleIndicator) isResponse()          {}

// ATCommandResponse (0x88) answers a local AT command
type ATCommandResponse struct {
	ID      uint8
	Command Command
	Status  ATStatus
	Value   []byte
}

func (r *ATCommandResponse) FrameType() FrameType { return TypeATCommandResponse }
func (r *ATCommandResponse) isResponse()          {}

// RemoteATCommandResponse (0x97) answers a remote AT command
type RemoteATCommandResponse struct {
	ID      uint8
	Src64   uint64
	Src16   uint16
	Command Command
	Status  ATStatus
	Value   []byte
}

func (r *RemoteATCommandResponse) FrameType() FrameType { return TypeRemoteATCommandResponse }
func (r *RemoteATCommandResponse) isResponse()          {}

// ModemStatus (0x8A) reports a link-level event on the local module
type ModemStatus struct {
	Event ModemEvent
}

func (r *ModemStatus) FrameType() FrameType { return TypeModemStatus }
func (r *ModemStatus) isResponse()          {}

// ParseResponse interprets a decoded frame as a response variant.
// Variable-length parts are copied so the response never aliases f.Data.
// Unknown frame types yield *UnknownFrameTypeError; data shorter than the
// variant's header yields *ShortFrameError.
func ParseResponse(f *Frame) (Response, error) {
	d := f.Data
	switch f.Type {
	case TypeTransmitStatus:
		l := transmitStatusLayout
		if err := l.check(f.Type, d); err != nil {
			return nil, err
		}
		return &TransmitStatus{
			ID:        uint8(l.get(d, fieldFrameID)),
			Dest16:    uint16(l.get(d, fieldDest16)),
			Retries:   uint8(l.get(d, fieldRetries)),
			Delivery:  DeliveryStatus(l.get(d, fieldDelivery)),
			Discovery: DiscoveryStatus(l.get(d, fieldDiscovery)),
		}, nil

	case TypeReceivePacket:
		l := receivePacketLayout
		if err := l.check(f.Type, d); err != nil {
			return nil, err
		}
		return &ReceivePacket{
			Src64:   l.get(d, fieldSrc64),
			Src16:   uint16(l.get(d, fieldSrc16)),
			Options: uint8(l.get(d, fieldReceiveOptions)),
			Payload: l.tail(d),
		}, nil

	case TypeExplicitReceivePacket:
		l := explicitReceiveLayout
		if err := l.check(f.Type, d); err != nil {
			return nil, err
		}
		return &ExplicitReceivePacket{
			Src64:       l.get(d, fieldSrc64),
			Src16:       uint16(l.get(d, fieldSrc16)),
			SrcEndpoint: uint8(l.get(d, fieldSrcEndpoint)),
			DstEndpoint: uint8(l.get(d, fieldDstEndpoint)),
			ClusterID:   uint16(l.get(d, fieldCluster)),
			ProfileID:   uint16(l.get(d, fieldProfile)),
			Options:     uint8(l.get(d, fieldReceiveOptions)),
			Payload:     l.tail(d),
		}, nil

	case TypeIOSampleIndicator:
		l := ioSampleLayout
		if err := l.check(f.Type, d); err != nil {
			return nil, err
		}
		sample, err := ParseIOSample(d[l.size:])
		if err != nil {
			return nil, err
		}
		return &IOSampleIndicator{
			Src64:   l.get(d, fieldSrc64),
			Src16:   uint16(l.get(d, fieldSrc16)),
			Options: uint8(l.get(d, fieldReceiveOptions)),
			Sample:  sample,
		}, nil

	case TypeATCommandResponse:
		l := atResponseLayout
		if err := l.check(f.Type, d); err != nil {
			return nil, err
		}
		return &ATCommandResponse{
			ID:      uint8(l.get(d, fieldFrameID)),
			Command: commandFrom(l.get(d, fieldCommand)),
			Status:  ATStatus(l.get(d, fieldATStatus)),
			Value:   l.tail(d),
		}, nil

	case TypeRemoteATCommandResponse:
		l := remoteATResponseLayout
		if err := l.check(f.Type, d); err != nil {
			return nil, err
		}
		return &RemoteATCommandResponse{
			ID:      uint8(l.get(d, fieldFrameID)),
			Src64:   l.get(d, fieldSrc64),
			Src16:   uint16(l.get(d, fieldSrc16)),
			Command: commandFrom(l.get(d, fieldCommand)),
			Status:  ATStatus(l.get(d, fieldATStatus)),
			Value:   l.tail(d),
		}, nil

	case TypeModemStatus:
		l := modemStatusLayout
		if err := l.check(f.Type, d); err != nil {
			return nil, err
		}
		return &ModemStatus{Event: ModemEvent(l.get(d, fieldEvent))}, nil

	default:
		return nil, &UnknownFrameTypeError{Type: f.Type}
	}
}
