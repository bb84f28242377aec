// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package xbee implements the API frame format spoken by the mesh radio modules
// on the well-site link.
//
// A frame is a start marker, a 16-bit big-endian length, a one-byte frame type,
// type-specific data and an 8-bit checksum. The length covers the frame type and
// the type-specific data. The checksum is 0xFF minus the low byte of the sum of
// every byte from the frame type through the end of the data.
//
// In escaped mode (API mode 2) the bytes 0x7E, 0x7D, 0x11 and 0x13 following the
// start marker are sent as 0x7D followed by the byte XOR 0x20.
package xbee

// Protocol framing bytes
const (
	StartByte = 0x7E
	EscByte   = 0x7D
	EscXor    = 0x20
	XonByte   = 0x11
	XoffByte  = 0x13
)

// Frame size limits
const (
	// MaxFrameDataSize bounds the frame type plus type-specific data.
	MaxFrameDataSize = 256

	// MaxPayloadSize is the largest RF payload we put in one transmit request.
	MaxPayloadSize = 84

	headerSize = 3 // start + length(2)
)

// Special addresses
const (
	// AddressBroadcast is the 64-bit broadcast address. Sites whose radio
	// address is not yet known are addressed with it.
	AddressBroadcast uint64 = 0x000000000000FFFF

	// AddressCoordinator is the 64-bit address of the network coordinator.
	AddressCoordinator uint64 = 0x0000000000000000

	// Address16Unknown marks an unknown 16-bit network address.
	Address16Unknown uint16 = 0xFFFE
)

// FrameType is the one-byte discriminant identifying a frame variant.
type FrameType uint8

// Request frame types
const (
	TypeATCommand        FrameType = 0x08
	TypeTransmitRequest  FrameType = 0x10
	TypeExplicitTransmit FrameType = 0x11
	TypeRemoteATCommand  FrameType = 0x17
)

// Response frame types
const (
	TypeATCommandResponse       FrameType = 0x88
	TypeModemStatus             FrameType = 0x8A
	TypeTransmitStatus          FrameType = 0x8B
	TypeReceivePacket           FrameType = 0x90
	TypeExplicitReceivePacket   FrameType = 0x91
	TypeIOSampleIndicator       FrameType = 0x92
	TypeRemoteATCommandResponse FrameType = 0x97
)

// Transmit options
const (
	OptionNone          uint8 = 0x00
	OptionDisableACK    uint8 = 0x01
	OptionDisableRoute  uint8 = 0x02
	OptionEnableAPS     uint8 = 0x20
	OptionExtendedTimer uint8 = 0x40
)

// Remote AT command options
const (
	RemoteOptionNone        uint8 = 0x00
	RemoteOptionDisableACK  uint8 = 0x01
	RemoteOptionApplyChange uint8 = 0x02
)

// Receive options
const (
	ReceiveAcknowledged uint8 = 0x01
	ReceiveBroadcast    uint8 = 0x02
)

// DeliveryStatus is the radio-layer outcome of a unicast transmission.
type DeliveryStatus uint8

// Delivery status values
const (
	DeliverySuccess             DeliveryStatus = 0x00
	DeliveryMACAckFailure       DeliveryStatus = 0x01
	DeliveryCCAFailure          DeliveryStatus = 0x02
	DeliveryInvalidEndpoint     DeliveryStatus = 0x15
	DeliveryNetworkAckFailure   DeliveryStatus = 0x21
	DeliveryNotJoined           DeliveryStatus = 0x22
	DeliverySelfAddressed       DeliveryStatus = 0x23
	DeliveryAddressNotFound     DeliveryStatus = 0x24
	DeliveryRouteNotFound       DeliveryStatus = 0x25
	DeliveryBroadcastRelayFail  DeliveryStatus = 0x26
	DeliveryInvalidBindingIndex DeliveryStatus = 0x2B
	DeliveryResourceError       DeliveryStatus = 0x2C
	DeliveryPayloadTooLarge     DeliveryStatus = 0x74
	DeliveryIndirectNotReq      DeliveryStatus = 0x75
)

// DiscoveryStatus reports the overhead spent resolving a destination.
type DiscoveryStatus uint8

// Discovery status values
const (
	DiscoveryNone       DiscoveryStatus = 0x00
	DiscoveryAddress    DiscoveryStatus = 0x01
	DiscoveryRoute      DiscoveryStatus = 0x02
	DiscoveryAddrRoute  DiscoveryStatus = 0x03
	DiscoveryExtTimeout DiscoveryStatus = 0x40
)

// ATStatus is the status byte of a local or remote AT command response.
type ATStatus uint8

// AT status values
const (
	ATStatusOK               ATStatus = 0x00
	ATStatusError            ATStatus = 0x01
	ATStatusInvalidCommand   ATStatus = 0x02
	ATStatusInvalidParameter ATStatus = 0x03
	ATStatusTxFailure        ATStatus = 0x04
)

// ModemEvent is the event code carried by a modem status frame.
type ModemEvent uint8

// Modem status values
const (
	ModemHardwareReset      ModemEvent = 0x00
	ModemWatchdogReset      ModemEvent = 0x01
	ModemJoinedNetwork      ModemEvent = 0x02
	ModemDisassociated      ModemEvent = 0x03
	ModemCoordinatorStarted ModemEvent = 0x06
	ModemKeyUpdated         ModemEvent = 0x07
	ModemVoltageExceeded    ModemEvent = 0x0D
	ModemConfigChanged      ModemEvent = 0x11
	ModemStackError         ModemEvent = 0x80
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLengthHi
	stateLengthLo
	stateData
	stateChecksum
)
