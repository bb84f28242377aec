// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.Received.Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d\n", timestamp, f.Type, uint8(f.Type), f.Length())

	if f.IsRequest() {
		result += fmt.Sprintf("  Data: %s\n", FormatHex(f.Data))
		return result
	}

	resp, err := ParseResponse(f)
	if err != nil {
		result += fmt.Sprintf("  Error: %v\n", err)
		result += fmt.Sprintf("  Data: %s\n", FormatHex(f.Data))
		return result
	}
	return result + FormatResponse(resp)
}

// FormatResponse formats the fields of a response variant, one per line
func FormatResponse(resp Response) string {
	switch r := resp.(type) {
	case *TransmitStatus:
		return fmt.Sprintf("  Frame ID: %d\n  Dest16: 0x%04X\n  Retries: %d\n  Delivery: %s\n  Discovery: %s\n",
			r.ID, r.Dest16, r.Retries, r.Delivery, r.Discovery)
	case *ReceivePacket:
		return fmt.Sprintf("  Source: %016X/%04X\n  Options: 0x%02X\n  Payload: %s\n",
			r.Src64, r.Src16, r.Options, FormatHex(r.Payload))
	case *ExplicitReceivePacket:
		return fmt.Sprintf("  Source: %016X/%04X\n  Endpoints: 0x%02X -> 0x%02X\n  Cluster: 0x%04X Profile: 0x%04X\n  Options: 0x%02X\n  Payload: %s\n",
			r.Src64, r.Src16, r.SrcEndpoint, r.DstEndpoint, r.ClusterID, r.ProfileID, r.Options, FormatHex(r.Payload))
	case *IOSampleIndicator:
		return fmt.Sprintf("  Source: %016X/%04X\n%s", r.Src64, r.Src16, formatIOSample(r.Sample))
	case *ATCommandResponse:
		return fmt.Sprintf("  Frame ID: %d\n  Command: %s\n  Status: %s\n  Value: %s\n",
			r.ID, r.Command, r.Status, FormatHex(r.Value))
	case *RemoteATCommandResponse:
		return fmt.Sprintf("  Frame ID: %d\n  Source: %016X/%04X\n  Command: %s\n  Status: %s\n  Value: %s\n",
			r.ID, r.Src64, r.Src16, r.Command, r.Status, FormatHex(r.Value))
	case *ModemStatus:
		return fmt.Sprintf("  Event: %s\n", r.Event)
	default:
		return ""
	}
}

func formatIOSample(s IOSample) string {
	var b strings.Builder
	if s.DigitalMask != 0 {
		fmt.Fprintf(&b, "  Digital: mask=0x%04X value=0x%04X\n", s.DigitalMask, s.Digital)
	}
	for ch := 0; ch < analogChannelCount; ch++ {
		if v, ok := s.AnalogValue(ch); ok {
			fmt.Fprintf(&b, "  Analog %d: %d\n", ch, v)
		}
	}
	return b.String()
}

// FormatHex formats bytes as space-separated hex
func FormatHex(data []byte) string {
	if len(data) == 0 {
		return "(none)"
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// String returns the human-readable name for a frame type
func (t FrameType) String() string {
	switch t {
	case TypeATCommand:
		return "AT_COMMAND"
	case TypeTransmitRequest:
		return "TRANSMIT_REQUEST"
	case TypeExplicitTransmit:
		return "EXPLICIT_TRANSMIT"
	case TypeRemoteATCommand:
		return "REMOTE_AT_COMMAND"
	case TypeATCommandResponse:
		return "AT_COMMAND_RESPONSE"
	case TypeModemStatus:
		return "MODEM_STATUS"
	case TypeTransmitStatus:
		return "TRANSMIT_STATUS"
	case TypeReceivePacket:
		return "RECEIVE_PACKET"
	case TypeExplicitReceivePacket:
		return "EXPLICIT_RECEIVE_PACKET"
	case TypeIOSampleIndicator:
		return "IO_SAMPLE"
	case TypeRemoteATCommandResponse:
		return "REMOTE_AT_COMMAND_RESPONSE"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", uint8(t))
	}
}

func (s DeliveryStatus) String() string {
	switch s {
	case DeliverySuccess:
		return "SUCCESS"
	case DeliveryMACAckFailure:
		return "MAC_ACK_FAILURE"
	case DeliveryCCAFailure:
		return "CCA_FAILURE"
	case DeliveryInvalidEndpoint:
		return "INVALID_ENDPOINT"
	case DeliveryNetworkAckFailure:
		return "NETWORK_ACK_FAILURE"
	case DeliveryNotJoined:
		return "NOT_JOINED"
	case DeliverySelfAddressed:
		return "SELF_ADDRESSED"
	case DeliveryAddressNotFound:
		return "ADDRESS_NOT_FOUND"
	case DeliveryRouteNotFound:
		return "ROUTE_NOT_FOUND"
	case DeliveryBroadcastRelayFail:
		return "BROADCAST_RELAY_FAILURE"
	case DeliveryInvalidBindingIndex:
		return "INVALID_BINDING_INDEX"
	case DeliveryResourceError:
		return "RESOURCE_ERROR"
	case DeliveryPayloadTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case DeliveryIndirectNotReq:
		return "INDIRECT_MESSAGE_UNREQUESTED"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", uint8(s))
	}
}

func (s DiscoveryStatus) String() string {
	switch s {
	case DiscoveryNone:
		return "NONE"
	case DiscoveryAddress:
		return "ADDRESS"
	case DiscoveryRoute:
		return "ROUTE"
	case DiscoveryAddrRoute:
		return "ADDRESS_AND_ROUTE"
	case DiscoveryExtTimeout:
		return "EXTENDED_TIMEOUT"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", uint8(s))
	}
}

func (s ATStatus) String() string {
	switch s {
	case ATStatusOK:
		return "OK"
	case ATStatusError:
		return "ERROR"
	case ATStatusInvalidCommand:
		return "INVALID_COMMAND"
	case ATStatusInvalidParameter:
		return "INVALID_PARAMETER"
	case ATStatusTxFailure:
		return "TX_FAILURE"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", uint8(s))
	}
}

func (e ModemEvent) String() string {
	switch e {
	case ModemHardwareReset:
		return "HARDWARE_RESET"
	case ModemWatchdogReset:
		return "WATCHDOG_RESET"
	case ModemJoinedNetwork:
		return "JOINED_NETWORK"
	case ModemDisassociated:
		return "DISASSOCIATED"
	case ModemCoordinatorStarted:
		return "COORDINATOR_STARTED"
	case ModemKeyUpdated:
		return "SECURITY_KEY_UPDATED"
	case ModemVoltageExceeded:
		return "VOLTAGE_EXCEEDED"
	case ModemConfigChanged:
		return "CONFIG_CHANGED"
	case ModemStackError:
		return "STACK_ERROR"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", uint8(e))
	}
}
