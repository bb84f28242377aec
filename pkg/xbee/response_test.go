// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// ============================================================
// ParseResponse Tests
// ============================================================

func TestParseResponse_TransmitStatus(t *testing.T) {
	f := NewFrame(TypeTransmitStatus, []byte{0x07, 0x12, 0x34, 0x02, 0x24, 0x01})
	resp, err := ParseResponse(f)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	ts, ok := resp.(*TransmitStatus)
	if !ok {
		t.Fatalf("Expected *TransmitStatus, got %T", resp)
	}
	if ts.ID != 0x07 || ts.Dest16 != 0x1234 || ts.Retries != 2 {
		t.Errorf("Unexpected header fields: %+v", ts)
	}
	if ts.Delivery != DeliveryAddressNotFound || ts.Success() {
		t.Errorf("Expected ADDRESS_NOT_FOUND, got %s", ts.Delivery)
	}
	if ts.Discovery != DiscoveryAddress {
		t.Errorf("Expected ADDRESS discovery, got %s", ts.Discovery)
	}
}

func TestParseResponse_ReceivePacket(t *testing.T) {
	data := []byte{
		0x00, 0x13, 0xA2, 0x00, 0x40, 0xA1, 0xB2, 0xC3,
		0x7F, 0xFE,
		ReceiveAcknowledged,
		0x05, 0x03, 0x02, 0x00, 0x2A,
	}
	f := NewFrame(TypeReceivePacket, data)
	resp, err := ParseResponse(f)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	rp := resp.(*ReceivePacket)
	if rp.Src64 != 0x0013A20040A1B2C3 {
		t.Errorf("Unexpected source address 0x%016X", rp.Src64)
	}
	if rp.Src16 != 0x7FFE || rp.Broadcast() {
		t.Errorf("Unexpected src16 or options: %+v", rp)
	}
	if !bytes.Equal(rp.Payload, []byte{0x05, 0x03, 0x02, 0x00, 0x2A}) {
		t.Errorf("Unexpected payload % X", rp.Payload)
	}

	// The response owns its payload
	f.Data[11] = 0xFF
	if rp.Payload[0] != 0x05 {
		t.Error("Response payload aliases frame data")
	}
}

func TestParseResponse_ExplicitReceivePacket(t *testing.T) {
	data := []byte{
		0x00, 0x13, 0xA2, 0x00, 0x40, 0xA1, 0xB2, 0xC3,
		0xFF, 0xFE,
		0xE8, 0xE8,
		0x00, 0x11,
		0xC1, 0x05,
		ReceiveBroadcast,
		0xAA,
	}
	resp, err := ParseResponse(NewFrame(TypeExplicitReceivePacket, data))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	er := resp.(*ExplicitReceivePacket)
	if er.ClusterID != 0x0011 || er.ProfileID != 0xC105 || er.Options != ReceiveBroadcast {
		t.Errorf("Unexpected fields: %+v", er)
	}
	if !bytes.Equal(er.Payload, []byte{0xAA}) {
		t.Errorf("Unexpected payload % X", er.Payload)
	}
}

func TestParseResponse_IOSample(t *testing.T) {
	data := []byte{
		0x00, 0x13, 0xA2, 0x00, 0x40, 0xA1, 0xB2, 0xC3,
		0x12, 0x34,
		ReceiveAcknowledged,
		0x01,       // sample count
		0x00, 0x08, // digital mask: DIO3
		0x06,       // analog mask: AD1, AD2
		0x00, 0x08, // digital readings
		0x02, 0x0F, // AD1
		0x01, 0x00, // AD2
	}
	resp, err := ParseResponse(NewFrame(TypeIOSampleIndicator, data))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	io := resp.(*IOSampleIndicator)
	if v, ok := io.Sample.AnalogValue(AnalogAD1); !ok || v != 0x020F {
		t.Errorf("AD1: expected 0x020F, got 0x%04X (%v)", v, ok)
	}
	if v, ok := io.Sample.AnalogValue(AnalogAD2); !ok || v != 0x0100 {
		t.Errorf("AD2: expected 0x0100, got 0x%04X (%v)", v, ok)
	}
	if _, ok := io.Sample.AnalogValue(AnalogAD0); ok {
		t.Error("AD0 was not sampled")
	}
	if high, ok := io.Sample.DigitalValue(3); !ok || !high {
		t.Error("DIO3 should be sampled high")
	}
}

func TestParseResponse_ATCommandResponse(t *testing.T) {
	resp, err := ParseResponse(NewFrame(TypeATCommandResponse, []byte{0x01, 'I', 'D', 0x00, 0x10, 0x10}))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	at := resp.(*ATCommandResponse)
	if at.Command.String() != "ID" || at.Status != ATStatusOK {
		t.Errorf("Unexpected response: %+v", at)
	}
	if !bytes.Equal(at.Value, []byte{0x10, 0x10}) {
		t.Errorf("Unexpected value % X", at.Value)
	}
}

func TestParseResponse_RemoteATCommandResponse(t *testing.T) {
	data := []byte{
		0x03,
		0x00, 0x13, 0xA2, 0x00, 0x40, 0xA1, 0xB2, 0xC3,
		0xFF, 0xFE,
		'I', 'S',
		0x00,
		0x01, 0x00, 0x00, 0x02, 0x02, 0x0F,
	}
	resp, err := ParseResponse(NewFrame(TypeRemoteATCommandResponse, data))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	ra := resp.(*RemoteATCommandResponse)
	if ra.ID != 0x03 || ra.Src64 != 0x0013A20040A1B2C3 || ra.Command.String() != "IS" {
		t.Errorf("Unexpected header: %+v", ra)
	}
	sample, err := ParseIOSample(ra.Value)
	if err != nil {
		t.Fatalf("ParseIOSample error: %v", err)
	}
	if v, ok := sample.AnalogValue(AnalogAD1); !ok || v != 0x020F {
		t.Errorf("AD1: expected 0x020F, got 0x%04X", v)
	}
}

func TestParseResponse_ModemStatus(t *testing.T) {
	resp, err := ParseResponse(NewFrame(TypeModemStatus, []byte{0x02}))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if ms := resp.(*ModemStatus); ms.Event != ModemJoinedNetwork {
		t.Errorf("Expected JOINED_NETWORK, got %s", ms.Event)
	}
}

func TestParseResponse_UnknownType(t *testing.T) {
	_, err := ParseResponse(NewFrame(FrameType(0x42), []byte{0x00}))
	var ue *UnknownFrameTypeError
	if !errors.As(err, &ue) || ue.Type != 0x42 {
		t.Fatalf("Expected UnknownFrameTypeError, got %v", err)
	}
}

func TestParseResponse_ShortFrames(t *testing.T) {
	types := []FrameType{
		TypeTransmitStatus,
		TypeReceivePacket,
		TypeExplicitReceivePacket,
		TypeIOSampleIndicator,
		TypeATCommandResponse,
		TypeRemoteATCommandResponse,
		TypeModemStatus,
	}
	for _, ft := range types {
		_, err := ParseResponse(NewFrame(ft, nil))
		var se *ShortFrameError
		if !errors.As(err, &se) {
			t.Errorf("%s: expected ShortFrameError, got %v", ft, err)
		}
	}
}

func TestParseIOSample_Truncated(t *testing.T) {
	tests := [][]byte{
		{},
		{0x01, 0x00, 0x00},
		{0x01, 0x00, 0x01, 0x00},       // digital mask without readings
		{0x01, 0x00, 0x00, 0x01, 0x02}, // half an analog reading
		{0x02, 0x00, 0x00, 0x00},       // unsupported sample count
	}
	for i, data := range tests {
		if _, err := ParseIOSample(data); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatFrame(t *testing.T) {
	out := FormatFrame(NewFrame(TypeTransmitStatus, []byte{0x07, 0xFF, 0xFE, 0x00, 0x00, 0x00}))
	if !strings.Contains(out, "TRANSMIT_STATUS") || !strings.Contains(out, "Delivery: SUCCESS") {
		t.Errorf("Unexpected format output:\n%s", out)
	}

	out = FormatFrame(NewFrame(FrameType(0x42), []byte{0x01}))
	if !strings.Contains(out, "UNKNOWN_0x42") || !strings.Contains(out, "Error:") {
		t.Errorf("Unknown frame should be reported:\n%s", out)
	}
}
