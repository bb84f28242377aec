// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package field

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goburrow/modbus"

	"github.com/Thermoquad/wellgate/pkg/xbee"
)

// ============================================================================
// Scripted radio
// ============================================================================

// fakeRadio decodes every request written to it and queues the frames its
// responder returns, like a local radio module relaying a remote terminal
type fakeRadio struct {
	mu       sync.Mutex
	requests []*xbee.Frame
	pending  []byte
	respond  func(req *xbee.Frame) [][]byte
}

func (f *fakeRadio) Write(p []byte) (int, error) {
	dec := xbee.NewDecoder(true)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range p {
		frame, err := dec.DecodeByte(b)
		if err != nil {
			return 0, err
		}
		if frame == nil {
			continue
		}
		f.requests = append(f.requests, frame)
		if f.respond != nil {
			for _, out := range f.respond(frame) {
				f.pending = append(f.pending, out...)
			}
		}
	}
	return len(p), nil
}

func (f *fakeRadio) Read(p []byte) (int, error) {
	f.mu.Lock()
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	f.mu.Unlock()
	if n == 0 {
		time.Sleep(time.Millisecond)
	}
	return n, nil
}

func (f *fakeRadio) SetReadTimeout(time.Duration) error { return nil }

func (f *fakeRadio) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

const terminalAddr uint64 = 0x0013A20040A1B2C3

func encode(t testing.TB, typ xbee.FrameType, data []byte) []byte {
	t.Helper()
	wire, err := xbee.EncodeFrame(xbee.NewFrame(typ, data), true)
	if err != nil {
		t.Fatalf("encode %s: %v", typ, err)
	}
	return wire
}

func transmitStatus(t testing.TB, id uint8, status xbee.DeliveryStatus) []byte {
	return encode(t, xbee.TypeTransmitStatus, []byte{id, 0x12, 0x34, 0x00, byte(status), 0x00})
}

func receivePacket(t testing.TB, src uint64, payload []byte) []byte {
	data := make([]byte, 11, 11+len(payload))
	binary.BigEndian.PutUint64(data[0:8], src)
	binary.BigEndian.PutUint16(data[8:10], 0x1234)
	data[10] = xbee.ReceiveAcknowledged
	return encode(t, xbee.TypeReceivePacket, append(data, payload...))
}

func remoteATResponse(t testing.TB, id uint8, src uint64, cmd string, status xbee.ATStatus, value []byte) []byte {
	data := make([]byte, 14, 14+len(value))
	data[0] = id
	binary.BigEndian.PutUint64(data[1:9], src)
	binary.BigEndian.PutUint16(data[9:11], 0x1234)
	data[11], data[12] = cmd[0], cmd[1]
	data[13] = byte(status)
	return encode(t, xbee.TypeRemoteATCommandResponse, append(data, value...))
}

func atResponse(t testing.TB, id uint8, cmd string, status xbee.ATStatus, value []byte) []byte {
	data := append([]byte{id, cmd[0], cmd[1], byte(status)}, value...)
	return encode(t, xbee.TypeATCommandResponse, data)
}

// rtuPackager frames PDUs for one slave the way a terminal does
func rtuPackager(slave uint8) *modbus.RTUClientHandler {
	h := &modbus.RTUClientHandler{}
	h.SlaveId = slave
	return h
}

// rtuFrame builds an RTU frame from slave with its CRC
func rtuFrame(slave, function uint8, data []byte) []byte {
	adu, _ := rtuPackager(slave).Encode(&modbus.ProtocolDataUnit{FunctionCode: function, Data: data})
	return adu
}

// rtuReadReply builds the RTU answer to a read of len(regs) registers
func rtuReadReply(slave uint8, regs ...uint16) []byte {
	data := append([]byte{byte(2 * len(regs))}, RegistersToBytes(regs)...)
	return rtuFrame(slave, modbus.FuncCodeReadHoldingRegisters, data)
}

// requestPayload returns the RTU ADU carried by a transmit request frame
func requestPayload(f *xbee.Frame) []byte {
	return f.Data[13:]
}

func newTestRadio(radio *fakeRadio) *RadioExchanger {
	return NewRadioExchanger(radio, true, 200*time.Millisecond, nil)
}

// ============================================================================
// Reads
// ============================================================================

func TestRadioExchanger_ReadRegisters(t *testing.T) {
	radio := &fakeRadio{}
	radio.respond = func(req *xbee.Frame) [][]byte {
		payload := requestPayload(req)
		pdu, err := rtuPackager(5).Decode(payload)
		if err != nil {
			t.Errorf("request payload is not an RTU frame: %v", err)
			return nil
		}
		if payload[0] != 5 || pdu.FunctionCode != modbus.FuncCodeReadHoldingRegisters {
			t.Errorf("Unexpected request slave %d function 0x%02X", payload[0], pdu.FunctionCode)
		}
		return [][]byte{
			transmitStatus(t, req.Data[0], xbee.DeliverySuccess),
			receivePacket(t, terminalAddr, rtuReadReply(5, 10, 20, 30)),
		}
	}

	ex := newTestRadio(radio)
	reply, err := ex.ReadRegisters(context.Background(), Target{Site: 5, Slave: 5, Address: terminalAddr}, 0, 3)
	if err != nil {
		t.Fatalf("ReadRegisters failed: %v", err)
	}
	want := []uint16{10, 20, 30}
	for i, v := range want {
		if reply.Registers[i] != v {
			t.Errorf("register %d: expected %d, got %d", i, v, reply.Registers[i])
		}
	}
	if reply.Source != terminalAddr {
		t.Errorf("Expected source %016X, got %016X", terminalAddr, reply.Source)
	}
}

func TestRadioExchanger_DataBeforeStatus(t *testing.T) {
	radio := &fakeRadio{}
	radio.respond = func(req *xbee.Frame) [][]byte {
		return [][]byte{
			receivePacket(t, terminalAddr, rtuReadReply(5, 7)),
			transmitStatus(t, req.Data[0], xbee.DeliverySuccess),
		}
	}

	reply, err := newTestRadio(radio).ReadRegisters(context.Background(), Target{Slave: 5, Address: terminalAddr}, 0, 1)
	if err != nil {
		t.Fatalf("ReadRegisters failed: %v", err)
	}
	if reply.Registers[0] != 7 {
		t.Errorf("Expected register 7, got %d", reply.Registers[0])
	}
}

func TestRadioExchanger_IgnoresStaleAndForeignFrames(t *testing.T) {
	radio := &fakeRadio{}
	radio.respond = func(req *xbee.Frame) [][]byte {
		id := req.Data[0]
		return [][]byte{
			transmitStatus(t, id+100, xbee.DeliveryNetworkAckFailure),
			encode(t, xbee.TypeModemStatus, []byte{byte(xbee.ModemJoinedNetwork)}),
			receivePacket(t, 0x0013A200DEADBEEF, rtuReadReply(5, 999)),
			transmitStatus(t, id, xbee.DeliverySuccess),
			receivePacket(t, terminalAddr, rtuReadReply(5, 42)),
		}
	}

	reply, err := newTestRadio(radio).ReadRegisters(context.Background(), Target{Slave: 5, Address: terminalAddr}, 0, 1)
	if err != nil {
		t.Fatalf("ReadRegisters failed: %v", err)
	}
	if reply.Registers[0] != 42 {
		t.Errorf("Expected register 42, got %d", reply.Registers[0])
	}
}

func TestRadioExchanger_BroadcastTargetAcceptsAnySource(t *testing.T) {
	radio := &fakeRadio{}
	radio.respond = func(req *xbee.Frame) [][]byte {
		return [][]byte{
			transmitStatus(t, req.Data[0], xbee.DeliverySuccess),
			receivePacket(t, terminalAddr, rtuReadReply(5, 1)),
		}
	}

	reply, err := newTestRadio(radio).ReadRegisters(context.Background(), Target{Slave: 5, Address: xbee.AddressBroadcast}, 0, 1)
	if err != nil {
		t.Fatalf("ReadRegisters failed: %v", err)
	}
	if reply.Source != terminalAddr {
		t.Errorf("Expected source %016X, got %016X", terminalAddr, reply.Source)
	}
}

// ============================================================================
// Failures
// ============================================================================

func TestRadioExchanger_DeliveryFailure(t *testing.T) {
	radio := &fakeRadio{}
	radio.respond = func(req *xbee.Frame) [][]byte {
		return [][]byte{transmitStatus(t, req.Data[0], xbee.DeliveryRouteNotFound)}
	}

	_, err := newTestRadio(radio).ReadRegisters(context.Background(), Target{Slave: 5, Address: terminalAddr}, 0, 1)
	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("Expected DeliveryError, got %v", err)
	}
	if de.Status != xbee.DeliveryRouteNotFound {
		t.Errorf("Expected route not found, got %s", de.Status)
	}
}

func TestRadioExchanger_LengthMismatch(t *testing.T) {
	radio := &fakeRadio{}
	radio.respond = func(req *xbee.Frame) [][]byte {
		return [][]byte{
			transmitStatus(t, req.Data[0], xbee.DeliverySuccess),
			receivePacket(t, terminalAddr, rtuReadReply(5, 1, 2)),
		}
	}

	_, err := newTestRadio(radio).ReadRegisters(context.Background(), Target{Slave: 5, Address: terminalAddr}, 0, 3)
	var lm *LengthMismatchError
	if !errors.As(err, &lm) {
		t.Fatalf("Expected LengthMismatchError, got %v", err)
	}
	if lm.Want != 6 || lm.Got != 4 {
		t.Errorf("Expected want 6 got 4, got want %d got %d", lm.Want, lm.Got)
	}
}

func TestRadioExchanger_Timeout(t *testing.T) {
	radio := &fakeRadio{}
	ex := NewRadioExchanger(radio, true, 20*time.Millisecond, nil)

	_, err := ex.ReadRegisters(context.Background(), Target{Slave: 5, Address: terminalAddr}, 0, 1)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
}

func TestRadioExchanger_ProtocolMismatch(t *testing.T) {
	radio := &fakeRadio{}
	radio.respond = func(req *xbee.Frame) [][]byte {
		return [][]byte{encode(t, xbee.TypeATCommandResponse, []byte{req.Data[0], 'I', 'D', 0x00})}
	}

	_, err := newTestRadio(radio).ReadRegisters(context.Background(), Target{Slave: 5, Address: terminalAddr}, 0, 1)
	var pm *ProtocolMismatchError
	if !errors.As(err, &pm) {
		t.Fatalf("Expected ProtocolMismatchError, got %v", err)
	}
	if pm.Received != xbee.TypeATCommandResponse {
		t.Errorf("Unexpected received type %s", pm.Received)
	}
}

func TestRadioExchanger_CancelledContext(t *testing.T) {
	radio := &fakeRadio{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRadio(radio).ReadRegisters(ctx, Target{Slave: 5, Address: terminalAddr}, 0, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

// ============================================================================
// Writes and remote AT
// ============================================================================

func TestRadioExchanger_WriteRegister(t *testing.T) {
	radio := &fakeRadio{}
	radio.respond = func(req *xbee.Frame) [][]byte {
		// a single register write echoes the request
		echo := append([]byte(nil), requestPayload(req)...)
		return [][]byte{
			transmitStatus(t, req.Data[0], xbee.DeliverySuccess),
			receivePacket(t, terminalAddr, echo),
		}
	}

	if err := newTestRadio(radio).WriteRegister(context.Background(), Target{Slave: 5, Address: terminalAddr}, 12, 0xBEEF); err != nil {
		t.Fatalf("WriteRegister failed: %v", err)
	}
	if radio.requestCount() != 1 {
		t.Errorf("Expected 1 request, got %d", radio.requestCount())
	}
}

func TestRadioExchanger_WriteRegisters(t *testing.T) {
	radio := &fakeRadio{}
	radio.respond = func(req *xbee.Frame) [][]byte {
		reply := rtuFrame(5, modbus.FuncCodeWriteMultipleRegisters, []byte{0x00, 0x0A, 0x00, 0x02})
		return [][]byte{
			transmitStatus(t, req.Data[0], xbee.DeliverySuccess),
			receivePacket(t, terminalAddr, reply),
		}
	}

	if err := newTestRadio(radio).WriteRegisters(context.Background(), Target{Slave: 5, Address: terminalAddr}, 10, []uint16{1, 2}); err != nil {
		t.Fatalf("WriteRegisters failed: %v", err)
	}
}

func TestRadioExchanger_RemoteAT(t *testing.T) {
	radio := &fakeRadio{}
	radio.respond = func(req *xbee.Frame) [][]byte {
		if req.Type != xbee.TypeRemoteATCommand {
			t.Errorf("Expected remote AT command, got %s", req.Type)
		}
		return [][]byte{
			remoteATResponse(t, req.Data[0]+1, terminalAddr, "IS", xbee.ATStatusOK, nil),
			remoteATResponse(t, req.Data[0], terminalAddr, "IS", xbee.ATStatusOK, []byte{0x01, 0x00, 0x00, 0x01, 0x02, 0x00}),
		}
	}

	resp, err := newTestRadio(radio).RemoteAT(context.Background(), terminalAddr, "IS", nil)
	if err != nil {
		t.Fatalf("RemoteAT failed: %v", err)
	}
	if resp.Command.String() != "IS" {
		t.Errorf("Expected IS, got %s", resp.Command)
	}
	if len(resp.Value) != 6 {
		t.Errorf("Expected 6 value bytes, got %d", len(resp.Value))
	}
}

func TestRadioExchanger_RemoteATError(t *testing.T) {
	radio := &fakeRadio{}
	radio.respond = func(req *xbee.Frame) [][]byte {
		return [][]byte{remoteATResponse(t, req.Data[0], terminalAddr, "IS", xbee.ATStatusInvalidCommand, nil)}
	}

	_, err := newTestRadio(radio).RemoteAT(context.Background(), terminalAddr, "IS", nil)
	var ae *ATCommandError
	if !errors.As(err, &ae) {
		t.Fatalf("Expected ATCommandError, got %v", err)
	}
	if ae.Status != xbee.ATStatusInvalidCommand {
		t.Errorf("Unexpected status %s", ae.Status)
	}
}

func TestRadioExchanger_LocalATCollectsAnswers(t *testing.T) {
	radio := &fakeRadio{}
	radio.respond = func(req *xbee.Frame) [][]byte {
		if req.Type != xbee.TypeATCommand {
			t.Errorf("Expected AT command, got %s", req.Type)
		}
		id := req.Data[0]
		return [][]byte{
			atResponse(t, id, "ND", xbee.ATStatusOK, []byte{0x01}),
			atResponse(t, id+1, "ND", xbee.ATStatusOK, []byte{0x09}),
			atResponse(t, id, "ND", xbee.ATStatusOK, []byte{0x02}),
		}
	}

	var got []byte
	err := newTestRadio(radio).LocalAT(context.Background(), "ND", nil, 50*time.Millisecond, func(r *xbee.ATCommandResponse) bool {
		got = append(got, r.Value...)
		return true
	})
	if err != nil {
		t.Fatalf("LocalAT failed: %v", err)
	}
	if len(got) != 2 || got[0] != 0x01 || got[1] != 0x02 {
		t.Errorf("Expected answers 01 02, got % X", got)
	}
}

func TestRadioExchanger_LocalATStopsEarly(t *testing.T) {
	radio := &fakeRadio{}
	radio.respond = func(req *xbee.Frame) [][]byte {
		return [][]byte{atResponse(t, req.Data[0], "VR", xbee.ATStatusOK, []byte{0x40, 0x5E})}
	}

	start := time.Now()
	calls := 0
	err := newTestRadio(radio).LocalAT(context.Background(), "VR", nil, 5*time.Second, func(*xbee.ATCommandResponse) bool {
		calls++
		return false
	})
	if err != nil {
		t.Fatalf("LocalAT failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 answer, got %d", calls)
	}
	if time.Since(start) > time.Second {
		t.Error("LocalAT kept waiting after the callback stopped it")
	}
}

func TestRadioExchanger_LocalATErrors(t *testing.T) {
	silent := &fakeRadio{}
	err := newTestRadio(silent).LocalAT(context.Background(), "VR", nil, 20*time.Millisecond, func(*xbee.ATCommandResponse) bool { return true })
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}

	failing := &fakeRadio{}
	failing.respond = func(req *xbee.Frame) [][]byte {
		return [][]byte{atResponse(t, req.Data[0], "ZZ", xbee.ATStatusInvalidCommand, nil)}
	}
	err = newTestRadio(failing).LocalAT(context.Background(), "ZZ", nil, 50*time.Millisecond, func(*xbee.ATCommandResponse) bool { return true })
	var ae *ATCommandError
	if !errors.As(err, &ae) || ae.Status != xbee.ATStatusInvalidCommand {
		t.Errorf("Expected ATCommandError, got %v", err)
	}
}

// ============================================================================
// Late replies and RTU checks
// ============================================================================

func TestRadioExchanger_DiscardsLateReply(t *testing.T) {
	radio := &fakeRadio{}
	radio.respond = func(req *xbee.Frame) [][]byte {
		// the terminal is slow: only the radio acknowledges in time
		return [][]byte{transmitStatus(t, req.Data[0], xbee.DeliverySuccess)}
	}
	ex := NewRadioExchanger(radio, true, 100*time.Millisecond, nil)
	target := Target{Slave: 5, Address: terminalAddr}

	if _, err := ex.ReadRegisters(context.Background(), target, 0, 2); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected first read to time out, got %v", err)
	}

	// the answer to the first read shows up after its exchange ended
	radio.mu.Lock()
	radio.pending = append(radio.pending, receivePacket(t, terminalAddr, rtuReadReply(5, 111, 222))...)
	radio.respond = func(req *xbee.Frame) [][]byte {
		return [][]byte{
			transmitStatus(t, req.Data[0], xbee.DeliverySuccess),
			receivePacket(t, terminalAddr, rtuReadReply(5, 333, 444)),
		}
	}
	radio.mu.Unlock()

	reply, err := ex.ReadRegisters(context.Background(), target, 100, 2)
	if err != nil {
		t.Fatalf("Second read failed: %v", err)
	}
	if reply.Registers[0] != 333 || reply.Registers[1] != 444 {
		t.Errorf("Expected [333 444], got %v", reply.Registers)
	}
}

func TestRadioExchanger_ExceptionReply(t *testing.T) {
	radio := &fakeRadio{}
	radio.respond = func(req *xbee.Frame) [][]byte {
		return [][]byte{
			transmitStatus(t, req.Data[0], xbee.DeliverySuccess),
			receivePacket(t, terminalAddr, rtuFrame(5, 0x83, []byte{modbus.ExceptionCodeIllegalDataAddress})),
		}
	}

	_, err := newTestRadio(radio).ReadRegisters(context.Background(), Target{Slave: 5, Address: terminalAddr}, 0, 1)
	var me *modbus.ModbusError
	if !errors.As(err, &me) {
		t.Fatalf("Expected ModbusError, got %v", err)
	}
	if me.ExceptionCode != modbus.ExceptionCodeIllegalDataAddress {
		t.Errorf("Expected illegal data address, got %d", me.ExceptionCode)
	}
}

func TestRadioExchanger_CorruptReply(t *testing.T) {
	tests := []struct {
		name  string
		reply func() []byte
	}{
		{"bad crc", func() []byte {
			adu := rtuReadReply(5, 1)
			adu[len(adu)-1] ^= 0xFF
			return adu
		}},
		{"other slave", func() []byte { return rtuReadReply(6, 1) }},
		{"short", func() []byte { return []byte{0x05, 0x03} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			radio := &fakeRadio{}
			radio.respond = func(req *xbee.Frame) [][]byte {
				return [][]byte{
					transmitStatus(t, req.Data[0], xbee.DeliverySuccess),
					receivePacket(t, terminalAddr, tt.reply()),
				}
			}
			if _, err := newTestRadio(radio).ReadRegisters(context.Background(), Target{Slave: 5, Address: terminalAddr}, 0, 1); err == nil {
				t.Error("Expected an error for a corrupt reply")
			}
		})
	}
}
