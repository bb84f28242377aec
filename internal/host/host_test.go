// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package host

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/goburrow/modbus"

	"github.com/Thermoquad/wellgate/internal/config"
	"github.com/Thermoquad/wellgate/internal/field"
	"github.com/Thermoquad/wellgate/internal/record"
	"github.com/Thermoquad/wellgate/pkg/xbee"
)

// ============================================================================
// Fakes
// ============================================================================

type call struct {
	kind   string
	target field.Target
	start  uint16
	qty    int
}

type fakeExchanger struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeExchanger) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.err
}

func (f *fakeExchanger) ReadRegisters(ctx context.Context, t field.Target, start, qty uint16) (field.Reply, error) {
	if err := f.record(call{"read", t, start, int(qty)}); err != nil {
		return field.Reply{}, err
	}
	regs := make([]uint16, qty)
	for i := range regs {
		regs[i] = start + uint16(i)
	}
	return field.Reply{Registers: regs}, nil
}

func (f *fakeExchanger) WriteRegister(ctx context.Context, t field.Target, address, value uint16) error {
	return f.record(call{"write", t, address, 1})
}

func (f *fakeExchanger) WriteRegisters(ctx context.Context, t field.Target, start uint16, values []uint16) error {
	return f.record(call{"write", t, start, len(values)})
}

func (f *fakeExchanger) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

var testSites = []config.Site{
	{ID: 5, Class: config.ClassOilWell, Address: "0013A20040A1B2C3", Slave: 5, DiagramBlocks: 5},
	{ID: 8, Class: config.ClassWaterWell, Address: "0013A20011110000", Slave: 8},
	{ID: 126, Class: config.ClassValveGroup, Address: config.BroadcastAddress, Slave: 126, MaxValves: 8},
}

type fixture struct {
	radio      *fakeExchanger
	bus        *fakeExchanger
	buffer     *record.DoubleBuffer
	dispatcher *Dispatcher
}

func newFixture() *fixture {
	f := &fixture{radio: &fakeExchanger{}, bus: &fakeExchanger{}}

	book := field.NewAddressBook()
	classes := make(map[uint8]string)
	for _, s := range testSites {
		book.Set(s.ID, s.RadioAddress())
		classes[s.ID] = s.Class
	}

	// publish one sweep: oil base registers hold 100+i, water 200+i
	f.buffer = record.NewDoubleBuffer(classes)
	oil, _ := f.buffer.Stage(5)
	oil.WellBase = make([]uint16, record.WellBase.Size)
	for i := range oil.WellBase {
		oil.WellBase[i] = 100 + uint16(i)
	}
	f.buffer.Commit(oil)
	water, _ := f.buffer.Stage(8)
	water.Water = make([]uint16, record.Water.Size)
	for i := range water.Water {
		water.Water[i] = 200 + uint16(i)
	}
	f.buffer.Commit(water)
	f.buffer.Swap()

	f.dispatcher = NewDispatcher(Options{
		Sites:       testSites,
		ValveWiring: config.WiringBus,
		Attempts:    2,
		Radio:       field.Channel{Exchanger: f.radio, Arbiter: field.NewArbiter()},
		Bus:         &field.Channel{Exchanger: f.bus, Arbiter: field.NewArbiter()},
		Address:     book,
		Buffer:      f.buffer,
	})
	return f
}

// ============================================================================
// Reads
// ============================================================================

func TestDispatcher_BufferedRead(t *testing.T) {
	f := newFixture()

	resp, ok := f.dispatcher.Handle(context.Background(), Request{Site: 5, Function: 0x03, Start: 0, Quantity: 30})
	if !ok {
		t.Fatal("Read should be acknowledged")
	}
	if len(resp.Registers) != 30 {
		t.Fatalf("Expected 30 registers, got %d", len(resp.Registers))
	}
	for i, v := range resp.Registers {
		if v != 100+uint16(i) {
			t.Fatalf("register %d: expected %d, got %d", i, 100+i, v)
		}
	}
	if n := len(f.radio.snapshot()); n != 0 {
		t.Errorf("Buffered read made %d field exchanges", n)
	}
}

func TestDispatcher_LiveReadIsChunked(t *testing.T) {
	f := newFixture()

	resp, _ := f.dispatcher.Handle(context.Background(), Request{Site: 5, Function: 0x03, Start: 990, Quantity: 100})

	calls := f.radio.snapshot()
	want := []call{{start: 1000, qty: 40}, {start: 1040, qty: 40}, {start: 1080, qty: 10}}
	if len(calls) != len(want) {
		t.Fatalf("Expected %d exchanges, got %d", len(want), len(calls))
	}
	for i := range want {
		if calls[i].start != want[i].start || calls[i].qty != want[i].qty {
			t.Errorf("exchange %d: expected %d+%d, got %d+%d", i, want[i].start, want[i].qty, calls[i].start, calls[i].qty)
		}
		if calls[i].target.Address != 0x0013A20040A1B2C3 {
			t.Errorf("exchange %d sent to %016X", i, calls[i].target.Address)
		}
	}
	if resp.Registers[0] != 0 || resp.Registers[10] != 1000 || resp.Registers[99] != 1089 {
		t.Errorf("Unexpected live data %d %d %d", resp.Registers[0], resp.Registers[10], resp.Registers[99])
	}
}

func TestDispatcher_FailedLiveReadAnswersZeros(t *testing.T) {
	f := newFixture()
	f.radio.err = field.ErrTimeout

	resp, ok := f.dispatcher.Handle(context.Background(), Request{Site: 5, Function: 0x03, Start: 1000, Quantity: 20})
	if !ok {
		t.Fatal("Failed read should still be answered")
	}
	if len(resp.Registers) != 20 {
		t.Fatalf("Expected 20 registers, got %d", len(resp.Registers))
	}
	for i, v := range resp.Registers {
		if v != 0 {
			t.Fatalf("register %d: expected 0, got %d", i, v)
		}
	}
	if n := len(f.radio.snapshot()); n != 2 {
		t.Errorf("Expected 2 attempts, got %d", n)
	}
}

func TestDispatcher_LiveRangeOnlyForOilWells(t *testing.T) {
	f := newFixture()
	f.dispatcher.Handle(context.Background(), Request{Site: 8, Function: 0x03, Start: 1000, Quantity: 10})
	if n := len(f.radio.snapshot()); n != 0 {
		t.Errorf("Water well read of 1000+ made %d exchanges", n)
	}
}

func TestDispatcher_UnconfiguredSite(t *testing.T) {
	f := newFixture()

	resp, ok := f.dispatcher.Handle(context.Background(), Request{Site: 99, Function: 0x03, Start: 0, Quantity: 4})
	if !ok || len(resp.Registers) != 4 {
		t.Fatalf("Expected 4 zero registers, got %v (ok=%v)", resp.Registers, ok)
	}
	if _, ok := f.dispatcher.Handle(context.Background(), Request{Site: 99, Function: 0x06, Start: 1, Values: []uint16{1}}); ok {
		t.Error("Write to unconfigured site should not be acknowledged")
	}
}

// ============================================================================
// Writes and exceptions
// ============================================================================

func TestDispatcher_WriteSingle(t *testing.T) {
	f := newFixture()

	resp, ok := f.dispatcher.Handle(context.Background(), Request{Site: 8, Function: 0x06, Start: 12, Values: []uint16{77}})
	if !ok {
		t.Fatal("Write should be acknowledged")
	}
	if resp.Start != 12 || resp.Quantity != 77 {
		t.Errorf("Unexpected echo %d/%d", resp.Start, resp.Quantity)
	}
	calls := f.radio.snapshot()
	if len(calls) != 1 || calls[0].kind != "write" || calls[0].target.Slave != 8 {
		t.Errorf("Unexpected exchanges %+v", calls)
	}
}

func TestDispatcher_WriteMultipleChunked(t *testing.T) {
	f := newFixture()

	values := make([]uint16, 70)
	resp, ok := f.dispatcher.Handle(context.Background(), Request{Site: 5, Function: 0x10, Start: 50, Values: values})
	if !ok || resp.Quantity != 70 {
		t.Fatalf("Expected echo of 70 registers, got %d (ok=%v)", resp.Quantity, ok)
	}
	calls := f.radio.snapshot()
	if len(calls) != 3 || calls[0].qty != 32 || calls[1].start != 82 || calls[2].qty != 6 {
		t.Errorf("Unexpected chunking %+v", calls)
	}
}

func TestDispatcher_FailedWriteIsNotAcknowledged(t *testing.T) {
	f := newFixture()
	f.radio.err = &field.DeliveryError{}

	if _, ok := f.dispatcher.Handle(context.Background(), Request{Site: 8, Function: 0x06, Start: 1, Values: []uint16{1}}); ok {
		t.Error("Failed write must not be acknowledged")
	}
}

func TestDispatcher_WriteBeforeAddressKnown(t *testing.T) {
	f := newFixture()
	f.dispatcher.opts.Address.Set(5, xbee.AddressBroadcast)

	if _, ok := f.dispatcher.Handle(context.Background(), Request{Site: 5, Function: 0x06, Start: 1, Values: []uint16{1}}); ok {
		t.Error("Write to a site without a known address must not be acknowledged")
	}
	if n := len(f.radio.snapshot()); n != 0 {
		t.Errorf("Expected no field exchange, got %d", n)
	}
}

func TestDispatcher_ValveWriteUsesBus(t *testing.T) {
	f := newFixture()

	if _, ok := f.dispatcher.Handle(context.Background(), Request{Site: 126, Function: 0x06, Start: 3, Values: []uint16{50}}); !ok {
		t.Fatal("Write should be acknowledged")
	}
	calls := f.bus.snapshot()
	if len(calls) != 1 || calls[0].target.Slave != 14 {
		t.Errorf("Expected one bus write to slave 14, got %+v", calls)
	}
	if len(f.radio.snapshot()) != 0 {
		t.Error("Bus-wired valve write went over the radio")
	}
}

func TestDispatcher_Exceptions(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name string
		req  Request
		code uint8
	}{
		{"unknown function", Request{Site: 5, Function: 0x01}, modbus.ExceptionCodeIllegalFunction},
		{"zero quantity", Request{Site: 5, Function: 0x03, Quantity: 0}, modbus.ExceptionCodeIllegalDataValue},
		{"quantity too large", Request{Site: 5, Function: 0x03, Quantity: 126}, modbus.ExceptionCodeIllegalDataValue},
		{"empty write", Request{Site: 5, Function: 0x10}, modbus.ExceptionCodeIllegalDataValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, ok := f.dispatcher.Handle(context.Background(), tt.req)
			if !ok {
				t.Fatal("Exception should be answered")
			}
			if resp.Exception != tt.code {
				t.Errorf("Expected exception 0x%02X, got 0x%02X", tt.code, resp.Exception)
			}
		})
	}
}

// ============================================================================
// Modbus TCP
// ============================================================================

func startServer(t *testing.T, f *fixture) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := NewServer(f.dispatcher, time.Minute, nil)
	srv.Serve(l)
	t.Cleanup(srv.Close)
	return l.Addr().String()
}

func newClient(t *testing.T, addr string, unit uint8) modbus.Client {
	t.Helper()
	h := modbus.NewTCPClientHandler(addr)
	h.SlaveId = unit
	h.Timeout = 300 * time.Millisecond
	if err := h.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return modbus.NewClient(h)
}

func TestServer_ReadHoldingRegisters(t *testing.T) {
	f := newFixture()
	client := newClient(t, startServer(t, f), 5)

	data, err := client.ReadHoldingRegisters(0, 30)
	if err != nil {
		t.Fatalf("ReadHoldingRegisters failed: %v", err)
	}
	regs := field.BytesToRegisters(data)
	if len(regs) != 30 || regs[0] != 100 || regs[29] != 129 {
		t.Errorf("Unexpected registers %v", regs)
	}
	if len(f.radio.snapshot()) != 0 {
		t.Error("Buffered read touched the field")
	}
}

func TestServer_Writes(t *testing.T) {
	f := newFixture()
	client := newClient(t, startServer(t, f), 8)

	if _, err := client.WriteSingleRegister(4, 0x1234); err != nil {
		t.Fatalf("WriteSingleRegister failed: %v", err)
	}
	if _, err := client.WriteMultipleRegisters(10, 2, []byte{0, 1, 0, 2}); err != nil {
		t.Fatalf("WriteMultipleRegisters failed: %v", err)
	}
	if n := len(f.radio.snapshot()); n != 2 {
		t.Errorf("Expected 2 field writes, got %d", n)
	}
}

func TestServer_FailedWriteTimesOut(t *testing.T) {
	f := newFixture()
	f.radio.err = field.ErrTimeout
	client := newClient(t, startServer(t, f), 8)

	if _, err := client.WriteSingleRegister(4, 1); err == nil {
		t.Error("Expected the client to give up on an unacknowledged write")
	}
}

func TestServer_IllegalFunction(t *testing.T) {
	f := newFixture()
	client := newClient(t, startServer(t, f), 5)

	_, err := client.ReadCoils(0, 8)
	var me *modbus.ModbusError
	if !errors.As(err, &me) {
		t.Fatalf("Expected a Modbus exception, got %v", err)
	}
	if me.ExceptionCode != modbus.ExceptionCodeIllegalFunction {
		t.Errorf("Expected illegal function, got %d", me.ExceptionCode)
	}
}

func TestDecodeRequest_Malformed(t *testing.T) {
	tests := []struct {
		name string
		pdu  []byte
	}{
		{"short read", []byte{0x03, 0x00, 0x00}},
		{"write multiple count mismatch", []byte{0x10, 0x00, 0x00, 0x00, 0x02, 0x02, 0x00, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeRequest(5, tt.pdu); !errors.Is(err, errInvalidPDU) {
				t.Errorf("Expected errInvalidPDU, got %v", err)
			}
		})
	}
}
