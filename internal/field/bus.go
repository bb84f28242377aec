// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package field

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goburrow/modbus"
)

// valveBusSlaves maps valve group site ids to their slave ids on the wired bus.
// These follow the installed wiring and are not derived from anything.
var valveBusSlaves = map[uint8]uint8{
	126: 14,
	127: 15,
	128: 16,
}

// ValveBusSlave returns the bus slave id wired to a valve group site
func ValveBusSlave(site uint8) (uint8, bool) {
	slave, ok := valveBusSlaves[site]
	return slave, ok
}

// BusClient is the subset of the Modbus master used by BusExchanger
type BusClient interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// BusOptions configures the wired RS485 bus
type BusOptions struct {
	Port     string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
	Timeout  time.Duration
}

// BusExchanger talks Modbus RTU to devices on the wired bus
type BusExchanger struct {
	client   BusClient
	setSlave func(uint8)
	close    func() error
	logger   *slog.Logger
}

// OpenBus opens the serial bus and creates an exchanger on it
func OpenBus(opts BusOptions, logger *slog.Logger) (*BusExchanger, error) {
	h := modbus.NewRTUClientHandler(opts.Port)
	h.BaudRate = opts.BaudRate
	h.DataBits = opts.DataBits
	h.StopBits = opts.StopBits
	h.Parity = opts.Parity
	h.Timeout = opts.Timeout

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("connect bus %s: %w", opts.Port, err)
	}

	b := NewBusExchanger(modbus.NewClient(h), func(id uint8) { h.SlaveId = id }, logger)
	b.close = h.Close
	return b, nil
}

// NewBusExchanger creates an exchanger on an existing client.
// setSlave selects the slave addressed by the next call.
func NewBusExchanger(client BusClient, setSlave func(uint8), logger *slog.Logger) *BusExchanger {
	if logger == nil {
		logger = slog.Default()
	}
	return &BusExchanger{client: client, setSlave: setSlave, logger: logger}
}

// Close closes the underlying bus
func (b *BusExchanger) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// ReadRegisters reads holding registers from a bus slave
func (b *BusExchanger) ReadRegisters(ctx context.Context, t Target, start, quantity uint16) (Reply, error) {
	b.setSlave(t.Slave)
	results, err := b.client.ReadHoldingRegisters(start, quantity)
	if err != nil {
		return Reply{}, fmt.Errorf("bus read slave %d: %w", t.Slave, err)
	}
	if len(results) != 2*int(quantity) {
		return Reply{}, &LengthMismatchError{Want: 2 * int(quantity), Got: len(results)}
	}
	return Reply{Registers: BytesToRegisters(results)}, nil
}

// WriteRegister writes one holding register on a bus slave
func (b *BusExchanger) WriteRegister(ctx context.Context, t Target, address, value uint16) error {
	b.setSlave(t.Slave)
	if _, err := b.client.WriteSingleRegister(address, value); err != nil {
		return fmt.Errorf("bus write slave %d: %w", t.Slave, err)
	}
	return nil
}

// WriteRegisters writes consecutive holding registers on a bus slave
func (b *BusExchanger) WriteRegisters(ctx context.Context, t Target, start uint16, values []uint16) error {
	b.setSlave(t.Slave)
	if _, err := b.client.WriteMultipleRegisters(start, uint16(len(values)), RegistersToBytes(values)); err != nil {
		return fmt.Errorf("bus write slave %d: %w", t.Slave, err)
	}
	return nil
}
