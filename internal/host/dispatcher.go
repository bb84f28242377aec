// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package host serves the published site records to the supervisory host over
// Modbus TCP and forwards host writes to the field devices.
package host

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goburrow/modbus"

	"github.com/Thermoquad/wellgate/internal/config"
	"github.com/Thermoquad/wellgate/internal/field"
	"github.com/Thermoquad/wellgate/internal/record"
	"github.com/Thermoquad/wellgate/pkg/xbee"
)

// Chunk sizes of field exchanges made on behalf of the host
const (
	readChunk  = 40
	writeChunk = 32 // keeps a write multiple ADU inside one radio payload
)

// Quantity limits of one host request
const (
	maxReadQuantity  = 125
	maxWriteQuantity = 123
)

// Request is one decoded host request. The unit id selects the site.
type Request struct {
	Site     uint8
	Function uint8
	Start    uint16
	Quantity uint16   // read quantity
	Values   []uint16 // written values; one value for function 0x06
}

// Response is the answer to a Request. Exception is non-zero for an
// exception response.
type Response struct {
	Site      uint8
	Function  uint8
	Registers []uint16 // function 0x03
	Start     uint16   // write echo
	Quantity  uint16   // write echo: the value for 0x06, the count for 0x10
	Exception uint8
}

// Options configures a Dispatcher
type Options struct {
	Sites       []config.Site
	ValveWiring string
	Attempts    int
	Radio       field.Channel
	Bus         *field.Channel
	Address     *field.AddressBook
	Buffer      *record.DoubleBuffer
	Logger      *slog.Logger
}

// Dispatcher answers host requests from the published buffer, going to the
// field for live ranges and writes
type Dispatcher struct {
	opts   Options
	sites  map[uint8]config.Site
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Attempts <= 0 {
		opts.Attempts = field.DefaultAttempts
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	d := &Dispatcher{opts: opts, sites: make(map[uint8]config.Site), logger: opts.Logger}
	for _, s := range opts.Sites {
		d.sites[s.ID] = s
	}
	return d
}

// Handle answers a request. It returns false when the request must not be
// acknowledged.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (Response, bool) {
	resp := Response{Site: req.Site, Function: req.Function}

	switch req.Function {
	case modbus.FuncCodeReadHoldingRegisters:
		if req.Quantity == 0 || req.Quantity > maxReadQuantity {
			resp.Exception = modbus.ExceptionCodeIllegalDataValue
			return resp, true
		}
		resp.Registers = d.read(ctx, req)
		return resp, true

	case modbus.FuncCodeWriteSingleRegister:
		if len(req.Values) != 1 {
			resp.Exception = modbus.ExceptionCodeIllegalDataValue
			return resp, true
		}
		if !d.write(ctx, req) {
			return resp, false
		}
		resp.Start, resp.Quantity = req.Start, req.Values[0]
		return resp, true

	case modbus.FuncCodeWriteMultipleRegisters:
		if len(req.Values) == 0 || len(req.Values) > maxWriteQuantity {
			resp.Exception = modbus.ExceptionCodeIllegalDataValue
			return resp, true
		}
		if !d.write(ctx, req) {
			return resp, false
		}
		resp.Start, resp.Quantity = req.Start, uint16(len(req.Values))
		return resp, true

	default:
		resp.Exception = modbus.ExceptionCodeIllegalFunction
		return resp, true
	}
}

// read serves buffered registers and fetches the live part of the range.
// Any failed exchange turns the whole answer into zeros.
func (d *Dispatcher) read(ctx context.Context, req Request) []uint16 {
	site, ok := d.sites[req.Site]
	if !ok {
		return make([]uint16, req.Quantity)
	}

	out, ok := d.opts.Buffer.Registers(req.Site, req.Start, req.Quantity)
	if !ok {
		out = make([]uint16, req.Quantity)
	}
	if site.Class != config.ClassOilWell {
		return out
	}

	lo, hi := int(req.Start), int(req.Start)+int(req.Quantity)
	live := record.LiveDiagram
	if hi <= int(live.Start) || lo >= live.End() {
		return out
	}
	lo, hi = max(lo, int(live.Start)), min(hi, live.End())

	ch, t := d.route(site)
	for addr := lo; addr < hi; addr += readChunk {
		qty := min(readChunk, hi-addr)
		var reply field.Reply
		op := fmt.Sprintf("host read site %d %d+%d", site.ID, addr, qty)
		err := ch.Exchange(ctx, d.opts.Attempts, d.logger, op, func(ctx context.Context, ex field.Exchanger) error {
			var err error
			reply, err = ex.ReadRegisters(ctx, t, uint16(addr), uint16(qty))
			return err
		})
		if err != nil {
			d.logger.Warn("live read failed, answering zeros", "site", site.ID, "err", err)
			return make([]uint16, req.Quantity)
		}
		copy(out[addr-int(req.Start):], reply.Registers)
	}
	return out
}

// write forwards a host write to the field device
func (d *Dispatcher) write(ctx context.Context, req Request) bool {
	site, ok := d.sites[req.Site]
	if !ok {
		d.logger.Debug("ignoring write to unconfigured site", "site", req.Site)
		return false
	}
	ch, t := d.route(site)
	if t.Address == xbee.AddressBroadcast {
		// every radio with the same slave id would take a broadcast write
		d.logger.Warn("refusing write before the site address is known", "site", site.ID)
		return false
	}

	if req.Function == modbus.FuncCodeWriteSingleRegister {
		op := fmt.Sprintf("host write site %d %d", site.ID, req.Start)
		err := ch.Exchange(ctx, d.opts.Attempts, d.logger, op, func(ctx context.Context, ex field.Exchanger) error {
			return ex.WriteRegister(ctx, t, req.Start, req.Values[0])
		})
		if err != nil {
			d.logger.Warn("host write failed", "site", site.ID, "err", err)
			return false
		}
		return true
	}

	for off := 0; off < len(req.Values); off += writeChunk {
		chunk := req.Values[off:min(off+writeChunk, len(req.Values))]
		start := req.Start + uint16(off)
		op := fmt.Sprintf("host write site %d %d+%d", site.ID, start, len(chunk))
		err := ch.Exchange(ctx, d.opts.Attempts, d.logger, op, func(ctx context.Context, ex field.Exchanger) error {
			return ex.WriteRegisters(ctx, t, start, chunk)
		})
		if err != nil {
			d.logger.Warn("host write failed", "site", site.ID, "err", err)
			return false
		}
	}
	return true
}

// route returns the channel and target a site is reached through
func (d *Dispatcher) route(site config.Site) (field.Channel, field.Target) {
	if site.Class == config.ClassValveGroup && d.opts.ValveWiring == config.WiringBus && d.opts.Bus != nil {
		if slave, ok := field.ValveBusSlave(site.ID); ok {
			return *d.opts.Bus, field.Target{Site: site.ID, Slave: slave}
		}
	}
	return d.opts.Radio, field.Target{Site: site.ID, Slave: site.Slave, Address: d.opts.Address.Get(site.ID)}
}
