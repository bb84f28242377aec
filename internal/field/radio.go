// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package field

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/goburrow/modbus"

	"github.com/Thermoquad/wellgate/pkg/xbee"
)

// DefaultDrainQuiet is how long the port must stay silent before a request
// is written
const DefaultDrainQuiet = 20 * time.Millisecond

// RadioPort is the byte stream to the local radio module
type RadioPort interface {
	io.Writer
	xbee.TimeoutReader
}

// RadioExchanger carries RTU requests to field terminals inside transmit
// requests and waits for the transmit status and the reply packet
type RadioExchanger struct {
	port    RadioPort
	reader  *xbee.Reader
	escaped bool
	ids     FrameIDs
	timeout time.Duration
	quiet   time.Duration
	logger  *slog.Logger
}

// NewRadioExchanger creates a radio exchanger. timeout bounds each exchange.
func NewRadioExchanger(port RadioPort, escaped bool, timeout time.Duration, logger *slog.Logger) *RadioExchanger {
	if logger == nil {
		logger = slog.Default()
	}
	return &RadioExchanger{
		port:    port,
		reader:  xbee.NewReader(port, escaped),
		escaped: escaped,
		timeout: timeout,
		quiet:   DefaultDrainQuiet,
		logger:  logger,
	}
}

// Statistics returns the decode statistics of the radio stream
func (r *RadioExchanger) Statistics() *xbee.Statistics {
	return r.reader.Statistics()
}

// radioTransporter sends RTU ADUs to one terminal and returns the payload of
// its reply packet
type radioTransporter struct {
	ctx    context.Context
	radio  *RadioExchanger
	target Target
	source uint64
}

func (tr *radioTransporter) Send(aduRequest []byte) ([]byte, error) {
	rp, err := tr.radio.roundTrip(tr.ctx, tr.target, aduRequest)
	if err != nil {
		return nil, err
	}
	tr.source = rp.Src64
	return rp.Payload, nil
}

// client returns a Modbus RTU client addressed to t over the radio
func (r *RadioExchanger) client(ctx context.Context, t Target) (modbus.Client, *radioTransporter) {
	packager := &modbus.RTUClientHandler{}
	packager.SlaveId = t.Slave
	tr := &radioTransporter{ctx: ctx, radio: r, target: t}
	return modbus.NewClient2(packager, tr), tr
}

// ReadRegisters reads holding registers from a terminal
func (r *RadioExchanger) ReadRegisters(ctx context.Context, t Target, start, quantity uint16) (Reply, error) {
	client, tr := r.client(ctx, t)
	results, err := client.ReadHoldingRegisters(start, quantity)
	if err != nil {
		return Reply{}, err
	}
	if len(results) != 2*int(quantity) {
		return Reply{}, &LengthMismatchError{Want: 2 * int(quantity), Got: len(results)}
	}
	return Reply{Registers: BytesToRegisters(results), Source: tr.source}, nil
}

// WriteRegister writes one holding register on a terminal
func (r *RadioExchanger) WriteRegister(ctx context.Context, t Target, address, value uint16) error {
	client, _ := r.client(ctx, t)
	_, err := client.WriteSingleRegister(address, value)
	return err
}

// WriteRegisters writes consecutive holding registers on a terminal
func (r *RadioExchanger) WriteRegisters(ctx context.Context, t Target, start uint16, values []uint16) error {
	client, _ := r.client(ctx, t)
	_, err := client.WriteMultipleRegisters(start, uint16(len(values)), RegistersToBytes(values))
	return err
}

// RemoteAT sends an AT command to a remote radio module and returns its answer
func (r *RadioExchanger) RemoteAT(ctx context.Context, dest uint64, cmd string, value []byte) (*xbee.RemoteATCommandResponse, error) {
	id := r.ids.Next()
	req, err := xbee.NewRemoteATCommand(id, dest, cmd, value)
	if err != nil {
		return nil, err
	}
	if err := r.send(req); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(r.timeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := r.next(deadline)
		if err != nil {
			return nil, err
		}
		switch v := resp.(type) {
		case *xbee.RemoteATCommandResponse:
			if v.ID != id {
				r.logger.Debug("ignoring stale remote AT response", "frame_id", v.ID, "want", id)
				continue
			}
			if v.Status != xbee.ATStatusOK {
				return nil, &ATCommandError{Command: v.Command, Status: v.Status}
			}
			return v, nil
		case *xbee.ModemStatus, *xbee.TransmitStatus, *xbee.ReceivePacket:
			r.logger.Debug("ignoring frame while waiting for remote AT response", "type", resp.FrameType())
		default:
			return nil, &ProtocolMismatchError{Sent: xbee.TypeRemoteATCommand, Received: resp.FrameType()}
		}
	}
}

// LocalAT sends an AT command to the local radio module and passes every
// answer with the request's frame id to fn until fn returns false or wait
// elapses. Commands such as ND answer more than once. Returns ErrTimeout if
// nothing answered.
func (r *RadioExchanger) LocalAT(ctx context.Context, cmd string, value []byte, wait time.Duration, fn func(*xbee.ATCommandResponse) bool) error {
	id := r.ids.Next()
	req, err := xbee.NewATCommand(id, cmd, value)
	if err != nil {
		return err
	}
	if err := r.send(req); err != nil {
		return err
	}

	deadline := time.Now().Add(wait)
	answered := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := r.next(deadline)
		if errors.Is(err, ErrTimeout) && answered {
			return nil
		}
		if err != nil {
			return err
		}
		v, ok := resp.(*xbee.ATCommandResponse)
		if !ok || v.ID != id {
			r.logger.Debug("ignoring frame while waiting for AT response", "type", resp.FrameType())
			continue
		}
		answered = true
		if v.Status != xbee.ATStatusOK {
			return &ATCommandError{Command: v.Command, Status: v.Status}
		}
		if !fn(v) {
			return nil
		}
	}
}

// roundTrip sends payload to t and returns the reply packet
func (r *RadioExchanger) roundTrip(ctx context.Context, t Target, payload []byte) (*xbee.ReceivePacket, error) {
	id := r.ids.Next()
	req, err := xbee.NewTransmitRequest(id, t.Address, payload)
	if err != nil {
		return nil, err
	}
	if err := r.send(req); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(r.timeout)
	delivered := false
	var reply *xbee.ReceivePacket

	for !delivered || reply == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := r.next(deadline)
		if err != nil {
			return nil, err
		}

		switch v := resp.(type) {
		case *xbee.TransmitStatus:
			if v.ID != id {
				r.logger.Debug("ignoring stale transmit status", "frame_id", v.ID, "want", id)
				continue
			}
			if !v.Success() {
				return nil, &DeliveryError{Status: v.Delivery}
			}
			delivered = true

		case *xbee.ReceivePacket:
			if !r.fromTarget(t, v.Src64) {
				r.logger.Debug("ignoring packet from another radio", "src", fmt.Sprintf("%016X", v.Src64), "site", t.Site)
				continue
			}
			reply = v

		case *xbee.ExplicitReceivePacket:
			if !r.fromTarget(t, v.Src64) {
				continue
			}
			reply = &xbee.ReceivePacket{Src64: v.Src64, Src16: v.Src16, Options: v.Options, Payload: v.Payload}

		case *xbee.ModemStatus:
			r.logger.Info("radio modem status", "event", v.Event.String())

		default:
			return nil, &ProtocolMismatchError{Sent: xbee.TypeTransmitRequest, Received: resp.FrameType()}
		}
	}
	return reply, nil
}

// fromTarget reports whether a packet source can be the addressed terminal
func (r *RadioExchanger) fromTarget(t Target, src uint64) bool {
	return t.Address == xbee.AddressBroadcast || t.Address == src
}

// send drains whatever the radio still has to say about earlier exchanges
// and writes one request. A reply that outlived its exchange carries no frame
// id, so it must be gone before the next request goes out.
func (r *RadioExchanger) send(req xbee.Request) error {
	if err := r.drain(); err != nil {
		return err
	}

	wire, err := xbee.EncodeRequest(req, r.escaped)
	if err != nil {
		return err
	}
	if _, err := r.port.Write(wire); err != nil {
		return fmt.Errorf("radio write: %w", err)
	}
	return nil
}

// drain discards incoming frames until the port stays quiet. Bounded by the
// exchange timeout so a chatty network cannot stall the channel.
func (r *RadioExchanger) drain() error {
	r.reader.Reset()
	deadline := time.Now().Add(r.timeout)

	for time.Now().Before(deadline) {
		res := r.reader.ReadFrame(r.quiet)
		switch res.Status {
		case xbee.ReadTimedOut:
			r.reader.Reset()
			return nil
		case xbee.ReadError:
			var fe *xbee.FrameError
			if !errors.As(res.Err, &fe) {
				return fmt.Errorf("radio drain: %w", res.Err)
			}
		case xbee.ReadReady:
			r.logger.Debug("discarding leftover frame", "type", res.Frame.Type)
		}
	}
	r.reader.Reset()
	return nil
}

// next returns the next interpretable response before deadline
func (r *RadioExchanger) next(deadline time.Time) (xbee.Response, error) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return nil, ErrTimeout
	}

	res := r.reader.ReadFrame(remaining)
	switch res.Status {
	case xbee.ReadTimedOut:
		return nil, ErrTimeout
	case xbee.ReadError:
		return nil, res.Err
	}

	resp, err := xbee.ParseResponse(res.Frame)
	if err != nil {
		var ue *xbee.UnknownFrameTypeError
		if errors.As(err, &ue) {
			return nil, &ProtocolMismatchError{Sent: xbee.TypeTransmitRequest, Received: ue.Type}
		}
		return nil, err
	}
	return resp, nil
}
