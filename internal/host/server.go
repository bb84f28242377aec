// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package host

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/Thermoquad/wellgate/internal/field"
)

const (
	mbapHeaderSize = 7
	maxPDUSize     = 253
)

var (
	errInvalidPDU          = errors.New("invalid pdu")
	errUnsupportedFunction = errors.New("unsupported function")
)

// Handler answers decoded host requests
type Handler interface {
	Handle(ctx context.Context, req Request) (Response, bool)
}

// Server is a Modbus TCP server that hands every request to a Handler.
// Requests on one connection are answered in order.
type Server struct {
	handler     Handler
	idleTimeout time.Duration
	logger      *slog.Logger

	listener  net.Listener
	wg        sync.WaitGroup
	quit      chan struct{}
	closeOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a server. idleTimeout closes connections that stay
// silent that long; zero disables it.
func NewServer(handler Handler, idleTimeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handler:     handler,
		idleTimeout: idleTimeout,
		logger:      logger,
		quit:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Listen starts accepting connections on address
func (s *Server) Listen(address string) error {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	s.Serve(l)
	return nil
}

// Serve starts accepting connections on l
func (s *Server) Serve(l net.Listener) {
	s.listener = l
	s.logger.Info("host server listening", "addr", l.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()
}

// Addr returns the listening address
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			s.logger.Warn("accept failed", "err", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.logger.Debug("host connected", "remote", remote)
	defer s.logger.Debug("host disconnected", "remote", remote)

	// unblock reads on shutdown
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.quit:
			conn.Close()
		case <-done:
		}
	}()

	header := make([]byte, mbapHeaderSize)
	for {
		if s.idleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}

		// length covers the unit id and the PDU
		length := int(binary.BigEndian.Uint16(header[4:6]))
		if binary.BigEndian.Uint16(header[2:4]) != 0 || length < 2 || length > maxPDUSize+1 {
			s.logger.Debug("dropping connection on malformed MBAP header", "remote", remote)
			return
		}

		unitID := header[6]
		pdu := make([]byte, length-1)
		if _, err := io.ReadFull(conn, pdu); err != nil {
			return
		}

		response := s.handlePDU(unitID, pdu)
		if len(response) == 0 {
			continue
		}

		out := make([]byte, mbapHeaderSize, mbapHeaderSize+len(response))
		copy(out, header[0:2]) // transaction id
		binary.BigEndian.PutUint16(out[4:6], uint16(len(response)+1))
		out[6] = unitID
		if _, err := conn.Write(append(out, response...)); err != nil {
			return
		}
	}
}

// handlePDU answers one PDU. An empty result sends nothing.
func (s *Server) handlePDU(unitID uint8, pdu []byte) []byte {
	req, err := decodeRequest(unitID, pdu)
	if err != nil {
		function := uint8(0)
		if len(pdu) > 0 {
			function = pdu[0]
		}
		if errors.Is(err, errInvalidPDU) {
			return exceptionResponse(function, modbus.ExceptionCodeIllegalDataValue)
		}
		return exceptionResponse(function, modbus.ExceptionCodeIllegalFunction)
	}

	resp, ok := s.handler.Handle(s.ctx, req)
	if !ok {
		return nil
	}
	return encodeResponse(resp)
}

func decodeRequest(unitID uint8, pdu []byte) (Request, error) {
	if len(pdu) == 0 {
		return Request{}, errUnsupportedFunction
	}
	req := Request{Site: unitID, Function: pdu[0]}

	switch req.Function {
	case modbus.FuncCodeReadHoldingRegisters:
		if len(pdu) != 5 {
			return req, errInvalidPDU
		}
		req.Start = binary.BigEndian.Uint16(pdu[1:3])
		req.Quantity = binary.BigEndian.Uint16(pdu[3:5])

	case modbus.FuncCodeWriteSingleRegister:
		if len(pdu) != 5 {
			return req, errInvalidPDU
		}
		req.Start = binary.BigEndian.Uint16(pdu[1:3])
		req.Values = []uint16{binary.BigEndian.Uint16(pdu[3:5])}

	case modbus.FuncCodeWriteMultipleRegisters:
		if len(pdu) < 6 {
			return req, errInvalidPDU
		}
		req.Start = binary.BigEndian.Uint16(pdu[1:3])
		qty := int(binary.BigEndian.Uint16(pdu[3:5]))
		count := int(pdu[5])
		if count != 2*qty || len(pdu) != 6+count {
			return req, errInvalidPDU
		}
		req.Values = field.BytesToRegisters(pdu[6:])

	default:
		// answered by the handler with an illegal function exception
	}
	return req, nil
}

func encodeResponse(resp Response) []byte {
	if resp.Exception != 0 {
		return exceptionResponse(resp.Function, resp.Exception)
	}

	switch resp.Function {
	case modbus.FuncCodeReadHoldingRegisters:
		data := field.RegistersToBytes(resp.Registers)
		return append([]byte{resp.Function, byte(len(data))}, data...)
	default:
		out := []byte{resp.Function, 0, 0, 0, 0}
		binary.BigEndian.PutUint16(out[1:3], resp.Start)
		binary.BigEndian.PutUint16(out[3:5], resp.Quantity)
		return out
	}
}

func exceptionResponse(function, code uint8) []byte {
	return []byte{function | 0x80, code}
}

// Close stops the server and waits for all connections to finish
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		s.cancel()
		if s.listener != nil {
			s.listener.Close()
		}
	})
	s.wg.Wait()
}
