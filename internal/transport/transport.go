// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport provides the byte streams that reach the field radio: a
// local serial port or a WebSocket bridge to a remote one.
package transport

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is a field byte stream with timed reads.
// A read that times out returns 0, nil.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
	SetReadTimeout(t time.Duration) error
}

// SerialPort wraps a serial port
type SerialPort struct {
	port serial.Port
}

func (s *SerialPort) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialPort) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialPort) Close() error {
	return s.port.Close()
}

func (s *SerialPort) SetReadTimeout(t time.Duration) error {
	return s.port.SetReadTimeout(t)
}

// OpenSerial opens a serial port at 8N1
func OpenSerial(portName string, baudRate int) (*SerialPort, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialPort{port: port}, nil
}

// Options selects and configures a field transport
type Options struct {
	// Serial
	PortName string
	BaudRate int

	// WebSocket bridge
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

// Open opens either a serial port or a WebSocket bridge.
// The returned description is suitable for log output.
func Open(opts Options) (Port, string, error) {
	if opts.URL != "" {
		port, err := OpenWebSocket(opts.URL, opts.Username, opts.Password, opts.SkipSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return port, fmt.Sprintf("WebSocket: %s", opts.URL), nil
	}

	if opts.PortName != "" {
		port, err := OpenSerial(opts.PortName, opts.BaudRate)
		if err != nil {
			return nil, "", err
		}
		return port, fmt.Sprintf("Serial: %s @ %d baud", opts.PortName, opts.BaudRate), nil
	}

	return nil, "", fmt.Errorf("either a serial port or a bridge URL must be specified")
}
