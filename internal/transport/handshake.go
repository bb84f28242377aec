// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Command mode strings
const (
	commandSequence = "+++"
	okResponse      = "OK"
)

// HandshakeConfig holds the radio parameters written at startup
type HandshakeConfig struct {
	PanID          string
	Coordinator    bool
	APIMode        int
	DisableAck     bool
	GuardTime      time.Duration
	CommandTimeout time.Duration
}

// HandshakeError reports the command that failed during the startup handshake
type HandshakeError struct {
	Command  string
	Response string
	Err      error
}

func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("radio handshake %q: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("radio handshake %q: got %q, expected %q", e.Command, e.Response, okResponse)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// HandshakeCommands returns the AT commands sent after entering command mode,
// in order
func HandshakeCommands(cfg HandshakeConfig) []string {
	return []string{
		"ATID " + cfg.PanID,
		"ATCE " + boolParam(cfg.Coordinator),
		"ATAP " + strconv.Itoa(cfg.APIMode),
		"ATTO " + boolParam(cfg.DisableAck),
		"ATWR",
		"ATAC",
		"ATCN",
	}
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Handshake configures the radio through its transparent command mode.
// Every step must answer OK; any failure is returned as a *HandshakeError.
func Handshake(ctx context.Context, port Port, cfg HandshakeConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	// Guard time silence before the escape sequence
	if err := sleep(ctx, cfg.GuardTime); err != nil {
		return &HandshakeError{Command: commandSequence, Err: err}
	}
	if err := command(port, commandSequence, cfg.GuardTime+cfg.CommandTimeout); err != nil {
		return err
	}
	logger.Debug("radio in command mode")

	for _, cmd := range HandshakeCommands(cfg) {
		if err := ctx.Err(); err != nil {
			return &HandshakeError{Command: cmd, Err: err}
		}
		if err := command(port, cmd+"\r", cfg.CommandTimeout); err != nil {
			return err
		}
		logger.Debug("radio command accepted", "command", cmd)
	}

	logger.Info("radio configured", "pan_id", cfg.PanID, "coordinator", cfg.Coordinator, "api_mode", cfg.APIMode)
	return nil
}

// command sends one command and waits for the OK line
func command(port Port, cmd string, timeout time.Duration) error {
	name := string(bytes.TrimRight([]byte(cmd), "\r"))

	if _, err := port.Write([]byte(cmd)); err != nil {
		return &HandshakeError{Command: name, Err: fmt.Errorf("write: %w", err)}
	}

	line, err := readLine(port, timeout)
	if err != nil {
		return &HandshakeError{Command: name, Err: err}
	}
	if line != okResponse {
		return &HandshakeError{Command: name, Response: line}
	}
	return nil
}

// readLine reads up to the next carriage return
func readLine(port Port, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	var line []byte
	buf := make([]byte, 1)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", fmt.Errorf("timed out after %v waiting for response", timeout)
		}
		if err := port.SetReadTimeout(remaining); err != nil {
			return "", fmt.Errorf("set read timeout: %w", err)
		}

		n, err := port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			continue
		}
		if buf[0] == '\r' {
			return string(bytes.TrimSpace(line)), nil
		}
		line = append(line, buf[0])
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
