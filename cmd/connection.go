// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Thermoquad/wellgate/internal/transport"
)

// OpenConnection opens the radio link named by the connection flags
func OpenConnection() (transport.Port, string, error) {
	opts := transport.Options{
		PortName:      portName,
		BaudRate:      baudRate,
		URL:           wsURL,
		Username:      wsUsername,
		SkipSSLVerify: wsNoSSLVerify,
	}

	if wsURL != "" && wsUsername != "" {
		password, err := transport.GetPassword()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get password: %w", err)
		}
		opts.Password = password
	}

	if wsURL == "" && portName == "" {
		return nil, "", errors.New("either --port or --url must be specified")
	}
	return transport.Open(opts)
}

// escapedMode reports whether the radio link runs in escaped API mode
func escapedMode() bool {
	return apiMode != 1
}

// diagnosticLogger logs exchange warnings of diagnostic commands to stderr
func diagnosticLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
