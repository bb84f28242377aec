// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Configuration file
	configPath string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Radio link mode
	apiMode int
)

var rootCmd = &cobra.Command{
	Use:   "wellgate",
	Short: "Well-site field data gateway",
	Long: `Wellgate - polls oil wells, water wells and valve groups over a mesh radio
link and an RS485 bus, and serves the readings to a supervisory host over
Modbus TCP.

The run command starts the gateway from a YAML configuration file. The other
commands are diagnostics that talk to the radio directly.

Connection modes for diagnostics:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the WELLGATE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.0.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/wellgate/wellgate.yaml", "Gateway configuration file")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 9600, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket bridge URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().IntVar(&apiMode, "api-mode", 2, "Radio API mode: 1 (unescaped) or 2 (escaped)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
