// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/wellgate/pkg/xbee"
	"github.com/spf13/cobra"
)

var (
	frameTestTimeout int
)

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a valid API frame",
	Long: `Wait for a valid radio API frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
API frame. It ignores invalid bytes and waits for a complete frame whose
checksum verifies.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for testing connectivity to a local radio or a WebSocket bridge.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Wellgate - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for valid API frame...\n\n")

	reader := xbee.NewReader(conn, escapedMode())
	deadline := time.Now().Add(time.Duration(frameTestTimeout) * time.Second)
	invalid := 0

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", frameTestTimeout)
			os.Exit(1)
		}

		res := reader.ReadFrame(remaining)
		switch res.Status {
		case xbee.ReadReady:
			if invalid > 0 {
				fmt.Printf("(skipped %d invalid frames before sync)\n", invalid)
			}
			f := res.Frame
			fmt.Printf("SUCCESS: Received valid frame\n")
			fmt.Printf("  Type: %s (0x%02X)\n", f.Type, uint8(f.Type))
			fmt.Printf("  Length: %d bytes\n", f.Length())
			fmt.Printf("  Checksum: 0x%02X\n", f.Checksum())
			os.Exit(0)

		case xbee.ReadError:
			var fe *xbee.FrameError
			if errors.As(res.Err, &fe) {
				// Ignore decode errors, just count them
				invalid++
				continue
			}
			fmt.Fprintf(os.Stderr, "Read error: %v\n", res.Err)
			os.Exit(2)
		}
	}
}
