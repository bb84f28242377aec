// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/wellgate/internal/field"
	"github.com/Thermoquad/wellgate/pkg/xbee"
	"github.com/spf13/cobra"
)

var (
	atPingTimeout int
	atPingCount   int
	atPingCommand string
	atPingRemote  string
)

var atPingCmd = &cobra.Command{
	Use:   "at_ping",
	Short: "Test the radio link by sending AT commands",
	Long: `Send AT commands to the local radio module, or to a remote one with --remote,
and wait for each answer.

The default command VR reads the firmware version and changes nothing.

This is useful for verifying:
  - The radio is in API mode with the expected escaping
  - WebSocket bridge authentication works
  - A remote terminal's radio is reachable through the mesh

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runATPing,
}

func init() {
	rootCmd.AddCommand(atPingCmd)
	atPingCmd.Flags().IntVar(&atPingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	atPingCmd.Flags().IntVar(&atPingCount, "count", 3, "Number of pings to send")
	atPingCmd.Flags().StringVar(&atPingCommand, "command", "VR", "Two-character AT command to send")
	atPingCmd.Flags().StringVar(&atPingRemote, "remote", "", "64-bit address of a remote module (hex)")
}

func runATPing(cmd *cobra.Command, args []string) error {
	var remote uint64
	if atPingRemote != "" {
		if _, err := fmt.Sscanf(strings.TrimPrefix(atPingRemote, "0x"), "%x", &remote); err != nil {
			return fmt.Errorf("invalid remote address %q", atPingRemote)
		}
	}
	command := strings.ToUpper(atPingCommand)

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	target := "local module"
	if atPingRemote != "" {
		target = fmt.Sprintf("%016X", remote)
	}

	fmt.Printf("Wellgate - AT Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Target: %s\n", target)
	fmt.Printf("Command: AT%s\n", command)
	fmt.Printf("Timeout: %d seconds per ping\n", atPingTimeout)
	fmt.Printf("Count: %d pings\n\n", atPingCount)

	timeout := time.Duration(atPingTimeout) * time.Second
	radio := field.NewRadioExchanger(conn, escapedMode(), timeout, diagnosticLogger())
	ctx := context.Background()

	successCount := 0
	failCount := 0

	for i := 1; i <= atPingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, atPingCount)

		startTime := time.Now()
		var value []byte
		if atPingRemote != "" {
			var resp *xbee.RemoteATCommandResponse
			resp, err = radio.RemoteAT(ctx, remote, command, nil)
			if resp != nil {
				value = resp.Value
			}
		} else {
			err = radio.LocalAT(ctx, command, nil, timeout, func(r *xbee.ATCommandResponse) bool {
				value = r.Value
				return false
			})
		}
		rtt := time.Since(startTime)

		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		} else {
			fmt.Printf("OK (%v) value=%s\n", rtt.Round(time.Millisecond), xbee.FormatHex(value))
			successCount++
		}

		// Small delay between pings
		if i < atPingCount {
			time.Sleep(500 * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% loss\n",
		atPingCount, successCount, float64(failCount)*100.0/float64(max(atPingCount, 1)))

	if failCount > 0 {
		os.Exit(1)
	}

	return nil
}
