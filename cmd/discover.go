// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/wellgate/internal/field"
	"github.com/Thermoquad/wellgate/pkg/xbee"
	"github.com/spf13/cobra"
)

var (
	discoverTimeout int
	discoverName    string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover radio modules on the mesh",
	Long: `Send a node discovery (ATND) through the local radio module and list every
module that answers.

Each answer carries the module's 64-bit and 16-bit addresses, its node
identifier and its role in the mesh. The 64-bit address is what a site's
address field in the gateway configuration expects.

Use --name to look for a single node identifier.

Examples:
  # Direct serial discovery
  wellgate discover --port /dev/ttyUSB0

  # Discovery through a WebSocket bridge
  wellgate discover --url ws://bridge.local/radio --timeout 10

Exit codes:
  0 - At least one module found
  1 - No modules answered before timeout
  2 - Connection error`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().IntVar(&discoverTimeout, "timeout", 6, "Seconds to collect answers")
	discoverCmd.Flags().StringVar(&discoverName, "name", "", "Only look for this node identifier")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Wellgate - Node Discovery\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n\n", discoverTimeout)

	radio := field.NewRadioExchanger(conn, escapedMode(), time.Second, diagnosticLogger())

	var value []byte
	if discoverName != "" {
		value = []byte(discoverName)
	}

	fmt.Printf("Sending ATND...\n")
	nodes := make([]xbee.Node, 0)
	wait := time.Duration(discoverTimeout) * time.Second
	err = radio.LocalAT(context.Background(), "ND", value, wait, func(r *xbee.ATCommandResponse) bool {
		node, err := xbee.ParseNode(r.Value)
		if err != nil {
			fmt.Printf("\n[ERROR] %v\n", err)
			return true
		}
		nodes = append(nodes, node)
		fmt.Printf("\nModule found:\n")
		fmt.Printf("  Address: %016X\n", node.Addr64)
		fmt.Printf("  Network: 0x%04X (parent 0x%04X)\n", node.Addr16, node.Parent16)
		fmt.Printf("  Identifier: %q\n", node.Identifier)
		fmt.Printf("  Role: %s\n", node.DeviceTypeName())
		return discoverName == ""
	})
	if err != nil && len(nodes) == 0 {
		if errors.Is(err, field.ErrTimeout) {
			fmt.Printf("\nTIMEOUT: No modules answered in %ds\n", discoverTimeout)
		} else {
			fmt.Printf("\nDISCOVERY FAILED: %v\n", err)
		}
	}

	// Summary
	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Modules found: %d\n", len(nodes))

	if len(nodes) == 0 {
		fmt.Printf("No modules discovered. Check the PAN id and that the terminals are powered.\n")
		os.Exit(1)
	}

	return nil
}
