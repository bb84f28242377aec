// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goburrow/modbus"
	"github.com/spf13/cobra"
)

var (
	queryAddress string
	queryUnit    uint8
	queryStart   uint16
	queryCount   uint16
	queryWrite   string
	queryTimeout int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Read or write a running gateway over Modbus TCP",
	Long: `Act as the supervisory host: send one Modbus TCP request to a running gateway
and print the answer.

Without --write, reads --count holding registers from --start of the site
given by --unit. With --write, writes the comma-separated values from --start;
one value uses function 0x06, more use 0x10.

Examples:
  # Oil well 5 base data
  wellgate query --unit 5 --start 0 --count 30

  # Live indicator diagram of oil well 5
  wellgate query --unit 5 --start 1000 --count 100

  # Set register 12 of water well 8
  wellgate query --unit 8 --start 12 --write 1

Exit codes:
  0 - Request answered
  1 - Exception response or timeout
  2 - Connection error`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&queryAddress, "host", "localhost:502", "Gateway host address")
	queryCmd.Flags().Uint8Var(&queryUnit, "unit", 1, "Site id (Modbus unit id)")
	queryCmd.Flags().Uint16Var(&queryStart, "start", 0, "First register")
	queryCmd.Flags().Uint16Var(&queryCount, "count", 10, "Registers to read")
	queryCmd.Flags().StringVar(&queryWrite, "write", "", "Comma-separated register values to write")
	queryCmd.Flags().IntVar(&queryTimeout, "timeout", 10, "Response timeout in seconds")
}

func parseRegisterValues(s string) ([]uint16, error) {
	parts := strings.Split(s, ",")
	values := make([]uint16, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseUint(p, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid register value %q", p)
		}
		values = append(values, uint16(v))
	}
	return values, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	var values []uint16
	if queryWrite != "" {
		var err error
		if values, err = parseRegisterValues(queryWrite); err != nil {
			return err
		}
	}

	handler := modbus.NewTCPClientHandler(queryAddress)
	handler.SlaveId = queryUnit
	handler.Timeout = time.Duration(queryTimeout) * time.Second
	if err := handler.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer handler.Close()

	client := modbus.NewClient(handler)
	startTime := time.Now()

	switch {
	case len(values) == 1:
		if _, err := client.WriteSingleRegister(queryStart, values[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote register %d = %d on site %d (%v)\n",
			queryStart, values[0], queryUnit, time.Since(startTime).Round(time.Millisecond))

	case len(values) > 1:
		data := make([]byte, 2*len(values))
		for i, v := range values {
			binary.BigEndian.PutUint16(data[2*i:], v)
		}
		if _, err := client.WriteMultipleRegisters(queryStart, uint16(len(values)), data); err != nil {
			fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d registers from %d on site %d (%v)\n",
			len(values), queryStart, queryUnit, time.Since(startTime).Round(time.Millisecond))

	default:
		data, err := client.ReadHoldingRegisters(queryStart, queryCount)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Read failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Site %d registers %d..%d (%v)\n",
			queryUnit, queryStart, int(queryStart)+len(data)/2-1, time.Since(startTime).Round(time.Millisecond))
		printRegisters(queryStart, data)
	}

	return nil
}

// printRegisters prints register values eight to a row
func printRegisters(start uint16, data []byte) {
	for i := 0; i+1 < len(data); i += 2 {
		reg := int(start) + i/2
		if (i/2)%8 == 0 {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("%5d:", reg)
		}
		fmt.Printf(" %6d", binary.BigEndian.Uint16(data[i:]))
	}
	fmt.Println()
}
