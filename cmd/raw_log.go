// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/wellgate/internal/transport"
	"github.com/Thermoquad/wellgate/pkg/xbee"
	"github.com/spf13/cobra"
)

var (
	rawLogCapture string
	rawLogStats   int
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw API frame log in human-readable format",
	Long: `Continuously decode and display radio API frames as they arrive.

Each frame is shown with timestamp, frame type and its decoded fields. Decode
errors are printed inline and the stream resynchronizes on the next start byte.

With --capture, every decoded frame is also appended to a CBOR capture file
that the replay command can print later.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVar(&rawLogCapture, "capture", "", "Append decoded frames to a capture file")
	rawLogCmd.Flags().IntVar(&rawLogStats, "stats", 0, "Print decode statistics every N seconds (0 = on exit only)")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	var capture *xbee.CaptureWriter
	if rawLogCapture != "" {
		f, err := os.OpenFile(rawLogCapture, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open capture file: %w", err)
		}
		defer f.Close()
		capture = xbee.NewCaptureWriter(f)
	}

	fmt.Printf("Wellgate - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("API mode: %d\n", apiMode)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	reader := xbee.NewReader(conn, escapedMode())
	lastStats := time.Now()

	defer func() {
		fmt.Print("\n" + reader.Statistics().String())
	}()

	for {
		select {
		case <-interrupt:
			return nil
		default:
		}

		res := reader.ReadFrame(500 * time.Millisecond)
		switch res.Status {
		case xbee.ReadReady:
			fmt.Print(xbee.FormatFrame(res.Frame))
			if capture != nil {
				if err := capture.WriteFrame(res.Frame, xbee.DirectionRx); err != nil {
					return err
				}
			}

		case xbee.ReadError:
			// For WebSocket connections, a read error usually means
			// the connection is permanently closed - exit gracefully
			if errors.Is(res.Err, transport.ErrConnectionClosed) {
				log.Printf("Connection closed")
				return nil
			}
			fmt.Printf("[ERROR] %v\n", res.Err)
		}

		if rawLogStats > 0 && time.Since(lastStats) >= time.Duration(rawLogStats)*time.Second {
			fmt.Print(reader.Statistics().String())
			lastStats = time.Now()
		}
	}
}
