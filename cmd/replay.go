// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/wellgate/pkg/xbee"
	"github.com/spf13/cobra"
)

var replayTypes []string

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Print the frames of a capture file",
	Long: `Read a CBOR capture file written by raw_log --capture and print every frame
in the same format raw_log uses, followed by per-type totals.

Use --type to only print frames of the given types (hex, e.g. 90,8B).`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringSliceVar(&replayTypes, "type", nil, "Only print these frame types (hex)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	filter := make(map[xbee.FrameType]bool)
	for _, s := range replayTypes {
		var v uint8
		if _, err := fmt.Sscanf(s, "%x", &v); err != nil {
			return fmt.Errorf("invalid frame type %q", s)
		}
		filter[xbee.FrameType(v)] = true
	}

	counts := make(map[xbee.FrameType]int)
	var order []xbee.FrameType
	total := 0

	r := xbee.NewCaptureReader(f)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		frame := rec.Frame()
		if counts[frame.Type] == 0 {
			order = append(order, frame.Type)
		}
		counts[frame.Type]++
		total++

		if len(filter) > 0 && !filter[frame.Type] {
			continue
		}
		dir := "RX"
		if rec.Direction == xbee.DirectionTx {
			dir = "TX"
		}
		fmt.Printf("%s ", dir)
		fmt.Print(xbee.FormatFrame(frame))
	}

	fmt.Printf("\n--- Replay summary ---\n")
	fmt.Printf("Frames: %d\n", total)
	for _, t := range order {
		fmt.Printf("  %-28s %6d\n", t.String(), counts[t])
	}
	return nil
}
