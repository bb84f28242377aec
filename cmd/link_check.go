// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/Thermoquad/wellgate/pkg/xbee"
	"github.com/spf13/cobra"
)

var (
	linkCheckDuration  int
	linkCheckInterval  int
	linkCheckMaxGap    int
	linkCheckMaxErrors float64
)

var linkCheckCmd = &cobra.Command{
	Use:   "link_check",
	Short: "Judge radio link quality from received traffic",
	Long: `Listen to the radio port without transmitting and grade the link from what
arrives: frames per type, decode errors by kind, modem status events and the
longest silence between frames.

The check fails when the link drops, when the silence between two frames
exceeds --max-gap seconds, or when decode errors exceed --max-errors percent of
all frames.

Exit codes:
  0 - Link within limits
  1 - Link outside limits or dropped
  2 - Connection error`,
	RunE: runLinkCheck,
}

func init() {
	rootCmd.AddCommand(linkCheckCmd)
	linkCheckCmd.Flags().IntVar(&linkCheckDuration, "duration", 30, "Listen duration in seconds")
	linkCheckCmd.Flags().IntVar(&linkCheckInterval, "interval", 5, "Progress line every N seconds")
	linkCheckCmd.Flags().IntVar(&linkCheckMaxGap, "max-gap", 0, "Longest allowed silence in seconds (0 = no limit)")
	linkCheckCmd.Flags().Float64Var(&linkCheckMaxErrors, "max-errors", 5, "Allowed decode errors in percent of frames")
}

// linkTally is what link_check learns about the link
type linkTally struct {
	byType    map[xbee.FrameType]uint64
	events    []string
	lastFrame time.Time
	maxGap    time.Duration
}

func newLinkTally(start time.Time) *linkTally {
	return &linkTally{byType: make(map[xbee.FrameType]uint64), lastFrame: start}
}

// frame records a decoded frame received at t
func (l *linkTally) frame(f *xbee.Frame, t time.Time) {
	l.byType[f.Type]++
	l.gap(t)
	l.lastFrame = t

	if f.Type != xbee.TypeModemStatus {
		return
	}
	if resp, err := xbee.ParseResponse(f); err == nil {
		if ms, ok := resp.(*xbee.ModemStatus); ok {
			l.events = append(l.events, fmt.Sprintf("%s %s", t.Format("15:04:05"), ms.Event))
		}
	}
}

// gap folds the silence up to t into the longest gap seen
func (l *linkTally) gap(t time.Time) {
	if d := t.Sub(l.lastFrame); d > l.maxGap {
		l.maxGap = d
	}
}

// types returns the seen frame types in ascending order
func (l *linkTally) types() []xbee.FrameType {
	out := make([]xbee.FrameType, 0, len(l.byType))
	for t := range l.byType {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// verdict grades the link against the limits. An empty result passes.
func (l *linkTally) verdict(snap xbee.StatisticsSnapshot, maxGap time.Duration, maxErrors float64) string {
	if maxGap > 0 && l.maxGap > maxGap {
		return fmt.Sprintf("silent for %v (limit %v)", l.maxGap.Round(time.Millisecond), maxGap)
	}
	if snap.TotalFrames > 0 {
		pct := float64(snap.Errors()) * 100 / float64(snap.TotalFrames)
		if pct > maxErrors {
			return fmt.Sprintf("%.1f%% decode errors (limit %.1f%%)", pct, maxErrors)
		}
	}
	return ""
}

func runLinkCheck(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Radio Link Check\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Listening for %ds\n\n", linkCheckDuration)

	reader := xbee.NewReader(conn, escapedMode())
	stats := reader.Statistics()

	frames := make(chan *xbee.Frame, 64)
	dropped := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			res := reader.ReadFrame(500 * time.Millisecond)
			switch res.Status {
			case xbee.ReadReady:
				select {
				case frames <- res.Frame:
				case <-stop:
					return
				}
			case xbee.ReadError:
				var fe *xbee.FrameError
				if !errors.As(res.Err, &fe) {
					dropped <- res.Err
					return
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)

	started := time.Now()
	deadline := time.After(time.Duration(linkCheckDuration) * time.Second)
	progress := time.NewTicker(time.Duration(max(linkCheckInterval, 1)) * time.Second)
	defer progress.Stop()

	tally := newLinkTally(started)
	failure := ""

listen:
	for {
		select {
		case f := <-frames:
			tally.frame(f, time.Now())

		case err := <-dropped:
			failure = fmt.Sprintf("link dropped: %v", err)
			break listen

		case <-progress.C:
			snap := stats.Snapshot()
			fmt.Printf("[%s] %d frames, %d errors, longest silence %v\n",
				time.Now().Format("15:04:05"), snap.ValidFrames, snap.Errors(),
				max(tally.maxGap, time.Since(tally.lastFrame)).Round(time.Second))

		case <-sigChan:
			fmt.Printf("\nInterrupted\n")
			break listen

		case <-deadline:
			break listen
		}
	}
	tally.gap(time.Now())

	fmt.Printf("\n--- Frames by type (%v) ---\n", time.Since(started).Round(time.Second))
	for _, t := range tally.types() {
		fmt.Printf("  %-28s %6d\n", t, tally.byType[t])
	}
	if len(tally.events) > 0 {
		fmt.Printf("\n--- Modem events ---\n")
		for _, e := range tally.events {
			fmt.Printf("  %s\n", e)
		}
	}
	fmt.Printf("\nLongest silence: %v\n\n", tally.maxGap.Round(time.Millisecond))
	fmt.Print(stats.String())

	if failure == "" {
		failure = tally.verdict(stats.Snapshot(), time.Duration(linkCheckMaxGap)*time.Second, linkCheckMaxErrors)
	}
	if failure != "" {
		fmt.Printf("Result: FAILED (%s)\n", failure)
		os.Exit(1)
	}
	fmt.Printf("Result: PASSED\n")
	return nil
}
