// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package field performs request/response exchanges with field terminals over
// the mesh radio or the wired bus, one at a time per physical channel.
package field

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/wellgate/pkg/xbee"
)

// ErrTimeout is returned when no complete response arrived in time
var ErrTimeout = errors.New("field exchange timed out")

// DeliveryError reports a radio-layer delivery failure
type DeliveryError struct {
	Status xbee.DeliveryStatus
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed: %s", e.Status)
}

// LengthMismatchError reports a response whose data length does not match the
// requested register count
type LengthMismatchError struct {
	Want int
	Got  int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("response carries %d bytes, expected %d", e.Got, e.Want)
}

// ProtocolMismatchError reports a response frame that does not answer the
// request that was sent
type ProtocolMismatchError struct {
	Sent     xbee.FrameType
	Received xbee.FrameType
}

func (e *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("unexpected %s response to %s", e.Received, e.Sent)
}

// ATCommandError reports a local or remote AT command answered with a non-OK status
type ATCommandError struct {
	Command xbee.Command
	Status  xbee.ATStatus
}

func (e *ATCommandError) Error() string {
	return fmt.Sprintf("AT command %s failed: %s", e.Command, e.Status)
}
