// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package field

import (
	"context"
)

// Target identifies the device an exchange is addressed to
type Target struct {
	Site    uint8  // site id, for logging and address learning
	Slave   uint8  // RTU slave id
	Address uint64 // radio address; ignored on the bus
}

// Reply is the result of a register read
type Reply struct {
	Registers []uint16
	Source    uint64 // radio address the reply came from; 0 on the bus
}

// Exchanger performs single register exchanges with field devices.
// Every call is one request/response pair; callers serialize calls through
// the channel's Arbiter and apply the retry policy.
type Exchanger interface {
	ReadRegisters(ctx context.Context, t Target, start, quantity uint16) (Reply, error)
	WriteRegister(ctx context.Context, t Target, address, value uint16) error
	WriteRegisters(ctx context.Context, t Target, start uint16, values []uint16) error
}
