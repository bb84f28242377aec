// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package field

import (
	"context"
	"log/slog"
)

// Arbiter serializes exchanges on one physical channel: at most one
// request/response pair is in flight. Waiting to acquire observes the context;
// a held exchange is never interrupted.
type Arbiter struct {
	sem chan struct{}
}

// NewArbiter creates an arbiter for one channel
func NewArbiter() *Arbiter {
	return &Arbiter{sem: make(chan struct{}, 1)}
}

// Acquire blocks until the channel is free or ctx is done
func (a *Arbiter) Acquire(ctx context.Context) error {
	select {
	case a.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the channel
func (a *Arbiter) Release() {
	<-a.sem
}

// Do runs fn while holding the channel
func (a *Arbiter) Do(ctx context.Context, fn func() error) error {
	if err := a.Acquire(ctx); err != nil {
		return err
	}
	defer a.Release()
	return fn()
}

// Channel is one physical field channel and the arbiter that serializes it
type Channel struct {
	Exchanger Exchanger
	Arbiter   *Arbiter
}

// Exchange runs fn while holding the channel, applying the retry policy.
// Each attempt acquires the channel anew.
func (c Channel) Exchange(ctx context.Context, attempts int, logger *slog.Logger, op string, fn func(ctx context.Context, ex Exchanger) error) error {
	return Retry(ctx, attempts, logger, op, func() error {
		return c.Arbiter.Do(ctx, func() error { return fn(ctx, c.Exchanger) })
	})
}
