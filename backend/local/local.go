// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package local implements pinproxy.Backend directly against the host's
// GPIO pins via periph.io/x/conn/v3/gpio, the same interface
// periph-host/gpioioctl's GPIOLine satisfies. Callers are expected to have
// already run a periph host driver's Init() (e.g. periph.io/x/host/v3's
// host.Init(), or periph-host/gpioioctl's driver) so gpioreg.ByName can
// resolve board pin names.
package local

import (
	"fmt"
	"time"

	"github.com/ntki/nops/pinproxy"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// BusySpinThreshold is the wait duration below which Wait busy-spins
// instead of sleeping, matching original_source/lib/loader/rpi.py's
// LOOP_TIME heuristic: below this, the scheduler's wakeup latency would
// dominate the requested delay.
const BusySpinThreshold = 50 * time.Microsecond

// Backend drives local GPIO pins named in board, a map from a backend pin
// identifier (here, an arbitrary comparable key — typically the same
// string as the symbolic target pin) to the periph GPIO pin name
// gpioreg.ByName resolves (e.g. "GPIO17").
type Backend struct {
	board map[pinproxy.Pin]string

	resolved map[pinproxy.Pin]gpio.PinIO
}

// New returns a local GPIO backend. board maps backend pin identifiers to
// periph GPIO pin names; every key of board is both an input and an
// output pin as far as the backend's declared capability sets go — the
// underlying gpio.PinIO decides at In()/Out() time whether the line
// actually supports the requested direction.
func New(board map[pinproxy.Pin]string) *Backend {
	return &Backend{board: board, resolved: map[pinproxy.Pin]gpio.PinIO{}}
}

func (b *Backend) pinSet() map[pinproxy.Pin]struct{} {
	out := make(map[pinproxy.Pin]struct{}, len(b.board))
	for k := range b.board {
		out[k] = struct{}{}
	}
	return out
}

func (b *Backend) OutputPins() map[pinproxy.Pin]struct{} { return b.pinSet() }
func (b *Backend) InputPins() map[pinproxy.Pin]struct{}  { return b.pinSet() }

// Open resolves every declared board pin through gpioreg.ByName once.
func (b *Backend) Open() error {
	for k, name := range b.board {
		p := gpioreg.ByName(name)
		if p == nil {
			return fmt.Errorf("backend/local: unknown periph gpio pin %q (for %v)", name, k)
		}
		b.resolved[k] = p
	}
	return nil
}

// Close releases every resolved pin back to input, with its pull setting
// left unchanged and no edge detection.
func (b *Backend) Close() error {
	var firstErr error
	for k, p := range b.resolved {
		if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("backend/local: closing %v: %w", k, err)
		}
	}
	b.resolved = map[pinproxy.Pin]gpio.PinIO{}
	return firstErr
}

func (b *Backend) pin(p pinproxy.Pin) (gpio.PinIO, error) {
	line, ok := b.resolved[p]
	if !ok {
		return nil, fmt.Errorf("backend/local: pin %v not resolved (Open not called?)", p)
	}
	return line, nil
}

func (b *Backend) SetAsInput(p pinproxy.Pin) error {
	line, err := b.pin(p)
	if err != nil {
		return err
	}
	return line.In(gpio.PullNoChange, gpio.NoEdge)
}

func (b *Backend) SetAsOutput(p pinproxy.Pin) error {
	line, err := b.pin(p)
	if err != nil {
		return err
	}
	return line.Out(gpio.Low)
}

func (b *Backend) SetPin(p pinproxy.Pin, state bool) error {
	line, err := b.pin(p)
	if err != nil {
		return err
	}
	level := gpio.Low
	if state {
		level = gpio.High
	}
	return line.Out(level)
}

func (b *Backend) FetchPin(p pinproxy.Pin, callback func(bit int)) error {
	line, err := b.pin(p)
	if err != nil {
		return err
	}
	bit := 0
	if line.Read() == gpio.High {
		bit = 1
	}
	callback(bit)
	return nil
}

// Wait busy-spins for sub-BusySpinThreshold accuracy, otherwise sleeps.
func (b *Backend) Wait(d time.Duration) error {
	if d < 0 {
		return pinproxy.ErrInvalidWait
	}
	if d < BusySpinThreshold {
		deadline := time.Now().Add(d)
		for time.Now().Before(deadline) {
		}
		return nil
	}
	time.Sleep(d)
	return nil
}

// Flush is a no-op: every local backend operation above already takes
// effect synchronously.
func (b *Backend) Flush() error { return nil }

var _ pinproxy.Backend = (*Backend)(nil)
