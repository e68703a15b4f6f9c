// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pinproxy maps symbolic target-pin names onto a backend's own pin
// identifiers, tracks each pin's configured direction, and accumulates
// asynchronously-sampled input bits into per-pin queues that target
// drivers pull integers out of with PopFetched.
package pinproxy

import "time"

// Pin is a backend pin identifier: an int (serial MCU pin number, remote
// server pin argument, dummy pin index) or a string key of the local
// backend's board table, depending on backend.
type Pin any

// Backend is the minimal digital-I/O contract every transport (local GPIO,
// serial MCU co-processor, remote TCP, dummy) must implement. All
// operations are non-blocking from the caller's perspective except Flush.
type Backend interface {
	// OutputPins and InputPins report declared capabilities. Queried once
	// at PinProxy construction.
	OutputPins() map[Pin]struct{}
	InputPins() map[Pin]struct{}

	// Open and Close are a scoped resource acquisition: Open is called by
	// PinProxy.Open, Close by PinProxy.Close on exit (including error
	// paths); New itself does not call Open. Close
	// must be idempotent; re-opening after Close must be supported.
	Open() error
	Close() error

	SetAsInput(pin Pin) error
	SetAsOutput(pin Pin) error

	// SetPin drives an output pin to the given logic level.
	SetPin(pin Pin, state bool) error

	// FetchPin asynchronously samples an input pin. callback is invoked
	// with the sampled bit (0 or 1) once available — possibly much later
	// for buffered backends — but always synchronously from within
	// FetchPin, Flush, or an internal drain, in the order FetchPin calls
	// were issued, interleaved with the stream of outputs. Callbacks never
	// fire from another goroutine.
	FetchPin(pin Pin, callback func(bit int)) error

	// Wait inserts a delay of at least d into the logical timeline.
	// Returns ErrInvalidWait if d is negative.
	Wait(d time.Duration) error

	// Flush blocks until all previously-issued outputs have taken effect
	// and all previously-issued FetchPin callbacks have fired.
	Flush() error
}

// ProgressIndicator is a write-only fractional-ratio reporter; see package
// nops/progress for implementations.
type ProgressIndicator interface {
	Update(numerator, denominator float64)
}
