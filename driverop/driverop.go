// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package driverop gives target drivers (cmd/nops imports them as
// target/avrspi, target/avrjtag, target/ee25lc040 and target/ee93lc6;
// those packages are not part of this repository) a single explicit
// contract for a chip operation, in place of a keyword-argument assembler that
// inspected a function's signature to decide what it needed at call
// time. A driver package exposes each operation — typically Read,
// Write, Erase — as a concrete Operation value.
package driverop

import (
	"github.com/ntki/nops/mem"
	"github.com/ntki/nops/pinproxy"
	"github.com/ntki/nops/progress"
)

// Context carries everything an Operation.Run may need. Input is nil
// for operations that don't read one; Operation.NeedsInput tells a
// caller whether it must be populated before Run is called.
type Context struct {
	Pins     *pinproxy.PinProxy
	Progress progress.Indicator
	Input    mem.Mem
}

// Operation is one chip-programming action: reading flash back into a
// mem.Mem, writing a mem.Mem to flash, erasing a chip, probing its
// signature, and so on.
type Operation interface {
	// NeedsInput reports whether Run requires Context.Input to be set
	// (true for writes, false for reads/erases/probes).
	NeedsInput() bool
	Run(ctx Context) (mem.Mem, error)
}

// Func adapts a plain function to Operation, for operations with no
// meaningful return value of their own (Run's mem.Mem result is nil).
type Func struct {
	NeedsInputValue bool
	Fn              func(ctx Context) error
}

func (f Func) NeedsInput() bool { return f.NeedsInputValue }

func (f Func) Run(ctx Context) (mem.Mem, error) {
	return nil, f.Fn(ctx)
}

var _ Operation = Func{}
