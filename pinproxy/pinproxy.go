// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pinproxy

import (
	"errors"
	"fmt"
	"time"
)

// Direction is the configured direction of a symbolic target pin.
type Direction int

const (
	// Unset is the initial direction of every symbolic pin, before the
	// first SetAsInput/SetAsOutput call.
	Unset Direction = iota
	In
	Out
)

var (
	// ErrUnknownPin is returned at construction when the pin map
	// references a backend pin the backend does not declare in either its
	// input or output set.
	ErrUnknownPin = errors.New("pinproxy: unknown backend pin")

	// ErrUnassignedPin is returned when a symbolic pin not present in the
	// pin map is used.
	ErrUnassignedPin = errors.New("pinproxy: unassigned pin")

	// ErrDirectionUnsupported is returned when SetAsInput/SetAsOutput
	// targets a backend pin that does not support the requested direction.
	ErrDirectionUnsupported = errors.New("pinproxy: direction unsupported by backend pin")

	// ErrDirectionMismatch is returned when SetPin is called on a pin not
	// set as Out, or FetchPin on a pin not set as In.
	ErrDirectionMismatch = errors.New("pinproxy: direction mismatch")

	// ErrInvalidWait is returned by a Backend's Wait when given a negative
	// duration.
	ErrInvalidWait = errors.New("pinproxy: negative wait duration")
)

// PinProxy interposes symbolic pin naming, direction checking, and input
// bit accumulation between target drivers and a Backend.
type PinProxy struct {
	backend Backend
	pinmap  PinMap
	dirs    map[string]Direction
	inbuf   map[string][]int
}

// New validates pinmap against backend's declared capability sets (the
// union of its input and output pins) and constructs a PinProxy. It does
// not open the backend — call Open (or use PinProxy as a scoped handle via
// Open/Close) before issuing any other operation.
func New(backend Backend, pinmap PinMap) (*PinProxy, error) {
	lpins := map[Pin]struct{}{}
	for p := range backend.OutputPins() {
		lpins[p] = struct{}{}
	}
	for p := range backend.InputPins() {
		lpins[p] = struct{}{}
	}
	for tpin, m := range pinmap {
		if m.IsIgnored() {
			continue
		}
		if _, ok := lpins[m.pin]; !ok {
			return nil, fmt.Errorf("%w: %q -> %v", ErrUnknownPin, tpin, m.pin)
		}
	}
	return &PinProxy{
		backend: backend,
		pinmap:  pinmap,
		dirs:    map[string]Direction{},
		inbuf:   map[string][]int{},
	}, nil
}

// Open acquires the backend's resources. PinProxy acts as a scoped handle:
// call Open on entry and Close on every exit path (normal or error).
func (p *PinProxy) Open() error {
	return p.backend.Open()
}

// Close releases the backend's resources. Idempotent if the backend's
// Close is idempotent.
func (p *PinProxy) Close() error {
	return p.backend.Close()
}

// SetAsInput configures each symbolic pin's direction as input.
func (p *PinProxy) SetAsInput(tpins ...string) error {
	for _, tpin := range tpins {
		if err := p.setDirection(tpin, In); err != nil {
			return err
		}
	}
	return nil
}

// SetAsOutput configures each symbolic pin's direction as output.
func (p *PinProxy) SetAsOutput(tpins ...string) error {
	for _, tpin := range tpins {
		if err := p.setDirection(tpin, Out); err != nil {
			return err
		}
	}
	return nil
}

// SetPin drives an output pin to state. Requires the pin be set as Out.
// Ignored pins are a silent no-op.
func (p *PinProxy) SetPin(tpin string, state bool) error {
	if err := p.checkDirection(tpin, Out); err != nil {
		return err
	}
	m, err := p.lookup(tpin)
	if err != nil {
		return err
	}
	if m.IsIgnored() {
		return nil
	}
	return p.backend.SetPin(m.pin, state)
}

// ResetPin drives an output pin low. Equivalent to SetPin(tpin, false).
func (p *PinProxy) ResetPin(tpin string) error {
	return p.SetPin(tpin, false)
}

// FetchPin asynchronously samples an input pin, enqueuing the sampled bit
// onto tpin's bit queue. Requires the pin be set as In. Ignored pins are a
// silent no-op.
func (p *PinProxy) FetchPin(tpin string) error {
	if err := p.checkDirection(tpin, In); err != nil {
		return err
	}
	m, err := p.lookup(tpin)
	if err != nil {
		return err
	}
	if m.IsIgnored() {
		return nil
	}
	return p.backend.FetchPin(m.pin, func(bit int) {
		p.inbuf[tpin] = append(p.inbuf[tpin], bit)
	})
}

// Wait forwards a delay request to the backend.
func (p *PinProxy) Wait(d time.Duration) error {
	return p.backend.Wait(d)
}

// Flush forwards to the backend. On return, every prior fetch has been
// reified into its pin's bit queue.
func (p *PinProxy) Flush() error {
	return p.backend.Flush()
}

// PopFetched performs an implicit Flush, then greedily consumes bits from
// tpin's queue in groups of nBits, packing each group into an integer.
//
// lsb=false (the default in spec terms) treats the first bit consumed as
// the most-significant bit of the produced integer; lsb=true treats it as
// least-significant. Consumption stops when fewer than nBits bits remain,
// or nValues integers have been produced (nValues<0 means unlimited).
// Leftover bits remain enqueued for a subsequent call.
func (p *PinProxy) PopFetched(tpin string, nBits int, nValues int, lsb bool) ([]int, error) {
	if err := p.Flush(); err != nil {
		return nil, err
	}
	if _, err := p.lookup(tpin); err != nil {
		return nil, err
	}

	bq := p.inbuf[tpin]
	var result []int
	pos := 0
	for len(bq)-pos >= nBits && nValues != 0 {
		value := 0
		for i := 0; i < nBits; i++ {
			bit := bq[pos+i]
			if lsb {
				value |= bit << i
			} else {
				value = value<<1 | bit
			}
		}
		result = append(result, value)
		pos += nBits
		if nValues > 0 {
			nValues--
		}
	}
	p.inbuf[tpin] = bq[pos:]
	return result, nil
}

func (p *PinProxy) lookup(tpin string) (Mapping, error) {
	m, ok := p.pinmap[tpin]
	if !ok {
		return Mapping{}, fmt.Errorf("%w: %q", ErrUnassignedPin, tpin)
	}
	return m, nil
}

func (p *PinProxy) checkDirection(tpin string, want Direction) error {
	if p.dirs[tpin] != want {
		return fmt.Errorf("%w: %q is not set as %v", ErrDirectionMismatch, tpin, want)
	}
	return nil
}

func (p *PinProxy) setDirection(tpin string, dir Direction) error {
	m, err := p.lookup(tpin)
	if err != nil {
		return err
	}
	if !m.IsIgnored() && p.dirs[tpin] != dir {
		supported := p.backend.OutputPins()
		if dir == In {
			supported = p.backend.InputPins()
		}
		if _, ok := supported[m.pin]; !ok {
			return fmt.Errorf("%w: %q -> %v as %v", ErrDirectionUnsupported, tpin, m.pin, dir)
		}
		if dir == Out {
			err = p.backend.SetAsOutput(m.pin)
		} else {
			err = p.backend.SetAsInput(m.pin)
		}
		if err != nil {
			return err
		}
	}
	p.dirs[tpin] = dir
	return nil
}

func (d Direction) String() string {
	switch d {
	case In:
		return "IN"
	case Out:
		return "OUT"
	default:
		return "UNSET"
	}
}
