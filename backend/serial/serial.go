// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package serial implements pinproxy.Backend over a microcontroller
// reachable on a serial port, talking the single-byte opcode protocol
// documented below. It is the Go sibling of the on-MCU firmware that
// decodes the same opcode stream; this package only ever speaks it, it
// never assembles it into anything richer.
//
// Each opcode byte packs a 3-bit operation selector into the high bits
// and a 5-bit operand into the low bits:
//
//	SETPIN_HIGH | pin   set pin high
//	SETPIN_LOW  | pin   set pin low
//	WAIT_US     | n     busy-wait n (0-31) microseconds
//	READ        | pin   sample pin, queue one reply byte
//	SET_AS_OUTPUT | pin configure pin as output
//	SET_AS_INPUT  | pin configure pin as input
//
// Replies come back one byte per READ, in issue order. Flow control is
// credit-based: every CHUNKSIZE bytes written, a PROGRESS_MARK read is
// expected back once the MCU has drained that much of its input queue,
// which lets send block before the MCU's input buffer can overflow.
package serial

import (
	"fmt"
	"math"
	"time"

	daedaluz "github.com/daedaluz/goserial"

	"github.com/ntki/nops/pinproxy"
)

const (
	opSetPinLow    = 0x00
	opSetPinHigh   = 0x20
	opWaitUS       = 0x40
	opRead         = 0x60
	opSetAsOutput  = 0x80
	opSetAsInput   = 0xA0
	pinMask        = 0x1F
	loopTimeUS     = 15
	progressChunk  = 32
	progressMark   = 0x11
	resetSettle    = 300 * time.Millisecond
	maxUnprocessed = progressChunk * 8
)

type pinState int

const (
	stateUnknown pinState = iota
	stateLow
	stateHigh
)

// Backend drives a single MCU reachable at device/baud, with pins
// identified the same way as the firmware's own table: a backend pin is
// a small integer 0-31.
type Backend struct {
	device  string
	baud    int
	port    *daedaluz.Port
	pins    map[pinproxy.Pin]struct{}
	state   map[pinproxy.Pin]pinState
	pending []func(byte)
	unsent  int
}

// New returns a serial MCU backend for the given pin set (backend pin
// identifiers, typically small ints matching the firmware's GPIO
// numbering) reachable at device/baud.
func New(device string, baud int, pins map[pinproxy.Pin]struct{}) *Backend {
	return &Backend{
		device: device,
		baud:   baud,
		pins:   pins,
		state:  map[pinproxy.Pin]pinState{},
	}
}

func (b *Backend) OutputPins() map[pinproxy.Pin]struct{} { return b.pins }
func (b *Backend) InputPins() map[pinproxy.Pin]struct{}  { return b.pins }

// Open opens the serial port at 8N1, pulses DTR/RTS to reset the MCU,
// and drains whatever the reset sequence wrote to the input buffer.
func (b *Backend) Open() error {
	port, err := daedaluz.Open(b.device, daedaluz.NewOptions())
	if err != nil {
		return fmt.Errorf("backend/serial: open %s: %w", b.device, err)
	}
	if err := port.MakeRaw(); err != nil {
		port.Close()
		return fmt.Errorf("backend/serial: make raw: %w", err)
	}
	attrs, err := port.GetAttr2()
	if err != nil {
		port.Close()
		return fmt.Errorf("backend/serial: get attrs: %w", err)
	}
	attrs.SetCustomSpeed(uint32(b.baud))
	if err := port.SetAttr2(daedaluz.TCSANOW, attrs); err != nil {
		port.Close()
		return fmt.Errorf("backend/serial: set baud: %w", err)
	}
	b.port = port
	b.unsent = 0
	b.pending = nil
	for pin := range b.pins {
		b.state[pin] = stateUnknown
	}
	return b.reset()
}

func (b *Backend) reset() error {
	if err := b.port.DisableModemLines(daedaluz.TIOCM_DTR | daedaluz.TIOCM_RTS); err != nil {
		return fmt.Errorf("backend/serial: lower dtr/rts: %w", err)
	}
	if err := b.port.EnableModemLines(daedaluz.TIOCM_DTR | daedaluz.TIOCM_RTS); err != nil {
		return fmt.Errorf("backend/serial: raise dtr/rts: %w", err)
	}
	time.Sleep(resetSettle)
	return b.port.Flush(daedaluz.TCIFLUSH)
}

// Close flushes any outstanding operations, resets the MCU again (so a
// subsequent Open starts from a known state) and closes the port.
func (b *Backend) Close() error {
	if b.port == nil {
		return nil
	}
	if err := b.Flush(); err != nil {
		b.port.Close()
		b.port = nil
		return err
	}
	err := b.reset()
	cerr := b.port.Close()
	b.port = nil
	if err != nil {
		return err
	}
	return cerr
}

func (b *Backend) backendPin(p pinproxy.Pin) (byte, error) {
	if _, ok := b.pins[p]; !ok {
		return 0, fmt.Errorf("backend/serial: unknown pin %v", p)
	}
	n, ok := p.(int)
	if !ok || n < 0 || n > pinMask {
		return 0, fmt.Errorf("backend/serial: pin %v is not a valid MCU pin number", p)
	}
	return byte(n), nil
}

func (b *Backend) SetAsInput(p pinproxy.Pin) error {
	n, err := b.backendPin(p)
	if err != nil {
		return err
	}
	if err := b.send(opSetAsInput | n); err != nil {
		return err
	}
	b.state[p] = stateUnknown
	return nil
}

func (b *Backend) SetAsOutput(p pinproxy.Pin) error {
	n, err := b.backendPin(p)
	if err != nil {
		return err
	}
	if err := b.send(opSetAsOutput | n); err != nil {
		return err
	}
	b.state[p] = stateUnknown
	return nil
}

func (b *Backend) SetPin(p pinproxy.Pin, state bool) error {
	n, err := b.backendPin(p)
	if err != nil {
		return err
	}
	want := stateLow
	op := byte(opSetPinLow)
	if state {
		want = stateHigh
		op = opSetPinHigh
	}
	if b.state[p] == want {
		return nil
	}
	if err := b.send(op | n); err != nil {
		return err
	}
	b.state[p] = want
	return nil
}

func (b *Backend) FetchPin(p pinproxy.Pin, callback func(bit int)) error {
	n, err := b.backendPin(p)
	if err != nil {
		return err
	}
	b.pending = append(b.pending, func(v byte) { callback(int(v)) })
	return b.send(opRead | n)
}

// Wait encodes d as a run of WAIT_US opcodes, each covering up to 31
// microseconds, and subtracting the firmware's fixed per-opcode
// dispatch overhead the way the reference loader does.
func (b *Backend) Wait(d time.Duration) error {
	if d < 0 {
		return pinproxy.ErrInvalidWait
	}
	usec := int(math.Ceil(float64(d) / float64(time.Microsecond)))
	for usec > loopTimeUS {
		usec -= loopTimeUS
		n := usec
		if n > 31 {
			n = 31
		}
		usec -= n
		if err := b.send(opWaitUS | byte(n)); err != nil {
			return err
		}
	}
	return nil
}

// send writes a single opcode byte, enqueues a progress-mark
// expectation every progressChunk bytes, and applies backpressure once
// too many bytes are outstanding so the MCU's input buffer cannot
// overrun.
func (b *Backend) send(op byte) error {
	if _, err := b.port.Write([]byte{op}); err != nil {
		return fmt.Errorf("backend/serial: write: %w", err)
	}
	b.unsent++
	if b.unsent%progressChunk == 0 {
		b.pending = append(b.pending, b.progressMarkReceived)
	}
	for b.unsent >= maxUnprocessed {
		if err := b.handleRead(1); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) progressMarkReceived(v byte) {
	if v != progressMark {
		panic(fmt.Sprintf("backend/serial: expected progress mark 0x%02x, got 0x%02x", progressMark, v))
	}
	b.unsent -= progressChunk
}

func (b *Backend) handleRead(n int) error {
	if n <= 0 {
		n = len(b.pending)
	}
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	got, err := b.port.Read(buf)
	if err != nil {
		return fmt.Errorf("backend/serial: read: %w", err)
	}
	for i := 0; i < got; i++ {
		cb := b.pending[0]
		b.pending = b.pending[1:]
		cb(buf[i])
	}
	return nil
}

// Flush issues a harmless read of a declared pin as a barrier, drains
// the port's write buffer, and blocks until every outstanding callback
// (including progress marks) has been serviced.
func (b *Backend) Flush() error {
	var barrier pinproxy.Pin
	for p := range b.pins {
		barrier = p
		break
	}
	if barrier != nil {
		if err := b.FetchPin(barrier, func(int) {}); err != nil {
			return err
		}
	}
	if err := b.port.Drain(); err != nil {
		return fmt.Errorf("backend/serial: drain: %w", err)
	}
	for len(b.pending) > 0 {
		if err := b.handleRead(0); err != nil {
			return err
		}
	}
	return nil
}

var _ pinproxy.Backend = (*Backend)(nil)
