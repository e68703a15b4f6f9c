// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package remote implements pinproxy.Backend over a TCP connection to a
// nops-remote-server process driving the GPIO pins on its own host. The
// wire protocol is a 2-byte (opcode, argument) stream in one direction
// and single reply bytes in the other, exactly what Server (see
// server.go) decodes.
package remote

import (
	"bufio"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/ntki/nops/pinproxy"
)

const (
	opSetPinLow    = 0x00
	opSetPinHigh   = 0x20
	opWait100ns    = 0x40
	opReadPin      = 0x60
	opSetAsOutput  = 0x80
	opSetAsInput   = 0xA0
	opFlush        = 0xC0
	waitArgMask    = 0x1F
	loopTime100ns  = 10
	maxWaitUnits   = 1 << 13
	progressChunk  = 1024
	progressMark   = 0x11
	flushDone      = 0xFF
	maxUnprocessed = progressChunk * 8
	maxPending     = 512
)

type pinState int

const (
	stateUnknown pinState = iota
	stateLow
	stateHigh
)

// Client is the remote-transport pinproxy.Backend: every operation is
// serialized to a Server (commonly cmd/nops-remote-server) over a plain
// TCP connection.
type Client struct {
	address string
	conn    net.Conn
	r       *bufio.Reader
	pins    map[pinproxy.Pin]struct{}
	state   map[pinproxy.Pin]pinState

	pending    []func(byte)
	unsent     int
	firstOpErr error
}

// NewClient returns a remote backend that will dial address (host:port)
// on Open, exposing pins as both input and output capable — Server
// applies no direction restriction of its own beyond what the GPIO
// library underneath it enforces.
func NewClient(address string, pins map[pinproxy.Pin]struct{}) *Client {
	return &Client{
		address: address,
		pins:    pins,
		state:   map[pinproxy.Pin]pinState{},
	}
}

func (c *Client) OutputPins() map[pinproxy.Pin]struct{} { return c.pins }
func (c *Client) InputPins() map[pinproxy.Pin]struct{}  { return c.pins }

func (c *Client) Open() error {
	conn, err := net.Dial("tcp", c.address)
	if err != nil {
		return fmt.Errorf("backend/remote: dial %s: %w", c.address, err)
	}
	c.conn = conn
	c.r = bufio.NewReader(conn)
	c.unsent = 0
	c.pending = nil
	c.firstOpErr = nil
	for p := range c.pins {
		c.state[p] = stateUnknown
	}
	return nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	ferr := c.Flush()
	cerr := c.conn.Close()
	c.conn = nil
	if ferr != nil {
		return ferr
	}
	return cerr
}

func (c *Client) backendPin(p pinproxy.Pin) (byte, error) {
	if _, ok := c.pins[p]; !ok {
		return 0, fmt.Errorf("backend/remote: unknown pin %v", p)
	}
	n, ok := p.(int)
	if !ok || n < 0 || n > 255 {
		return 0, fmt.Errorf("backend/remote: pin %v is not a valid GPIO number", p)
	}
	return byte(n), nil
}

func (c *Client) SetAsInput(p pinproxy.Pin) error {
	n, err := c.backendPin(p)
	if err != nil {
		return err
	}
	if err := c.send(opSetAsInput, n); err != nil {
		return err
	}
	c.state[p] = stateUnknown
	return nil
}

func (c *Client) SetAsOutput(p pinproxy.Pin) error {
	n, err := c.backendPin(p)
	if err != nil {
		return err
	}
	if err := c.send(opSetAsOutput, n); err != nil {
		return err
	}
	c.state[p] = stateUnknown
	return nil
}

func (c *Client) SetPin(p pinproxy.Pin, state bool) error {
	n, err := c.backendPin(p)
	if err != nil {
		return err
	}
	want := stateLow
	op := byte(opSetPinLow)
	if state {
		want = stateHigh
		op = opSetPinHigh
	}
	if c.state[p] == want {
		return nil
	}
	if err := c.send(op, n); err != nil {
		return err
	}
	c.state[p] = want
	return nil
}

func (c *Client) FetchPin(p pinproxy.Pin, callback func(bit int)) error {
	n, err := c.backendPin(p)
	if err != nil {
		return err
	}
	c.pending = append(c.pending, func(v byte) { callback(int(v)) })
	return c.send(opReadPin, n)
}

// Wait encodes d as a run of OP_WAIT_100NS opcodes; each carries a
// 13-bit count of 100ns ticks split between the low 5 bits of the
// opcode byte and the full argument byte, matching
// misc.rpi_tcpserver.py's `(arg + ((op & 0x1f) << 8) + 1)` decode.
func (c *Client) Wait(d time.Duration) error {
	if d < 0 {
		return pinproxy.ErrInvalidWait
	}
	n100ns := int(math.Ceil(float64(d) / (100 * float64(time.Nanosecond))))
	for n100ns > loopTime100ns {
		n := n100ns
		if n > maxWaitUnits {
			n = maxWaitUnits
		}
		n100ns -= n
		n--
		if err := c.send(opWait100ns|byte((n>>8)&waitArgMask), byte(n&0xff)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) send(op, arg byte) error {
	if c.firstOpErr != nil {
		return c.firstOpErr
	}
	if _, err := c.conn.Write([]byte{op, arg}); err != nil {
		return fmt.Errorf("backend/remote: write: %w", err)
	}
	c.unsent++
	if c.unsent%progressChunk == 0 {
		c.pending = append(c.pending, c.progressMarkReceived)
	}
	if c.unsent >= maxUnprocessed || len(c.pending) >= maxPending {
		return c.handleRecv(false)
	}
	return nil
}

func (c *Client) progressMarkReceived(v byte) {
	if v != progressMark {
		c.firstOpErr = fmt.Errorf("backend/remote: expected progress mark 0x%02x, got 0x%02x", progressMark, v)
		return
	}
	c.unsent -= progressChunk
}

// handleRecv drains queued reply bytes into their callbacks. With
// block=false it reads at most once; with block=true it keeps reading
// until every pending callback has fired, matching the reference
// client's flush() behavior.
func (c *Client) handleRecv(block bool) error {
	for len(c.pending) > 0 {
		b, err := c.r.ReadByte()
		if err != nil {
			return fmt.Errorf("backend/remote: connection lost: %w", err)
		}
		cb := c.pending[0]
		c.pending = c.pending[1:]
		cb(b)
		if !block {
			return nil
		}
	}
	return nil
}

// Flush issues OP_FLUSH, which the server answers with FLUSH_DONE only
// once every opcode ahead of it in the stream has been executed, then
// blocks until that reply (and any still-outstanding progress marks)
// have arrived.
func (c *Client) Flush() error {
	c.pending = append(c.pending, func(byte) {})
	if err := c.send(opFlush, 0); err != nil {
		return err
	}
	return c.handleRecv(true)
}

var _ pinproxy.Backend = (*Client)(nil)
