// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package remote

import (
	"fmt"
	"log"
	"net"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Server accepts a single client connection at a time and executes the
// opcode stream Client (client.go) emits against real GPIO pins,
// resolved the same way backend/local resolves them: a small integer
// opcode argument is looked up in board to get a periph GPIO pin name.
//
// Only one client is served at a time, matching
// misc/rpi_tcpserver.py's serve_forever: a second connection waits
// until the first disconnects.
type Server struct {
	board map[byte]string

	resolved map[byte]gpio.PinIO
}

// NewServer returns a Server that resolves opcode pin arguments through
// board, a map from the small integer the wire protocol carries to a
// periph GPIO pin name gpioreg.ByName can resolve.
func NewServer(board map[byte]string) *Server {
	return &Server{board: board, resolved: map[byte]gpio.PinIO{}}
}

func (s *Server) pin(arg byte) (gpio.PinIO, error) {
	if p, ok := s.resolved[arg]; ok {
		return p, nil
	}
	name, ok := s.board[arg]
	if !ok {
		return nil, fmt.Errorf("backend/remote: no pin registered for arg %d", arg)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("backend/remote: unknown periph gpio pin %q (arg %d)", name, arg)
	}
	s.resolved[arg] = p
	return p, nil
}

// ListenAndServe binds address and serves clients one at a time until
// Accept fails. The listener is created and closed inside this call and
// is not exposed, so there is no way to stop the loop from outside.
func (s *Server) ListenAndServe(address string) error {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("backend/remote: listen %s: %w", address, err)
	}
	defer l.Close()
	for {
		log.Printf("backend/remote: waiting for client on %s", l.Addr())
		conn, err := l.Accept()
		if err != nil {
			return fmt.Errorf("backend/remote: accept: %w", err)
		}
		log.Printf("backend/remote: accepted connection from %s", conn.RemoteAddr())
		if err := s.handleClient(conn); err != nil {
			log.Printf("backend/remote: connection closed: %v", err)
		}
		s.resolved = map[byte]gpio.PinIO{}
	}
}

// handleClient decodes (opcode, argument) pairs from conn until it
// closes. An odd trailing byte at a read boundary is kept and paired
// with the first byte of the next read; a byte still unpaired when the
// connection closes is dropped.
func (s *Server) handleClient(conn net.Conn) error {
	defer conn.Close()
	var wakeup time.Time
	opCount := 0
	buf := make([]byte, 1024)
	var carry []byte
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			carry = append(carry, buf[:n]...)
			i := 0
			for ; i+1 < len(carry); i += 2 {
				op, arg := carry[i], carry[i+1]
				if !wakeup.IsZero() {
					for time.Now().Before(wakeup) {
					}
					wakeup = time.Time{}
				}
				if execErr := s.execute(conn, op, arg, &wakeup); execErr != nil {
					return execErr
				}
				opCount++
				if opCount%progressChunk == 0 {
					if _, werr := conn.Write([]byte{progressMark}); werr != nil {
						return fmt.Errorf("backend/remote: write progress mark: %w", werr)
					}
				}
			}
			carry = carry[i:]
		}
		if err != nil {
			return err
		}
	}
}

func (s *Server) execute(conn net.Conn, op, arg byte, wakeup *time.Time) error {
	switch {
	case op == opSetPinLow:
		p, err := s.pin(arg)
		if err != nil {
			return err
		}
		return p.Out(gpio.Low)
	case op == opSetPinHigh:
		p, err := s.pin(arg)
		if err != nil {
			return err
		}
		return p.Out(gpio.High)
	case op&0xE0 == opWait100ns:
		n := int(arg) + (int(op&waitArgMask) << 8) + 1
		*wakeup = time.Now().Add(time.Duration(n) * 100 * time.Nanosecond)
		return nil
	case op == opReadPin:
		p, err := s.pin(arg)
		if err != nil {
			return err
		}
		bit := byte(0)
		if p.Read() == gpio.High {
			bit = 1
		}
		_, werr := conn.Write([]byte{bit})
		return werr
	case op == opFlush:
		_, werr := conn.Write([]byte{flushDone})
		return werr
	case op == opSetAsOutput:
		p, err := s.pin(arg)
		if err != nil {
			return err
		}
		return p.Out(gpio.Low)
	case op == opSetAsInput:
		p, err := s.pin(arg)
		if err != nil {
			return err
		}
		return p.In(gpio.PullNoChange, gpio.NoEdge)
	default:
		log.Printf("backend/remote: invalid opcode received: 0x%02x", op)
		return nil
	}
}
