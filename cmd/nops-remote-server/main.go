// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// nops-remote-server hosts backend/remote.Server, letting a Raspberry Pi
// (or any periph.io host) act as the GPIO-driving side of nops' remote
// backend for a client running elsewhere. It is the Go sibling of
// misc/rpi_tcpserver.py: same bind/port flags, same "one client at a
// time, board pins resolved by name" shape.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"

	"github.com/ntki/nops/backend/remote"
	"periph.io/x/host/v3"
)

// defaultBoard maps the remote wire protocol's raw pin argument (0-31)
// to a periph GPIO name. Override individual entries with -pin.
var defaultBoard = map[byte]string{
	0: "GPIO2",
	1: "GPIO3",
	2: "GPIO4",
	3: "GPIO17",
	4: "GPIO27",
	5: "GPIO22",
	6: "GPIO10",
	7: "GPIO9",
	8: "GPIO11",
	9: "GPIO0",
	10: "GPIO5",
	11: "GPIO6",
	12: "GPIO13",
	13: "GPIO19",
	14: "GPIO26",
	15: "GPIO21",
}

type pinFlags map[byte]string

func (p pinFlags) String() string {
	return fmt.Sprintf("%v", map[byte]string(p))
}

func (p pinFlags) Set(value string) error {
	var arg int
	var name string
	if _, err := fmt.Sscanf(value, "%d=%s", &arg, &name); err != nil {
		return fmt.Errorf("invalid -pin %q, want ARG=GPIONAME", value)
	}
	if arg < 0 || arg > 31 {
		return fmt.Errorf("invalid -pin %q: arg out of 0-31 range", value)
	}
	p[byte(arg)] = name
	return nil
}

func mainImpl() error {
	bind := flag.String("bind", "0.0.0.0", "address to bind to")
	port := flag.Int("port", 30456, "port to listen on")
	board := make(pinFlags)
	flag.Var(board, "pin", "override one board pin, as ARG=GPIONAME (repeatable)")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	if _, err := host.Init(); err != nil {
		return err
	}

	resolved := make(map[byte]string, len(defaultBoard))
	for arg, name := range defaultBoard {
		resolved[arg] = name
	}
	for arg, name := range board {
		resolved[arg] = name
	}

	srv := remote.NewServer(resolved)
	addr := net.JoinHostPort(*bind, fmt.Sprint(*port))
	log.Printf("nops-remote-server: listening on %s", addr)
	return srv.ListenAndServe(addr)
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "nops-remote-server: %s.\n", err)
		os.Exit(1)
	}
}
