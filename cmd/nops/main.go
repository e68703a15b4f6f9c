// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// nops reads, writes, or erases a chip through one of nops' target
// drivers over a chosen backend (direct GPIO, a serial MCU
// co-processor, a remote nops-remote-server, or an in-process dummy for
// dry runs), in the same single-binary, flag-driven style as
// periph-extra/cmd/d2xx and periph-host/ftdi/ftdismoketest.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ntki/nops/backend/local"
	"github.com/ntki/nops/backend/remote"
	"github.com/ntki/nops/backend/serial"
	"github.com/ntki/nops/driverop"
	"github.com/ntki/nops/fileformat/hexd"
	"github.com/ntki/nops/fileformat/inhx32"
	"github.com/ntki/nops/mem"
	"github.com/ntki/nops/pinproxy"
	"github.com/ntki/nops/progress"
	"github.com/ntki/nops/target/avrjtag"
	"github.com/ntki/nops/target/avrspi"
	"github.com/ntki/nops/target/ee25lc040"
	"github.com/ntki/nops/target/ee93lc6"
	"periph.io/x/host/v3"
)

// targetSpec ties a target driver's symbolic pins and operations to a
// local-backend board preset, so -backend=local works out of the box
// and every other backend gets a stable default pin numbering.
type targetSpec struct {
	symbols    []string
	localBoard map[pinproxy.Pin]string
	read       driverop.Operation
	write      driverop.Operation
	erase      driverop.Operation
}

func targetSpecs(ee93lc6Model int) map[string]targetSpec {
	return map[string]targetSpec{
		"avrspi": {
			symbols:    []string{"RESET", "SCK", "MISO", "MOSI"},
			localBoard: local.AVRISPBoard,
			read:       avrspi.Read,
			write:      avrspi.Write,
			erase:      avrspi.Erase,
		},
		"avrjtag": {
			symbols:    []string{"RESET", "TDI", "TDO", "TMS", "TCK"},
			localBoard: local.AVRJTAGBoard,
			read:       avrjtag.Read,
			write:      avrjtag.Write,
			erase:      avrjtag.Erase,
		},
		"ee25lc040": {
			symbols:    []string{"CS", "SCK", "SI", "SO", "HOLD", "WP"},
			localBoard: local.EE25LC040Board,
			read:       ee25lc040.Read,
			write:      ee25lc040.Write,
			erase:      ee25lc040.Erase,
		},
		"ee93lc6": {
			symbols:    []string{"CS", "CLK", "DI", "DO", "ORG"},
			localBoard: local.EE93LC6Board,
			read:       ee93lc6.Read(ee93lc6.Model(ee93lc6Model)),
			write:      ee93lc6.Write(ee93lc6.Model(ee93lc6Model)),
			erase:      ee93lc6.Erase(ee93lc6.Model(ee93lc6Model)),
		},
	}
}

// pinOverrides accumulates repeated -pin SYMBOL=VALUE flags.
type pinOverrides map[string]string

func (p pinOverrides) String() string { return fmt.Sprintf("%v", map[string]string(p)) }

func (p pinOverrides) Set(value string) error {
	symbol, val, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("invalid -pin %q, want SYMBOL=VALUE", value)
	}
	p[symbol] = val
	return nil
}

func formatCodec(name string) (
	deserialize func(r io.Reader) (mem.Mem, error),
	serialize func(w io.Writer, m mem.Mem) error,
	err error,
) {
	switch name {
	case "inhx32":
		return inhx32.Deserialize, inhx32.Serialize, nil
	case "hexd":
		return hexd.Deserialize, hexd.Serialize, nil
	default:
		return nil, nil, fmt.Errorf("unknown -format %q, want inhx32 or hexd", name)
	}
}

func buildBackend(backendName string, spec targetSpec, overrides pinOverrides, serialDevice string, serialBaud int, remoteAddress string) (pinproxy.Backend, pinproxy.PinMap, error) {
	pinmap := pinproxy.PinMap{}

	switch backendName {
	case "local":
		board := make(map[pinproxy.Pin]string, len(spec.localBoard))
		for k, v := range spec.localBoard {
			board[k] = v
		}
		for symbol, val := range overrides {
			if val == "_" {
				continue
			}
			board[symbol] = val
		}
		for _, symbol := range spec.symbols {
			if overrides[symbol] == "_" {
				pinmap[symbol] = pinproxy.Ignored()
				delete(board, symbol)
				continue
			}
			pinmap[symbol] = pinproxy.ToPin(symbol)
		}
		return local.New(board), pinmap, nil

	case "serial", "remote", "dummy":
		pins := map[pinproxy.Pin]struct{}{}
		for i, symbol := range spec.symbols {
			if overrides[symbol] == "_" {
				pinmap[symbol] = pinproxy.Ignored()
				continue
			}
			arg := i
			if v, ok := overrides[symbol]; ok {
				n, err := strconv.Atoi(v)
				if err != nil {
					return nil, nil, fmt.Errorf("invalid -pin %s=%s: %w", symbol, v, err)
				}
				arg = n
			}
			pins[arg] = struct{}{}
			pinmap[symbol] = pinproxy.ToPin(arg)
		}
		switch backendName {
		case "serial":
			return serial.New(serialDevice, serialBaud, pins), pinmap, nil
		case "remote":
			return remote.NewClient(remoteAddress, pins), pinmap, nil
		default:
			return pinproxy.NewDummy(), pinmap, nil
		}

	default:
		return nil, nil, fmt.Errorf("unknown -backend %q, want local, serial, remote or dummy", backendName)
	}
}

func mainImpl() error {
	backendName := flag.String("backend", "dummy", "local, serial, remote, or dummy")
	targetName := flag.String("target", "", "avrspi, avrjtag, ee25lc040, or ee93lc6")
	op := flag.String("op", "read", "read, write, or erase")
	format := flag.String("format", "hexd", "inhx32 or hexd")
	in := flag.String("in", "", "input file (required for -op=write)")
	out := flag.String("out", "", "output file for -op=read (stdout if empty)")
	serialDevice := flag.String("serial-device", "/dev/ttyUSB0", "serial device path, for -backend=serial")
	serialBaud := flag.Int("serial-baud", 115200, "serial baud rate, for -backend=serial")
	remoteAddress := flag.String("remote-address", "127.0.0.1:30456", "host:port of a nops-remote-server, for -backend=remote")
	ee93lc6Model := flag.Int("ee93lc6-model", 66, "46, 56, or 66, for -target=ee93lc6")
	overrides := make(pinOverrides)
	flag.Var(overrides, "pin", "override one symbolic pin, as SYMBOL=VALUE or SYMBOL=_ to ignore it (repeatable)")
	quiet := flag.Bool("quiet", false, "suppress the progress indicator")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	specs := targetSpecs(*ee93lc6Model)
	spec, ok := specs[*targetName]
	if !ok {
		return fmt.Errorf("unknown -target %q, want one of avrspi, avrjtag, ee25lc040, ee93lc6", *targetName)
	}

	var operation driverop.Operation
	switch *op {
	case "read":
		operation = spec.read
	case "write":
		operation = spec.write
	case "erase":
		operation = spec.erase
	default:
		return fmt.Errorf("unknown -op %q, want read, write, or erase", *op)
	}

	deserialize, serialize, err := formatCodec(*format)
	if err != nil {
		return err
	}

	var input mem.Mem
	if operation.NeedsInput() {
		if *in == "" {
			return errors.New("-op=write requires -in")
		}
		f, err := os.Open(*in)
		if err != nil {
			return err
		}
		defer f.Close()
		input, err = deserialize(f)
		if err != nil {
			return err
		}
	}

	if *backendName == "local" {
		if _, err := host.Init(); err != nil {
			return err
		}
	}

	backend, pinmap, err := buildBackend(*backendName, spec, overrides, *serialDevice, *serialBaud, *remoteAddress)
	if err != nil {
		return err
	}

	proxy, err := pinproxy.New(backend, pinmap)
	if err != nil {
		return err
	}
	if err := proxy.Open(); err != nil {
		return err
	}
	defer proxy.Close()

	var indicator progress.Indicator = progress.NopIndicator{}
	if !*quiet {
		indicator = progress.NewTextIndicator(os.Stderr)
	}

	result, err := operation.Run(driverop.Context{Pins: proxy, Progress: indicator, Input: input})
	if err != nil {
		return err
	}

	if result != nil {
		w := os.Stdout
		if *out != "" {
			f, err := os.Create(*out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if err := serialize(w, result); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "nops: %s.\n", err)
		os.Exit(1)
	}
}
