// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package local

import "github.com/ntki/nops/pinproxy"

// AVRISPBoard is a board-pinout table in the same one-table-per-board-family
// shape as periph-host/allwinner, periph-host/nanopi and
// periph-host/orangepi — but mapping a logical target-pin name straight to
// a periph GPIO pin name instead of an SoC register offset, since nops
// resolves pins through gpioreg.ByName rather than driving a specific SoC
// family's registers directly.
//
// This is a ready-made board table for wiring an AVR ISP header (RESET,
// SCK, MISO, MOSI) to a set of GPIO pins; cmd/nops uses it as the
// -backend=local preset for -target=avrspi and overrides only the pins
// given with -pin.
var AVRISPBoard = map[pinproxy.Pin]string{
	"RESET": "GPIO17",
	"SCK":   "GPIO11",
	"MISO":  "GPIO9",
	"MOSI":  "GPIO10",
}

// AVRJTAGBoard is the analogous table for an AVR JTAG header
// (TDI/TDO/TMS/TCK/RESET).
var AVRJTAGBoard = map[pinproxy.Pin]string{
	"RESET": "GPIO17",
	"TDI":   "GPIO27",
	"TDO":   "GPIO22",
	"TMS":   "GPIO10",
	"TCK":   "GPIO9",
}

// EE25LC040Board wires a Microchip 25LC040 SPI EEPROM (CS, SCK, SI, SO,
// HOLD, WP).
var EE25LC040Board = map[pinproxy.Pin]string{
	"CS":   "GPIO8",
	"SCK":  "GPIO11",
	"SI":   "GPIO10",
	"SO":   "GPIO9",
	"HOLD": "GPIO25",
	"WP":   "GPIO24",
}

// EE93LC6Board wires a 93LC46/56/66 MicroWire EEPROM (CS, CLK, DI, DO,
// ORG).
var EE93LC6Board = map[pinproxy.Pin]string{
	"CS":  "GPIO8",
	"CLK": "GPIO11",
	"DI":  "GPIO10",
	"DO":  "GPIO9",
	"ORG": "GPIO25",
}
