// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package local

import (
	"testing"
	"time"

	"github.com/ntki/nops/pinproxy"
)

func TestDeclaredPinSets(t *testing.T) {
	b := New(AVRISPBoard)
	out := b.OutputPins()
	in := b.InputPins()
	for _, tpin := range []pinproxy.Pin{"RESET", "SCK", "MISO", "MOSI"} {
		if _, ok := out[tpin]; !ok {
			t.Errorf("OutputPins() missing %v", tpin)
		}
		if _, ok := in[tpin]; !ok {
			t.Errorf("InputPins() missing %v", tpin)
		}
	}
}

func TestOpenFailsOnUnknownPeriphPin(t *testing.T) {
	b := New(map[pinproxy.Pin]string{"X": "GPIO_DOES_NOT_EXIST_IN_TEST"})
	if err := b.Open(); err == nil {
		t.Error("Open() with an unregistered periph gpio name should fail")
	}
}

func TestWaitRejectsNegative(t *testing.T) {
	b := New(AVRISPBoard)
	if err := b.Wait(-time.Second); err != pinproxy.ErrInvalidWait {
		t.Errorf("Wait(-1s) error = %v, want ErrInvalidWait", err)
	}
}

func TestWaitBusySpinsBelowThreshold(t *testing.T) {
	b := New(AVRISPBoard)
	start := time.Now()
	d := 5 * time.Microsecond
	if err := b.Wait(d); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < d {
		t.Errorf("Wait(%v) returned after only %v", d, elapsed)
	}
}

func TestFlushIsNoop(t *testing.T) {
	b := New(AVRISPBoard)
	if err := b.Flush(); err != nil {
		t.Errorf("Flush() = %v, want nil", err)
	}
}
