// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pinproxy

import (
	"log"
	"math/rand"
	"time"
)

// Dummy is a deterministic, fixed-seed Backend with 40 int pins, usable as
// both an input and an output. It exists purely so target drivers and the
// pin-proxy can be exercised in tests without real hardware, mirroring the
// role periph-host/gpioioctl's dummy chip plays for that package.
type Dummy struct {
	r *rand.Rand
}

// NewDummy returns a Dummy backend seeded deterministically.
func NewDummy() *Dummy {
	return &Dummy{r: rand.New(rand.NewSource(0))}
}

func (d *Dummy) OutputPins() map[Pin]struct{} { return dummyPinSet() }
func (d *Dummy) InputPins() map[Pin]struct{}  { return dummyPinSet() }

func dummyPinSet() map[Pin]struct{} {
	out := make(map[Pin]struct{}, 40)
	for i := 0; i < 40; i++ {
		out[i] = struct{}{}
	}
	return out
}

func (d *Dummy) Open() error {
	log.Print("pinproxy/dummy: open")
	return nil
}

func (d *Dummy) Close() error {
	log.Print("pinproxy/dummy: close")
	return nil
}

func (d *Dummy) SetAsOutput(pin Pin) error {
	log.Printf("pinproxy/dummy: set_as_output: %v", pin)
	return nil
}

func (d *Dummy) SetAsInput(pin Pin) error {
	log.Printf("pinproxy/dummy: set_as_input: %v", pin)
	return nil
}

func (d *Dummy) SetPin(pin Pin, state bool) error {
	log.Printf("pinproxy/dummy: set_pin: %v=%v", pin, state)
	return nil
}

func (d *Dummy) FetchPin(pin Pin, callback func(bit int)) error {
	log.Printf("pinproxy/dummy: fetch_pin: %v", pin)
	callback(int(d.r.Int63() & 1))
	return nil
}

func (d *Dummy) Flush() error {
	log.Print("pinproxy/dummy: flush")
	return nil
}

func (d *Dummy) Wait(dur time.Duration) error {
	if dur < 0 {
		return ErrInvalidWait
	}
	time.Sleep(dur)
	log.Printf("pinproxy/dummy: wait: %v", dur)
	return nil
}
