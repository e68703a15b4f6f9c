// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pinproxy

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

// mockBackend is a hand-rolled fake, in the style of
// periph-host/gpioioctl's table-driven tests: no mocking library, just a
// struct that records calls.
type mockBackend struct {
	outputPins map[Pin]struct{}
	inputPins  map[Pin]struct{}

	setPinCalls      []setPinCall
	fetchPinCalls    int
	setAsOutputCalls int
	opened           bool
	closed           bool
}

type setPinCall struct {
	pin   Pin
	state bool
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		outputPins: map[Pin]struct{}{2: {}, 3: {}, 6: {}, 7: {}},
		inputPins:  map[Pin]struct{}{0: {}, 1: {}, 6: {}, 7: {}},
	}
}

func (m *mockBackend) OutputPins() map[Pin]struct{} { return m.outputPins }
func (m *mockBackend) InputPins() map[Pin]struct{}  { return m.inputPins }
func (m *mockBackend) Open() error                  { m.opened = true; return nil }
func (m *mockBackend) Close() error                 { m.closed = true; return nil }
func (m *mockBackend) SetAsInput(Pin) error          { return nil }
func (m *mockBackend) SetAsOutput(Pin) error         { m.setAsOutputCalls++; return nil }

func (m *mockBackend) SetPin(pin Pin, state bool) error {
	m.setPinCalls = append(m.setPinCalls, setPinCall{pin, state})
	return nil
}

func (m *mockBackend) FetchPin(pin Pin, callback func(int)) error {
	m.fetchPinCalls++
	callback(0)
	return nil
}

func (m *mockBackend) Wait(time.Duration) error { return nil }
func (m *mockBackend) Flush() error             { return nil }

var testPinMap = PinMap{
	"I1":  ToPin(0),
	"O1":  ToPin(2),
	"IO1": ToPin(6),
	"X":   Ignored(),
}

func TestNewFailsOnMissingBackendPin(t *testing.T) {
	backend := &mockBackend{
		outputPins: map[Pin]struct{}{2: {}, 3: {}},
		inputPins:  map[Pin]struct{}{0: {}, 1: {}},
	}
	// IO1 maps to lpin 6, not offered by either capability set.
	if _, err := New(backend, testPinMap); !errors.Is(err, ErrUnknownPin) {
		t.Errorf("New() error = %v, want ErrUnknownPin", err)
	}
}

func TestDirectionUnsupported(t *testing.T) {
	p, err := New(newMockBackend(), testPinMap)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SetAsOutput("I1"); !errors.Is(err, ErrDirectionUnsupported) {
		t.Errorf("SetAsOutput(I1) error = %v, want ErrDirectionUnsupported", err)
	}
}

func TestIgnoredPinIsNoop(t *testing.T) {
	backend := newMockBackend()
	p, err := New(backend, testPinMap)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SetAsOutput("X"); err != nil {
		t.Fatal(err)
	}
	if err := p.SetPin("X", true); err != nil {
		t.Fatal(err)
	}
	if len(backend.setPinCalls) != 0 {
		t.Errorf("SetPin calls = %v, want none", backend.setPinCalls)
	}
}

func TestSetPinCallsBackendOnce(t *testing.T) {
	backend := newMockBackend()
	p, err := New(backend, testPinMap)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SetAsOutput("O1"); err != nil {
		t.Fatal(err)
	}
	if err := p.SetPin("O1", true); err != nil {
		t.Fatal(err)
	}
	want := []setPinCall{{2, true}}
	if !reflect.DeepEqual(backend.setPinCalls, want) {
		t.Errorf("setPinCalls = %v, want %v", backend.setPinCalls, want)
	}
}

func TestDirectionMismatch(t *testing.T) {
	backend := newMockBackend()
	p, err := New(backend, testPinMap)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SetAsInput("I1"); err != nil {
		t.Fatal(err)
	}
	if err := p.SetPin("I1", true); !errors.Is(err, ErrDirectionMismatch) {
		t.Errorf("SetPin(I1) error = %v, want ErrDirectionMismatch", err)
	}
}

func TestUnassignedPin(t *testing.T) {
	p, err := New(newMockBackend(), testPinMap)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SetAsInput("nope"); !errors.Is(err, ErrUnassignedPin) {
		t.Errorf("SetAsInput(nope) error = %v, want ErrUnassignedPin", err)
	}
}

func TestOpenClose(t *testing.T) {
	backend := newMockBackend()
	p, err := New(backend, testPinMap)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Open(); err != nil {
		t.Fatal(err)
	}
	if !backend.opened {
		t.Error("backend not opened")
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if !backend.closed {
		t.Error("backend not closed")
	}
}

func pushBits(p *PinProxy, tpin string, bits []int) {
	bq := make([]int, len(bits))
	copy(bq, bits)
	p.inbuf[tpin] = bq
}

func TestPopFetchedLSB(t *testing.T) {
	p, err := New(newMockBackend(), testPinMap)
	if err != nil {
		t.Fatal(err)
	}
	pushBits(p, "I1", []int{1, 0, 1, 0, 1, 0, 1, 0, 0, 1, 0, 1, 0, 1, 0, 1})
	got, err := p.PopFetched("I1", 8, -1, true)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0x55, 0xaa}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PopFetched(lsb=true) = %v, want %v", got, want)
	}
}

func TestPopFetchedMSB(t *testing.T) {
	p, err := New(newMockBackend(), testPinMap)
	if err != nil {
		t.Fatal(err)
	}
	pushBits(p, "I1", []int{1, 0, 1, 0, 1, 0, 1, 0, 0, 1, 0, 1, 0, 1, 0, 1})
	got, err := p.PopFetched("I1", 8, -1, false)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0xaa, 0x55}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PopFetched(lsb=false) = %v, want %v", got, want)
	}
}

func TestPopFetchedWords(t *testing.T) {
	p, err := New(newMockBackend(), testPinMap)
	if err != nil {
		t.Fatal(err)
	}
	pushBits(p, "I1", []int{1, 0, 1, 0, 1, 0, 1, 0, 0, 1, 0, 1, 0, 1, 0, 1})
	got, err := p.PopFetched("I1", 16, -1, false)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0xaa55}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PopFetched(n_bits=16) = %v, want %v", got, want)
	}
}

func TestPopFetchedLeftoverAndMax(t *testing.T) {
	p, err := New(newMockBackend(), testPinMap)
	if err != nil {
		t.Fatal(err)
	}
	pushBits(p, "I1", []int{1, 0, 1, 0, 1, 0, 1, 0, 0, 1, 0, 1, 0, 1, 0, 1, 1, 1})
	got, err := p.PopFetched("I1", 8, -1, false)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{0xaa, 0x55}; !reflect.DeepEqual(got, want) {
		t.Errorf("first pop = %v, want %v", got, want)
	}
	got, err = p.PopFetched("I1", 8, -1, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("second pop = %v, want none (leftover < 8 bits)", got)
	}
	got, err = p.PopFetched("I1", 2, -1, false)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{0x3}; !reflect.DeepEqual(got, want) {
		t.Errorf("third pop = %v, want %v", got, want)
	}
}

func TestPopFetchedNValues(t *testing.T) {
	p, err := New(newMockBackend(), testPinMap)
	if err != nil {
		t.Fatal(err)
	}
	pushBits(p, "I1", []int{1, 0, 1, 0, 1, 0, 1, 0, 0, 1, 0, 1, 0, 1, 0, 1, 1, 1})
	got, err := p.PopFetched("I1", 2, 2, false)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{2, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("PopFetched(n_bits=2, n_values=2) = %v, want %v", got, want)
	}
	got, err = p.PopFetched("I1", 3, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{5}; !reflect.DeepEqual(got, want) {
		t.Errorf("PopFetched(n_bits=3, n_values=1) = %v, want %v", got, want)
	}
}

func TestFetchPinCountsAndMismatch(t *testing.T) {
	backend := newMockBackend()
	p, err := New(backend, testPinMap)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SetAsInput("I1"); err != nil {
		t.Fatal(err)
	}
	if err := p.FetchPin("I1"); err != nil {
		t.Fatal(err)
	}
	if backend.fetchPinCalls != 1 {
		t.Errorf("fetchPinCalls = %d, want 1", backend.fetchPinCalls)
	}

	if err := p.SetAsOutput("O1"); err != nil {
		t.Fatal(err)
	}
	if err := p.FetchPin("O1"); !errors.Is(err, ErrDirectionMismatch) {
		t.Errorf("FetchPin(O1) error = %v, want ErrDirectionMismatch", err)
	}
}

func TestSetAsOutputIdempotentNoBackendCall(t *testing.T) {
	backend := newMockBackend()
	p, err := New(backend, testPinMap)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.SetAsOutput("O1"); err != nil {
		t.Fatal(err)
	}
	if err := p.SetAsOutput("O1"); err != nil {
		t.Fatal(err)
	}
	// Re-asserting the same direction issues no second backend call; dirs stay Out.
	if backend.setAsOutputCalls != 1 {
		t.Errorf("backend SetAsOutput calls = %d, want 1", backend.setAsOutputCalls)
	}
	if p.dirs["O1"] != Out {
		t.Errorf("dirs[O1] = %v, want Out", p.dirs["O1"])
	}
}
