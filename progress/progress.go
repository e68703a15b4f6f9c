// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package progress reports the fractional completion of a long-running
// driver operation. It is write-only: an Indicator has no way to ask a
// caller for the current ratio, it is only ever told.
package progress

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Indicator is updated with the current progress of an operation as a
// numerator/denominator pair rather than a pre-divided ratio, so
// integer-counted work (pages written, bits shifted) passes its counts
// as they are instead of dividing them first.
type Indicator interface {
	Update(numerator, denominator float64)
}

// NopIndicator discards every update. It is the default for drivers
// invoked without a progress sink, and the usual choice in tests.
type NopIndicator struct{}

func (NopIndicator) Update(numerator, denominator float64) {}

// refreshPeriod throttles TextIndicator redraws, matching
// progressbar.py's REFRESH_PERIOD.
const refreshPeriod = 100 * time.Millisecond

// TextIndicator renders a bracketed bar plus an estimated-remaining-time
// readout to an io.Writer (typically os.Stderr), redrawing at most
// 10 times a second until the ratio reaches 1.
type TextIndicator struct {
	out      io.Writer
	start    time.Time
	nextShow time.Time
	done     bool

	now func() time.Time
}

// NewTextIndicator returns a TextIndicator writing to out.
func NewTextIndicator(out io.Writer) *TextIndicator {
	return &TextIndicator{out: out, start: time.Now(), now: time.Now}
}

func (t *TextIndicator) Update(numerator, denominator float64) {
	if t.done {
		return
	}
	ratio := numerator / denominator
	if ratio < 0 || ratio > 1 {
		panic(fmt.Sprintf("progress: ratio %v out of [0,1]", ratio))
	}

	ts := t.now()
	if ratio < 1 && ts.Before(t.nextShow) {
		return
	}
	t.nextShow = ts.Add(refreshPeriod)

	elapsed := ts.Sub(t.start).Seconds()
	var remaining float64
	if ratio >= 1 {
		t.done = true
		remaining = elapsed
	} else {
		r := ratio
		if r < 1e-3 {
			r = 1e-3
		}
		remaining = (1.0 - ratio) * elapsed / r
	}

	fmt.Fprint(t.out, formatOutput(remaining, ratio))
}

func formatOutput(seconds, ratio float64) string {
	plusses := strings.Repeat("+", int(ratio*100)/5)
	out := fmt.Sprintf("\r%5.1f%% [%-20s] %7.3fs", ratio*100, plusses, seconds)
	if ratio >= 1 {
		out += "\n"
	}
	return out
}

var _ Indicator = (*TextIndicator)(nil)
var _ Indicator = NopIndicator{}
