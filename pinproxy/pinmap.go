// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pinproxy

// Mapping is one entry of a PinMap: either a concrete backend Pin, or the
// "tied off in hardware" sentinel. It is a tagged variant rather than a
// shared unique object (a reassigned symbolic pin never aliases another
// Ignored() value by identity, only by its Ignored bit).
type Mapping struct {
	pin     Pin
	ignored bool
}

// ToPin wraps a concrete backend pin identifier.
func ToPin(p Pin) Mapping {
	return Mapping{pin: p}
}

// Ignored returns the sentinel mapping for a symbolic pin that is tied off
// in hardware: every PinProxy operation on it becomes a silent no-op.
func Ignored() Mapping {
	return Mapping{ignored: true}
}

// IsIgnored reports whether m is the Ignored() sentinel.
func (m Mapping) IsIgnored() bool {
	return m.ignored
}

// PinMap is a frozen mapping from symbolic target-pin name to either a
// backend pin identifier or Ignored().
type PinMap map[string]Mapping
