// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package bitpattern expands a sparse bit-template and named integer
// operands into a concrete bit sequence. Target drivers use it to encode
// device commands (address/data bits packed at specific placeholder
// positions) without hand-writing bit shifts at every call site.
package bitpattern

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is returned when an operand has unassigned bits left over
// after the template is fully consumed.
var ErrOutOfRange = errors.New("bitpattern: operand out of range")

// ErrUnknownPlaceholder is returned when the template references an
// operand key that was not supplied.
var ErrUnknownPlaceholder = errors.New("bitpattern: unknown placeholder")

// SyntaxError reports an invalid character in a template, along with its
// byte offset.
type SyntaxError struct {
	Pattern string
	Offset  int
	Char    byte
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("bitpattern: invalid character %q at offset %d in %q", e.Char, e.Offset, e.Pattern)
}

func isValidChar(c byte) bool {
	switch {
	case c == '0' || c == '1' || c == '_' || c == 'x' || isSpace(c):
		return true
	case c >= 'a' && c <= 'z':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Expand materializes a list of bits (MSB first, in template order) from
// pattern and the named integer operands in args.
//
// Grammar, left-to-right is MSB-to-LSB:
//   - '0', '1': literal bit.
//   - '_', 'x': literal 0.
//   - whitespace: ignored.
//   - lowercase ASCII letter: placeholder for one bit of the named operand.
//
// Repeated letters stand for consecutive bits of the same operand, with
// the rightmost occurrence taking operand bit 0 (LSB): the template is
// scanned right-to-left, and each placeholder occurrence consumes the
// next-lowest unassigned bit of its operand.
func Expand(pattern string, args map[byte]int) ([]int, error) {
	remaining := make(map[byte]int, len(args))
	for k, v := range args {
		remaining[k] = v
	}

	bits := make([]int, 0, len(pattern))
	for i := len(pattern) - 1; i >= 0; i-- {
		c := pattern[i]
		if !isValidChar(c) {
			return nil, &SyntaxError{Pattern: pattern, Offset: i, Char: c}
		}
		switch {
		case isSpace(c):
			continue
		case c == '0' || c == '_' || c == 'x':
			bits = append(bits, 0)
		case c == '1':
			bits = append(bits, 1)
		default:
			v, ok := remaining[c]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownPlaceholder, string(c))
			}
			bits = append(bits, v&1)
			remaining[c] = v >> 1
		}
	}

	for k, v := range remaining {
		if v != 0 {
			return nil, fmt.Errorf("%w: %q", ErrOutOfRange, string(k))
		}
	}

	// bits was built right-to-left (LSB-first overall); reverse to MSB-first
	// template order.
	for l, r := 0, len(bits)-1; l < r; l, r = l+1, r-1 {
		bits[l], bits[r] = bits[r], bits[l]
	}
	return bits, nil
}

// Reverse bitwise-reverses value, treating it as bitLength bits wide.
func Reverse(value int, bitLength int) int {
	result := 0
	for i := 0; i < bitLength; i++ {
		result <<= 1
		result |= value & 1
		value >>= 1
	}
	return result
}
