// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hexd reads and writes the plain "address hexbytes" per-line
// dump format nops uses as its default, human-editable file format.
package hexd

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ntki/nops/mem"
)

// Deserialize parses a hexdump stream ("<address-in-hex> <data-in-hex>"
// per line) into a sparse memory image.
func Deserialize(r io.Reader) (mem.Mem, error) {
	result := mem.Mem{}
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("fileformat/hexd: invalid line(%d): %s", lineno, line)
		}
		address, err := strconv.ParseInt(fields[0], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("fileformat/hexd: invalid line(%d): %s", lineno, line)
		}
		data, err := hex.DecodeString(fields[1])
		if err != nil {
			return nil, fmt.Errorf("fileformat/hexd: invalid line(%d): %s", lineno, line)
		}
		for i, b := range data {
			result[int(address)+i] = b
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Serialize writes m as hexdump lines, splitting into 16-byte pages and
// contiguous address runs. The address column width is the minimum
// number of hex digits needed for the image's highest address.
func Serialize(w io.Writer, m mem.Mem) error {
	if len(m) == 0 {
		return nil
	}
	keys := mem.SortedKeys(m)
	maxAddr := keys[len(keys)-1]
	addrWidth := (bitLength(maxAddr) + 3) / 4
	if addrWidth == 0 {
		addrWidth = 1
	}

	for _, page := range mem.SplitToPages(m, 16) {
		for _, subpage := range mem.SplitOnGaps(page) {
			subKeys := mem.SortedKeys(subpage)
			sliceAddress := subKeys[0]
			data := make([]byte, len(subKeys))
			for i, k := range subKeys {
				data[i] = subpage[k]
			}
			if _, err := fmt.Fprintf(w, "%0*x %s\n", addrWidth, sliceAddress, hex.EncodeToString(data)); err != nil {
				return err
			}
		}
	}
	return nil
}

func bitLength(v int) int {
	n := 0
	for v != 0 {
		n++
		v >>= 1
	}
	return n
}
