// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package inhx32 reads and writes the Intel HEX32 file format used to
// exchange device memory images with other programming tools.
package inhx32

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/ntki/nops/mem"
)

// recordType identifies an Intel HEX record's payload meaning.
type recordType byte

const (
	recData                  recordType = 0
	recEOF                   recordType = 1
	recExtendedSegmentAddr   recordType = 2
	recStartSegmentAddr      recordType = 3
	recExtendedLinearAddr    recordType = 4
	recStartLinearAddr       recordType = 5
)

// checksum is the two's-complement of the low byte of the sum of every
// supplied value, each first folded into its constituent bytes.
func checksum(values ...int) byte {
	var sum int
	for _, v := range values {
		for v != 0 {
			sum += v & 0xff
			v >>= 8
		}
	}
	return byte((0x100 - (sum & 0xff)) & 0xff)
}

func formatRecord(rt recordType, offset int, data []byte) string {
	offset &= 0xffff
	sumArgs := make([]int, 0, 3+len(data))
	sumArgs = append(sumArgs, len(data), int(rt), offset)
	for _, b := range data {
		sumArgs = append(sumArgs, int(b))
	}
	chk := checksum(sumArgs...)
	return fmt.Sprintf(":%02X%04X%02X%s%02X\n",
		len(data), offset, rt, strings.ToUpper(hex.EncodeToString(data)), chk)
}

// Deserialize parses an Intel HEX32 stream into a sparse memory image.
func Deserialize(r io.Reader) (mem.Mem, error) {
	result := mem.Mem{}
	var baseAddress int

	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, ":") {
			return nil, fmt.Errorf("fileformat/inhx32: invalid line(%d): %s", lineno, line)
		}
		record, err := hex.DecodeString(line[1:])
		if err != nil {
			return nil, fmt.Errorf("fileformat/inhx32: invalid line(%d): %s", lineno, line)
		}
		if len(record) == 0 {
			continue
		}
		if len(record) < 5 {
			return nil, fmt.Errorf("fileformat/inhx32: short record on line(%d): %s", lineno, line)
		}

		datalen := int(record[0])
		ahigh, alow := record[1], record[2]
		rt := recordType(record[3])
		data := record[4 : len(record)-1]
		chksum := record[len(record)-1]

		if len(data) != datalen {
			return nil, fmt.Errorf("fileformat/inhx32: length mismatch on line(%d): %s", lineno, line)
		}

		sumArgs := make([]int, 0, 3+len(data))
		sumArgs = append(sumArgs, datalen, int(rt), int(ahigh)<<8+int(alow))
		for _, b := range data {
			sumArgs = append(sumArgs, int(b))
		}
		if chksum != checksum(sumArgs...) {
			return nil, fmt.Errorf("fileformat/inhx32: CRC error on line(%d): %s", lineno, line)
		}

		offset := int(ahigh)<<8 + int(alow)
		switch rt {
		case recData:
			for i, b := range data {
				result[baseAddress+offset+i] = b
			}
		case recExtendedSegmentAddr:
			if len(data) != 2 {
				return nil, fmt.Errorf("fileformat/inhx32: malformed extended segment address on line(%d): %s", lineno, line)
			}
			baseAddress = (int(data[0])<<8 + int(data[1])) << 4
		case recExtendedLinearAddr:
			if len(data) != 2 {
				return nil, fmt.Errorf("fileformat/inhx32: malformed extended linear address on line(%d): %s", lineno, line)
			}
			baseAddress = (int(data[0])<<8 + int(data[1])) << 16
		case recEOF, recStartSegmentAddr, recStartLinearAddr:
			// No address-space effect.
		default:
			return nil, fmt.Errorf("fileformat/inhx32: unknown record type %d on line(%d)", rt, lineno)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Serialize writes m as Intel HEX32, splitting into 16-byte pages and
// contiguous runs, and emitting an EXTENDED_LINEAR_ADDRESS record
// whenever an address's upper 16 bits change from the previous one.
func Serialize(w io.Writer, m mem.Mem) error {
	var addressExtension []byte
	for _, page := range mem.SplitToPages(m, 16) {
		for _, subpage := range mem.SplitOnGaps(page) {
			keys := mem.SortedKeys(subpage)
			sliceAddress := keys[0]
			highAddress := []byte{byte(sliceAddress >> 24), byte(sliceAddress >> 16)}
			if addressExtension == nil || highAddress[0] != addressExtension[0] || highAddress[1] != addressExtension[1] {
				addressExtension = highAddress
				if _, err := io.WriteString(w, formatRecord(recExtendedLinearAddr, 0, highAddress)); err != nil {
					return err
				}
			}
			data := make([]byte, len(keys))
			for i, k := range keys {
				data[i] = subpage[k]
			}
			if _, err := io.WriteString(w, formatRecord(recData, sliceAddress, data)); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, formatRecord(recEOF, 0, nil))
	return err
}
