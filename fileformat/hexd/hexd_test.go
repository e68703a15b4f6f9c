// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hexd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ntki/nops/mem"
)

func TestRoundTripSmallImage(t *testing.T) {
	m := mem.Mem{0: 0x01, 1: 0x02, 2: 0x03, 0x20: 0xaa}
	var buf bytes.Buffer
	if err := Serialize(&buf, m); err != nil {
		t.Fatal(err)
	}
	got, err := Deserialize(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(m) {
		t.Fatalf("round trip produced %d bytes, want %d", len(got), len(m))
	}
	for addr, v := range m {
		if got[addr] != v {
			t.Errorf("got[%d] = %#x, want %#x", addr, got[addr], v)
		}
	}
}

func TestSerializeEmptyProducesNoOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := Serialize(&buf, mem.Mem{}); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("Serialize(empty) wrote %q, want empty", buf.String())
	}
}

func TestSerializeUsesLowercaseHex(t *testing.T) {
	var buf bytes.Buffer
	if err := Serialize(&buf, mem.Mem{0: 0xab}); err != nil {
		t.Fatal(err)
	}
	if strings.ContainsAny(buf.String(), "ABCDEF") {
		t.Errorf("Serialize() output not lowercase: %q", buf.String())
	}
}

func TestDeserializeRejectsMalformedLine(t *testing.T) {
	if _, err := Deserialize(strings.NewReader("not-a-valid-line")); err == nil {
		t.Error("Deserialize() with malformed line = nil error, want error")
	}
}

func TestDeserializeSkipsBlankLines(t *testing.T) {
	in := "\n0 aa\n\n1 bb\n"
	m, err := Deserialize(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(m) != 2 || m[0] != 0xaa || m[1] != 0xbb {
		t.Errorf("Deserialize() = %v, want {0:0xaa, 1:0xbb}", m)
	}
}
