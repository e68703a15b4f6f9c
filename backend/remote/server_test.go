// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package remote

import (
	"net"
	"testing"
	"time"
)

func TestExecuteFlushRepliesFlushDone(t *testing.T) {
	s := NewServer(map[byte]string{})
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		var wakeup time.Time
		_ = s.execute(server, opFlush, 0, &wakeup)
	}()

	buf := make([]byte, 1)
	if _, err := client.Read(buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != flushDone {
		t.Errorf("flush reply = 0x%02x, want 0x%02x", buf[0], flushDone)
	}
}

func TestExecuteUnknownPinErrors(t *testing.T) {
	s := NewServer(map[byte]string{})
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	var wakeup time.Time
	if err := s.execute(server, opSetAsOutput, 5, &wakeup); err == nil {
		t.Error("execute(SET_AS_OUTPUT, unregistered arg) should fail")
	}
}

func TestExecuteWaitEncodesFullRange(t *testing.T) {
	s := NewServer(map[byte]string{})
	var wakeup time.Time
	before := time.Now()
	// op&0x1f == 0x1f, arg == 0xff -> n = 255 + (31<<8) + 1 = 8192
	if err := s.execute(nil, opWait100ns|0x1f, 0xff, &wakeup); err != nil {
		t.Fatal(err)
	}
	wantMin := before.Add(8192 * 100 * time.Nanosecond)
	if wakeup.Before(wantMin) {
		t.Errorf("wakeup = %v, want at least %v", wakeup, wantMin)
	}
}
