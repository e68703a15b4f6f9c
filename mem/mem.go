// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mem holds the sparse address→byte image shared by every target
// driver and file format in nops, plus the paging/gap-splitting helpers
// device programming protocols need.
package mem

import "sort"

// Mem is a sparse mapping from a non-negative address to a byte value.
// Absent keys mean "unknown/unprogrammed". Addresses are bounded only by
// the target driver consuming or producing the map.
type Mem map[int]byte

// SortedKeys returns the addresses present in m in ascending order.
func SortedKeys(m Mem) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// SplitToPages groups m by address/pageSize, visited in ascending page
// order. Within a page, keys are in ascending order. Never mutates m.
func SplitToPages(m Mem, pageSize int) []Mem {
	if len(m) == 0 {
		return nil
	}
	keys := SortedKeys(m)

	var pages []Mem
	var cur Mem
	curPage := 0
	for i, k := range keys {
		page := k / pageSize
		if i == 0 || page != curPage {
			cur = Mem{}
			pages = append(pages, cur)
			curPage = page
		}
		cur[k] = m[k]
	}
	return pages
}

// SplitOnGaps yields sub-maps of maximal contiguous address runs —
// successive keys differing by exactly 1 — in ascending order. Never
// mutates m.
func SplitOnGaps(m Mem) []Mem {
	if len(m) == 0 {
		return nil
	}
	keys := SortedKeys(m)

	var runs []Mem
	var cur Mem
	last := 0
	for i, k := range keys {
		if i == 0 || k-1 != last {
			cur = Mem{}
			runs = append(runs, cur)
		}
		cur[k] = m[k]
		last = k
	}
	return runs
}
