// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Miscellaneous utility functions

package utils

import (
	"bytes"
	"fmt"
	"math/bits"
	"strings"
)

// Log2b finds the most significant bit set in a uint, or -1 if none is.
func Log2b(x uint) int {
	return bits.Len(x) - 1
}

// SwapBytes swaps the order of every second byte in a byte slice (modifies slice in-place).
// A trailing odd byte is left untouched.
func SwapBytes(s []byte) []byte {
	for i := 0; i+1 < len(s); i += 2 {
		s[i], s[i+1] = s[i+1], s[i]
	}

	return s
}

// ASCIIField converts a fixed-width, space-padded protocol field to a string. Anything from the
// first NUL onwards is discarded, as is surrounding whitespace.
func ASCIIField(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}

	return strings.TrimSpace(string(b))
}

// PaddedField converts a variable-length protocol field to a string. Anything from the first NUL
// is discarded, as is trailing space padding. Leading spaces are significant and kept.
func PaddedField(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}

	return strings.TrimRight(string(b), " ")
}

// FormatBytes formats a byte quantity using human-readable SI units, e.g. kilobyte, megabyte.
func FormatBytes(v uint64) string {
	var i int

	suffixes := [...]string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}
	d := uint64(1)

	for i = 0; i < len(suffixes)-1; i++ {
		if v >= d*1000 {
			d *= 1000
		} else {
			break
		}
	}

	if i == 0 {
		return fmt.Sprintf("%d %s", v, suffixes[i])
	}

	// Print 3 significant digits
	return fmt.Sprintf("%.3g %s", float64(v)/float64(d), suffixes[i])
}
