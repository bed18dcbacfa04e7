// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Smartmontools drivedb.h database to YAML format converter.

package drivedb

import (
	"io"
	"strconv"
	"strings"
	"text/scanner"
)

// ParseDrivedbH extracts the drive entries of a smartmontools drivedb.h file. It returns the
// file's license header as a YAML comment block, and the entries. SMART attribute presets are
// dropped, as are USB bridge entries, which do not describe drives.
func ParseDrivedbH(src io.Reader) (string, DriveDb) {
	var (
		s    scanner.Scanner
		prev rune
		idx  int
		db   DriveDb
	)

	header := "# This file was generated from:\n"
	items := make([]string, 5)

	s.Init(src)
	s.Mode ^= scanner.SkipComments
	s.Error = func(*scanner.Scanner, string) {}

	// Extremely simple state machine like processing of tokens.
	for tok := s.Scan(); tok != scanner.EOF; tok = s.Scan() {
		if prev == 0 && tok == scanner.Comment {
			// First comment from drivedb.h should be copyright / license header. Convert C-style
			// comment to a YAML comment.
			for _, line := range strings.Split(s.TokenText(), "\n") {
				header += "# " + strings.TrimLeft(line, "/* ") + "\n"
			}
		} else if (prev == '{' || prev == ',') && tok == scanner.String {
			if idx < len(items) {
				items[idx] = strings.Trim(s.TokenText(), `"`)
			}
		} else if prev == scanner.String && tok == ',' {
			idx++
		} else if (prev == scanner.String || prev == scanner.Comment) && tok == scanner.String {
			if idx < len(items) {
				items[idx] += strings.Trim(s.TokenText(), `"`)
			}
		} else if tok == '}' {
			var dm DriveModel

			if tmp, err := strconv.Unquote(`"` + items[0] + `"`); err == nil {
				dm.Family = tmp
			}

			if tmp, err := strconv.Unquote(`"` + items[1] + `"`); err == nil {
				dm.ModelRegex = tmp
			}

			if tmp, err := strconv.Unquote(`"` + items[2] + `"`); err == nil {
				dm.FirmwareRegex = tmp
			}

			if tmp, err := strconv.Unquote(`"` + items[3] + `"`); err == nil {
				dm.WarningMsg = tmp
			}

			if dm.Family != "" && !strings.HasPrefix(dm.Family, "USB:") {
				// The DEFAULT entry's model regex is a "-" placeholder
				if dm.Family == DefaultFamily {
					dm.ModelRegex = ""
				}
				db.Drives = append(db.Drives, dm)
			}

			items = make([]string, 5)
			idx = 0
		}

		prev = tok
	}

	return header, db
}
