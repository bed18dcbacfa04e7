// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package drivedb

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDb = `
drives:
- family: "$Id: drivedb.yaml 1 $"
- family: DEFAULT
  warning: generic device
- family: Western Digital Blue
  model_regex: WDC WD(5000AAKX|10EZEX)-.*
- family: Crucial MX500
  model_regex: CT(250|500)MX500SSD1
  firmware_regex: M3CR0(1[0-9]|2[0-2])
  warning: Firmware bug, update to M3CR023 or later
- family: Acme bridge
  vendor_regex: ACME
  model_regex: BRIDGE.*
  serial_page: false
- family: No patterns
`

func writeDb(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "drivedb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLookupDrive(t *testing.T) {
	assert := assert.New(t)

	db, err := OpenDriveDb(writeDb(t, testDb))
	require.NoError(t, err)
	assert.Equal(6, db.Len())

	m := db.LookupDrive("ATA", "WDC WD5000AAKX-00ERMA0", "80.00A80")
	assert.Equal("Western Digital Blue", m.Family)
	assert.True(m.SerialPageUsable())

	// Patterns must match the whole string
	m = db.LookupDrive("ATA", "XWDC WD5000AAKX-00ERMA0", "")
	assert.Equal(DefaultFamily, m.Family)
	assert.Equal("generic device", m.WarningMsg)

	m = db.LookupDrive("ATA", "CT500MX500SSD1", "M3CR020")
	assert.Equal("Crucial MX500", m.Family)
	assert.Contains(m.WarningMsg, "Firmware bug")

	m = db.LookupDrive("ATA", "CT500MX500SSD1", "M3CR023")
	assert.Equal(DefaultFamily, m.Family)

	m = db.LookupDrive("ACME", "BRIDGE42", "0001")
	assert.Equal("Acme bridge", m.Family)
	assert.False(m.SerialPageUsable())

	m = db.LookupDrive("OTHER", "BRIDGE42", "0001")
	assert.Equal(DefaultFamily, m.Family)
}

func TestLookupDriveEmpty(t *testing.T) {
	var db DriveDb

	m := db.LookupDrive("ATA", "anything", "")
	assert.Equal(t, DriveModel{}, m)
	assert.True(t, m.SerialPageUsable())
}

func TestOpenDriveDb(t *testing.T) {
	db, err := OpenDriveDb(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NoError(t, err)
	assert.Zero(t, db.Len())

	db, err = OpenDriveDb(writeDb(t, ""))
	assert.NoError(t, err)
	assert.Zero(t, db.Len())

	// A pattern RE2 cannot compile drops only its own entry
	db, err = OpenDriveDb(writeDb(t, `
drives:
- family: Broken
  model_regex: WD(
- family: Lookahead
  model_regex: (?=ST).*
- family: Crucial MX500
  model_regex: CT(250|500)MX500SSD1
`))
	require.NoError(t, err)
	assert.Equal(t, 1, db.Len())
	require.Len(t, db.Invalid, 2)
	assert.ErrorContains(t, db.Invalid[0], "Broken: model_regex")
	assert.ErrorContains(t, db.Invalid[1], "Lookahead: model_regex")
	assert.Equal(t, "Crucial MX500", db.LookupDrive("ATA", "CT500MX500SSD1", "").Family)

	_, err = OpenDriveDb(writeDb(t, "drives: [\n"))
	assert.ErrorContains(t, err, "decode drive database")
}

const testDrivedbH = `/*
 * drivedb.h - smartmontools drive database file
 */

const drive_settings builtin_knowndrives[] = {
  { "$Id: drivedb.h 5000 2019-12-01 $",
    "-", "-",
    "Version info",
    ""
  },
  { "DEFAULT",
    "-", "",
    "",
    "-v 9,minutes"
  },
  { "Western Digital Blue",
    "WDC WD(5000AAKX|10EZEX)-.*",
    "", "",
    "-v 1,raw48,Raw_Read_Error_Rate"
  },
  { "USB: Seagate; ",
    "0x0bc2:0x2300",
    "",
    "",
    "-d sat"
  },
  { "Crucial MX500", // tested with CT500MX500SSD1/M3CR020
    "CT(250|500)MX500SSD1",
    "M3CR0(1[0-9]|2[0-2])",
    "Firmware bug, "
    "update to M3CR023 or later",
    ""
  },
};
`

func TestParseDrivedbH(t *testing.T) {
	assert := assert.New(t)

	header, db := ParseDrivedbH(strings.NewReader(testDrivedbH))
	assert.Contains(header, "# drivedb.h - smartmontools drive database file")

	require.Equal(t, 4, db.Len())
	assert.Equal("$Id: drivedb.h 5000 2019-12-01 $", db.Drives[0].Family)
	assert.Equal(DriveModel{Family: DefaultFamily}, db.Drives[1])
	assert.Equal("WDC WD(5000AAKX|10EZEX)-.*", db.Drives[2].ModelRegex)
	assert.Equal(DriveModel{
		Family:        "Crucial MX500",
		ModelRegex:    "CT(250|500)MX500SSD1",
		FirmwareRegex: "M3CR0(1[0-9]|2[0-2])",
		WarningMsg:    "Firmware bug, update to M3CR023 or later",
	}, db.Drives[3])

	// Converted output is usable as a database
	var buf bytes.Buffer
	require.NoError(t, db.Write(&buf))

	db, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal("Crucial MX500", db.LookupDrive("ATA", "CT250MX500SSD1", "M3CR010").Family)
	assert.Equal(DefaultFamily, db.LookupDrive("ATA", "CT250MX500SSD1", "M3CR046").Family)
}
