// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package drivedb is a YAML database of known drive models, used to annotate identified devices
// with their family name, known firmware warnings and identification quirks.
package drivedb

import (
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Family of the fallback entry returned when nothing else matches.
const DefaultFamily = "DEFAULT"

type DriveModel struct {
	Family        string `yaml:"family,omitempty"`
	VendorRegex   string `yaml:"vendor_regex,omitempty"`
	ModelRegex    string `yaml:"model_regex,omitempty"`
	FirmwareRegex string `yaml:"firmware_regex,omitempty"`
	WarningMsg    string `yaml:"warning,omitempty"`
	// SerialPage set to false marks devices whose Unit Serial Number VPD page is unusable.
	SerialPage *bool `yaml:"serial_page,omitempty"`

	vendorRe   *regexp.Regexp
	modelRe    *regexp.Regexp
	firmwareRe *regexp.Regexp
}

// SerialPageUsable reports whether the VPD 0x80 serial number of a matching device can be
// trusted. Entries that say nothing about it are trusted.
func (m *DriveModel) SerialPageUsable() bool {
	return m.SerialPage == nil || *m.SerialPage
}

// compile prepares the regular expressions of an entry. Like smartmontools, a pattern must match
// the whole string.
func (m *DriveModel) compile() (err error) {
	re := func(s string) (*regexp.Regexp, error) {
		if s == "" {
			return nil, nil
		}
		return regexp.Compile("^(?:" + s + ")$")
	}

	if m.vendorRe, err = re(m.VendorRegex); err != nil {
		return errors.Wrapf(err, "%s: vendor_regex", m.Family)
	}
	if m.modelRe, err = re(m.ModelRegex); err != nil {
		return errors.Wrapf(err, "%s: model_regex", m.Family)
	}
	if m.firmwareRe, err = re(m.FirmwareRegex); err != nil {
		return errors.Wrapf(err, "%s: firmware_regex", m.Family)
	}

	return nil
}

// match reports whether the entry describes the given device. An empty pattern matches anything,
// but an entry with no patterns at all matches nothing.
func (m *DriveModel) match(vendor, model, firmware string) bool {
	if m.vendorRe == nil && m.modelRe == nil {
		return false
	}

	return (m.vendorRe == nil || m.vendorRe.MatchString(vendor)) &&
		(m.modelRe == nil || m.modelRe.MatchString(model)) &&
		(m.firmwareRe == nil || m.firmwareRe.MatchString(firmware))
}

type DriveDb struct {
	Drives []DriveModel `yaml:"drives"`

	// Invalid holds the compile errors of the entries Parse dropped.
	Invalid []error `yaml:"-"`
}

// LookupDrive returns the most appropriate DriveModel for a device's vendor, model and firmware
// revision strings: the first matching entry, else the DEFAULT entry, else the zero DriveModel.
func (db *DriveDb) LookupDrive(vendor, model, firmware string) DriveModel {
	var def DriveModel

	for _, d := range db.Drives {
		// Skip placeholder entry
		if strings.HasPrefix(d.Family, "$Id") {
			continue
		}

		if d.Family == DefaultFamily {
			def = d
			continue
		}

		if d.match(vendor, model, firmware) {
			return d
		}
	}

	return def
}

// Len returns the number of entries in the database.
func (db *DriveDb) Len() int {
	return len(db.Drives)
}

// Parse decodes a YAML-formatted drive database. Entries whose patterns do not compile are
// dropped and their errors collected in Invalid; only undecodable YAML fails the whole database.
func Parse(r io.Reader) (DriveDb, error) {
	var db DriveDb

	if err := yaml.NewDecoder(r).Decode(&db); err != nil && err != io.EOF {
		return DriveDb{}, errors.Wrap(err, "decode drive database")
	}

	drives := db.Drives[:0]
	for _, d := range db.Drives {
		if err := d.compile(); err != nil {
			db.Invalid = append(db.Invalid, err)
			continue
		}
		drives = append(drives, d)
	}
	db.Drives = drives

	return db, nil
}

// OpenDriveDb opens a YAML-formatted drive database, unmarshalls it, and returns a DriveDb. A
// database that does not exist is treated as empty.
func OpenDriveDb(dbfile string) (DriveDb, error) {
	f, err := os.Open(dbfile)
	if os.IsNotExist(err) {
		return DriveDb{}, nil
	} else if err != nil {
		return DriveDb{}, err
	}

	defer f.Close()

	db, err := Parse(f)
	return db, errors.WithMessage(err, dbfile)
}

// Write encodes db as YAML to w.
func (db *DriveDb) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)

	if err := enc.Encode(db); err != nil {
		return err
	}

	return enc.Close()
}
