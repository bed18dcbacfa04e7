// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package ata identifies ATA drives behind a SCSI / ATA Translation layer (SAT), by tunnelling
// IDENTIFY DEVICE through the SCSI ATA PASS-THROUGH (16) command.
package ata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/dswarbrick/devident/device"
	"github.com/dswarbrick/devident/scsi"
	"github.com/dswarbrick/devident/utils"
)

var (
	ErrIdentifyFailed = errors.New("ATA IDENTIFY DEVICE failed")
	ErrChecksum       = errors.New("IDENTIFY DEVICE data checksum mismatch")
)

// Default timeout of the IDENTIFY DEVICE pass-through, in milliseconds.
const DEFAULT_TIMEOUT = scsi.DEFAULT_TIMEOUT

// ATA device identify struct. ATA strings are stored as big-endian words, i.e. every byte pair
// is swapped relative to the text.
type IdentifyDeviceData struct {
	GeneralConfiguration   uint16 // Word 0
	NumCylinders           uint16
	ReservedWord2          uint16
	NumHeads               uint16
	Retired1               [2]uint16
	NumSectorsPerTrack     uint16
	VendorUnique           [3]uint16
	SerialNumber           [20]byte // Word 10
	Retired2               [2]uint16
	Obsolete1              uint16
	FirmwareRevision       [8]byte  // Word 23
	ModelNumber            [40]byte // Word 27
	MaxBlockTransfer       uint8
	VendorUnique2          uint8
	ReservedWord48         uint16
	Capabilities           uint32 // Word 49
	ObsoleteWords51        [2]uint16
	_                      [7]uint16
	UserAddressableSectors uint32 // Word 60, 28-bit addressing
	_                      [18]uint16
	MajorVersion           uint16    // Word 80
	MinorVersion           uint16    // Word 81
	CommandSetSupported    [3]uint16 // Word 82
	CommandSetEnabled      [3]uint16 // Word 85
	_                      [12]uint16
	MaxLBA48               uint64 // Word 100, 48-bit addressing
	_                      [151]uint16
	Integrity              uint16 // Word 255, checksum (high byte) and signature (low byte)
}

// LBA48 reports whether the 48-bit address feature set is supported (word 83 bit 10).
func (d *IdentifyDeviceData) LBA48() bool {
	return d.CommandSetSupported[1]&(1<<10) != 0
}

// Sectors returns the number of user addressable logical sectors.
func (d *IdentifyDeviceData) Sectors() uint64 {
	if d.LBA48() {
		return d.MaxLBA48 & (1<<48 - 1)
	}
	return uint64(d.UserAddressableSectors & (1<<28 - 1))
}

// MajorVersionString returns the newest ATA standard the drive claims to support.
func (d *IdentifyDeviceData) MajorVersionString() string {
	// 0x0000 and 0xffff mean the field is not reported
	if d.MajorVersion == 0 || d.MajorVersion == 0xffff {
		return ""
	}

	if s, ok := ataMajorVersions[utils.Log2b(uint(d.MajorVersion))]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%#04x)", d.MajorVersion)
}

// MinorVersionString returns the description of the standard revision the drive implements.
func (d *IdentifyDeviceData) MinorVersionString() string {
	if d.MinorVersion == 0 || d.MinorVersion == 0xffff {
		return ""
	}

	if s, ok := ataMinorVersions[d.MinorVersion]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%#04x)", d.MinorVersion)
}

// Identity is the decoded identification of an ATA drive.
type Identity struct {
	Serial       string
	Model        string
	Firmware     string
	MajorVersion string
	MinorVersion string
	LBA48        bool
	Sectors      uint64
}

// Capacity returns the drive capacity in bytes, assuming 512-byte logical sectors.
func (id *Identity) Capacity() uint64 {
	return id.Sectors * 512
}

// ParseIdentifyDeviceData decodes a 512-byte IDENTIFY DEVICE data block. When the block carries
// the integrity signature (0xa5), its checksum is verified.
func ParseIdentifyDeviceData(buf []byte) (*IdentifyDeviceData, error) {
	if len(buf) < IDENTIFY_LEN {
		return nil, errors.Wrapf(scsi.ErrShortResponse, "IDENTIFY DEVICE: %d bytes, need %d", len(buf), IDENTIFY_LEN)
	}
	buf = buf[:IDENTIFY_LEN]

	if buf[510] == 0xa5 {
		var sum byte
		for _, b := range buf {
			sum += b
		}
		if sum != 0 {
			return nil, errors.Wrapf(ErrChecksum, "sum %#02x", sum)
		}
	}

	d := new(IdentifyDeviceData)
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, d); err != nil {
		return nil, err
	}

	return d, nil
}

// NewIdentity converts raw IDENTIFY DEVICE data to an Identity. The string fields of d are left
// untouched.
func NewIdentity(d *IdentifyDeviceData) *Identity {
	field := func(b []byte) string {
		return utils.ASCIIField(utils.SwapBytes(append([]byte(nil), b...)))
	}

	return &Identity{
		Serial:       field(d.SerialNumber[:]),
		Model:        field(d.ModelNumber[:]),
		Firmware:     field(d.FirmwareRevision[:]),
		MajorVersion: d.MajorVersionString(),
		MinorVersion: d.MinorVersionString(),
		LBA48:        d.LBA48(),
		Sectors:      d.Sectors(),
	}
}

// passthroughOK reports whether a non-clean pass-through completion is in fact the SAT layer
// returning ATA registers with a successful command ("ATA PASS THROUGH INFORMATION AVAILABLE").
func passthroughOK(cmd *scsi.Command) bool {
	sd, ok := scsi.DecodeSense(cmd.SenseData())
	return ok && sd.Key == 0x01 && sd.ASC == 0x00 && sd.ASCQ == 0x1d
}

// Identify issues IDENTIFY DEVICE through t. A failure to issue the exchange is reported as
// device.ErrTransport, a drive or SAT layer refusing the command as ErrIdentifyFailed.
func Identify(t scsi.Transport, timeout time.Duration) (*Identity, error) {
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT * time.Millisecond
	}

	cdb := IdentifyDeviceCDB()
	cmd := scsi.NewCommand(cdb[:], IDENTIFY_LEN, timeout)

	if err := t.Execute(cmd); err != nil {
		return nil, errors.Wrapf(device.ErrTransport, "ATA IDENTIFY DEVICE: %v", err)
	}

	if err := cmd.Err(); err != nil && !passthroughOK(cmd) {
		return nil, errors.Wrapf(ErrIdentifyFailed, "%v", err)
	}

	d, err := ParseIdentifyDeviceData(cmd.Valid())
	if err != nil {
		return nil, errors.WithMessage(err, "ATA IDENTIFY DEVICE")
	}

	id := NewIdentity(d)
	if id.Model == "" && id.Serial == "" {
		return nil, errors.Wrap(ErrIdentifyFailed, "empty IDENTIFY DEVICE data")
	}

	return id, nil
}

// Options controls IdentifyPath. Zero values select the defaults.
type Options struct {
	Mode    device.Mode
	Timeout time.Duration
	// Open returns the transport for a device path, default scsi.OpenSG.
	Open func(path string, mode device.Mode) (scsi.Transport, error)
}

// IdentifyPath opens path, checks that it is served by a usable sg driver and identifies the
// drive behind it. The device handle is released before returning.
func IdentifyPath(path string, opts Options) (*Identity, error) {
	if opts.Open == nil {
		opts.Open = scsi.OpenSG
	}

	open := func(p string) (scsi.Transport, error) {
		return opts.Open(p, opts.Mode)
	}

	var id *Identity

	err := device.Use(path, open, func(t scsi.Transport) (err error) {
		if err = scsi.CheckVersion(t); err != nil {
			return errors.WithMessage(err, path)
		}

		id, err = Identify(t, opts.Timeout)
		return errors.WithMessage(err, path)
	})
	if err != nil {
		return nil, err
	}

	return id, nil
}
