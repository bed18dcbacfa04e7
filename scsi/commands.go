// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI command definitions.

package scsi

const (
	// SCSI commands used by this package
	SCSI_INQUIRY         = 0x12
	SCSI_ATA_PASSTHRU_16 = 0x85

	// Allocation length requested by both INQUIRY variants
	INQ_REPLY_LEN = 96
	// Minimum length of standard INQUIRY response
	INQ_MIN_REPLY_LEN = 36

	// INQUIRY CDB byte 1 flags
	INQ_EVPD = 0x01

	// Vital product data pages
	VPD_SUPPORTED_PAGES    = 0x00
	VPD_UNIT_SERIAL_NUMBER = 0x80
)

// SCSI CDB types
type CDB6 [6]byte
type CDB10 [10]byte
type CDB16 [16]byte

// inquiryCDB encodes a 6-byte INQUIRY CDB: opcode, EVPD flag, page code, reserved, allocation
// length and control byte.
func inquiryCDB(flags, page byte) CDB6 {
	return CDB6{SCSI_INQUIRY, flags, page, 0, INQ_REPLY_LEN, 0}
}

// StandardInquiryCDB returns the CDB of a standard INQUIRY. It is standard because the CMDDT and
// EVPD bits are zero, so every SCSI target should answer it promptly.
func StandardInquiryCDB() CDB6 {
	return inquiryCDB(0, VPD_SUPPORTED_PAGES)
}

// VPDInquiryCDB returns the CDB of an INQUIRY for the given vital product data page.
func VPDInquiryCDB(page byte) CDB6 {
	return inquiryCDB(INQ_EVPD, page)
}
