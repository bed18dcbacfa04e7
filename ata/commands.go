// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// ATA command definitions.

package ata

import "github.com/dswarbrick/devident/scsi"

const (
	// ATA commands
	ATA_IDENTIFY_DEVICE = 0xec

	// Length of the IDENTIFY DEVICE data block
	IDENTIFY_LEN = 512

	// ATA PASS-THROUGH protocol field (byte 1, bits 4:1)
	SAT_PROTO_PIO_DATA_IN = 4 << 1

	// ATA PASS-THROUGH byte 2: T_DIR = 1 (from device), BYT_BLOK = 1 (count in blocks),
	// T_LENGTH = 2 (length in sector count field)
	SAT_FLAGS_READ_BLOCKS = 0x0e
)

// IdentifyDeviceCDB returns an ATA PASS-THROUGH (16) CDB carrying IDENTIFY DEVICE, reading one
// 512-byte block.
func IdentifyDeviceCDB() scsi.CDB16 {
	return scsi.CDB16{scsi.SCSI_ATA_PASSTHRU_16, SAT_PROTO_PIO_DATA_IN, SAT_FLAGS_READ_BLOCKS,
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, ATA_IDENTIFY_DEVICE, 0x00}
}
