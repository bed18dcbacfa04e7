// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Fixed response layouts of the INQUIRY data this package decodes (SPC-4 6.6).

package scsi

// field is a fixed-width region of a response buffer.
type field struct {
	Offset int
	Len    int
}

func (f field) end() int {
	return f.Offset + f.Len
}

func (f field) slice(b []byte) []byte {
	return b[f.Offset:f.end()]
}

// Standard INQUIRY data.
//
//	byte 0      peripheral qualifier (7:5), peripheral device type (4:0)
//	byte 1      RMB (7)
//	byte 2      version
//	byte 3      response data format (3:0)
//	byte 4      additional length
//	bytes 8-15  T10 vendor identification
//	bytes 16-31 product identification
//	bytes 32-35 product revision level
var standardInquiryLayout = struct {
	Peripheral       int
	Flags            int
	Version          int
	ResponseFormat   int
	AdditionalLength int
	VendorID         field
	ProductID        field
	Revision         field
}{
	Peripheral:       0,
	Flags:            1,
	Version:          2,
	ResponseFormat:   3,
	AdditionalLength: 4,
	VendorID:         field{8, 8},
	ProductID:        field{16, 16},
	Revision:         field{32, 4},
}

// Unit Serial Number VPD page (0x80).
//
//	byte 0  peripheral qualifier / device type
//	byte 1  page code (0x80)
//	byte 3  page length n
//	bytes 4 to 4+n-1 product serial number, ASCII
var unitSerialLayout = struct {
	PageCode   int
	PageLength int
	Serial     int
}{
	PageCode:   1,
	PageLength: 3,
	Serial:     4,
}
