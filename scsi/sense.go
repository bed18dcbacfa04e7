// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Sense data and status code decoding.
// See http://www.t10.org/lists/2status.htm and http://www.t10.org/lists/asc-num.txt

package scsi

import "fmt"

// SenseData is the decoded head of a sense buffer.
type SenseData struct {
	ResponseCode uint8
	Descriptor   bool
	Key          uint8
	ASC          uint8
	ASCQ         uint8
}

// DecodeSense decodes fixed (0x70, 0x71) and descriptor (0x72, 0x73) format sense data. ok is
// false when the buffer is too short or uses an unknown response code.
func DecodeSense(b []byte) (sd SenseData, ok bool) {
	if len(b) < 1 {
		return sd, false
	}

	sd.ResponseCode = b[0] & 0x7f

	switch sd.ResponseCode {
	case 0x70, 0x71:
		if len(b) < 3 {
			return sd, false
		}
		sd.Key = b[2] & 0x0f
		if len(b) >= 14 {
			sd.ASC, sd.ASCQ = b[12], b[13]
		}
	case 0x72, 0x73:
		if len(b) < 4 {
			return sd, false
		}
		sd.Descriptor = true
		sd.Key = b[1] & 0x0f
		sd.ASC, sd.ASCQ = b[2], b[3]
	default:
		return sd, false
	}

	return sd, true
}

// KeyName returns the SPC name of the sense key.
func (sd SenseData) KeyName() string {
	return senseKeys[sd.Key&0x0f]
}

// Description returns the additional sense code text, if known.
func (sd SenseData) Description() string {
	if s, ok := additionalSense[uint16(sd.ASC)<<8|uint16(sd.ASCQ)]; ok {
		return s
	}

	if sd.ASC == 0x40 && sd.ASCQ >= 0x80 {
		return fmt.Sprintf("DIAGNOSTIC FAILURE ON COMPONENT %02X", sd.ASCQ)
	}

	return ""
}

func (sd SenseData) String() string {
	s := fmt.Sprintf("%s, asc=%#02x ascq=%#02x", sd.KeyName(), sd.ASC, sd.ASCQ)
	if d := sd.Description(); d != "" {
		s += " (" + d + ")"
	}
	return s
}

var senseKeys = [16]string{
	"NO SENSE",
	"RECOVERED ERROR",
	"NOT READY",
	"MEDIUM ERROR",
	"HARDWARE ERROR",
	"ILLEGAL REQUEST",
	"UNIT ATTENTION",
	"DATA PROTECT",
	"BLANK CHECK",
	"VENDOR SPECIFIC",
	"COPY ABORTED",
	"ABORTED COMMAND",
	"EQUAL",
	"VOLUME OVERFLOW",
	"MISCOMPARE",
	"COMPLETED",
}

// Additional sense codes an INQUIRY can plausibly complete with, keyed by ASC << 8 | ASCQ.
var additionalSense = map[uint16]string{
	0x0000: "NO ADDITIONAL SENSE INFORMATION",
	0x0400: "LOGICAL UNIT NOT READY, CAUSE NOT REPORTABLE",
	0x0401: "LOGICAL UNIT IS IN PROCESS OF BECOMING READY",
	0x0402: "LOGICAL UNIT NOT READY, INITIALIZING COMMAND REQUIRED",
	0x0403: "LOGICAL UNIT NOT READY, MANUAL INTERVENTION REQUIRED",
	0x0404: "LOGICAL UNIT NOT READY, FORMAT IN PROGRESS",
	0x0500: "LOGICAL UNIT DOES NOT RESPOND TO SELECTION",
	0x0800: "LOGICAL UNIT COMMUNICATION FAILURE",
	0x0801: "LOGICAL UNIT COMMUNICATION TIME-OUT",
	0x0802: "LOGICAL UNIT COMMUNICATION PARITY ERROR",
	0x1a00: "PARAMETER LIST LENGTH ERROR",
	0x2000: "INVALID COMMAND OPERATION CODE",
	0x2100: "LOGICAL BLOCK ADDRESS OUT OF RANGE",
	0x2400: "INVALID FIELD IN CDB",
	0x2500: "LOGICAL UNIT NOT SUPPORTED",
	0x2600: "INVALID FIELD IN PARAMETER LIST",
	0x2800: "NOT READY TO READY CHANGE, MEDIUM MAY HAVE CHANGED",
	0x2900: "POWER ON, RESET, OR BUS DEVICE RESET OCCURRED",
	0x2a01: "MODE PARAMETERS CHANGED",
	0x3a00: "MEDIUM NOT PRESENT",
	0x3e00: "LOGICAL UNIT HAS NOT SELF-CONFIGURED YET",
	0x3f01: "MICROCODE HAS BEEN CHANGED",
	0x3f03: "INQUIRY DATA HAS CHANGED",
	0x4400: "INTERNAL TARGET FAILURE",
	0x4700: "SCSI PARITY ERROR",
	0x4b00: "DATA PHASE ERROR",
	0x4c00: "LOGICAL UNIT FAILED SELF-CONFIGURATION",
}

var scsiStatusNames = map[uint8]string{
	0x00: "GOOD",
	0x02: "CHECK CONDITION",
	0x04: "CONDITION MET",
	0x08: "BUSY",
	0x18: "RESERVATION CONFLICT",
	0x28: "TASK SET FULL",
	0x30: "ACA ACTIVE",
	0x40: "TASK ABORTED",
}

// Host adapter status, DID_* in <scsi/scsi.h>
var hostStatusNames = []string{
	"DID_OK",
	"DID_NO_CONNECT",
	"DID_BUS_BUSY",
	"DID_TIME_OUT",
	"DID_BAD_TARGET",
	"DID_ABORT",
	"DID_PARITY",
	"DID_ERROR",
	"DID_RESET",
	"DID_BAD_INTR",
	"DID_PASSTHROUGH",
	"DID_SOFT_ERROR",
	"DID_IMM_RETRY",
	"DID_REQUEUE",
	"DID_TRANSPORT_DISRUPTED",
	"DID_TRANSPORT_FAILFAST",
}

// Driver status, DRIVER_* in <scsi/scsi.h>; only the low nibble carries the status.
var driverStatusNames = []string{
	"DRIVER_OK",
	"DRIVER_BUSY",
	"DRIVER_SOFT",
	"DRIVER_MEDIA",
	"DRIVER_ERROR",
	"DRIVER_INVALID",
	"DRIVER_TIMEOUT",
	"DRIVER_HARD",
	"DRIVER_SENSE",
}

func scsiStatusName(s uint8) string {
	if n, ok := scsiStatusNames[s&0xfe]; ok {
		return n
	}
	return "UNKNOWN"
}

func hostStatusName(s uint16) string {
	if int(s) < len(hostStatusNames) {
		return hostStatusNames[s]
	}
	return "UNKNOWN"
}

func driverStatusName(s uint16) string {
	if i := int(s & 0x0f); i < len(driverStatusNames) {
		return driverStatusNames[i]
	}
	return "UNKNOWN"
}
