// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI generic IO functions.

package scsi

import (
	"fmt"
	"math"
	"runtime"
	"time"
	"unsafe"

	"github.com/dswarbrick/devident/device"
)

const (
	SG_DXFER_NONE        = -1
	SG_DXFER_TO_DEV      = -2
	SG_DXFER_FROM_DEV    = -3
	SG_DXFER_TO_FROM_DEV = -4

	SG_INFO_OK_MASK = 0x1
	SG_INFO_OK      = 0x0
	SG_INFO_CHECK   = 0x1

	SG_GET_VERSION_NUM = 0x2282
	SG_IO              = 0x2285

	// Oldest sg driver (3.0.0) implementing the sg_io_hdr interface
	SG_MIN_VERSION = 30000

	SENSE_BUF_LEN = 32

	// Timeouts in milliseconds
	DEFAULT_TIMEOUT      = 20000
	SERIAL_PROBE_TIMEOUT = 5000
)

// SCSI generic IO, mirrors struct sg_io_hdr from <scsi/sg.h>. Go pads pack_id / usr_ptr the
// same way the C compiler does.
type sgIoHdr struct {
	interface_id    int32
	dxfer_direction int32
	cmd_len         uint8
	mx_sb_len       uint8
	iovec_count     uint16
	dxfer_len       uint32
	dxferp          uintptr
	cmdp            uintptr // Command pointer
	sbp             uintptr // Sense buf pointer
	timeout         uint32
	flags           uint32
	pack_id         int32
	usr_ptr         uintptr
	status          uint8
	masked_status   uint8
	msg_status      uint8
	sb_len_wr       uint8
	host_status     uint16
	driver_status   uint16
	resid           int32
	duration        uint32
	info            uint32
}

// Status is the completion status of one SG_IO exchange.
type Status struct {
	ScsiStatus   uint8
	MaskedStatus uint8
	MsgStatus    uint8
	SenseLen     uint8
	HostStatus   uint16
	DriverStatus uint16
	Resid        int32
	Duration     time.Duration
	Info         uint32
}

// OK reports a clean completion, i.e. the driver, host adapter and device all reported success.
func (s Status) OK() bool {
	return s.Info&SG_INFO_OK_MASK == SG_INFO_OK
}

// Command is a single SCSI command exchange. A Command is built fresh for every transaction and
// never reused.
type Command struct {
	CDB       []byte
	Direction int32
	Data      []byte
	Sense     []byte
	Timeout   time.Duration
	Status    Status
}

// NewCommand returns a device-to-host exchange for cdb with a zeroed data buffer of dataLen bytes
// and a zeroed sense buffer.
func NewCommand(cdb []byte, dataLen int, timeout time.Duration) *Command {
	return &Command{
		CDB:       cdb,
		Direction: SG_DXFER_FROM_DEV,
		Data:      make([]byte, dataLen),
		Sense:     make([]byte, SENSE_BUF_LEN),
		Timeout:   timeout,
	}
}

// Valid returns the part of the data buffer actually transferred by the device.
func (c *Command) Valid() []byte {
	n := len(c.Data) - int(c.Status.Resid)
	if n < 0 {
		n = 0
	} else if n > len(c.Data) {
		n = len(c.Data)
	}
	return c.Data[:n]
}

// SenseData returns the sense bytes written by the driver.
func (c *Command) SenseData() []byte {
	n := int(c.Status.SenseLen)
	if n > len(c.Sense) {
		n = len(c.Sense)
	}
	return c.Sense[:n]
}

// Err returns the completion status as an *SgioError, or nil if the exchange completed cleanly.
func (c *Command) Err() error {
	if c.Status.OK() {
		return nil
	}
	return newSgioError(c)
}

// Transport submits command exchanges to a device. Implementations are not reentrant; each
// in-flight call owns its own Transport.
type Transport interface {
	// Version returns the sg driver version number (SG_GET_VERSION_NUM).
	Version() (int, error)
	// Execute submits cmd and fills in cmd.Status. An error means the exchange itself could not
	// be issued; a non-clean completion is reported through cmd.Status instead.
	Execute(cmd *Command) error
	Close() error
}

// SGDevice is a Transport speaking the Linux SG_IO ioctl on an open block or sg device.
type SGDevice struct {
	h *device.Handle
}

// OpenSG opens path for SG_IO use.
func OpenSG(path string, mode device.Mode) (Transport, error) {
	h, err := device.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return &SGDevice{h: h}, nil
}

func (d *SGDevice) Close() error {
	return d.h.Close()
}

func (d *SGDevice) Version() (int, error) {
	var v int32

	if err := d.h.Ioctl(SG_GET_VERSION_NUM, uintptr(unsafe.Pointer(&v))); err != nil {
		return 0, err
	}
	return int(v), nil
}

func (d *SGDevice) Execute(cmd *Command) error {
	if len(cmd.CDB) == 0 || len(cmd.CDB) > math.MaxUint8 {
		return fmt.Errorf("invalid CDB length %d", len(cmd.CDB))
	}

	hdr := sgIoHdr{
		interface_id:    'S',
		dxfer_direction: cmd.Direction,
		cmd_len:         uint8(len(cmd.CDB)),
		mx_sb_len:       uint8(len(cmd.Sense)),
		dxfer_len:       uint32(len(cmd.Data)),
		cmdp:            uintptr(unsafe.Pointer(&cmd.CDB[0])),
		timeout:         timeoutMillis(cmd.Timeout),
	}

	if len(cmd.Data) > 0 {
		hdr.dxferp = uintptr(unsafe.Pointer(&cmd.Data[0]))
	}

	if len(cmd.Sense) > 0 {
		hdr.sbp = uintptr(unsafe.Pointer(&cmd.Sense[0]))
	}

	err := d.h.Ioctl(SG_IO, uintptr(unsafe.Pointer(&hdr)))
	runtime.KeepAlive(cmd)
	if err != nil {
		return err
	}

	cmd.Status = Status{
		ScsiStatus:   hdr.status,
		MaskedStatus: hdr.masked_status,
		MsgStatus:    hdr.msg_status,
		SenseLen:     hdr.sb_len_wr,
		HostStatus:   hdr.host_status,
		DriverStatus: hdr.driver_status,
		Resid:        hdr.resid,
		Duration:     time.Duration(hdr.duration) * time.Millisecond,
		Info:         hdr.info,
	}

	return nil
}

func timeoutMillis(d time.Duration) uint32 {
	ms := d.Milliseconds()
	if ms <= 0 {
		return DEFAULT_TIMEOUT
	} else if ms > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ms)
}

// SgioError describes a non-clean SG_IO completion. It is carried as diagnostic data, not
// necessarily returned as an error.
type SgioError struct {
	ScsiStatus   uint8
	HostStatus   uint16
	DriverStatus uint16
	Sense        []byte
}

func newSgioError(cmd *Command) *SgioError {
	return &SgioError{
		ScsiStatus:   cmd.Status.ScsiStatus,
		HostStatus:   cmd.Status.HostStatus,
		DriverStatus: cmd.Status.DriverStatus,
		Sense:        append([]byte(nil), cmd.SenseData()...),
	}
}

func (e SgioError) Error() string {
	s := fmt.Sprintf("SCSI status: %#02x (%s), host status: %#02x (%s), driver status: %#02x (%s)",
		e.ScsiStatus, scsiStatusName(e.ScsiStatus), e.HostStatus, hostStatusName(e.HostStatus),
		e.DriverStatus, driverStatusName(e.DriverStatus))

	if sd, ok := DecodeSense(e.Sense); ok {
		s += ", sense: " + sd.String()
	}

	return s
}
