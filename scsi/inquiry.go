// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// SCSI INQUIRY based device identification.

package scsi

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dswarbrick/devident/device"
	"github.com/dswarbrick/devident/utils"
)

var (
	ErrShortResponse  = errors.New("short INQUIRY response")
	ErrUnexpectedPage = errors.New("unexpected VPD page code")
	ErrNoSerial       = errors.New("device does not report a unit serial number")
)

// TransactionState tracks one INQUIRY exchange.
type TransactionState int

const (
	Idle TransactionState = iota
	CommandBuilt
	Submitted
	CompletedClean
	CompletedDirty
	TransportFailed
)

var transactionStateNames = [...]string{"idle", "command built", "submitted", "completed (clean)",
	"completed (dirty)", "transport failed"}

func (s TransactionState) String() string {
	if int(s) < len(transactionStateNames) {
		return transactionStateNames[s]
	}
	return fmt.Sprintf("TransactionState(%d)", int(s))
}

const (
	StandardInquiryTransaction = "standard INQUIRY"
	SerialInquiryTransaction   = "VPD 0x80 INQUIRY"
)

// Diagnostic is advisory information about a transaction that did not yield its field(s).
type Diagnostic struct {
	Transaction string
	State       TransactionState
	Status      *SgioError // nil unless the completion was dirty
	Reason      string
}

func (d Diagnostic) String() string {
	if d.Status != nil {
		return fmt.Sprintf("%s: %s: %v", d.Transaction, d.Reason, d.Status)
	}
	return fmt.Sprintf("%s: %s", d.Transaction, d.Reason)
}

// InquiryResult is the identity reported by INQUIRY. Fields of a transaction that did not
// complete cleanly are left empty; a partially populated result is not an error.
type InquiryResult struct {
	VendorID       string
	ProductID      string
	Revision       string
	SerialNumber   string
	PeripheralType uint8
	Diagnostics    []Diagnostic
}

// Empty reports whether no identification field was populated.
func (r *InquiryResult) Empty() bool {
	return r.VendorID == "" && r.ProductID == "" && r.Revision == "" && r.SerialNumber == ""
}

// StandardInquiry is the decoded head of a standard INQUIRY response.
type StandardInquiry struct {
	PeripheralQualifier uint8
	PeripheralType      uint8
	Removable           bool
	Version             uint8
	ResponseFormat      uint8
	AdditionalLength    uint8
	VendorID            string
	ProductID           string
	Revision            string
}

// ParseStandardInquiry decodes a standard INQUIRY response. data must contain at least the
// product identification; the revision is decoded only when present.
func ParseStandardInquiry(data []byte) (StandardInquiry, error) {
	var inq StandardInquiry
	l := standardInquiryLayout

	if len(data) < l.ProductID.end() {
		return inq, errors.Wrapf(ErrShortResponse, "%d bytes, need %d", len(data), l.ProductID.end())
	}

	inq.PeripheralQualifier = data[l.Peripheral] >> 5
	inq.PeripheralType = data[l.Peripheral] & 0x1f
	inq.Removable = data[l.Flags]&0x80 != 0
	inq.Version = data[l.Version]
	inq.ResponseFormat = data[l.ResponseFormat] & 0x0f
	inq.AdditionalLength = data[l.AdditionalLength]
	inq.VendorID = utils.ASCIIField(l.VendorID.slice(data))
	inq.ProductID = utils.ASCIIField(l.ProductID.slice(data))

	if len(data) >= l.Revision.end() {
		inq.Revision = utils.ASCIIField(l.Revision.slice(data))
	}

	return inq, nil
}

// ParseUnitSerialNumber decodes a Unit Serial Number VPD page: the page length at byte 3 gives
// the number of serial bytes following byte 4. The serial is cut at the first NUL and its trailing
// padding is dropped; leading spaces of a right-justified serial are kept. A page length of zero
// yields an empty serial and no error. The page code is not checked, see CheckUnitSerialPage.
func ParseUnitSerialNumber(data []byte) (string, error) {
	l := unitSerialLayout

	if len(data) < l.Serial {
		return "", errors.Wrapf(ErrShortResponse, "%d bytes, need %d", len(data), l.Serial)
	}

	n := int(data[l.PageLength])
	if l.Serial+n > len(data) {
		return "", errors.Wrapf(ErrShortResponse, "serial length %d exceeds %d bytes of page data",
			n, len(data)-l.Serial)
	}

	return utils.PaddedField(data[l.Serial : l.Serial+n]), nil
}

// CheckUnitSerialPage reports ErrUnexpectedPage if data does not carry the Unit Serial Number page
// code. Some devices leave the page code zeroed, so this is advisory only.
func CheckUnitSerialPage(data []byte) error {
	l := unitSerialLayout

	if len(data) > l.PageCode && data[l.PageCode] != VPD_UNIT_SERIAL_NUMBER {
		return errors.Wrapf(ErrUnexpectedPage, "%#02x", data[l.PageCode])
	}

	return nil
}

// Options controls an Inquirer. Zero values select the defaults.
type Options struct {
	// Mode is the access mode devices are opened with. Some drivers insist on read-write
	// access for SG_IO; read-only is the default.
	Mode device.Mode
	// Timeout of the standard INQUIRY, default DEFAULT_TIMEOUT.
	Timeout time.Duration
	// SerialTimeout of the VPD 0x80 INQUIRY issued by Inquire, default DEFAULT_TIMEOUT.
	SerialTimeout time.Duration
	// SerialProbeTimeout of the VPD 0x80 INQUIRY issued by Serial, default SERIAL_PROBE_TIMEOUT.
	SerialProbeTimeout time.Duration
	// Log receives diagnostics. Nil discards them.
	Log logrus.FieldLogger
	// Open returns the transport for a device path, default OpenSG.
	Open func(path string, mode device.Mode) (Transport, error)
}

// Inquirer identifies devices with SCSI INQUIRY. It holds no per-device state and may be shared
// between goroutines; every call opens and releases its own device handle.
type Inquirer struct {
	opts Options
}

func NewInquirer(opts Options) *Inquirer {
	if opts.Timeout <= 0 {
		opts.Timeout = DEFAULT_TIMEOUT * time.Millisecond
	}
	if opts.SerialTimeout <= 0 {
		opts.SerialTimeout = DEFAULT_TIMEOUT * time.Millisecond
	}
	if opts.SerialProbeTimeout <= 0 {
		opts.SerialProbeTimeout = SERIAL_PROBE_TIMEOUT * time.Millisecond
	}
	if opts.Log == nil {
		l := logrus.New()
		l.Out = io.Discard
		opts.Log = l
	}
	if opts.Open == nil {
		opts.Open = OpenSG
	}

	return &Inquirer{opts: opts}
}

func (q *Inquirer) open(path string) (Transport, error) {
	return q.opts.Open(path, q.opts.Mode)
}

// CheckVersion fails with device.ErrUnsupportedDevice unless t is served by an sg driver new
// enough to understand sg_io_hdr. No command is sent to the device.
func CheckVersion(t Transport) error {
	v, err := t.Version()
	if err != nil {
		return errors.Wrapf(device.ErrUnsupportedDevice, "SG_GET_VERSION_NUM: %v", err)
	}

	if v < SG_MIN_VERSION {
		return errors.Wrapf(device.ErrUnsupportedDevice, "sg driver version %d, need %d", v, SG_MIN_VERSION)
	}

	return nil
}

// transaction is a single INQUIRY exchange.
type transaction struct {
	name  string
	state TransactionState
	cmd   *Command
}

func newTransaction(name string, cdb CDB6, timeout time.Duration) *transaction {
	tx := &transaction{name: name}
	tx.cmd = NewCommand(cdb[:], INQ_REPLY_LEN, timeout)
	tx.state = CommandBuilt
	return tx
}

// submit executes the command. Only a failure to issue the exchange is returned as an error.
func (tx *transaction) submit(t Transport) error {
	tx.state = Submitted

	if err := t.Execute(tx.cmd); err != nil {
		tx.state = TransportFailed
		return errors.Wrapf(device.ErrTransport, "%s: %v", tx.name, err)
	}

	if tx.cmd.Status.OK() {
		tx.state = CompletedClean
	} else {
		tx.state = CompletedDirty
	}

	return nil
}

func (tx *transaction) diagnostic(reason string) Diagnostic {
	d := Diagnostic{Transaction: tx.name, State: tx.state, Reason: reason}
	if tx.state == CompletedDirty {
		d.Status = newSgioError(tx.cmd)
	}
	return d
}

func (q *Inquirer) report(path string, res *InquiryResult, d Diagnostic) {
	res.Diagnostics = append(res.Diagnostics, d)

	fields := logrus.Fields{
		"device":      path,
		"transaction": d.Transaction,
		"state":       d.State.String(),
	}

	if d.Status != nil {
		fields["scsi_status"] = fmt.Sprintf("%#02x", d.Status.ScsiStatus)
		fields["host_status"] = fmt.Sprintf("%#02x", d.Status.HostStatus)
		fields["driver_status"] = fmt.Sprintf("%#02x", d.Status.DriverStatus)
		if len(d.Status.Sense) > 0 {
			fields["sense"] = fmt.Sprintf("% x", d.Status.Sense)
		}
		if sd, ok := DecodeSense(d.Status.Sense); ok {
			fields["sense_key"] = sd.String()
		}
	}

	q.opts.Log.WithFields(fields).Warn(d.Reason)
}

// Inquire issues a standard INQUIRY and a Unit Serial Number VPD INQUIRY against path.
//
// It fails with device.ErrInvalidArgument, device.ErrOpenFailed, device.ErrUnsupportedDevice or
// device.ErrTransport. A transaction that completes with a non-clean status does not fail the
// call: its fields stay empty and a Diagnostic is added to the result.
func (q *Inquirer) Inquire(path string) (*InquiryResult, error) {
	var res *InquiryResult

	err := device.Use(path, q.open, func(t Transport) error {
		if err := CheckVersion(t); err != nil {
			return errors.WithMessage(err, path)
		}

		r := &InquiryResult{}

		std := newTransaction(StandardInquiryTransaction, StandardInquiryCDB(), q.opts.Timeout)
		if err := std.submit(t); err != nil {
			return errors.WithMessage(err, path)
		}

		if std.state == CompletedDirty {
			q.report(path, r, std.diagnostic("device did not complete INQUIRY cleanly"))
		} else if inq, err := ParseStandardInquiry(std.cmd.Valid()); err != nil {
			q.report(path, r, std.diagnostic(err.Error()))
		} else {
			r.VendorID = inq.VendorID
			r.ProductID = inq.ProductID
			r.Revision = inq.Revision
			r.PeripheralType = inq.PeripheralType
		}

		vpd := newTransaction(SerialInquiryTransaction, VPDInquiryCDB(VPD_UNIT_SERIAL_NUMBER), q.opts.SerialTimeout)
		if err := vpd.submit(t); err != nil {
			return errors.WithMessage(err, path)
		}

		if vpd.state == CompletedDirty {
			q.report(path, r, vpd.diagnostic("device did not complete VPD page 0x80 INQUIRY cleanly"))
		} else if serial, err := ParseUnitSerialNumber(vpd.cmd.Valid()); err != nil {
			q.report(path, r, vpd.diagnostic(err.Error()))
		} else {
			r.SerialNumber = serial
			if err := CheckUnitSerialPage(vpd.cmd.Valid()); err != nil {
				q.report(path, r, vpd.diagnostic(err.Error()))
			}
		}

		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// Serial issues only the Unit Serial Number VPD INQUIRY, with the shorter serial probe timeout.
// Unlike Inquire it reports a missing serial number as ErrNoSerial.
func (q *Inquirer) Serial(path string) (string, error) {
	var serial string

	err := device.Use(path, q.open, func(t Transport) error {
		if err := CheckVersion(t); err != nil {
			return errors.WithMessage(err, path)
		}

		tx := newTransaction(SerialInquiryTransaction, VPDInquiryCDB(VPD_UNIT_SERIAL_NUMBER), q.opts.SerialProbeTimeout)
		if err := tx.submit(t); err != nil {
			return errors.WithMessage(err, path)
		}

		if tx.state == CompletedDirty {
			return errors.Wrapf(ErrNoSerial, "%s: %v", path, newSgioError(tx.cmd))
		}

		s, err := ParseUnitSerialNumber(tx.cmd.Valid())
		if err != nil {
			return errors.Wrapf(ErrNoSerial, "%s: %v", path, err)
		} else if s == "" {
			return errors.Wrap(ErrNoSerial, path)
		}

		serial = s
		return nil
	})

	return serial, err
}

// InquireContext runs Inquire and gives up waiting when ctx is done. The kernel cannot cancel an
// SG_IO in flight, so an abandoned call keeps running in the background until the command
// timeout elapses, and still releases its device handle.
func (q *Inquirer) InquireContext(ctx context.Context, path string) (*InquiryResult, error) {
	type outcome struct {
		res *InquiryResult
		err error
	}

	ch := make(chan outcome, 1)

	go func() {
		res, err := q.Inquire(path)
		ch <- outcome{res, err}
	}()

	select {
	case o := <-ch:
		return o.res, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
