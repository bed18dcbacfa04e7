// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package devident identifies block storage devices by asking the device itself: the capacity
// through BLKGETSIZE64, vendor, product and serial number through SCSI INQUIRY over SG_IO, and
// ATA drives behind a SCSI / ATA Translation layer through IDENTIFY DEVICE.
package devident

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dswarbrick/devident/ata"
	"github.com/dswarbrick/devident/config"
	"github.com/dswarbrick/devident/device"
	"github.com/dswarbrick/devident/drivedb"
	"github.com/dswarbrick/devident/scsi"
)

// Vendor identification reported by SAT layers for ATA drives
const ataVendor = "ATA"

const (
	SerialSourceVPD = "vpd"
	SerialSourceATA = "ata"
)

// DiskSize returns the capacity of the device at path in bytes, or -1 if it cannot be determined.
func DiskSize(path string) int64 {
	n, err := device.Size(path)
	if err != nil {
		return -1
	}
	return n
}

// Inquiry returns the INQUIRY identity of the device at path, using the default timeouts and a
// read-only handle. It returns nil if the device cannot be opened, is not served by a usable sg
// driver, or an exchange could not be issued. Fields the device did not report cleanly are empty.
func Inquiry(path string) *scsi.InquiryResult {
	res, err := scsi.NewInquirer(scsi.Options{}).Inquire(path)
	if err != nil {
		return nil
	}
	return res
}

// Identity is everything devident could find out about a device.
type Identity struct {
	Path           string        `json:"path"`
	SizeBytes      int64         `json:"size_bytes"`
	Vendor         string        `json:"vendor,omitempty"`
	Product        string        `json:"product,omitempty"`
	Revision       string        `json:"revision,omitempty"`
	Serial         string        `json:"serial,omitempty"`
	SerialSource   string        `json:"serial_source,omitempty"`
	PeripheralType uint8         `json:"peripheral_type"`
	ATA            *ata.Identity `json:"ata,omitempty"`
	Family         string        `json:"family,omitempty"`
	Warning        string        `json:"warning,omitempty"`
	Diagnostics    []string      `json:"diagnostics,omitempty"`
}

// Model returns the most specific model name known for the device.
func (id *Identity) Model() string {
	if id.ATA != nil && id.ATA.Model != "" {
		return id.ATA.Model
	}
	return id.Product
}

// Firmware returns the most specific firmware revision known for the device.
func (id *Identity) Firmware() string {
	if id.ATA != nil && id.ATA.Firmware != "" {
		return id.ATA.Firmware
	}
	return id.Revision
}

// Identifier combines the capacity probe, INQUIRY, ATA identification and the drive database.
type Identifier struct {
	cfg *config.Config
	db  drivedb.DriveDb
	log logrus.FieldLogger

	size func(path string) (int64, error)
	open func(path string, mode device.Mode) (scsi.Transport, error)
	inq  *scsi.Inquirer
}

// NewIdentifier loads the drive database named by cfg. A nil cfg selects the defaults, a nil log
// discards diagnostics.
func NewIdentifier(cfg *config.Config, log logrus.FieldLogger) (*Identifier, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	db, err := drivedb.OpenDriveDb(cfg.DriveDb)
	if err != nil {
		return nil, err
	}

	return newIdentifier(cfg, log, db, device.Size, scsi.OpenSG), nil
}

func newIdentifier(cfg *config.Config, log logrus.FieldLogger, db drivedb.DriveDb,
	size func(string) (int64, error), open func(string, device.Mode) (scsi.Transport, error)) *Identifier {

	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}

	for _, err := range db.Invalid {
		log.WithError(err).Warn("Skipping drive database entry")
	}

	opts := cfg.InquiryOptions(log)
	opts.Open = open

	return &Identifier{
		cfg:  cfg,
		db:   db,
		log:  log,
		size: size,
		open: open,
		inq:  scsi.NewInquirer(opts),
	}
}

// Identify identifies the device at path. Only a device that cannot be opened at all, or a
// transport failure, is an error. Anything else yields a partial Identity with diagnostics.
func (i *Identifier) Identify(path string) (*Identity, error) {
	log := i.log.WithField("device", path)
	id := &Identity{Path: path}

	size, err := i.size(path)
	if errors.Is(err, device.ErrInvalidArgument) || errors.Is(err, device.ErrOpenFailed) {
		return nil, err
	} else if err != nil {
		log.WithError(err).Warn("Cannot determine device capacity")
		id.Diagnostics = append(id.Diagnostics, err.Error())
	}
	id.SizeBytes = size

	res, err := i.inq.Inquire(path)
	if errors.Is(err, device.ErrUnsupportedDevice) {
		log.WithError(err).Debug("Device does not support SG_IO, skipping INQUIRY")
		id.Diagnostics = append(id.Diagnostics, err.Error())
		return id, nil
	} else if err != nil {
		return nil, err
	}

	id.Vendor = res.VendorID
	id.Product = res.ProductID
	id.Revision = res.Revision
	id.PeripheralType = res.PeripheralType
	for _, d := range res.Diagnostics {
		id.Diagnostics = append(id.Diagnostics, d.String())
	}

	model := i.db.LookupDrive(id.Vendor, id.Product, id.Revision)
	serialUsable := model.SerialPageUsable()

	if res.SerialNumber != "" {
		if serialUsable {
			id.Serial = res.SerialNumber
			id.SerialSource = SerialSourceVPD
		} else {
			log.WithField("family", model.Family).Debug("Ignoring Unit Serial Number page of device")
		}
	}

	if id.Vendor == ataVendor && (id.Serial == "" || !serialUsable) {
		i.identifyATA(path, id, log)
	}

	model = i.db.LookupDrive(id.Vendor, id.Model(), id.Firmware())
	if model.Family != drivedb.DefaultFamily {
		id.Family = model.Family
	}
	id.Warning = model.WarningMsg

	if id.Warning != "" {
		log.WithField("family", model.Family).Warn(id.Warning)
	}

	return id, nil
}

// identifyATA fills in what ATA IDENTIFY DEVICE reports. Failure is not fatal.
func (i *Identifier) identifyATA(path string, id *Identity, log logrus.FieldLogger) {
	opts := i.cfg.ATAOptions()
	opts.Open = i.open

	ataID, err := ata.IdentifyPath(path, opts)
	if err != nil {
		log.WithError(err).Warn("ATA IDENTIFY DEVICE failed")
		id.Diagnostics = append(id.Diagnostics, err.Error())
		return
	}

	id.ATA = ataID
	if ataID.Serial != "" {
		id.Serial = ataID.Serial
		id.SerialSource = SerialSourceATA
	}
}

// IdentifyAll identifies several devices concurrently, each through its own device handle. The
// returned slice is in the order of paths; a device that failed has a nil entry, and the first
// failure is returned. Devices not yet started when ctx is done are skipped.
func (i *Identifier) IdentifyAll(ctx context.Context, paths []string) ([]*Identity, error) {
	ids := make([]*Identity, len(paths))
	g, ctx := errgroup.WithContext(ctx)

	for n, path := range paths {
		n, path := n, path

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			id, err := i.Identify(path)
			if err != nil {
				return err
			}

			ids[n] = id
			return nil
		})
	}

	return ids, g.Wait()
}

// Identify identifies the device at path with a new Identifier.
func Identify(path string, cfg *config.Config, log logrus.FieldLogger) (*Identity, error) {
	i, err := NewIdentifier(cfg, log)
	if err != nil {
		return nil, err
	}
	return i.Identify(path)
}
