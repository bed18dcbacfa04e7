// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package config holds the settings shared by the devident commands.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/dswarbrick/devident/ata"
	"github.com/dswarbrick/devident/device"
	"github.com/dswarbrick/devident/scsi"
)

const (
	LogFormatText = "text"
	LogFormatJSON = "json"

	DefaultDriveDb = "/usr/share/devident/drivedb.yaml"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	// Timeout of the standard INQUIRY
	Timeout time.Duration `yaml:"timeout"`
	// Timeout of the VPD 0x80 INQUIRY issued as part of a full inquiry
	SerialTimeout time.Duration `yaml:"serial_timeout"`
	// Timeout of the stand-alone serial number probe
	SerialProbeTimeout time.Duration `yaml:"serial_probe_timeout"`
	// Timeout of ATA IDENTIFY DEVICE
	ATATimeout time.Duration `yaml:"ata_timeout"`

	// ReadWrite opens devices O_RDWR, which some drivers require for SG_IO
	ReadWrite bool `yaml:"read_write"`

	DriveDb   string `yaml:"drivedb"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Timeout:            scsi.DEFAULT_TIMEOUT * time.Millisecond,
		SerialTimeout:      scsi.DEFAULT_TIMEOUT * time.Millisecond,
		SerialProbeTimeout: scsi.SERIAL_PROBE_TIMEOUT * time.Millisecond,
		ATATimeout:         ata.DEFAULT_TIMEOUT * time.Millisecond,
		DriveDb:            DefaultDriveDb,
		LogLevel:           logrus.InfoLevel.String(),
		LogFormat:          LogFormatText,
	}
}

// Load reads a YAML configuration file over the defaults. An empty path, or a file that does not
// exist, yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	} else if err != nil {
		return nil, err
	}

	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrapf(ErrInvalid, "%s: %v", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.WithMessage(err, path)
	}

	return cfg, nil
}

// Validate rejects negative timeouts and unknown log settings, and replaces zero values with
// their defaults.
func (c *Config) Validate() error {
	def := Default()

	for _, t := range []struct {
		name string
		val  *time.Duration
		def  time.Duration
	}{
		{"timeout", &c.Timeout, def.Timeout},
		{"serial_timeout", &c.SerialTimeout, def.SerialTimeout},
		{"serial_probe_timeout", &c.SerialProbeTimeout, def.SerialProbeTimeout},
		{"ata_timeout", &c.ATATimeout, def.ATATimeout},
	} {
		if *t.val < 0 {
			return errors.Wrapf(ErrInvalid, "%s: negative duration %v", t.name, *t.val)
		} else if *t.val == 0 {
			*t.val = t.def
		}
	}

	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	} else if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(ErrInvalid, "log_level: %v", err)
	}

	switch c.LogFormat {
	case "":
		c.LogFormat = def.LogFormat
	case LogFormatText, LogFormatJSON:
	default:
		return errors.Wrapf(ErrInvalid, "log_format: unknown format %q", c.LogFormat)
	}

	return nil
}

// Mode returns the access mode devices should be opened with.
func (c *Config) Mode() device.Mode {
	if c.ReadWrite {
		return device.ReadWrite
	}
	return device.ReadOnly
}

// InquiryOptions returns the scsi.Inquirer settings of the configuration, logging to log.
func (c *Config) InquiryOptions(log logrus.FieldLogger) scsi.Options {
	return scsi.Options{
		Mode:               c.Mode(),
		Timeout:            c.Timeout,
		SerialTimeout:      c.SerialTimeout,
		SerialProbeTimeout: c.SerialProbeTimeout,
		Log:                log,
	}
}

// ATAOptions returns the ata.IdentifyPath settings of the configuration.
func (c *Config) ATAOptions() ata.Options {
	return ata.Options{
		Mode:    c.Mode(),
		Timeout: c.ATATimeout,
	}
}
