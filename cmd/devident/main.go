// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// devident queries block devices for their physical identity.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"

	"github.com/dswarbrick/devident"
	"github.com/dswarbrick/devident/config"
	"github.com/dswarbrick/devident/device"
	"github.com/dswarbrick/devident/scsi"
)

const VERSION = "v0.1.0"

type app struct {
	cfg *config.Config
	log *logrus.Logger

	configFile  string
	logLevel    string
	logFormat   string
	drivedbFile string
	readWrite   bool
}

func setupLogging(log *logrus.Logger, cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	// Report nano timestamps
	if cfg.LogFormat == config.LogFormatJSON {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339Nano})
	}

	return nil
}

func (a *app) before(c *cli.Context) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}

	if c.IsSet("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if c.IsSet("drivedb") {
		cfg.DriveDb = a.drivedbFile
	}
	if c.IsSet("read-write") {
		cfg.ReadWrite = a.readWrite
	}
	if debug := os.Getenv("DEBUG_LOGGING"); debug == "true" {
		cfg.LogLevel = logrus.DebugLevel.String()
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := setupLogging(a.log, cfg); err != nil {
		return err
	}

	a.cfg = cfg
	a.log.WithField("config", a.configFile).Debugf("Configuration: %+v", *cfg)
	checkCaps(a.log)

	return nil
}

func devicePath(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", errors.Errorf("%s: expected exactly one DEVICE argument", c.Command.Name)
	}
	return c.Args().First(), nil
}

func (a *app) size(c *cli.Context) error {
	path, err := devicePath(c)
	if err != nil {
		return err
	}

	n, err := device.Size(path)
	if err != nil {
		return err
	}

	return printSize(c.App.Writer, path, n)
}

func (a *app) inquiry(c *cli.Context) error {
	path, err := devicePath(c)
	if err != nil {
		return err
	}

	res, err := scsi.NewInquirer(a.cfg.InquiryOptions(a.log)).Inquire(path)
	if err != nil {
		return err
	}

	return printInquiry(c.App.Writer, path, res)
}

func (a *app) serial(c *cli.Context) error {
	path, err := devicePath(c)
	if err != nil {
		return err
	}

	s, err := scsi.NewInquirer(a.cfg.InquiryOptions(a.log)).Serial(path)
	if errors.Is(err, scsi.ErrNoSerial) {
		return cli.Exit(err.Error(), 1)
	} else if err != nil {
		return err
	}

	_, err = io.WriteString(c.App.Writer, s+"\n")
	return err
}

func (a *app) identify(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("identify: expected at least one DEVICE argument")
	}

	i, err := devident.NewIdentifier(a.cfg, a.log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	ids, err := i.IdentifyAll(ctx, c.Args().Slice())
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return printJSON(c.App.Writer, ids)
	}
	return printIdentities(c.App.Writer, ids)
}

func newApp(stdout, stderr io.Writer) *cli.App {
	a := &app{log: logrus.New()}
	a.log.Out = stderr

	app := cli.NewApp()
	app.Name = "devident"
	app.Version = VERSION
	app.Usage = "Query block devices for capacity, vendor, product and serial number"
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			EnvVars:     []string{"DEVIDENT_CONFIG"},
			Destination: &a.configFile,
			Usage:       "YAML configuration file",
		},
		&cli.StringFlag{
			Name:        "log-level",
			Value:       logrus.InfoLevel.String(),
			Destination: &a.logLevel,
			Usage:       "Log level (trace, debug, info, warn, error)",
		},
		&cli.StringFlag{
			Name:        "log-format",
			Value:       config.LogFormatText,
			Destination: &a.logFormat,
			Usage:       "Log format (text, json)",
		},
		&cli.StringFlag{
			Name:        "drivedb",
			Value:       config.DefaultDriveDb,
			Destination: &a.drivedbFile,
			Usage:       "YAML drive database",
		},
		&cli.BoolFlag{
			Name:        "read-write",
			Destination: &a.readWrite,
			Usage:       "Open devices read-write, as some drivers require for SG_IO",
		},
	}
	app.Before = a.before
	app.Commands = []*cli.Command{
		{
			Name:      "size",
			Usage:     "Print the device capacity in bytes",
			ArgsUsage: "DEVICE",
			Action:    a.size,
		},
		{
			Name:      "inquiry",
			Usage:     "Print the SCSI INQUIRY vendor, product, revision and serial number",
			ArgsUsage: "DEVICE",
			Action:    a.inquiry,
		},
		{
			Name:      "serial",
			Usage:     "Print the Unit Serial Number VPD page",
			ArgsUsage: "DEVICE",
			Action:    a.serial,
		},
		{
			Name:      "identify",
			Usage:     "Identify devices using every available source",
			ArgsUsage: "DEVICE...",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "json",
					Usage: "Print JSON instead of a table",
				},
			},
			Action: a.identify,
		},
	}

	return app
}

func main() {
	app := newApp(os.Stdout, os.Stderr)

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		logrus.Fatal(err)
	}
}
