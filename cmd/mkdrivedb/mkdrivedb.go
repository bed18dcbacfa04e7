// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Smartmontools drivedb.h database to devident YAML drive database converter.
package main

import (
	"io"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"

	"github.com/dswarbrick/devident/drivedb"
)

const (
	defaultDrivedbURL = "https://www.smartmontools.org/export/HEAD/trunk/smartmontools/drivedb.h"
)

func convert(src io.Reader, outFilename string) error {
	header, db := drivedb.ParseDrivedbH(src)
	logrus.Infof("Parsed drivedb.h - %d entries", db.Len())

	destFile, err := os.Create(outFilename)
	if err != nil {
		return errors.Wrap(err, "cannot create output")
	}

	defer destFile.Close()

	if _, err := io.WriteString(destFile, header); err != nil {
		return err
	}

	if err := db.Write(destFile); err != nil {
		return errors.Wrap(err, "error encoding yaml")
	}

	return destFile.Close()
}

func main() {
	var drivedbURL, inFilename, outFilename string

	app := cli.NewApp()
	app.Name = "mkdrivedb"
	app.Usage = "Convert the smartmontools drive database to a devident drive database"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "url",
			Value:       defaultDrivedbURL,
			Destination: &drivedbURL,
			Usage:       "Optional drivedb URL",
		},
		&cli.StringFlag{
			Name:        "in",
			Destination: &inFilename,
			Usage:       "Optional path to local drivedb.h",
		},
		&cli.StringFlag{
			Name:        "out",
			Value:       "drivedb.yaml",
			Destination: &outFilename,
			Usage:       "Output .yaml filename",
		},
	}

	app.Action = func(c *cli.Context) error {
		var reader io.Reader

		if inFilename != "" {
			f, err := os.Open(inFilename)
			if err != nil {
				return errors.Wrap(err, "cannot read drivedb")
			}

			defer f.Close()
			logrus.Infof("Reading from local file %s", f.Name())
			reader = f
		} else {
			resp, err := http.Get(drivedbURL)
			if err != nil {
				return errors.Wrap(err, "cannot fetch drivedb")
			}

			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return errors.Errorf("cannot fetch drivedb: %s", resp.Status)
			}

			logrus.Infof("Reading from fetched drivedb %s", drivedbURL)
			reader = resp.Body
		}

		if err := convert(reader, outFilename); err != nil {
			return err
		}

		logrus.Infof("Successfully wrote output to %s", outFilename)
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
