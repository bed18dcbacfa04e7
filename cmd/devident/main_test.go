// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v2"

	"github.com/dswarbrick/devident"
	"github.com/dswarbrick/devident/config"
	"github.com/dswarbrick/devident/device"
	"github.com/dswarbrick/devident/scsi"
)

func runApp(t *testing.T, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer

	app := newApp(&stdout, &stderr)
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"devident", "--drivedb", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	return stdout.String(), err
}

func diskImage(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0600))
	return path
}

func TestSizeCommand(t *testing.T) {
	_, err := runApp(t, "size", filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, device.ErrOpenFailed)

	_, err = runApp(t, "size", diskImage(t))
	assert.ErrorIs(t, err, device.ErrQueryFailed)

	_, err = runApp(t, "size")
	assert.ErrorContains(t, err, "expected exactly one DEVICE argument")
}

func TestInquiryCommands(t *testing.T) {
	_, err := runApp(t, "inquiry", diskImage(t))
	assert.ErrorIs(t, err, device.ErrUnsupportedDevice)

	_, err = runApp(t, "--read-write", "serial", diskImage(t))
	assert.ErrorIs(t, err, device.ErrUnsupportedDevice)
}

func TestIdentifyCommand(t *testing.T) {
	path := diskImage(t)

	out, err := runApp(t, "identify", "--json", path)
	require.NoError(t, err)

	var ids []*devident.Identity
	require.NoError(t, json.Unmarshal([]byte(out), &ids))
	require.Len(t, ids, 1)
	assert.Equal(t, path, ids[0].Path)
	assert.Equal(t, int64(-1), ids[0].SizeBytes)

	out, err = runApp(t, "identify", path)
	require.NoError(t, err)
	assert.Contains(t, out, "DEVICE")
	assert.Contains(t, out, path)

	_, err = runApp(t, "identify")
	assert.Error(t, err)
}

func TestGlobalFlags(t *testing.T) {
	_, err := runApp(t, "--log-format", "xml", "size", diskImage(t))
	assert.ErrorIs(t, err, config.ErrInvalid)

	cfgFile := filepath.Join(t.TempDir(), "devident.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("timeout: -5s\n"), 0644))
	_, err = runApp(t, "--config", cfgFile, "size", diskImage(t))
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestSetupLogging(t *testing.T) {
	log := logrus.New()
	cfg := config.Default()
	cfg.LogLevel = "debug"
	cfg.LogFormat = config.LogFormatJSON

	require.NoError(t, setupLogging(log, cfg))
	assert.Equal(t, logrus.DebugLevel, log.Level)
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)

	cfg.LogLevel = "nonsense"
	assert.Error(t, setupLogging(log, cfg))
}

func TestCheckCaps(t *testing.T) {
	log, hook := logtest.NewNullLogger()

	if checkCaps(log) {
		assert.Empty(t, hook.Entries)
	} else {
		require.NotEmpty(t, hook.Entries)
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	}
}

func TestPrintOutput(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, printSize(&buf, "/dev/sdz", 500107862016))
	assert.Equal(t, "/dev/sdz: 500107862016 bytes (500 GB)\n", buf.String())

	buf.Reset()
	require.NoError(t, printInquiry(&buf, "/dev/sdz", &scsi.InquiryResult{
		VendorID: "ACME", ProductID: "MODEL123", SerialNumber: "SN123",
	}))
	assert.Contains(t, buf.String(), "Vendor:        ACME\n")
	assert.Contains(t, buf.String(), "Serial Number: SN123\n")

	buf.Reset()
	require.NoError(t, printIdentities(&buf, []*devident.Identity{
		{Path: "/dev/sdz", SizeBytes: -1, Vendor: "ACME", Product: "MODEL123", Warning: "known bad firmware"},
	}))
	assert.Contains(t, buf.String(), "/dev/sdz")
	assert.Contains(t, buf.String(), "/dev/sdz: WARNING: known bad firmware")
}
