// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswarbrick/devident/device"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "devident.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	assert := assert.New(t)

	cfg := Default()
	assert.Equal(20*time.Second, cfg.Timeout)
	assert.Equal(20*time.Second, cfg.SerialTimeout)
	assert.Equal(5*time.Second, cfg.SerialProbeTimeout)
	assert.Equal(20*time.Second, cfg.ATATimeout)
	assert.False(cfg.ReadWrite)
	assert.Equal(device.ReadOnly, cfg.Mode())
	assert.Equal("info", cfg.LogLevel)
	assert.Equal(LogFormatText, cfg.LogFormat)
	assert.NoError(cfg.Validate())
}

func TestLoad(t *testing.T) {
	assert := assert.New(t)

	cfg, err := Load(writeConfig(t, `
timeout: 30s
serial_probe_timeout: 2s
read_write: true
drivedb: /etc/devident/drivedb.yaml
log_format: json
`))
	require.NoError(t, err)

	assert.Equal(30*time.Second, cfg.Timeout)
	assert.Equal(20*time.Second, cfg.SerialTimeout)
	assert.Equal(2*time.Second, cfg.SerialProbeTimeout)
	assert.Equal(device.ReadWrite, cfg.Mode())
	assert.Equal("/etc/devident/drivedb.yaml", cfg.DriveDb)
	assert.Equal(LogFormatJSON, cfg.LogFormat)
	assert.Equal("info", cfg.LogLevel)

	log := logrus.New()
	opts := cfg.InquiryOptions(log)
	assert.Equal(device.ReadWrite, opts.Mode)
	assert.Equal(30*time.Second, opts.Timeout)
	assert.Equal(20*time.Second, opts.SerialTimeout)
	assert.Equal(2*time.Second, opts.SerialProbeTimeout)
	assert.Same(log, opts.Log)

	ataOpts := cfg.ATAOptions()
	assert.Equal(device.ReadWrite, ataOpts.Mode)
	assert.Equal(20*time.Second, ataOpts.Timeout)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadInvalid(t *testing.T) {
	for name, content := range map[string]string{
		"negative timeout": "timeout: -1s\n",
		"bad duration":     "timeout: soon\n",
		"unknown key":      "timeuot: 1s\n",
		"bad log level":    "log_level: chatty\n",
		"bad log format":   "log_format: xml\n",
	} {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, content))
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
