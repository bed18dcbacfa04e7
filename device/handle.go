// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package device manages raw block device handles and answers the questions that only need
// the block layer, such as the device capacity.
package device

import (
	"io"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/dswarbrick/devident/ioctl"
)

// Mode selects the access mode a device is opened with.
type Mode int

const (
	// ReadOnly is sufficient for BLKGETSIZE64 and, with most sd / sg drivers, for INQUIRY.
	ReadOnly Mode = iota
	// ReadWrite is required by some drivers before they accept SG_IO.
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "read-write"
	}
	return "read-only"
}

// Handle is an open OS descriptor for a raw block device. It is not safe for concurrent use and
// must not be used after Close.
type Handle struct {
	Path string
	Mode Mode
	fd   int
}

// Open opens the named device. O_NONBLOCK lets removable drives without media be opened.
func Open(path string, mode Mode) (*Handle, error) {
	if path == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "empty device path")
	}

	flags := unix.O_RDONLY
	if mode == ReadWrite {
		flags = unix.O_RDWR
	}

	fd, err := unix.Open(path, flags|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(ErrOpenFailed, "%s (%s): %v", path, mode, err)
	}

	return &Handle{Path: path, Mode: mode, fd: fd}, nil
}

// OpenFunc returns an opener suitable for Use.
func OpenFunc(mode Mode) func(string) (*Handle, error) {
	return func(path string) (*Handle, error) {
		return Open(path, mode)
	}
}

// Close releases the descriptor. Closing an already closed handle is a no-op.
func (h *Handle) Close() error {
	if h.fd < 0 {
		return nil
	}

	err := unix.Close(h.fd)
	h.fd = -1
	return err
}

// Closed reports whether the handle has been released.
func (h *Handle) Closed() bool {
	return h.fd < 0
}

// Ioctl issues an ioctl against the open descriptor.
func (h *Handle) Ioctl(cmd, ptr uintptr) error {
	if h.fd < 0 {
		return errors.Wrap(ErrClosed, h.Path)
	}
	return ioctl.Ioctl(uintptr(h.fd), cmd, ptr)
}

// Use acquires a resource with open, runs fn against it and releases it again on every exit
// path, including a panic inside fn. A close failure is reported only if fn succeeded.
func Use[T io.Closer](path string, open func(string) (T, error), fn func(T) error) (err error) {
	r, err := open(path)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()

	return fn(r)
}
