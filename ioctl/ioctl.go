// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Implementation of Linux kernel ioctl macros (<uapi/asm-generic/ioctl.h>)
// See https://www.kernel.org/doc/Documentation/ioctl/ioctl-number.txt

package ioctl

import "golang.org/x/sys/unix"

const (
	_IOC_NRBITS   = 8
	_IOC_TYPEBITS = 8
	_IOC_SIZEBITS = 14
	_IOC_DIRBITS  = 2

	_IOC_NRSHIFT   = 0
	_IOC_TYPESHIFT = _IOC_NRSHIFT + _IOC_NRBITS
	_IOC_SIZESHIFT = _IOC_TYPESHIFT + _IOC_TYPEBITS
	_IOC_DIRSHIFT  = _IOC_SIZESHIFT + _IOC_SIZEBITS

	_IOC_NONE  = 0
	_IOC_WRITE = 1
	_IOC_READ  = 2
)

func ioc(dir, t, nr, size uintptr) uintptr {
	return (dir << _IOC_DIRSHIFT) | (t << _IOC_TYPESHIFT) |
		(nr << _IOC_NRSHIFT) | (size << _IOC_SIZESHIFT)
}

// Io is the equivalent of the _IO() macro.
func Io(t, nr uintptr) uintptr {
	return ioc(_IOC_NONE, t, nr, 0)
}

// Ior is the equivalent of the _IOR() macro.
func Ior(t, nr, size uintptr) uintptr {
	return ioc(_IOC_READ, t, nr, size)
}

// Iow is the equivalent of the _IOW() macro.
func Iow(t, nr, size uintptr) uintptr {
	return ioc(_IOC_WRITE, t, nr, size)
}

// Iowr is the equivalent of the _IOWR() macro.
func Iowr(t, nr, size uintptr) uintptr {
	return ioc(_IOC_READ|_IOC_WRITE, t, nr, size)
}

// Ioctl executes an ioctl command on the specified file descriptor. A zero errno is reported as
// a nil error, anything else as the unix.Errno value.
func Ioctl(fd, cmd, ptr uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, cmd, ptr)
	if errno != 0 {
		return errno
	}
	return nil
}
