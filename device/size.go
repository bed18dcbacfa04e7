// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package device

import (
	"math"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/dswarbrick/devident/ioctl"
)

var (
	// BLKGETSIZE64 is _IOR(0x12, 114, size_t) from <linux/fs.h>
	BLKGETSIZE64 = ioctl.Ior(0x12, 114, unsafe.Sizeof(uintptr(0)))

	openReadOnly = OpenFunc(ReadOnly)

	blkGetSize64 = func(h *Handle, size *uint64) error {
		return h.Ioctl(BLKGETSIZE64, uintptr(unsafe.Pointer(size)))
	}
)

// Size returns the capacity of a block device in bytes, as reported by the BLKGETSIZE64 ioctl.
// On failure it returns -1 together with ErrInvalidArgument, ErrOpenFailed or ErrQueryFailed.
// A failed query is not retried.
func Size(path string) (int64, error) {
	var size uint64

	err := Use(path, openReadOnly, func(h *Handle) error {
		if err := blkGetSize64(h, &size); err != nil {
			return errors.Wrapf(ErrQueryFailed, "BLKGETSIZE64 %s: %v", path, err)
		}
		return nil
	})
	if err != nil {
		return -1, err
	}

	if size > math.MaxInt64 {
		return -1, errors.Wrapf(ErrQueryFailed, "BLKGETSIZE64 %s: size %d overflows int64", path, size)
	}

	return int64(size), nil
}
