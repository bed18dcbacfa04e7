// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package device

import "github.com/pkg/errors"

// Failure classes shared by every device operation. Callers match them with errors.Is; the
// wrapped message carries the device path and the underlying errno.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrOpenFailed        = errors.New("cannot open device")
	ErrQueryFailed       = errors.New("device query failed")
	ErrUnsupportedDevice = errors.New("device does not support SCSI generic passthrough")
	ErrTransport         = errors.New("SG_IO transport error")
	ErrClosed            = errors.New("device handle is closed")
)
