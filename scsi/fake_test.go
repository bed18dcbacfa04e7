// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package scsi

import (
	"errors"
	"sync"

	"github.com/dswarbrick/devident/device"
)

// fakeResponse scripts the outcome of one Execute call.
type fakeResponse struct {
	data  []byte
	info  uint32
	scsi  uint8
	host  uint16
	drv   uint16
	sense []byte
	err   error
	block chan struct{} // if set, Execute waits for it to be closed
}

// fakeTransport is a scripted Transport that records what it was asked to do.
type fakeTransport struct {
	version    int
	versionErr error
	responses  []fakeResponse
	executed   []*Command
	closed     int

	mu sync.Mutex // guards closed
}

func (f *fakeTransport) Version() (int, error) {
	return f.version, f.versionErr
}

func (f *fakeTransport) Execute(cmd *Command) error {
	i := len(f.executed)
	f.executed = append(f.executed, cmd)

	if i >= len(f.responses) {
		return errors.New("unscripted command")
	}

	r := f.responses[i]
	if r.block != nil {
		<-r.block
	}
	if r.err != nil {
		return r.err
	}

	n := copy(cmd.Data, r.data)
	cmd.Status = Status{
		ScsiStatus:   r.scsi,
		MaskedStatus: r.scsi >> 1,
		HostStatus:   r.host,
		DriverStatus: r.drv,
		Resid:        int32(len(cmd.Data) - n),
		Info:         r.info,
	}
	cmd.Status.SenseLen = uint8(copy(cmd.Sense, r.sense))

	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed++
	return nil
}

// fakeOpener records the transports handed out by its open function. Calls abandoned by
// InquireContext keep running in their own goroutine, so everything is guarded by mu.
type fakeOpener struct {
	mu     sync.Mutex
	opened []*fakeTransport
}

// list returns a snapshot of the transports opened so far.
func (o *fakeOpener) list() []*fakeTransport {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]*fakeTransport(nil), o.opened...)
}

// closed returns how often the i-th opened transport was closed, or -1 if it was never opened.
func (o *fakeOpener) closed(i int) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	if i >= len(o.opened) {
		return -1
	}

	f := o.opened[i]
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// opener returns an Options.Open serving a fresh copy of the script on every call, and the
// record of transports it handed out.
func opener(version int, responses ...fakeResponse) (func(string, device.Mode) (Transport, error), *fakeOpener) {
	o := &fakeOpener{}

	open := func(path string, mode device.Mode) (Transport, error) {
		if path == "" {
			return nil, device.ErrInvalidArgument
		}
		f := &fakeTransport{version: version, responses: responses}

		o.mu.Lock()
		o.opened = append(o.opened, f)
		o.mu.Unlock()
		return f, nil
	}

	return open, o
}

func standardResponse(vendor, product, revision string) []byte {
	b := make([]byte, INQ_MIN_REPLY_LEN)
	b[0] = 0x00 // direct access block device
	b[2] = 0x06 // SPC-4
	b[3] = 0x02
	b[4] = INQ_MIN_REPLY_LEN - 5
	copy(b[8:16], vendor)
	copy(b[16:32], product)
	copy(b[32:36], revision)
	return b
}

func serialResponse(serial string) []byte {
	b := make([]byte, 4+len(serial))
	b[1] = VPD_UNIT_SERIAL_NUMBER
	b[3] = byte(len(serial))
	copy(b[4:], serial)
	return b
}

// Fixed format sense: ILLEGAL REQUEST, INVALID FIELD IN CDB
var illegalRequestSense = []byte{0x70, 0, 0x05, 0, 0, 0, 0, 0x0a, 0, 0, 0, 0, 0x24, 0x00, 0, 0, 0, 0}

func cleanResponse(data []byte) fakeResponse {
	return fakeResponse{data: data}
}

func checkCondition() fakeResponse {
	return fakeResponse{
		info:  SG_INFO_CHECK,
		scsi:  0x02,
		drv:   0x08,
		sense: illegalRequestSense,
	}
}
