//go:build !linux

package scsi

import "fmt"

// SGDevice is only available on Linux, where the kernel exposes the SCSI
// generic passthrough interface. On other platforms use the simulator.
type SGDevice struct{}

// OpenSG always fails on non-Linux platforms.
func OpenSG(path string) (*SGDevice, error) {
	return nil, &TransportError{Op: "open",
		Err: fmt.Errorf("sg passthrough is only supported on linux (wanted %s)", path)}
}

func (d *SGDevice) In(cdb CDB, length uint32) ([]byte, error) {
	return nil, &TransportError{Op: "sg_io", CDB: cdb, Requested: length,
		Err: fmt.Errorf("sg passthrough is only supported on linux")}
}

func (d *SGDevice) Reset() error { return nil }

func (d *SGDevice) Close() error { return nil }
