//go:build linux

package scsi

import (
	"fmt"
	"os"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/muurk/driveprobe/internal/logging"
)

// Linux sg driver constants (scsi/sg.h)
const (
	sgIO           = 0x2285
	sgDxferNone    = -1
	sgDxferFromDev = -3
	sgInterfaceID  = 'S'

	// sgTimeoutMs is the per-command timeout handed to the sg driver.
	// Bulk fills can legitimately take a while on slow firmware.
	sgTimeoutMs = 10000

	senseBufLen = 32
)

// sgIOHdr mirrors struct sg_io_hdr from scsi/sg.h.
type sgIOHdr struct {
	interfaceID    int32
	dxferDirection int32
	cmdLen         uint8
	mxSBLen        uint8
	iovecCount     uint16
	dxferLen       uint32
	dxferp         uintptr
	cmdp           uintptr
	sbp            uintptr
	timeout        uint32
	flags          uint32
	packID         int32
	usrPtr         uintptr
	status         uint8
	maskedStatus   uint8
	msgStatus      uint8
	sbLenWr        uint8
	hostStatus     uint16
	driverStatus   uint16
	resid          int32
	duration       uint32
	info           uint32
}

// SGDevice is a Transport over the Linux SCSI generic (sg) passthrough
// interface.
type SGDevice struct {
	path string
	file *os.File
}

// OpenSG opens an sg passthrough device, e.g. "/dev/sg1".
func OpenSG(path string) (*SGDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &TransportError{Op: "open", Err: err}
	}
	logging.Info("device opened", zap.String("path", path))
	return &SGDevice{path: path, file: f}, nil
}

// In issues cdb and reads exactly length bytes of data-in.
func (d *SGDevice) In(cdb CDB, length uint32) ([]byte, error) {
	if d.file == nil {
		return nil, &TransportError{Op: "sg_io", CDB: cdb, Requested: length,
			Err: fmt.Errorf("device %s is closed", d.path)}
	}

	logging.LogCDB(cdb[:], length)

	buf := make([]byte, length)
	sense := make([]byte, senseBufLen)

	hdr := sgIOHdr{
		interfaceID:    sgInterfaceID,
		dxferDirection: sgDxferNone,
		cmdLen:         CDBLength,
		mxSBLen:        senseBufLen,
		cmdp:           uintptr(unsafe.Pointer(&cdb[0])),
		sbp:            uintptr(unsafe.Pointer(&sense[0])),
		timeout:        sgTimeoutMs,
	}
	if length > 0 {
		hdr.dxferDirection = sgDxferFromDev
		hdr.dxferLen = length
		hdr.dxferp = uintptr(unsafe.Pointer(&buf[0]))
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.file.Fd(), sgIO,
		uintptr(unsafe.Pointer(&hdr)))
	if errno != 0 {
		return nil, &TransportError{Op: "sg_io", CDB: cdb, Requested: length, Err: errno}
	}
	if hdr.status != 0 || hdr.hostStatus != 0 || hdr.driverStatus != 0 {
		return nil, &TransportError{Op: "sg_io", CDB: cdb, Requested: length,
			Err: fmt.Errorf("command rejected: status=%#x host=%#x driver=%#x",
				hdr.status, hdr.hostStatus, hdr.driverStatus)}
	}
	got := int(length) - int(hdr.resid)
	if got != int(length) {
		return nil, &TransportError{Op: "sg_io", CDB: cdb, Requested: length, Got: got}
	}

	logging.LogRawBytes("data in", buf)
	return buf, nil
}

// Reset closes and reopens the device node. Overlay state on the target is
// untouched; only the host-side handle is recycled.
func (d *SGDevice) Reset() error {
	if d.file != nil {
		_ = d.file.Close()
	}
	f, err := os.OpenFile(d.path, os.O_RDWR, 0)
	if err != nil {
		d.file = nil
		return &TransportError{Op: "reset", Err: err}
	}
	d.file = f
	logging.Info("device reset", zap.String("path", d.path))
	return nil
}

// Close releases the device node.
func (d *SGDevice) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
