package scsi

import (
	"encoding/binary"
	"fmt"
)

const (
	// CDBLength is the fixed command descriptor block size used by the
	// drive's vendor firmware. Shorter commands are zero padded.
	CDBLength = 12

	// OpcodeBlockRead is the standard READ(12) opcode.
	OpcodeBlockRead = 0xA8

	// OpcodeStartStop is the START STOP UNIT opcode, used for eject.
	OpcodeStartStop = 0x1B

	// OpcodeVendorSense is the vendor request-sense variant.
	OpcodeVendorSense = 0x03

	// BlockSize is the transfer unit for block reads, in bytes.
	BlockSize = 2048
)

// CDB is a fixed-size SCSI command descriptor block.
type CDB [CDBLength]byte

// Transport issues a CDB to the device and returns the data-in payload.
//
// In must return exactly length bytes or fail with a *TransportError.
// No retries are performed at this layer; retry policy, if any, belongs
// to the caller.
type Transport interface {
	In(cdb CDB, length uint32) ([]byte, error)

	// Reset reopens the underlying connection to the device without
	// altering any other state.
	Reset() error

	Close() error
}

// BlockRead builds a READ(12) command for lba with a transfer length in
// 2 KB blocks.
//
// Layout (all fields big-endian):
//
//	[0]     0xA8      opcode
//	[1]     0x00      reserved
//	[2:6]   lba       logical block address
//	[6:10]  blocks    transfer length, in 2 KB blocks
func BlockRead(lba, blocks uint32) CDB {
	var cdb CDB
	cdb[0] = OpcodeBlockRead
	binary.BigEndian.PutUint32(cdb[2:6], lba)
	binary.BigEndian.PutUint32(cdb[6:10], blocks)
	return cdb
}

// Eject builds a START STOP UNIT command asking the drive to eject its disc.
func Eject() CDB {
	var cdb CDB
	cdb[0] = OpcodeStartStop
	cdb[4] = 0x02 // LoEj
	return cdb
}

// RequestSense builds the vendor request-sense command. The reply is
// SenseLength bytes.
func RequestSense() CDB {
	var cdb CDB
	cdb[0] = OpcodeVendorSense
	cdb[4] = SenseLength
	return cdb
}

// SenseLength is the data-in length for RequestSense.
const SenseLength = 0x20

// FromBytes builds a CDB from up to CDBLength raw bytes, zero padding the
// remainder. Used by the low-level "sc" escape hatch.
func FromBytes(raw []byte) (CDB, error) {
	var cdb CDB
	if len(raw) > CDBLength {
		return cdb, fmt.Errorf("cdb too long: %d bytes (max %d)", len(raw), CDBLength)
	}
	copy(cdb[:], raw)
	return cdb, nil
}
