// Package scsi is the transport layer for talking to the drive.
//
// The entire wire contract with the device is a 12-byte command descriptor
// block plus a requested data-in length. Everything above this package
// (memory access, overlay moves, hook installs) reduces to that one
// primitive, exposed as the Transport interface.
//
// Two implementations exist: SGDevice drives real hardware through the
// Linux SCSI generic (sg) passthrough ioctl, and the sim package provides
// an in-memory drive for tests and dry runs.
//
// CDB multi-byte fields are big-endian per SCSI convention. Data payloads
// returned by the backdoor are little-endian, matching the drive's ARM
// core; decoding those belongs to package backdoor, not here.
package scsi
