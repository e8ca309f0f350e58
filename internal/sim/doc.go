// Package sim is an in-memory drive for tests and dry runs.
//
// Drive implements scsi.Transport and speaks the same backdoor protocol
// as the hardware: peek/poke, chunk-limited block reads, bulk fills, the
// movable RAM overlay, and the call gate. The flash region is read-only
// the way the real part is, so overlay tricks can be exercised honestly,
// and WriteRAM/PeekRAM let a test play the role of the firmware that
// never stops running underneath the operator.
package sim
