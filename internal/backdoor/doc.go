// Package backdoor implements the drive's vendor memory-access protocol.
//
// The drive's firmware carries a vendor SCSI extension that exposes the
// embedded ARM controller's address space: word peek/poke, block reads,
// bulk fills, a movable RAM overlay, and a call gate for injected code.
// This package turns that narrow command/data-in primitive into the
// memory operations everything else is built on.
//
// # Memory Access
//
//	dev := backdoor.New(transport)
//	word, err := dev.Peek(0x04001000)
//	err = dev.Poke(0x04001000, 0x55555555)
//	data, err := dev.ReadBlock(0xc9720, 0x50)
//
// Reads are chunked at the firmware's transfer limit and need no
// alignment. Writes are word-granular with no read-back verification.
//
// # The Overlay
//
// A single relocatable RAM window can be mapped over any word-aligned
// range in the first 8MB. WriteThenOverlay uses it to fake writes to
// flash: stage words at a scratch virtual address, then re-map the
// window over the real target in one atomic command.
//
// The target never stops executing while any of this happens. The only
// atomicity guarantee is the one the hardware gives: an overlay set is a
// single operation. Everything else (read-modify-write, multi-word
// pokes) can interleave with the target's own stores.
package backdoor
