package backdoor

import (
	"encoding/binary"

	"github.com/muurk/driveprobe/internal/scsi"
)

// Backdoor wire protocol. Every command is a 12-byte CDB with the vendor
// opcode in byte 0 and a subop in byte 1; replies come back as SCSI data-in.
//
// CDB layout (multi-byte fields big-endian, per SCSI convention):
//
//	[0]     0xAC      vendor backdoor opcode
//	[1]     subop
//	[2:6]   address
//	[6:10]  argument
//	[10]    aux byte
//	[11]    0
//
// Data-in payloads are little-endian 32-bit words, matching the ARM core.
const (
	// OpcodeBackdoor is the vendor opcode carrying all backdoor subops.
	OpcodeBackdoor = 0xAC

	// SubPeek reads one word at address. Reply: 4 bytes.
	SubPeek = 0x01
	// SubPoke writes argument to address. Reply: 4 bytes (echo).
	SubPoke = 0x02
	// SubRead reads argument bytes starting at address. Reply: argument bytes.
	SubRead = 0x03
	// SubFill writes argument words of the aux byte pattern starting at
	// address. Reply: 4 bytes (echo). Orders of magnitude faster than
	// issuing per-word pokes.
	SubFill = 0x04
	// SubOverlayGet reports the current overlay mapping.
	// Reply: 8 bytes (base, wordcount).
	SubOverlayGet = 0x05
	// SubOverlaySet maps the RAM overlay at address for argument words,
	// atomically replacing the previous mapping. Reply: 4 bytes (echo).
	SubOverlaySet = 0x06
	// SubCall branches to address with r0 = argument and returns when the
	// routine does. Reply: 8 bytes (r0, r1).
	SubCall = 0x07
)

const (
	// WordSize is the memory word size of the target, in bytes.
	WordSize = 4

	// MaxReadChunk is the firmware's per-transfer limit for SubRead.
	// Larger reads are split into multiple commands.
	MaxReadChunk = 0x800

	// OverlayLimit bounds the virtual range the overlay can map into.
	// The hardware decodes only the first 8MB for the movable RAM window.
	OverlayLimit = 0x800000
)

// Command builds a backdoor CDB for the given subop.
func Command(subop byte, addr, arg uint32, aux byte) scsi.CDB {
	var cdb scsi.CDB
	cdb[0] = OpcodeBackdoor
	cdb[1] = subop
	binary.BigEndian.PutUint32(cdb[2:6], addr)
	binary.BigEndian.PutUint32(cdb[6:10], arg)
	cdb[10] = aux
	return cdb
}

// WordsFromBytes packs data into little-endian words for PokeWords,
// zero padding the tail to a word boundary.
func WordsFromBytes(data []byte) []uint32 {
	words := make([]uint32, (len(data)+WordSize-1)/WordSize)
	for i, b := range data {
		words[i/WordSize] |= uint32(b) << (8 * uint(i%WordSize))
	}
	return words
}

// repeatedByte reports whether all four bytes of word are the same, and
// returns that byte. Words like 0x55555555 qualify for the SubFill fast
// path; anything else falls back to per-word pokes.
func repeatedByte(word uint32) (byte, bool) {
	b := byte(word)
	if word == uint32(b)|uint32(b)<<8|uint32(b)<<16|uint32(b)<<24 {
		return b, true
	}
	return 0, false
}
