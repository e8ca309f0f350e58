package backdoor

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/driveprobe/internal/logging"
	"github.com/muurk/driveprobe/internal/scsi"
)

// Device is the memory-access view of the drive's embedded controller,
// built on the backdoor command channel. All operations are synchronous
// and blocking; the target keeps executing its own firmware the whole
// time, so nothing here is atomic with respect to the target's writes.
type Device struct {
	t scsi.Transport
}

// New wraps a transport in a Device.
func New(t scsi.Transport) *Device {
	return &Device{t: t}
}

// Transport exposes the underlying transport for raw SCSI escape hatches.
func (d *Device) Transport() scsi.Transport {
	return d.t
}

// in issues one backdoor command and returns its data-in payload.
func (d *Device) in(subop byte, addr, arg uint32, aux byte, length uint32) ([]byte, error) {
	return d.t.In(Command(subop, addr, arg, aux), length)
}

// Peek reads the 32-bit word at addr.
func (d *Device) Peek(addr uint32) (uint32, error) {
	data, err := d.in(SubPeek, addr, 0, 0, WordSize)
	if err != nil {
		return 0, &MemoryAccessError{Op: "peek", Address: addr, Err: err}
	}
	return binary.LittleEndian.Uint32(data), nil
}

// Poke writes word to addr. No read-back verification is performed.
func (d *Device) Poke(addr, word uint32) error {
	if _, err := d.in(SubPoke, addr, word, 0, WordSize); err != nil {
		return &MemoryAccessError{Op: "poke", Address: addr, Err: err}
	}
	return nil
}

// PokeWords writes words in ascending order starting at addr.
func (d *Device) PokeWords(addr uint32, words []uint32) error {
	for i, w := range words {
		if err := d.Poke(addr+uint32(i)*WordSize, w); err != nil {
			return err
		}
	}
	return nil
}

// ReadBlock reads size bytes starting at addr. Neither addr nor size need
// be word aligned; the read is chunked at the firmware's transfer limit.
func (d *Device) ReadBlock(addr, size uint32) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	if addr+size < addr {
		return nil, &MemoryAccessError{Op: "read", Address: addr, Size: size,
			Err: fmt.Errorf("address range wraps past 2^32")}
	}

	out := make([]byte, 0, size)
	for off := uint32(0); off < size; {
		chunk := size - off
		if chunk > MaxReadChunk {
			chunk = MaxReadChunk
		}
		data, err := d.in(SubRead, addr+off, chunk, 0, chunk)
		if err != nil {
			return nil, &MemoryAccessError{Op: "read", Address: addr + off, Size: chunk, Err: err}
		}
		out = append(out, data...)
		off += chunk
	}
	return out, nil
}

// ReadWords reads wordcount 32-bit words starting at addr.
func (d *Device) ReadWords(addr, wordcount uint32) ([]uint32, error) {
	if wordcount >= 1<<30 {
		return nil, &MemoryAccessError{Op: "read", Address: addr,
			Err: fmt.Errorf("word count %#x overflows the address space", wordcount)}
	}
	data, err := d.ReadBlock(addr, wordcount*WordSize)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, wordcount)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*WordSize:])
	}
	return words, nil
}

// PokeOR fetches the word at addr, ORs mask into it, and writes it back.
// Not atomic against the live target; single-operator model.
func (d *Device) PokeOR(addr, mask uint32) error {
	w, err := d.Peek(addr)
	if err != nil {
		return err
	}
	return d.Poke(addr, w|mask)
}

// PokeBIC fetches the word at addr, clears the mask bits, and writes it
// back ([mem] &= ~mask).
func (d *Device) PokeBIC(addr, mask uint32) error {
	w, err := d.Peek(addr)
	if err != nil {
		return err
	}
	return d.Poke(addr, w&^mask)
}

// Fill sets wordcount words starting at addr to pattern.
//
// Patterns made of one repeating byte go through the firmware's bulk fill
// in a single command; anything else falls back to per-word pokes. The two
// paths produce byte-identical memory.
func (d *Device) Fill(addr, pattern, wordcount uint32) error {
	if wordcount == 0 {
		return nil
	}
	// The end-of-range arithmetic is done in uint64; a uint32 product
	// would wrap for huge wordcounts and slip past the check
	if uint64(addr)+uint64(wordcount)*WordSize >= 1<<32 {
		return &MemoryAccessError{Op: "fill", Address: addr,
			Err: fmt.Errorf("address range wraps past 2^32")}
	}
	size := wordcount * WordSize

	if b, ok := repeatedByte(pattern); ok {
		if _, err := d.in(SubFill, addr, wordcount, b, WordSize); err != nil {
			return &MemoryAccessError{Op: "fill", Address: addr, Size: size, Err: err}
		}
		return nil
	}

	logging.Debug("fill falling back to per-word pokes",
		zap.Uint32("pattern", pattern), zap.Uint32("wordcount", wordcount))
	for i := uint32(0); i < wordcount; i++ {
		if err := d.Poke(addr+i*WordSize, pattern); err != nil {
			return err
		}
	}
	return nil
}

// Call branches the target into the routine at entry with r0 as its first
// argument, and returns the routine's r0 and r1.
func (d *Device) Call(entry, r0 uint32) (uint32, uint32, error) {
	data, err := d.in(SubCall, entry, r0, 0, 2*WordSize)
	if err != nil {
		return 0, 0, &MemoryAccessError{Op: "call", Address: entry, Err: err}
	}
	return binary.LittleEndian.Uint32(data[0:4]), binary.LittleEndian.Uint32(data[4:8]), nil
}

// Reset reopens the connection to the device. Overlay state and target
// memory are untouched.
func (d *Device) Reset() error {
	return d.t.Reset()
}

// Eject asks the drive to eject its disc.
func (d *Device) Eject() error {
	_, err := d.t.In(scsi.Eject(), 0)
	return err
}

// RequestSense issues the vendor request-sense command and returns the
// raw sense payload.
func (d *Device) RequestSense() ([]byte, error) {
	return d.t.In(scsi.RequestSense(), scsi.SenseLength)
}

// BlockRead reads 2 KB disc blocks starting at lba through the
// standard READ(12) path, not the backdoor.
func (d *Device) BlockRead(lba, blocks uint32) ([]byte, error) {
	return d.t.In(scsi.BlockRead(lba, blocks), blocks*scsi.BlockSize)
}
