package backdoor

import (
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/muurk/driveprobe/internal/logging"
)

// The overlay is a single relocatable block of RAM the hardware can map
// over any word-aligned range in the first 8MB of virtual address space.
// Mapping it on top of flash aliases writable RAM over read-only memory,
// which is how every "write to flash" in this tool actually works.
//
// One mapping exists per device. Setting a new one atomically replaces
// the old one in a single device-level operation; there is never a window
// where a partial mapping is visible to the executing target.

// OverlayGet returns the current overlay mapping. An unmapped overlay
// reads back as (0, 0).
func (d *Device) OverlayGet() (base, wordcount uint32, err error) {
	data, err := d.in(SubOverlayGet, 0, 0, 0, 2*WordSize)
	if err != nil {
		return 0, 0, &MemoryAccessError{Op: "overlay get", Err: err}
	}
	return binary.LittleEndian.Uint32(data[0:4]), binary.LittleEndian.Uint32(data[4:8]), nil
}

// OverlaySet maps the overlay at base for wordcount words, replacing any
// previous mapping in one command.
func (d *Device) OverlaySet(base, wordcount uint32) error {
	if err := checkOverlay(base, wordcount); err != nil {
		return err
	}
	if _, err := d.in(SubOverlaySet, base, wordcount, 0, WordSize); err != nil {
		return &MemoryAccessError{Op: "overlay set", Address: base,
			Size: wordcount * WordSize, Err: err}
	}
	logging.Info("overlay moved",
		zap.Uint32("base", base), zap.Uint32("wordcount", wordcount))
	return nil
}

// WriteThenOverlay stages words into the overlay at a scratch virtual
// address, then re-maps the overlay onto target in a single set. The
// effect is a write to otherwise immutable memory:
//
//  1. map the overlay at staging
//  2. poke the words there
//  3. re-map the overlay at target
//
// The ordering is mandatory. All pokes complete before the re-map, and
// the re-map is one command, so the executing target never observes a
// half-installed region.
//
// This clobbers whatever the operator had mapped; overlay state must be
// treated as volatile across this call.
func (d *Device) WriteThenOverlay(target uint32, words []uint32, staging uint32) error {
	n := uint32(len(words))
	if err := checkOverlay(target, n); err != nil {
		return err
	}
	if err := d.OverlaySet(staging, n); err != nil {
		return err
	}
	if err := d.PokeWords(staging, words); err != nil {
		return err
	}
	return d.OverlaySet(target, n)
}

func checkOverlay(base, wordcount uint32) error {
	if wordcount == 0 {
		return &OverlayStateError{Base: base, WordCount: wordcount,
			Reason: "wordcount must be nonzero"}
	}
	if base%WordSize != 0 {
		return &OverlayStateError{Base: base, WordCount: wordcount,
			Reason: "base must be word aligned"}
	}
	// Bound wordcount before multiplying; the size product must not wrap
	if wordcount > OverlayLimit/WordSize ||
		base >= OverlayLimit || base+wordcount*WordSize > OverlayLimit {
		return &OverlayStateError{Base: base, WordCount: wordcount,
			Reason: "mapping extends past the first 8MB"}
	}
	return nil
}
