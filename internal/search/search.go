package search

import (
	"bytes"
	"fmt"

	"github.com/muurk/driveprobe/internal/backdoor"
)

// ContextBytes bounds the before/after context attached to each match.
// Context never reaches outside the originally fetched block.
const ContextBytes = 16

// Match is one occurrence of the pattern.
type Match struct {
	// Address is where the pattern begins
	Address uint32
	// Before and After are bounded slices of surrounding memory,
	// for display only
	Before []byte
	After  []byte
}

// Find scans [addr, addr+size) for every occurrence of pattern at any
// alignment, including overlapping ones, calling fn for each match in
// ascending address order. fn returning false stops the scan early.
//
// The region is fetched once up front; the scan itself touches no
// device state.
func Find(dev *backdoor.Device, addr, size uint32, pattern []byte, fn func(Match) bool) error {
	if len(pattern) == 0 {
		return fmt.Errorf("empty search pattern")
	}
	block, err := dev.ReadBlock(addr, size)
	if err != nil {
		return err
	}

	for off := 0; off+len(pattern) <= len(block); off++ {
		if !bytes.Equal(block[off:off+len(pattern)], pattern) {
			continue
		}
		before := off - ContextBytes
		if before < 0 {
			before = 0
		}
		after := off + len(pattern) + ContextBytes
		if after > len(block) {
			after = len(block)
		}
		m := Match{
			Address: addr + uint32(off),
			Before:  block[before:off],
			After:   block[off+len(pattern) : after],
		}
		if !fn(m) {
			return nil
		}
	}
	return nil
}

// FindAll collects every match in the region.
func FindAll(dev *backdoor.Device, addr, size uint32, pattern []byte) ([]Match, error) {
	var out []Match
	err := Find(dev, addr, size, pattern, func(m Match) bool {
		out = append(out, m)
		return true
	})
	return out, err
}
