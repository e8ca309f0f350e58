package search_test

import (
	"bytes"
	"testing"

	"github.com/muurk/driveprobe/internal/backdoor"
	"github.com/muurk/driveprobe/internal/search"
	"github.com/muurk/driveprobe/internal/sim"
)

const ramBase = 0x230000

func newDevice() (*backdoor.Device, *sim.Drive) {
	drive := sim.New()
	return backdoor.New(drive), drive
}

func TestFindOverlappingMatches(t *testing.T) {
	dev, drive := newDevice()

	// AA AA AA contains AA AA twice, overlapping
	drive.WriteRAM(ramBase, []byte{0xAA, 0xAA, 0xAA})

	matches, err := search.FindAll(dev, ramBase, 3, []byte{0xAA, 0xAA})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].Address != ramBase || matches[1].Address != ramBase+1 {
		t.Errorf("matches at %x, %x; want %x, %x",
			matches[0].Address, matches[1].Address, ramBase, ramBase+1)
	}
}

func TestFindAnyAlignment(t *testing.T) {
	dev, drive := newDevice()

	region := make([]byte, 0x100)
	copy(region[0x33:], []byte{0xDE, 0xAD, 0xBE, 0xEF})
	drive.WriteRAM(ramBase, region)

	matches, err := search.FindAll(dev, ramBase, 0x100, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(matches) != 1 || matches[0].Address != ramBase+0x33 {
		t.Fatalf("matches = %+v, want one at %x", matches, ramBase+0x33)
	}
}

func TestFindContextStaysInBlock(t *testing.T) {
	dev, drive := newDevice()

	drive.WriteRAM(ramBase, []byte{0x99, 0x01, 0x02, 0x03, 0x99})

	// Match at the very start of the block: no before context available
	matches, err := search.FindAll(dev, ramBase, 5, []byte{0x99})
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}

	first := matches[0]
	if len(first.Before) != 0 {
		t.Errorf("before context at block start = % x, want empty", first.Before)
	}
	if !bytes.Equal(first.After, []byte{0x01, 0x02, 0x03, 0x99}) {
		t.Errorf("after context = % x", first.After)
	}

	last := matches[1]
	if len(last.After) != 0 {
		t.Errorf("after context at block end = % x, want empty", last.After)
	}
	if !bytes.Equal(last.Before, []byte{0x99, 0x01, 0x02, 0x03}) {
		t.Errorf("before context = % x", last.Before)
	}
}

func TestFindEmptyPattern(t *testing.T) {
	dev, _ := newDevice()

	if _, err := search.FindAll(dev, ramBase, 0x10, nil); err == nil {
		t.Fatal("empty pattern accepted, want error")
	}
}

func TestFindEarlyStop(t *testing.T) {
	dev, drive := newDevice()

	drive.WriteRAM(ramBase, bytes.Repeat([]byte{0x77}, 8))

	var seen int
	err := search.Find(dev, ramBase, 8, []byte{0x77}, func(search.Match) bool {
		seen++
		return seen < 3
	})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if seen != 3 {
		t.Errorf("callback ran %d times, want 3 (early stop)", seen)
	}
}
