package sim

import (
	"testing"

	"github.com/muurk/driveprobe/internal/backdoor"
	"github.com/muurk/driveprobe/internal/scsi"
)

func TestUnknownOpcodeRejected(t *testing.T) {
	d := New()

	var cdb scsi.CDB
	cdb[0] = 0x42
	_, err := d.In(cdb, 4)
	if !scsi.IsTransportError(err) {
		t.Fatalf("err = %v, want TransportError", err)
	}
}

func TestUnknownSubopRejected(t *testing.T) {
	d := New()

	_, err := d.In(backdoor.Command(0x7F, 0, 0, 0), 4)
	if !scsi.IsTransportError(err) {
		t.Fatalf("err = %v, want TransportError", err)
	}
}

func TestHighAddressesRejectedNotWrapped(t *testing.T) {
	d := New()

	// Sums near the top of the 32-bit space must not wrap past the
	// range check and index the backing memory
	cmds := []scsi.CDB{
		backdoor.Command(backdoor.SubPeek, 0xFFFFFFFC, 0, 0),
		backdoor.Command(backdoor.SubPoke, 0xFFFFFFFC, 0x55, 0),
		backdoor.Command(backdoor.SubRead, 0xFFFFFFF0, 0x20, 0),
		backdoor.Command(backdoor.SubFill, 0xFFFFFFF0, 8, 0x55),
		backdoor.Command(backdoor.SubOverlaySet, 0x400000, 0x40000000, 0),
	}
	for _, cdb := range cmds {
		if _, err := d.In(cdb, 4); !scsi.IsTransportError(err) {
			t.Errorf("cdb % x: err = %v, want TransportError", cdb[:], err)
		}
	}
}

func TestReadTransferLimit(t *testing.T) {
	d := New()

	over := uint32(backdoor.MaxReadChunk + 1)
	_, err := d.In(backdoor.Command(backdoor.SubRead, FlashEnd, over, 0), over)
	if !scsi.IsTransportError(err) {
		t.Fatalf("oversized read accepted, want TransportError")
	}
}

func TestEjectCounted(t *testing.T) {
	d := New()

	if _, err := d.In(scsi.Eject(), 0); err != nil {
		t.Fatalf("eject: %v", err)
	}
	if _, err := d.In(scsi.Eject(), 0); err != nil {
		t.Fatalf("eject: %v", err)
	}
	if d.Ejects() != 2 {
		t.Errorf("ejects = %d, want 2", d.Ejects())
	}
}

func TestBlockReadBounds(t *testing.T) {
	d := New()

	data, err := d.In(scsi.BlockRead(0, 2), 2*scsi.BlockSize)
	if err != nil {
		t.Fatalf("block read: %v", err)
	}
	if len(data) != 2*scsi.BlockSize {
		t.Errorf("got %d bytes, want %d", len(data), 2*scsi.BlockSize)
	}

	if _, err := d.In(scsi.BlockRead(DiscBlocks, 1), scsi.BlockSize); err == nil {
		t.Error("read past the disc accepted, want error")
	}
}

func TestOverlayContentSurvivesRemap(t *testing.T) {
	d := New()

	set := func(base, count uint32) {
		t.Helper()
		if _, err := d.In(backdoor.Command(backdoor.SubOverlaySet, base, count, 0), 4); err != nil {
			t.Fatalf("overlay set: %v", err)
		}
	}

	set(0x500000, 1)
	if _, err := d.In(backdoor.Command(backdoor.SubPoke, 0x500000, 0xFEEDFACE, 0), 4); err != nil {
		t.Fatalf("poke: %v", err)
	}

	// Re-map over flash; the staged word must come along
	set(0x1000, 1)
	data, err := d.In(backdoor.Command(backdoor.SubPeek, 0x1000, 0, 0), 4)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	got := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	if got != 0xFEEDFACE {
		t.Errorf("word through overlay = %08x, want feedface", got)
	}
}
