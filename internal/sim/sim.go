package sim

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/muurk/driveprobe/internal/backdoor"
	"github.com/muurk/driveprobe/internal/scsi"
)

const (
	// AddressSpace is the extent of the simulated controller's memory.
	// Wide enough to cover the default scratch pad at 0x1e00000.
	AddressSpace = 0x2000000

	// FlashEnd bounds the read-only flash region [0, FlashEnd). Pokes
	// into this range are silently dropped, like the real part: the only
	// way to change what a flash address reads back is the overlay.
	FlashEnd = 0x200000

	// DiscBlocks is the size of the simulated disc image, in 2 KB blocks.
	DiscBlocks = 16
)

// Drive is an in-memory stand-in for the real hardware, implementing
// scsi.Transport. It models the flat address space, the read-only flash
// region, the movable RAM overlay with content that survives re-mapping,
// and the firmware's bulk-fill and call-gate subops.
//
// Drive is safe for concurrent use so tests can mutate memory from the
// "target side" while a watch loop reads it, the way the real drive's
// firmware keeps running underneath the operator.
type Drive struct {
	mu sync.Mutex

	mem  []byte
	disc []byte

	// overlay mapping and its backing RAM; content persists across
	// re-maps, which is what makes write-then-overlay work
	ovlBase  uint32
	ovlCount uint32
	ovlData  []byte

	// CallFunc, when set, handles SubCall commands. It receives the
	// entry address and inbound r0 and returns outbound r0 and r1.
	// When nil, calls return (r0, 0) untouched.
	CallFunc func(entry, r0 uint32) (uint32, uint32)

	ejects int
	resets int
}

// New returns a Drive with zeroed memory and no overlay mapped.
func New() *Drive {
	return &Drive{
		mem:  make([]byte, AddressSpace),
		disc: make([]byte, DiscBlocks*scsi.BlockSize),
	}
}

// LoadFlash copies image into the flash region at offset, bypassing the
// read-only rule. Test setup only.
func (d *Drive) LoadFlash(offset uint32, image []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.mem[offset:], image)
}

// WriteRAM mutates memory from the target's side, the way running
// firmware would. Overlay aliasing applies; the flash rule does not.
func (d *Drive) WriteRAM(addr uint32, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, b := range data {
		a := addr + uint32(i)
		if p := d.backing(a); p != nil {
			*p = b
		}
	}
}

// PeekRAM reads memory from the target's side, honoring overlay aliasing.
func (d *Drive) PeekRAM(addr uint32, size uint32) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, size)
	for i := range out {
		out[i] = d.readByte(addr + uint32(i))
	}
	return out
}

// Ejects reports how many eject commands the drive has received.
func (d *Drive) Ejects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ejects
}

// backing returns a pointer to the byte backing addr for writes: the
// overlay RAM when addr is inside the mapping, plain memory when the
// address is writable, nil when the write lands in flash and is dropped.
func (d *Drive) backing(addr uint32) *byte {
	if d.ovlCount > 0 && addr >= d.ovlBase && addr < d.ovlBase+d.ovlCount*backdoor.WordSize {
		return &d.ovlData[addr-d.ovlBase]
	}
	if addr < FlashEnd {
		return nil
	}
	if addr < AddressSpace {
		return &d.mem[addr]
	}
	return nil
}

func (d *Drive) readByte(addr uint32) byte {
	if d.ovlCount > 0 && addr >= d.ovlBase && addr < d.ovlBase+d.ovlCount*backdoor.WordSize {
		return d.ovlData[addr-d.ovlBase]
	}
	return d.mem[addr]
}

func (d *Drive) readWord(addr uint32) uint32 {
	var w [4]byte
	for i := range w {
		w[i] = d.readByte(addr + uint32(i))
	}
	return binary.LittleEndian.Uint32(w[:])
}

func (d *Drive) writeWord(addr, word uint32) {
	var w [4]byte
	binary.LittleEndian.PutUint32(w[:], word)
	for i, b := range w {
		if p := d.backing(addr + uint32(i)); p != nil {
			*p = b
		}
	}
}

func reject(cdb scsi.CDB, length uint32, format string, args ...any) error {
	return &scsi.TransportError{Op: "sim", CDB: cdb, Requested: length,
		Err: fmt.Errorf(format, args...)}
}

// In executes one command against the simulated drive.
func (d *Drive) In(cdb scsi.CDB, length uint32) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch cdb[0] {
	case backdoor.OpcodeBackdoor:
		return d.backdoorIn(cdb, length)

	case scsi.OpcodeBlockRead:
		lba := binary.BigEndian.Uint32(cdb[2:6])
		blocks := binary.BigEndian.Uint32(cdb[6:10])
		if lba+blocks > DiscBlocks {
			return nil, reject(cdb, length, "lba %x out of range", lba)
		}
		if length != blocks*scsi.BlockSize {
			return nil, reject(cdb, length, "length %x does not match %x blocks", length, blocks)
		}
		out := make([]byte, length)
		copy(out, d.disc[lba*scsi.BlockSize:])
		return out, nil

	case scsi.OpcodeStartStop:
		d.ejects++
		return nil, nil

	case scsi.OpcodeVendorSense:
		return make([]byte, scsi.SenseLength), nil
	}

	return nil, reject(cdb, length, "unsupported opcode %02x", cdb[0])
}

func (d *Drive) backdoorIn(cdb scsi.CDB, length uint32) ([]byte, error) {
	addr := binary.BigEndian.Uint32(cdb[2:6])
	arg := binary.BigEndian.Uint32(cdb[6:10])
	aux := cdb[10]

	echo := func(word uint32) ([]byte, error) {
		out := make([]byte, backdoor.WordSize)
		binary.LittleEndian.PutUint32(out, word)
		return out, nil
	}

	// Range checks run in uint64; uint32 sums wrap for addresses near
	// the top and would index past the backing slice
	switch cdb[1] {
	case backdoor.SubPeek:
		if uint64(addr)+backdoor.WordSize > AddressSpace {
			return nil, reject(cdb, length, "peek address %08x out of range", addr)
		}
		return echo(d.readWord(addr))

	case backdoor.SubPoke:
		if uint64(addr)+backdoor.WordSize > AddressSpace {
			return nil, reject(cdb, length, "poke address %08x out of range", addr)
		}
		d.writeWord(addr, arg)
		return echo(arg)

	case backdoor.SubRead:
		if arg > backdoor.MaxReadChunk {
			return nil, reject(cdb, length, "read of %x bytes exceeds transfer limit", arg)
		}
		if uint64(addr)+uint64(arg) > AddressSpace {
			return nil, reject(cdb, length, "read %08x+%x out of range", addr, arg)
		}
		out := make([]byte, arg)
		for i := range out {
			out[i] = d.readByte(addr + uint32(i))
		}
		return out, nil

	case backdoor.SubFill:
		word := uint32(aux) | uint32(aux)<<8 | uint32(aux)<<16 | uint32(aux)<<24
		if uint64(addr)+uint64(arg)*backdoor.WordSize > AddressSpace {
			return nil, reject(cdb, length, "fill %08x+%x words out of range", addr, arg)
		}
		for i := uint32(0); i < arg; i++ {
			d.writeWord(addr+i*backdoor.WordSize, word)
		}
		return echo(word)

	case backdoor.SubOverlayGet:
		out := make([]byte, 2*backdoor.WordSize)
		binary.LittleEndian.PutUint32(out[0:4], d.ovlBase)
		binary.LittleEndian.PutUint32(out[4:8], d.ovlCount)
		return out, nil

	case backdoor.SubOverlaySet:
		if uint64(addr)+uint64(arg)*backdoor.WordSize > backdoor.OverlayLimit {
			return nil, reject(cdb, length, "overlay %08x+%x words outside first 8MB", addr, arg)
		}
		size := arg * backdoor.WordSize
		// Backing RAM content survives the move; only the mapping changes
		if uint32(len(d.ovlData)) < size {
			grown := make([]byte, size)
			copy(grown, d.ovlData)
			d.ovlData = grown
		}
		d.ovlBase = addr
		d.ovlCount = arg
		return echo(addr)

	case backdoor.SubCall:
		r0, r1 := arg, uint32(0)
		if d.CallFunc != nil {
			r0, r1 = d.CallFunc(addr, arg)
		}
		out := make([]byte, 2*backdoor.WordSize)
		binary.LittleEndian.PutUint32(out[0:4], r0)
		binary.LittleEndian.PutUint32(out[4:8], r1)
		return out, nil
	}

	return nil, reject(cdb, length, "unsupported backdoor subop %02x", cdb[1])
}

// Reset counts as a reopen; simulated state is untouched, like the real
// device, whose memory survives a host-side handle recycle.
func (d *Drive) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
	return nil
}

// Close is a no-op.
func (d *Drive) Close() error {
	return nil
}
