package scsi

import (
	"bytes"
	"testing"
)

func TestBlockRead(t *testing.T) {
	cdb := BlockRead(0x12345678, 0x20)

	want := CDB{0xA8, 0x00, 0x12, 0x34, 0x56, 0x78, 0x00, 0x00, 0x00, 0x20, 0x00, 0x00}
	if cdb != want {
		t.Errorf("cdb = % x, want % x", cdb[:], want[:])
	}
}

func TestEject(t *testing.T) {
	cdb := Eject()
	if cdb[0] != OpcodeStartStop {
		t.Errorf("opcode = %02x, want %02x", cdb[0], OpcodeStartStop)
	}
	if cdb[4] != 0x02 {
		t.Errorf("LoEj byte = %02x, want 02", cdb[4])
	}
}

func TestRequestSense(t *testing.T) {
	cdb := RequestSense()
	if cdb[0] != OpcodeVendorSense {
		t.Errorf("opcode = %02x, want %02x", cdb[0], OpcodeVendorSense)
	}
	if cdb[4] != SenseLength {
		t.Errorf("length byte = %02x, want %02x", cdb[4], SenseLength)
	}
}

func TestFromBytes(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		wantErr bool
	}{
		{
			name: "short command is zero padded",
			raw:  []byte{0x1b, 0x00, 0x00, 0x00, 0x02},
		},
		{
			name: "full length",
			raw:  bytes.Repeat([]byte{0xAA}, CDBLength),
		},
		{
			name:    "too long",
			raw:     bytes.Repeat([]byte{0xAA}, CDBLength+1),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cdb, err := FromBytes(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !bytes.Equal(cdb[:len(tt.raw)], tt.raw) {
				t.Errorf("cdb = % x, want prefix % x", cdb[:], tt.raw)
			}
			for _, b := range cdb[len(tt.raw):] {
				if b != 0 {
					t.Errorf("padding not zero: % x", cdb[:])
					break
				}
			}
		})
	}
}
