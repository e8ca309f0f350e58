package session_test

import (
	"context"
	"strings"
	"testing"

	"github.com/muurk/driveprobe/internal/backdoor"
	"github.com/muurk/driveprobe/internal/codebridge"
	"github.com/muurk/driveprobe/internal/config"
	"github.com/muurk/driveprobe/internal/session"
	"github.com/muurk/driveprobe/internal/sim"
)

type fakeCompiler struct {
	out      []byte
	err      error
	lastSrc  string
	lastAddr uint32
	rawCalls int
}

func (f *fakeCompiler) CompileExpression(ctx context.Context, src string, defines *codebridge.Defines, address uint32) ([]byte, error) {
	f.lastSrc, f.lastAddr = src, address
	return f.out, f.err
}

func (f *fakeCompiler) CompileBlock(ctx context.Context, src string, defines *codebridge.Defines, address uint32) ([]byte, error) {
	f.lastSrc, f.lastAddr = src, address
	return f.out, f.err
}

func (f *fakeCompiler) Assemble(ctx context.Context, src string, defines *codebridge.Defines, address uint32) ([]byte, error) {
	f.lastSrc, f.lastAddr = src, address
	return f.out, f.err
}

func (f *fakeCompiler) AssembleRaw(ctx context.Context, src string, defines *codebridge.Defines, address uint32) ([]byte, error) {
	f.lastSrc, f.lastAddr = src, address
	f.rawCalls++
	return f.out, f.err
}

func newSession(comp codebridge.Compiler) (*session.Session, *sim.Drive) {
	drive := sim.New()
	return session.New(backdoor.New(drive), comp, config.Default()), drive
}

func TestEvalExpression(t *testing.T) {
	comp := &fakeCompiler{out: []byte{0x1E, 0xFF, 0x2F, 0xE1}}
	s, drive := newSession(comp)

	// The call gate runs the injected routine; model it returning a value
	drive.CallFunc = func(entry, r0 uint32) (uint32, uint32) {
		if entry != s.HandlerAddress() {
			t.Errorf("call entry = %x, want %x", entry, s.HandlerAddress())
		}
		return 0xCAFE, 0
	}

	v, err := s.EvalExpression(context.Background(), "buffer[0] + 1")
	if err != nil {
		t.Fatalf("EvalExpression: %v", err)
	}
	if v != 0xCAFE {
		t.Errorf("value = %x, want cafe", v)
	}
	if comp.lastAddr != s.HandlerAddress() {
		t.Errorf("compiled at %x, want %x", comp.lastAddr, s.HandlerAddress())
	}

	// The compiled bytes were injected before the call
	got, err := s.Dev.ReadBlock(s.HandlerAddress(), 4)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	for i, b := range comp.out {
		if got[i] != b {
			t.Fatalf("injected byte %d = %02x, want %02x", i, got[i], b)
		}
	}
}

func TestEvalAssemblyRegisterPairPersists(t *testing.T) {
	comp := &fakeCompiler{out: []byte{0x01, 0x00, 0x80, 0xE2}}
	s, drive := newSession(comp)

	// Model "add r0, r0, #1" with r1 reporting the entry address
	drive.CallFunc = func(entry, r0 uint32) (uint32, uint32) {
		return r0 + 1, entry
	}

	s.R0 = 5
	r0, r1, err := s.EvalAssembly(context.Background(), "add r0, r0, #1")
	if err != nil {
		t.Fatalf("EvalAssembly: %v", err)
	}
	if r0 != 6 {
		t.Errorf("r0 = %d, want 6", r0)
	}
	if r1 != s.HandlerAddress() {
		t.Errorf("r1 = %x, want %x", r1, s.HandlerAddress())
	}

	// Outputs persist in the session and feed the next evaluation
	if s.R0 != 6 || s.R1 != s.HandlerAddress() {
		t.Errorf("session pair = (%x, %x)", s.R0, s.R1)
	}
	r0, _, err = s.EvalAssembly(context.Background(), "add r0, r0, #1")
	if err != nil {
		t.Fatalf("EvalAssembly: %v", err)
	}
	if r0 != 7 {
		t.Errorf("second r0 = %d, want 7", r0)
	}
}

func TestEvalExpressionCompileFailure(t *testing.T) {
	comp := &fakeCompiler{err: &codebridge.CodeError{Stage: "compile", Message: "error: 'buffr' was not declared"}}
	s, drive := newSession(comp)

	_, err := s.EvalExpression(context.Background(), "buffr[0]")
	if !codebridge.IsCodeError(err) {
		t.Fatalf("err = %v, want CodeError", err)
	}
	// Message is surfaced verbatim
	if got := err.Error(); !strings.Contains(got, "'buffr' was not declared") {
		t.Errorf("diagnostic not preserved: %q", got)
	}

	// Nothing was injected
	data := drive.PeekRAM(s.HandlerAddress(), 4)
	for i, b := range data {
		if b != 0 {
			t.Fatalf("scratch byte %d = %02x after failed compile", i, b)
		}
	}
}

func TestWriteAssembly(t *testing.T) {
	comp := &fakeCompiler{out: []byte{0x01, 0x10, 0xA0, 0xE3, 0x1E, 0xFF, 0x2F, 0xE1}}
	s, _ := newSession(comp)

	const addr = 0x210000
	if err := s.WriteAssembly(context.Background(), addr, "mov r1, #1\nbx lr"); err != nil {
		t.Fatalf("WriteAssembly: %v", err)
	}
	if comp.rawCalls != 1 {
		t.Errorf("raw assembly used %d times, want 1 (patches take no preamble)", comp.rawCalls)
	}
	if comp.lastAddr != addr {
		t.Errorf("assembled at %x, want %x", comp.lastAddr, addr)
	}

	got, err := s.Dev.ReadBlock(addr, uint32(len(comp.out)))
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	for i, b := range comp.out {
		if got[i] != b {
			t.Fatalf("byte %d = %02x, want %02x", i, got[i], b)
		}
	}
}

func TestWriteAssemblyOverlayPatchesFlash(t *testing.T) {
	comp := &fakeCompiler{out: []byte{0x00, 0xF0, 0x20, 0xE3, 0x00, 0xF0, 0x20, 0xE3}}
	s, drive := newSession(comp)

	const flashAddr = 0x0C9740
	drive.LoadFlash(flashAddr, []byte{0x53, 0x1C, 0x0B, 0x60, 0x16, 0x70, 0x0A, 0x68})

	if err := s.WriteAssemblyOverlay(context.Background(), flashAddr, "nop\nnop"); err != nil {
		t.Fatalf("WriteAssemblyOverlay: %v", err)
	}
	if comp.rawCalls != 1 {
		t.Errorf("raw assembly used %d times, want 1", comp.rawCalls)
	}

	// The flash address reads back the patch through the overlay
	got, err := s.Dev.ReadBlock(flashAddr, uint32(len(comp.out)))
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	for i, b := range comp.out {
		if got[i] != b {
			t.Fatalf("patched byte %d = %02x, want %02x", i, got[i], b)
		}
	}
}

func TestInstallHookDefaults(t *testing.T) {
	comp := &fakeCompiler{out: []byte{0xAA, 0xBB, 0xCC, 0xDD}}
	s, _ := newSession(comp)

	if err := s.InstallHook(context.Background(), 0x8564C, "", 0); err != nil {
		t.Fatalf("InstallHook: %v", err)
	}
	if comp.lastSrc != "default_hook(regs)" {
		t.Errorf("handler body = %q, want the default tracing handler", comp.lastSrc)
	}
	if comp.lastAddr != s.HandlerAddress() {
		t.Errorf("handler at %x, want default %x", comp.lastAddr, s.HandlerAddress())
	}
}
