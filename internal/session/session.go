package session

import (
	"context"

	"github.com/muurk/driveprobe/internal/backdoor"
	"github.com/muurk/driveprobe/internal/codebridge"
	"github.com/muurk/driveprobe/internal/config"
	"github.com/muurk/driveprobe/internal/hook"
)

// HandlerOffset is where injected routines live relative to the scratch
// pad base, leaving the first 0x100 bytes for result slots and traces.
const HandlerOffset = 0x100

// Session is one operator's connection to one drive. It owns everything
// the shell used to keep in globals: the device, the definition table,
// and the r0/r1 register pair that injected code reads and writes.
//
// Sessions are single-threaded by design; the device has no notion of
// concurrent callers.
type Session struct {
	Dev      *backdoor.Device
	Compiler codebridge.Compiler
	Defines  *codebridge.Defines

	// R0 and R1 persist across evaluations so one routine's output can
	// feed the next one's input.
	R0 uint32
	R1 uint32

	cfg config.Config
}

// New creates a session over an open device.
func New(dev *backdoor.Device, comp codebridge.Compiler, cfg config.Config) *Session {
	return &Session{
		Dev:      dev,
		Compiler: comp,
		Defines:  codebridge.NewDefines(),
		cfg:      cfg,
	}
}

// HandlerAddress is the default load address for injected routines.
func (s *Session) HandlerAddress() uint32 {
	return s.cfg.ScratchPad + HandlerOffset
}

// EvalExpression compiles a C++-subset expression against the definition
// table, injects it into scratch RAM, runs it on the target, and returns
// its 32-bit value.
func (s *Session) EvalExpression(ctx context.Context, src string) (uint32, error) {
	addr := s.HandlerAddress()
	code, err := s.Compiler.CompileExpression(ctx, src, s.Defines, addr)
	if err != nil {
		return 0, err
	}
	if err := s.Dev.PokeWords(addr, backdoor.WordsFromBytes(code)); err != nil {
		return 0, err
	}
	r0, _, err := s.Dev.Call(addr, 0)
	return r0, err
}

// EvalAssembly assembles a one-liner, injects it, and runs it with the
// session's R0 as input. The routine's r0 and r1 are stored back into
// the session and returned.
func (s *Session) EvalAssembly(ctx context.Context, src string) (uint32, uint32, error) {
	addr := s.HandlerAddress()
	code, err := s.Compiler.Assemble(ctx, src, s.Defines, addr)
	if err != nil {
		return 0, 0, err
	}
	if err := s.Dev.PokeWords(addr, backdoor.WordsFromBytes(code)); err != nil {
		return 0, 0, err
	}
	r0, r1, err := s.Dev.Call(addr, s.R0)
	if err != nil {
		return 0, 0, err
	}
	s.R0, s.R1 = r0, r1
	return r0, r1, nil
}

// InstallHook installs a live patch hook at hookAddr with the given
// handler body. An empty body uses the default tracing handler; a zero
// handlerAddr uses the session's default scratch slot.
//
// The overlay mapping is volatile across this call.
func (s *Session) InstallHook(ctx context.Context, hookAddr uint32, body string, handlerAddr uint32) error {
	if body == "" {
		body = hook.DefaultBody
	}
	if handlerAddr == 0 {
		handlerAddr = s.HandlerAddress()
	}
	in := hook.NewInstaller(s.Dev, s.Compiler, s.cfg.StagingAddress)
	return in.Install(ctx, hookAddr, body, handlerAddr, s.Defines)
}

// WriteAssembly assembles src at addr, exactly as written, and pokes the
// result there. addr must be writable RAM; see WriteAssemblyOverlay for
// patching flash.
func (s *Session) WriteAssembly(ctx context.Context, addr uint32, src string) error {
	code, err := s.Compiler.AssembleRaw(ctx, src, s.Defines, addr)
	if err != nil {
		return err
	}
	return s.Dev.PokeWords(addr, backdoor.WordsFromBytes(code))
}

// WriteAssemblyOverlay assembles src at addr and installs the result
// through the overlay write-then-remap protocol, faking an assembly
// patch into flash. The overlay mapping is volatile across this call.
func (s *Session) WriteAssemblyOverlay(ctx context.Context, addr uint32, src string) error {
	code, err := s.Compiler.AssembleRaw(ctx, src, s.Defines, addr)
	if err != nil {
		return err
	}
	return s.WriteThenOverlay(addr, backdoor.WordsFromBytes(code))
}

// WriteThenOverlay fakes a write to immutable memory at target using the
// session's configured staging address.
func (s *Session) WriteThenOverlay(target uint32, words []uint32) error {
	return s.Dev.WriteThenOverlay(target, words, s.cfg.StagingAddress)
}

// Close releases the underlying transport.
func (s *Session) Close() error {
	return s.Dev.Transport().Close()
}
