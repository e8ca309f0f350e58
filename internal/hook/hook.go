package hook

import (
	"context"

	"go.uber.org/zap"

	"github.com/muurk/driveprobe/internal/backdoor"
	"github.com/muurk/driveprobe/internal/codebridge"
	"github.com/muurk/driveprobe/internal/logging"
)

const (
	// RedirectSize is the footprint of an installed hook: two words of
	// virtual address space at the hook site.
	RedirectSize = 2 * backdoor.WordSize

	// redirectLoadPC is ARM-state "ldr pc, [pc, #-4]", which branches to
	// the address stored in the following word. With its literal it forms
	// the 8-byte redirect.
	redirectLoadPC = 0xE51FF004

	// DefaultBody is the handler body used when the operator gives none.
	// default_hook traces the register file into the scratch pad in a
	// layout that's easy to inspect with rd/rdw.
	DefaultBody = "default_hook(regs)"
)

// Installer places call-out hooks into executing flash code. A hook is an
// 8-byte redirect written at the hook address via the overlay, pointing
// at a compiled handler staged in scratch RAM.
type Installer struct {
	dev     *backdoor.Device
	comp    codebridge.Compiler
	staging uint32
}

// NewInstaller creates an Installer. staging is the scratch virtual
// address used for the overlay write-then-remap step.
func NewInstaller(dev *backdoor.Device, comp codebridge.Compiler, staging uint32) *Installer {
	return &Installer{dev: dev, comp: comp, staging: staging}
}

// Install compiles body as a handler at handlerAddr, writes it into
// scratch RAM, and installs the 8-byte redirect at hookAddr through the
// overlay write-then-remap protocol, so the redirect appears to have
// always been in flash.
//
// Ordering keeps installation all-or-nothing up to the first device
// write: placement is validated first, then the handler is compiled; a
// failure in either leaves memory untouched.
//
// The redirect must not bisect an instruction at hookAddr, and execution
// may only enter the replaced block at its first byte. Neither is
// verified here; checking instruction boundaries is on the operator.
//
// Install clobbers the operator's overlay mapping.
func (in *Installer) Install(ctx context.Context, hookAddr uint32, body string, handlerAddr uint32, defines *codebridge.Defines) error {
	if err := checkPlacement(hookAddr); err != nil {
		return err
	}

	handler, err := in.comp.CompileBlock(ctx, body, defines, handlerAddr)
	if err != nil {
		return err
	}

	logging.Info("installing hook",
		zap.Uint32("hook", hookAddr),
		zap.Uint32("handler", handlerAddr),
		zap.Int("handler_bytes", len(handler)),
	)

	// Handler first; the redirect must never point at garbage
	if err := in.dev.PokeWords(handlerAddr, backdoor.WordsFromBytes(handler)); err != nil {
		return err
	}

	redirect := []uint32{redirectLoadPC, handlerAddr}
	return in.dev.WriteThenOverlay(hookAddr, redirect, in.staging)
}

func checkPlacement(hookAddr uint32) error {
	if hookAddr%backdoor.WordSize != 0 {
		return &PlacementError{Address: hookAddr, Reason: "hook address must be word aligned"}
	}
	if hookAddr+RedirectSize > backdoor.OverlayLimit {
		return &PlacementError{Address: hookAddr,
			Reason: "redirect extends past the overlay's 8MB window"}
	}
	return nil
}
