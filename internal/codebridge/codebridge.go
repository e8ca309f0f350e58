package codebridge

import (
	"context"
	"errors"
)

// Compiler turns operator-supplied source into bytes the target can run.
// Implementations compile against the session's definition table and a
// load address, since the generated code is position-dependent.
//
// The core never interprets compiler diagnostics; failures surface as a
// *CodeError carrying the tool's message verbatim.
type Compiler interface {
	// CompileExpression builds a callable routine at address that
	// evaluates a C++-subset expression and returns its 32-bit value
	// in r0.
	CompileExpression(ctx context.Context, src string, defines *Defines, address uint32) ([]byte, error)

	// CompileBlock builds a callable routine at address from a C++-subset
	// statement block, e.g. a hook handler body.
	CompileBlock(ctx context.Context, src string, defines *Defines, address uint32) ([]byte, error)

	// Assemble builds raw instructions at address from assembly source,
	// wrapped in a preamble that saves every register except r0 and r1
	// so the pair can carry input and results.
	Assemble(ctx context.Context, src string, defines *Defines, address uint32) ([]byte, error)

	// AssembleRaw builds instructions at address exactly as written,
	// with no preamble. For patches spliced into existing code, where a
	// register save would corrupt the surrounding function.
	AssembleRaw(ctx context.Context, src string, defines *Defines, address uint32) ([]byte, error)
}

// CodeError represents a compilation or evaluation failure reported by
// the external toolchain. Message is the tool's output, unmodified.
type CodeError struct {
	// Stage is the phase that failed ("compile", "assemble", "link")
	Stage string
	// Message is the tool's human-readable diagnostic, verbatim
	Message string
	// Err is the underlying process error, if any
	Err error
}

func (e *CodeError) Error() string {
	if e.Message != "" {
		return "code " + e.Stage + " failed:\n" + e.Message
	}
	return "code " + e.Stage + " failed: " + e.Err.Error()
}

func (e *CodeError) Unwrap() error {
	return e.Err
}

// IsCodeError reports whether err is (or wraps) a *CodeError.
func IsCodeError(err error) bool {
	var ce *CodeError
	return errors.As(err, &ce)
}
