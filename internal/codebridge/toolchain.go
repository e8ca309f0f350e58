package codebridge

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/driveprobe/internal/logging"
)

// Config holds the configuration for the cross toolchain.
type Config struct {
	// Prefix is the toolchain triplet prefix, e.g. "arm-none-eabi-".
	// Binaries are resolved as Prefix + "gcc" etc. on PATH.
	Prefix string

	// Timeout is the maximum time to wait for any single tool.
	// Default: 30 seconds
	Timeout time.Duration

	// WorkDir is the working directory for temporary files.
	// Default: os.TempDir()
	WorkDir string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Prefix:  "arm-none-eabi-",
		Timeout: 30 * time.Second,
		WorkDir: os.TempDir(),
	}
}

// Toolchain is a Compiler backed by an ARM cross toolchain invoked via
// os/exec. Source is rendered to a temporary file together with the
// definition table, compiled or assembled at the requested address, and
// flattened to raw bytes with objcopy.
type Toolchain struct {
	config Config
	logger *zap.Logger
}

// NewToolchain creates a toolchain compiler with the given configuration.
func NewToolchain(config Config) *Toolchain {
	if config.Prefix == "" {
		config.Prefix = DefaultConfig().Prefix
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.WorkDir == "" {
		config.WorkDir = DefaultConfig().WorkDir
	}
	return &Toolchain{config: config, logger: logging.GetLogger()}
}

// Compiler flags chosen for the drive's ARM9 core. Code must be
// freestanding: nothing from the firmware's runtime can be linked in.
var gccFlags = []string{
	"-std=c++11", "-nostdlib", "-nostartfiles", "-fno-exceptions",
	"-fno-rtti", "-fomit-frame-pointer", "-Os", "-march=armv5te",
}

// CompileExpression wraps src in a function returning its value in r0
// and compiles it at address.
func (t *Toolchain) CompileExpression(ctx context.Context, src string, defines *Defines, address uint32) ([]byte, error) {
	source := fmt.Sprintf(
		"%s\nextern \"C\" unsigned __attribute__((section(\".text.entry\"))) _entry(unsigned r0, unsigned* regs)\n{\n    return (unsigned)( %s );\n}\n",
		defines.Render(), strings.TrimSpace(src))
	return t.compile(ctx, source, address)
}

// CompileBlock wraps a statement block (e.g. a hook handler body) in a
// callable function and compiles it at address. The block sees the saved
// register file as uint32_t regs[].
func (t *Toolchain) CompileBlock(ctx context.Context, src string, defines *Defines, address uint32) ([]byte, error) {
	source := fmt.Sprintf(
		"%s\nextern \"C\" void __attribute__((section(\".text.entry\"))) _entry(unsigned r0, unsigned* regs)\n{\n%s;\n}\n",
		defines.Render(), src)
	return t.compile(ctx, source, address)
}

// Assemble builds raw instructions at address. A preamble saves every
// register except r0 and r1 so the pair carries input and results; ARM
// state is the default since code density matters less than having the
// whole instruction set.
func (t *Toolchain) Assemble(ctx context.Context, src string, defines *Defines, address uint32) ([]byte, error) {
	var b strings.Builder
	b.WriteString(".syntax unified\n.arm\n.global _entry\n_entry:\n")
	b.WriteString("push {r2-r12, lr}\n")
	b.WriteString(src)
	b.WriteString("\npop {r2-r12, lr}\nbx lr\n")
	return t.assemble(ctx, b.String(), address)
}

// AssembleRaw builds instructions at address with no preamble at all;
// the bytes land in memory exactly as written.
func (t *Toolchain) AssembleRaw(ctx context.Context, src string, defines *Defines, address uint32) ([]byte, error) {
	var b strings.Builder
	b.WriteString(".syntax unified\n.arm\n.global _entry\n_entry:\n")
	b.WriteString(src)
	b.WriteByte('\n')
	return t.assemble(ctx, b.String(), address)
}

func (t *Toolchain) compile(ctx context.Context, source string, address uint32) ([]byte, error) {
	dir, err := os.MkdirTemp(t.config.WorkDir, "driveprobe-cc-")
	if err != nil {
		return nil, &CodeError{Stage: "compile", Err: err}
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "expr.cpp")
	elfPath := filepath.Join(dir, "expr.elf")
	binPath := filepath.Join(dir, "expr.bin")

	if err := os.WriteFile(srcPath, []byte(source), 0o600); err != nil {
		return nil, &CodeError{Stage: "compile", Err: err}
	}

	t.logger.Debug("compiling on-target code",
		zap.Uint32("address", address),
		zap.Int("source_bytes", len(source)),
	)

	args := append([]string{}, gccFlags...)
	args = append(args,
		fmt.Sprintf("-Wl,-Ttext=0x%x", address),
		"-Wl,--entry=_entry",
		"-o", elfPath, srcPath,
	)
	if err := t.run(ctx, "compile", t.config.Prefix+"gcc", args...); err != nil {
		return nil, err
	}
	if err := t.run(ctx, "link", t.config.Prefix+"objcopy", "-O", "binary", elfPath, binPath); err != nil {
		return nil, err
	}

	bin, err := os.ReadFile(binPath)
	if err != nil {
		return nil, &CodeError{Stage: "link", Err: err}
	}
	return bin, nil
}

func (t *Toolchain) assemble(ctx context.Context, source string, address uint32) ([]byte, error) {
	dir, err := os.MkdirTemp(t.config.WorkDir, "driveprobe-as-")
	if err != nil {
		return nil, &CodeError{Stage: "assemble", Err: err}
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "code.S")
	objPath := filepath.Join(dir, "code.o")
	elfPath := filepath.Join(dir, "code.elf")
	binPath := filepath.Join(dir, "code.bin")

	if err := os.WriteFile(srcPath, []byte(source), 0o600); err != nil {
		return nil, &CodeError{Stage: "assemble", Err: err}
	}

	if err := t.run(ctx, "assemble", t.config.Prefix+"as", "-march=armv5te", "-o", objPath, srcPath); err != nil {
		return nil, err
	}
	if err := t.run(ctx, "link", t.config.Prefix+"ld",
		fmt.Sprintf("-Ttext=0x%x", address), "--entry=_entry", "-o", elfPath, objPath); err != nil {
		return nil, err
	}
	if err := t.run(ctx, "link", t.config.Prefix+"objcopy", "-O", "binary", elfPath, binPath); err != nil {
		return nil, err
	}

	bin, err := os.ReadFile(binPath)
	if err != nil {
		return nil, &CodeError{Stage: "link", Err: err}
	}
	return bin, nil
}

// run executes one tool with the configured timeout. A nonzero exit
// surfaces the tool's stderr verbatim as the CodeError message.
func (t *Toolchain) run(ctx context.Context, stage, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	t.logger.Debug("toolchain step",
		zap.String("tool", name),
		zap.Duration("elapsed", time.Since(start)),
	)
	if err != nil {
		return &CodeError{Stage: stage, Message: stderr.String(), Err: err}
	}
	return nil
}
