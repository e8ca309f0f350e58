package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/driveprobe/internal/backdoor"
	"github.com/muurk/driveprobe/internal/codebridge"
	"github.com/muurk/driveprobe/internal/config"
	"github.com/muurk/driveprobe/internal/scsi"
	"github.com/muurk/driveprobe/internal/search"
	"github.com/muurk/driveprobe/internal/session"
	"github.com/muurk/driveprobe/internal/sim"
	"github.com/muurk/driveprobe/internal/watch"
)

var (
	devicePath  string
	useSim      bool
	handlerAddr string
	logFile     string
	defClear    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&devicePath, "device", "", "sg device node (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&useSim, "sim", false, "use the built-in simulated drive")

	rootCmd.AddCommand(rdCmd, rdwCmd, wrCmd, wrfCmd, orrCmd, bicCmd, fillCmd,
		findCmd, watchCmd, ovlCmd, hookCmd, ecCmd, eaCmd, asmCmd, asmfCmd,
		defCmd, scCmd, scReadCmd, resetCmd, ejectCmd, senseCmd,
		configCmd, shellCmd)

	hookCmd.Flags().StringVar(&handlerAddr, "handler", "", "handler address (hex, default scratch pad + 100)")
	defCmd.Flags().BoolVar(&defClear, "clear", false, "remove all definitions")
	scReadCmd.Flags().StringVarP(&logFile, "file", "f", "", "also log binary data to a file")
}

// openSession builds a session from config and flags. The caller owns
// the returned session and must Close it.
func openSession() (*session.Session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if devicePath != "" {
		cfg.DevicePath = devicePath
	}

	var t scsi.Transport
	if useSim {
		t = sim.New()
	} else {
		t, err = scsi.OpenSG(cfg.DevicePath)
		if err != nil {
			return nil, err
		}
	}

	comp := codebridge.NewToolchain(codebridge.Config{Prefix: cfg.ToolchainPrefix})
	return session.New(backdoor.New(t), comp, cfg), nil
}

// withSession runs fn against a freshly opened session.
func withSession(fn func(*session.Session) error) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func parseHex(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad hex value %q", s)
	}
	return uint32(v), nil
}

func parseHexWords(args []string) ([]uint32, error) {
	words := make([]uint32, len(args))
	for i, a := range args {
		w, err := parseHex(a)
		if err != nil {
			return nil, err
		}
		words[i] = w
	}
	return words, nil
}

func parseHexBytes(args []string) ([]byte, error) {
	out := make([]byte, len(args))
	for i, a := range args {
		v, err := parseHex(a)
		if err != nil {
			return nil, err
		}
		if v > 0xFF {
			return nil, fmt.Errorf("%q does not fit in a byte", a)
		}
		out[i] = byte(v)
	}
	return out, nil
}

var rdCmd = &cobra.Command{
	Use:   "rd <address> [size]",
	Short: "Read a memory block and hex dump it",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseHex(args[0])
		if err != nil {
			return err
		}
		size := uint32(0x100)
		if len(args) == 2 {
			if size, err = parseHex(args[1]); err != nil {
				return err
			}
		}
		return withSession(func(s *session.Session) error {
			return runRd(s, addr, size)
		})
	},
}

func runRd(s *session.Session, addr, size uint32) error {
	data, err := s.Dev.ReadBlock(addr, size)
	if err != nil {
		return err
	}
	fmt.Print(hexDump(addr, data))
	return nil
}

var rdwCmd = &cobra.Command{
	Use:   "rdw <address> [wordcount]",
	Short: "Read a memory block, displaying the result as words",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseHex(args[0])
		if err != nil {
			return err
		}
		count := uint32(0x100)
		if len(args) == 2 {
			if count, err = parseHex(args[1]); err != nil {
				return err
			}
		}
		return withSession(func(s *session.Session) error {
			return runRdw(s, addr, count)
		})
	},
}

func runRdw(s *session.Session, addr, count uint32) error {
	words, err := s.Dev.ReadWords(addr, count)
	if err != nil {
		return err
	}
	fmt.Print(wordDump(addr, words))
	return nil
}

var wrCmd = &cobra.Command{
	Use:   "wr <address> <word>...",
	Short: "Write hex words into memory",
	Args:  cobra.MinimumNArgs(2),
	RunE:  wordsRunE(runWr),
}

func runWr(s *session.Session, addr uint32, words []uint32) error {
	return s.Dev.PokeWords(addr, words)
}

var wrfCmd = &cobra.Command{
	Use:   "wrf <address> <word>...",
	Short: "Write hex words through the overlay, faking a write to flash",
	Long: `Write hex words into the RAM overlay region, then instantly move the
overlay into place over the target address. A sneaky trick that looks
like a temporary way to write to flash.`,
	Args: cobra.MinimumNArgs(2),
	RunE: wordsRunE(runWrf),
}

func runWrf(s *session.Session, addr uint32, words []uint32) error {
	return s.WriteThenOverlay(addr, words)
}

var orrCmd = &cobra.Command{
	Use:   "orr <address> <word>...",
	Short: "Read/modify/write words, [mem] |= arg",
	Args:  cobra.MinimumNArgs(2),
	RunE:  wordsRunE(runOrr),
}

func runOrr(s *session.Session, addr uint32, words []uint32) error {
	for i, w := range words {
		if err := s.Dev.PokeOR(addr+uint32(i)*backdoor.WordSize, w); err != nil {
			return err
		}
	}
	return nil
}

var bicCmd = &cobra.Command{
	Use:   "bic <address> <word>...",
	Short: "Read/modify/write words, [mem] &= ~arg",
	Args:  cobra.MinimumNArgs(2),
	RunE:  wordsRunE(runBic),
}

func runBic(s *session.Session, addr uint32, words []uint32) error {
	for i, w := range words {
		if err := s.Dev.PokeBIC(addr+uint32(i)*backdoor.WordSize, w); err != nil {
			return err
		}
	}
	return nil
}

// wordsRunE adapts an (addr, words) handler to cobra.
func wordsRunE(fn func(*session.Session, uint32, []uint32) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		addr, err := parseHex(args[0])
		if err != nil {
			return err
		}
		words, err := parseHexWords(args[1:])
		if err != nil {
			return err
		}
		return withSession(func(s *session.Session) error {
			return fn(s, addr, words)
		})
	}
}

var fillCmd = &cobra.Command{
	Use:   "fill <address> <word> <wordcount>",
	Short: "Fill contiguous words with the same value",
	Long: `Fill contiguous words in memory with the same value.

Values made of a single repeating byte use the drive's bulk-fill
command and are orders of magnitude faster than the general case.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseHex(args[0])
		if err != nil {
			return err
		}
		pattern, err := parseHex(args[1])
		if err != nil {
			return err
		}
		count, err := parseHex(args[2])
		if err != nil {
			return err
		}
		return withSession(func(s *session.Session) error {
			return s.Dev.Fill(addr, pattern, count)
		})
	},
}

var findCmd = &cobra.Command{
	Use:   "find <address> <size> <byte>...",
	Short: "Search a memory block for a byte sequence at any alignment",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseHex(args[0])
		if err != nil {
			return err
		}
		size, err := parseHex(args[1])
		if err != nil {
			return err
		}
		pattern, err := parseHexBytes(args[2:])
		if err != nil {
			return err
		}
		return withSession(func(s *session.Session) error {
			return runFind(s, addr, size, pattern)
		})
	},
}

func runFind(s *session.Session, addr, size uint32, pattern []byte) error {
	return search.Find(s.Dev, addr, size, pattern, func(m search.Match) bool {
		fmt.Printf("%08x %52s [ %s ] %s\n",
			m.Address, hexStr(m.Before), hexStr(pattern), hexStr(m.After))
		return true
	})
}

var watchCmd = &cobra.Command{
	Use:   "watch <address|start:end>...",
	Short: "Watch memory for changes",
	Long: `Watch memory for changes, printing one line per changed byte.

Each argument is a single hex address or an inclusive start:end range.
The first read establishes a baseline; afterwards every differing byte
is reported with its old and new value. Runs until interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spans := make([]watch.Span, len(args))
		for i, a := range args {
			sp, err := watch.ParseSpan(a)
			if err != nil {
				return err
			}
			spans[i] = sp
		}
		return withSession(func(s *session.Session) error {
			return runWatch(cmd.Context(), s, spans)
		})
	},
}

func runWatch(ctx context.Context, s *session.Session, spans []watch.Span) error {
	ctx, stop := interruptContext(ctx)
	defer stop()

	fmt.Printf(" cycle   address  change\n")
	sc := watch.NewScanner(s.Dev, spans)
	return sc.Run(ctx, func(c watch.Change) error {
		fmt.Println(changeLine(c))
		return nil
	})
}

var ovlCmd = &cobra.Command{
	Use:   "ovl [address [wordcount]]",
	Short: "Position the movable RAM overlay, or show where it is",
	Long: `Position the movable RAM overlay at the indicated virtual address
range. With no arguments, shows the current location of the RAM.

The overlay can go anywhere in the first 8MB: park it at a scratch
address, fill it with tasty data, then move it overtop of flash. See
wrf to do both in one step.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session.Session) error {
			if len(args) == 0 {
				base, count, err := s.Dev.OverlayGet()
				if err != nil {
					return err
				}
				fmt.Printf("overlay: base = %x, wordcount = %x\n", base, count)
				return nil
			}
			base, err := parseHex(args[0])
			if err != nil {
				return err
			}
			count := uint32(1)
			if len(args) == 2 {
				if count, err = parseHex(args[1]); err != nil {
					return err
				}
			}
			return s.Dev.OverlaySet(base, count)
		})
	},
}

var hookCmd = &cobra.Command{
	Use:   "hook <address> [handler body...]",
	Short: "Install a live patch hook into executing flash code",
	Long: `Use the overlay mapping to install an 8-byte hook that invokes a
block of compiled C++ code installed in the scratch pad RAM.

The patch occupies 8 bytes of virtual address space; control flow may
only enter the block at the very beginning, and the edges of the block
must not cut any instruction in half (that part is on you).

Without a body, the handler "default_hook(regs)" traces register state
into the scratch pad where rd and rdw can inspect it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseHex(args[0])
		if err != nil {
			return err
		}
		var handler uint32
		if handlerAddr != "" {
			if handler, err = parseHex(handlerAddr); err != nil {
				return err
			}
		}
		body := strings.Join(args[1:], " ")
		return withSession(func(s *session.Session) error {
			return s.InstallHook(cmd.Context(), addr, body, handler)
		})
	},
}

var ecCmd = &cobra.Command{
	Use:   "ec <expression...>",
	Short: "Evaluate a 32-bit C++ expression on the target",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session.Session) error {
			v, err := s.EvalExpression(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Printf("0x%08x\n", v)
			return nil
		})
	},
}

var eaCmd = &cobra.Command{
	Use:   "ea <instructions...>",
	Short: "Evaluate an assembly one-liner on the target",
	Long: `Evaluate an assembly one-liner.

Defaults to ARM instead of Thumb, since code density matters less than
having access to all the instructions. A preamble saves every register
except r0 and r1; the session's r0 feeds the routine and r0/r1 carry
results back out.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session.Session) error {
			r0, r1, err := s.EvalAssembly(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Printf("  r0 = 0x%08x, r1 = 0x%08x\n", r0, r1)
			return nil
		})
	},
}

var asmCmd = &cobra.Command{
	Use:   "asm <address> <instructions...>",
	Short: "Assemble instructions and write them to memory",
	Long: `Assemble instructions (separated with ';') and write them to memory
at the given address. The code is placed exactly as written, with no
preamble; addresses in writable RAM only. See asmf for patching flash.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseHex(args[0])
		if err != nil {
			return err
		}
		return withSession(func(s *session.Session) error {
			return s.WriteAssembly(cmd.Context(), addr, strings.Join(args[1:], " "))
		})
	},
}

var asmfCmd = &cobra.Command{
	Use:   "asmf <address> <instructions...>",
	Short: "Assemble a patch and overlay it onto flash",
	Long: `Assemble instructions at the given address and instantly install them
through the RAM overlay, like wr combined with wrf: an assembly patch
that appears to land in flash.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseHex(args[0])
		if err != nil {
			return err
		}
		return withSession(func(s *session.Session) error {
			return s.WriteAssemblyOverlay(cmd.Context(), addr, strings.Join(args[1:], " "))
		})
	},
}

var defCmd = &cobra.Command{
	Use:   "def [definition...]",
	Short: "Define or replace an include definition",
	Long: `Define or replace a C++ include definition.

Without arguments, lists all definitions for this invocation. With
arguments, stores a one-line function, variable, or structure
definition; the key extends to the first '{' or '='.

Definitions live for the length of a shell session; use the shell
command for interactive work where they persist between evaluations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session.Session) error {
			if defClear {
				s.Defines.Clear()
				return nil
			}
			return runDef(s, strings.Join(args, " "))
		})
	},
}

func runDef(s *session.Session, line string) error {
	if strings.TrimSpace(line) == "" {
		for _, key := range s.Defines.Keys() {
			value, _ := s.Defines.Get(key)
			pad := 70 - len(key)
			if pad < 0 {
				pad = 0
			}
			fmt.Printf("%s %s %s\n%s\n\n", strings.Repeat("=", 10), key, strings.Repeat("=", pad), value)
		}
		return nil
	}
	s.Defines.DefineLine(line)
	return nil
}

var scCmd = &cobra.Command{
	Use:   "sc <length> [cdb byte...]",
	Short: "Send a low-level SCSI command with a 12-byte CDB",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		length, err := parseHex(args[0])
		if err != nil {
			return err
		}
		raw, err := parseHexBytes(args[1:])
		if err != nil {
			return err
		}
		return withSession(func(s *session.Session) error {
			return runSc(s, length, raw)
		})
	},
}

func runSc(s *session.Session, length uint32, raw []byte) error {
	cdb, err := scsi.FromBytes(raw)
	if err != nil {
		return err
	}
	data, err := s.Dev.Transport().In(cdb, length)
	if err != nil {
		return err
	}
	fmt.Print(hexDump(0, data))
	return nil
}

var scReadCmd = &cobra.Command{
	Use:   "sc-read <lba> [blocks]",
	Short: "Read 2 KB blocks from the disc",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lba, err := parseHex(args[0])
		if err != nil {
			return err
		}
		blocks := uint32(1)
		if len(args) == 2 {
			if blocks, err = parseHex(args[1]); err != nil {
				return err
			}
		}
		return withSession(func(s *session.Session) error {
			return runScRead(s, lba, blocks, logFile)
		})
	},
}

func runScRead(s *session.Session, lba, blocks uint32, file string) error {
	data, err := s.Dev.BlockRead(lba, blocks)
	if err != nil {
		return err
	}
	if file != "" {
		if err := os.WriteFile(file, data, 0o644); err != nil {
			return err
		}
	}
	fmt.Print(hexDump(0, data))
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the active configuration to the config file",
	Long: `Write the active configuration to the config file, creating it with
the built-in defaults when none exists. Edit the file to change the
device path, staging address, scratch pad, or toolchain prefix.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if devicePath != "" {
			cfg.DevicePath = devicePath
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		path, err := config.Path()
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset and reopen the device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session.Session) error {
			return s.Dev.Reset()
		})
	},
}

var ejectCmd = &cobra.Command{
	Use:   "eject",
	Short: "Ask the drive to eject its disc",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session.Session) error {
			return s.Dev.Eject()
		})
	},
}

var senseCmd = &cobra.Command{
	Use:   "sense",
	Short: "Send a request sense command",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session.Session) error {
			data, err := s.Dev.RequestSense()
			if err != nil {
				return err
			}
			fmt.Print(hexDump(0, data))
			return nil
		})
	},
}
