package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/driveprobe/internal/session"
	"github.com/muurk/driveprobe/internal/watch"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive session against one drive",
	Long: `Open one session against the drive and run commands interactively.

Unlike one-shot commands, state accumulates: include definitions stay
visible to later evaluations, and the r0/r1 register pair persists so
one routine's output can feed the next one's input.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()
		return runShell(cmd.Context(), s)
	},
}

// interruptContext derives a context cancelled by Ctrl-C.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}

func runShell(ctx context.Context, s *session.Session) error {
	in := bufio.NewScanner(os.Stdin)
	fmt.Println("driveprobe shell; 'help' lists commands, 'exit' leaves")

	for {
		fmt.Print(": ")
		if !in.Scan() {
			fmt.Println()
			return in.Err()
		}
		fields := strings.Fields(in.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			return nil
		}
		if fields[0] == "def" {
			// A trailing brace opens a multiline block definition
			if header, ok := blockHeader(in.Text()); ok {
				body, err := readBlockBody(in)
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				s.Defines.DefineBlock(header, body)
				continue
			}
		}
		if err := dispatch(ctx, s, fields[0], fields[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

// blockHeader reports whether a def line opens a multiline block,
// returning the header with the opening brace stripped.
func blockHeader(line string) (string, bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "def"))
	if rest == "" || !strings.HasSuffix(rest, "{") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimSuffix(rest, "{")), true
}

// readBlockBody consumes continuation lines until a bare closing brace.
func readBlockBody(in *bufio.Scanner) (string, error) {
	var lines []string
	for {
		fmt.Print("... ")
		if !in.Scan() {
			return "", fmt.Errorf("unterminated definition block")
		}
		switch strings.TrimSpace(in.Text()) {
		case "}", "};":
			return strings.Join(lines, "\n"), nil
		}
		lines = append(lines, in.Text())
	}
}

func dispatch(ctx context.Context, s *session.Session, name string, args []string) error {
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: expected at least %d argument(s)", name, n)
		}
		return nil
	}
	addrAnd := func() (uint32, []uint32, error) {
		if err := need(2); err != nil {
			return 0, nil, err
		}
		addr, err := parseHex(args[0])
		if err != nil {
			return 0, nil, err
		}
		words, err := parseHexWords(args[1:])
		return addr, words, err
	}
	addrSize := func(dflt uint32) (uint32, uint32, error) {
		if err := need(1); err != nil {
			return 0, 0, err
		}
		addr, err := parseHex(args[0])
		if err != nil {
			return 0, 0, err
		}
		size := dflt
		if len(args) > 1 {
			if size, err = parseHex(args[1]); err != nil {
				return 0, 0, err
			}
		}
		return addr, size, nil
	}

	switch name {
	case "help":
		fmt.Println("memory:  rd rdw wr wrf orr bic fill find watch")
		fmt.Println("overlay: ovl hook")
		fmt.Println("code:    ec ea asm asmf def r0")
		fmt.Println("device:  sc sc-read reset eject sense")
		return nil

	case "rd":
		addr, size, err := addrSize(0x100)
		if err != nil {
			return err
		}
		return runRd(s, addr, size)

	case "rdw":
		addr, count, err := addrSize(0x100)
		if err != nil {
			return err
		}
		return runRdw(s, addr, count)

	case "wr":
		addr, words, err := addrAnd()
		if err != nil {
			return err
		}
		return runWr(s, addr, words)

	case "wrf":
		addr, words, err := addrAnd()
		if err != nil {
			return err
		}
		return runWrf(s, addr, words)

	case "orr":
		addr, words, err := addrAnd()
		if err != nil {
			return err
		}
		return runOrr(s, addr, words)

	case "bic":
		addr, words, err := addrAnd()
		if err != nil {
			return err
		}
		return runBic(s, addr, words)

	case "fill":
		if err := need(3); err != nil {
			return err
		}
		vals, err := parseHexWords(args[:3])
		if err != nil {
			return err
		}
		return s.Dev.Fill(vals[0], vals[1], vals[2])

	case "find":
		if err := need(3); err != nil {
			return err
		}
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
		return runFind(s, addr, size, pattern)

	case "watch":
		if err := need(1); err != nil {
			return err
		}
		spans := make([]watch.Span, len(args))
		for i, a := range args {
			sp, err := watch.ParseSpan(a)
			if err != nil {
				return err
			}
			spans[i] = sp
		}
		return runWatch(ctx, s, spans)

	case "ovl":
		if len(args) == 0 {
			base, count, err := s.Dev.OverlayGet()
			if err != nil {
				return err
			}
			fmt.Printf("overlay: base = %x, wordcount = %x\n", base, count)
			return nil
		}
		base, count, err := addrSize(1)
		if err != nil {
			return err
		}
		return s.Dev.OverlaySet(base, count)

	case "hook":
		if err := need(1); err != nil {
			return err
		}
		addr, err := parseHex(args[0])
		if err != nil {
			return err
		}
		return s.InstallHook(ctx, addr, strings.Join(args[1:], " "), 0)

	case "ec":
		if err := need(1); err != nil {
			return err
		}
		v, err := s.EvalExpression(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Printf("0x%08x\n", v)
		return nil

	case "ea":
		if err := need(1); err != nil {
			return err
		}
		r0, r1, err := s.EvalAssembly(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Printf("  r0 = 0x%08x, r1 = 0x%08x\n", r0, r1)
		return nil

	case "asm":
		if err := need(2); err != nil {
			return err
		}
		addr, err := parseHex(args[0])
		if err != nil {
			return err
		}
		return s.WriteAssembly(ctx, addr, strings.Join(args[1:], " "))

	case "asmf":
		if err := need(2); err != nil {
			return err
		}
		addr, err := parseHex(args[0])
		if err != nil {
			return err
		}
		return s.WriteAssemblyOverlay(ctx, addr, strings.Join(args[1:], " "))

	case "def":
		return runDef(s, strings.Join(args, " "))

	case "defclear":
		s.Defines.Clear()
		return nil

	case "r0":
		if len(args) == 0 {
			fmt.Printf("  r0 = 0x%08x, r1 = 0x%08x\n", s.R0, s.R1)
			return nil
		}
		v, err := parseHex(args[0])
		if err != nil {
			return err
		}
		s.R0 = v
		return nil

	case "sc":
		if err := need(1); err != nil {
			return err
		}
		length, err := parseHex(args[0])
		if err != nil {
			return err
		}
		raw, err := parseHexBytes(args[1:])
		if err != nil {
			return err
		}
		return runSc(s, length, raw)

	case "sc-read":
		lba, blocks, err := addrSize(1)
		if err != nil {
			return err
		}
		return runScRead(s, lba, blocks, "")

	case "reset":
		return s.Dev.Reset()

	case "eject":
		return s.Dev.Eject()

	case "sense":
		data, err := s.Dev.RequestSense()
		if err != nil {
			return err
		}
		fmt.Print(hexDump(0, data))
		return nil
	}

	return fmt.Errorf("unknown command %q; try 'help'", name)
}
