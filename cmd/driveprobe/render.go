package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/muurk/driveprobe/internal/watch"
)

// Styling is cosmetic and drops out when output is piped.
var (
	styleAddr = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	styleOld  = lipgloss.NewStyle().Faint(true)
	styleNew  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
)

func styled() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// hexDump renders data in the classic 16-bytes-per-row layout with an
// ASCII gutter, addressed from base.
func hexDump(base uint32, data []byte) string {
	var b strings.Builder
	for row := 0; row < len(data); row += 16 {
		end := row + 16
		if end > len(data) {
			end = len(data)
		}
		line := data[row:end]

		fmt.Fprintf(&b, "%08x  ", base+uint32(row))
		for i := 0; i < 16; i++ {
			if i < len(line) {
				fmt.Fprintf(&b, "%02x ", line[i])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteString("  ")
		for _, c := range line {
			if c >= 32 && c <= 126 {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// wordDump renders words eight per row, addressed from base.
func wordDump(base uint32, words []uint32) string {
	var b strings.Builder
	for row := 0; row < len(words); row += 8 {
		end := row + 8
		if end > len(words) {
			end = len(words)
		}
		fmt.Fprintf(&b, "%08x ", base+uint32(row)*4)
		for _, w := range words[row:end] {
			fmt.Fprintf(&b, " %08x", w)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// hexStr renders bytes as space-separated hex pairs.
func hexStr(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}

// changeLine renders one watch change record.
func changeLine(c watch.Change) string {
	if !styled() {
		return fmt.Sprintf("%6d  %08x  %02x -> %02x", c.Cycle, c.Address, c.Old, c.New)
	}
	return fmt.Sprintf("%6d  %s  %s -> %s",
		c.Cycle,
		styleAddr.Render(fmt.Sprintf("%08x", c.Address)),
		styleOld.Render(fmt.Sprintf("%02x", c.Old)),
		styleNew.Render(fmt.Sprintf("%02x", c.New)),
	)
}
