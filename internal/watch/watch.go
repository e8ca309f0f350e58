package watch

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/muurk/driveprobe/internal/backdoor"
)

// Span is an inclusive address range to watch. A single address is a
// span with Start == End.
type Span struct {
	Start uint32
	End   uint32
}

// Size returns the span's byte length. The full-range span 0:ffffffff
// clamps to 0xffffffff rather than wrapping to a zero-byte watch.
func (s Span) Size() uint32 {
	if s.Start == 0 && s.End == ^uint32(0) {
		return ^uint32(0)
	}
	return s.End - s.Start + 1
}

// ParseSpan parses "addr" or "start:end" in hex (with or without 0x),
// both endpoints inclusive.
func ParseSpan(text string) (Span, error) {
	parse := func(s string) (uint32, error) {
		s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
		v, err := strconv.ParseUint(s, 16, 32)
		return uint32(v), err
	}

	start, end, found := strings.Cut(text, ":")
	a, err := parse(start)
	if err != nil {
		return Span{}, fmt.Errorf("bad address %q: %w", text, err)
	}
	if !found {
		return Span{Start: a, End: a}, nil
	}
	b, err := parse(end)
	if err != nil {
		return Span{}, fmt.Errorf("bad address %q: %w", text, err)
	}
	if b < a {
		return Span{}, fmt.Errorf("bad range %q: end before start", text)
	}
	return Span{Start: a, End: b}, nil
}

// Change is one observed byte-level delta.
type Change struct {
	Address uint32
	Old     byte
	New     byte
	// Cycle is the observation count at which the change was seen,
	// monotonically increasing from 1. The baseline is cycle 0 and
	// never emits changes.
	Cycle uint64
}

// Scanner repeatedly snapshots the watched spans and reports byte-level
// deltas against the previous cycle. Watching never writes to the
// device, so stopping a scanner at any point leaves nothing to clean up.
type Scanner struct {
	dev   *backdoor.Device
	spans []Span
	prev  [][]byte
	cycle uint64
}

// NewScanner creates a scanner over spans.
func NewScanner(dev *backdoor.Device, spans []Span) *Scanner {
	return &Scanner{dev: dev, spans: spans}
}

// Scan performs one read cycle and returns the changes since the
// previous cycle. The first call establishes the baseline and returns
// no changes.
func (s *Scanner) Scan() ([]Change, error) {
	cur := make([][]byte, len(s.spans))
	for i, sp := range s.spans {
		data, err := s.dev.ReadBlock(sp.Start, sp.Size())
		if err != nil {
			return nil, err
		}
		cur[i] = data
	}

	if s.prev == nil {
		// Baseline: nothing to diff against yet
		s.prev = cur
		return nil, nil
	}
	s.cycle++

	var changes []Change
	for i, sp := range s.spans {
		for off, b := range cur[i] {
			if old := s.prev[i][off]; old != b {
				changes = append(changes, Change{
					Address: sp.Start + uint32(off),
					Old:     old,
					New:     b,
					Cycle:   s.cycle,
				})
			}
		}
	}
	s.prev = cur
	return changes, nil
}

// Run scans until ctx is cancelled, calling emit for every change in
// observation order. The transport round trip is the natural pacing;
// no artificial delay is inserted between cycles. Returns nil on
// cancellation and the first read or emit error otherwise.
func (s *Scanner) Run(ctx context.Context, emit func(Change) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		changes, err := s.Scan()
		if err != nil {
			return err
		}
		for _, c := range changes {
			if err := emit(c); err != nil {
				return err
			}
		}
	}
}
