package backdoor

import (
	"errors"
	"fmt"
)

// MemoryAccessError represents a failed memory operation. It always names
// the address and size involved; address precision matters when the next
// command the operator types is a write.
type MemoryAccessError struct {
	// Op is the operation that failed ("peek", "poke", "read", "fill", ...)
	Op string
	// Address is the start of the affected range
	Address uint32
	// Size is the byte length of the affected range (0 for word ops)
	Size uint32
	// Err is the underlying cause, usually a *scsi.TransportError
	Err error
}

func (e *MemoryAccessError) Error() string {
	if e.Size > 0 {
		return fmt.Sprintf("memory %s at %08x (%x bytes): %v", e.Op, e.Address, e.Size, e.Err)
	}
	return fmt.Sprintf("memory %s at %08x: %v", e.Op, e.Address, e.Err)
}

func (e *MemoryAccessError) Unwrap() error {
	return e.Err
}

// OverlayStateError represents an invalid overlay request: a base outside
// the decodable range, a zero wordcount, or a misaligned base.
type OverlayStateError struct {
	// Base and WordCount are the rejected mapping
	Base      uint32
	WordCount uint32
	// Reason describes the violated constraint
	Reason string
}

func (e *OverlayStateError) Error() string {
	return fmt.Sprintf("overlay (base=%08x, wordcount=%x): %s", e.Base, e.WordCount, e.Reason)
}

// IsMemoryAccessError reports whether err is (or wraps) a *MemoryAccessError.
func IsMemoryAccessError(err error) bool {
	var me *MemoryAccessError
	return errors.As(err, &me)
}

// IsOverlayStateError reports whether err is (or wraps) an *OverlayStateError.
func IsOverlayStateError(err error) bool {
	var oe *OverlayStateError
	return errors.As(err, &oe)
}
