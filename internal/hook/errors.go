package hook

import (
	"errors"
	"fmt"
)

// PlacementError represents an alignment or size violation detected
// before any memory write, keeping hook installation all-or-nothing.
type PlacementError struct {
	// Address is the rejected hook address
	Address uint32
	// Reason describes the violated constraint
	Reason string
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("hook at %08x: %s", e.Address, e.Reason)
}

// IsPlacementError reports whether err is (or wraps) a *PlacementError.
func IsPlacementError(err error) bool {
	var pe *PlacementError
	return errors.As(err, &pe)
}
