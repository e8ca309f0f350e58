package scsi

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// TransportError represents a failure of a single SCSI command: the device
// is not present, the command was rejected, or the transfer came up short.
// It is always fatal to the in-flight operation and never retried here.
type TransportError struct {
	// Op is a short name for what was being attempted ("sg_io", "open", ...)
	Op string
	// CDB is the command that failed
	CDB CDB
	// Requested is the data-in length that was asked for
	Requested uint32
	// Got is the number of bytes actually transferred
	Got int
	// Err is the underlying error, if any
	Err error
}

func (e *TransportError) Error() string {
	if e.Got != int(e.Requested) && e.Err == nil {
		return fmt.Sprintf("scsi %s: short transfer for cdb %s: got %d of %d bytes",
			e.Op, hex.EncodeToString(e.CDB[:]), e.Got, e.Requested)
	}
	return fmt.Sprintf("scsi %s: cdb %s: %v", e.Op, hex.EncodeToString(e.CDB[:]), e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is (or wraps) a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
