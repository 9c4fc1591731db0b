package ledger

import (
	"errors"
	"fmt"
)

// ErrInvalidInput indicates a missing required identity. A ledger computed
// for a nonexistent student would mask an upstream data-integrity bug, so the
// build fails fast instead of returning zeros.
var ErrInvalidInput = errors.New("ledger: invalid input")

// MalformedRecordError reports a source record carrying an amount the ledger
// refuses to compute over. Negative payments are rejected, not sanitized.
type MalformedRecordError struct {
	Record string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("ledger: malformed %s: %s", e.Record, e.Reason)
}

func malformed(record, reason string) error {
	return &MalformedRecordError{Record: record, Reason: reason}
}
