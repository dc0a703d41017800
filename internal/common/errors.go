// Package common defines shared constants and sentinel errors used across
// the notarization worker. Callers should use errors.Is to match these
// values; the typed variants below carry extra context and unwrap to them.
package common

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("document not found")

	// Orchestrator-level errors.
	ErrInvalidState = errors.New("invalid document state")

	// Chain-level errors. Reverts are terminal on-chain outcomes and are
	// never retried.
	ErrReverted            = errors.New("transaction reverted")
	ErrConfirmationTimeout = errors.New("confirmation timeout")

	// Certificate errors.
	ErrNoSigningKey = errors.New("no signing key configured")
)

// InvalidStateError reports a re-entry on a document whose status does not
// permit processing. It unwraps to ErrInvalidState.
type InvalidStateError struct {
	DocumentID string
	Status     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("document %s: invalid state %s", e.DocumentID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// RevertedError reports a transaction that was mined but whose execution
// failed. It unwraps to ErrReverted.
type RevertedError struct {
	TxHash string
}

func (e *RevertedError) Error() string {
	return fmt.Sprintf("transaction %s reverted", e.TxHash)
}

func (e *RevertedError) Unwrap() error { return ErrReverted }

// TimeoutError reports that a confirmation wait exceeded its attempt or
// wall-clock bound. It unwraps to ErrConfirmationTimeout.
type TimeoutError struct {
	TxHash   string
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transaction %s confirmation timeout after %d attempts (%s elapsed)",
		e.TxHash, e.Attempts, e.Elapsed.Round(time.Second))
}

func (e *TimeoutError) Unwrap() error { return ErrConfirmationTimeout }

// TruncateError bounds an error message for persistence so a failed attempt
// cannot grow storage without limit. The cut lands on a rune boundary so the
// stored message stays valid UTF-8.
func TruncateError(err error, max int) string {
	msg := err.Error()
	if len(msg) <= max {
		return msg
	}
	for max > 0 && !utf8.RuneStart(msg[max]) {
		max--
	}
	return msg[:max]
}
