// Package retry implements the worker's failure classification and
// exponential-backoff retry policy. The classifier decides which failures
// are transient infrastructure problems worth retrying and which are
// permanent on-chain or business outcomes that must surface immediately.
package retry

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/absnotary/internal/common"
)

// Keyword policy for errors that originate outside this codebase (RPC nodes,
// drivers) and only carry message text. Errors produced by our own packages
// are matched by type first.
var retryableKeywords = []string{
	"timeout",
	"connection",
	"network",
	"gas estimation",
	"nonce too low",
	"replacement transaction underpriced",
	"transaction underpriced",
}

var nonRetryableKeywords = []string{
	"reverted",
	"insufficient funds",
	"invalid signature",
	"already exists",
	"unauthorized",
	"access denied",
}

// IsRetryable reports whether an operation that failed with err should be
// attempted again. Unknown errors default to retryable: an extra attempt is
// cheaper than silently dropping a real failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Typed outcomes first.
	switch {
	case errors.Is(err, common.ErrReverted),
		errors.Is(err, common.ErrInvalidState),
		errors.Is(err, common.ErrNotFound),
		errors.Is(err, common.ErrNoSigningKey),
		errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, common.ErrConfirmationTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}

	msg := strings.ToLower(err.Error())

	for _, kw := range retryableKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	for _, kw := range nonRetryableKeywords {
		if strings.Contains(msg, kw) {
			return false
		}
	}

	return true
}
