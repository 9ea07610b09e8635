package fetch

import (
	"errors"
	"fmt"
	"strings"
)

// Classification decides whether a failed remote call is worth retrying.
type Classification int

const (
	ClassRetryable Classification = iota
	ClassTerminal
)

func (c Classification) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// RemoteError is a failed call against a remote service, carrying the
// HTTP status when one was received. Status 0 means the request never
// got a response (network-level failure).
type RemoteError struct {
	Op      string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

var transientPatterns = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"timeout",
	"timed out",
	"deadline exceeded",
	"no such host",
	"temporary failure",
	"unexpected eof",
	"tls handshake",
}

// Classify decides retryable vs. terminal for a failed remote call.
// Auth and client errors are terminal; rate limits, server errors and
// network failures are retryable. Unrecognized errors default to
// retryable, bounded by the attempt limit.
func Classify(err error) Classification {
	if err == nil {
		return ClassRetryable
	}

	status := 0
	var re *RemoteError
	if errors.As(err, &re) {
		status = re.Status
	}
	msg := strings.ToLower(err.Error())

	switch status {
	case 401, 403:
		return ClassTerminal
	case 400, 404, 422:
		return ClassTerminal
	}
	if strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden") {
		return ClassTerminal
	}

	if status == 429 || status >= 500 {
		return ClassRetryable
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return ClassRetryable
		}
	}

	return ClassRetryable
}
