package rest

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	perr "seochecker/internal/platform/errors"
)

// ProviderError is a non 2xx answer or a malformed payload; never retried
type ProviderError struct {
	Provider string
	Endpoint string
	Status   int
	Body     string
	Err      error
}

// Error interface
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Provider, e.Endpoint, e.Status)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap interface
func (e *ProviderError) Unwrap() error { return e.Err }

// HTTPStatus is the upstream status
func (e *ProviderError) HTTPStatus() int { return e.Status }

// ErrorCode maps provider failures onto the platform taxonomy
func (e *ProviderError) ErrorCode() perr.ErrorCode { return perr.ErrorCodeProvider }

// IsProviderError reports whether err carries a ProviderError
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// isTransient reports connection level failures worth another attempt
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// snippet keeps error bodies short
func snippet(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
