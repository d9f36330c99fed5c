package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind groups request failures for reporting.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindConnection  ErrorKind = "connection"
	KindForbidden   ErrorKind = "forbidden"
	KindNotFound    ErrorKind = "not_found"
	KindRateLimited ErrorKind = "rate_limited"
	KindOther       ErrorKind = "other"
)

// RequestError is a classified fetch failure.
type RequestError struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *RequestError) Retryable() bool {
	switch e.Kind {
	case KindForbidden, KindNotFound:
		return false
	}
	return true
}

func classifyError(err error, statusCode int) *RequestError {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &RequestError{Kind: KindTimeout, Status: statusCode, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &RequestError{Kind: KindTimeout, Status: statusCode, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &RequestError{Kind: KindConnection, Status: statusCode, Err: err}
	}

	if err == nil {
		err = fmt.Errorf("http status %d", statusCode)
	}
	switch statusCode {
	case http.StatusForbidden:
		return &RequestError{Kind: KindForbidden, Status: statusCode, Err: err}
	case http.StatusNotFound:
		return &RequestError{Kind: KindNotFound, Status: statusCode, Err: err}
	case http.StatusTooManyRequests:
		return &RequestError{Kind: KindRateLimited, Status: statusCode, Err: err}
	}
	return &RequestError{Kind: KindOther, Status: statusCode, Err: err}
}

func errorTypeLabel(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr != nil {
		return string(reqErr.Kind)
	}
	return "unknown"
}
