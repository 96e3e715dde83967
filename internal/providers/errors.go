package providers

import (
	"context"
	"errors"
	"fmt"
	"net"

	"resty.dev/v3"
)

var (
	// ErrKeyNotFound indicates none of the candidate keys were present in the upstream payload.
	ErrKeyNotFound = errors.New("value not found")

	// ErrUnexpectedStatus indicates the upstream answered with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrMalformed indicates the upstream payload was received but could not be parsed.
	ErrMalformed = errors.New("malformed response")
)

type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindNetwork   ErrorKind = "network"
	KindStatus    ErrorKind = "status"
	KindMalformed ErrorKind = "malformed"
	KindMissing   ErrorKind = "missing"
)

// FetchError is the failure reason attached to an unavailable quote.
// Error() is short and safe to show to chat users: it never includes URLs or credentials.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int
	Cause      error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return "request timed out"
	case KindNetwork:
		return "network error"
	case KindStatus:
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	case KindMissing:
		return ErrKeyNotFound.Error()
	default:
		return ErrMalformed.Error()
	}
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

func missing(quantityKeys []string) *FetchError {
	return &FetchError{Kind: KindMissing, Cause: fmt.Errorf("%w: tried %v", ErrKeyNotFound, quantityKeys)}
}

func malformed(err error) *FetchError {
	return &FetchError{Kind: KindMalformed, Cause: fmt.Errorf("%w: %w", ErrMalformed, err)}
}

// classify turns a transport error or a non-2xx response into a FetchError. It returns nil on success.
func classify(resp *resty.Response, err error) *FetchError {
	if err != nil {
		if isTimeout(err) {
			return &FetchError{Kind: KindTimeout, Cause: err}
		}
		return &FetchError{Kind: KindNetwork, Cause: err}
	}
	if resp == nil {
		return &FetchError{Kind: KindNetwork, Cause: errors.New("empty response")}
	}
	if !resp.IsSuccess() {
		return &FetchError{Kind: KindStatus, StatusCode: resp.StatusCode(), Cause: fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode())}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
