package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// TransportError is a failure to obtain any usable answer from the remote
// side: network errors, timeouts and overload statuses. It is retryable.
type TransportError struct {
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("transport %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a definitive non-2xx answer. It is never retried.
type StatusError struct {
	URL    string
	Status int
	Body   string
	Err    error // common.ErrUnprocessable for 400/415/422, nil otherwise
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: status %d", e.URL, e.Status)
}

func (e *StatusError) Unwrap() error { return e.Err }

// transientStatuses are answers that mean "try again later".
var transientStatuses = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

var unprocessableStatuses = map[int]bool{
	http.StatusBadRequest:           true,
	http.StatusUnsupportedMediaType: true,
	http.StatusUnprocessableEntity:  true,
}

// IsTransient reports whether err is worth another attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
