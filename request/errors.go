package request

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned when no credentials are stored and no
// prior login supplied any.
var ErrNotAuthenticated = errors.New("request: not authenticated: log in or supply a credential store")

// ErrBodyConflict is returned by Builder.Build when more than one body
// encoding was requested on the same builder.
var ErrBodyConflict = errors.New("request: conflicting body encodings on one request")

// DeniedError reports that the host rejected the request with an
// authorization failure even after a token refresh. No further retries are
// attempted.
type DeniedError struct {
	Endpoint string
	Status   int
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("request: %s denied with status %d after token refresh", e.Endpoint, e.Status)
}

// StatusError reports a non-success HTTP status that is not an authorization
// failure. Body carries the raw response for diagnostics.
type StatusError struct {
	Endpoint string
	Status   int
	Body     []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request: %s failed with status %d: %s", e.Endpoint, e.Status, e.Body)
}

// ParseError reports a response body that could not be decoded as JSON.
type ParseError struct {
	Endpoint string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("request: parsing response from %s: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TransportError reports a network-level failure (connection refused,
// timeout, DNS). These are never retried here; retry policy is a caller
// concern.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request: %s unreachable: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
