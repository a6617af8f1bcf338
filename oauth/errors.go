package oauth

import "fmt"

// ExchangeError reports a failed token exchange: the host returned a
// non-success status, the token payload was malformed, or the request never
// completed. Grant and Endpoint identify which exchange was attempted so
// configuration mistakes can be told apart from host-side failures.
type ExchangeError struct {
	Grant    GrantType
	Endpoint string
	Status   int
	Detail   string
	Err      error
}

func (e *ExchangeError) Error() string {
	msg := fmt.Sprintf("oauth: %s exchange against %s failed", e.Grant, e.Endpoint)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// RefreshError reports a failed refresh-token grant: the refresh token is
// absent, expired, or was rejected by the host. Kept distinct from
// ExchangeError so callers can decide whether to fall back to a full
// re-login.
type RefreshError struct {
	Endpoint string
	Status   int
	Detail   string
	Err      error
}

func (e *RefreshError) Error() string {
	msg := fmt.Sprintf("oauth: refresh against %s failed", e.Endpoint)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RefreshError) Unwrap() error { return e.Err }
