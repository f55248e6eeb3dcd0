package upbit

import "fmt"

// AuthError indicates the client has no usable credentials. It is returned
// before any network attempt is made.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Reason)
}

// ValidationError indicates a request was malformed and was rejected locally,
// before signing or sending anything.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Reason)
}

// TransportError carries a network failure or a non-2xx exchange response.
// Body holds the raw response body when one was received.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("exchange returned status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
