package aguaiot

import "fmt"

// UnauthorizedError indicates the cloud rejected the account credentials or
// the session token.
type UnauthorizedError struct {
	Email string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("agua iot: unauthorized for account %s", e.Email)
}

// ConnectionError indicates the cloud could not be reached at all.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("agua iot: connection to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Error is any other failure reported by the cloud.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("agua iot: request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("agua iot: %s", e.Message)
}
