package sink

import "fmt"

// Error describes a failed sink call. StatusCode is zero for transport
// errors (connection refused, timeout).
type Error struct {
	Table      string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sink append to %q failed with status %d: %v", e.Table, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("sink append to %q failed: %v", e.Table, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Permanent reports whether the failure is a client error that a retry
// cannot fix (4xx other than 429). Transport errors and 5xx are transient.
func (e *Error) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != 429
}
