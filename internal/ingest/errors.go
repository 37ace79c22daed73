package ingest

import (
	"fmt"
	"strings"
)

// ValidationError reports a registration call with missing required fields.
// It is surfaced to the caller in the response body and never retried.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}
