package common

import (
	"errors"
	"fmt"
)

// HTTPStatusError carries the HTTP status of a failed call so callers can
// map specific statuses (notably 429) to policy outcomes without parsing
// error text.
type HTTPStatusError struct {
	Err    error
	Status int
}

func (e *HTTPStatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("http status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("http status %d", e.Status)
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Err
}

// HTTPStatus extracts the HTTP status from an error chain, or 0 when none
// is present.
func HTTPStatus(err error) int {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status
	}
	return 0
}
