package clients

import (
	"errors"
	"strings"
)

// Opaque storage failures. The cause is logged, never returned.
var (
	ErrSaveFailed   = errors.New("unable to save new client")
	ErrFetchFailed  = errors.New("unable to fetch client")
	ErrSearchFailed = errors.New("unable to search for clients")
)

// ValidationError carries user-facing messages for a rejected submission.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, " ")
}
