package client

import (
	"errors"
	"fmt"
)

// ErrNoSession means Start was called without an authenticated session; the
// sync core stays fully dormant until a token is provided.
var ErrNoSession = errors.New("sync client: no authenticated session")

// FetchError is a terminal query failure surfaced to the UI. Transient
// transport errors never reach this type; they are retried internally.
type FetchError struct {
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed with status %d: %s", e.StatusCode, e.Body)
}

// MutationError is surfaced whenever a mutation is rejected; by the time the
// caller sees it every optimistic update has already been rolled back.
type MutationError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *MutationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mutation failed: %v", e.Err)
	}
	return fmt.Sprintf("mutation rejected with status %d: %s", e.StatusCode, e.Body)
}

func (e *MutationError) Unwrap() error { return e.Err }
