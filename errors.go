package main

import (
	"errors"
	"fmt"
)

// ErrRequestNotFound means no ledger row exists at all for a callback's key.
var ErrRequestNotFound = errors.New("request not found")

// ErrLockTimeout is the transient failure a caller gets when the group lock
// could not be acquired before the deadline. Callers must not proceed with an
// unguarded group mutation.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// ValidationError marks a callback as permanently invalid: bad shape,
// malformed ref, unknown job kind or resource kind. The provider gets a
// failure ack and should stop retrying.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// StoreWriteError wraps a content-store rejection so the dispatcher can
// attach the underlying message to the failure ack.
type StoreWriteError struct {
	Op  string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("content store write failed (%s): %s", e.Op, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}
