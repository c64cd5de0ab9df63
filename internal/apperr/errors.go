// Package apperr defines the error taxonomy shared by every ideashare component.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	ErrStoreRead    = errors.New("store read failed")
	ErrStoreWrite   = errors.New("store write failed")
	ErrMissingIndex = errors.New("query requires a missing index")

	ErrAlreadyVoted        = errors.New("already voted")
	ErrVoteSubmission      = errors.New("vote submission failed")
	ErrInvalidStars        = errors.New("stars must be between 1 and 5")
	ErrIdentityUnavailable = errors.New("identity storage unavailable")

	ErrAlreadySubmitted = errors.New("already submitted today")
	ErrInvalidIdea      = errors.New("invalid idea")
	ErrProfanity        = errors.New("idea contains inappropriate language")

	ErrInvalidInput = errors.New("invalid input")
)

// Kind classifies a StoreError as a read or a write failure.
type Kind int

const (
	KindRead Kind = iota
	KindWrite
)

func (k Kind) String() string {
	if k == KindWrite {
		return "write"
	}
	return "read"
}

// StoreError is returned by document store backends. It matches ErrStoreRead or
// ErrStoreWrite according to its Kind, and unwraps to the backend cause so that
// ErrMissingIndex, ErrNotFound and ErrConflict stay reachable through errors.Is.
type StoreError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("docstore %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel of this error's kind.
func (e *StoreError) Is(target error) bool {
	switch target {
	case ErrStoreRead:
		return e.Kind == KindRead
	case ErrStoreWrite:
		return e.Kind == KindWrite
	}
	return false
}

// Read wraps err as a read failure of op. A nil err stays nil.
func Read(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Kind: KindRead, Err: err}
}

// Write wraps err as a write failure of op. A nil err stays nil.
func Write(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Kind: KindWrite, Err: err}
}
