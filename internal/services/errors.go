package services

import (
	"errors"
	"fmt"

	"budgetflow/internal/core"
)

var (
	ErrSplitMismatch   = errors.New("split assignments do not match pool entry amount")
	ErrEmptySplit      = errors.New("split has no usable assignments")
	ErrPartialSplit    = errors.New("partial split")
	ErrAlreadyPaid     = errors.New("credit card expense already paid")
	ErrNotInitialized  = errors.New("service not properly initialized")
	ErrUnknownPolicy   = errors.New("unknown split policy")
	ErrNothingToSettle = errors.New("no credit card expenses given")
)

// PartialSplitError reports a split that wrote some categorized credits but
// could not finish. The pool entry is left as it was, so the caller can retry
// the remaining assignments or delete the written credits by hand.
type PartialSplitError struct {
	Written []core.Credit
	Cause   error
}

func (e *PartialSplitError) Error() string {
	return fmt.Sprintf("partial split: %d credit(s) written before failure: %v", len(e.Written), e.Cause)
}

func (e *PartialSplitError) Unwrap() []error {
	return []error{ErrPartialSplit, e.Cause}
}
