package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidRole       = fmt.Errorf("%w: role must be one of system, user, assistant", ErrInvalidInput)
	ErrNotFound          = errors.New("not found")
	ErrBatchTooLarge     = errors.New("batch too large")
	ErrNothingToPerform  = errors.New("nothing to perform")
	ErrStorageCorruption = errors.New("storage corruption")
)

// BatchTooLargeError reports a range execution that exceeds the configured cap.
type BatchTooLargeError struct {
	Requested int
	Limit     int
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("batch too large: %d entries requested, max_batch_perform is %d", e.Requested, e.Limit)
}

func (e *BatchTooLargeError) Unwrap() error {
	return ErrBatchTooLarge
}
