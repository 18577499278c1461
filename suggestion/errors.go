package suggestion

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound is returned when the workspace does not know the
	// requested document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrCancelled is matched by every *CancelledError.
	ErrCancelled = errors.New("suggestion request cancelled")
	// ErrAlreadyFinalized is returned by lifecycle calls on a suggestion
	// that already reached a terminal state.
	ErrAlreadyFinalized = errors.New("suggestion already finalized")
	// ErrNilSuggestion is returned when a lifecycle call receives nil.
	ErrNilSuggestion = errors.New("nil suggestion")
)

// CancelledError reports that the request's context ended before the engine
// returned. It matches ErrCancelled, the context's error, and the engine's
// error when there was one.
type CancelledError struct {
	Cause error
	Err   error
}

func (e *CancelledError) Error() string {
	if e.Err != nil && !errors.Is(e.Err, e.Cause) {
		return fmt.Sprintf("%s: %v: %v", ErrCancelled, e.Cause, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrCancelled, e.Cause)
}

func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

func (e *CancelledError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Cause}
	}
	return []error{e.Cause, e.Err}
}
