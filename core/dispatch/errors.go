package dispatch

import (
	"errors"
	"fmt"
)

// ErrAssignmentConflict signals that a candidate's precondition changed
// between ranking and commit (the responder was grabbed by a concurrent
// dispatch, or the case left Matching). It is resolved internally by moving
// to the next candidate and never surfaces to callers.
var ErrAssignmentConflict = errors.New("assignment conflict")

// ValidationError rejects malformed input before any state is touched.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
