package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound indicates no attempt matches the query.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrShapeMismatch is returned when the answer vector length does not
	// match the quiz's question count.
	ErrShapeMismatch = errors.New("answer count does not match question count")
	// ErrAuthenticationRequired is returned in strict mode when a submission
	// carries no resolvable identity.
	ErrAuthenticationRequired = errors.New("authentication required to submit")
	// ErrAccessDenied is returned when a non-admin calls an admin operation.
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidSubmission covers malformed submission payloads (missing
	// display name, negative elapsed time).
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrDuplicateAttempt is the match target for DuplicateAttemptError.
	ErrDuplicateAttempt = errors.New("attempt already recorded")
)

// DuplicateAttemptError signals that an attempt already exists for the same
// (quiz, identity) pair. It carries the surviving attempt's result so callers
// can show it instead of a bare failure.
type DuplicateAttemptError struct {
	QuizID     string
	PriorScore int
	PriorTime  int
}

func (e *DuplicateAttemptError) Error() string {
	return fmt.Sprintf("attempt already recorded for quiz %s (score %d)", e.QuizID, e.PriorScore)
}

// Is makes errors.Is(err, ErrDuplicateAttempt) match.
func (e *DuplicateAttemptError) Is(target error) bool {
	return target == ErrDuplicateAttempt
}
