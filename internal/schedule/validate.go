package schedule

import (
	"errors"
	"fmt"
)

var ErrOverlap = errors.New("session overlaps an existing session")

type RejectReason string

const (
	ReasonEndBeforeStart RejectReason = "end_before_start"
	ReasonOverlap        RejectReason = "overlap"
)

// RejectionError explains why a candidate session range was refused.
// Conflict is set only for ReasonOverlap.
type RejectionError struct {
	Reason    RejectReason
	Candidate TimeRange
	Conflict  TimeRange
}

func (e *RejectionError) Error() string {
	if e.Reason == ReasonOverlap {
		return fmt.Sprintf("session %s overlaps %s", e.Candidate, e.Conflict)
	}
	return fmt.Sprintf("session %s: end must be after start", e.Candidate)
}

func (e *RejectionError) Is(target error) bool {
	switch e.Reason {
	case ReasonOverlap:
		return target == ErrOverlap
	case ReasonEndBeforeStart:
		return target == ErrInvalidRange
	}
	return false
}

// Validate accepts candidate (nil error) when it is well formed and shares no
// minute with any existing range. It has no side effects.
func Validate(candidate TimeRange, existing []TimeRange) error {
	if candidate.End <= candidate.Start {
		return &RejectionError{Reason: ReasonEndBeforeStart, Candidate: candidate}
	}
	for _, r := range existing {
		if candidate.Overlaps(r) {
			return &RejectionError{Reason: ReasonOverlap, Candidate: candidate, Conflict: r}
		}
	}
	return nil
}
