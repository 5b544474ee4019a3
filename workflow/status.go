package workflow

import "fmt"

// Status is an image's lifecycle state. The persisted literal values are the
// store contract; UI-facing labels are a presentation concern.
type Status string

const (
	StatusUnassigned Status = "unassigned"
	StatusAssigned   Status = "assigned"
	StatusReview     Status = "review"
	StatusConfirmed  Status = "confirmed"
)

// ParseStatus validates a persisted literal value
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusUnassigned, StatusAssigned, StatusReview, StatusConfirmed:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// transitions encodes the legal edges. Forward movement never skips a state;
// assigned → confirmed without passing through review is disallowed.
var transitions = map[Status][]Status{
	StatusUnassigned: {StatusAssigned},
	StatusAssigned:   {StatusReview},
	StatusReview:     {StatusConfirmed, StatusAssigned}, // send back to labeling
	StatusConfirmed:  {StatusReview},                    // reopen for re-review
}

// CanTransition reports whether from → to is a legal edge
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
