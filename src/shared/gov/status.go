package gov

import "fmt"

// Status is the lifecycle of a voting. Terminal statuses are never left.
type Status string

const (
	StatusPending   Status = "pending"
	StatusVoting    Status = "voting"
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var statusTransitions = map[Status][]Status{
	StatusPending: {StatusVoting, StatusCancelled},
	StatusVoting:  {StatusPassed, StatusFailed, StatusCancelled},
}

func ParseStatus(tag string) (Status, error) {
	switch s := Status(tag); s {
	case StatusPending, StatusVoting, StatusPassed, StatusFailed, StatusCancelled:
		return s, nil
	}
	return "", fmt.Errorf("gov: unknown voting status %q", tag)
}

// CanTransition reports whether the status machine allows moving to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusCancelled
}

func (s Status) String() string { return string(s) }
