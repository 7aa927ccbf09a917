package solver

import "fmt"

// ConstructionFailedError indicates the FSA could not be built — spec
// reserves this for inputs referencing type variables with contradictory
// variance annotations. Construction is the only fallible step of the
// solver; saturation and reduction never fail once construction succeeds.
type ConstructionFailedError struct {
	Reason string
}

func (e *ConstructionFailedError) Error() string {
	return fmt.Sprintf("FSA construction failed: %s", e.Reason)
}

func NewConstructionFailedError(reason string) *ConstructionFailedError {
	return &ConstructionFailedError{Reason: reason}
}
