package config

import "fmt"

// InvalidError indicates a configuration file or its resolved values
// are malformed — an unparseable interesting-variable pattern, or an
// allocation/deallocation symbol listed in both sets.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

func NewInvalidError(reason string) *InvalidError {
	return &InvalidError{Reason: reason}
}
