package props

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateName indicates a property was defined under a name that is
	// already registered on the store.
	ErrDuplicateName = errors.New("props: property name already defined")
	// ErrNoSuchProperty indicates an operation referenced a property name the
	// store does not know about.
	ErrNoSuchProperty = errors.New("props: no such property")
	// ErrAccessDenied indicates a facade rejected a read, write, or accessor
	// installation.
	ErrAccessDenied = errors.New("props: access denied")
	// ErrValidationRejected indicates a property validator refused a proposed
	// value. The validator's own error remains reachable through Unwrap.
	ErrValidationRejected = errors.New("props: validation rejected")
	// ErrNoEvaluator indicates a rule-backed definition was requested on a
	// store without a configured evaluator.
	ErrNoEvaluator = errors.New("props: evaluator not configured")
)

func duplicateName(name string) error {
	return fmt.Errorf("%w: %s", ErrDuplicateName, name)
}

func noSuchProperty(name string) error {
	return fmt.Errorf("%w: %s", ErrNoSuchProperty, name)
}

func accessDenied(op, name string) error {
	return fmt.Errorf("%w: %s %s", ErrAccessDenied, op, name)
}

// ValidationError wraps the error returned by a property validator so callers
// can match on ErrValidationRejected while still unwrapping the original
// rejection payload verbatim.
type ValidationError struct {
	Name string
	Err  error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("props: validation rejected for %s: %v", e.Name, e.Err)
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports a match for ErrValidationRejected so errors.Is works without
// callers needing the concrete type.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationRejected
}

func validationRejected(name string, err error) error {
	if err == nil {
		return nil
	}
	var rejected *ValidationError
	if errors.As(err, &rejected) {
		return err
	}
	return &ValidationError{Name: name, Err: err}
}
