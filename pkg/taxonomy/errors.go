package taxonomy

import "fmt"

// LoadError reports a taxonomy file that is missing or cannot be parsed.
type LoadError struct {
	File string
	Err  error
}

// Error implements the error interface
func (e *LoadError) Error() string {
	return fmt.Sprintf("taxonomy load failed for %s: %v", e.File, e.Err)
}

// Unwrap supports error unwrapping
func (e *LoadError) Unwrap() error {
	return e.Err
}
