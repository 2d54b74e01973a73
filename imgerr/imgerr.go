// Package imgerr defines the error kinds shared by every processing package.
//
// Callers classify failures with errors.Is against the exported sentinels;
// the constructors only prefix a message.
package imgerr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter is returned before any pixel is touched when a
	// parameter is out of range or names an unknown method.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrDegenerateInput marks empty images or masks that carry no subject.
	ErrDegenerateInput = errors.New("degenerate input")
	// ErrProcessingFailure marks a numeric routine that could not run.
	ErrProcessingFailure = errors.New("processing failure")
	// ErrModelUnavailable is returned when an external model is not loaded.
	ErrModelUnavailable = errors.New("model unavailable")
)

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

func Degenerate(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDegenerateInput, fmt.Sprintf(format, args...))
}

func Failure(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProcessingFailure, fmt.Sprintf(format, args...))
}

func Unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrModelUnavailable, fmt.Sprintf(format, args...))
}

// OddKernel validates an odd kernel size in [minSize, maxSize].
func OddKernel(name string, size, minSize, maxSize int) error {
	if size < minSize || size > maxSize || size%2 == 0 {
		return Invalid("%s must be odd and in [%d, %d], got %d", name, minSize, maxSize, size)
	}
	return nil
}
