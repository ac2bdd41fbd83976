package apperrors

import (
	"errors"
	"fmt"
)

// Top-level error kinds. Callers classify failures with errors.Is against these.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrProcessingFailure = errors.New("processing failure")

	// ErrDuplicateAnalysis is returned when a concurrent writer already stored the
	// canonical analysis for a (file, kind) pair. Callers should re-read.
	ErrDuplicateAnalysis = fmt.Errorf("duplicate analysis: %w", ErrConflict)
)

// Specific conditions, each wrapping its kind.
var (
	ErrInvalidParameter  = fmt.Errorf("invalid parameter: %w", ErrInvalidInput)
	ErrUnsupportedFormat = fmt.Errorf("unsupported format: %w", ErrInvalidInput)
	ErrInvalidType       = fmt.Errorf("invalid file type: %w", ErrInvalidInput)
	ErrNoFile            = fmt.Errorf("no file: %w", ErrInvalidInput)
	ErrCorruptData       = fmt.Errorf("corrupt data: %w", ErrProcessingFailure)
)

// InvalidParameter returns an ErrInvalidParameter carrying a message for the caller.
func InvalidParameter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

// ProcessingFailure wraps cause so it classifies as ErrProcessingFailure while keeping
// the underlying message. Errors that already classify as any known kind pass through.
func ProcessingFailure(cause error) error {
	if cause == nil {
		return nil
	}
	if IsKnown(cause) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrProcessingFailure, cause)
}

// IsKnown reports whether err classifies as one of the top-level kinds.
func IsKnown(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrProcessingFailure)
}
