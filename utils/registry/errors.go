package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingReleases marks metadata whose releases object is absent entirely.
	ErrMissingReleases = errors.New("metadata has no releases object")

	// ErrNoUsableReleases marks metadata whose releases object decoded to zero usable entries.
	ErrNoUsableReleases = errors.New("metadata has no usable releases")
)

// InvalidModuleError reports a module metadata field that failed validation.
type InvalidModuleError struct {
	Field  string
	Reason string
}

func (e *InvalidModuleError) Error() string {
	return fmt.Sprintf("invalid module metadata: %s: %s", e.Field, e.Reason)
}

func NewInvalidModuleError(field, reason string) *InvalidModuleError {
	return &InvalidModuleError{Field: field, Reason: reason}
}

func IsInvalidModuleError(err error) bool {
	var invalidModuleError *InvalidModuleError
	return errors.As(err, &invalidModuleError)
}
