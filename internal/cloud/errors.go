package cloud

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get calls when the resource does not exist.
var ErrNotFound = errors.New("resource not found")

// ErrCapabilityMissing is returned when the control plane lacks a required API.
var ErrCapabilityMissing = errors.New("capability not available")

// IsNotFound reports whether err indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// NotFoundError wraps ErrNotFound with the resource kind and ID.
func NotFoundError(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}
