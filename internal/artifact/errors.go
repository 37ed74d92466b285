// Package artifact provides the write-once staging area that carries build
// outputs from the build stage to the publish stage.
package artifact

import "fmt"

// DuplicateKeyError is returned when a key is written twice. Across a
// platform set it means two descriptors share a published asset name.
type DuplicateKeyError struct {
	Key       string
	Platforms []string // Descriptors that collide, when detected at validation time
}

func (e *DuplicateKeyError) Error() string {
	if len(e.Platforms) > 0 {
		return fmt.Sprintf("duplicate artifact key %q (platforms %v)", e.Key, e.Platforms)
	}
	return fmt.Sprintf("duplicate artifact key %q", e.Key)
}

// DuplicatePlatformError is returned when two descriptors share a platform id.
// Build logs, staging directories and run history are all keyed by it.
type DuplicatePlatformError struct {
	PlatformID string
}

func (e *DuplicatePlatformError) Error() string {
	return fmt.Sprintf("duplicate platform id %q", e.PlatformID)
}

// NotFoundError is returned by Get when no artifact exists under the key
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("artifact not found: %q", e.Key)
}

// StoreError represents a backend failure unrelated to key semantics
type StoreError struct {
	Message string
	Cause   error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("artifact store error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("artifact store error: %s", e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}
