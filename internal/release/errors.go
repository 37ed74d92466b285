// Package release creates the release record for a tag and attaches the staged artifacts to it.
package release

import (
	"fmt"
	"strings"

	"github.com/jonathan/boot-release/internal/types"
)

// CreateReleaseError is fatal: no artifact is uploaded after it
type CreateReleaseError struct {
	Tag     string
	Message string
	Exists  bool // A release for the tag was already published
	Cause   error
}

func (e *CreateReleaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("create release %s: %s: %v", e.Tag, e.Message, e.Cause)
	}
	return fmt.Sprintf("create release %s: %s", e.Tag, e.Message)
}

func (e *CreateReleaseError) Unwrap() error {
	return e.Cause
}

// UploadError reports one artifact that could not be attached
type UploadError struct {
	Key   string
	Cause error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Cause)
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}

// PartialPublishError means the release exists but some artifacts are missing
// from it. Uploaded artifacts are not rolled back.
type PartialPublishError struct {
	Release  *types.ReleaseRecord
	Uploaded []string
	Failures []*UploadError
}

func (e *PartialPublishError) Error() string {
	keys := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		keys = append(keys, f.Key)
	}
	return fmt.Sprintf("release %s partially published: %d uploaded, %d failed (%s)",
		e.Release.Tag, len(e.Uploaded), len(e.Failures), strings.Join(keys, ", "))
}

// Unwrap exposes every per-artifact failure to errors.As
func (e *PartialPublishError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}
