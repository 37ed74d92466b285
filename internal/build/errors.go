// Package build runs the per-platform build jobs and hands their outputs to the artifact store.
package build

import "fmt"

// BuildFailure reports that a platform's build job failed. It is fatal to the
// run but never to sibling jobs.
//
//nolint:revive // BuildFailure is the established name for this error in the pipeline's error taxonomy
type BuildFailure struct {
	PlatformID string
	Message    string
	ExitCode   int    // Exit status of the external build tool; -1 if it never ran or was killed
	Output     string // Tail of the build tool's combined output
	Cause      error
}

func (e *BuildFailure) Error() string {
	msg := fmt.Sprintf("build failed for %s: %s", e.PlatformID, e.Message)
	if e.ExitCode > 0 {
		msg = fmt.Sprintf("%s (exit code %d)", msg, e.ExitCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *BuildFailure) Unwrap() error {
	return e.Cause
}
