package pipeline

import (
	"errors"
	"fmt"

	"github.com/jonathan/boot-release/internal/artifact"
	"github.com/jonathan/boot-release/internal/types"
)

// Process exit codes
const (
	ExitOK           = 0
	ExitUnexpected   = 1
	ExitBuildFailed  = 2
	ExitPublishFail  = 3
	ExitConfigFailed = 4
)

// ErrBusy is returned when a run is requested while another run is in flight
var ErrBusy = errors.New("a release run is already in progress")

// StageError attributes a run failure to the stage it happened in
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ExitCode maps a run error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var dup *artifact.DuplicateKeyError
	if errors.As(err, &dup) {
		return ExitConfigFailed
	}
	var dupPlatform *artifact.DuplicatePlatformError
	if errors.As(err, &dupPlatform) {
		return ExitConfigFailed
	}

	var se *StageError
	if errors.As(err, &se) {
		switch se.Stage {
		case types.StageConfig:
			return ExitConfigFailed
		case types.StageBuild:
			return ExitBuildFailed
		case types.StagePublish:
			return ExitPublishFail
		}
	}
	return ExitUnexpected
}
