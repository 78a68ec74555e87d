package supervisor

import (
	"errors"
	"fmt"
)

// ProcessLaunchError means the server binary could not be executed at all
// (missing binary, permissions, bad arguments rejected by exec).
type ProcessLaunchError struct {
	Bin string
	Err error
}

func (e *ProcessLaunchError) Error() string {
	return fmt.Sprintf("launch inference server %q: %v", e.Bin, e.Err)
}

func (e *ProcessLaunchError) Unwrap() error { return e.Err }

// ModelLoadError means the server started but never became healthy, either
// because it exited or because the readiness deadline passed.
type ModelLoadError struct {
	Model string
	Err   error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("model %q failed to load: %v (try picking another model)", e.Model, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// IsProcessLaunch reports whether err is, or wraps, a ProcessLaunchError.
func IsProcessLaunch(err error) bool {
	var e *ProcessLaunchError
	return errors.As(err, &e)
}

// IsModelLoad reports whether err is, or wraps, a ModelLoadError.
func IsModelLoad(err error) bool {
	var e *ModelLoadError
	return errors.As(err, &e)
}

var (
	errExitedBeforeReady = errors.New("server exited before becoming ready")
	errNotReadyInTime    = errors.New("server not ready in time")
)
