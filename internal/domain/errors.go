package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across layers. ErrRegistry and ErrRuntime classify
// failures by collaborator so the entry point can pick an exit code.
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidInputFile = errors.New("invalid input file")

	ErrRegistry = errors.New("registry error")
	ErrRuntime  = errors.New("runtime error")

	ErrRepositoryNotFound = errors.New("repository not found")
	ErrRepositoryExists   = errors.New("repository already exists")
	ErrImageNotFound      = errors.New("image not found")
)

// RemoteError is a failed registry or runtime call. It carries the failing
// unit's identity and the collaborator's raw diagnostic, and matches its
// Class sentinel under errors.Is.
type RemoteError struct {
	// Class is ErrRegistry or ErrRuntime.
	Class error
	// Op names the remote operation, e.g. "create-repository" or "pull".
	Op string
	// Unit identifies the unit of work, e.g. a repository name or image ref.
	Unit string
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Unit, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func (e *RemoteError) Is(target error) bool {
	return target == e.Class
}

// PartialError reports a phase that finished with fewer successful units
// than it attempted. It is only constructed after every unit of the phase
// has reported.
type PartialError struct {
	// Phase is "provisioning", "authentication" or "replication".
	Phase string
	// Class follows the phase's collaborator for exit-code mapping.
	Class     error
	Succeeded int
	Attempted int
	Failures  []error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%s incomplete: %d of %d units succeeded", e.Phase, e.Succeeded, e.Attempted)
}

func (e *PartialError) Unwrap() []error {
	return e.Failures
}

func (e *PartialError) Is(target error) bool {
	return target == e.Class
}
