package types

import "fmt"

// ConfigurationError is returned when an addon configuration is invalid or
// cannot be applied.
type ConfigurationError struct {
	Addon string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for addon %s: %s", e.Addon, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// PipelineError is returned when an addon transform or validation fails.
type PipelineError struct {
	Addon string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("addon %s failed: %s", e.Addon, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// BackendError is returned when the storage backend fails to create a
// storage context or to upload a piece.
type BackendError struct {
	Op       string
	Provider string
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s with provider %s: %s", e.Op, e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed store write. It is logged and never
// returned to callers of the deal maker.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting %s: %s", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// VerificationError is confined to the verification sub-state of a deal.
type VerificationError struct {
	Stage string
	Err   error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("ipni verification (%s): %s", e.Stage, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }
