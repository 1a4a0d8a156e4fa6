package domain

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a session (or a stage inside it) terminally
// failed. Transient backend hiccups never surface as a Failure: they are
// absorbed by the LLM client's retry loop.
type FailureKind string

const (
	FailureTimeout             FailureKind = "timeout"
	FailureBackend             FailureKind = "backend_error"
	FailureParse               FailureKind = "parse_error"
	FailureTemplate            FailureKind = "template_error"
	FailureCancelled           FailureKind = "cancelled"
	FailureInsufficientCredits FailureKind = "insufficient_credits"
)

// Failure is a classified fatal error. Every exit from the stage executor
// and the LLM client crosses the orchestrator boundary as one of these,
// never as an unclassified fault.
type Failure struct {
	Kind FailureKind
	Err  error
}

func NewFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure extracts a Failure from an error chain, classifying anything
// unrecognized as a backend error.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: FailureBackend, Err: err}
}
