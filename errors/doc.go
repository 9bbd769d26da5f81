// Package errors provides structured error types for the binder runtime.
//
// Errors are categorized by Phase (which layer raised the error) and Kind
// (error category). The Error type carries the remote handle involved, a
// human-readable detail and an optional cause.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDriver, errors.KindDeadObject).
//		Handle(7).
//		Detail("node %d was killed", 7).
//		Build()
//
// The sentinels ErrDeadObject, ErrNotFound, ErrAlreadyRegistered and
// ErrClosed carry no Phase and therefore match an error of the same Kind
// raised in any phase:
//
//	if errors.Is(err, errors.ErrDeadObject) {
//		// remote process is gone, drop the proxy
//	}
//
// Status is a plain int32 error used for opaque transport status codes that
// callers pass through without interpretation.
package errors
