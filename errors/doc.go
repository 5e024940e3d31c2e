// Package errors provides structured error types for the lifecycle library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes context: the PID or token involved, a
// human-readable detail, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseSpawn, errors.KindCreationFailed).
//		Detail("instantiate module").
//		Cause(instErr).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.CreationFailed(spawnErr)
//	err := errors.Exhausted(limit)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
