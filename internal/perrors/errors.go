// Package perrors declares the named error kinds the playbook engine's
// components surface, so TriggerHandlers and callers can distinguish
// failure modes with errors.Is/errors.As instead of string matching.
package perrors

import "errors"

// Sentinel error kinds, per the error handling design. Wrap with
// fmt.Errorf("...: %w", Kind) to attach context while keeping errors.Is
// working.
var (
	// ErrCorruptPlaybook is returned by Storage.Load when both the live
	// file and the most recent backup fail to parse.
	ErrCorruptPlaybook = errors.New("corrupt playbook")

	// ErrInvariantViolation is returned by Storage.Store when the
	// candidate playbook fails structural validation; nothing is written.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrLLMTransport is returned after exhausting retries against a
	// transport failure (network error, non-2xx status).
	ErrLLMTransport = errors.New("llm transport error")

	// ErrLLMSchema is returned when the model's reply fails JSON-schema
	// validation; never retried.
	ErrLLMSchema = errors.New("llm schema error")

	// ErrConcurrentUpdate is returned when a reflection's rebase against
	// the on-disk playbook is infeasible.
	ErrConcurrentUpdate = errors.New("concurrent update")

	// ErrTimeout is returned when a caller-supplied deadline elapses.
	ErrTimeout = errors.New("timeout")

	// ErrReflectionRejected is returned when a reflection's result fails
	// invariant validation after merges are applied; the snapshot taken
	// at the start of the reflection is restored.
	ErrReflectionRejected = errors.New("reflection rejected")
)
