// Package errors provides the classified error primitives used across docpublish.
//
// Every failure that can reach a caller is a ClassifiedError carrying:
//   - ErrorCategory: broad classification used for routing (validation, git, network, ...)
//   - ErrorSeverity: impact level
//   - RetryStrategy: whether the caller may safely resubmit
//   - Code: a stable machine-readable identifier (publish error kinds live here)
//   - Context: structured key/value detail (item position, file, category, ...)
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryGit, "push rejected").
//		WithCode("push_rejected").
//		Retryable().
//		WithContext("branch", branch).
//		WithCause(pushErr).
//		Build()
package errors
