package git

import (
	"context"
	stderrors "errors"
	"strings"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
)

// Error codes produced by this package.
const (
	CodeRemoteUnavailable = "remote_unavailable"
	CodePushRejected      = "push_rejected"
)

// classifyCloneError wraps any clone failure as remote_unavailable. The
// underlying reason is kept in the context for diagnostics.
func classifyCloneError(url string, err error) error {
	return errors.NetworkError("remote repository unavailable").
		WithCode(CodeRemoteUnavailable).
		WithCause(err).
		WithContext("op", "clone").
		WithContext("url", logfields.Redact(url)).
		WithContext("reason", failureReason(err)).
		Build()
}

// classifyPushError wraps any push failure as push_rejected.
func classifyPushError(url, branch string, err error) error {
	return errors.GitError("push rejected by remote").
		WithCode(CodePushRejected).
		WithCause(err).
		WithContext("op", "push").
		WithContext("url", logfields.Redact(url)).
		WithContext("branch", branch).
		WithContext("reason", failureReason(err)).
		Build()
}

// failureReason maps go-git error text onto a short diagnostic label.
func failureReason(err error) string {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if stderrors.Is(err, context.Canceled) {
		return "canceled"
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "authorization") ||
		strings.Contains(l, "not authorized") || strings.Contains(l, "invalid credentials"):
		return "auth"
	case strings.Contains(l, "non-fast-forward") || strings.Contains(l, "some refs were not updated") ||
		strings.Contains(l, "fetch first"):
		return "non_fast_forward"
	case strings.Contains(l, "repository not found") || strings.Contains(l, "not found") ||
		strings.Contains(l, "does not exist"):
		return "not_found"
	case strings.Contains(l, "remote repository is empty"):
		return "empty_remote"
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		return "rate_limit"
	case strings.Contains(l, "timeout") || strings.Contains(l, "connection reset") ||
		strings.Contains(l, "remote hung up") || strings.Contains(l, "no route to host") ||
		strings.Contains(l, "connection refused"):
		return "network"
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		return "unsupported_protocol"
	default:
		return "unknown"
	}
}
