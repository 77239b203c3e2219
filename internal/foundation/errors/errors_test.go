package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "docpublish.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		file, exists := err.Context().GetString("file")
		if !exists || file != "docpublish.yaml" {
			t.Errorf("expected context file=docpublish.yaml, got %v", file)
		}
	})

	t.Run("Code falls back to category", func(t *testing.T) {
		err := NetworkError("clone failed").Build()
		if err.Code() != string(CategoryNetwork) {
			t.Errorf("expected code %q, got %q", CategoryNetwork, err.Code())
		}
		coded := GitError("push failed").WithCode("push_rejected").Build()
		if coded.Code() != "push_rejected" {
			t.Errorf("expected code push_rejected, got %q", coded.Code())
		}
	})

	t.Run("Detection through wrapping", func(t *testing.T) {
		inner := ValidationError("empty batch").WithCode("empty_batch").Build()
		wrapped := fmt.Errorf("upload: %w", inner)

		if !IsClassified(wrapped) {
			t.Fatal("expected wrapped error to be classified")
		}
		if !HasCategory(wrapped, CategoryValidation) {
			t.Error("expected validation category")
		}
		if !HasCode(wrapped, "empty_batch") {
			t.Error("expected empty_batch code")
		}
		if GetCategory(errors.New("plain")) != CategoryInternal {
			t.Error("expected unclassified errors to report internal")
		}
	})
}

func TestErrorBuilder(t *testing.T) {
	originalErr := errors.New("connection reset")
	err := WrapError(originalErr, CategoryNetwork, "clone failed").
		Warning().
		Retryable().
		WithContext("url", "https://example.com/site.git").
		Build()

	if err.RetryStrategy() != RetryBackoff {
		t.Errorf("expected retry strategy %s, got %s", RetryBackoff, err.RetryStrategy())
	}
	if !err.CanRetry() {
		t.Error("expected backoff errors to be retryable")
	}
	if !errors.Is(err, originalErr) {
		t.Error("expected error to wrap original error")
	}
	if err.Cause() != originalErr {
		t.Error("expected cause to be the original error")
	}
}

func TestWithContextDoesNotMutateOriginal(t *testing.T) {
	base := FileSystemError("write failed").WithContext("path", "a").Build()
	derived := base.WithContext("path", "b")

	if p, _ := base.Context().GetString("path"); p != "a" {
		t.Errorf("original context mutated: %s", p)
	}
	if p, _ := derived.Context().GetString("path"); p != "b" {
		t.Errorf("expected derived path b, got %s", p)
	}
}

func TestIsMatchesCategoryAndCode(t *testing.T) {
	a := GitError("push rejected").WithCode("push_rejected").Build()
	b := GitError("different message").WithCode("push_rejected").Build()
	c := GitError("push rejected").Build()

	if !errors.Is(a, b) {
		t.Error("expected errors with same category and code to match")
	}
	if errors.Is(a, c) {
		t.Error("expected different codes not to match")
	}
}
