package upload

import (
	"strings"

	"git.home.luguber.info/inful/docpublish/internal/category"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
)

// Error codes produced by this package.
const (
	CodeEmptyBatch          = "empty_batch"
	CodeInvalidMetadata     = "invalid_metadata"
	CodeUnsupportedFileType = "unsupported_file_type"
	CodeRequestTooLarge     = "request_too_large"
	CodeInvalidRequest      = "invalid_request"
)

// EmptyBatchError is returned for a batch without items.
func EmptyBatchError() error {
	return errors.ValidationError("batch contains no files").
		WithCode(CodeEmptyBatch).
		UserAction().
		Build()
}

// Validate checks a whole batch against p, failing on the first offending
// item. Nothing is partially accepted.
func Validate(items []Item, p *Policy) error {
	if len(items) == 0 {
		return EmptyBatchError()
	}
	for i, it := range items {
		if err := validateItem(i+1, it, p); err != nil {
			return err
		}
	}
	return nil
}

func validateItem(pos int, it Item, p *Policy) error {
	fail := func(code, msg string) error {
		return errors.ValidationError(msg).
			WithCode(code).
			UserAction().
			WithContext("item", pos).
			WithContext("file", it.DeclaredName).
			WithContext("title", it.Title).
			Build()
	}

	if !p.Allows(it.Extension()) {
		return fail(CodeUnsupportedFileType, "file type is not allowed; accepted: "+strings.Join(p.Extensions(), ", "))
	}
	if strings.TrimSpace(it.Title) == "" {
		return fail(CodeInvalidMetadata, "title is required")
	}
	if it.CategoryHint != "" {
		if _, ok := category.Parse(it.CategoryHint); !ok {
			return fail(CodeInvalidMetadata, "unknown category "+it.CategoryHint)
		}
	}
	if it.StoredName() == "" {
		return fail(CodeInvalidMetadata, "file name has no usable characters")
	}
	return nil
}
