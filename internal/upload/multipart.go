package upload

import (
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
)

// Wire format field names.
const (
	FileField      = "file"
	TitlePrefix    = "title_"
	CategoryPrefix = "category_"
)

const maxFieldBytes = 4 << 10

// ParseRequest reads a multipart batch in arrival order. File parts become
// items 1..N; title_N and category_N fields attach to the N-th file. The
// whole body is bounded by p.MaxBytes.
func ParseRequest(r *http.Request, p *Policy) ([]Item, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, invalidRequest("expected a multipart/form-data body", err)
	}
	return parseParts(mr, p.MaxBytes())
}

func parseParts(mr *multipart.Reader, budget int64) ([]Item, error) {
	var items []Item
	titles := map[int]string{}
	hints := map[int]string{}

	for {
		part, err := mr.NextPart()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, invalidRequest("malformed multipart body", err)
		}

		name := part.FormName()
		switch {
		case name == FileField:
			data, err := readLimited(part, &budget)
			if err != nil {
				return nil, err
			}
			items = append(items, Item{Content: data, DeclaredName: part.FileName()})

		case strings.HasPrefix(name, TitlePrefix), strings.HasPrefix(name, CategoryPrefix):
			pos, target, ok := positional(name, titles, hints)
			if !ok {
				_ = part.Close()
				continue
			}
			data, err := readField(part, &budget)
			if err != nil {
				return nil, err
			}
			target[pos] = strings.TrimSpace(string(data))

		default:
			// unknown fields are drained against the budget
			if _, err := readField(part, &budget); err != nil {
				return nil, err
			}
		}
		_ = part.Close()
	}

	for i := range items {
		items[i].Title = titles[i+1]
		items[i].CategoryHint = hints[i+1]
	}
	if extra := orphanFields(len(items), titles, hints); len(extra) > 0 {
		return nil, errors.ValidationError("metadata fields without a matching file").
			WithCode(CodeInvalidMetadata).
			UserAction().
			WithContext("fields", strings.Join(extra, ",")).
			Build()
	}
	return items, nil
}

// positional resolves title_N / category_N to its 1-based index and map.
func positional(name string, titles, hints map[int]string) (int, map[int]string, bool) {
	target, suffix := titles, strings.TrimPrefix(name, TitlePrefix)
	if strings.HasPrefix(name, CategoryPrefix) {
		target, suffix = hints, strings.TrimPrefix(name, CategoryPrefix)
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 1 {
		return 0, nil, false
	}
	return n, target, true
}

func orphanFields(n int, titles, hints map[int]string) []string {
	var out []string
	for pos := range titles {
		if pos > n {
			out = append(out, TitlePrefix+strconv.Itoa(pos))
		}
	}
	for pos := range hints {
		if pos > n {
			out = append(out, CategoryPrefix+strconv.Itoa(pos))
		}
	}
	sort.Strings(out)
	return out
}

func readLimited(r io.Reader, budget *int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, *budget+1))
	if err != nil {
		return nil, invalidRequest("failed to read request body", err)
	}
	if int64(len(data)) > *budget {
		return nil, errors.ValidationError("request body exceeds the upload limit").
			WithCode(CodeRequestTooLarge).
			UserAction().
			Build()
	}
	*budget -= int64(len(data))
	return data, nil
}

func readField(r io.Reader, budget *int64) ([]byte, error) {
	data, err := readLimited(r, budget)
	if err != nil {
		return nil, err
	}
	if len(data) > maxFieldBytes {
		return nil, invalidRequest(fmt.Sprintf("form field longer than %d bytes", maxFieldBytes), nil)
	}
	return data, nil
}

func invalidRequest(msg string, cause error) error {
	b := errors.ValidationError(msg).WithCode(CodeInvalidRequest).UserAction()
	if cause != nil {
		b = b.WithCause(cause)
	}
	return b.Build()
}
