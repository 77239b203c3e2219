package staging

import (
	"context"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/category"
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/git"
	"git.home.luguber.info/inful/docpublish/internal/indexdoc"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/upload"
)

// Error codes produced by this package.
const (
	CodeNameCollision  = "name_collision"
	CodeMalformedIndex = "malformed_index"
)

// Area is one transaction's private clone of the remote.
type Area struct {
	id       string
	dir      string
	created  time.Time
	checkout git.Checkout
	manager  *Manager
	once     sync.Once
}

// ID is the unique identifier embedded in the directory name.
func (a *Area) ID() string { return a.id }

// Dir is the absolute path of the working copy.
func (a *Area) Dir() string { return a.dir }

// Branch is the branch the working copy tracks.
func (a *Area) Branch() string { return a.checkout.Branch() }

func (a *Area) abs(rel string) string {
	return filepath.Join(a.dir, filepath.FromSlash(rel))
}

// Place writes the item's content into c's directory under its sanitized
// name and returns the repository-relative path and stored name. An existing
// file at the target is never overwritten.
func (a *Area) Place(item upload.Item, c category.Category) (rel, stored string, err error) {
	stored = item.StoredName()
	if stored == "" || stored != filepath.Base(stored) {
		return "", "", errors.ValidationError("file name is empty after sanitizing").
			WithCode(upload.CodeInvalidMetadata).
			WithContext("file", item.DeclaredName).
			WithContext("category", c.Key()).
			Build()
	}

	rel = path.Join(c.Dir(), stored)
	full := a.abs(rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", "", errors.WrapError(err, errors.CategoryFileSystem, "failed to create category directory").
			WithContext("path", c.Dir()).
			Build()
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if stderrors.Is(err, fs.ErrExist) {
			return "", "", errors.NewError(errors.CategoryAlreadyExists, "a file with this name already exists").
				WithCode(CodeNameCollision).
				WithContext("file", stored).
				WithContext("path", rel).
				WithContext("category", c.Key()).
				Build()
		}
		return "", "", errors.WrapError(err, errors.CategoryFileSystem, "failed to create file").
			WithContext("path", rel).
			Build()
	}
	if _, err := f.Write(item.Content); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", "", errors.WrapError(err, errors.CategoryFileSystem, "failed to write file").
			WithContext("path", rel).
			Build()
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(full)
		return "", "", errors.WrapError(err, errors.CategoryFileSystem, "failed to write file").
			WithContext("path", rel).
			Build()
	}

	slog.Debug("Placed file", logfields.Path(rel), logfields.Category(c.Key()), slog.Int("bytes", len(item.Content)))
	return rel, stored, nil
}

// ReadIndex loads c's index document from the working copy. A missing file
// or one without the entry list is malformed_index.
func (a *Area) ReadIndex(c category.Category) (*indexdoc.Document, error) {
	f, err := os.Open(a.abs(c.IndexPath()))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, malformedIndex(c, indexdoc.ErrMalformed, "index document is missing")
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to open index document").
			WithContext("path", c.IndexPath()).
			Build()
	}
	defer func() { _ = f.Close() }()

	doc, err := indexdoc.Load(f)
	if err != nil {
		return nil, malformedIndex(c, err, "index document has no entry list")
	}
	return doc, nil
}

// WriteIndex renders doc over c's index document and returns its
// repository-relative path.
func (a *Area) WriteIndex(c category.Category, doc *indexdoc.Document) (string, error) {
	data, err := doc.Bytes()
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryInternal, "failed to render index document").
			WithContext("category", c.Key()).
			Build()
	}
	rel := c.IndexPath()
	if err := os.WriteFile(a.abs(rel), data, 0o644); err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to write index document").
			WithContext("path", rel).
			Build()
	}
	return rel, nil
}

// StageAndCommit stages exactly paths and records one commit.
func (a *Area) StageAndCommit(paths []string, message string) (string, error) {
	if err := a.checkout.Add(paths...); err != nil {
		return "", err
	}
	return a.checkout.Commit(message)
}

// Push publishes the commit to the tracked branch.
func (a *Area) Push(ctx context.Context) error {
	return a.checkout.Push(ctx)
}

// Release removes the working copy. Only the first call has an effect and
// failures are logged, never returned.
func (a *Area) Release() {
	a.once.Do(func() {
		defer a.manager.forget(a.id)
		if err := os.RemoveAll(a.dir); err != nil {
			slog.Warn("Failed to remove staging area", logfields.Path(a.dir), logfields.Error(err))
			return
		}
		slog.Debug("Released staging area", logfields.Path(a.dir),
			logfields.DurationMS(float64(time.Since(a.created).Milliseconds())))
	})
}

func malformedIndex(c category.Category, cause error, msg string) error {
	return errors.WrapError(cause, errors.CategoryIndex, msg).
		WithCode(CodeMalformedIndex).
		WithContext("category", c.Key()).
		WithContext("path", c.IndexPath()).
		Build()
}
