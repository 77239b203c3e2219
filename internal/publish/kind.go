package publish

import (
	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/git"
	"git.home.luguber.info/inful/docpublish/internal/staging"
	"git.home.luguber.info/inful/docpublish/internal/upload"
)

// Kind is the closed set of publish failure kinds, carried as the error code.
type Kind string

const (
	KindEmptyBatch          Kind = upload.CodeEmptyBatch
	KindInvalidMetadata     Kind = upload.CodeInvalidMetadata
	KindUnsupportedFileType Kind = upload.CodeUnsupportedFileType
	KindNameCollision       Kind = staging.CodeNameCollision
	KindMalformedIndex      Kind = staging.CodeMalformedIndex
	KindRemoteUnavailable   Kind = git.CodeRemoteUnavailable
	KindPushRejected        Kind = git.CodePushRejected
)

var kinds = map[Kind]struct{}{
	KindEmptyBatch:          {},
	KindInvalidMetadata:     {},
	KindUnsupportedFileType: {},
	KindNameCollision:       {},
	KindMalformedIndex:      {},
	KindRemoteUnavailable:   {},
	KindPushRejected:        {},
}

// KindOf extracts the failure kind from err. It reports false for nil errors
// and for errors outside the taxonomy (filesystem faults, lock timeouts).
func KindOf(err error) (Kind, bool) {
	ce, ok := errors.AsClassified(err)
	if !ok {
		return "", false
	}
	k := Kind(ce.Code())
	_, known := kinds[k]
	return k, known
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

// Transient reports whether resubmitting the identical batch may succeed.
func (k Kind) Transient() bool {
	return k == KindRemoteUnavailable || k == KindPushRejected
}
