package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// fallbackStemLen is the number of content-hash hex digits used to name a
// file whose declared stem has no usable characters.
const fallbackStemLen = 8

// Item is one document of a batch. It is immutable once parsed.
type Item struct {
	Content      []byte
	DeclaredName string
	CategoryHint string
	Title        string
}

// Extension returns the lower-cased extension of the declared name without
// the dot, or "" when there is none.
func (i Item) Extension() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(i.DeclaredName), "."))
}

// StoredName is the sanitized file name the item is placed under. Names
// with no ASCII-representable stem are named after their content hash.
func (i Item) StoredName() string {
	return SanitizeName(i.DeclaredName, i.contentStem())
}

func (i Item) contentStem() string {
	sum := sha256.Sum256(i.Content)
	return hex.EncodeToString(sum[:])[:fallbackStemLen]
}
