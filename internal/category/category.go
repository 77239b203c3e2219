// Package category maps uploaded documents onto the fixed set of publication
// categories. The table below is the single place the publication taxonomy is
// defined; each category is bound to a storage directory and an index document
// inside the content repository.
package category

import (
	"path"
	"strings"
)

// Category is one of the fixed publication buckets.
type Category int

const (
	MaamareiMordechai Category = iota
	Kaarah

	numCategories
)

// Default receives every document that carries no category-specific signal.
const Default = MaamareiMordechai

type binding struct {
	key     string
	display string
	dir     string // storage directory, repository-relative
	index   string // index document, repository-relative
	prefix  string // lower-cased name/title prefix routing to this category
}

var table = [numCategories]binding{
	MaamareiMordechai: {
		key:     "maamarei_mordechai",
		display: "Maamarei Mordechai",
		dir:     "divrei_torah/maamarei_mordechai",
		index:   "maamarei_mordechai.html",
	},
	Kaarah: {
		key:     "kaarah",
		display: "Kaarah",
		dir:     "divrei_torah/kaarah",
		index:   "kaarah.html",
		prefix:  "kaarah",
	},
}

// All returns every category in table order.
func All() []Category {
	out := make([]Category, 0, numCategories)
	for c := Category(0); c < numCategories; c++ {
		out = append(out, c)
	}
	return out
}

// Valid reports whether c is a member of the closed set.
func (c Category) Valid() bool { return c >= 0 && c < numCategories }

func (c Category) binding() binding {
	if !c.Valid() {
		return table[Default]
	}
	return table[c]
}

// Key is the stable machine identifier (config, wire format, logs).
func (c Category) Key() string { return c.binding().key }

// String returns the human-readable name used in commit messages.
func (c Category) String() string { return c.binding().display }

// Dir returns the repository-relative storage directory.
func (c Category) Dir() string { return c.binding().dir }

// IndexPath returns the repository-relative path of the index document.
func (c Category) IndexPath() string { return c.binding().index }

// Link returns the site-root-relative link to a stored file in this category.
func (c Category) Link(storedName string) string {
	return "/" + path.Join(c.Dir(), storedName)
}

// Parse resolves a key or display name, case-insensitively.
func Parse(s string) (Category, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "" {
		return Default, false
	}
	for c := Category(0); c < numCategories; c++ {
		b := table[c]
		if norm == b.key || norm == strings.ToLower(b.display) {
			return c, true
		}
	}
	return Default, false
}

// Classify decides the category of a document. An explicit hint naming a known
// category wins; otherwise the title, then the declared file name, is matched
// against each category's prefix. Anything else falls back to Default.
func Classify(hint, declaredName, title string) Category {
	if c, ok := Parse(hint); ok {
		return c
	}
	for _, s := range []string{title, declaredName} {
		s = strings.ToLower(strings.TrimSpace(s))
		for c := Category(0); c < numCategories; c++ {
			if p := table[c].prefix; p != "" && strings.HasPrefix(s, p) {
				return c
			}
		}
	}
	return Default
}
