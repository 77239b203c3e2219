package publish

import (
	"fmt"
	"strings"
)

// Published describes one document in a pushed commit.
type Published struct {
	Title        string `json:"title"`
	DeclaredName string `json:"declared_name"`
	StoredName   string `json:"stored_name"`
	Category     string `json:"category"`
	Path         string `json:"path"`
	Link         string `json:"link"`
}

// Result is returned for a batch that reached the remote.
type Result struct {
	TxID     string      `json:"tx_id"`
	Commit   string      `json:"commit"`
	Branch   string      `json:"branch"`
	Message  string      `json:"message"`
	Attempts int         `json:"attempts"`
	Items    []Published `json:"items"`
}

// Summary renders the plain-text success body: one line per document.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Uploaded %d file(s) in commit %s\n", len(r.Items), shortHash(r.Commit))
	for _, it := range r.Items {
		fmt.Fprintf(&b, "%s: %q -> %s\n", it.StoredName, it.Title, it.Path)
	}
	return b.String()
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
