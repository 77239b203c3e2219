// Package indexdoc models a category's published listing: an HTML page whose
// entry list (<ul id="file-list">) links to every published document, newest
// first.
package indexdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ListID is the id attribute of the element that anchors the entry list.
const ListID = "file-list"

// ErrMalformed is returned when a document has no entry-list anchor.
var ErrMalformed = errors.New("index document has no entry list")

// Entry is one published item in the listing.
type Entry struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Document is a parsed index page.
type Document struct {
	root *html.Node
	list *html.Node
}

// Load parses an existing listing.
func Load(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse index document: %w", err)
	}
	list := findByID(root, ListID)
	if list == nil {
		return nil, ErrMalformed
	}
	return &Document{root: root, list: list}, nil
}

// Parse is Load over a byte slice.
func Parse(markup []byte) (*Document, error) {
	return Load(bytes.NewReader(markup))
}

// Entries returns the listing in document order (newest first).
func (d *Document) Entries() []Entry {
	var out []Entry
	for c := d.list.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Li {
			continue
		}
		e := Entry{Title: extractText(c)}
		if a := findAtom(c, atom.A); a != nil {
			e.Link = getAttr(a, "href")
			e.Title = extractText(a)
		}
		out = append(out, e)
	}
	return out
}

// Prepend inserts e at the head of the listing. Existing entries keep their order.
func (d *Document) Prepend(e Entry) {
	a := &html.Node{
		Type:     html.ElementNode,
		Data:     "a",
		DataAtom: atom.A,
		Attr: []html.Attribute{
			{Key: "href", Val: e.Link},
			{Key: "target", Val: "_blank"},
		},
	}
	a.AppendChild(&html.Node{Type: html.TextNode, Data: e.Title})
	li := &html.Node{Type: html.ElementNode, Data: "li", DataAtom: atom.Li}
	li.AppendChild(a)

	first := d.list.FirstChild
	if isWhitespace(first) {
		// keep the page's indentation: <ws><new li><ws><old first li>
		indent := &html.Node{Type: html.TextNode, Data: first.Data}
		if next := first.NextSibling; next != nil {
			d.list.InsertBefore(li, next)
			d.list.InsertBefore(indent, next)
			return
		}
		d.list.AppendChild(li)
		d.list.AppendChild(indent)
		return
	}
	d.list.InsertBefore(li, first)
}

// Render serializes the document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// Bytes renders the document into memory.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return nil, fmt.Errorf("render index document: %w", err)
	}
	return buf.Bytes(), nil
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && getAttr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func findAtom(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
		if found := findAtom(c, a); found != nil {
			return found
		}
	}
	return nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func extractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text.WriteString(extractText(c))
	}
	return strings.Join(strings.Fields(text.String()), " ")
}

func isWhitespace(n *html.Node) bool {
	return n != nil && n.Type == html.TextNode && strings.TrimSpace(n.Data) == ""
}
