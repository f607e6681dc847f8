package scrape

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Node is a queryable fragment of an HTML document. Lookups that match nothing
// report absence instead of failing.
type Node interface {
	// Find returns the first descendant matching selector.
	Find(selector string) (Node, bool)
	// FindAll returns every descendant matching selector in document order.
	FindAll(selector string) []Node
	// Text returns the trimmed text content.
	Text() string
	// Attr returns the value of the named attribute.
	Attr(name string) (string, bool)
}

// ParseDocument parses an HTML body into a Node.
func ParseDocument(body []byte) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return selectionNode{sel: doc.Selection}, nil
}

type selectionNode struct {
	sel *goquery.Selection
}

func (n selectionNode) Find(selector string) (Node, bool) {
	match := n.sel.Find(selector).First()
	if match.Length() == 0 {
		return nil, false
	}
	return selectionNode{sel: match}, true
}

func (n selectionNode) FindAll(selector string) []Node {
	matches := n.sel.Find(selector)
	out := make([]Node, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		out = append(out, selectionNode{sel: s})
	})
	return out
}

func (n selectionNode) Text() string {
	return strings.TrimSpace(n.sel.Text())
}

func (n selectionNode) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

// textOf returns the text of the first match, or "" when nothing matches.
func textOf(n Node, selector string) string {
	match, ok := n.Find(selector)
	if !ok {
		return ""
	}
	return match.Text()
}

// attrOf returns the trimmed attribute of the first match, or "".
func attrOf(n Node, selector, attr string) string {
	match, ok := n.Find(selector)
	if !ok {
		return ""
	}
	v, _ := match.Attr(attr)
	return strings.TrimSpace(v)
}
