// Package dom provides the element tree widgets are mounted into.
// Elements are golang.org/x/net/html nodes, so a document can be parsed from
// and rendered back to HTML.
package dom

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	ErrNoParent       = errors.New("dom: element has no parent")
	ErrUnknownElement = errors.New("dom: element not found")
	ErrNoBody         = errors.New("dom: document has no body")
)

// Document is an HTML element tree.
type Document struct {
	root *html.Node
}

// NewDocument returns an empty document with html, head and body elements.
func NewDocument() *Document {
	doc, err := Parse(strings.NewReader(""))
	if err != nil {
		// parsing an empty string never fails
		panic("dom: failed to build empty document: " + err.Error())
	}
	return doc
}

// Parse builds a document from HTML source.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse document: %w", err)
	}
	return &Document{root: root}, nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the body element, or nil if the document has none.
func (d *Document) Body() *html.Node {
	return find(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Body
	})
}

// CreateElement returns a new detached element with the given tag.
func (d *Document) CreateElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

// GetElementByID returns the first element in document order whose id
// attribute equals id, or nil.
func (d *Document) GetElementByID(id string) *html.Node {
	return find(d.root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		v, ok := Attribute(n, "id")
		return ok && v == id
	})
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document, logging and returning "" on failure.
func (d *Document) String() string {
	var sb strings.Builder
	if err := d.Render(&sb); err != nil {
		log.Error().Err(err).Msg("failed to render document")
		return ""
	}
	return sb.String()
}

// Detach removes n from its parent.
func Detach(n *html.Node) error {
	if n == nil {
		return ErrUnknownElement
	}
	if n.Parent == nil {
		return ErrNoParent
	}
	n.Parent.RemoveChild(n)
	return nil
}

// Attribute returns the value of the attribute key on n.
func Attribute(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttribute sets or replaces the attribute key on n.
func SetAttribute(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// ID returns the id attribute of n.
func ID(n *html.Node) string {
	v, _ := Attribute(n, "id")
	return v
}

// SetText replaces the children of n with a single text node.
func SetText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// Text returns the concatenated text content of n.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	if n != nil {
		walk(n)
	}
	return sb.String()
}

// Children returns the element children of n in order.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// find walks the tree depth-first in document order.
func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n == nil {
		return nil
	}
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}
