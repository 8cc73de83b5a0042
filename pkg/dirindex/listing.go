package dirindex

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Listing is the page served at "/" for a root without an index.html. It
// is built once and never changes afterwards.
type Listing struct {
	BaseURL string
	Entries []string
	Page    []byte
	Built   time.Time
}

// BuildListing walks root and renders a page with one absolute link per
// regular file, of the form {baseURL}/{relative path}.
func BuildListing(root, baseURL string) (*Listing, error) {
	entries, err := Walk(root)
	if err != nil {
		return nil, err
	}

	l := &Listing{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Entries: entries,
		Built:   time.Now(),
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, l.document()); err != nil {
		return nil, fmt.Errorf("render listing: %w", err)
	}
	l.Page = buf.Bytes()

	return l, nil
}

// Href is the link the page uses for entry.
func (l *Listing) Href(entry string) string {
	segments := strings.Split(entry, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return l.BaseURL + "/" + strings.Join(segments, "/")
}

func (l *Listing) document() *html.Node {
	pre := element(atom.Pre)
	pre.AppendChild(text("\n"))
	for _, entry := range l.Entries {
		a := element(atom.A, html.Attribute{Key: "href", Val: l.Href(entry)})
		a.AppendChild(text(entry))
		pre.AppendChild(a)
		pre.AppendChild(text("\n"))
	}

	title := element(atom.Title)
	title.AppendChild(text("Index of " + l.BaseURL))

	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, html.Attribute{Key: "charset", Val: "utf-8"}))
	head.AppendChild(title)

	body := element(atom.Body)
	body.AppendChild(pre)

	root := element(atom.Html)
	root.AppendChild(head)
	root.AppendChild(body)

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(root)
	return doc
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
