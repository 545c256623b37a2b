// Package document wraps goquery to give the retrieval tools a tolerant HTML
// model: selector queries, tag queries, and text extraction with the
// whitespace rules the tools report to clients.
package document

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Document is a parsed HTML page. Parsing never fails on malformed markup;
// the tree is built best-effort the way browsers do.
type Document struct {
	doc *goquery.Document
}

// Anchor is an <a> element carrying an href attribute.
type Anchor struct {
	Href string
	Text string
}

// MetaTag is a name/property → content pair from a <meta> element.
type MetaTag struct {
	Name    string
	Content string
}

// Parse builds a Document from raw markup. Scripting is off, so <noscript>
// content is parsed as elements rather than one raw text node.
func Parse(body []byte) (*Document, error) {
	root, err := html.ParseWithOptions(bytes.NewReader(body), html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: goquery.NewDocumentFromNode(root)}, nil
}

// CompileSelector validates a CSS selector (groups allowed).
func CompileSelector(selector string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", selector, err)
	}
	return sel, nil
}

// Select returns every element matching selector in document order.
func (d *Document) Select(selector string) (*goquery.Selection, error) {
	sel, err := CompileSelector(selector)
	if err != nil {
		return nil, err
	}
	return d.Match(sel), nil
}

// Match returns every element matching a precompiled selector.
func (d *Document) Match(sel cascadia.Selector) *goquery.Selection {
	return d.doc.FindMatcher(sel)
}

// Find returns elements matching selector, or an empty selection when the
// selector does not compile.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Title returns the stripped text of the first <title> element.
func (d *Document) Title() (string, bool) {
	title := d.doc.Find("title").First()
	if title.Length() == 0 {
		return "", false
	}
	return StrippedText(title), true
}

// MetaTags returns every <meta> element with a non-empty name (or, failing
// that, property) and a non-empty content, in document order.
func (d *Document) MetaTags() []MetaTag {
	var tags []MetaTag
	d.doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		if name == "" {
			name = s.AttrOr("property", "")
		}
		content := s.AttrOr("content", "")
		if name == "" || content == "" {
			return
		}
		tags = append(tags, MetaTag{Name: name, Content: content})
	})
	return tags
}

// Headings returns the stripped text of at most limit elements named tag.
func (d *Document) Headings(tag string, limit int) []string {
	out := make([]string, 0, limit)
	d.doc.Find(tag).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(out) >= limit {
			return false
		}
		out = append(out, StrippedText(s))
		return true
	})
	return out
}

// Anchors returns every <a href> in document order. An empty href still
// counts; it resolves to the page itself.
func (d *Document) Anchors() []Anchor {
	var anchors []Anchor
	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		anchors = append(anchors, Anchor{Href: href, Text: StrippedText(s)})
	})
	return anchors
}

// PlainText flattens the page to a single line of text. Script and style
// contents are skipped, each line and each double-space separated phrase is
// trimmed, empty pieces are dropped, and the rest are joined by single spaces.
func (d *Document) PlainText() string {
	var sb strings.Builder
	for _, n := range d.doc.Nodes {
		collectText(n, &sb, map[string]bool{"script": true, "style": true})
	}
	return NormalizeWhitespace(sb.String())
}

// StrippedText concatenates every descendant text node of the selection's
// first element, each trimmed, with no separator.
func StrippedText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(s.Get(0))
	return sb.String()
}

// NormalizeWhitespace applies the line/phrase collapsing used by PlainText.
func NormalizeWhitespace(text string) string {
	var pieces []string
	for _, line := range strings.FieldsFunc(text, isLineBreak) {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				pieces = append(pieces, phrase)
			}
		}
	}
	return strings.Join(pieces, " ")
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Length counts characters, not bytes.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

func collectText(n *html.Node, sb *strings.Builder, skip map[string]bool) {
	switch n.Type {
	case html.ElementNode:
		if skip[n.Data] {
			return
		}
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb, skip)
	}
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
		return true
	}
	return false
}
