// Package page finds availability placeholders on a rendered HTML page and
// writes loaded status text back into them.
package page

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sternrassler/catalog-availability/pkg/loader"
)

// ErrNoSelector is returned when Config.Selector is empty.
var ErrNoSelector = errors.New("placeholder selector is required")

// Config names the placeholder markup.
type Config struct {
	// Selector matches placeholder elements.
	Selector string

	// IDAttribute carries the record id on each placeholder.
	IDAttribute string
}

// DefaultConfig returns the markup used by the discovery templates.
func DefaultConfig() Config {
	return Config{
		Selector:    ".availability-ajax-load",
		IDAttribute: "data-availability-id",
	}
}

// Document is a parsed page.
//
// A Document is not safe for concurrent use; the loader is its only writer
// while a load runs.
type Document struct {
	doc          *goquery.Document
	placeholders []*Placeholder
}

// Parse reads an HTML page and collects its placeholders in document order.
func Parse(r io.Reader, cfg Config) (*Document, error) {
	if cfg.Selector == "" {
		return nil, ErrNoSelector
	}
	if cfg.IDAttribute == "" {
		cfg.IDAttribute = DefaultConfig().IDAttribute
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	d := &Document{doc: doc}
	doc.Find(cfg.Selector).Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr(cfg.IDAttribute)
		d.placeholders = append(d.placeholders, &Placeholder{sel: s, id: id})
	})

	return d, nil
}

// ParseString parses an HTML page held in a string.
func ParseString(html string, cfg Config) (*Document, error) {
	return Parse(strings.NewReader(html), cfg)
}

// Placeholders returns the page's placeholders in document order.
func (d *Document) Placeholders() []loader.Placeholder {
	out := make([]loader.Placeholder, len(d.placeholders))
	for i, p := range d.placeholders {
		out[i] = p
	}
	return out
}

// Elements returns the concrete placeholders in document order.
func (d *Document) Elements() []*Placeholder {
	return d.placeholders
}

// HTML serializes the page including any rendered status text.
func (d *Document) HTML() (string, error) {
	html, err := d.doc.Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return html, nil
}

// WriteTo writes the serialized page to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	html, err := d.HTML()
	if err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, html)
	return int64(n), err
}

// Placeholder is one element awaiting availability text.
type Placeholder struct {
	sel      *goquery.Selection
	id       string
	content  string
	rendered bool
}

// RecordID returns the id attribute value as found on the page.
func (p *Placeholder) RecordID() string {
	return p.id
}

// Render replaces the element's inner HTML. content is trusted markup.
func (p *Placeholder) Render(content string) {
	p.sel.SetHtml(content)
	p.content = content
	p.rendered = true
}

// Content returns the last rendered content.
func (p *Placeholder) Content() string {
	return p.content
}

// Rendered reports whether Render has been called.
func (p *Placeholder) Rendered() bool {
	return p.rendered
}
