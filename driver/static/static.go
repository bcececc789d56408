// Package static implements the driver contract over a parsed HTML
// snapshot. It backs deterministic extraction tests and offline
// re-extraction from a saved page_source.html. Operations that need a
// live browser (clicks, tabs, network capture) return
// driver.ErrStaticSession.
package static

import (
	"context"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/boardsnap/driver"
)

// Session is a read-only page session over a parsed document.
type Session struct {
	doc *goquery.Document
	url string
}

var _ driver.Session = (*Session)(nil)

// strict strips every tag, including script and style bodies, leaving
// visible text only.
var strict = bluemonday.StrictPolicy()

var spaceRun = regexp.MustCompile(`[ \t]+`)

// New parses an HTML snapshot. pageURL is what Session.URL reports.
func New(htmlSrc, pageURL string) (*Session, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		return nil, fmt.Errorf("static: parse: %w", err)
	}
	return &Session{doc: doc, url: pageURL}, nil
}

// NewFromFile parses a saved snapshot file.
func NewFromFile(path, pageURL string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("static: read %s: %w", path, err)
	}
	return New(string(data), pageURL)
}

// Navigate records the URL. The document is fixed at construction, so
// there is nothing to load.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.url = url
	return nil
}

// WaitReady is immediate for a parsed document.
func (s *Session) WaitReady(ctx context.Context, timeout time.Duration) error {
	return nil
}

func (s *Session) Query(ctx context.Context, selector string) ([]driver.Element, error) {
	return wrapSelection(s.doc.Find(selector)), nil
}

func (s *Session) PageSource(ctx context.Context) (string, error) {
	out, err := s.doc.Html()
	if err != nil {
		return "", fmt.Errorf("static: render: %w", err)
	}
	return out, nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, driver.ErrStaticSession
}

func (s *Session) Tabs(ctx context.Context) ([]driver.TabInfo, error) {
	return []driver.TabInfo{{ID: "main", URL: s.url}}, nil
}

func (s *Session) ActivateTab(ctx context.Context, id string) (string, error) {
	return "", driver.ErrStaticSession
}

func (s *Session) CloseTab(ctx context.Context, id string) error {
	return driver.ErrStaticSession
}

func (s *Session) Responses(ctx context.Context, limit int) ([]driver.ResponseEvent, error) {
	return nil, driver.ErrStaticSession
}

func (s *Session) URL() string { return s.url }

func (s *Session) Close() error { return nil }

// element wraps a single-node goquery selection.
type element struct {
	sel *goquery.Selection
}

var _ driver.Element = (*element)(nil)

func wrapSelection(sel *goquery.Selection) []driver.Element {
	out := make([]driver.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &element{sel: s})
	})
	return out
}

// Text returns the node's visible text: tags, scripts and styles are
// stripped, entities decoded, whitespace runs collapsed per line.
func (e *element) Text(ctx context.Context) (string, error) {
	inner, err := e.sel.Html()
	if err != nil {
		return "", fmt.Errorf("static: inner html: %w", err)
	}
	return VisibleText(inner), nil
}

func (e *element) Attr(ctx context.Context, name string) (string, error) {
	v, _ := e.sel.Attr(name)
	return v, nil
}

func (e *element) HTML(ctx context.Context) (string, error) {
	inner, err := e.sel.Html()
	if err != nil {
		return "", fmt.Errorf("static: inner html: %w", err)
	}
	return inner, nil
}

func (e *element) Tag(ctx context.Context) (string, error) {
	return goquery.NodeName(e.sel), nil
}

func (e *element) Query(ctx context.Context, selector string) ([]driver.Element, error) {
	return wrapSelection(e.sel.Find(selector)), nil
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	return nil
}

func (e *element) Click(ctx context.Context) error {
	return driver.ErrStaticSession
}

// VisibleText derives readable text from a markup fragment.
func VisibleText(markup string) string {
	// Keep line structure: block-ish boundaries become newlines before
	// the sanitizer flattens the markup.
	blockBreak := regexp.MustCompile(`(?i)<(/?)(p|div|br|li|tr|h[1-6])[^>]*>`)
	src := blockBreak.ReplaceAllString(markup, "\n$0")

	txt := strict.Sanitize(src)
	txt = html.UnescapeString(txt)

	lines := strings.Split(txt, "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		ln = strings.TrimSpace(spaceRun.ReplaceAllString(ln, " "))
		if ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}
