package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hazyhaar/boardsnap/driver"
	"github.com/hazyhaar/boardsnap/selector"
)

// Config configures an Extractor.
type Config struct {
	// Registry supplies the selector chains. Default:
	// selector.DefaultRegistry().
	Registry *selector.Registry

	// BaseURL resolves root-relative link targets. Usually the board URL.
	BaseURL string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Registry == nil {
		c.Registry = selector.DefaultRegistry()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Extractor builds Cards from scoped DOM nodes.
type Extractor struct {
	cfg  Config
	base *url.URL
	log  *slog.Logger
}

// New creates an Extractor.
func New(cfg Config) (*Extractor, error) {
	cfg.defaults()
	var base *url.URL
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("extract: base url: %w", err)
		}
		base = u
	}
	return &Extractor{cfg: cfg, base: base, log: cfg.Logger}, nil
}

// Discover locates card nodes on the page using the cards chain.
func (e *Extractor) Discover(ctx context.Context, sess driver.Session) []driver.Element {
	chain, _ := e.cfg.Registry.Lookup(selector.ChainCards)
	return selector.Resolve(ctx, sess, chain, e.log)
}

// Extract builds one Card from one card node. Individual probe failures
// are logged and skipped; only total inability to read the node is an
// error, which callers treat as "skip this card".
func (e *Extractor) Extract(ctx context.Context, id int, node driver.Element) (*Card, error) {
	card := &Card{ID: id}

	markup, err := node.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract: card %d markup: %w", id, err)
	}
	card.RawMarkup = markup

	card.Title = e.extractTitle(ctx, node)
	card.Description = e.extractDescription(ctx, node)

	// Last resort: any visible text at all beats an empty card.
	if card.Title == "" && card.Description == "" {
		e.fillFromVisibleText(ctx, node, card)
	}

	card.Images = e.extractImages(ctx, node)

	probes := []struct {
		name string
		fn   func(context.Context, driver.Element) ([]FileCandidate, error)
	}{
		{"anchors", e.probeAnchors},
		{"attachment_buttons", e.probeAttachmentButtons},
		{"pdf_previews", e.probePDFPreviews},
		{"list_items", e.probeListItems},
		{"generic", e.probeGeneric},
	}
	for _, p := range probes {
		found, err := p.fn(ctx, node)
		if err != nil {
			e.log.Warn("extract: probe failed", "card", id, "probe", p.name, "error", err)
			continue
		}
		card.Files = append(card.Files, found...)
	}

	return card, nil
}

// extractTitle tries the application-specific header region first, then
// the generic structural selectors. Returns the first non-empty text.
func (e *Extractor) extractTitle(ctx context.Context, node driver.Element) string {
	for _, name := range []string{selector.ChainTitleApp, selector.ChainTitle} {
		chain, ok := e.cfg.Registry.Lookup(name)
		if !ok {
			continue
		}
		for _, el := range selector.Resolve(ctx, node, chain, e.log) {
			txt, err := el.Text(ctx)
			if err == nil && txt != "" {
				return firstLine(txt)
			}
		}
	}
	return ""
}

// extractDescription joins the text of every element matched by the
// winning selector, application-specific tier first.
func (e *Extractor) extractDescription(ctx context.Context, node driver.Element) string {
	for _, name := range []string{selector.ChainDescriptionApp, selector.ChainDescription} {
		chain, ok := e.cfg.Registry.Lookup(name)
		if !ok {
			continue
		}
		var parts []string
		for _, el := range selector.Resolve(ctx, node, chain, e.log) {
			txt, err := el.Text(ctx)
			if err == nil && txt != "" {
				parts = append(parts, txt)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	return ""
}

// fillFromVisibleText splits the node's full visible text into lines:
// first line becomes the title, the rest the description.
func (e *Extractor) fillFromVisibleText(ctx context.Context, node driver.Element, card *Card) {
	txt, err := node.Text(ctx)
	if err != nil || txt == "" {
		return
	}
	var lines []string
	for _, ln := range strings.Split(txt, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) == 0 {
		return
	}
	card.Title = lines[0]
	if len(lines) > 1 {
		card.Description = strings.Join(lines[1:], "\n")
	}
}

func (e *Extractor) extractImages(ctx context.Context, node driver.Element) []string {
	els, err := node.Query(ctx, "img")
	if err != nil {
		e.log.Warn("extract: image query failed", "error", err)
		return nil
	}
	var out []string
	for _, img := range els {
		src, err := img.Attr(ctx, "src")
		if err != nil {
			continue
		}
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			out = append(out, src)
		}
	}
	return out
}

// absolute resolves a root-relative target against the base URL.
func (e *Extractor) absolute(href string) string {
	if e.base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return e.base.ResolveReference(ref).String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
