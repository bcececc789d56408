package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/hazyhaar/boardsnap/driver"
)

// docNamePattern matches a filename token carrying a known document
// extension inside a label ("Einführung.pptx", "notes.pdf ansehen").
var docNamePattern = regexp.MustCompile(`(?i)([^\s"'<>]+\.(?:pdf|pptx|docx|xlsx))`)

// fileKeywords flag attachment-related title attributes. German terms
// included because the target boards are frequently German-language.
var fileKeywords = []string{"file", "download", "attachment", "anhang", "datei", "dokument"}

// probeAnchors collects plain hyperlinks: absolute or root-relative
// targets become direct links. Script pseudo-targets are kept as-is so
// the resolver can log and skip them; they are never dereferenced.
func (e *Extractor) probeAnchors(ctx context.Context, node driver.Element) ([]FileCandidate, error) {
	anchors, err := node.Query(ctx, "a")
	if err != nil {
		return nil, err
	}
	var out []FileCandidate
	for _, a := range anchors {
		href, err := a.Attr(ctx, "href")
		if err != nil || href == "" {
			continue
		}
		switch {
		case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
			// keep as-is
		case strings.HasPrefix(href, "/"):
			href = e.absolute(href)
		case strings.HasPrefix(href, "javascript:"):
			// pseudo-URL, resolver skips it
		default:
			continue
		}
		text, _ := a.Text(ctx)
		out = append(out, FileCandidate{
			URL:         href,
			DisplayText: text,
			Kind:        KindDirectLink,
		})
	}
	return out, nil
}

// probeAttachmentButtons finds styled buttons that carry their target in
// an attribute: a data-url, an inline click handler, or a file-related
// title.
func (e *Extractor) probeAttachmentButtons(ctx context.Context, node driver.Element) ([]FileCandidate, error) {
	var out []FileCandidate

	withURL, err := node.Query(ctx, "[data-url]")
	if err != nil {
		return nil, err
	}
	for _, el := range withURL {
		u, _ := el.Attr(ctx, "data-url")
		text := labelOf(ctx, el)
		if strings.HasPrefix(u, "/") {
			u = e.absolute(u)
		}
		out = append(out, FileCandidate{
			URL:         u,
			DisplayText: text,
			Kind:        KindAttachmentButton,
			Element:     el,
		})
	}

	withHandler, err := node.Query(ctx, "[onclick]")
	if err != nil {
		return out, err
	}
	for _, el := range withHandler {
		out = append(out, FileCandidate{
			DisplayText: labelOf(ctx, el),
			Kind:        KindAttachmentButton,
			Element:     el,
		})
	}

	titled, err := node.Query(ctx, "[title]")
	if err != nil {
		return out, err
	}
	for _, el := range titled {
		title, _ := el.Attr(ctx, "title")
		if !containsAny(strings.ToLower(title), fileKeywords) {
			continue
		}
		out = append(out, FileCandidate{
			DisplayText: title,
			Kind:        KindAttachmentButton,
			Element:     el,
		})
	}

	return out, nil
}

// probePDFPreviews finds clickable preview containers rendered for
// office documents. A container only qualifies when a recognizable
// document filename is found in its accessible label or nearby label
// text; containers without one are discarded, not added with a
// placeholder.
func (e *Extractor) probePDFPreviews(ctx context.Context, node driver.Element) ([]FileCandidate, error) {
	containers, err := node.Query(ctx, `[role="button"], [class*="preview"], [class*="thumbnail"]`)
	if err != nil {
		return nil, err
	}
	var out []FileCandidate
	for _, el := range containers {
		// Preview containers render the document as an image.
		imgs, err := el.Query(ctx, "img, canvas, embed")
		if err != nil || len(imgs) == 0 {
			continue
		}

		name := docNameOf(ctx, el)
		if name == "" {
			continue
		}
		out = append(out, FileCandidate{
			DisplayText: name,
			Kind:        KindPDFPreview,
			Element:     el,
		})
	}
	return out, nil
}

// probeListItems finds list-style attachment rows: a list item carrying
// an office-document icon whose label names a recognized document.
func (e *Extractor) probeListItems(ctx context.Context, node driver.Element) ([]FileCandidate, error) {
	items, err := node.Query(ctx, `li, [role="listitem"]`)
	if err != nil {
		return nil, err
	}
	var out []FileCandidate
	for _, el := range items {
		icons, err := el.Query(ctx, `[class*="mdi-file"], [class*="file-icon"], [class*="icon-file"], [class*="doc-icon"]`)
		if err != nil || len(icons) == 0 {
			continue
		}
		name := docNameOf(ctx, el)
		if name == "" {
			continue
		}
		out = append(out, FileCandidate{
			DisplayText: name,
			Kind:        KindListItem,
			Element:     el,
		})
	}
	return out, nil
}

// probeGeneric sweeps up any remaining element carrying a generic
// file/attachment/download data attribute.
func (e *Extractor) probeGeneric(ctx context.Context, node driver.Element) ([]FileCandidate, error) {
	els, err := node.Query(ctx, "[data-file], [data-attachment], [data-download]")
	if err != nil {
		return nil, err
	}
	var out []FileCandidate
	for _, el := range els {
		var u string
		for _, attr := range []string{"data-file", "data-attachment", "data-download"} {
			v, _ := el.Attr(ctx, attr)
			if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
				u = v
				break
			}
		}
		out = append(out, FileCandidate{
			URL:         u,
			DisplayText: labelOf(ctx, el),
			Kind:        KindGeneric,
			Element:     el,
		})
	}
	return out, nil
}

// labelOf picks a human label for an element: aria-label, then title,
// then visible text.
func labelOf(ctx context.Context, el driver.Element) string {
	for _, attr := range []string{"aria-label", "title"} {
		if v, err := el.Attr(ctx, attr); err == nil && v != "" {
			return v
		}
	}
	txt, _ := el.Text(ctx)
	return txt
}

// docNameOf extracts a document filename from the element's accessible
// label or, failing that, from its visible text.
func docNameOf(ctx context.Context, el driver.Element) string {
	if label, err := el.Attr(ctx, "aria-label"); err == nil {
		if m := docNamePattern.FindString(label); m != "" {
			return m
		}
	}
	if txt, err := el.Text(ctx); err == nil {
		if m := docNamePattern.FindString(txt); m != "" {
			return m
		}
	}
	return ""
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
