// Package extract builds Card records from discovered DOM nodes: per-field
// selector fallbacks plus a set of independent probes that collect
// attachment candidates of different rendering styles.
package extract

import "github.com/hazyhaar/boardsnap/driver"

// Kind classifies how an attachment candidate is rendered, which decides
// the resolution strategy. The enum is closed: resolution dispatches
// exhaustively over these values.
type Kind string

const (
	KindDirectLink       Kind = "direct_link"
	KindAttachmentButton Kind = "styled_attachment_button"
	KindPDFPreview       Kind = "pdf_preview_container"
	KindListItem         Kind = "clickable_list_item"
	KindGeneric          Kind = "generic_clickable"
)

// FileCandidate is a detected possible attachment before its real
// download URL is known.
//
// Element is a non-owned, session-scoped back-reference used only for
// click resolution. It is nil exactly when Kind is KindDirectLink, and it
// is never serialized.
type FileCandidate struct {
	// URL is absolute, or empty while unresolved, or a non-fetchable
	// pseudo-URL (script reference) that must never be dereferenced.
	URL         string
	DisplayText string
	Kind        Kind
	Element     driver.Element
}

// FileRecord is the serialization-time projection of a FileCandidate:
// the live element reference is dropped.
type FileRecord struct {
	URL  string `json:"url"`
	Text string `json:"text"`
	Type string `json:"type"`
}

// Record projects the candidate into its serializable form.
func (c FileCandidate) Record() FileRecord {
	return FileRecord{URL: c.URL, Text: c.DisplayText, Type: string(c.Kind)}
}

// Card is one discovered unit of board content. IDs follow discovery
// order and are stable only within a run. A Card is immutable once
// extraction completes, except that a candidate's URL may be filled
// lazily during resolution.
type Card struct {
	ID          int
	Title       string
	Description string
	Images      []string
	Files       []FileCandidate

	// RawMarkup is the node's inner HTML, kept for diagnostics and the
	// markdown dump only.
	RawMarkup string
}

// Records projects every file candidate for serialization.
func (c *Card) Records() []FileRecord {
	out := make([]FileRecord, 0, len(c.Files))
	for _, f := range c.Files {
		out = append(out, f.Record())
	}
	return out
}
