// Package driver defines the capability contract the archival pipeline
// consumes from a browser session. The pipeline never talks to a browser
// library directly; it sees a Session and Elements, so the live rod
// implementation and the static snapshot implementation are
// interchangeable.
//
// Element values are session-scoped handles into the live DOM. They are
// never serialized and become invalid when the session ends.
package driver

import (
	"context"
	"errors"
	"time"
)

// ErrStaticSession is returned by operations that require a live browser
// (clicks, tab switching, network capture) when the session is a parsed
// static snapshot.
var ErrStaticSession = errors.New("driver: operation requires a live browser session")

// ResponseEvent is one captured network response. Seq increases
// monotonically per session, so callers can discard events that predate
// an action they issued.
type ResponseEvent struct {
	Seq      uint64
	URL      string
	MimeType string
	Status   int
	Received time.Time
}

// TabInfo identifies one open tab.
type TabInfo struct {
	ID  string
	URL string
}

// Element is a handle to one DOM node inside a Session.
type Element interface {
	// Text returns the node's visible text, trimmed.
	Text(ctx context.Context) (string, error)

	// Attr returns the value of an attribute, or "" if absent.
	Attr(ctx context.Context, name string) (string, error)

	// HTML returns the node's inner HTML.
	HTML(ctx context.Context) (string, error)

	// Tag returns the lower-case tag name.
	Tag(ctx context.Context) (string, error)

	// Query evaluates a CSS selector scoped to this node.
	Query(ctx context.Context, selector string) ([]Element, error)

	// ScrollIntoView scrolls the node into the viewport.
	ScrollIntoView(ctx context.Context) error

	// Click simulates a user click on the node.
	Click(ctx context.Context) error
}

// Scope is the query surface shared by a whole page and a single node.
// Both Session and Element satisfy it.
type Scope interface {
	Query(ctx context.Context, selector string) ([]Element, error)
}

// Session is one logical page session. Only one operation may be in
// flight at a time; the pipeline guarantees this by running strictly
// sequentially.
type Session interface {
	// Navigate loads the given URL in the session's main tab.
	Navigate(ctx context.Context, url string) error

	// WaitReady blocks until the page body is present and dynamic
	// content has had a chance to settle, or the timeout elapses.
	WaitReady(ctx context.Context, timeout time.Duration) error

	// Query evaluates a CSS selector against the whole page.
	Query(ctx context.Context, selector string) ([]Element, error)

	// PageSource returns the current document's outer HTML.
	PageSource(ctx context.Context) (string, error)

	// Screenshot captures the viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Tabs lists open tabs, main tab first.
	Tabs(ctx context.Context) ([]TabInfo, error)

	// ActivateTab brings the given tab to the foreground and returns
	// its current URL.
	ActivateTab(ctx context.Context, id string) (string, error)

	// CloseTab closes the given tab and restores focus to the main tab.
	CloseTab(ctx context.Context, id string) error

	// Responses returns the most recent captured network response
	// events, newest first, up to limit.
	Responses(ctx context.Context, limit int) ([]ResponseEvent, error)

	// URL returns the session's main tab URL.
	URL() string

	// Close releases the session and all Element handles issued by it.
	Close() error
}
