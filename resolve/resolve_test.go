package resolve_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hazyhaar/boardsnap/driver"
	"github.com/hazyhaar/boardsnap/extract"
	"github.com/hazyhaar/boardsnap/resolve"
)

// fakeSession scripts tab and network-log behavior around a click.
type fakeSession struct {
	tabs      []driver.TabInfo
	events    []driver.ResponseEvent // newest last, like the capture ring
	activated []string
	closed    []string

	// onClick mutates the session the way the page would respond.
	onClick func()
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		tabs: []driver.TabInfo{{ID: "main", URL: "https://boards.example"}},
	}
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error { return nil }
func (s *fakeSession) WaitReady(ctx context.Context, d time.Duration) error {
	return nil
}
func (s *fakeSession) Query(ctx context.Context, sel string) ([]driver.Element, error) {
	return nil, nil
}
func (s *fakeSession) PageSource(ctx context.Context) (string, error) { return "", nil }
func (s *fakeSession) Screenshot(ctx context.Context) ([]byte, error) { return nil, nil }

func (s *fakeSession) Tabs(ctx context.Context) ([]driver.TabInfo, error) {
	out := make([]driver.TabInfo, len(s.tabs))
	copy(out, s.tabs)
	return out, nil
}

func (s *fakeSession) ActivateTab(ctx context.Context, id string) (string, error) {
	s.activated = append(s.activated, id)
	for _, t := range s.tabs {
		if t.ID == id {
			return t.URL, nil
		}
	}
	return "", errors.New("no such tab")
}

func (s *fakeSession) CloseTab(ctx context.Context, id string) error {
	s.closed = append(s.closed, id)
	kept := s.tabs[:0]
	for _, t := range s.tabs {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.tabs = kept
	return nil
}

func (s *fakeSession) Responses(ctx context.Context, limit int) ([]driver.ResponseEvent, error) {
	n := len(s.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]driver.ResponseEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *fakeSession) URL() string  { return "https://boards.example" }
func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) pushEvent(url string) {
	s.events = append(s.events, driver.ResponseEvent{
		Seq: uint64(len(s.events) + 1),
		URL: url,
	})
}

// fakeElement counts interactions and forwards clicks to the session
// script.
type fakeElement struct {
	sess     *fakeSession
	clicks   int
	scrolls  int
	clickErr error
}

func (e *fakeElement) Text(ctx context.Context) (string, error)           { return "", nil }
func (e *fakeElement) Attr(ctx context.Context, n string) (string, error) { return "", nil }
func (e *fakeElement) HTML(ctx context.Context) (string, error)           { return "", nil }
func (e *fakeElement) Tag(ctx context.Context) (string, error)            { return "div", nil }
func (e *fakeElement) Query(ctx context.Context, sel string) ([]driver.Element, error) {
	return nil, nil
}
func (e *fakeElement) ScrollIntoView(ctx context.Context) error {
	e.scrolls++
	return nil
}
func (e *fakeElement) Click(ctx context.Context) error {
	e.clicks++
	if e.clickErr != nil {
		return e.clickErr
	}
	if e.sess.onClick != nil {
		e.sess.onClick()
	}
	return nil
}

func newResolver(sess driver.Session) *resolve.Resolver {
	return resolve.New(sess, resolve.Config{SettleDelay: time.Millisecond})
}

func TestResolveDirectPassThrough(t *testing.T) {
	r := newResolver(newFakeSession())
	c := extract.FileCandidate{
		URL:  "https://files.example.com/notes.pdf",
		Kind: extract.KindDirectLink,
	}
	res := r.Resolve(context.Background(), &c)
	if res.State != resolve.StateResolvedDirect {
		t.Fatalf("state = %s", res.State)
	}
	if res.URL != c.URL {
		t.Fatalf("url = %q", res.URL)
	}
}

func TestResolveSkipsPseudoURL(t *testing.T) {
	r := newResolver(newFakeSession())
	c := extract.FileCandidate{
		URL:  "javascript:openAttachment(7)",
		Kind: extract.KindDirectLink,
	}
	res := r.Resolve(context.Background(), &c)
	if res.State != resolve.StateSkipped {
		t.Fatalf("pseudo-URL must be skipped, got %s", res.State)
	}
	if res.Resolved() {
		t.Fatal("skipped must not count as resolved")
	}
}

func TestResolveViaNewTab(t *testing.T) {
	sess := newFakeSession()
	el := &fakeElement{sess: sess}
	sess.onClick = func() {
		sess.tabs = append(sess.tabs, driver.TabInfo{
			ID: "t2", URL: "https://storage.example/d/f81a2c",
		})
	}

	r := newResolver(sess)
	c := extract.FileCandidate{
		DisplayText: "Einführung.pptx",
		Kind:        extract.KindAttachmentButton,
		Element:     el,
	}
	res := r.Resolve(context.Background(), &c)

	if res.State != resolve.StateResolvedViaTab {
		t.Fatalf("state = %s", res.State)
	}
	if res.URL != "https://storage.example/d/f81a2c" {
		t.Fatalf("url = %q", res.URL)
	}
	if c.URL != res.URL {
		t.Fatal("candidate URL must be filled lazily")
	}
	if el.scrolls != 1 || el.clicks != 1 {
		t.Fatalf("protocol steps: scrolls=%d clicks=%d", el.scrolls, el.clicks)
	}
	if len(sess.closed) != 1 || sess.closed[0] != "t2" {
		t.Fatalf("new tab must be closed, closed=%v", sess.closed)
	}
}

func TestResolvePreviewFallsBackToNetworkLog(t *testing.T) {
	sess := newFakeSession()
	// Traffic that predates the click must be ignored even if it
	// matches the storage pattern.
	sess.pushEvent("https://storage.example/attachments/stale.pdf")

	el := &fakeElement{sess: sess}
	sess.onClick = func() {
		sess.pushEvent("https://app.example/api/telemetry")
		sess.pushEvent("https://storage.example/attachments/fresh.pdf")
	}

	r := newResolver(sess)
	c := extract.FileCandidate{
		DisplayText: "fresh.pdf",
		Kind:        extract.KindPDFPreview,
		Element:     el,
	}
	res := r.Resolve(context.Background(), &c)

	if res.State != resolve.StateResolvedViaNetworkLog {
		t.Fatalf("state = %s", res.State)
	}
	if res.URL != "https://storage.example/attachments/fresh.pdf" {
		t.Fatalf("url = %q", res.URL)
	}
}

func TestResolvePreviewIgnoresStaleLogWithoutClickTraffic(t *testing.T) {
	sess := newFakeSession()
	sess.pushEvent("https://storage.example/attachments/stale.pdf")

	el := &fakeElement{sess: sess}
	r := newResolver(sess)
	c := extract.FileCandidate{
		Kind:    extract.KindPDFPreview,
		Element: el,
	}
	res := r.Resolve(context.Background(), &c)
	if res.State != resolve.StateFailed {
		t.Fatalf("stale traffic must not resolve the click, got %s", res.State)
	}
}

func TestResolveNonPreviewSkipsNetworkLog(t *testing.T) {
	sess := newFakeSession()
	el := &fakeElement{sess: sess}
	sess.onClick = func() {
		sess.pushEvent("https://storage.example/attachments/a.pdf")
	}

	r := newResolver(sess)
	c := extract.FileCandidate{
		Kind:    extract.KindListItem,
		Element: el,
	}
	res := r.Resolve(context.Background(), &c)
	if res.State != resolve.StateFailed {
		t.Fatalf("list items have no network-log fallback, got %s", res.State)
	}
}

func TestResolveClickErrorFails(t *testing.T) {
	sess := newFakeSession()
	el := &fakeElement{sess: sess, clickErr: errors.New("element detached")}

	r := newResolver(sess)
	c := extract.FileCandidate{Kind: extract.KindGeneric, Element: el}
	res := r.Resolve(context.Background(), &c)
	if res.State != resolve.StateFailed {
		t.Fatalf("state = %s", res.State)
	}
}

func TestResolveMissingElementFails(t *testing.T) {
	r := newResolver(newFakeSession())
	c := extract.FileCandidate{Kind: extract.KindAttachmentButton}
	if res := r.Resolve(context.Background(), &c); res.State != resolve.StateFailed {
		t.Fatalf("state = %s", res.State)
	}
}

func TestResolvePrefilledWidgetURLIsDirect(t *testing.T) {
	r := newResolver(newFakeSession())
	c := extract.FileCandidate{
		URL:     "https://boards.example/storage/extra.pdf",
		Kind:    extract.KindAttachmentButton,
		Element: &fakeElement{},
	}
	res := r.Resolve(context.Background(), &c)
	if res.State != resolve.StateResolvedDirect {
		t.Fatalf("carried URL must short-circuit the click, got %s", res.State)
	}
}
