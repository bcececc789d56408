// Package resolve turns file candidates into fetchable URLs. Direct
// links pass through; everything else runs the click-resolution
// protocol: simulate a click, intercept a new tab if one appears, or
// fall back to inspecting recent network traffic. Strategies are tried
// in decreasing order of reliability because different rendering styles
// expose the real asset URL through different channels.
//
// Resolution is strictly sequential by design: browser focus and the
// network-response window are shared, order-sensitive state, so only one
// candidate may be in flight at a time.
package resolve

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/hazyhaar/boardsnap/driver"
	"github.com/hazyhaar/boardsnap/extract"
)

// State is a terminal (or transitional) resolution state.
type State string

const (
	StateUnresolved            State = "unresolved"
	StateResolving             State = "resolving"
	StateResolvedDirect        State = "resolved_direct"
	StateResolvedViaTab        State = "resolved_via_tab"
	StateResolvedViaNetworkLog State = "resolved_via_network_log"
	// StateSkipped marks pseudo-URL script references: never fetched,
	// logged as a notice, not counted as failures.
	StateSkipped State = "skipped"
	StateFailed  State = "failed"
)

// Resolution is the outcome for one candidate.
type Resolution struct {
	State State
	URL   string
}

// Resolved reports whether the candidate ended with a fetchable URL.
func (r Resolution) Resolved() bool {
	switch r.State {
	case StateResolvedDirect, StateResolvedViaTab, StateResolvedViaNetworkLog:
		return true
	}
	return false
}

// Config configures a Resolver.
type Config struct {
	// SettleDelay is the pause after scrolling and after clicking,
	// giving the application time to open a tab or fire a request.
	// Default: 1500ms.
	SettleDelay time.Duration

	// LogWindow bounds how many recent network responses the
	// network-log fallback inspects. Default: 50.
	LogWindow int

	// StoragePattern matches attachment-storage response URLs in the
	// network log.
	StoragePattern *regexp.Regexp

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.SettleDelay <= 0 {
		c.SettleDelay = 1500 * time.Millisecond
	}
	if c.LogWindow <= 0 {
		c.LogWindow = 50
	}
	if c.StoragePattern == nil {
		c.StoragePattern = defaultStoragePattern
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

var defaultStoragePattern = regexp.MustCompile(`(?i)(attachment|storage|upload|files|media)`)

// Resolver executes the resolution protocol against one session.
type Resolver struct {
	cfg  Config
	sess driver.Session
	log  *slog.Logger
}

// New creates a Resolver bound to a session.
func New(sess driver.Session, cfg Config) *Resolver {
	cfg.defaults()
	return &Resolver{cfg: cfg, sess: sess, log: cfg.Logger}
}

// Resolve resolves one candidate. On success the candidate's URL is
// filled in place (the lazy fill permitted by the Card invariant).
// Failures never abort a batch; the caller inspects the returned state.
func (r *Resolver) Resolve(ctx context.Context, c *extract.FileCandidate) Resolution {
	if isPseudoURL(c.URL) {
		r.log.Info("resolve: skipping script reference", "text", c.DisplayText, "url", c.URL)
		return Resolution{State: StateSkipped}
	}
	if c.URL != "" {
		return Resolution{State: StateResolvedDirect, URL: c.URL}
	}

	// Closed dispatch: a new Kind is a compile-visible decision here,
	// not a silent fallthrough.
	switch c.Kind {
	case extract.KindDirectLink:
		// A direct link without a URL has nothing to resolve.
		r.log.Warn("resolve: direct link without target", "text", c.DisplayText)
		return Resolution{State: StateFailed}
	case extract.KindAttachmentButton, extract.KindListItem, extract.KindGeneric:
		return r.clickResolve(ctx, c, false)
	case extract.KindPDFPreview:
		return r.clickResolve(ctx, c, true)
	default:
		r.log.Error("resolve: unknown candidate kind", "kind", c.Kind)
		return Resolution{State: StateFailed}
	}
}

// clickResolve runs the click-resolution protocol: scroll, click, check
// for a new tab, optionally inspect the network log, then give up.
func (r *Resolver) clickResolve(ctx context.Context, c *extract.FileCandidate, useNetworkLog bool) Resolution {
	if c.Element == nil {
		r.log.Warn("resolve: candidate has no element reference", "text", c.DisplayText)
		return Resolution{State: StateFailed}
	}

	before, err := r.sess.Tabs(ctx)
	if err != nil {
		r.log.Warn("resolve: tab snapshot failed", "error", err)
	}
	// Only responses observed after the click are attributable to it.
	seqBefore := r.lastResponseSeq(ctx)

	if err := c.Element.ScrollIntoView(ctx); err != nil {
		r.log.Debug("resolve: scroll failed", "text", c.DisplayText, "error", err)
	}
	r.settle(ctx)

	if err := c.Element.Click(ctx); err != nil {
		r.log.Warn("resolve: click failed", "text", c.DisplayText, "error", err)
		return Resolution{State: StateFailed}
	}
	r.settle(ctx)

	if res, ok := r.interceptNewTab(ctx, before); ok {
		c.URL = res
		return Resolution{State: StateResolvedViaTab, URL: res}
	}

	if useNetworkLog {
		if res, ok := r.searchNetworkLog(ctx, seqBefore); ok {
			c.URL = res
			return Resolution{State: StateResolvedViaNetworkLog, URL: res}
		}
	}

	if c.URL != "" && !isPseudoURL(c.URL) {
		return Resolution{State: StateResolvedDirect, URL: c.URL}
	}

	r.log.Warn("resolve: exhausted strategies", "text", c.DisplayText, "kind", c.Kind)
	return Resolution{State: StateFailed}
}

// interceptNewTab looks for a tab that was not present before the click,
// reads its URL, closes it, and restores focus.
func (r *Resolver) interceptNewTab(ctx context.Context, before []driver.TabInfo) (string, bool) {
	after, err := r.sess.Tabs(ctx)
	if err != nil {
		r.log.Debug("resolve: tab listing failed", "error", err)
		return "", false
	}

	known := make(map[string]bool, len(before))
	for _, t := range before {
		known[t.ID] = true
	}

	for _, t := range after {
		if known[t.ID] {
			continue
		}
		u, err := r.sess.ActivateTab(ctx, t.ID)
		if err != nil {
			r.log.Warn("resolve: activate new tab failed", "error", err)
			u = t.URL
		}
		if err := r.sess.CloseTab(ctx, t.ID); err != nil {
			r.log.Warn("resolve: close new tab failed", "error", err)
		}
		if u != "" && !isPseudoURL(u) && u != "about:blank" {
			r.log.Info("resolve: new tab intercepted", "url", u)
			return u, true
		}
	}
	return "", false
}

// searchNetworkLog scans the most recent captured responses, newest
// first, for an attachment-storage URL observed after the click.
func (r *Resolver) searchNetworkLog(ctx context.Context, seqBefore uint64) (string, bool) {
	events, err := r.sess.Responses(ctx, r.cfg.LogWindow)
	if err != nil {
		r.log.Debug("resolve: network log unavailable", "error", err)
		return "", false
	}
	for _, ev := range events {
		if ev.Seq <= seqBefore {
			break
		}
		if r.cfg.StoragePattern.MatchString(ev.URL) {
			r.log.Info("resolve: matched network response", "url", ev.URL, "mime", ev.MimeType)
			return ev.URL, true
		}
	}
	return "", false
}

func (r *Resolver) lastResponseSeq(ctx context.Context) uint64 {
	events, err := r.sess.Responses(ctx, 1)
	if err != nil || len(events) == 0 {
		return 0
	}
	return events[0].Seq
}

func (r *Resolver) settle(ctx context.Context) {
	select {
	case <-time.After(r.cfg.SettleDelay):
	case <-ctx.Done():
	}
}

// isPseudoURL reports whether the value is a non-fetchable script
// reference. Empty is not pseudo; it means "unresolved".
func isPseudoURL(u string) bool {
	if u == "" {
		return false
	}
	return !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://")
}
