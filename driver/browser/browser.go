// Package browser implements the driver contract over a live Chrome
// session controlled through Rod. It owns the Chrome lifecycle (launch or
// connect, stealth page setup, teardown) and captures network response
// events into a bounded ring so the resolver can inspect recent traffic.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/boardsnap/driver"
)

// Config configures the browser session.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Headless controls the launch mode for local Chrome. Default: true.
	Headless *bool

	// NetworkLogSize bounds the captured response ring. Default: 200.
	NetworkLogSize int

	// NavigateTimeout bounds a single navigation. Default: 30s.
	NavigateTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Headless == nil {
		t := true
		c.Headless = &t
	}
	if c.NetworkLogSize <= 0 {
		c.NetworkLogSize = 200
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session is a live Chrome session. It implements driver.Session.
type Session struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
	ring    *responseRing
	stopLog context.CancelFunc
	url     string
}

var _ driver.Session = (*Session)(nil)

// New launches Chrome (or connects to a remote instance), opens a stealth
// page, and starts network capture. Failure here is the only fatal error
// class of the pipeline.
func New(ctx context.Context, cfg Config) (*Session, error) {
	cfg.defaults()
	log := cfg.Logger

	var wsURL string
	var lnch *launcher.Launcher

	if cfg.RemoteURL != "" {
		wsURL = cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(*cfg.Headless)

		// Anti-detection flags.
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		lnch = l
		log.Info("browser: launched local chrome", "headless", *cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	// Ignore certificate errors for dev/testing.
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		b.Close()
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	s := &Session{
		cfg:     cfg,
		browser: b,
		lnch:    lnch,
		page:    page,
		ring:    newResponseRing(cfg.NetworkLogSize),
	}
	if err := s.startNetworkCapture(ctx); err != nil {
		log.Warn("browser: network capture unavailable", "error", err)
	}
	return s, nil
}

// startNetworkCapture enables the CDP Network domain and feeds response
// events into the ring until the session closes.
func (s *Session) startNetworkCapture(ctx context.Context) error {
	if err := (proto.NetworkEnable{}).Call(s.page); err != nil {
		return fmt.Errorf("browser: enable network domain: %w", err)
	}

	capCtx, cancel := context.WithCancel(ctx)
	s.stopLog = cancel

	go s.page.Context(capCtx).EachEvent(func(e *proto.NetworkResponseReceived) {
		if e.Response == nil {
			return
		}
		s.ring.add(driver.ResponseEvent{
			URL:      e.Response.URL,
			MimeType: e.Response.MIMEType,
			Status:   e.Response.Status,
			Received: time.Now(),
		})
	})()
	return nil
}

// Navigate loads the URL in the main tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigateTimeout)
	defer cancel()

	if err := s.page.Context(navCtx).Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	s.url = url
	return nil
}

// WaitReady waits for the load event and gives dynamic content a short
// settle window. Timeout is reported as an error; callers are expected to
// warn and continue rather than abort.
func (s *Session) WaitReady(ctx context.Context, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.page.Context(waitCtx).WaitLoad(); err != nil {
		return fmt.Errorf("browser: wait load: %w", err)
	}

	// SPA boards render after load; give the framework a moment.
	settle := timeout / 6
	if settle > 5*time.Second {
		settle = 5 * time.Second
	}
	select {
	case <-time.After(settle):
	case <-waitCtx.Done():
	}
	return nil
}

// Query evaluates a CSS selector against the whole page.
func (s *Session) Query(ctx context.Context, selector string) ([]driver.Element, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query %q: %w", selector, err)
	}
	return wrapElements(els), nil
}

// PageSource returns the rendered document's outer HTML.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: page source: %w", err)
	}
	return res.Value.Str(), nil
}

// Screenshot captures the current viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	buf, err := s.page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return buf, nil
}

// Tabs lists open tabs, the session's main tab first.
func (s *Session) Tabs(ctx context.Context) ([]driver.TabInfo, error) {
	pages, err := s.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("browser: list tabs: %w", err)
	}

	tabs := make([]driver.TabInfo, 0, len(pages))
	// Main tab first so callers can diff against a known baseline.
	tabs = append(tabs, driver.TabInfo{ID: string(s.page.TargetID), URL: s.url})
	for _, p := range pages {
		if p.TargetID == s.page.TargetID {
			continue
		}
		info, err := p.Context(ctx).Info()
		if err != nil {
			s.cfg.Logger.Debug("browser: tab info failed", "error", err)
			continue
		}
		tabs = append(tabs, driver.TabInfo{ID: string(p.TargetID), URL: info.URL})
	}
	return tabs, nil
}

// ActivateTab foregrounds the tab and returns its current URL.
func (s *Session) ActivateTab(ctx context.Context, id string) (string, error) {
	p, err := s.pageByID(id)
	if err != nil {
		return "", err
	}
	if _, err := p.Activate(); err != nil {
		return "", fmt.Errorf("browser: activate tab: %w", err)
	}
	info, err := p.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("browser: tab info: %w", err)
	}
	return info.URL, nil
}

// CloseTab closes the tab and restores focus to the main tab.
func (s *Session) CloseTab(ctx context.Context, id string) error {
	if id == string(s.page.TargetID) {
		return fmt.Errorf("browser: refusing to close main tab")
	}
	p, err := s.pageByID(id)
	if err != nil {
		return err
	}
	if err := p.Close(); err != nil {
		return fmt.Errorf("browser: close tab: %w", err)
	}
	if _, err := s.page.Activate(); err != nil {
		s.cfg.Logger.Warn("browser: restore main tab focus failed", "error", err)
	}
	return nil
}

// Responses returns the most recent captured response events, newest
// first.
func (s *Session) Responses(ctx context.Context, limit int) ([]driver.ResponseEvent, error) {
	return s.ring.recent(limit), nil
}

// URL returns the main tab URL.
func (s *Session) URL() string { return s.url }

// Close shuts down Chrome and releases all element handles.
func (s *Session) Close() error {
	if s.stopLog != nil {
		s.stopLog()
	}
	if s.browser != nil {
		s.browser.Close()
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
	}
	return nil
}

func (s *Session) pageByID(id string) (*rod.Page, error) {
	pages, err := s.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("browser: list tabs: %w", err)
	}
	for _, p := range pages {
		if string(p.TargetID) == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("browser: no tab with id %s", id)
}
