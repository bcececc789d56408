package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/boardsnap/archive"
	"github.com/hazyhaar/boardsnap/driver"
	"github.com/hazyhaar/boardsnap/extract"
	"github.com/hazyhaar/boardsnap/resolve"
	"github.com/hazyhaar/boardsnap/selector"
)

// ErrNoCards reports a run that discovered nothing. Diagnostic
// snapshots are still on disk when this is returned.
var ErrNoCards = errors.New("runner: no cards discovered")

// Report summarizes one completed run.
type Report struct {
	RunID      string
	URL        string
	CardCount  int
	Resolved   int
	Skipped    int
	Failed     int
	Downloads  int
	DownloadOK int
	Stopped    bool
}

// Runner drives one archival run over one session. The pipeline is
// strictly sequential: browser focus and the network-log window are
// shared, order-sensitive state, so only one operation is ever in
// flight.
type Runner struct {
	cfg      *Config
	sess     driver.Session
	registry *selector.Registry
	log      *slog.Logger
	stop     atomic.Bool
}

// New creates a Runner. The session is owned by the caller; the Runner
// does not close it.
func New(cfg *Config, sess driver.Session, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ApplyDefaults()
	return &Runner{
		cfg:      cfg,
		sess:     sess,
		registry: selector.DefaultRegistry(),
		log:      logger,
	}
}

// Registry exposes the selector registry so callers can register
// site-specific chains before Run.
func (r *Runner) Registry() *selector.Registry { return r.registry }

// Stop requests cooperative cancellation. The flag is checked between
// cards and between downloads; in-flight browser and network operations
// are never interrupted, so the run may still complete.
func (r *Runner) Stop() { r.stop.Store(true) }

// Run executes the full pipeline and returns a Report. Only session and
// filesystem setup failures abort the run; everything below a card or a
// download is contained.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), URL: r.cfg.URL}
	log := r.log.With("run", report.RunID)

	var audit *archive.Audit
	if r.cfg.AuditDB != "" {
		a, err := archive.OpenAudit(r.cfg.AuditDB)
		if err != nil {
			log.Warn("runner: audit disabled", "error", err)
		} else {
			audit = a
			defer audit.Close()
		}
	}

	writer := archive.NewWriter(archive.Config{
		Root:         r.cfg.Root,
		ValidatePDFs: r.cfg.ValidatePDFs,
		Audit:        audit,
		Logger:       log,
	})
	if err := writer.EnsureLayout(); err != nil {
		return report, err
	}

	if audit != nil {
		audit.BeginRun(ctx, report.RunID, r.cfg.URL)
	}
	startedAt := time.Now()

	log.Info("runner: loading page", "url", r.cfg.URL)
	if err := r.sess.Navigate(ctx, r.cfg.URL); err != nil {
		return report, fmt.Errorf("runner: navigate: %w", err)
	}
	if err := r.sess.WaitReady(ctx, r.cfg.PageTimeout); err != nil {
		log.Warn("runner: page readiness timeout, continuing", "error", err)
	}

	r.writeDiagnostics(ctx, writer)

	ex, err := extract.New(extract.Config{
		Registry: r.registry,
		BaseURL:  r.cfg.URL,
		Logger:   log,
	})
	if err != nil {
		return report, err
	}

	nodes := ex.Discover(ctx, r.sess)
	log.Info("runner: discovery complete", "nodes", len(nodes))
	if len(nodes) == 0 {
		if audit != nil {
			audit.FinishRun(ctx, report.RunID, 0, false)
		}
		return report, ErrNoCards
	}

	cards := r.extractCards(ctx, ex, nodes, report)
	report.CardCount = len(cards)
	if len(cards) == 0 {
		if audit != nil {
			audit.FinishRun(ctx, report.RunID, 0, false)
		}
		return report, ErrNoCards
	}

	r.resolveAll(ctx, cards, report)
	r.writeOut(ctx, writer, cards, report)

	if err := writer.WriteExport(r.cfg.URL, startedAt, cards); err != nil {
		log.Error("runner: export failed", "error", err)
	}
	if err := writer.WriteSummary(r.cfg.URL, startedAt, cards); err != nil {
		log.Error("runner: summary failed", "error", err)
	}
	if audit != nil {
		audit.FinishRun(ctx, report.RunID, len(cards), true)
	}

	report.Stopped = r.stop.Load()
	log.Info("runner: run complete",
		"cards", report.CardCount,
		"resolved", report.Resolved,
		"downloads_ok", report.DownloadOK,
		"stopped", report.Stopped)
	return report, nil
}

func (r *Runner) writeDiagnostics(ctx context.Context, writer *archive.Writer) {
	src, err := r.sess.PageSource(ctx)
	if err != nil {
		r.log.Warn("runner: page source capture failed", "error", err)
	}
	shot, err := r.sess.Screenshot(ctx)
	if err != nil && !errors.Is(err, driver.ErrStaticSession) {
		r.log.Warn("runner: screenshot failed", "error", err)
	}
	writer.WriteDiagnostics(src, shot)
}

// extractCards builds one Card per discovered node, in discovery order.
// A failing card is skipped, not added; its id is not reused.
func (r *Runner) extractCards(ctx context.Context, ex *extract.Extractor, nodes []driver.Element, report *Report) []*extract.Card {
	var cards []*extract.Card
	for i, node := range nodes {
		if r.stop.Load() {
			r.log.Info("runner: stop requested during extraction", "at_card", i+1)
			break
		}
		card, err := ex.Extract(ctx, i+1, node)
		if err != nil {
			r.log.Error("runner: card extraction failed, skipping", "card", i+1, "error", err)
			continue
		}
		r.log.Info("runner: card extracted",
			"card", card.ID, "title", truncate(card.Title, 50),
			"images", len(card.Images), "files", len(card.Files))
		cards = append(cards, card)
	}
	return cards
}

// resolveAll runs the click-resolution protocol for every candidate,
// one at a time.
func (r *Runner) resolveAll(ctx context.Context, cards []*extract.Card, report *Report) {
	resolver := resolve.New(r.sess, resolve.Config{
		SettleDelay: r.cfg.SettleDelay,
		LogWindow:   r.cfg.LogWindow,
		Logger:      r.log,
	})

	for _, card := range cards {
		if r.stop.Load() {
			r.log.Info("runner: stop requested during resolution", "card", card.ID)
			return
		}
		for i := range card.Files {
			res := resolver.Resolve(ctx, &card.Files[i])
			switch {
			case res.Resolved():
				report.Resolved++
			case res.State == resolve.StateSkipped:
				report.Skipped++
			default:
				report.Failed++
			}
		}
	}
}

func (r *Runner) writeOut(ctx context.Context, writer *archive.Writer, cards []*extract.Card, report *Report) {
	for _, card := range cards {
		if r.stop.Load() {
			r.log.Info("runner: stop requested during write-out", "card", card.ID)
			return
		}
		if err := writer.WriteCard(card); err != nil {
			r.log.Error("runner: card write failed", "card", card.ID, "error", err)
		}
		for _, res := range writer.DownloadAssets(ctx, report.RunID, card) {
			report.Downloads++
			if res.Success {
				report.DownloadOK++
			}
		}
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
