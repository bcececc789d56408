// Package archive persists extracted cards: per-card metadata records,
// human-readable dumps, downloaded assets with sniffed extensions, a
// consolidated export, and a run manifest, all under a deterministic
// directory layout. Per-file failures are recorded and logged but never
// stop the remaining files or cards.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/hazyhaar/boardsnap/extract"
	"github.com/hazyhaar/boardsnap/sniff"
)

// Fixed subdirectories of the archive root.
const (
	dirMetadata  = "metadata"
	dirCards     = "cards"
	dirImages    = "images"
	dirDocuments = "documents"
)

// timestampLayout matches the manifest contract.
const timestampLayout = "2006-01-02 15:04:05"

// DownloadResult is the outcome of fetching bytes for one candidate.
type DownloadResult struct {
	LocalPath         string
	ByteCount         int64
	ResolvedExtension string
	SourceURL         string
	Success           bool
}

// Config configures a Writer.
type Config struct {
	// Root is the destination directory of the archive.
	Root string

	// HTTPTimeout bounds each asset fetch. Default: 30s.
	HTTPTimeout time.Duration

	// ValidatePDFs runs a structural check on archived PDFs.
	ValidatePDFs bool

	// Audit is the optional sqlite download log. Nil disables auditing.
	Audit *Audit

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Writer persists cards and their assets.
type Writer struct {
	cfg    Config
	root   string
	client *http.Client
	md     *converter.Converter
	log    *slog.Logger
}

// NewWriter creates a Writer. Call EnsureLayout before writing.
func NewWriter(cfg Config) *Writer {
	cfg.defaults()
	return &Writer{
		cfg:    cfg,
		root:   cfg.Root,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		log: cfg.Logger,
	}
}

// EnsureLayout creates the root and its subdirectories. Creation is
// idempotent.
func (w *Writer) EnsureLayout() error {
	for _, sub := range []string{"", dirMetadata, dirCards, dirImages, dirDocuments} {
		if err := os.MkdirAll(filepath.Join(w.root, sub), 0o755); err != nil {
			return fmt.Errorf("archive: create %s: %w", sub, err)
		}
	}
	return nil
}

// WriteDiagnostics saves the page source and screenshot snapshots. These
// are written even for failed runs to support manual inspection; a nil
// screenshot (static sessions cannot capture one) is skipped.
func (w *Writer) WriteDiagnostics(pageSource string, screenshot []byte) {
	if pageSource != "" {
		p := filepath.Join(w.root, "page_source.html")
		if err := os.WriteFile(p, []byte(pageSource), 0o644); err != nil {
			w.log.Warn("archive: write page source failed", "error", err)
		} else {
			w.log.Info("archive: page source saved", "path", p)
		}
	}
	if len(screenshot) > 0 {
		p := filepath.Join(w.root, "page_screenshot.png")
		if err := os.WriteFile(p, screenshot, 0o644); err != nil {
			w.log.Warn("archive: write screenshot failed", "error", err)
		} else {
			w.log.Info("archive: screenshot saved", "path", p)
		}
	}
}

// cardRecord is the metadata JSON contract. Field order is fixed for
// downstream viewers.
type cardRecord struct {
	ID          int                  `json:"id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Images      []string             `json:"images"`
	Files       []extract.FileRecord `json:"files"`
	HTMLContent string               `json:"html_content"`
}

func toRecord(card *extract.Card) cardRecord {
	rec := cardRecord{
		ID:          card.ID,
		Title:       card.Title,
		Description: card.Description,
		Images:      card.Images,
		Files:       card.Records(),
		HTMLContent: card.RawMarkup,
	}
	if rec.Images == nil {
		rec.Images = []string{}
	}
	return rec
}

// WriteCard persists one card's metadata record, plain-text dump, and
// markdown dump.
func (w *Writer) WriteCard(card *extract.Card) error {
	name := fmt.Sprintf("card_%03d.json", card.ID)
	if err := writeJSON(filepath.Join(w.root, dirMetadata, name), toRecord(card)); err != nil {
		return fmt.Errorf("archive: card %d metadata: %w", card.ID, err)
	}

	txtName := fmt.Sprintf("card_%03d_content.txt", card.ID)
	if err := os.WriteFile(filepath.Join(w.root, dirCards, txtName), []byte(contentDump(card)), 0o644); err != nil {
		return fmt.Errorf("archive: card %d content: %w", card.ID, err)
	}

	// Markdown rendering of the raw markup is best-effort.
	if md := w.markdown(card.RawMarkup); md != "" {
		mdName := fmt.Sprintf("card_%03d_content.md", card.ID)
		if err := os.WriteFile(filepath.Join(w.root, dirCards, mdName), []byte(md), 0o644); err != nil {
			w.log.Warn("archive: markdown dump failed", "card", card.ID, "error", err)
		}
	}
	return nil
}

// contentDump renders the human-readable text dump.
func contentDump(card *extract.Card) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\n", card.Title)
	fmt.Fprintf(&b, "Description: %s\n\n", card.Description)
	b.WriteString("Images:\n")
	for _, img := range card.Images {
		fmt.Fprintf(&b, "  - %s\n", img)
	}
	b.WriteString("\nFiles:\n")
	for _, f := range card.Files {
		fmt.Fprintf(&b, "  - %s: %s\n", f.DisplayText, f.URL)
	}
	return b.String()
}

func (w *Writer) markdown(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	out, err := w.md.ConvertString(markup)
	if err != nil {
		w.log.Debug("archive: markdown conversion failed", "error", err)
		return ""
	}
	return strings.TrimSpace(out)
}

// DownloadAssets fetches every image and every resolved file candidate
// of one card. Failures are logged and recorded; they never stop the
// remaining assets.
func (w *Writer) DownloadAssets(ctx context.Context, runID string, card *extract.Card) []DownloadResult {
	var results []DownloadResult

	for i, imgURL := range card.Images {
		res := w.download(ctx, imgURL, dirImages,
			fmt.Sprintf("card_%03d_img_%02d", card.ID, i+1), "", "jpg")
		w.record(ctx, runID, card.ID, res)
		results = append(results, res)
	}

	for i, f := range card.Files {
		if f.URL == "" || !isHTTP(f.URL) {
			// Unresolved or pseudo candidates carry nothing fetchable.
			continue
		}
		stem := Stem(f.DisplayText, i+1)
		res := w.download(ctx, f.URL, dirDocuments,
			fmt.Sprintf("card_%03d_", card.ID), stem, "bin")
		w.record(ctx, runID, card.ID, res)
		results = append(results, res)
	}

	return results
}

// download fetches one asset and writes it with the sniffed extension.
// prefix and stem form the filename; stem may be empty for images whose
// name is entirely positional. fallbackExt is used when sniffing yields
// nothing.
func (w *Writer) download(ctx context.Context, rawURL, sub, prefix, stem, fallbackExt string) DownloadResult {
	res := DownloadResult{SourceURL: rawURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		w.log.Error("archive: bad download url", "url", rawURL, "error", err)
		return res
	}
	resp, err := w.client.Do(req)
	if err != nil {
		w.log.Error("archive: download failed", "url", rawURL, "error", err)
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		w.log.Error("archive: download failed", "url", rawURL, "status", resp.StatusCode)
		return res
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		w.log.Error("archive: read body failed", "url", rawURL, "error", err)
		return res
	}

	prefixBytes := body
	if len(prefixBytes) > 4096 {
		prefixBytes = prefixBytes[:4096]
	}
	ext := sniff.Extension(rawURL, resp.Header, prefixBytes)
	if ext == "" {
		ext = fallbackExt
	}
	res.ResolvedExtension = ext

	dir := filepath.Join(w.root, sub)
	fitted := fitStem(dir, prefix, stem, ext)
	name := prefix + fitted + "." + ext
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, body, 0o644); err != nil {
		w.log.Error("archive: write failed", "path", path, "error", err)
		return res
	}

	res.LocalPath = path
	res.ByteCount = int64(len(body))
	res.Success = true
	w.log.Info("archive: downloaded", "path", path, "bytes", res.ByteCount)

	if w.cfg.ValidatePDFs && ext == "pdf" {
		w.checkPDF(path)
	}
	return res
}

func (w *Writer) record(ctx context.Context, runID string, cardID int, res DownloadResult) {
	if w.cfg.Audit != nil {
		w.cfg.Audit.RecordDownload(ctx, runID, cardID, res)
	}
}

// WriteExport writes the consolidated export covering all cards.
func (w *Writer) WriteExport(pageURL string, ts time.Time, cards []*extract.Card) error {
	type exportInfo struct {
		URL        string `json:"url"`
		Timestamp  string `json:"timestamp"`
		TotalCards int    `json:"total_cards"`
	}
	out := struct {
		ExportInfo exportInfo   `json:"export_info"`
		Cards      []cardRecord `json:"cards"`
	}{
		ExportInfo: exportInfo{
			URL:        pageURL,
			Timestamp:  ts.Format(timestampLayout),
			TotalCards: len(cards),
		},
		Cards: make([]cardRecord, 0, len(cards)),
	}
	for _, c := range cards {
		out.Cards = append(out.Cards, toRecord(c))
	}
	if err := writeJSON(filepath.Join(w.root, "taskcard_export.json"), out); err != nil {
		return fmt.Errorf("archive: export: %w", err)
	}
	return nil
}

// WriteSummary writes the run manifest.
func (w *Writer) WriteSummary(pageURL string, ts time.Time, cards []*extract.Card) error {
	type cardSummary struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	}
	out := struct {
		URL          string        `json:"url"`
		Timestamp    string        `json:"timestamp"`
		TotalCards   int           `json:"total_cards"`
		CardsSummary []cardSummary `json:"cards_summary"`
	}{
		URL:          pageURL,
		Timestamp:    ts.Format(timestampLayout),
		TotalCards:   len(cards),
		CardsSummary: make([]cardSummary, 0, len(cards)),
	}
	for _, c := range cards {
		out.CardsSummary = append(out.CardsSummary, cardSummary{ID: c.ID, Title: c.Title})
	}
	if err := writeJSON(filepath.Join(w.root, "download_summary.json"), out); err != nil {
		return fmt.Errorf("archive: summary: %w", err)
	}
	return nil
}

// writeJSON writes indented UTF-8 JSON without HTML escaping, the shape
// downstream viewers consume.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func isHTTP(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
