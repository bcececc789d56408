// Command boardsnap archives a board-style web application into a local
// corpus: per-card metadata, text dumps, a consolidated export, and all
// referenced assets with sniffed file types.
//
// Usage:
//
//	boardsnap -url https://boards.example/#/board/1     # live run
//	boardsnap -config boardsnap.yaml                    # configured run
//	boardsnap -from-snapshot page_source.html -url URL  # offline re-extraction
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/boardsnap/driver"
	"github.com/hazyhaar/boardsnap/driver/browser"
	"github.com/hazyhaar/boardsnap/driver/static"
	"github.com/hazyhaar/boardsnap/runner"
)

func main() {
	configPath := flag.String("config", "", "path to boardsnap.yaml config file")
	boardURL := flag.String("url", "", "board URL to archive")
	outDir := flag.String("out", "", "destination directory")
	snapshot := flag.String("from-snapshot", "", "re-extract from a saved page_source.html instead of a live browser")
	auditDB := flag.String("audit-db", "", "sqlite download-audit database path")
	remote := flag.String("remote", "", "WebSocket URL of an external Chrome instance")
	headful := flag.Bool("headful", false, "run local Chrome with a visible window")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *boardURL, *outDir, *snapshot, *auditDB, *remote, *headful); err != nil {
		logger.Error("boardsnap: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, boardURL, outDir, snapshot, auditDB, remote string, headful bool) error {
	cfg := &runner.Config{}
	if configPath != "" {
		loaded, err := runner.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if boardURL != "" {
		cfg.URL = boardURL
	}
	if outDir != "" {
		cfg.Root = outDir
	}
	if auditDB != "" {
		cfg.AuditDB = auditDB
	}
	if remote != "" {
		cfg.Browser.Remote = remote
	}
	if headful {
		cfg.Browser.Headful = true
	}
	cfg.ApplyDefaults()

	if cfg.URL == "" {
		fmt.Fprintln(os.Stderr, "usage: boardsnap -url <board-url> [-out <dir>] | -config <file>")
		os.Exit(1)
	}

	sess, err := openSession(ctx, logger, cfg, snapshot)
	if err != nil {
		return err
	}
	defer sess.Close()

	r := runner.New(cfg, sess, logger)
	report, err := r.Run(ctx)
	if err != nil {
		if errors.Is(err, runner.ErrNoCards) {
			logger.Error("boardsnap: no cards found; diagnostics saved for inspection",
				"root", cfg.Root)
		}
		return err
	}

	logger.Info("boardsnap: archive complete",
		"root", cfg.Root,
		"cards", report.CardCount,
		"downloads_ok", report.DownloadOK,
		"downloads", report.Downloads)
	return nil
}

// openSession picks the live browser or a static snapshot session.
func openSession(ctx context.Context, logger *slog.Logger, cfg *runner.Config, snapshot string) (driver.Session, error) {
	if snapshot != "" {
		return static.NewFromFile(snapshot, cfg.URL)
	}
	headless := !cfg.Browser.Headful
	return browser.New(ctx, browser.Config{
		RemoteURL: cfg.Browser.Remote,
		Headless:  &headless,
		Logger:    logger,
	})
}
