package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Audit is a sqlite-backed download log: one row per run, one row per
// download attempt. Writes are non-blocking in the sense that errors are
// logged but never propagate — a failing audit store must not stop the
// archive.
type Audit struct {
	db *sql.DB
}

const auditSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	total_cards INTEGER,
	success     INTEGER
);
CREATE TABLE IF NOT EXISTS downloads (
	run_id     TEXT NOT NULL,
	card_id    INTEGER NOT NULL,
	source_url TEXT NOT NULL,
	local_path TEXT,
	bytes      INTEGER,
	extension  TEXT,
	success    INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_downloads_run ON downloads(run_id);
`

// OpenAudit opens (and if needed initializes) the audit database.
func OpenAudit(path string) (*Audit, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open audit db: %w", err)
	}
	if _, err := db.Exec(auditSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: audit schema: %w", err)
	}
	return &Audit{db: db}, nil
}

// BeginRun records the start of a run.
func (a *Audit) BeginRun(ctx context.Context, runID, url string) {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, url, started_at) VALUES (?,?,?)`,
		runID, url, time.Now().Unix())
	if err != nil {
		slog.Error("archive: audit run insert failed", "error", err, "run", runID)
	}
}

// FinishRun records the outcome of a run.
func (a *Audit) FinishRun(ctx context.Context, runID string, totalCards int, success bool) {
	_, err := a.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, total_cards = ?, success = ? WHERE run_id = ?`,
		time.Now().Unix(), totalCards, success, runID)
	if err != nil {
		slog.Error("archive: audit run update failed", "error", err, "run", runID)
	}
}

// RecordDownload records one download attempt.
func (a *Audit) RecordDownload(ctx context.Context, runID string, cardID int, res DownloadResult) {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO downloads (run_id, card_id, source_url, local_path, bytes, extension, success, created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		runID, cardID, res.SourceURL, res.LocalPath, res.ByteCount,
		res.ResolvedExtension, res.Success, time.Now().Unix())
	if err != nil {
		slog.Error("archive: audit download insert failed", "error", err, "run", runID)
	}
}

// Close closes the audit database.
func (a *Audit) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}
