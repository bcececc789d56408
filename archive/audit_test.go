package archive_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/boardsnap/archive"
)

func TestAuditRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.db")

	a, err := archive.OpenAudit(path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	a.BeginRun(ctx, "run-1", "https://boards.example/b/1")
	a.RecordDownload(ctx, "run-1", 1, archive.DownloadResult{
		SourceURL:         "https://files.example/x.pdf",
		LocalPath:         "/out/documents/card_001_x.pdf",
		ByteCount:         42,
		ResolvedExtension: "pdf",
		Success:           true,
	})
	a.RecordDownload(ctx, "run-1", 2, archive.DownloadResult{
		SourceURL: "https://files.example/gone",
	})
	a.FinishRun(ctx, "run-1", 2, true)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var url string
	var totalCards, success int
	err = db.QueryRowContext(ctx,
		`SELECT url, total_cards, success FROM runs WHERE run_id = ?`, "run-1").
		Scan(&url, &totalCards, &success)
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://boards.example/b/1" || totalCards != 2 || success != 1 {
		t.Errorf("run row: url=%q total=%d success=%d", url, totalCards, success)
	}

	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM downloads WHERE run_id = ? AND success = 1`, "run-1").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("successful downloads = %d, want 1", n)
	}
}
