package runner_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/boardsnap/driver/static"
	"github.com/hazyhaar/boardsnap/runner"
)

func fileServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/report.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 body"))
	})
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func boardPage(fileBase string) string {
	return fmt.Sprintf(`<html><body>
	  <div class="card">
	    <h2>Hausaufgabe Mathe</h2>
	    <p>Aufgaben 1 bis 10.</p>
	    <img src="%s/logo.png">
	    <a href="%s/report.pdf">report.pdf</a>
	  </div>
	  <div class="card">
	    <h2>Leere Karte</h2>
	    <p>Ohne Anhang.</p>
	  </div>
	</body></html>`, fileBase, fileBase)
}

func TestRunEndToEnd(t *testing.T) {
	srv := fileServer(t)
	root := t.TempDir()

	sess, err := static.New(boardPage(srv.URL), "https://boards.example/b/7")
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	cfg := &runner.Config{URL: "https://boards.example/b/7", Root: root}
	r := runner.New(cfg, sess, nil)

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if report.CardCount != 2 {
		t.Errorf("cards = %d, want 2", report.CardCount)
	}
	if report.Resolved != 1 {
		t.Errorf("resolved = %d, want 1", report.Resolved)
	}
	if report.DownloadOK != 2 {
		t.Errorf("downloads ok = %d, want 2 (image + document)", report.DownloadOK)
	}

	for _, rel := range []string{
		"page_source.html",
		filepath.Join("metadata", "card_001.json"),
		filepath.Join("metadata", "card_002.json"),
		filepath.Join("cards", "card_001_content.txt"),
		filepath.Join("documents", "card_001_report.pdf"),
		filepath.Join("images", "card_001_img_01.png"),
		"taskcard_export.json",
		"download_summary.json",
	} {
		if _, err := os.Stat(filepath.Join(root, rel)); err != nil {
			t.Errorf("missing output %s: %v", rel, err)
		}
	}
	// A static session cannot screenshot; no png must appear.
	if _, err := os.Stat(filepath.Join(root, "page_screenshot.png")); err == nil {
		t.Error("unexpected screenshot from static session")
	}

	data, err := os.ReadFile(filepath.Join(root, "taskcard_export.json"))
	if err != nil {
		t.Fatal(err)
	}
	var export struct {
		ExportInfo struct {
			TotalCards int `json:"total_cards"`
		} `json:"export_info"`
	}
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatal(err)
	}
	if export.ExportInfo.TotalCards != 2 {
		t.Errorf("export total_cards = %d", export.ExportInfo.TotalCards)
	}
}

func TestRunNoCards(t *testing.T) {
	root := t.TempDir()
	sess, err := static.New("<html><body><p>nothing here</p></body></html>", "https://boards.example/empty")
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	cfg := &runner.Config{URL: "https://boards.example/empty", Root: root}
	r := runner.New(cfg, sess, nil)

	_, err = r.Run(context.Background())
	if err != runner.ErrNoCards {
		t.Fatalf("err = %v, want ErrNoCards", err)
	}

	// Diagnostics are still written so the failure can be inspected.
	if _, err := os.Stat(filepath.Join(root, "page_source.html")); err != nil {
		t.Error("page_source.html missing after empty run")
	}
	entries, err := os.ReadDir(filepath.Join(root, "metadata"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("metadata should be empty, has %d entries", len(entries))
	}
}

func TestRunStopBetweenCards(t *testing.T) {
	root := t.TempDir()
	sess, err := static.New(boardPage("https://unreachable.invalid"), "https://boards.example/b/7")
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	cfg := &runner.Config{URL: "https://boards.example/b/7", Root: root}
	r := runner.New(cfg, sess, nil)
	r.Stop()

	report, err := r.Run(context.Background())
	if err != runner.ErrNoCards {
		t.Fatalf("err = %v, want ErrNoCards (stop before first card)", err)
	}
	if report.CardCount != 0 {
		t.Errorf("cards = %d, want 0", report.CardCount)
	}
}
