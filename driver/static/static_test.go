package static

import (
	"context"
	"strings"
	"testing"
)

const fixture = `<html><body>
<div class="card" id="c1">
  <h2>First Card</h2>
  <p>Some <b>bold</b> text</p>
  <script>var hidden = "should not leak";</script>
  <img src="https://cdn.example.com/a.png">
</div>
<div class="card" id="c2"><span>Second</span></div>
</body></html>`

func TestQueryAndScoping(t *testing.T) {
	ctx := context.Background()
	sess, err := New(fixture, "https://boards.example/b/1")
	if err != nil {
		t.Fatal(err)
	}

	cards, err := sess.Query(ctx, ".card")
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(cards))
	}

	// Scoped query must not escape the node.
	imgs, err := cards[1].Query(ctx, "img")
	if err != nil {
		t.Fatal(err)
	}
	if len(imgs) != 0 {
		t.Fatalf("second card has no images, got %d", len(imgs))
	}

	imgs, err = cards[0].Query(ctx, "img")
	if err != nil {
		t.Fatal(err)
	}
	if len(imgs) != 1 {
		t.Fatalf("first card has 1 image, got %d", len(imgs))
	}
	src, _ := imgs[0].Attr(ctx, "src")
	if src != "https://cdn.example.com/a.png" {
		t.Fatalf("unexpected src %q", src)
	}
}

func TestVisibleTextStripsScripts(t *testing.T) {
	ctx := context.Background()
	sess, err := New(fixture, "")
	if err != nil {
		t.Fatal(err)
	}
	cards, _ := sess.Query(ctx, "#c1")
	if len(cards) != 1 {
		t.Fatal("missing card")
	}
	txt, err := cards[0].Text(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(txt, "should not leak") {
		t.Fatalf("script body leaked into visible text: %q", txt)
	}
	if !strings.Contains(txt, "First Card") || !strings.Contains(txt, "bold") {
		t.Fatalf("visible text missing content: %q", txt)
	}
}

func TestVisibleTextLineStructure(t *testing.T) {
	got := VisibleText(`<h2>Title Line</h2><p>Body one</p><p>Body &amp; two</p>`)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), got)
	}
	if lines[0] != "Title Line" {
		t.Fatalf("first line = %q", lines[0])
	}
	if lines[2] != "Body & two" {
		t.Fatalf("entity not decoded: %q", lines[2])
	}
}

func TestStaticSessionRefusesLiveOps(t *testing.T) {
	ctx := context.Background()
	sess, _ := New(fixture, "u")

	if _, err := sess.Screenshot(ctx); err == nil {
		t.Error("expected error from Screenshot")
	}
	if _, err := sess.Responses(ctx, 10); err == nil {
		t.Error("expected error from Responses")
	}
	els, _ := sess.Query(ctx, ".card")
	if err := els[0].Click(ctx); err == nil {
		t.Error("expected error from Click")
	}
}
