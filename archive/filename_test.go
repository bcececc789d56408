package archive

import (
	"strings"
	"testing"
	"unicode"
)

func TestStemSanitizes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Kapitel 1: Einführung?!", "Kapitel 1 Einführung"},
		{"notes.pdf", "notes"},
		{"Bericht Q3.docx", "Bericht Q3"},
		{"file/with\\separators", "filewithseparators"},
		{"  padded  ", "padded"},
		{"data.backup2024", "data.backup2024"}, // suffix too long to be an extension
		{"v1.2", "v1"},
	}
	for _, tt := range tests {
		if got := Stem(tt.in, 1); got != tt.want {
			t.Errorf("Stem(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStemEmptyBecomesPlaceholder(t *testing.T) {
	for _, in := range []string{"", "???!!!", "   "} {
		got := Stem(in, 7)
		if got != "file_7" {
			t.Errorf("Stem(%q) = %q, want file_7", in, got)
		}
	}
}

func TestStemOutputAlwaysAllowedCharset(t *testing.T) {
	inputs := []string{
		"a<b>c|d\"e", "Übung: Nr. 5 (neu)", "\t\nctrl\x00chars", "ёжик и café",
	}
	for _, in := range inputs {
		got := Stem(in, 1)
		if got == "" {
			t.Errorf("Stem(%q) produced empty output", in)
		}
		for _, r := range got {
			ok := unicode.IsLetter(r) || unicode.IsDigit(r) ||
				r == ' ' || r == '.' || r == '_' || r == '-'
			if !ok {
				t.Errorf("Stem(%q) contains disallowed rune %q", in, r)
			}
		}
	}
}

func TestFitStemRespectsPathLimit(t *testing.T) {
	dir := "/data/archive/documents"
	prefix := "card_001_"
	stem := strings.Repeat("Einführung", 40)
	ext := "pptx"

	fitted := fitStem(dir, prefix, stem, ext)
	full := dir + "/" + prefix + fitted + "." + ext
	if len(full) > maxPathLen {
		t.Fatalf("path still too long: %d", len(full))
	}
	if !strings.HasSuffix(full, ".pptx") {
		t.Fatalf("extension not preserved: %q", full)
	}
	if fitted == "" {
		t.Fatal("stem truncated to nothing despite available budget")
	}
}

func TestFitStemLeavesShortNamesAlone(t *testing.T) {
	if got := fitStem("/tmp/x", "card_001_", "notes", "pdf"); got != "notes" {
		t.Fatalf("short stem modified: %q", got)
	}
}
