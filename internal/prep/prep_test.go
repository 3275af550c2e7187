package prep

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/cgruenke/jobrank/internal/jobsearch"
)

func TestHTMLToText(t *testing.T) {
	html := `<div><h1>Go Developer</h1><script>alert(1)</script><p>Build   services.</p></div>`

	got := HTMLToText(html)

	if got != "Go Developer Build services." {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestNormalizeLocation(t *testing.T) {
	cases := map[string]string{
		"St. Louis, MO":     "saint louis, mo",
		"Saint Louis":       "saint louis, mo",
		"Kansas City, MO":   "kansas city, mo",
		"":                  "",
	}

	for in, want := range cases {
		if got := NormalizeLocation(in); got != want {
			t.Fatalf("NormalizeLocation(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanFillsMissingFields(t *testing.T) {
	cleaner, err := NewCleaner(Options{Lowercase: true, StripSpecial: true, MissingPolicy: MissingFill}, zap.NewNop())
	if err != nil {
		t.Fatalf("new cleaner: %v", err)
	}

	posting := &jobsearch.Posting{
		Key:             "abc",
		Title:           "Senior Go Developer!!",
		DescriptionHTML: "<p>Write Go.</p>",
	}

	records := cleaner.Clean(&jobsearch.Postings{Items: []*jobsearch.Posting{posting}})

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	record := records[0]
	if record.Title != "senior go developer" {
		t.Fatalf("unexpected title: %q", record.Title)
	}
	if record.Company != "n/a" {
		t.Fatalf("expected filled company, got %q", record.Company)
	}
	if record.Description != "write go." {
		t.Fatalf("unexpected description: %q", record.Description)
	}
}

func TestCleanDropsWithoutKey(t *testing.T) {
	cleaner, err := NewCleaner(Options{MissingPolicy: MissingDrop}, zap.NewNop())
	if err != nil {
		t.Fatalf("new cleaner: %v", err)
	}

	records := cleaner.Clean(&jobsearch.Postings{Items: []*jobsearch.Posting{
		{Title: "No Key", DescriptionText: "whatever"},
		{Key: "ok", Title: "With Key", DescriptionText: "real work"},
		{Key: "empty", Title: "Empty Description"},
	}})

	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ID != "ok" {
		t.Fatalf("unexpected record kept: %q", records[0].ID)
	}
}

func TestEmbedTextSkipsPlaceholders(t *testing.T) {
	record := &Record{
		ID:          "x",
		Title:       "go developer",
		Company:     "n/a",
		Location:    "saint louis, mo",
		Description: "write go",
	}

	if got := record.EmbedText(); got != "go developer saint louis, mo write go" {
		t.Fatalf("unexpected embed text: %q", got)
	}
}

func TestLoadResumeSections(t *testing.T) {
	content := "John Doe\n\nSummary\nGo engineer.\n\nSkills\nGo, SQL, Docker\n\nExperience\nAcme 2020-2024\n"
	path := filepath.Join(t.TempDir(), "resume.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write resume: %v", err)
	}

	resume, err := LoadResume(path)
	if err != nil {
		t.Fatalf("load resume: %v", err)
	}

	if resume.Text == "" {
		t.Fatalf("expected non-empty text")
	}
	if resume.Sections["skills"] != "Go, SQL, Docker" {
		t.Fatalf("unexpected skills section: %q", resume.Sections["skills"])
	}
	if resume.Sections["experience"] != "Acme 2020-2024" {
		t.Fatalf("unexpected experience section: %q", resume.Sections["experience"])
	}
}

func TestLoadResumeRejectsPDF(t *testing.T) {
	if _, err := LoadResume("resume.pdf"); err == nil {
		t.Fatalf("expected error for pdf resume")
	}
}
