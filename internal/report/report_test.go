package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cgruenke/jobrank/internal/embedding"
	"github.com/cgruenke/jobrank/internal/prep"
	"github.com/cgruenke/jobrank/internal/ranking"
)

func testReport() *Report {
	rank := &ranking.Ranking{
		Results: []ranking.Result{
			{ID: "a", Score: 0.923456},
			{ID: "b", Score: 0.81},
		},
		Excluded: []string{"z"},
	}

	records := []*prep.Record{
		{ID: "a", Title: "go developer", Company: "acme", Location: "saint louis, mo", URL: "https://example.com/a"},
		{ID: "b", Title: "backend engineer", Company: "globex"},
	}

	failures := []embedding.Failure{{ID: "c", Reason: "exhausted 3 attempts: rate limited"}}

	meta := Meta{
		RunID:       "run-1",
		Model:       "text-embedding-3-small",
		Dimension:   1536,
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	return Build(meta, rank, records, failures)
}

func TestBuildJoinsMetadata(t *testing.T) {
	report := testReport()

	if len(report.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(report.Jobs))
	}
	first := report.Jobs[0]
	if first.Rank != 1 || first.Key != "a" || first.Company != "acme" {
		t.Fatalf("unexpected first job: %+v", first)
	}
	if len(report.Failures) != 1 || report.Failures[0].Key != "c" {
		t.Fatalf("unexpected failures: %+v", report.Failures)
	}
	if len(report.Degenerate) != 1 || report.Degenerate[0] != "z" {
		t.Fatalf("unexpected degenerate list: %+v", report.Degenerate)
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	report := testReport()
	path := filepath.Join(t.TempDir(), "top_jobs.json")

	if err := report.WriteJSON(path); err != nil {
		t.Fatalf("write json: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Meta.RunID != "run-1" {
		t.Fatalf("unexpected run id: %q", decoded.Meta.RunID)
	}
	if decoded.Jobs[1].Key != "b" {
		t.Fatalf("expected ordering preserved, got %+v", decoded.Jobs)
	}
}

func TestWriteCSVRowsMatchOrdering(t *testing.T) {
	report := testReport()
	path := filepath.Join(t.TempDir(), "top_jobs.csv")

	if err := report.WriteCSV(path); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[1][1] != "a" || rows[2][1] != "b" {
		t.Fatalf("unexpected row order: %v", rows)
	}
	if rows[1][5] != "0.923456" {
		t.Fatalf("expected 6-decimal similarity, got %q", rows[1][5])
	}
}

func TestPrintTableIncludesExclusions(t *testing.T) {
	report := testReport()

	var buf bytes.Buffer
	report.PrintTable(&buf)

	out := buf.String()
	if !strings.Contains(out, "go developer") {
		t.Fatalf("expected job title in table output:\n%s", out)
	}
	if !strings.Contains(out, "1 embedding failures, 1 degenerate vectors") {
		t.Fatalf("expected exclusion summary in table output:\n%s", out)
	}
}
