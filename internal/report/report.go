// Package report renders a ranking into the flat result files and the
// console summary. Output always carries the failure and exclusion counts
// alongside the ranked jobs.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cgruenke/jobrank/internal/embedding"
	"github.com/cgruenke/jobrank/internal/prep"
	"github.com/cgruenke/jobrank/internal/ranking"
)

// Meta identifies the run that produced a report.
type Meta struct {
	RunID       string    `json:"run_id"`
	Model       string    `json:"model"`
	Dimension   int       `json:"dimension"`
	GeneratedAt time.Time `json:"generated_at"`
}

// RankedJob is one ranked posting with enough metadata to render a
// human-readable list.
type RankedJob struct {
	Rank       int     `json:"rank"`
	Key        string  `json:"job_key"`
	Similarity float64 `json:"similarity"`
	Title      string  `json:"title,omitempty"`
	Company    string  `json:"company,omitempty"`
	Location   string  `json:"location,omitempty"`
	URL        string  `json:"url,omitempty"`
	Published  string  `json:"published,omitempty"`
}

// EmbedFailure mirrors a batcher failure in the output files.
type EmbedFailure struct {
	Key    string `json:"job_key"`
	Reason string `json:"reason"`
}

type Report struct {
	Meta       Meta           `json:"meta"`
	Jobs       []RankedJob    `json:"jobs"`
	Failures   []EmbedFailure `json:"embedding_failures,omitempty"`
	Degenerate []string       `json:"excluded_degenerate,omitempty"`
}

// Build joins a ranking with posting metadata and the embedding failures.
// Records missing from the lookup (should not happen) still appear with bare
// keys rather than being dropped.
func Build(meta Meta, rank *ranking.Ranking, records []*prep.Record, failures []embedding.Failure) *Report {
	byID := make(map[string]*prep.Record, len(records))
	for _, record := range records {
		byID[record.ID] = record
	}

	jobs := make([]RankedJob, 0, len(rank.Results))
	for i, result := range rank.Results {
		job := RankedJob{
			Rank:       i + 1,
			Key:        result.ID,
			Similarity: result.Score,
		}
		if record, ok := byID[result.ID]; ok {
			job.Title = record.Title
			job.Company = record.Company
			job.Location = record.Location
			job.URL = record.URL
			job.Published = record.Published
		}
		jobs = append(jobs, job)
	}

	failed := make([]EmbedFailure, 0, len(failures))
	for _, failure := range failures {
		failed = append(failed, EmbedFailure{Key: failure.ID, Reason: failure.Reason})
	}

	return &Report{
		Meta:       meta,
		Jobs:       jobs,
		Failures:   failed,
		Degenerate: rank.Excluded,
	}
}

func (r *Report) WriteJSON(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	return nil
}

func (r *Report) WriteCSV(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"rank", "job_key", "title", "company", "location", "similarity"}); err != nil {
		return err
	}

	for _, job := range r.Jobs {
		row := []string{
			fmt.Sprintf("%d", job.Rank),
			job.Key,
			job.Title,
			job.Company,
			job.Location,
			fmt.Sprintf("%.6f", job.Similarity),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// PrintTable writes the top jobs to w in a fixed-width layout.
func (r *Report) PrintTable(w io.Writer) {
	fmt.Fprintf(w, "\nTop %d jobs (by cosine similarity):\n\n", len(r.Jobs))
	fmt.Fprintf(w, "%-4s %7s  %-40s %-30s %s\n", "Rank", "Sim", "Title", "Company", "Location")
	fmt.Fprintln(w, "--------------------------------------------------------------------------------------------------------------")

	for _, job := range r.Jobs {
		fmt.Fprintf(w, "%-4d %7.4f  %-40s %-30s %s\n",
			job.Rank,
			job.Similarity,
			clip(job.Title, 38),
			clip(job.Company, 28),
			clip(job.Location, 40),
		)
	}

	if len(r.Failures) > 0 || len(r.Degenerate) > 0 {
		fmt.Fprintf(w, "\nExcluded: %d embedding failures, %d degenerate vectors\n", len(r.Failures), len(r.Degenerate))
	}
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
