// Package report summarises one batch build.
//
// The build writes report.json under .autolink/ after every run. The check
// command prints the same data without writing any pages.
package report

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/corey/autolink/internal/domain/linker"
	"github.com/corey/autolink/internal/domain/terms"
)

// ReportFile is the filename within the .autolink directory where the report is written.
const ReportFile = "report.json"

// Result is the outcome of one document in a batch.
type Result struct {
	Source  string
	Diag    linker.Diagnostics
	Changed bool  // output differs from input
	Cached  bool  // served from the build cache
	Err     error // rewrite failed; original body was kept
}

// Report is the JSON payload written after a build.
type Report struct {
	Source        string          `json:"source"`
	Documents     int             `json:"documents"`
	Changed       int             `json:"changed"`
	Disabled      int             `json:"disabled"`
	Cached        int             `json:"cached"`
	Failed        int             `json:"failed"`
	LinksInserted int             `json:"links_inserted"`
	IndexEntries  int             `json:"index_entries"`
	IndexPages    int             `json:"index_pages"`
	TopTerms      []TermCount     `json:"top_terms,omitempty"`
	Failures      []Failure       `json:"failures,omitempty"`
	Warnings      []terms.Warning `json:"warnings,omitempty"`
	DurationMS    int64           `json:"duration_ms"`
}

// TermCount is how often one term was linked across the batch.
type TermCount struct {
	Term  string `json:"term"`
	Links int    `json:"links"`
}

// Failure names a document whose rewrite was abandoned.
type Failure struct {
	Document string `json:"document"`
	Source   string `json:"source,omitempty"`
	Error    string `json:"error"`
}

// Generate folds per-document results into a Report. top bounds TopTerms.
func Generate(source string, idx *terms.Index, results []Result, elapsed time.Duration, top int) *Report {
	r := &Report{
		Source:       source,
		Documents:    len(results),
		IndexEntries: idx.Len(),
		IndexPages:   idx.Pages(),
		Warnings:     idx.Warnings(),
		DurationMS:   elapsed.Milliseconds(),
	}
	perTerm := make(map[string]int)
	for _, res := range results {
		switch {
		case res.Err != nil:
			r.Failed++
			r.Failures = append(r.Failures, Failure{
				Document: res.Diag.DocumentID,
				Source:   res.Source,
				Error:    res.Err.Error(),
			})
			continue
		case res.Diag.Disabled:
			r.Disabled++
		}
		if res.Cached {
			r.Cached++
		}
		if res.Changed {
			r.Changed++
		}
		r.LinksInserted += res.Diag.LinksInserted
		for term, n := range res.Diag.PerTermCounts {
			perTerm[term] += n
		}
	}
	r.TopTerms = topTerms(perTerm, top)
	return r
}

// WriteJSON writes the report as indented JSON to a file.
func WriteJSON(path string, data *Report) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// ReadJSON loads a report written by WriteJSON.
func ReadJSON(path string) (*Report, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// topTerms returns the top N terms sorted by links descending.
func topTerms(counts map[string]int, n int) []TermCount {
	if len(counts) == 0 || n <= 0 {
		return nil
	}

	out := make([]TermCount, 0, len(counts))
	for term, links := range counts {
		out = append(out, TermCount{term, links})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Links != out[j].Links {
			return out[i].Links > out[j].Links
		}
		return out[i].Term < out[j].Term
	})

	if n < len(out) {
		out = out[:n]
	}
	return out
}
