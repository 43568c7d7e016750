package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/corey/autolink/internal/domain/report"
	"github.com/corey/autolink/internal/domain/terms"
)

// ANSI color codes for terminal output.
const (
	colorReset   = "\033[0m"
	colorBold    = "\033[1m"
	colorCyan    = "\033[36m"
	colorMagenta = "\033[35m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorRed     = "\033[31m"
	colorGray    = "\033[90m"
)

// formatSummary formats a build report for terminal display.
//
//	⚡ 120 pages │ 37 changed │ 412 links │ 85ms
//	  index:   300 terms from 118 pages
//	  cached:  80   disabled: 2
//	  top:     灵动骑士 ×24  异常构造 ×19
//	  ✗ failed: docs/a.md  rewrite /a.html: placeholder mismatch
func formatSummary(rep *report.Report, verb string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ %s %d pages%s │ %d changed │ %d links │ %dms\n",
		colorBold, verb, rep.Documents, colorReset, rep.Changed, rep.LinksInserted, rep.DurationMS))
	sb.WriteString(fmt.Sprintf("  index:   %d terms from %d pages\n", rep.IndexEntries, rep.IndexPages))
	if rep.Cached > 0 || rep.Disabled > 0 {
		sb.WriteString(fmt.Sprintf("  %scached:  %d   disabled: %d%s\n", colorGray, rep.Cached, rep.Disabled, colorReset))
	}
	if len(rep.TopTerms) > 0 {
		sb.WriteString("  top:    ")
		for i, tc := range rep.TopTerms {
			if i == 5 {
				break
			}
			sb.WriteString(fmt.Sprintf(" %s%s%s ×%d", colorCyan, tc.Term, colorReset, tc.Links))
		}
		sb.WriteString("\n")
	}
	if len(rep.Warnings) > 0 {
		sb.WriteString(fmt.Sprintf("  %s⚠ %d index entries dropped%s (see report.json)\n", colorYellow, len(rep.Warnings), colorReset))
	}
	for _, f := range rep.Failures {
		sb.WriteString(fmt.Sprintf("  %s✗ failed:%s %s  %s%s%s\n", colorRed, colorReset, f.Source, colorGray, f.Error, colorReset))
	}
	return sb.String()
}

// formatResults lists per-page diagnostics for check. Unchanged pages are
// omitted unless all is set.
//
//	  docs/a.md  /a.html  +3  灵动骑士×2 异常构造×1
func formatResults(results []report.Result, all bool) string {
	var sb strings.Builder
	for _, r := range results {
		switch {
		case r.Err != nil:
			sb.WriteString(fmt.Sprintf("  %s%s%s  %s✗ %v%s\n", colorCyan, r.Source, colorReset, colorRed, r.Err, colorReset))
			continue
		case r.Diag.Disabled:
			if all {
				sb.WriteString(fmt.Sprintf("  %s%s  autoLink off%s\n", colorGray, r.Source, colorReset))
			}
			continue
		case r.Diag.LinksInserted == 0 && !all:
			continue
		}

		sb.WriteString(fmt.Sprintf("  %s%s%s  %s  %s+%d%s",
			colorCyan, r.Source, colorReset, r.Diag.DocumentID, colorGreen, r.Diag.LinksInserted, colorReset))
		for _, term := range sortedTerms(r.Diag.PerTermCounts) {
			sb.WriteString(fmt.Sprintf("  %s×%d", term, r.Diag.PerTermCounts[term]))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatIndex lists index entries in priority order, then any warnings.
// limit <= 0 lists everything.
func formatIndex(idx *terms.Index, limit int) string {
	var sb strings.Builder
	entries := idx.Entries()
	sb.WriteString(fmt.Sprintf("%s⚡ %d terms%s │ %d pages\n", colorBold, len(entries), colorReset, idx.Pages()))
	for i, e := range entries {
		if limit > 0 && i == limit {
			sb.WriteString(fmt.Sprintf("  %s… %d more%s\n", colorGray, len(entries)-limit, colorReset))
			break
		}
		sb.WriteString(fmt.Sprintf("  %s%s%s → %s%s%s\n", colorCyan, e.Term, colorReset, colorMagenta, e.Target, colorReset))
	}
	for _, w := range idx.Warnings() {
		sb.WriteString(fmt.Sprintf("  %s⚠ %s%s %s %q %s\n", colorYellow, w.Kind, colorReset, w.Source, w.Term, w.Detail))
	}
	return sb.String()
}

// sortedTerms returns the keys of counts, most linked first.
func sortedTerms(counts map[string]int) []string {
	out := make([]string, 0, len(counts))
	for term := range counts {
		out = append(out, term)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
