// Package output renders criteria and findings as plain-text tables for the
// terminal. Output is uncolored by default so CI logs stay clean.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/complykit/ksi-evidence/internal/models"
)

// ANSI color codes for status output (used when Colored=true).
const (
	ansiReset  = "\033[0m"
	ansiGreen  = "\033[0;32m"
	ansiRed    = "\033[0;31m"
	ansiYellow = "\033[0;33m"
	ansiBlue   = "\033[0;34m"
)

// TableOptions controls table rendering.
type TableOptions struct {
	// Colored wraps status labels with ANSI codes. Default false (CI-safe).
	Colored bool
}

// ColorStatus wraps a status string with ANSI codes when colored is true.
// When colored is false the string is returned unchanged.
func ColorStatus(status models.Status, colored bool) string {
	s := string(status)
	if !colored {
		return s
	}
	switch status {
	case models.StatusPass:
		return ansiGreen + s + ansiReset
	case models.StatusFail:
		return ansiRed + s + ansiReset
	case models.StatusError:
		return ansiYellow + s + ansiReset
	case models.StatusSkip:
		return ansiBlue + s + ansiReset
	default:
		return s
	}
}

// ShortenMessage truncates msg to at most max runes, appending "..." when
// truncated. max is treated as at least 4 to guarantee space for the
// ellipsis.
func ShortenMessage(msg string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max-3]) + "..."
}

// statusCell returns the status padded to width characters. When colored,
// ANSI codes wrap only the text; trailing padding spaces are plain so
// subsequent columns stay visually aligned regardless of terminal ANSI
// support.
func statusCell(status models.Status, width int, colored bool) string {
	text := string(status)
	if !colored {
		return fmt.Sprintf("%-*s", width, text)
	}
	spaces := width - len(text)
	if spaces < 0 {
		spaces = 0
	}
	return ColorStatus(status, true) + strings.Repeat(" ", spaces)
}

func truncateField(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// RenderCriteria writes a formatted criteria table to w.
//
// Column order:
//
//	CRITERION  NAME  STATUS  FINDINGS  REASON
func RenderCriteria(w io.Writer, criteria []models.CriterionResult, opts TableOptions) {
	if len(criteria) == 0 {
		fmt.Fprintln(w, "No criteria evaluated.")
		return
	}

	const (
		wID       = 10
		wName     = 34
		wStatus   = 7
		wFindings = 8
		wReason   = 60
	)

	header := fmt.Sprintf("%-*s  %-*s  %-*s  %-*s  %-*s",
		wID, "CRITERION", wName, "NAME", wStatus, "STATUS", wFindings, "FINDINGS", wReason, "REASON")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, c := range criteria {
		fmt.Fprintf(w, "%-*s  %-*s  %s  %-*d  %-*s\n",
			wID, truncateField(c.ID, wID),
			wName, truncateField(c.Name, wName),
			statusCell(c.Status, wStatus, opts.Colored),
			wFindings, len(c.Findings),
			wReason, ShortenMessage(c.Reason, wReason))
	}
}

// RenderFindings writes a formatted findings table to w.
//
// Column order:
//
//	RESOURCE  SEVERITY  SOURCE FILE  ISSUE
func RenderFindings(w io.Writer, findings []models.Finding, opts TableOptions) {
	if len(findings) == 0 {
		fmt.Fprintln(w, "No findings.")
		return
	}

	const (
		wResource = 40
		wSeverity = 8
		wFile     = 30
		wIssue    = 60
	)

	header := fmt.Sprintf("%-*s  %-*s  %-*s  %-*s",
		wResource, "RESOURCE", wSeverity, "SEVERITY", wFile, "SOURCE FILE", wIssue, "ISSUE")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, f := range findings {
		fmt.Fprintf(w, "%-*s  %-*s  %-*s  %-*s\n",
			wResource, truncateField(f.Resource, wResource),
			wSeverity, truncateField(string(f.Severity), wSeverity),
			wFile, truncateField(f.SourceFile, wFile),
			wIssue, ShortenMessage(f.Issue, wIssue))
	}
}
