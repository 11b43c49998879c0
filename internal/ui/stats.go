package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// CategoryStat is a per-category journal tally.
type CategoryStat struct {
	Category string `json:"category"`
	Batches  int64  `json:"batches"`
	Paths    int64  `json:"paths"`
}

// StatsInfo contains journal health information.
type StatsInfo struct {
	JournalPath string    `json:"journal_path"`
	SizeBytes   int64     `json:"size_bytes"`
	Batches     int64     `json:"batches"`
	Paths       int64     `json:"paths"`
	First       time.Time `json:"first"`
	Last        time.Time `json:"last"`

	PerCategory []CategoryStat `json:"per_category,omitempty"`
}

// StatsRenderer displays journal statistics.
type StatsRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewStatsRenderer creates a stats renderer.
func NewStatsRenderer(out io.Writer, noColor bool) *StatsRenderer {
	return &StatsRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Render displays journal stats to the terminal.
func (r *StatsRenderer) Render(info StatsInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Journal: "+info.JournalPath))

	_, _ = fmt.Fprintf(r.out, "  Batches: %d\n", info.Batches)
	_, _ = fmt.Fprintf(r.out, "  Paths:   %d\n", info.Paths)
	if info.SizeBytes > 0 {
		_, _ = fmt.Fprintf(r.out, "  Size:    %s\n", FormatBytes(info.SizeBytes))
	}
	if !info.First.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  First:   %s\n", info.First.Format("2006-01-02 15:04:05"))
	}
	if !info.Last.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last:    %s\n", formatTime(info.Last))
	}

	if len(info.PerCategory) > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "  Per category:")
		for _, cs := range info.PerCategory {
			_, _ = fmt.Fprintf(r.out, "    %-8s %d batches, %d paths\n",
				cs.Category+":", cs.Batches, cs.Paths)
		}
	}

	return nil
}

// RenderJSON outputs journal stats as JSON.
func (r *StatsRenderer) RenderJSON(info StatsInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// formatTime formats a time for display, relative when recent.
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
