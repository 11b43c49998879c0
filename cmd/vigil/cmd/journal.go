package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigilfs/vigil/internal/config"
	"github.com/vigilfs/vigil/internal/journal"
	"github.com/vigilfs/vigil/internal/ui"
	"github.com/vigilfs/vigil/internal/watch"
)

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the batch journal",
		Long: `Inspect batches recorded by watch sessions running with --journal.

The journal is opened read-only, so inspection works while a watch
session is still writing.`,
	}

	cmd.AddCommand(newJournalTailCmd())
	cmd.AddCommand(newJournalStatsCmd())
	return cmd
}

func newJournalTailCmd() *cobra.Command {
	var (
		limit      int
		category   string
		jsonOutput bool
		path       string
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent recorded batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalTail(cmd, path, category, limit, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of batches to show")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Show one category only (added|read|removed|changed|renamed)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&path, "path", "", "Journal file (default from config)")

	return cmd
}

func newJournalStatsCmd() *cobra.Command {
	var (
		jsonOutput bool
		noColor    bool
		path       string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show journal statistics",
		Long: `Display journal statistics including:
  - Total recorded batches and paths
  - Journal file size
  - First and last recording times
  - Per-category breakdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalStats(cmd, path, jsonOutput, noColor)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&path, "path", "", "Journal file (default from config)")

	return cmd
}

// resolveJournalPath picks the journal location: an explicit flag wins,
// otherwise the config of the current project decides.
func resolveJournalPath(explicit string) string {
	if explicit != "" {
		return explicit
	}

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}
	return cfg.Journal.Path
}

// journalEntryOutput is the JSON output format for one recorded batch.
type journalEntryOutput struct {
	ID         int64     `json:"id"`
	RecordedAt time.Time `json:"recorded_at"`
	Category   string    `json:"category"`
	Paths      []string  `json:"paths"`
}

func runJournalTail(cmd *cobra.Command, explicit, category string, limit int, jsonOutput bool) error {
	path := resolveJournalPath(explicit)
	if !fileExists(path) {
		return fmt.Errorf("no journal found at %s\nRun 'vigil watch --journal' to create one", path)
	}

	jr, err := journal.OpenReadOnly(path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { _ = jr.Close() }()

	var entries []journal.Entry
	if category != "" {
		cat, parseErr := watch.ParseCategory(category)
		if parseErr != nil {
			return parseErr
		}
		entries, err = jr.TailCategory(cmd.Context(), cat, limit)
	} else {
		entries, err = jr.Tail(cmd.Context(), limit)
	}
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	if jsonOutput {
		out := make([]journalEntryOutput, 0, len(entries))
		for _, e := range entries {
			out = append(out, journalEntryOutput{
				ID:         e.ID,
				RecordedAt: e.RecordedAt,
				Category:   e.Category.String(),
				Paths:      e.Paths,
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "Journal is empty.")
		return err
	}
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s  %-8s %s\n",
			e.RecordedAt.Format("2006-01-02 15:04:05"),
			e.Category.String(),
			strings.Join(e.Paths, ", "))
	}
	return nil
}

func runJournalStats(cmd *cobra.Command, explicit string, jsonOutput, noColor bool) error {
	path := resolveJournalPath(explicit)
	if !fileExists(path) {
		return fmt.Errorf("no journal found at %s\nRun 'vigil watch --journal' to create one", path)
	}

	jr, err := journal.OpenReadOnly(path)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() { _ = jr.Close() }()

	stats, err := jr.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to aggregate journal: %w", err)
	}

	info := ui.StatsInfo{
		JournalPath: path,
		Batches:     stats.Batches,
		Paths:       stats.Paths,
		First:       stats.First,
		Last:        stats.Last,
	}
	if fi, statErr := os.Stat(path); statErr == nil {
		info.SizeBytes = fi.Size()
	}
	for _, cs := range stats.PerCategory {
		info.PerCategory = append(info.PerCategory, ui.CategoryStat{
			Category: cs.Category,
			Batches:  cs.Batches,
			Paths:    cs.Paths,
		})
	}

	renderer := ui.NewStatsRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}
