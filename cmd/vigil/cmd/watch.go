package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigilfs/vigil/internal/config"
	verrors "github.com/vigilfs/vigil/internal/errors"
	"github.com/vigilfs/vigil/internal/filter"
	"github.com/vigilfs/vigil/internal/gitignore"
	"github.com/vigilfs/vigil/internal/journal"
	"github.com/vigilfs/vigil/internal/logging"
	"github.com/vigilfs/vigil/internal/metrics"
	"github.com/vigilfs/vigil/internal/source"
	"github.com/vigilfs/vigil/internal/ui"
	"github.com/vigilfs/vigil/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var p watchParams

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch a directory tree and classify changes",
		Long: `Watch a directory tree and report every change as a debounced,
classified batch: added, read, removed, changed or renamed.

On interactive terminals a live feed shows recent batches, per-category
tallies and an activity sparkline. Pipes, CI environments and --plain
get one line per batch instead.

Pass --journal to record delivered batches to a SQLite journal for
later inspection with 'vigil journal'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Ctrl+C must tear the session down cleanly, so context
			// cancellation has to reach the source backend
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}

			if p.filesOnly && p.dirsOnly {
				return fmt.Errorf("--files-only and --dirs-only are mutually exclusive")
			}

			// Flags left at their defaults defer to the config file
			flags := cmd.Flags()
			if !flags.Changed("debounce") {
				p.debounce = 0
			}
			if !flags.Changed("correlation") {
				p.correlation = 0
			}
			if !flags.Changed("tick") {
				p.tick = 0
			}
			if !flags.Changed("poll-interval") {
				p.pollInterval = 0
			}
			if !flags.Changed("buffer") {
				p.bufferSize = 0
			}
			p.journalSet = flags.Changed("journal")

			return runWatch(ctx, cmd, path, p)
		},
	}

	cmd.Flags().StringVarP(&p.pattern, "pattern", "p", "", "Glob pattern to filter reported paths (doublestar syntax)")
	cmd.Flags().StringSliceVar(&p.ignore, "ignore", nil, "Gitignore-style pattern to exclude from watching (repeatable)")
	cmd.Flags().StringVar(&p.ignoreFile, "ignore-file", "", "File of gitignore-style patterns to exclude")
	cmd.Flags().BoolVar(&p.plain, "plain", false, "Disable the live feed, print plain lines")
	cmd.Flags().BoolVar(&p.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&p.noRecursive, "no-recursive", false, "Watch only the root's direct children")
	cmd.Flags().BoolVar(&p.filesOnly, "files-only", false, "Report regular files only")
	cmd.Flags().BoolVar(&p.dirsOnly, "dirs-only", false, "Report directories only")
	cmd.Flags().DurationVar(&p.runFor, "duration", 0, "Stop automatically after this long (0 watches until interrupted)")
	cmd.Flags().DurationVar(&p.debounce, "debounce", 200*time.Millisecond, "Quiet period before a change is classified")
	cmd.Flags().DurationVar(&p.correlation, "correlation", 50*time.Millisecond, "Window for pairing the two halves of a rename")
	cmd.Flags().DurationVar(&p.tick, "tick", 25*time.Millisecond, "Window for aggregating same-category flushes into one batch")
	cmd.Flags().DurationVar(&p.pollInterval, "poll-interval", 2*time.Second, "Scan interval when the polling backend is in use")
	cmd.Flags().IntVar(&p.bufferSize, "buffer", 1024, "Raw event channel buffer size")
	cmd.Flags().BoolVar(&p.journalOn, "journal", false, "Record delivered batches to a SQLite journal")
	cmd.Flags().StringVar(&p.journalPath, "journal-path", "", "Journal file location (implies --journal)")
	cmd.Flags().StringVar(&p.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

// watchParams carries the watch command's flag values into runWatch.
// Zero values defer to the loaded configuration.
type watchParams struct {
	pattern      string
	ignore       []string
	ignoreFile   string
	plain        bool
	noColor      bool
	noRecursive  bool
	filesOnly    bool
	dirsOnly     bool
	runFor       time.Duration
	debounce     time.Duration
	correlation  time.Duration
	tick         time.Duration
	pollInterval time.Duration
	bufferSize   int

	journalSet  bool // --journal was given explicitly
	journalOn   bool
	journalPath string
	metricsAddr string
}

func runWatch(ctx context.Context, cmd *cobra.Command, path string, p watchParams) error {
	// Validate path exists first (needed for the renderer header)
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return verrors.New(verrors.ErrCodeRootNotDirectory,
			fmt.Sprintf("path is not a directory: %s", absPath), nil).
			WithSuggestion("pass the directory that contains the file instead")
	}

	// Find project root (may be different from path if path is a subdirectory)
	root, err := config.FindProjectRoot(absPath)
	if err != nil {
		root = absPath
	}

	// Load configuration, falling back to defaults
	cfg, cfgErr := config.Load(root)
	if cfgErr != nil {
		cfg = config.NewConfig()
	}

	// File-only logging so neither the feed nor plain output is torn up
	level := cfg.Log.Level
	if debugMode {
		level = "debug"
	}
	if cleanup, logErr := logging.SetupFeedMode(level, cfg.Log.File); logErr == nil {
		defer cleanup()
	}
	// Continue even if logging setup fails - not critical for CLI

	if cfgErr != nil {
		slog.Warn("config load failed, using defaults",
			slog.String("root", root),
			slog.String("error", cfgErr.Error()))
	}

	pattern := p.pattern
	if pattern == "" {
		pattern = cfg.Watch.Pattern
	}

	// Exclusions stack: config file, then --ignore, then --ignore-file
	ignorePatterns := append([]string(nil), cfg.Watch.Ignore...)
	ignorePatterns = append(ignorePatterns, p.ignore...)
	if p.ignoreFile != "" {
		filePatterns, readErr := gitignore.ReadPatterns(p.ignoreFile)
		if readErr != nil {
			return fmt.Errorf("failed to read ignore file: %w", readErr)
		}
		ignorePatterns = append(ignorePatterns, filePatterns...)
	}

	// Create renderer (auto-detects TTY/CI, respects --plain)
	uiCfg := ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(p.plain),
		ui.WithNoColor(p.noColor),
		ui.WithRoot(absPath),
		ui.WithPattern(pattern))
	renderer := ui.NewRenderer(uiCfg)
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start feed renderer", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	// Journal, if requested by flag or config
	journalOn := cfg.Journal.Enabled
	if p.journalSet {
		journalOn = p.journalOn
	}
	journalPath := cfg.Journal.Path
	if p.journalPath != "" {
		journalPath = p.journalPath
		if !p.journalSet {
			journalOn = true
		}
	}

	var jr *journal.Journal
	if journalOn {
		jr, err = openJournal(ctx, journalPath)
		if err != nil {
			return err
		}
		defer func() { _ = jr.Close() }()
		slog.Info("journal enabled", slog.String("path", jr.Path()))
	}

	// Metrics endpoint, if requested by flag or config
	metricsAddr := p.metricsAddr
	if metricsAddr == "" && cfg.Metrics.Enabled {
		metricsAddr = cfg.Metrics.Addr
	}
	if metricsAddr != "" {
		shutdown := serveMetrics(metricsAddr)
		defer shutdown()
	}

	// A journal on a full disk or locked database must not take the
	// session down with it; the breaker turns repeated write failures
	// into a single degraded state.
	breaker := verrors.NewCircuitBreaker("journal",
		verrors.WithMaxFailures(5),
		verrors.WithResetTimeout(10*time.Second))

	tally := newSessionTally()
	deliver := func(cat watch.Category) func(paths []string) {
		return func(paths []string) {
			now := time.Now()
			tally.addBatch(cat, len(paths))
			renderer.ShowBatch(ui.BatchEvent{Category: cat, Paths: paths, Time: now})

			if jr == nil {
				return
			}
			// Tail batches still deliver after cancellation; the write
			// is local and bounded by the busy timeout.
			recordErr := breaker.Execute(func() error {
				return jr.Record(context.Background(), watch.Batch{Category: cat, Paths: paths})
			})
			if recordErr != nil {
				tally.warn()
				renderer.AddError(ui.ErrorEvent{Err: recordErr, IsWarn: true})
				slog.Warn("journal write failed", slog.String("error", recordErr.Error()))
			}
		}
	}
	handlers := watch.Handlers{
		Added:   deliver(watch.CategoryAdded),
		Read:    deliver(watch.CategoryRead),
		Removed: deliver(watch.CategoryRemoved),
		Changed: deliver(watch.CategoryChanged),
		Renamed: deliver(watch.CategoryRenamed),
	}

	opts := watch.Options{
		Root:              absPath,
		Pattern:           pattern,
		NonRecursive:      p.noRecursive,
		IgnoreFiles:       p.dirsOnly,
		IgnoreDirs:        p.filesOnly,
		IgnorePatterns:    ignorePatterns,
		DebounceWindow:    p.debounce,
		CorrelationWindow: p.correlation,
		AggregationTick:   p.tick,
		PollInterval:      p.pollInterval,
		EventBufferSize:   p.bufferSize,
	}
	if opts.DebounceWindow == 0 {
		opts.DebounceWindow = cfg.Watch.DebounceDuration()
	}
	if opts.CorrelationWindow == 0 {
		opts.CorrelationWindow = cfg.Watch.CorrelationDuration()
	}
	if opts.AggregationTick == 0 {
		opts.AggregationTick = cfg.Watch.AggregationTickDuration()
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = cfg.Watch.PollIntervalDuration()
	}
	if opts.EventBufferSize == 0 {
		opts.EventBufferSize = cfg.Watch.BufferSize
	}

	start := time.Now()
	session, err := watch.Start(ctx, opts, handlers)
	if err != nil {
		switch {
		case errors.Is(err, filter.ErrInvalidPattern):
			return verrors.PatternError(err.Error(), err).
				WithSuggestion("patterns use doublestar glob syntax, e.g. '**/*.go'")
		case errors.Is(err, source.ErrUnavailable):
			return verrors.SourceError(err.Error(), err)
		default:
			return fmt.Errorf("failed to start watch: %w", err)
		}
	}

	if p.runFor > 0 {
		stopTimer := time.AfterFunc(p.runFor, session.Stop)
		defer stopTimer.Stop()
	}

	<-session.Done()

	errCount := 0
	if session.Err() != nil {
		errCount = 1
	}
	renderer.Complete(tally.snapshot(session.Backend(), time.Since(start), errCount))

	if err := session.Err(); err != nil {
		slog.Error("watch session failed", slog.Any("details", verrors.FormatForLog(err)))
		return fmt.Errorf("watch session failed: %w", err)
	}
	return nil
}

// openJournal opens the batch journal, retrying briefly when another
// session still holds the writer lock.
func openJournal(ctx context.Context, path string) (*journal.Journal, error) {
	retryCfg := verrors.RetryConfig{
		MaxRetries:   3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	jr, err := verrors.RetryWithResult(ctx, retryCfg, func() (*journal.Journal, error) {
		return journal.Open(path)
	})
	if err != nil {
		if errors.Is(err, journal.ErrLocked) {
			return nil, verrors.New(verrors.ErrCodeJournalLocked,
				fmt.Sprintf("journal %s is locked by another session", path), err).
				WithSuggestion("pass --journal-path to write to a separate file")
		}
		return nil, verrors.JournalError("failed to open journal", err)
	}
	return jr, nil
}

// serveMetrics starts the Prometheus scrape endpoint and returns its
// shutdown function.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.New().Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		slog.Info("metrics endpoint listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics endpoint stopped", slog.String("error", err.Error()))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

// sessionTally accumulates delivery counts for the final summary,
// independent of whichever renderer is active.
type sessionTally struct {
	mu       sync.Mutex
	batches  int
	paths    int
	byCat    map[watch.Category]*ui.CategoryCount
	warnings int
}

func newSessionTally() *sessionTally {
	return &sessionTally{byCat: make(map[watch.Category]*ui.CategoryCount)}
}

func (t *sessionTally) addBatch(cat watch.Category, paths int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.batches++
	t.paths += paths

	cc, ok := t.byCat[cat]
	if !ok {
		cc = &ui.CategoryCount{Category: cat}
		t.byCat[cat] = cc
	}
	cc.Batches++
	cc.Paths += paths
}

func (t *sessionTally) warn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warnings++
}

// snapshot builds the final session summary in canonical category order.
func (t *sessionTally) snapshot(backend string, elapsed time.Duration, errCount int) ui.SessionStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := ui.SessionStats{
		Batches:  t.batches,
		Paths:    t.paths,
		Duration: elapsed,
		Errors:   errCount,
		Warnings: t.warnings,
		Backend:  backend,
	}
	for _, cat := range watch.Categories() {
		if cc, ok := t.byCat[cat]; ok {
			stats.PerCategory = append(stats.PerCategory, *cc)
		}
	}
	return stats
}
