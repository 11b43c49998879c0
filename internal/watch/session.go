package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vigilfs/vigil/internal/filter"
	"github.com/vigilfs/vigil/internal/gitignore"
	"github.com/vigilfs/vigil/internal/metrics"
	"github.com/vigilfs/vigil/internal/source"
)

// Session is one live watch: one root, one pattern, one source
// subscription, delivering classified batches to its handlers until
// stopped. Create with Start.
type Session struct {
	opts Options
	filt *filter.Filter
	src  source.Source
	disp *dispatcher

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	errMu sync.Mutex
	err   error
}

// Start validates the options, compiles the pattern, registers the root
// with the source backend, and launches the session. Pattern, root and
// registration failures are synchronous and matchable with errors.Is
// against filter.ErrInvalidPattern and source.ErrUnavailable; once Start
// returns, changes to the tree are observed, and delivery is
// asynchronous until Stop or context cancellation.
func Start(ctx context.Context, opts Options, handlers Handlers) (*Session, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	filt, err := filter.New(opts.Root, opts.Pattern)
	if err != nil {
		return nil, err
	}

	var ignore *gitignore.Matcher
	if len(opts.IgnorePatterns) > 0 {
		ignore = gitignore.New(opts.IgnorePatterns...)
	}

	src := source.New(source.Options{
		Recursive:         !opts.NonRecursive,
		Ignore:            ignore,
		CorrelationWindow: opts.CorrelationWindow,
		JitterWindow:      opts.JitterWindow,
		PollInterval:      opts.PollInterval,
		EventBufferSize:   opts.EventBufferSize,
	})

	// Register the root before returning: a change made right after a
	// successful Start must be observable, and a registration failure
	// (say, the inotify watch limit) must fail Start, not leak out
	// through Err later.
	if err := src.Attach(filt.Root()); err != nil {
		_ = src.Stop()
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		opts:   opts,
		filt:   filt,
		src:    src,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.disp = newDispatcher(handlers, opts.AggregationTick, func(c Category, v any) {
		s.recordErr(fmt.Errorf("handler %s panicked: %v", c, v))
	})

	slog.Info("watch session starting",
		slog.String("root", filt.Root()),
		slog.String("pattern", opts.Pattern),
		slog.String("backend", src.Name()),
		slog.Duration("debounce", opts.DebounceWindow),
	)

	go s.disp.run()

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error {
		err := src.Start(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("source: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.ingest(gctx)
	})

	go func() {
		if err := g.Wait(); err != nil {
			s.recordErr(err)
		}
		// The ingest loop has closed the dispatcher input by now; wait
		// for the tail batches to deliver before declaring the session
		// done.
		<-s.disp.doneCh
		close(s.done)
	}()

	// Caller-side cancellation is a stop
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.done:
		}
	}()

	return s, nil
}

// ingest is the single writer of classifier state: it reads raw events,
// applies the type and pattern filters, folds survivors into the
// classifier, and flushes entries whose debounce window elapsed.
func (s *Session) ingest(ctx context.Context) error {
	defer close(s.disp.in)

	cls := newClassifier(s.opts.DebounceWindow, s.opts.CorrelationWindow)
	m := metrics.New()

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	events := s.src.Events()
	errs := s.src.Errors()

	for {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		var deadlineCh <-chan time.Time
		if dl, ok := cls.nextDeadline(); ok {
			timer.Reset(time.Until(dl))
			deadlineCh = timer.C
		}

		select {
		case <-ctx.Done():
			// Pending entries are discarded, never flushed
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.observe(cls, m, ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			m.RecordSourceError()
			slog.Warn("transient source error, skipping",
				slog.String("error", err.Error()))
		case <-deadlineCh:
			for _, cl := range cls.sweep(time.Now()) {
				s.disp.enqueue(cl)
			}
		}
		m.SetPending(cls.pendingCount())
		m.SetDropped(s.src.Dropped())
	}
}

// observe runs one raw event through the filters and the classifier.
func (s *Session) observe(cls *classifier, m *metrics.Metrics, ev source.RawEvent) {
	m.RecordRawEvent(s.src.Name(), ev.Kind.String())

	if (ev.IsDir && s.opts.IgnoreDirs) || (!ev.IsDir && s.opts.IgnoreFiles) {
		m.RecordFiltered()
		return
	}

	rel, ok := s.filt.Match(ev.Path)
	if !ok {
		m.RecordFiltered()
		return
	}

	// A move's source only counts when it matched the pattern too;
	// otherwise the destination looks like a fresh arrival.
	var from string
	if ev.Kind == source.KindRenameTo && ev.RenamedFrom != "" {
		if relFrom, okFrom := s.filt.Match(ev.RenamedFrom); okFrom {
			from = relFrom
		}
	}

	cls.observe(rel, from, ev.Kind, ev.Time)
}

// Stop terminates the session: the source subscription is cancelled,
// pending classifications are discarded without flushing, and once Stop
// returns no handler invocation can occur. Idempotent and safe from any
// goroutine, except synchronously from inside a handler.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		slog.Debug("watch session stopping", slog.String("root", s.filt.Root()))
		s.cancel()
		s.disp.stop()
	})
	<-s.done
}

// Done is closed once every session goroutine has exited and no further
// handler invocation will occur.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports the first fatal session error: a source failure after
// start, or the first handler panic. Settles by the time Done closes.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Root returns the absolute path being watched.
func (s *Session) Root() string {
	return s.filt.Root()
}

// Backend identifies the source backend in use.
func (s *Session) Backend() string {
	return s.src.Name()
}

func (s *Session) recordErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
