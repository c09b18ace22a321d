package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/regen/internal/kernel/simkernel"
	"github.com/roach88/regen/internal/regen"
	"github.com/roach88/regen/internal/scheduler"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	To       int
	Debounce time.Duration

	// RunTokens allows overriding the run token generator (for testing).
	RunTokens regen.RunTokenGenerator
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <history>",
		Short: "Regenerate a history every time it changes",
		Long: `Watch a history file (or CUE package directory) and regenerate it on
every save.

Regenerations run one at a time on the kernel scheduler. A save that
arrives while a regeneration is running cancels it: its result is
discarded and only the latest edit is reported. Load errors are reported
and watching continues. Stops on interrupt.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			formatter := opts.formatter(cmd)
			return watchHistory(ctx, opts, args[0], func(r RunReport) {
				_ = formatter.SuccessRun(r.RunID, r)
			}, func(err error) {
				_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
			})
		},
	}

	cmd.Flags().IntVar(&opts.To, "to", scheduler.ToCursor, "applied count to replay to (default: the document cursor)")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 100*time.Millisecond, "quiet period after a change before regenerating")

	return cmd
}

// historyWatch is the state of one watch session. Everything except the
// scheduler callback runs on the goroutine that called watchHistory.
type historyWatch struct {
	path  string
	isDir bool
	to    int
	sched *scheduler.Scheduler

	completions chan scheduler.Completion
	quit        chan struct{}

	last scheduler.JobID
	docs map[scheduler.JobID]string
}

// watchHistory regenerates path once, then again after every change,
// until ctx is done. report receives every completed, non-cancelled
// regeneration; loadErr receives history load failures.
func watchHistory(ctx context.Context, opts *WatchOptions, path string, report func(RunReport), loadErr func(error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve path", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		loadErr(&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("history not found: %s", path)})
		return WrapExitError(ExitCommandError, "failed to watch history", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start watcher", err)
	}
	defer fsw.Close()

	// Watch the directory so editors that save by rename are still seen.
	dir := abs
	if !info.IsDir() {
		dir = filepath.Dir(abs)
	}
	if err := fsw.Add(dir); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch history", err)
	}

	tokens := opts.RunTokens
	if tokens == nil {
		tokens = regen.UUIDv7Generator{}
	}
	eng := regen.New(simkernel.New(), regen.WithRunTokens(tokens))

	w := &historyWatch{
		path:        abs,
		isDir:       info.IsDir(),
		to:          opts.To,
		sched:       scheduler.New(scheduler.ForEngine(eng)),
		completions: make(chan scheduler.Completion, 1),
		quit:        make(chan struct{}),
		docs:        make(map[scheduler.JobID]string),
	}
	defer func() {
		close(w.quit)
		w.sched.Shutdown()
	}()

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	slog.Info("watching history", "path", abs)
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			if err := w.reload(); err != nil {
				loadErr(err)
			}

		case c := <-w.completions:
			docID := w.docs[c.ID]
			delete(w.docs, c.ID)
			if c.Cancelled {
				slog.Debug("discarding superseded regeneration", "job_id", uint64(c.ID))
				continue
			}
			report(reportOf(docID, c.Result))

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			slog.Debug("history changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		}
	}
}

// relevant reports whether event touches the watched history.
func (w *historyWatch) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	if w.isDir {
		return filepath.Ext(event.Name) == ".cue"
	}
	return filepath.Clean(event.Name) == w.path
}

// reload loads the history and submits it, cancelling the previous job.
func (w *historyWatch) reload() error {
	doc, err := LoadHistory(w.path)
	if err != nil {
		return err
	}
	if w.last != scheduler.InvalidJob && w.sched.Cancel(w.last) {
		// A cancelled job reports nothing, and a queued one never calls back.
		delete(w.docs, w.last)
		slog.Debug("cancelled previous regeneration", "job_id", uint64(w.last))
	}

	id := w.sched.Submit(scheduler.Request{Doc: doc, To: w.to}, func(c scheduler.Completion) {
		select {
		case w.completions <- c:
		case <-w.quit:
		}
	})
	if id == scheduler.InvalidJob {
		return fmt.Errorf("scheduler stopped")
	}
	w.last = id
	w.docs[id] = doc.ID
	return nil
}

// reportOf summarises a regeneration result.
func reportOf(docID string, res regen.Result) RunReport {
	r := RunReport{
		Document:   docID,
		RunID:      res.RunID,
		Status:     res.Status,
		Applied:    res.Applied,
		Succeeded:  res.Succeeded,
		Skipped:    res.Skipped,
		Failed:     res.Failed,
		LiveBodies: res.LiveBodies,
		Elements:   res.Elements,
	}
	if r.Failed == nil {
		r.Failed = []regen.Failure{}
	}
	return r
}
