package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/regen/internal/document"
	"github.com/roach88/regen/internal/kernel/simkernel"
	"github.com/roach88/regen/internal/regen"
	"github.com/roach88/regen/internal/scheduler"
	"github.com/roach88/regen/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	To       int
	ShowIDs  bool

	// RunTokens allows overriding the run token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunTokens regen.RunTokenGenerator
}

// RunReport is the output of run.
type RunReport struct {
	Document   string          `json:"document"`
	RunID      string          `json:"run_id"`
	Status     regen.Status    `json:"status"`
	Applied    int             `json:"applied"`
	Succeeded  int             `json:"succeeded"`
	Skipped    int             `json:"skipped"`
	Failed     []regen.Failure `json:"failed"`
	LiveBodies []string        `json:"live_bodies"`
	Elements   int             `json:"elements"`
	IDs        []string        `json:"ids,omitempty"`

	// Snapshot is the identity-map snapshot seq when --db is set.
	Snapshot int64 `json:"snapshot,omitempty"`
}

// Text renders the report for humans.
func (r RunReport) Text(w io.Writer) {
	fmt.Fprintf(w, "%s: %s (run %s)\n", r.Document, r.Status, r.RunID)
	fmt.Fprintf(w, "  applied %d, succeeded %d, skipped %d, failed %d\n",
		r.Applied, r.Succeeded, r.Skipped, len(r.Failed))
	for _, f := range r.Failed {
		fmt.Fprintf(w, "  ✗ %s [%s] %s\n", f.OpID, f.Code, f.Message)
	}
	fmt.Fprintf(w, "  live bodies: %s\n", strings.Join(r.LiveBodies, ", "))
	fmt.Fprintf(w, "  elements: %d\n", r.Elements)
	if r.Snapshot > 0 {
		fmt.Fprintf(w, "  snapshot: %d\n", r.Snapshot)
	}
	for _, id := range r.IDs {
		fmt.Fprintf(w, "  %s\n", id)
	}
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {

	cmd := &cobra.Command{
		Use:   "run <history>",
		Short: "Regenerate a history",
		Long: `Regenerate a modelling history with the reference kernel.

The history is replayed up to its applied cursor (or --to). With --db the
document, the resulting identity map and the run are stored.

Exit codes:
  0 - Every replayed operation succeeded
  1 - One or more operations failed
  2 - Command error (invalid paths, database errors, etc.)

Examples:
  regen run bracket.cue
  regen run bracket.yaml --to 3 --ids
  regen run bracket.cue --db ./regen.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegen(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: config database)")
	cmd.Flags().IntVar(&opts.To, "to", scheduler.ToCursor, "applied count to replay to (default: the document cursor)")
	cmd.Flags().BoolVar(&opts.ShowIDs, "ids", false, "list the live element IDs")

	return cmd
}

func runRegen(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	doc, err := LoadHistory(path)
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load history", err)
	}
	formatter.VerboseLog("Loaded %s: %d operation(s), cursor %d", doc.ID, doc.Len(), doc.AppliedCount())

	tokens := opts.RunTokens
	if tokens == nil {
		tokens = regen.UUIDv7Generator{}
	}
	eng := regen.New(simkernel.New(), regen.WithRunTokens(tokens))
	res := scheduler.ForEngine(eng).Run(contextOf(cmd), scheduler.Request{Doc: doc, To: opts.To})

	report := reportOf(doc.ID, res)
	if opts.ShowIDs {
		for _, id := range eng.Map().IDs() {
			report.IDs = append(report.IDs, string(id))
		}
	}

	if db := opts.database(opts.Database); db != "" {
		seq, err := persistRun(contextOf(cmd), db, doc, eng, res)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to store run", err)
		}
		report.Snapshot = seq
		formatter.VerboseLog("Stored run %s in %s (snapshot %d)", res.RunID, db, seq)
	}

	if err := formatter.SuccessRun(res.RunID, report); err != nil {
		return err
	}
	if res.Status != regen.Success {
		return NewExitError(ExitFailure, fmt.Sprintf("regeneration %s: %d operation(s) failed", res.Status, len(res.Failed)))
	}
	return nil
}

// persistRun stores the document, its identity map and the run log entry.
// Returns the identity-map snapshot seq.
func persistRun(ctx context.Context, path string, doc *document.Document, eng *regen.Engine, res regen.Result) (int64, error) {
	st, err := store.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if err := st.SaveDocument(ctx, doc); err != nil {
		return 0, err
	}
	seq, inserted, err := st.SaveIdentityMap(ctx, doc.ID, eng.Map())
	if err != nil {
		return 0, err
	}
	if _, err := st.RecordRun(ctx, doc.ID, res); err != nil {
		return 0, err
	}
	slog.Debug("run stored", "doc", doc.ID, "run_id", res.RunID, "snapshot", seq, "new_snapshot", inserted)
	return seq, nil
}

// contextOf returns the command's context, or Background when the command
// runs outside Execute (tests).
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
