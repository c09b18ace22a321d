package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/regen/internal/kernel/simkernel"
	"github.com/roach88/regen/internal/naming"
	"github.com/roach88/regen/internal/regen"
	"github.com/roach88/regen/internal/scheduler"
	"github.com/roach88/regen/internal/store"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Database string
	Document string
	To       int
}

// DiffReport is the output of diff.
type DiffReport struct {
	Document  string       `json:"document"`
	Snapshot  int64        `json:"snapshot"`
	Status    regen.Status `json:"status"`
	Tolerance float64      `json:"tolerance"`
	Drifted   bool         `json:"drifted"`
	Drift     naming.Drift `json:"drift"`
}

// Text renders the report for humans.
func (r DiffReport) Text(w io.Writer) {
	if !r.Drifted {
		fmt.Fprintf(w, "✓ %s matches snapshot %d\n", r.Document, r.Snapshot)
		return
	}
	fmt.Fprintf(w, "✗ %s drifted from snapshot %d (%d added, %d removed, %d changed)\n",
		r.Document, r.Snapshot, len(r.Drift.Added), len(r.Drift.Removed), len(r.Drift.Changed))
	writeDrift(w, r.Drift)
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <history>",
		Short: "Compare a regeneration against the stored identity map",
		Long: `Regenerate a history and compare its identity map with the latest
snapshot stored for the document.

Descriptors are compared within the configured tolerance. Exits 1 when
an element was added, removed or changed.

Examples:
  regen diff bracket.cue --db ./regen.db
  regen diff bracket-v2.cue --doc bracket`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: config database)")
	cmd.Flags().StringVar(&opts.Document, "doc", "", "stored document to compare against (default: the history's id)")
	cmd.Flags().IntVar(&opts.To, "to", scheduler.ToCursor, "applied count to replay to (default: the document cursor)")

	return cmd
}

func runDiff(opts *DiffOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := contextOf(cmd)

	doc, err := LoadHistory(path)
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load history", err)
	}
	docID := opts.Document
	if docID == "" {
		docID = doc.ID
	}

	db := opts.database(opts.Database)
	if db == "" {
		_ = formatter.Error(ErrCodeStore, "no database configured (use --db)", nil)
		return NewExitError(ExitCommandError, "no database configured")
	}
	st, err := store.Open(db)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	snap, err := st.LatestIdentityMap(ctx, docID)
	if err != nil {
		if store.IsNotFound(err) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no identity map stored for %s", docID), nil)
			return WrapExitError(ExitCommandError, "no stored snapshot", err)
		}
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read snapshot", err)
	}

	eng := regen.New(simkernel.New())
	res := scheduler.ForEngine(eng).Run(ctx, scheduler.Request{Doc: doc, To: opts.To})
	formatter.VerboseLog("Regenerated %s: %s, %d elements", doc.ID, res.Status, res.Elements)

	tol := opts.config().Tolerance
	drift := naming.Diff(snap.Map, eng.Map(), tol)
	report := DiffReport{
		Document:  docID,
		Snapshot:  snap.Seq,
		Status:    res.Status,
		Tolerance: tol,
		Drifted:   !drift.Empty(),
		Drift:     drift,
	}
	if err := formatter.SuccessRun(res.RunID, report); err != nil {
		return err
	}
	if report.Drifted {
		return NewExitError(ExitFailure, fmt.Sprintf("%s drifted from snapshot %d", docID, snap.Seq))
	}
	return nil
}
