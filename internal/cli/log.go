package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/regen/internal/regen"
	"github.com/roach88/regen/internal/store"
)

// LogEntry is one regeneration in the log output.
type LogEntry struct {
	Seq     int64           `json:"seq"`
	RunID   string          `json:"run_id"`
	Status  regen.Status    `json:"status"`
	Applied int             `json:"applied"`
	Failed  []regen.Failure `json:"failed"`
}

// LogReport is the output of log for one document.
type LogReport struct {
	Document string     `json:"document"`
	Runs     []LogEntry `json:"runs"`
}

// Text renders the log for humans.
func (r LogReport) Text(w io.Writer) {
	if len(r.Runs) == 0 {
		fmt.Fprintf(w, "%s: no runs recorded\n", r.Document)
		return
	}
	for _, run := range r.Runs {
		fmt.Fprintf(w, "%4d  %s  %-15s applied %d\n", run.Seq, run.RunID, run.Status, run.Applied)
		for _, f := range run.Failed {
			fmt.Fprintf(w, "      ✗ %s [%s] %s\n", f.OpID, f.Code, f.Message)
		}
	}
}

// DocumentList is the output of log without a document.
type DocumentList struct {
	Documents []string `json:"documents"`
}

// Text renders the list for humans.
func (l DocumentList) Text(w io.Writer) {
	if len(l.Documents) == 0 {
		fmt.Fprintln(w, "no documents stored")
		return
	}
	for _, id := range l.Documents {
		fmt.Fprintln(w, id)
	}
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "log [document]",
		Short: "Show stored regeneration runs",
		Long: `List the documents in the database, or the regeneration log of one
document in run order.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			ctx := contextOf(cmd)

			db := rootOpts.database(database)
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

			if len(args) == 0 {
				ids, err := st.ListDocuments(ctx)
				if err != nil {
					_ = formatter.Error(ErrCodeStore, err.Error(), nil)
					return WrapExitError(ExitCommandError, "failed to list documents", err)
				}
				return formatter.Success(DocumentList{Documents: ids})
			}

			runs, err := st.ListRuns(ctx, args[0])
			if err != nil {
				_ = formatter.Error(ErrCodeStore, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to list runs", err)
			}
			report := LogReport{Document: args[0], Runs: make([]LogEntry, 0, len(runs))}
			for _, r := range runs {
				failed := r.Failed
				if failed == nil {
					failed = []regen.Failure{}
				}
				report.Runs = append(report.Runs, LogEntry{
					Seq:     r.Seq,
					RunID:   r.RunID,
					Status:  r.Status,
					Applied: r.Applied,
					Failed:  failed,
				})
			}
			return formatter.Success(report)
		},
	}

	cmd.Flags().StringVar(&database, "db", "", "path to SQLite database (default: config database)")
	return cmd
}
