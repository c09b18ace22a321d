package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/regen/internal/kernel/simkernel"
	"github.com/roach88/regen/internal/naming"
	"github.com/roach88/regen/internal/regen"
	"github.com/roach88/regen/internal/scheduler"
)

// VerifyReport is the output of verify.
type VerifyReport struct {
	Document      string       `json:"document"`
	Deterministic bool         `json:"deterministic"`
	Status        regen.Status `json:"status"`
	Elements      int          `json:"elements"`
	Drift         naming.Drift `json:"drift"`
}

// Text renders the report for humans.
func (r VerifyReport) Text(w io.Writer) {
	if r.Deterministic {
		fmt.Fprintf(w, "✓ %s: two replays agree (%s, %d elements)\n", r.Document, r.Status, r.Elements)
		return
	}
	fmt.Fprintf(w, "✗ %s: replays differ\n", r.Document)
	writeDrift(w, r.Drift)
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var to int

	cmd := &cobra.Command{
		Use:   "verify <history>",
		Short: "Check that regeneration is deterministic",
		Long: `Regenerate a history twice and compare the outcomes.

Both replays must produce the same status, the same failed operations and
byte-identical identity maps. Exits 1 on any difference.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			doc, err := LoadHistory(args[0])
			if err != nil {
				_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to load history", err)
			}
			n := to
			if n == scheduler.ToCursor {
				n = doc.AppliedCount()
			}

			eng := regen.New(simkernel.New())
			v := eng.Verify(contextOf(cmd), doc, n)

			report := VerifyReport{
				Document:      doc.ID,
				Deterministic: v.Equal,
				Status:        v.Second.Status,
				Elements:      v.Second.Elements,
				Drift:         v.Drift,
			}
			if err := formatter.Success(report); err != nil {
				return err
			}
			if !v.Equal {
				return NewExitError(ExitFailure, "regeneration is not deterministic")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&to, "to", scheduler.ToCursor, "applied count to replay to (default: the document cursor)")
	return cmd
}

// writeDrift lists the differences between two identity maps.
func writeDrift(w io.Writer, d naming.Drift) {
	for _, id := range d.Added {
		fmt.Fprintf(w, "  + %s\n", id)
	}
	for _, id := range d.Removed {
		fmt.Fprintf(w, "  - %s\n", id)
	}
	for _, id := range d.Changed {
		fmt.Fprintf(w, "  ~ %s\n", id)
	}
}
