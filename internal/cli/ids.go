package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/roach88/regen/internal/kernel/simkernel"
	"github.com/roach88/regen/internal/regen"
	"github.com/roach88/regen/internal/scheduler"
)

// NewIDsCommand creates the ids command.
func NewIDsCommand(rootOpts *RootOptions) *cobra.Command {
	var to int

	cmd := &cobra.Command{
		Use:   "ids <history>",
		Short: "Print the canonical identity map",
		Long: `Regenerate a history and print its element identity map as canonical
JSON: entries ordered by ID, descriptors in nano-units, retired IDs last.
The text is byte-identical across runs and machines.`,
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

			eng := regen.New(simkernel.New())
			res := scheduler.ForEngine(eng).Run(contextOf(cmd), scheduler.Request{Doc: doc, To: to})
			formatter.VerboseLog("%s: %s, %d elements", doc.ID, res.Status, res.Elements)

			text := eng.Map().String()
			if formatter.Format == "json" {
				return formatter.SuccessRun(res.RunID, map[string]any{
					"document":     doc.ID,
					"status":       res.Status,
					"identity_map": json.RawMessage(text),
				})
			}
			return formatter.Success(text)
		},
	}

	cmd.Flags().IntVar(&to, "to", scheduler.ToCursor, "applied count to replay to (default: the document cursor)")
	return cmd
}
