package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/regen/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Document string                     `json:"document,omitempty"`
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
}

// Text renders the result for humans.
func (r ValidationResult) Text(w io.Writer) {
	if r.Valid {
		fmt.Fprintf(w, "✓ %s is valid\n", r.Document)
		return
	}
	fmt.Fprintf(w, "✗ %s: %d validation error(s)\n", r.Document, len(r.Errors))
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <history>",
		Short: "Validate a history without regenerating it",
		Long: `Check a history document without running the kernel.

Loading catches syntax and record errors. The checks that span operations
follow: unknown sketches, region indices, bodies no earlier operation
produces, dependency cycles and booleans of a body with itself.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	doc, err := LoadHistory(path)
	if err != nil {
		_ = formatter.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load history", err)
	}
	formatter.VerboseLog("Validating %s: %d operation(s)", doc.ID, doc.Len())

	errs := compiler.Validate(doc)
	result := ValidationResult{Document: doc.ID, Valid: len(errs) == 0, Errors: errs}
	if err := formatter.Success(result); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed: %v", compiler.Codes(errs)))
	}
	return nil
}
