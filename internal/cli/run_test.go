package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/regen/internal/regen"
)

// pinnedRun builds a run command whose runs use the given tokens.
func pinnedRun(format string, tokens ...string) *cobra.Command {
	return newRunCommand(&RunOptions{
		RootOptions: &RootOptions{Format: format},
		RunTokens:   regen.NewFixedGenerator(tokens...),
	})
}

func decodeRun(t *testing.T, out string) (Response, RunReport) {
	t.Helper()
	var resp struct {
		Response
		Data RunReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Response, resp.Data
}

func TestRun_Success(t *testing.T) {
	history := writeFile(t, "plate.yaml", squareHistory)
	out, err := execute(pinnedRun("text", "run-1"), history)
	require.NoError(t, err)
	assert.Contains(t, out, "plate: success (run run-1)")
	assert.Contains(t, out, "applied 2, succeeded 2, skipped 0, failed 0")
	assert.Contains(t, out, "live bodies: body1")
}

func TestRun_JSON(t *testing.T) {
	history := writeFile(t, "plate.yaml", squareHistory)
	out, err := execute(pinnedRun("json", "run-1"), "--to", "1", "--ids", history)
	require.NoError(t, err)

	resp, report := decodeRun(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, regen.Success, report.Status)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 26, report.Elements, "a box has 6 faces, 12 edges and 8 vertices")
	assert.Len(t, report.IDs, 26)
	assert.Contains(t, report.IDs, "pad/face-1")
	assert.Empty(t, report.Failed)
}

func TestRun_CUE(t *testing.T) {
	history := writeFile(t, "plate.cue", squareCUE)

	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), history)
	require.NoError(t, err)
	assert.Contains(t, out, "plate: success")
}

func TestRun_CUEDirectory(t *testing.T) {
	history := writeFile(t, "plate.cue", squareCUE)

	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), filepath.Dir(history))
	require.NoError(t, err)
	assert.Contains(t, out, "plate: success")
}

func TestRun_FailureExitCode(t *testing.T) {
	history := writeFile(t, "plate.yaml", failingHistory)
	out, err := execute(pinnedRun("json", "run-1"), history)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, report := decodeRun(t, out)
	assert.Equal(t, regen.CriticalFailure, report.Status)
	require.Len(t, report.Failed, 2)
	assert.Equal(t, "pad", report.Failed[0].OpID)
	assert.Equal(t, regen.ErrCodeKernelError, report.Failed[0].Code)
	assert.Equal(t, regen.ErrCodeUpstreamFailed, report.Failed[1].Code)
	assert.Empty(t, report.LiveBodies)
}

func TestRun_NonExistentHistory(t *testing.T) {
	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "/nonexistent/plate.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestRun_UnsupportedFormat(t *testing.T) {
	history := writeFile(t, "plate.json", "{}")

	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), history)
	require.Error(t, err)
	assert.Contains(t, out, "Error [E002]")
}

func TestRun_InvalidYAML(t *testing.T) {
	history := writeFile(t, "plate.yaml", "id: plate\nbogus: 1\noperations: []\n")

	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), history)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
}

func TestRun_CUEWithoutHistory(t *testing.T) {
	history := writeFile(t, "plate.cue", "package plate\n\nother: 1\n")

	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), history)
	require.Error(t, err)
	assert.Contains(t, out, "Error [E003]")
}

func TestRun_Persist(t *testing.T) {
	history := writeFile(t, "plate.yaml", squareHistory)
	db := filepath.Join(t.TempDir(), "regen.db")

	out, err := execute(pinnedRun("json", "run-1"), "--db", db, history)
	require.NoError(t, err)
	_, report := decodeRun(t, out)
	assert.Equal(t, int64(1), report.Snapshot)

	// An identical regeneration reuses the snapshot.
	out, err = execute(pinnedRun("json", "run-2"), "--db", db, history)
	require.NoError(t, err)
	_, report = decodeRun(t, out)
	assert.Equal(t, int64(1), report.Snapshot)

	out, err = execute(NewLogCommand(&RootOptions{Format: "text"}), "--db", db, "plate")
	require.NoError(t, err)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "run-2")
}
