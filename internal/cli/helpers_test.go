package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const squareHistory = `id: plate
sketches:
  s1:
    regions:
      - [[0, 0], [10, 0], [10, 10], [0, 10]]
operations:
  - {id: pad, type: extrude, input: {sketch: s1}, params: {distance: 5}, result: [body1]}
  - {id: round, type: fillet, input: {body: body1, face: pad/face-1}, params: {radius: 1}, result: [body1]}
`

const failingHistory = `id: plate
sketches:
  s1:
    regions:
      - [[0, 0], [10, 0], [10, 10], [0, 10]]
operations:
  - {id: pad, type: extrude, input: {sketch: s1}, params: {distance: 0}, result: [body1]}
  - {id: round, type: fillet, input: {body: body1, face: pad/face-1}, params: {radius: 1}, result: [body1]}
`

const squareCUE = `package plate

history: {
	id: "plate"
	sketches: s1: regions: [[[0, 0], [10, 0], [10, 10], [0, 10]]]
	operations: [
		{id: "pad", type: "extrude", input: {sketch: "s1"}, params: {distance: 5}, result: ["body1"]},
	]
}
`

// writeFile writes content to name inside a fresh temp directory.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	if args == nil {
		args = []string{} // nil makes cobra fall back to os.Args
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
