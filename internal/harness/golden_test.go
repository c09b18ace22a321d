package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"extrude_square", "cursor_out_of_range"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenarios, err := LoadScenarioDir("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			r1, err := Run(s)
			require.NoError(t, err)
			r2, err := Run(s)
			require.NoError(t, err)

			s1, err := Snapshot(s.Name, r1)
			require.NoError(t, err)
			s2, err := Snapshot(s.Name, r2)
			require.NoError(t, err)
			assert.Equal(t, string(s1), string(s2))
		})
	}
}
