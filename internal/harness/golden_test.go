package harness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGoldenGreetingShortcut(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/greeting-shortcut.yaml")
	require.NoError(t, err)
	require.NoError(t, RunWithGolden(t, scenario))
}

func TestGoldenSearchFailover(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/search-failover.yaml")
	require.NoError(t, err)
	require.NoError(t, RunWithGolden(t, scenario))
}
