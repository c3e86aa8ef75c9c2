package sweep

import (
	"strings"
	"testing"
	"time"

	"github.com/palletledger/backend/internal/infrastructure/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_ObserveRun(t *testing.T) {
	m := telemetry.NewMetrics()
	p := NewPrometheusMetrics(m)

	started := time.Date(2024, 3, 2, 2, 0, 0, 0, time.UTC)
	p.ObserveRun(&Report{
		StartedAt:  started,
		FinishedAt: started.Add(4 * time.Second),
		Counters:   Counters{AutoLinked: 1, SuggestionsCreated: 2},
		Details: []Detail{
			{Status: DetailAutoLinked},
			{Status: DetailSuggested},
			{Status: DetailNoMatch},
			{Status: DetailNoMatch},
		},
	})

	expected := `
# HELP pallets_sweep_candidates_total Inbound candidates processed by sweeps, by status.
# TYPE pallets_sweep_candidates_total counter
pallets_sweep_candidates_total{status="AUTO_LINKED"} 1
pallets_sweep_candidates_total{status="NO_MATCH"} 2
pallets_sweep_candidates_total{status="SUGGESTED"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "pallets_sweep_candidates_total"))

	n, err := testutil.GatherAndCount(m.Registry(), "pallets_sweep_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
