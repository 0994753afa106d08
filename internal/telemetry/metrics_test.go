package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/allotment/internal/capacity"
	"github.com/mmr-tortoise/allotment/internal/exchange"
	"github.com/mmr-tortoise/allotment/internal/report"
)

// TestMetrics_WriteTextfile verifies that an observed report is exported in
// the Prometheus text format.
func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.Observe(&report.Report{
		Total:   5,
		Tally:   report.Tally{First: 2, Second: 1, Third: 1},
		Options: []capacity.Option{{ID: "Math", Capacity: 2, Occupancy: 2}},
		Rescues: []exchange.Effect{{Rule: "algo-11", Round: 1}, {Rule: "algo-11", Round: 1}},
	})

	path := filepath.Join(t.TempDir(), "allotment.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, "allotment_runs_total 1")
	assert.Contains(t, out, "allotment_participants 5")
	assert.Contains(t, out, `allotment_allocated{rank="1st"} 2`)
	assert.Contains(t, out, "allotment_unresolved 1")
	assert.Contains(t, out, `allotment_rescues_total{round="1",rule="algo-11"} 2`)
	assert.Contains(t, out, `allotment_option_occupancy{option="Math"} 2`)
}

// TestMetrics_WriteTextfile_BadPath verifies the error for an unwritable path.
func TestMetrics_WriteTextfile_BadPath(t *testing.T) {
	m := NewMetrics()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "allotment.prom"))
	assert.Error(t, err)
}
