package pfrp

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceInactive(t *testing.T) {
	var tm *TraceManager
	assert.False(t, tm.Active())
	tm.AddTrace(1.0, 0, StateTrace, "")
	assert.NoError(t, tm.AddName(0, "H0", "host"))

	tm = CreateTraceManager("off", false)
	tm.AddTrace(1.0, 0, StateTrace, "")
	assert.Empty(t, tm.Traces)
	written, err := tm.WriteToFile(filepath.Join(t.TempDir(), "trace.yaml"))
	assert.NoError(t, err)
	assert.False(t, written)
}

func TestTraceRecordsAndWrites(t *testing.T) {
	tm := CreateTraceManager("exp", true)
	require.NoError(t, tm.AddName(0, "H0", "host"))
	assert.Error(t, tm.AddName(0, "R0", "router"))

	tm.AddTrace(2.5, 3, RewardTrace, "r@@3@@0.100000,0.000000")
	tm.AddTrace(1.0, 1, CompleteTrace, "")
	assert.Equal(t, []int{1, 3}, tm.Steps())
	assert.Equal(t, "2.5", tm.Traces[3][0].TraceTime)
	assert.Equal(t, "reward", tm.Traces[3][0].TraceType)

	for _, name := range []string{"trace.yaml", "trace.json"} {
		written, err := tm.WriteToFile(filepath.Join(t.TempDir(), name))
		require.NoError(t, err)
		assert.True(t, written)
	}
	_, err := tm.WriteToFile(filepath.Join(t.TempDir(), "trace.csv"))
	assert.Error(t, err)
}
