package pfrp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalAverageAndLoss(t *testing.T) {
	agg := NewAggregator(SingleAgent, 3)
	for idx, delay := range []float64{0.1, 0.2, 0.3} {
		agg.RecordSample(4, idx, delay)
	}
	assert.Equal(t, 3, agg.Collected(4))

	rwd := agg.Finalize(4, 4)
	assert.Equal(t, 4, rwd.Step)
	require.Len(t, rwd.Metrics, 1)
	assert.InDelta(t, 0.2, rwd.Metrics[0].AvgDelay, 1e-12)
	assert.InDelta(t, 0.25, rwd.Metrics[0].LossRate, 1e-12)

	// state of the step is dropped
	assert.Equal(t, 0, agg.Collected(4))
}

func TestGlobalDegenerateSteps(t *testing.T) {
	agg := NewAggregator(Static, 2)

	rwd := agg.Finalize(0, 0)
	assert.Equal(t, 0.0, rwd.Metrics[0].AvgDelay)
	assert.Equal(t, 0.0, rwd.Metrics[0].LossRate)

	rwd = agg.Finalize(1, 5)
	assert.Equal(t, 0.0, rwd.Metrics[0].AvgDelay)
	assert.Equal(t, 1.0, rwd.Metrics[0].LossRate)
}

func TestPerNodeMetrics(t *testing.T) {
	agg := NewAggregator(MultiAgent, 3)

	// packets 0 and 1 pass node 0, packet 1 also node 1; node 2 sees nothing
	agg.RecordPass(2, 0, 0)
	agg.RecordPass(2, 0, 1)
	agg.RecordPass(2, 1, 1)
	agg.RecordPass(2, 1, 1)
	agg.RecordSample(2, 1, 0.4)
	assert.Equal(t, 1, agg.Collected(2))

	rwd := agg.Finalize(2, 2)
	require.Len(t, rwd.Metrics, 3)

	assert.InDelta(t, 0.4, rwd.Metrics[0].AvgDelay, 1e-12)
	assert.InDelta(t, 0.5, rwd.Metrics[0].LossRate, 1e-12)

	assert.InDelta(t, 0.4, rwd.Metrics[1].AvgDelay, 1e-12)
	assert.Equal(t, 0.0, rwd.Metrics[1].LossRate)

	assert.Equal(t, 0.0, rwd.Metrics[2].AvgDelay)
	assert.Equal(t, 0.0, rwd.Metrics[2].LossRate)
	for _, m := range rwd.Metrics {
		assert.False(t, math.IsNaN(m.LossRate))
	}

	assert.Equal(t, 0, agg.Collected(2))
}

func TestPerNodeIgnoresUnknownNode(t *testing.T) {
	agg := NewAggregator(MultiAgent, 2)
	agg.RecordPass(0, 7, 1)
	agg.RecordPass(0, -1, 1)
	rwd := agg.Finalize(0, 1)
	assert.Len(t, rwd.Metrics, 2)
}
