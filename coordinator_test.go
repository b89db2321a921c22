package pfrp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrierClosesOnLastNode(t *testing.T) {
	cd := NewCoordinator(3, 5, 1.0)

	for idx := 0; idx < 2; idx++ {
		closed, err := cd.SignalBarrier(0, 1.0)
		require.NoError(t, err)
		assert.False(t, closed)
		assert.Equal(t, Open, cd.State(0))
	}
	closed, err := cd.SignalBarrier(0, 1.5)
	require.NoError(t, err)
	assert.True(t, closed)
	assert.Equal(t, BarrierClosed, cd.State(0))
	assert.True(t, cd.Closed(0))

	_, err = cd.SignalBarrier(0, 1.6)
	assert.True(t, errors.Is(err, ErrBarrierOverflow))
}

func TestUpdateBarrier(t *testing.T) {
	cd := NewCoordinator(2, 5, 1.0)

	fire, err := cd.SignalUpdate(1)
	require.NoError(t, err)
	assert.False(t, fire)
	fire, err = cd.SignalUpdate(1)
	require.NoError(t, err)
	assert.True(t, fire)

	_, err = cd.SignalUpdate(1)
	assert.True(t, errors.Is(err, ErrBarrierOverflow))

	// the update barrier does not close the step
	assert.Equal(t, Open, cd.State(1))
}

func TestStepRange(t *testing.T) {
	cd := NewCoordinator(2, 3, 1.0)

	for _, step := range []int{-1, 3, 100} {
		_, err := cd.SignalBarrier(step, 0)
		assert.True(t, errors.Is(err, ErrStepRange), "step %d", step)
		assert.True(t, errors.Is(cd.RecordExpected(step, 1), ErrStepRange))
		_, err = cd.SignalUpdate(step)
		assert.True(t, errors.Is(err, ErrStepRange))
	}
	assert.False(t, cd.MarkFinalized(3))
}

func TestExpectedAccumulates(t *testing.T) {
	cd := NewCoordinator(2, 5, 1.0)
	require.NoError(t, cd.RecordExpected(2, 4))
	require.NoError(t, cd.RecordExpected(2, 6))
	assert.Equal(t, 10, cd.Expected(2))
	assert.Equal(t, 0, cd.Expected(0))
	assert.Equal(t, 0, cd.Expected(4))
}

func TestMarkFinalizedOnce(t *testing.T) {
	cd := NewCoordinator(1, 5, 1.0)
	_, err := cd.SignalBarrier(0, 0.5)
	require.NoError(t, err)

	assert.True(t, cd.MarkFinalized(0))
	assert.False(t, cd.MarkFinalized(0))
	assert.Equal(t, Finalized, cd.State(0))

	// a finalized step never expires
	assert.Empty(t, cd.Expired(100.0))
}

func TestExpiredOrderAndBound(t *testing.T) {
	cd := NewCoordinator(1, 10, 2.0)
	closes := map[int]float64{3: 4.0, 1: 2.0, 2: 2.0, 0: 6.0}
	for _, step := range []int{3, 1, 2, 0} {
		_, err := cd.SignalBarrier(step, closes[step])
		require.NoError(t, err)
	}

	assert.Empty(t, cd.Expired(3.9))

	// the survival time is reached exactly
	assert.Equal(t, []int{1, 2}, cd.Expired(4.0))
	assert.Empty(t, cd.Expired(4.0))

	assert.True(t, cd.MarkFinalized(3))
	assert.Equal(t, []int{0}, cd.Expired(10.0))
	assert.Empty(t, cd.Expired(20.0))
}

func TestStepStateNames(t *testing.T) {
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "closed", BarrierClosed.String())
	assert.Equal(t, "finalized", Finalized.String())
}
