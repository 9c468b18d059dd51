package rewards

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetTrackerAllowsWithinLimit(t *testing.T) {
	tracker := NewBudgetTracker(1.0, nil)

	require.NoError(t, tracker.TrackCall(0.5, "first"))
	require.NoError(t, tracker.TrackCall(0.5, "second"))

	stats := tracker.Stats()
	assert.InDelta(t, 1.0, stats.TotalSpent, 1e-9)
	assert.Equal(t, 2, stats.CallCount)
}

func TestBudgetTrackerRecordsCrossingCall(t *testing.T) {
	tracker := NewBudgetTracker(1.0, nil)

	require.NoError(t, tracker.TrackCall(0.5, ""))
	require.NoError(t, tracker.TrackCall(0.5, ""))

	err := tracker.TrackCall(0.5, "")
	require.ErrorIs(t, err, ErrBudgetExceeded)

	// The crossing call is counted before the error is raised.
	stats := tracker.Stats()
	assert.InDelta(t, 1.5, stats.TotalSpent, 1e-9)
	assert.Equal(t, 3, stats.CallCount)
	assert.InDelta(t, 150.0, stats.PercentUsed, 1e-9)
}

func TestBudgetTrackerCanAfford(t *testing.T) {
	tracker := NewBudgetTracker(1.0, nil)
	require.NoError(t, tracker.TrackCall(0.7, ""))

	assert.True(t, tracker.CanAfford(0.3))
	assert.False(t, tracker.CanAfford(0.31))
}

func TestBudgetTrackerReset(t *testing.T) {
	tracker := NewBudgetTracker(1.0, nil)
	require.NoError(t, tracker.TrackCall(0.9, ""))

	tracker.Reset()
	stats := tracker.Stats()
	assert.Zero(t, stats.TotalSpent)
	assert.Zero(t, stats.CallCount)
	assert.True(t, tracker.CanAfford(1.0))
}

func TestBudgetTrackerConcurrentTracking(t *testing.T) {
	tracker := NewBudgetTracker(1000, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = tracker.TrackCall(0.01, "")
			}
		}()
	}
	wg.Wait()

	stats := tracker.Stats()
	assert.Equal(t, 500, stats.CallCount)
	assert.InDelta(t, 5.0, stats.TotalSpent, 1e-6)
}

func TestEstimateCost(t *testing.T) {
	cost, err := EstimateCost("haiku", 1_000_000, 1_000_000)
	require.NoError(t, err)
	assert.InDelta(t, 1.50, cost, 1e-9)

	cost, err = EstimateCost("sonnet", 1_000_000, 0)
	require.NoError(t, err)
	assert.InDelta(t, 3.00, cost, 1e-9)

	_, err = EstimateCost("opus", 1, 1)
	assert.Error(t, err)
}

func TestKnownPricingTier(t *testing.T) {
	assert.True(t, KnownPricingTier("haiku"))
	assert.True(t, KnownPricingTier("sonnet"))
	assert.False(t, KnownPricingTier("opus"))
	assert.False(t, KnownPricingTier(""))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 25, EstimateTokens(string(make([]byte, 100))))
}
