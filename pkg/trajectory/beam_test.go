package trajectory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPruneBoundsBeam(t *testing.T) {
	b := NewBeam(2)
	for i := 0; i < 5; i++ {
		tr := New(fmt.Sprintf("task-%d", i), 4)
		b.Add(tr, float64(i))
	}
	require.Equal(t, 5, b.Len())

	b.Prune()
	assert.Equal(t, 2, b.Len())

	entries := b.Entries()
	assert.InDelta(t, 4.0, entries[0].Score, 1e-9)
	assert.InDelta(t, 3.0, entries[1].Score, 1e-9)
}

func TestPruneTieBreakEarliestWins(t *testing.T) {
	b := NewBeam(1)
	first := New("first", 4)
	second := New("second", 4)
	b.Add(first, 1.0)
	b.Add(second, 1.0)

	b.Prune()
	require.Equal(t, 1, b.Len())
	assert.Same(t, first, b.Trajectories()[0], "equal scores keep the earliest insertion")
}

func TestBest(t *testing.T) {
	b := NewBeam(3)
	assert.Nil(t, b.Best())

	low := New("low", 4)
	high := New("high", 4)
	b.Add(low, 0.1)
	b.Add(high, 0.9)
	assert.Same(t, high, b.Best())
}

func TestAllDone(t *testing.T) {
	b := NewBeam(2)
	assert.False(t, b.AllDone(), "empty beam is not done")

	t1 := New("a", 1)
	t1.AddTurn(0, "r", "", "x", nil)
	b.Add(t1, 1.0)
	assert.True(t, b.AllDone())

	t2 := New("b", 2)
	t2.AddTurn(0, "r", "", "x", nil)
	b.Add(t2, 0.5)
	assert.False(t, b.AllDone())
}

func TestWidthClamped(t *testing.T) {
	b := NewBeam(0)
	assert.Equal(t, 1, b.Width())
}
