package trajectory

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddTurnNumbersAndDone(t *testing.T) {
	tr := New("write a function", 2)
	assert.False(t, tr.Done)

	tr.AddTurn(0, "coder", "obs", "def f(): pass", nil)
	assert.Equal(t, 1, tr.Turns[0].TurnNumber)
	assert.False(t, tr.Done)

	tr.AddTurn(1, "reviewer", "obs", "looks good", nil)
	assert.Equal(t, 2, tr.Turns[1].TurnNumber)
	assert.True(t, tr.Done, "reaching max turns terminates the trajectory")
}

func TestCloneIndependence(t *testing.T) {
	tr := New("task", 5)
	tr.AddTurn(0, "a", "o1", "x", map[string]string{"k": "v"})
	tr.Metadata = map[string]string{"run": "1"}

	clone := tr.Clone()
	clone.AddTurn(1, "b", "o2", "y", nil)
	clone.Turns[0].Metadata["k"] = "changed"
	clone.Metadata["run"] = "2"

	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, 2, clone.Len())
	assert.Equal(t, "v", tr.Turns[0].Metadata["k"])
	assert.Equal(t, "1", tr.Metadata["run"])
}

func TestContextForAgentEmpty(t *testing.T) {
	tr := New("solve it", 4)
	ctx := tr.ContextForAgent(10)
	assert.Contains(t, ctx, "Task: solve it")
	assert.Contains(t, ctx, NoTurnsSentinel)
}

func TestContextForAgentOrdering(t *testing.T) {
	tr := New("task", 4)
	tr.AddTurn(0, "A", "", "x", nil)
	tr.AddTurn(1, "B", "", "y", nil)

	ctx := tr.ContextForAgent(10)
	first := strings.Index(ctx, "Turn 1 | A: x")
	second := strings.Index(ctx, "Turn 2 | B: y")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, first, second, "turns render oldest first")
}

func TestContextForAgentHistoryWindow(t *testing.T) {
	tr := New("task", 10)
	for i := 0; i < 6; i++ {
		tr.AddTurn(i%2, "r", "", "msg", nil)
	}
	ctx := tr.ContextForAgent(3)
	assert.NotContains(t, ctx, "Turn 3 |")
	assert.Contains(t, ctx, "Turn 4 |")
	assert.Contains(t, ctx, "Turn 6 |")
}

func TestSetRewardsOnce(t *testing.T) {
	tr := New("task", 1)
	tr.AddTurn(0, "a", "", "x", nil)

	require.NoError(t, tr.SetRewards(0.75, map[string]float64{"structure": 0.25}))
	assert.True(t, tr.RewardsSet())
	assert.InDelta(t, 0.75, tr.TotalReward, 1e-9)

	err := tr.SetRewards(0.5, nil)
	assert.Error(t, err, "rewards are assigned exactly once")
	assert.InDelta(t, 0.75, tr.TotalReward, 1e-9)
}

func TestMarshalRoundTrip(t *testing.T) {
	tr := New("task", 3)
	tr.AddTurn(0, "coder", "obs", "def f(): pass", map[string]string{"model": "m"})
	tr.AddTurn(1, "reviewer", "obs2", "ok", nil)
	require.NoError(t, tr.SetRewards(0.5, map[string]float64{"tests": 0.25, "syntax": 0.25}))

	data, err := tr.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)

	if diff := cmp.Diff(tr, got, cmpopts.IgnoreUnexported(Trajectory{})); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, got.RewardsSet(), "rewards_set survives the round trip")
}

func TestFingerprintStableAcrossClones(t *testing.T) {
	tr := New("task", 4)
	tr.AddTurn(0, "a", "", "hello", nil)

	clone := tr.Clone()
	assert.Equal(t, tr.Fingerprint(), clone.Fingerprint())

	clone.AddTurn(1, "b", "", "world", nil)
	assert.NotEqual(t, tr.Fingerprint(), clone.Fingerprint())
}
