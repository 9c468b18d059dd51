package behaviors

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aerovity/Orchestry/pkg/trajectory"
)

type fakeJudge struct {
	verdict string
	err     error
	prompts []string
}

func (f *fakeJudge) Evaluate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.verdict, nil
}

func episodeWithReward(reward float64) *trajectory.Trajectory {
	tr := trajectory.New("task", 1)
	tr.AddTurn(0, "coder", "", "work", nil)
	_ = tr.SetRewards(reward, nil)
	return tr
}

func TestExtractMergesParsedBehaviors(t *testing.T) {
	judge := &fakeJudge{verdict: `Here you go:
{
  "coder": {"collaboration": ["reference prior code"], "code_quality": ["use clear names"]},
  "reviewer": {"collaboration": ["quote line numbers"]}
}`}
	lib := NewLibrary(judge, nil)

	extracted, err := lib.Extract(context.Background(),
		[]*trajectory.Trajectory{episodeWithReward(0.9)},
		[]string{"coder", "reviewer"}, "code_collaboration", 0.2)
	require.NoError(t, err)

	assert.Equal(t, []string{"reference prior code"}, extracted["coder"]["collaboration"])
	assert.Equal(t, []string{"quote line numbers"}, lib.BehaviorsForRole("reviewer", "collaboration", 5))
	assert.Equal(t, 2, lib.Count("coder"))
}

func TestExtractDeduplicatesOnMerge(t *testing.T) {
	judge := &fakeJudge{verdict: `{"coder": {"collaboration": ["a", "b"]}}`}
	lib := NewLibrary(judge, nil)

	episodes := []*trajectory.Trajectory{episodeWithReward(0.5)}
	_, err := lib.Extract(context.Background(), episodes, []string{"coder"}, "x", 0.2)
	require.NoError(t, err)
	_, err = lib.Extract(context.Background(), episodes, []string{"coder"}, "x", 0.2)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, lib.BehaviorsForRole("coder", "collaboration", 10))
}

func TestExtractMalformedVerdictYieldsEmptyStructure(t *testing.T) {
	judge := &fakeJudge{verdict: "I could not produce JSON, sorry."}
	lib := NewLibrary(judge, nil)

	extracted, err := lib.Extract(context.Background(),
		[]*trajectory.Trajectory{episodeWithReward(0.5)},
		[]string{"coder"}, "x", 0.2)
	require.NoError(t, err)

	assert.Empty(t, extracted["coder"]["collaboration"])
	assert.Zero(t, lib.Count("coder"))
}

func TestExtractJudgeFailurePropagates(t *testing.T) {
	judge := &fakeJudge{err: errors.New("down")}
	lib := NewLibrary(judge, nil)

	_, err := lib.Extract(context.Background(),
		[]*trajectory.Trajectory{episodeWithReward(0.5)},
		[]string{"coder"}, "x", 0.2)
	assert.Error(t, err)
}

func TestExtractNoEpisodes(t *testing.T) {
	lib := NewLibrary(&fakeJudge{}, nil)
	extracted, err := lib.Extract(context.Background(), nil, []string{"coder"}, "x", 0.2)
	require.NoError(t, err)
	assert.Empty(t, extracted)
}

func TestExtractUsesTopEpisodesOnly(t *testing.T) {
	judge := &fakeJudge{verdict: `{}`}
	lib := NewLibrary(judge, nil)

	var episodes []*trajectory.Trajectory
	for i := 0; i < 10; i++ {
		episodes = append(episodes, episodeWithReward(float64(i)/10))
	}

	_, err := lib.Extract(context.Background(), episodes, []string{"coder"}, "x", 0.2)
	require.NoError(t, err)

	require.Len(t, judge.prompts, 1)
	// Top 20% of ten episodes: the two highest rewards appear in the prompt.
	assert.Contains(t, judge.prompts[0], "Reward: 0.90")
	assert.Contains(t, judge.prompts[0], "Reward: 0.80")
	assert.NotContains(t, judge.prompts[0], "Reward: 0.10")
}

func TestBehaviorsForRoleMostRecent(t *testing.T) {
	judge := &fakeJudge{verdict: `{"coder": {"collaboration": ["a", "b", "c", "d"]}}`}
	lib := NewLibrary(judge, nil)

	_, err := lib.Extract(context.Background(),
		[]*trajectory.Trajectory{episodeWithReward(1)},
		[]string{"coder"}, "x", 0.2)
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "d"}, lib.BehaviorsForRole("coder", "collaboration", 2))
	assert.Empty(t, lib.BehaviorsForRole("unknown", "", 5))
}

func TestSaveLoadClear(t *testing.T) {
	judge := &fakeJudge{verdict: `{"coder": {"collaboration": ["a"]}}`}
	lib := NewLibrary(judge, nil)
	_, err := lib.Extract(context.Background(),
		[]*trajectory.Trajectory{episodeWithReward(1)},
		[]string{"coder"}, "x", 0.2)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "behaviors.json")
	require.NoError(t, lib.Save(path))

	restored := NewLibrary(judge, nil)
	require.NoError(t, restored.Load(path))
	assert.Equal(t, lib.All(), restored.All())

	restored.Clear()
	assert.Zero(t, restored.Count("coder"))
}
