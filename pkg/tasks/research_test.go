package tasks

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aerovity/Orchestry/pkg/trajectory"
)

func completeResearchTrajectory() *trajectory.Trajectory {
	traj := trajectory.New("research", 15)
	traj.AddTurn(0, RoleLiteratureSynthesizer, "", strings.Repeat("literature finding ", 10), nil)
	traj.AddTurn(1, RoleHypothesisGenerator, "", "Hypothesis: novel electrolytes will measure above threshold based on the gap identified", nil)
	traj.AddTurn(2, RoleExperimentalDesigner, "", "Experiment: standard validated synthesis, measure conductivity against a control group, building on the hypothesis", nil)
	traj.AddTurn(3, RoleDataAnalyst, "", "Analysis: results show a significant trend of 42.5 following the experimental design", nil)
	traj.AddTurn(4, RolePaperWriter, "", strings.Repeat("paper section text ", 200), nil)
	return traj
}

func TestResearchCompletePredicate(t *testing.T) {
	task := NewResearchLabTask("materials_science", 15, nil, rand.New(rand.NewSource(3)), nil)
	task.Reset()

	assert.True(t, task.Complete(completeResearchTrajectory()))

	// Short paper fails completion.
	short := trajectory.New("research", 15)
	short.AddTurn(0, RoleLiteratureSynthesizer, "", strings.Repeat("x", 60), nil)
	short.AddTurn(1, RoleHypothesisGenerator, "", "Hypothesis: y", nil)
	short.AddTurn(2, RoleExperimentalDesigner, "", "Experiment: z", nil)
	short.AddTurn(3, RoleDataAnalyst, "", "Analysis: w", nil)
	short.AddTurn(4, RolePaperWriter, "", "too short", nil)
	assert.False(t, task.Complete(short))

	// Missing role fails completion.
	missing := completeResearchTrajectory()
	missing.Turns[3].AgentRole = RolePaperWriter
	assert.False(t, task.Complete(missing))
}

func TestResearchCompleteNeedsFiveTurns(t *testing.T) {
	task := NewResearchLabTask("materials_science", 15, nil, nil, nil)
	traj := trajectory.New("research", 15)
	traj.AddTurn(4, RolePaperWriter, "", strings.Repeat("x", 4000), nil)
	assert.False(t, task.Complete(traj))
}

func TestResearchHeuristicEvaluate(t *testing.T) {
	task := NewResearchLabTask("materials_science", 15, nil, rand.New(rand.NewSource(3)), nil)
	task.Reset()

	result, err := task.Evaluate(context.Background(), completeResearchTrajectory())
	require.NoError(t, err)

	assert.Greater(t, result.Total, 0.0)
	assert.LessOrEqual(t, result.Total, 10.0)
	for _, dim := range []string{"scientific_rigor", "novelty", "completeness", "collaboration", "feasibility"} {
		assert.Contains(t, result.Components, dim)
	}
	// One literature entry only, so rigor credit for literature depth is absent
	// but the testable hypothesis and controlled experiment still count.
	assert.Greater(t, result.Components["scientific_rigor"], 0.0)
	assert.Greater(t, result.Components["novelty"], 5.0, "novel hypothesis raises novelty above base")
}

func TestResearchStepAccumulates(t *testing.T) {
	task := NewResearchLabTask("protein", 15, nil, rand.New(rand.NewSource(9)), nil)
	task.Reset()

	done := task.Step(0, RoleLiteratureSynthesizer, strings.Repeat("enzyme kinetics ", 10))
	assert.False(t, done)

	// Marker-free contributions are dropped.
	task.Step(1, RoleHypothesisGenerator, "I have no idea")
	assert.Empty(t, task.state.hypotheses)

	task.Step(1, RoleHypothesisGenerator, "Hypothesis: mutation X improves kcat")
	assert.Len(t, task.state.hypotheses, 1)
}

func TestBuiltinResearchProblemsFallback(t *testing.T) {
	assert.NotEmpty(t, BuiltinResearchProblems("physics"))
	fallback := BuiltinResearchProblems("unknown-domain")
	require.NotEmpty(t, fallback)
	assert.Contains(t, fallback[0].Topic, "battery")
}

func TestResearchTeam(t *testing.T) {
	task := NewResearchLabTask("climate", 15, nil, nil, nil)
	team := task.Team()
	require.Len(t, team, 5)
	for i, role := range ResearchRoles {
		assert.Equal(t, role, team[i].Role)
		assert.Equal(t, i, team[i].ID)
	}
}

func TestBuildPaperMarkdown(t *testing.T) {
	traj := completeResearchTrajectory()
	require.NoError(t, traj.SetRewards(7.5, map[string]float64{"novelty": 8.0}))

	paper := BuildPaperMarkdown(traj, "Solid electrolytes", "Find better ones")
	assert.Contains(t, paper, "# Solid electrolytes")
	assert.Contains(t, paper, "## Hypotheses")
	assert.Contains(t, paper, "### Hypothesis 1")
	assert.Contains(t, paper, "Reward Score: 7.50")
	assert.Contains(t, paper, "novelty: 8.0/10")
}
