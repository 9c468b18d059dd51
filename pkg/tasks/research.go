package tasks

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/Aerovity/Orchestry/pkg/agent"
	"github.com/Aerovity/Orchestry/pkg/rewards"
	"github.com/Aerovity/Orchestry/pkg/trajectory"
)

// The five research roles, in turn order.
const (
	RoleLiteratureSynthesizer = "literature_synthesizer"
	RoleHypothesisGenerator   = "hypothesis_generator"
	RoleExperimentalDesigner  = "experimental_designer"
	RoleDataAnalyst           = "data_analyst"
	RolePaperWriter           = "paper_writer"
)

// ResearchRoles lists the research team in turn order.
var ResearchRoles = []string{
	RoleLiteratureSynthesizer,
	RoleHypothesisGenerator,
	RoleExperimentalDesigner,
	RoleDataAnalyst,
	RolePaperWriter,
}

// MinPaperChars is the minimum draft length for a complete research episode.
const MinPaperChars = 3000

// minResearchTurns requires each of the five roles to have spoken once.
const minResearchTurns = 5

// ResearchProblem is one research exercise for the lab.
type ResearchProblem struct {
	Topic          string   `json:"topic"`
	Context        string   `json:"context"`
	Objective      string   `json:"objective"`
	KeyPapers      []string `json:"key_papers"`
	SuccessMetrics []string `json:"success_metrics"`
}

// BuiltinResearchProblems returns the built-in problem pool for a domain.
// Unknown domains fall back to materials science.
func BuiltinResearchProblems(domain string) []ResearchProblem {
	pools := map[string][]ResearchProblem{
		"materials_science": {
			{
				Topic:     "Next-generation solid-state battery electrolytes",
				Context:   "Current lithium-ion batteries use liquid electrolytes that are flammable. Solid-state electrolytes promise higher energy density and safety.",
				Objective: "Discover novel solid electrolyte compositions with >10^-2 S/cm conductivity and air stability",
				KeyPapers: []string{
					"Li7La3Zr2O12 garnet electrolytes (conductivity: 10^-4 S/cm)",
					"NASICON-type electrolytes (conductivity: 10^-3 S/cm)",
					"Sulfide-based electrolytes (conductivity: 10^-2 S/cm, air-sensitive)",
				},
				SuccessMetrics: []string{"Ionic conductivity", "Electrochemical stability window", "Air/moisture stability", "Cost of materials"},
			},
			{
				Topic:     "CO2 reduction catalysts for carbon-neutral fuels",
				Context:   "Converting CO2 to useful chemicals (methanol, ethanol, formic acid) requires efficient electrocatalysts.",
				Objective: "Design catalyst with >80% Faradaic efficiency for C2+ products at <0.5V overpotential",
				KeyPapers: []string{
					"Copper-based catalysts (high C2+ selectivity, poor stability)",
					"Gold nanoparticles (selective CO production)",
					"Bismuth catalysts (formic acid production, low overpotential)",
				},
				SuccessMetrics: []string{"Faradaic efficiency", "Overpotential", "Current density", "Catalyst stability"},
			},
		},
		"climate": {
			{
				Topic:     "Direct air capture materials for CO2 sequestration",
				Context:   "Removing CO2 from atmosphere requires sorbent materials with high capacity and low regeneration energy.",
				Objective: "Discover sorbent with >5 mmol/g capacity, <80 C regeneration",
				KeyPapers: []string{
					"Amine-functionalized sorbents (capacity: 2-3 mmol/g, high energy)",
					"MOF materials (capacity: 5-10 mmol/g, expensive synthesis)",
					"Porous carbons (low capacity, cheap, regenerable)",
				},
				SuccessMetrics: []string{"CO2 uptake capacity", "Regeneration temperature", "Cycling stability", "Material cost"},
			},
		},
		"protein": {
			{
				Topic:     "De novo enzyme design for plastic degradation",
				Context:   "PET plastic accumulates in environment. Natural enzymes exist (PETase) but are slow.",
				Objective: "Design enzyme with kcat >1.0 s^-1 and stability at 50-70 C",
				KeyPapers: []string{
					"IsPETase from Ideonella sakaiensis (kcat: 0.04 s^-1)",
					"LCC from Leaf Compost Cutinase (kcat: 0.26 s^-1)",
					"Engineered PETase variants (kcat: up to 0.8 s^-1)",
				},
				SuccessMetrics: []string{"Catalytic rate (kcat)", "Thermal stability (Tm)", "Substrate binding (Km)", "Stability over time"},
			},
		},
		"physics": {
			{
				Topic:     "Room-temperature superconductor candidates",
				Context:   "High-pressure hydrides show high Tc but require extreme pressures. Need ambient-pressure alternatives.",
				Objective: "Predict materials with Tc >200K at ambient pressure",
				KeyPapers: []string{
					"H3S (Tc = 203K at 155 GPa)",
					"LaH10 (Tc = 250K at 170 GPa)",
					"Carbonaceous sulfur hydride (Tc = 288K at 267 GPa, disputed)",
				},
				SuccessMetrics: []string{"Critical temperature", "Required pressure", "Material stability", "Synthesis feasibility"},
			},
		},
	}

	if pool, ok := pools[domain]; ok {
		return pool
	}
	return pools["materials_science"]
}

// researchState is the artifact accumulation for one episode or branch.
type researchState struct {
	literature  []string
	hypotheses  []string
	experiments []string
	analyses    []string
	paperDraft  string
	turnCount   int
}

// accumulate applies one turn's contribution. Each role's output only counts
// when it carries the markers of real phase work.
func (s *researchState) accumulate(role, action string) {
	lower := strings.ToLower(action)
	switch role {
	case RoleLiteratureSynthesizer:
		if len(action) > 50 {
			s.literature = append(s.literature, action)
		}
	case RoleHypothesisGenerator:
		if containsAny(lower, "hypothesis:", "propose:", "predict:", "theory:") {
			s.hypotheses = append(s.hypotheses, action)
		}
	case RoleExperimentalDesigner:
		if containsAny(lower, "experiment:", "method:", "procedure:", "measure:") {
			s.experiments = append(s.experiments, action)
		}
	case RoleDataAnalyst:
		if containsAny(lower, "result:", "analysis:", "finding:", "data shows:") {
			s.analyses = append(s.analyses, action)
		}
	case RolePaperWriter:
		if len(action) > 100 {
			s.paperDraft += "\n\n" + action
		}
	}
	s.turnCount++
}

func stateFromTrajectory(traj *trajectory.Trajectory) researchState {
	var s researchState
	for _, turn := range traj.Turns {
		s.accumulate(turn.AgentRole, turn.Action)
	}
	return s
}

func containsAny(text string, markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// ResearchLabTask is the five-role autonomous research lab. Beam branches
// carry their own artifact state, reconstructed from the trajectory.
type ResearchLabTask struct {
	domain         string
	maxTurns       int
	requireNovelty bool
	problems       []ResearchProblem
	weighted       *rewards.WeightedEvaluator
	rng            *rand.Rand
	logger         *zap.Logger

	current ResearchProblem
	state   researchState
}

// NewResearchLabTask creates the task. weighted is optional: when nil,
// evaluation uses the built-in heuristics instead of an LLM judge.
func NewResearchLabTask(domain string, maxTurns int, weighted *rewards.WeightedEvaluator, rng *rand.Rand, logger *zap.Logger) *ResearchLabTask {
	if maxTurns <= 0 {
		maxTurns = 15
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResearchLabTask{
		domain:         domain,
		maxTurns:       maxTurns,
		requireNovelty: true,
		problems:       BuiltinResearchProblems(domain),
		weighted:       weighted,
		rng:            rng,
		logger:         logger,
	}
}

// Config returns the episode shape.
func (t *ResearchLabTask) Config() Config {
	return Config{MaxTurns: t.maxTurns, MinTurns: minResearchTurns, Type: "research_lab"}
}

// Reset samples a research problem and clears episode state.
func (t *ResearchLabTask) Reset() Observation {
	t.current = t.problems[t.rng.Intn(len(t.problems))]
	t.state = researchState{}

	description := fmt.Sprintf("Research Topic: %s\nObjective: %s\nContext: %s\nKey papers: %s\nSuccess Metrics: %s",
		t.current.Topic, t.current.Objective, t.current.Context,
		strings.Join(t.current.KeyPapers, "; "),
		strings.Join(t.current.SuccessMetrics, ", "))

	t.logger.Debug("research episode reset", zap.String("topic", t.current.Topic))
	return Observation{
		TaskDescription: description,
		Topic:           t.current.Topic,
		Objective:       t.current.Objective,
		Metadata:        map[string]string{"domain": t.domain},
	}
}

// Step accumulates one contribution for sequential execution.
func (t *ResearchLabTask) Step(agentID int, agentRole, action string) bool {
	t.state.accumulate(agentRole, action)
	return t.complete(t.state) || t.state.turnCount >= t.maxTurns
}

func (t *ResearchLabTask) complete(s researchState) bool {
	return len(s.literature) >= 2 &&
		len(s.hypotheses) >= 1 &&
		len(s.experiments) >= 1 &&
		len(s.analyses) >= 1 &&
		len(s.paperDraft) >= MinPaperChars
}

// Complete reports whether a trajectory has finished the research early: all
// five roles contributed and the paper draft reached academic length.
func (t *ResearchLabTask) Complete(traj *trajectory.Trajectory) bool {
	if traj.Len() < minResearchTurns {
		return false
	}

	rolesPresent := make(map[string]bool, minResearchTurns)
	paperLength := 0
	for _, turn := range traj.Turns {
		rolesPresent[turn.AgentRole] = true
		if turn.AgentRole == RolePaperWriter {
			paperLength += len(turn.Action)
		}
	}
	for _, role := range ResearchRoles {
		if !rolesPresent[role] {
			return false
		}
	}
	return paperLength >= MinPaperChars
}

// Evaluate scores the trajectory with the LLM judge when configured,
// otherwise with the heuristic dimension scores. Either way the result is the
// five weighted dimensions on a 0-10 scale.
func (t *ResearchLabTask) Evaluate(ctx context.Context, traj *trajectory.Trajectory) (rewards.Result, error) {
	state := stateFromTrajectory(traj)

	if t.weighted != nil {
		return t.weighted.Evaluate(ctx, rewards.ResearchArtifacts{
			Topic:       t.current.Topic,
			Objective:   t.current.Objective,
			Transcript:  traj.Conversation(),
			Literature:  state.literature,
			Hypotheses:  state.hypotheses,
			Experiments: state.experiments,
			Analyses:    state.analyses,
			PaperDraft:  state.paperDraft,
		}), nil
	}

	return t.heuristicEvaluate(state, traj), nil
}

func (t *ResearchLabTask) heuristicEvaluate(s researchState, traj *trajectory.Trajectory) rewards.Result {
	components := map[string]float64{
		"scientific_rigor": t.rigorScore(s),
		"novelty":          t.noveltyScore(s),
		"completeness":     t.completenessScore(s),
		"collaboration":    collaborationScore(traj),
		"feasibility":      feasibilityScore(s),
	}

	total := 0.25*components["scientific_rigor"] +
		0.25*components["novelty"] +
		0.20*components["completeness"] +
		0.15*components["collaboration"] +
		0.15*components["feasibility"]

	return rewards.Result{Total: total, Components: components}
}

func (t *ResearchLabTask) rigorScore(s researchState) float64 {
	score := 0.0
	if len(s.literature) >= 2 {
		score += 2.0
	}
	if len(s.literature) >= 4 {
		score += 1.0
	}
	for _, hyp := range s.hypotheses {
		if containsAny(strings.ToLower(hyp), "measure", "test", "quantify") {
			score += 1.5
		}
	}
	for _, exp := range s.experiments {
		lower := strings.ToLower(exp)
		if strings.Contains(lower, "control") && strings.Contains(lower, "measure") {
			score += 1.5
		}
	}
	for _, analysis := range s.analyses {
		if containsAny(strings.ToLower(analysis), "significant", "correlation", "trend") {
			score += 1.0
		}
	}
	return clamp10(score)
}

func (t *ResearchLabTask) noveltyScore(s researchState) float64 {
	score := 5.0
	if t.requireNovelty {
		for _, hyp := range s.hypotheses {
			if containsAny(strings.ToLower(hyp), "novel", "new", "improve", "beyond") {
				score += 2.0
			}
		}
	}
	if len(s.hypotheses) >= 2 {
		score += 1.0
	}
	return clamp10(score)
}

func (t *ResearchLabTask) completenessScore(s researchState) float64 {
	score := 0.0
	if len(s.literature) >= 2 {
		score += 2.0
	}
	if len(s.hypotheses) >= 1 {
		score += 2.0
	}
	if len(s.experiments) >= 1 {
		score += 2.0
	}
	if len(s.analyses) >= 1 {
		score += 2.0
	}
	if len(s.paperDraft) >= 500 {
		score += 1.0
	}
	if len(s.paperDraft) >= MinPaperChars {
		score += 2.0
	}
	if len(s.paperDraft) >= 5000 {
		score += 1.0
	}
	return clamp10(score)
}

func collaborationScore(traj *trajectory.Trajectory) float64 {
	if traj.Len() < 2 {
		return 0
	}

	score := 0.0
	for i := 1; i < len(traj.Turns); i++ {
		action := strings.ToLower(traj.Turns[i].Action)
		if containsAny(action, "based on", "building on", "as mentioned", "according to", "following", "using the") {
			score += 1.0
		}
		if i >= 2 && traj.Turns[i-1].AgentRole != traj.Turns[i].AgentRole && len(action) > 50 {
			score += 0.5
		}
	}
	return clamp10(score)
}

func feasibilityScore(s researchState) float64 {
	score := 5.0
	for _, exp := range s.experiments {
		lower := strings.ToLower(exp)
		if containsAny(lower, "standard", "established", "validated") {
			score += 1.0
		}
		if containsAny(lower, "assume perfect", "infinite", "zero cost") {
			score -= 2.0
		}
	}
	if score < 0 {
		return 0
	}
	return clamp10(score)
}

func clamp10(v float64) float64 {
	if v > 10 {
		return 10
	}
	return v
}

// Team builds the five research agents in turn order.
func (t *ResearchLabTask) Team() []*agent.Agent {
	goals := map[string]string{
		RoleLiteratureSynthesizer: "Synthesize the key papers, extract quantitative findings, and state the research gap explicitly.",
		RoleHypothesisGenerator:   "Propose 2-3 testable hypotheses addressing the identified gaps, each starting with 'Hypothesis:' and including quantitative expected outcomes.",
		RoleExperimentalDesigner:  "Design rigorous experiments starting with 'Experiment:' that include methods, measurements, and control groups.",
		RoleDataAnalyst:           "Provide expected results starting with 'Analysis:' including error estimates, statistical significance, and hypothesis validation.",
		RolePaperWriter:           "Write a complete research paper of at least 3000 characters: abstract, introduction, hypotheses, methods, results, discussion, future work.",
	}

	team := make([]*agent.Agent, len(ResearchRoles))
	for i, role := range ResearchRoles {
		basePrompt := fmt.Sprintf("You are the %s in an autonomous research laboratory. Build explicitly on your teammates' earlier contributions.",
			strings.ReplaceAll(role, "_", " "))
		team[i] = agent.New(i, role, goals[role], basePrompt)
	}
	return team
}

// BuildPaperMarkdown renders a finished research trajectory as a markdown
// paper grouped by role contribution.
func BuildPaperMarkdown(traj *trajectory.Trajectory, topic, objective string) string {
	var literature, hypotheses, experiments, analyses, drafts []string
	for _, turn := range traj.Turns {
		switch turn.AgentRole {
		case RoleLiteratureSynthesizer:
			literature = append(literature, turn.Action)
		case RoleHypothesisGenerator:
			hypotheses = append(hypotheses, turn.Action)
		case RoleExperimentalDesigner:
			experiments = append(experiments, turn.Action)
		case RoleDataAnalyst:
			analyses = append(analyses, turn.Action)
		case RolePaperWriter:
			drafts = append(drafts, turn.Action)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n## Objective\n%s\n\n## Reward Score: %.2f\n", topic, objective, traj.TotalReward))
	for _, dim := range []string{"scientific_rigor", "novelty", "completeness", "collaboration", "feasibility"} {
		sb.WriteString(fmt.Sprintf("- %s: %.1f/10\n", strings.ReplaceAll(dim, "_", " "), traj.RewardComponents[dim]))
	}

	sb.WriteString("\n---\n\n## Literature Review\n\n")
	for _, lit := range literature {
		sb.WriteString(lit + "\n\n")
	}
	sb.WriteString("## Hypotheses\n\n")
	for i, hyp := range hypotheses {
		sb.WriteString(fmt.Sprintf("### Hypothesis %d\n%s\n\n", i+1, hyp))
	}
	sb.WriteString("## Experimental Design\n\n")
	for i, exp := range experiments {
		sb.WriteString(fmt.Sprintf("### Experiment %d\n%s\n\n", i+1, exp))
	}
	sb.WriteString("## Data Analysis\n\n")
	for _, analysis := range analyses {
		sb.WriteString(analysis + "\n\n")
	}
	sb.WriteString("## Paper Draft\n\n")
	for _, draft := range drafts {
		sb.WriteString(draft + "\n\n")
	}

	sb.WriteString(fmt.Sprintf("---\n\n*Episode completed in %d turns*\n", traj.Len()))
	return sb.String()
}
