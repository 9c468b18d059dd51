// Package behaviors maintains the library of behavioral patterns mined from
// high-reward episodes and spliced back into agent prompts.
package behaviors

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Aerovity/Orchestry/pkg/llm"
	"github.com/Aerovity/Orchestry/pkg/trajectory"
)

// DefaultTopPercentile selects which share of episodes counts as successful.
const DefaultTopPercentile = 0.2

// maxExemplarEpisodes caps how many transcripts go into one analysis prompt.
const maxExemplarEpisodes = 5

// RoleBehaviors maps behavior category to the learned patterns for one role.
type RoleBehaviors map[string][]string

// Library stores learned behaviors per agent role and extracts new ones from
// episode history through a judge. Safe for concurrent use.
type Library struct {
	judge  llm.Judge
	logger *zap.Logger

	mu     sync.Mutex
	byRole map[string]RoleBehaviors
}

// NewLibrary creates an empty library backed by the given judge.
func NewLibrary(judge llm.Judge, logger *zap.Logger) *Library {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Library{
		judge:  judge,
		logger: logger,
		byRole: make(map[string]RoleBehaviors),
	}
}

// Extract analyzes the top-percentile episodes by reward and merges the
// patterns the judge finds into the library. The returned map holds only the
// newly extracted behaviors. A judge failure is returned as an error; a
// malformed verdict degrades to an empty extraction.
func (l *Library) Extract(ctx context.Context, episodes []*trajectory.Trajectory, roles []string, taskType string, topPercentile float64) (map[string]RoleBehaviors, error) {
	if len(episodes) == 0 {
		l.logger.Warn("no episodes provided for behavior extraction")
		return map[string]RoleBehaviors{}, nil
	}
	if topPercentile <= 0 || topPercentile > 1 {
		topPercentile = DefaultTopPercentile
	}

	sorted := make([]*trajectory.Trajectory, len(episodes))
	copy(sorted, episodes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TotalReward > sorted[j].TotalReward
	})

	numTop := int(float64(len(sorted)) * topPercentile)
	if numTop < 1 {
		numTop = 1
	}
	top := sorted[:numTop]

	l.logger.Info("analyzing top episodes for behavior extraction",
		zap.Int("top", numTop),
		zap.Int("total", len(episodes)))

	prompt := buildAnalysisPrompt(top, roles, taskType)

	verdict, err := l.judge.Evaluate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("behavior extraction: %w", err)
	}

	extracted := parseBehaviorResponse(verdict, roles, l.logger)
	l.merge(extracted)
	return extracted, nil
}

// merge unions new patterns into the library, keeping insertion order and
// dropping duplicates.
func (l *Library) merge(extracted map[string]RoleBehaviors) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for role, categories := range extracted {
		if l.byRole[role] == nil {
			l.byRole[role] = make(RoleBehaviors)
		}
		for category, patterns := range categories {
			existing := l.byRole[role][category]
			for _, pattern := range patterns {
				if pattern == "" || containsString(existing, pattern) {
					continue
				}
				existing = append(existing, pattern)
			}
			l.byRole[role][category] = existing
		}
	}
}

// BehaviorsForRole returns up to max of the most recently learned behaviors
// for a role. With an empty category it pools every category.
func (l *Library) BehaviorsForRole(role, category string, max int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	categories, ok := l.byRole[role]
	if !ok {
		return nil
	}

	var pooled []string
	if category != "" {
		pooled = categories[category]
	} else {
		keys := make([]string, 0, len(categories))
		for k := range categories {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			pooled = append(pooled, categories[k]...)
		}
	}

	if max > 0 && len(pooled) > max {
		pooled = pooled[len(pooled)-max:]
	}
	out := make([]string, len(pooled))
	copy(out, pooled)
	return out
}

// All returns a deep copy of the whole library.
func (l *Library) All() map[string]RoleBehaviors {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]RoleBehaviors, len(l.byRole))
	for role, categories := range l.byRole {
		rb := make(RoleBehaviors, len(categories))
		for category, patterns := range categories {
			cp := make([]string, len(patterns))
			copy(cp, patterns)
			rb[category] = cp
		}
		out[role] = rb
	}
	return out
}

// Count returns the number of stored behaviors for a role across categories.
func (l *Library) Count(role string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, patterns := range l.byRole[role] {
		n += len(patterns)
	}
	return n
}

// Save writes the library as indented JSON.
func (l *Library) Save(path string) error {
	l.mu.Lock()
	data, err := json.MarshalIndent(l.byRole, "", "  ")
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal behavior library: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write behavior library: %w", err)
	}
	l.logger.Info("saved behavior library", zap.String("path", path))
	return nil
}

// Load replaces the library contents from a file written by Save.
func (l *Library) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read behavior library: %w", err)
	}

	byRole := make(map[string]RoleBehaviors)
	if err := json.Unmarshal(data, &byRole); err != nil {
		return fmt.Errorf("failed to unmarshal behavior library: %w", err)
	}

	l.mu.Lock()
	l.byRole = byRole
	l.mu.Unlock()
	l.logger.Info("loaded behavior library", zap.String("path", path))
	return nil
}

// Clear empties the library.
func (l *Library) Clear() {
	l.mu.Lock()
	l.byRole = make(map[string]RoleBehaviors)
	l.mu.Unlock()
}

// categoriesForTask picks the analysis categories for a task type.
func categoriesForTask(taskType string) []string {
	switch taskType {
	case "code_review", "code_collaboration":
		return []string{"collaboration", "code_quality", "efficiency"}
	case "documentation":
		return []string{"collaboration", "clarity", "completeness"}
	case "story_writing":
		return []string{"collaboration", "creativity", "coherence"}
	default:
		return []string{"collaboration", "quality", "efficiency"}
	}
}

func buildAnalysisPrompt(top []*trajectory.Trajectory, roles []string, taskType string) string {
	var sb strings.Builder

	exemplars := top
	if len(exemplars) > maxExemplarEpisodes {
		exemplars = exemplars[:maxExemplarEpisodes]
	}

	sb.WriteString(fmt.Sprintf("You are analyzing successful multi-agent %s episodes to extract behavioral patterns.\n\n", taskType))
	sb.WriteString("Here are the top-performing episodes:\n\n")
	for i, ep := range exemplars {
		sb.WriteString(fmt.Sprintf("--- Episode %d (Reward: %.2f) ---\n", i+1, ep.TotalReward))
		sb.WriteString(ep.Conversation())
		sb.WriteString("\n")
	}

	categories := categoriesForTask(taskType)

	sb.WriteString("\nYour task: Identify what made these episodes successful. Extract specific, actionable behavioral patterns for each agent role.\n\n")
	sb.WriteString("Agent Roles: " + strings.Join(roles, ", ") + "\n\n")
	sb.WriteString("For each agent role, identify patterns in these categories:\n")
	sb.WriteString(strings.Join(categories, ", ") + "\n\n")
	sb.WriteString("Return your analysis as a JSON object mapping each role name to an object\n")
	sb.WriteString("with one array of behavior strings per category.\n\n")
	sb.WriteString(`Guidelines:
- Be specific and actionable (not vague like "be better")
- Focus on collaboration patterns (how agents built on each other)
- Include 3-5 behaviors per category
- Behaviors should be reproducible in future episodes

Return ONLY the JSON object, no other text.`)

	return sb.String()
}

// parseBehaviorResponse extracts the JSON object from the verdict. Roles the
// judge skipped get empty category lists; an unparseable verdict yields the
// empty structure for every role.
func parseBehaviorResponse(text string, roles []string, logger *zap.Logger) map[string]RoleBehaviors {
	empty := func() map[string]RoleBehaviors {
		out := make(map[string]RoleBehaviors, len(roles))
		for _, role := range roles {
			out[role] = RoleBehaviors{"collaboration": {}, "quality": {}, "efficiency": {}}
		}
		return out
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		logger.Warn("no JSON object in behavior response")
		return empty()
	}

	parsed := make(map[string]RoleBehaviors)
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		logger.Warn("failed to parse behavior response", zap.Error(err))
		return empty()
	}

	for _, role := range roles {
		if _, ok := parsed[role]; !ok {
			parsed[role] = RoleBehaviors{"collaboration": {}, "quality": {}, "efficiency": {}}
		}
	}
	return parsed
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
