package trainer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Aerovity/Orchestry/pkg/tasks"
	"github.com/Aerovity/Orchestry/pkg/trajectory"
)

// checkpoint is the periodic training snapshot.
type checkpoint struct {
	Episode        int            `json:"episode"`
	NumEpisodes    int            `json:"num_episodes"`
	RecentRewards  []float64      `json:"recent_rewards"`
	AvgReward      float64        `json:"avg_reward"`
	BestReward     float64        `json:"best_reward"`
	AgentBehaviors map[string]int `json:"agent_behaviors"`
}

func (t *Trainer) saveCheckpoint(episode int) error {
	if err := t.ensureSaveDir(); err != nil {
		return err
	}

	cp := checkpoint{
		Episode:        episode,
		NumEpisodes:    len(t.episodes),
		AgentBehaviors: make(map[string]int, len(t.agents)),
	}
	for _, ag := range t.agents {
		cp.AgentBehaviors[ag.Role] = ag.BehaviorCount()
	}

	for i, ep := range t.episodes {
		if i == 0 || ep.TotalReward > cp.BestReward {
			cp.BestReward = ep.TotalReward
		}
		cp.AvgReward += ep.TotalReward
	}
	if len(t.episodes) > 0 {
		cp.AvgReward /= float64(len(t.episodes))
	}

	recent := t.episodes
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	cp.RecentRewards = make([]float64, len(recent))
	for i, ep := range recent {
		cp.RecentRewards[i] = ep.TotalReward
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	path := filepath.Join(t.saveDir, fmt.Sprintf("checkpoint_ep%03d.json", episode))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	t.logger.Info("checkpoint saved", zap.String("path", path))
	return nil
}

// saveFinalResults writes everything a run leaves behind: the selected
// trajectories, a rewards CSV, learned behaviors, generated papers for
// research runs, and the summary.
func (t *Trainer) saveFinalResults() error {
	if len(t.episodes) == 0 {
		return nil
	}
	if err := t.ensureSaveDir(); err != nil {
		return err
	}

	if err := t.saveEpisodes(); err != nil {
		return err
	}
	if err := t.saveRewardsCSV(); err != nil {
		return err
	}
	if t.library != nil {
		if err := t.library.Save(filepath.Join(t.saveDir, "learned_behaviors.json")); err != nil {
			return err
		}
	}
	if t.task.Config().Type == "research_lab" {
		if err := t.savePapers(); err != nil {
			return err
		}
	}
	if err := t.saveSummary(); err != nil {
		return err
	}

	t.logger.Info("final results saved", zap.String("dir", t.saveDir))
	return nil
}

func (t *Trainer) saveEpisodes() error {
	raw := make([]json.RawMessage, len(t.episodes))
	for i, ep := range t.episodes {
		data, err := ep.Marshal()
		if err != nil {
			return fmt.Errorf("episode %d: %w", i+1, err)
		}
		raw[i] = data
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal episodes: %w", err)
	}
	return os.WriteFile(filepath.Join(t.saveDir, "episodes.json"), data, 0644)
}

func (t *Trainer) saveRewardsCSV() error {
	components := rewardComponentColumns(t.task.Config().Type)

	var sb strings.Builder
	sb.WriteString("episode,total")
	for _, c := range components {
		sb.WriteString("," + c)
	}
	sb.WriteString(",turns\n")

	for i, ep := range t.episodes {
		sb.WriteString(fmt.Sprintf("%d,%.4f", i+1, ep.TotalReward))
		for _, c := range components {
			sb.WriteString(fmt.Sprintf(",%.4f", ep.RewardComponents[c]))
		}
		sb.WriteString(fmt.Sprintf(",%d\n", ep.Len()))
	}

	return os.WriteFile(filepath.Join(t.saveDir, "rewards.csv"), []byte(sb.String()), 0644)
}

// rewardComponentColumns fixes the CSV column order per task family so the
// files stay stable across runs.
func rewardComponentColumns(taskType string) []string {
	switch taskType {
	case "research_lab":
		return []string{"scientific_rigor", "novelty", "completeness", "collaboration", "feasibility"}
	case "code_collaboration":
		return []string{"structure", "syntax", "tests", "cooperation"}
	case "code_review":
		return []string{"quality", "collaboration", "efficiency"}
	default:
		return nil
	}
}

func (t *Trainer) savePapers() error {
	dir := filepath.Join(t.saveDir, "papers")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create papers dir: %w", err)
	}

	for i, ep := range t.episodes {
		paper := tasks.BuildPaperMarkdown(ep, ep.Metadata["topic"], ep.Metadata["objective"])
		path := filepath.Join(dir, fmt.Sprintf("episode_%03d_paper.md", i+1))
		if err := os.WriteFile(path, []byte(paper), 0644); err != nil {
			return fmt.Errorf("failed to write paper %d: %w", i+1, err)
		}
	}
	return nil
}

func (t *Trainer) saveSummary() error {
	data, err := json.MarshalIndent(t.summary(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	return os.WriteFile(filepath.Join(t.saveDir, "summary.json"), data, 0644)
}

// LoadEpisodes reads back an episodes.json written by a previous run.
func LoadEpisodes(path string) ([]*trajectory.Trajectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read episodes: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal episodes: %w", err)
	}

	episodes := make([]*trajectory.Trajectory, len(raw))
	for i, r := range raw {
		traj, err := trajectory.Unmarshal(r)
		if err != nil {
			return nil, fmt.Errorf("episode %d: %w", i+1, err)
		}
		episodes[i] = traj
	}
	return episodes, nil
}
