package trajectory

import "sort"

// Entry pairs a trajectory with its current search score.
type Entry struct {
	Trajectory *Trajectory
	Score      float64
}

// Beam is a bounded collection of scored trajectories. Callers may
// over-insert freely; the width bound is enforced only by Prune.
type Beam struct {
	width   int
	entries []Entry
}

// NewBeam creates an empty beam. Width must be >= 1.
func NewBeam(width int) *Beam {
	if width < 1 {
		width = 1
	}
	return &Beam{width: width}
}

// Width returns the configured beam width.
func (b *Beam) Width() int {
	return b.width
}

// Add appends a trajectory without enforcing the width bound.
func (b *Beam) Add(t *Trajectory, score float64) {
	b.entries = append(b.entries, Entry{Trajectory: t, Score: score})
}

// Prune retains only the top-width entries by score descending. The sort is
// stable, so on equal scores the earliest-inserted entry wins; that tie-break
// keeps pruning deterministic across runs.
func (b *Beam) Prune() {
	if len(b.entries) <= b.width {
		return
	}
	sort.SliceStable(b.entries, func(i, j int) bool {
		return b.entries[i].Score > b.entries[j].Score
	})
	b.entries = b.entries[:b.width]
}

// Best returns the highest-scoring trajectory, or nil if the beam is empty.
func (b *Beam) Best() *Trajectory {
	if len(b.entries) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(b.entries); i++ {
		if b.entries[i].Score > b.entries[best].Score {
			best = i
		}
	}
	return b.entries[best].Trajectory
}

// Trajectories returns the trajectories currently in the beam, in insertion
// (post-prune) order.
func (b *Beam) Trajectories() []*Trajectory {
	out := make([]*Trajectory, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.Trajectory
	}
	return out
}

// Entries returns the scored entries currently in the beam.
func (b *Beam) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the number of trajectories in the beam.
func (b *Beam) Len() int {
	return len(b.entries)
}

// AllDone reports whether every trajectory in the beam has terminated.
func (b *Beam) AllDone() bool {
	for _, e := range b.entries {
		if !e.Trajectory.Done {
			return false
		}
	}
	return len(b.entries) > 0
}
