package rewards

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrBudgetExceeded is returned once cumulative spend crosses the ceiling.
// The crossing call is still recorded, so TotalSpent reflects the overshoot.
var ErrBudgetExceeded = errors.New("budget exceeded")

// DefaultWarnThreshold is the budget fraction at which warnings start.
const DefaultWarnThreshold = 0.8

// BudgetTracker accumulates API spend and enforces a hard ceiling. Safe for
// concurrent use.
type BudgetTracker struct {
	maxBudget     float64
	warnThreshold float64
	logger        *zap.Logger

	mu         sync.Mutex
	totalSpent float64
	callCount  int
	startTime  time.Time
}

// BudgetStats is a point-in-time snapshot of spend.
type BudgetStats struct {
	TotalSpent     float64 `json:"total_spent"`
	MaxBudget      float64 `json:"max_budget"`
	Remaining      float64 `json:"remaining"`
	PercentUsed    float64 `json:"percent_used"`
	CallCount      int     `json:"call_count"`
	AvgCostPerCall float64 `json:"avg_cost_per_call"`
	ElapsedHours   float64 `json:"elapsed_hours"`
	CostPerHour    float64 `json:"cost_per_hour"`
}

// NewBudgetTracker creates a tracker with the given ceiling in USD.
func NewBudgetTracker(maxBudget float64, logger *zap.Logger) *BudgetTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("budget tracker initialized", zap.Float64("max_budget_usd", maxBudget))
	return &BudgetTracker{
		maxBudget:     maxBudget,
		warnThreshold: DefaultWarnThreshold,
		logger:        logger,
		startTime:     time.Now(),
	}
}

// TrackCall records one call's cost. The cost is accumulated before the limit
// check, so the call that crosses the ceiling is counted and the error carries
// the overshot total.
func (b *BudgetTracker) TrackCall(cost float64, description string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalSpent += cost
	b.callCount++

	if b.totalSpent > b.maxBudget {
		return fmt.Errorf("%w: $%.2f > $%.2f", ErrBudgetExceeded, b.totalSpent, b.maxBudget)
	}

	if b.totalSpent > b.maxBudget*b.warnThreshold {
		b.logger.Warn("approaching budget limit",
			zap.Float64("total_spent", b.totalSpent),
			zap.Float64("max_budget", b.maxBudget),
			zap.Float64("remaining", b.maxBudget-b.totalSpent))
	}

	if description != "" {
		b.logger.Debug("api call tracked",
			zap.String("description", description),
			zap.Float64("cost", cost))
	}
	return nil
}

// CanAfford reports whether an estimated cost fits within the remaining budget.
func (b *BudgetTracker) CanAfford(estimatedCost float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalSpent+estimatedCost <= b.maxBudget
}

// TotalSpent returns the cumulative spend so far.
func (b *BudgetTracker) TotalSpent() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalSpent
}

// Stats returns a snapshot of the tracker state.
func (b *BudgetTracker) Stats() BudgetStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := time.Since(b.startTime).Seconds()
	stats := BudgetStats{
		TotalSpent:   b.totalSpent,
		MaxBudget:    b.maxBudget,
		Remaining:    b.maxBudget - b.totalSpent,
		CallCount:    b.callCount,
		ElapsedHours: elapsed / 3600,
	}
	if b.maxBudget > 0 {
		stats.PercentUsed = b.totalSpent / b.maxBudget * 100
	}
	if b.callCount > 0 {
		stats.AvgCostPerCall = b.totalSpent / float64(b.callCount)
	}
	if elapsed > 0 {
		stats.CostPerHour = b.totalSpent / elapsed * 3600
	}
	return stats
}

// Reset zeroes the tracker and restarts the clock.
func (b *BudgetTracker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalSpent = 0
	b.callCount = 0
	b.startTime = time.Now()
	b.logger.Info("budget tracker reset")
}
