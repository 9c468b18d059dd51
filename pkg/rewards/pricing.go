package rewards

import "fmt"

// Per-token prices in USD, from published per-MTok rates.
const (
	haikuInputCost   = 0.25 / 1_000_000
	haikuOutputCost  = 1.25 / 1_000_000
	sonnetInputCost  = 3.00 / 1_000_000
	sonnetOutputCost = 15.00 / 1_000_000
)

// EstimateTokens approximates the token count of text. Four characters per
// token is close enough for budgeting English prose and code.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// KnownPricingTier reports whether EstimateCost can price the tier. Callers
// that enforce a spend ceiling should reject unknown tiers up front instead
// of discovering them call by call.
func KnownPricingTier(tier string) bool {
	switch tier {
	case "haiku", "sonnet":
		return true
	default:
		return false
	}
}

// EstimateCost returns the estimated USD cost of a call on the given pricing
// tier ("haiku" or "sonnet").
func EstimateCost(tier string, inputTokens, outputTokens int) (float64, error) {
	switch tier {
	case "haiku":
		return float64(inputTokens)*haikuInputCost + float64(outputTokens)*haikuOutputCost, nil
	case "sonnet":
		return float64(inputTokens)*sonnetInputCost + float64(outputTokens)*sonnetOutputCost, nil
	default:
		return 0, fmt.Errorf("unknown pricing tier: %q", tier)
	}
}
