package checkout

// Resolver decides which of the collected candidate discounts survive into
// the final result. It is the seam for richer policies (e.g. combining
// non-overlapping promotions additively) without touching the orchestrator.
type Resolver interface {
	Resolve(candidates []AppliedDiscount) []AppliedDiscount
}

// LargestDiscount is the current policy: exactly one winner, the candidate
// with the largest amount. Free-shipping grants ride along with the winner
// only if the winner itself carries one; a pure free-shipping candidate
// (zero amount) wins only when nothing yields a positive amount.
type LargestDiscount struct{}

// Resolve picks the single largest candidate.
func (LargestDiscount) Resolve(candidates []AppliedDiscount) []AppliedDiscount {
	if len(candidates) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Amount.GreaterThan(candidates[best].Amount) {
			best = i
		}
	}
	return candidates[best : best+1]
}
