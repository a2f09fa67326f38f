package waterfall

import (
	"sort"

	"github.com/shopspring/decimal"
)

// payProRata pays claims out of pool. A fully funded set of claims is paid in
// full; an underfunded set is paid the same proportional fraction of each
// claim, with the final claim absorbing the division residue so the pool is
// consumed exactly. Returns per-claim payments and the pool remainder.
func payProRata(claims []decimal.Decimal, pool decimal.Decimal) ([]decimal.Decimal, decimal.Decimal) {
	paid := make([]decimal.Decimal, len(claims))

	total := decimal.Zero
	last := -1
	for i, claim := range claims {
		total = total.Add(claim)
		if claim.IsPositive() {
			last = i
		}
	}

	if last < 0 || !pool.IsPositive() {
		return paid, pool
	}

	if total.LessThanOrEqual(pool) {
		copy(paid, claims)
		return paid, pool.Sub(total)
	}

	// Underfunded: pro-rata within the tranche. The last positive claim
	// takes pool minus everything already allotted, keeping the sum exact.
	allotted := decimal.Zero
	for i, claim := range claims {
		if !claim.IsPositive() || i == last {
			continue
		}
		paid[i] = pool.Mul(claim).Div(total)
		allotted = allotted.Add(paid[i])
	}
	residue := pool.Sub(allotted)
	if residue.IsNegative() {
		residue = decimal.Zero
	}
	paid[last] = residue

	return paid, decimal.Zero
}

// payRedemptions settles redeemed convertible notes ahead of all equity.
// Debt claims rank senior to liquidation preferences; an underfunded exit
// pays noteholders pro-rata.
func payRedemptions(positions []*position, remaining decimal.Decimal) decimal.Decimal {
	var notes []*position
	var claims []decimal.Decimal
	for _, p := range positions {
		if p.redemption {
			notes = append(notes, p)
			claims = append(claims, p.redemptionClaim)
		}
	}
	if len(notes) == 0 {
		return remaining
	}

	paid, remaining := payProRata(claims, remaining)
	for i, p := range notes {
		p.preference = p.preference.Add(paid[i])
	}
	return remaining
}

// payPreferences runs phase 1: liquidation preferences, most senior tranche
// first. Classes sharing a seniority rank are pari passu: they form one
// tranche and an underfunded tranche is paid pro-rata across all of its
// positions, never favoring one class in the tie.
func payPreferences(positions []*position, remaining decimal.Decimal) decimal.Decimal {
	tranches := make(map[int][]*position)
	for _, p := range positions {
		if p.redemption || !p.shares.IsPositive() {
			continue
		}
		if !p.class.LiquidationPreferenceMultiple.IsPositive() {
			continue
		}
		rank := p.class.EffectiveSeniority()
		tranches[rank] = append(tranches[rank], p)
	}

	ranks := make([]int, 0, len(tranches))
	for rank := range tranches {
		ranks = append(ranks, rank)
	}
	sort.Ints(ranks)

	for _, rank := range ranks {
		if !remaining.IsPositive() {
			break
		}
		tranche := tranches[rank]
		claims := make([]decimal.Decimal, len(tranche))
		for i, p := range tranche {
			claims[i] = p.preferenceClaim()
		}
		paid, rest := payProRata(claims, remaining)
		for i, p := range tranche {
			p.preference = p.preference.Add(paid[i])
		}
		remaining = rest
	}

	return remaining
}

// distributeResidual runs phase 2: the pool left after preferences is shared
// per-share across common stock and participating preferred under its cap.
//
// Iterative by necessity: clipping one tranche at its cap frees money that
// must be redistributed to every position still eligible, so the loop
// repeats until the pool empties or no eligible positions remain. Each round
// either consumes the pool exactly or caps at least one position, so the
// loop runs at most (#capped positions + maxExtraRounds) times.
func distributeResidual(positions []*position, remaining decimal.Decimal) decimal.Decimal {
	cappedCount := 0
	for _, p := range positions {
		if _, capped := p.capHeadroom(); capped {
			cappedCount++
		}
	}

	for round := 0; round < cappedCount+maxExtraRounds; round++ {
		if !remaining.IsPositive() {
			break
		}

		var eligible []*position
		totalShares := decimal.Zero
		for _, p := range positions {
			if p.residualEligible() {
				eligible = append(eligible, p)
				totalShares = totalShares.Add(p.shares)
			}
		}
		// Eligible set exhausted: the remainder stays undistributed and is
		// reported to the caller rather than silently dropped.
		if len(eligible) == 0 || !totalShares.IsPositive() {
			break
		}

		// Exact per-share allocation; the last position absorbs the
		// division residue so allocations sum to the pool.
		allocs := make([]decimal.Decimal, len(eligible))
		allotted := decimal.Zero
		for i, p := range eligible {
			if i == len(eligible)-1 {
				allocs[i] = remaining.Sub(allotted)
				if allocs[i].IsNegative() {
					allocs[i] = decimal.Zero
				}
				continue
			}
			allocs[i] = remaining.Mul(p.shares).Div(totalShares)
			allotted = allotted.Add(allocs[i])
		}

		distributed := decimal.Zero
		for i, p := range eligible {
			pay := allocs[i]
			if headroom, capped := p.capHeadroom(); capped && pay.GreaterThan(headroom) {
				pay = headroom // clipped excess returns to the pool
			}
			if !pay.IsPositive() {
				continue
			}
			if p.class.Preferred {
				p.participation = p.participation.Add(pay)
			} else {
				p.common = p.common.Add(pay)
			}
			distributed = distributed.Add(pay)
		}

		if !distributed.IsPositive() {
			break // safety valve: a round made no progress
		}
		remaining = remaining.Sub(distributed)
	}

	return remaining
}
