package waterfall

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/antiwork/flexile-sub003/internal/model"
)

// assemblePayouts converts position accumulators into the final payout list.
//
// Accumulators hold exact fractional cents. Rounding happens here, once, with
// a largest-remainder rule at two levels: position totals are rounded so they
// sum exactly to the floor of the exact distributed total, then each total is
// split back across its three sub-amounts the same way. Remainder ties break
// on investor ID then share class ID, so identical inputs always round
// identically.
func assemblePayouts(positions []*position) ([]model.Payout, decimal.Decimal) {
	var active []*position
	exactTotal := decimal.Zero
	for _, p := range positions {
		t := p.total()
		if t.IsPositive() {
			active = append(active, p)
			exactTotal = exactTotal.Add(t)
		}
	}
	if len(active) == 0 {
		return []model.Payout{}, decimal.Zero
	}

	target := exactTotal.Floor()

	// Floor each position total, then hand the leftover cents to the
	// largest fractional remainders.
	rounded := make([]decimal.Decimal, len(active))
	floorSum := decimal.Zero
	for i, p := range active {
		rounded[i] = p.total().Floor()
		floorSum = floorSum.Add(rounded[i])
	}
	leftover := int(target.Sub(floorSum).IntPart())

	if leftover > 0 {
		order := make([]int, len(active))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			ra := active[order[a]].total().Sub(rounded[order[a]])
			rb := active[order[b]].total().Sub(rounded[order[b]])
			if !ra.Equal(rb) {
				return ra.GreaterThan(rb)
			}
			pa, pb := active[order[a]], active[order[b]]
			if pa.investorID != pb.investorID {
				return pa.investorID < pb.investorID
			}
			return pa.classID < pb.classID
		})
		one := decimal.NewFromInt(1)
		for i := 0; i < leftover && i < len(order); i++ {
			rounded[order[i]] = rounded[order[i]].Add(one)
		}
	}

	payouts := make([]model.Payout, 0, len(active))
	for i, p := range active {
		pref, part, common := splitRounded(p, rounded[i])
		payouts = append(payouts, model.Payout{
			InvestorID:                 p.investorID,
			ShareClassID:               p.classID,
			ShareClassName:             p.class.Name,
			NumberOfShares:             p.shares,
			LiquidationPreferenceCents: pref,
			ParticipationCents:         part,
			CommonProceedsCents:        common,
			TotalCents:                 rounded[i],
		})
	}

	// Largest payout first; deterministic tie-break.
	sort.SliceStable(payouts, func(a, b int) bool {
		if !payouts[a].TotalCents.Equal(payouts[b].TotalCents) {
			return payouts[a].TotalCents.GreaterThan(payouts[b].TotalCents)
		}
		if payouts[a].InvestorID != payouts[b].InvestorID {
			return payouts[a].InvestorID < payouts[b].InvestorID
		}
		return payouts[a].ShareClassID < payouts[b].ShareClassID
	})

	return payouts, target
}

// splitRounded divides a rounded position total across the three sub-amount
// buckets, assigning the extra cents created by flooring to the buckets with
// the largest fractional remainders (preference, participation, common order
// on ties).
func splitRounded(p *position, total decimal.Decimal) (pref, part, common decimal.Decimal) {
	exact := [3]decimal.Decimal{p.preference, p.participation, p.common}
	var floors [3]decimal.Decimal
	floorSum := decimal.Zero
	for i, v := range exact {
		floors[i] = v.Floor()
		floorSum = floorSum.Add(floors[i])
	}

	extra := int(total.Sub(floorSum).IntPart())
	if extra > 0 {
		order := []int{0, 1, 2}
		sort.SliceStable(order, func(a, b int) bool {
			ra := exact[order[a]].Sub(floors[order[a]])
			rb := exact[order[b]].Sub(floors[order[b]])
			return ra.GreaterThan(rb)
		})
		one := decimal.NewFromInt(1)
		for i := 0; i < extra && i < 3; i++ {
			floors[order[i]] = floors[order[i]].Add(one)
		}
	}

	return floors[0], floors[1], floors[2]
}
