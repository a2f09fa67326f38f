// Package waterfall implements the liquidation waterfall: distributing an
// exit amount across a cap table according to seniority-ranked liquidation
// preferences, participation rights, and participation caps.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Amounts are exact integer cents at the boundary; fractional cents exist
// only inside a single calculation and are resolved by deterministic
// largest-remainder rounding at output, so payouts always sum exactly.
//
// The calculator owns no long-lived state. Calculate is a pure function over
// its input bundle and is safe to run concurrently from multiple goroutines.
package waterfall

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/antiwork/flexile-sub003/internal/convert"
	"github.com/antiwork/flexile-sub003/internal/model"
)

var (
	// ErrNonPositiveExit is returned when the exit amount is zero or negative.
	ErrNonPositiveExit = errors.New("waterfall: exit amount must be positive")

	// ErrNonIntegerExit is returned when the exit amount has fractional cents.
	ErrNonIntegerExit = errors.New("waterfall: exit amount must be integer cents")

	// ErrNoEquity is returned when the structure has no share holdings and
	// no convertible securities, leaving nothing to distribute over.
	ErrNoEquity = errors.New("waterfall: equity structure has no holdings or convertibles")
)

// centsPerDollar converts dollar-denominated share prices to cents.
var centsPerDollar = decimal.NewFromInt(100)

// maxExtraRounds bounds the residual-distribution loop beyond the number of
// capped positions. A safety valve only; exact arithmetic converges before it.
const maxExtraRounds = 8

// Input is the immutable bundle one calculation reads.
type Input struct {
	ExitAmountCents decimal.Decimal // integer cents, > 0
	ExitDate        time.Time
	Structure       model.EquityStructure
}

// Result is the output bundle of one calculation.
type Result struct {
	// Payouts sorted by total descending; ties broken by investor ID then
	// share class ID so the order is stable across runs.
	Payouts []model.Payout `json:"payouts"`

	// TotalDistributedCents is Σ payout totals, exact integer cents.
	TotalDistributedCents decimal.Decimal `json:"total_distributed_cents"`

	// UndistributedCents is money left on the table when every eligible
	// position hit its cap before the pool emptied. Zero whenever at least
	// one uncapped common holder exists.
	UndistributedCents decimal.Decimal `json:"undistributed_cents"`

	CalculationTime time.Duration `json:"calculation_time"`
}

// Calculator computes liquidation waterfalls. Stateless; construct once and
// share freely, or construct per call.
type Calculator struct {
	policy convert.Policy
}

// New creates a Calculator using the given conversion policy.
// A nil policy defaults to convert.AlwaysCommon.
func New(policy convert.Policy) *Calculator {
	if policy == nil {
		policy = convert.AlwaysCommon{}
	}
	return &Calculator{policy: policy}
}

// position is one (investor, share class) equity stake plus its running
// payout accumulators. Redemption claims use a zero-value class.
type position struct {
	investorID string
	classID    string
	class      model.ShareClass
	shares     decimal.Decimal

	redemption      bool            // convertible redeemed instead of converting
	redemptionClaim decimal.Decimal // principal + accrued interest owed, exact cents

	preference    decimal.Decimal // exact cents, phase 0 + phase 1
	participation decimal.Decimal // exact cents, phase 2 (participating preferred)
	common        decimal.Decimal // exact cents, phase 2 (common)
}

func (p *position) total() decimal.Decimal {
	return p.preference.Add(p.participation).Add(p.common)
}

// preferenceClaim is the full liquidation preference owed to this position:
// original issue price × 100 × preference multiple × shares, in exact cents.
func (p *position) preferenceClaim() decimal.Decimal {
	return p.class.OriginalIssuePrice.
		Mul(centsPerDollar).
		Mul(p.class.LiquidationPreferenceMultiple).
		Mul(p.shares)
}

// capHeadroom returns how many more cents a capped participating position may
// receive, or a negative flag value when the position is uncapped.
// Cap = original issue price × 100 × cap multiple × shares, counted against
// cumulative preference + participation.
func (p *position) capHeadroom() (decimal.Decimal, bool) {
	if !p.class.ParticipationCapMultiple.IsPositive() {
		return decimal.Decimal{}, false
	}
	cap := p.class.OriginalIssuePrice.
		Mul(centsPerDollar).
		Mul(p.class.ParticipationCapMultiple).
		Mul(p.shares)
	return cap.Sub(p.preference).Sub(p.participation), true
}

// residualEligible reports whether this position shares in the phase-2
// residual: common stock always, participating preferred while under its cap.
func (p *position) residualEligible() bool {
	if p.redemption || !p.shares.IsPositive() {
		return false
	}
	if !p.class.Preferred {
		return true
	}
	if !p.class.Participating {
		return false
	}
	headroom, capped := p.capHeadroom()
	return !capped || headroom.IsPositive()
}

// Calculate runs the full waterfall over the input bundle.
//
// Preconditions fail fast with typed errors: the exit amount must be strictly
// positive integer cents, and the structure must contain at least one share
// holding or convertible security.
func (c *Calculator) Calculate(input Input) (*Result, error) {
	start := time.Now()

	if !input.ExitAmountCents.IsPositive() {
		return nil, ErrNonPositiveExit
	}
	if !input.ExitAmountCents.Equal(input.ExitAmountCents.Truncate(0)) {
		return nil, ErrNonIntegerExit
	}
	if len(input.Structure.ShareHoldings) == 0 && len(input.Structure.ConvertibleSecurities) == 0 {
		return nil, ErrNoEquity
	}

	positions, err := c.buildPositions(input)
	if err != nil {
		return nil, err
	}

	remaining := input.ExitAmountCents

	remaining = payRedemptions(positions, remaining)
	remaining = payPreferences(positions, remaining)
	remaining = distributeResidual(positions, remaining)

	payouts, distributed := assemblePayouts(positions)

	return &Result{
		Payouts:               payouts,
		TotalDistributedCents: distributed,
		UndistributedCents:    input.ExitAmountCents.Sub(distributed),
		CalculationTime:       time.Since(start),
	}, nil
}

// buildPositions merges share holdings (summed per investor and class) with
// convertible securities resolved through the conversion policy, preserving
// structure declaration order so residue assignment is deterministic.
func (c *Calculator) buildPositions(input Input) ([]*position, error) {
	var positions []*position
	index := make(map[string]*position)

	key := func(investorID, classID string) string { return investorID + "\x00" + classID }

	add := func(investorID string, class model.ShareClass, shares decimal.Decimal) {
		k := key(investorID, class.ID)
		p, ok := index[k]
		if !ok {
			p = &position{investorID: investorID, classID: class.ID, class: class}
			index[k] = p
			positions = append(positions, p)
		}
		p.shares = p.shares.Add(shares)
	}

	for _, h := range input.Structure.ShareHoldings {
		if !h.Shares.IsPositive() {
			continue
		}
		class, ok := input.Structure.ShareClassByID(h.ShareClassID)
		if !ok {
			// Orphan holding; the validation pass reports it.
			continue
		}
		add(h.InvestorID, class, h.Shares)
	}

	for _, sec := range input.Structure.ConvertibleSecurities {
		decision, err := c.policy.Decide(convert.Context{
			Security:        sec,
			ShareClasses:    input.Structure.ShareClasses,
			ExitAmountCents: input.ExitAmountCents,
			ExitDate:        input.ExitDate,
		})
		if err != nil {
			return nil, fmt.Errorf("convertible %s: %w", sec.ID, err)
		}

		switch decision.Outcome {
		case convert.OutcomeConvert:
			class, ok := input.Structure.ShareClassByID(decision.ShareClassID)
			if !ok {
				return nil, fmt.Errorf("convertible %s: policy chose unknown class %s", sec.ID, decision.ShareClassID)
			}
			if decision.Shares.IsPositive() {
				add(sec.InvestorID, class, decision.Shares)
			}
		case convert.OutcomeRedeem:
			if decision.RedemptionCents.IsPositive() {
				positions = append(positions, &position{
					investorID:      sec.InvestorID,
					class:           model.ShareClass{Name: "Convertible redemption"},
					redemption:      true,
					redemptionClaim: decision.RedemptionCents,
				})
			}
		default:
			return nil, fmt.Errorf("convertible %s: unknown policy outcome %q", sec.ID, decision.Outcome)
		}
	}

	return positions, nil
}
