// Package model defines the core domain types shared across the waterfall
// engine. All monetary values use shopspring/decimal — never float64 for money.
//
// Monetary fields suffixed Cents hold integer cents; dollar-denominated
// per-share prices hold exact decimal dollars.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Investor types.
const (
	InvestorIndividual = "individual"
	InvestorEntity     = "entity"
)

// Scenario statuses.
const (
	ScenarioDraft = "draft"
	ScenarioSaved = "saved"
)

// SeniorityUnset is the effective rank for share classes with no explicit
// seniority. Unranked classes are paid last.
const SeniorityUnset = 1 << 30

// Investor is a cap-table participant. Immutable during a calculation pass;
// referenced by holdings and convertible securities by ID.
type Investor struct {
	ID             string `json:"id" db:"id"`
	Name           string `json:"name" db:"name"`
	Type           string `json:"type" db:"type"` // "individual" or "entity"
	Email          string `json:"email,omitempty" db:"email"`
	IsHypothetical bool   `json:"is_hypothetical,omitempty" db:"is_hypothetical"`
}

// ShareClass describes one class of stock and its liquidation terms.
type ShareClass struct {
	ID                 string          `json:"id" db:"id"`
	Name               string          `json:"name" db:"name"`
	Preferred          bool            `json:"preferred" db:"preferred"`
	OriginalIssuePrice decimal.Decimal `json:"original_issue_price" db:"original_issue_price"` // dollars per share

	// LiquidationPreferenceMultiple is 0 for common, typically 1.0–2.0
	// for preferred.
	LiquidationPreferenceMultiple decimal.Decimal `json:"liquidation_preference_multiple" db:"liquidation_preference_multiple"`

	Participating bool `json:"participating" db:"participating"`

	// ParticipationCapMultiple caps cumulative preference + participation
	// at cap × original issue price × shares. Zero means uncapped.
	ParticipationCapMultiple decimal.Decimal `json:"participation_cap_multiple" db:"participation_cap_multiple"`

	// SeniorityRank orders preference payment: lower = paid first.
	// Equal ranks are pari passu. Zero means unranked (paid last).
	SeniorityRank int `json:"seniority_rank" db:"seniority_rank"`

	IsHypothetical bool `json:"is_hypothetical,omitempty" db:"is_hypothetical"`
}

// EffectiveSeniority returns the rank used for tranche ordering, mapping
// unranked classes to SeniorityUnset.
func (c ShareClass) EffectiveSeniority() int {
	if c.SeniorityRank <= 0 {
		return SeniorityUnset
	}
	return c.SeniorityRank
}

// ShareHolding links one investor to one share class. Multiple holdings per
// (investor, class) pair are legal and are summed before distribution.
type ShareHolding struct {
	ID                 string          `json:"id" db:"id"`
	InvestorID         string          `json:"investor_id" db:"investor_id"`
	ShareClassID       string          `json:"share_class_id" db:"share_class_id"`
	Shares             decimal.Decimal `json:"shares" db:"shares"`
	IssuePricePerShare decimal.Decimal `json:"issue_price_per_share" db:"issue_price_per_share"` // dollars
	TotalCostCents     decimal.Decimal `json:"total_cost_cents" db:"total_cost_cents"`
	IssueDate          time.Time       `json:"issue_date" db:"issue_date"`
	IsHypothetical     bool            `json:"is_hypothetical,omitempty" db:"is_hypothetical"`
}

// ConvertibleSecurity is a convertible note or SAFE. The conversion share
// count is precomputed upstream (ImpliedShares); the engine decides only
// whether and into which class it converts, via a convert.Policy.
type ConvertibleSecurity struct {
	ID             string          `json:"id" db:"id"`
	InvestorID     string          `json:"investor_id" db:"investor_id"`
	PrincipalCents decimal.Decimal `json:"principal_cents" db:"principal_cents"`
	ValuationCap   decimal.Decimal `json:"valuation_cap,omitempty" db:"valuation_cap"` // cents, 0 = none
	DiscountRate   decimal.Decimal `json:"discount_rate,omitempty" db:"discount_rate"` // fraction, 0 = none
	InterestRate   decimal.Decimal `json:"interest_rate,omitempty" db:"interest_rate"` // annual fraction, 0 = none
	IssueDate      time.Time       `json:"issue_date" db:"issue_date"`
	MaturityDate   time.Time       `json:"maturity_date,omitempty" db:"maturity_date"`
	ImpliedShares  decimal.Decimal `json:"implied_shares" db:"implied_shares"`
	IsHypothetical bool            `json:"is_hypothetical,omitempty" db:"is_hypothetical"`
}

// EquityStructure is the full in-memory cap table a calculation reads.
type EquityStructure struct {
	Investors             []Investor            `json:"investors"`
	ShareClasses          []ShareClass          `json:"share_classes"`
	ShareHoldings         []ShareHolding        `json:"share_holdings"`
	ConvertibleSecurities []ConvertibleSecurity `json:"convertible_securities"`
}

// Clone returns a deep copy. All entity fields are value types, so copying
// the slices copies everything.
func (s EquityStructure) Clone() EquityStructure {
	out := EquityStructure{
		Investors:             make([]Investor, len(s.Investors)),
		ShareClasses:          make([]ShareClass, len(s.ShareClasses)),
		ShareHoldings:         make([]ShareHolding, len(s.ShareHoldings)),
		ConvertibleSecurities: make([]ConvertibleSecurity, len(s.ConvertibleSecurities)),
	}
	copy(out.Investors, s.Investors)
	copy(out.ShareClasses, s.ShareClasses)
	copy(out.ShareHoldings, s.ShareHoldings)
	copy(out.ConvertibleSecurities, s.ConvertibleSecurities)
	return out
}

// ShareClassByID looks up a share class by ID.
func (s EquityStructure) ShareClassByID(id string) (ShareClass, bool) {
	for _, c := range s.ShareClasses {
		if c.ID == id {
			return c, true
		}
	}
	return ShareClass{}, false
}

// CapTable is a persisted equity structure with identity.
type CapTable struct {
	ID        string          `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Structure EquityStructure `json:"structure" db:"structure"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Scenario is one hypothetical exit: an exit amount and date over a cap
// table. ExitAmountCents is integer cents carried as a decimal.
type Scenario struct {
	ID              string          `json:"id" db:"id"`
	CapTableID      string          `json:"cap_table_id" db:"cap_table_id"`
	Name            string          `json:"name" db:"name"`
	Description     string          `json:"description,omitempty" db:"description"`
	ExitAmountCents decimal.Decimal `json:"exit_amount_cents" db:"exit_amount_cents"`
	ExitDate        time.Time       `json:"exit_date" db:"exit_date"`
	Status          string          `json:"status" db:"status"` // "draft" or "saved"
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// Payout is the per-investor, per-share-class output of one calculation.
// All amounts are exact integer cents; the three sub-amounts sum to Total.
// Payouts are created fresh on every calculation and never mutated.
type Payout struct {
	InvestorID                 string          `json:"investor_id" db:"investor_id"`
	ShareClassID               string          `json:"share_class_id" db:"share_class_id"`
	ShareClassName             string          `json:"share_class_name" db:"share_class_name"`
	NumberOfShares             decimal.Decimal `json:"number_of_shares" db:"number_of_shares"`
	LiquidationPreferenceCents decimal.Decimal `json:"liquidation_preference_cents" db:"liquidation_preference_cents"`
	ParticipationCents         decimal.Decimal `json:"participation_cents" db:"participation_cents"`
	CommonProceedsCents        decimal.Decimal `json:"common_proceeds_cents" db:"common_proceeds_cents"`
	TotalCents                 decimal.Decimal `json:"total_cents" db:"total_cents"`
}
