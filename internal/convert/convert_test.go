package convert

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/antiwork/flexile-sub003/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var classes = []model.ShareClass{
	{ID: "series-a", Name: "Series A", Preferred: true},
	{ID: "common", Name: "Common"},
	{ID: "common-b", Name: "Common B"},
}

// --- AlwaysCommon ---

func TestAlwaysCommon_ConvertsToFirstCommonClass(t *testing.T) {
	decision, err := AlwaysCommon{}.Decide(Context{
		Security:     model.ConvertibleSecurity{ID: "n1", ImpliedShares: d(50000)},
		ShareClasses: classes,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Outcome != OutcomeConvert {
		t.Errorf("expected convert, got %q", decision.Outcome)
	}
	if decision.ShareClassID != "common" {
		t.Errorf("expected first non-preferred class, got %s", decision.ShareClassID)
	}
	if !decision.Shares.Equal(d(50000)) {
		t.Errorf("expected implied shares 50000, got %s", decision.Shares)
	}
}

func TestAlwaysCommon_NoCommonClass(t *testing.T) {
	_, err := AlwaysCommon{}.Decide(Context{
		Security:     model.ConvertibleSecurity{ID: "n1"},
		ShareClasses: []model.ShareClass{{ID: "series-a", Preferred: true}},
	})
	if err != ErrNoCommonClass {
		t.Errorf("expected ErrNoCommonClass, got %v", err)
	}
}

// --- CapAware ---

func TestCapAware_ConvertsAboveCap(t *testing.T) {
	decision, err := CapAware{}.Decide(Context{
		Security: model.ConvertibleSecurity{
			ID:            "n1",
			ValuationCap:  decimal.NewFromInt(1000000000), // $10M
			ImpliedShares: d(100000),
		},
		ShareClasses:    classes,
		ExitAmountCents: decimal.NewFromInt(2000000000), // $20M
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Outcome != OutcomeConvert {
		t.Errorf("expected convert above cap, got %q", decision.Outcome)
	}
}

func TestCapAware_RedeemsBelowCap(t *testing.T) {
	decision, err := CapAware{}.Decide(Context{
		Security: model.ConvertibleSecurity{
			ID:             "n1",
			PrincipalCents: decimal.NewFromInt(10000000),
			ValuationCap:   decimal.NewFromInt(1000000000),
			ImpliedShares:  d(100000),
		},
		ShareClasses:    classes,
		ExitAmountCents: decimal.NewFromInt(50000000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Outcome != OutcomeRedeem {
		t.Errorf("expected redeem below cap, got %q", decision.Outcome)
	}
	if !decision.RedemptionCents.Equal(decimal.NewFromInt(10000000)) {
		t.Errorf("expected redemption at principal, got %s", decision.RedemptionCents)
	}
}

func TestCapAware_NoCapRedeems(t *testing.T) {
	decision, err := CapAware{}.Decide(Context{
		Security: model.ConvertibleSecurity{
			ID:             "n1",
			PrincipalCents: decimal.NewFromInt(10000000),
		},
		ShareClasses:    classes,
		ExitAmountCents: decimal.NewFromInt(50000000),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Outcome != OutcomeRedeem {
		t.Errorf("expected redeem without a cap, got %q", decision.Outcome)
	}
}

// --- RedemptionValue ---

func TestRedemptionValue_NoInterest(t *testing.T) {
	sec := model.ConvertibleSecurity{
		PrincipalCents: decimal.NewFromInt(10000000),
		IssueDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	v := RedemptionValue(sec, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if !v.Equal(decimal.NewFromInt(10000000)) {
		t.Errorf("expected principal only, got %s", v)
	}
}

func TestRedemptionValue_SimpleInterestOneYear(t *testing.T) {
	// $100k principal at 10% for exactly 365 days: $10k interest.
	sec := model.ConvertibleSecurity{
		PrincipalCents: decimal.NewFromInt(10000000),
		InterestRate:   d(0.10),
		IssueDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	v := RedemptionValue(sec, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	if !v.Equal(decimal.NewFromInt(11000000)) {
		t.Errorf("expected $110k, got %s", v)
	}
}

func TestRedemptionValue_AccrualStopsAtMaturity(t *testing.T) {
	sec := model.ConvertibleSecurity{
		PrincipalCents: decimal.NewFromInt(10000000),
		InterestRate:   d(0.10),
		IssueDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		MaturityDate:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	// Exit two years after maturity; interest still stops at maturity.
	v := RedemptionValue(sec, time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	if !v.Equal(decimal.NewFromInt(11000000)) {
		t.Errorf("expected accrual capped at maturity ($110k), got %s", v)
	}
}

func TestRedemptionValue_ExitBeforeIssue(t *testing.T) {
	sec := model.ConvertibleSecurity{
		PrincipalCents: decimal.NewFromInt(10000000),
		InterestRate:   d(0.10),
		IssueDate:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	v := RedemptionValue(sec, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if !v.Equal(decimal.NewFromInt(10000000)) {
		t.Errorf("expected principal only, got %s", v)
	}
}
