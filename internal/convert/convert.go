// Package convert decides what happens to convertible securities at exit:
// conversion into a share class, or redemption of the note.
//
// The decision is a pluggable Policy so the historical "always convert to
// the first common class" behavior is one explicit, swappable variant.
package convert

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/antiwork/flexile-sub003/internal/model"
)

var (
	// ErrNoCommonClass is returned when a security should convert but the
	// structure has no non-preferred share class to convert into.
	ErrNoCommonClass = errors.New("convert: no common share class to convert into")
)

// Outcome of a conversion decision.
const (
	OutcomeConvert = "convert"
	OutcomeRedeem  = "redeem"
)

// Context carries everything a policy may consult for one security.
type Context struct {
	Security        model.ConvertibleSecurity
	ShareClasses    []model.ShareClass
	ExitAmountCents decimal.Decimal
	ExitDate        time.Time
}

// Decision is the result of applying a policy to one security.
type Decision struct {
	Outcome string // OutcomeConvert or OutcomeRedeem

	// Conversion target and share count. Set when Outcome is convert.
	ShareClassID string
	Shares       decimal.Decimal

	// RedemptionCents is principal plus accrued simple interest, in exact
	// cents. Set when Outcome is redeem.
	RedemptionCents decimal.Decimal
}

// Policy decides, per security, whether it converts and into what.
type Policy interface {
	Decide(ctx Context) (Decision, error)
}

// AlwaysCommon converts every security into the first non-preferred share
// class, using the security's precomputed implied share count. This is the
// default policy; the richer note fields (valuation cap, discount, maturity)
// are not consulted.
type AlwaysCommon struct{}

func (AlwaysCommon) Decide(ctx Context) (Decision, error) {
	target, ok := firstCommonClass(ctx.ShareClasses)
	if !ok {
		return Decision{}, ErrNoCommonClass
	}
	return Decision{
		Outcome:      OutcomeConvert,
		ShareClassID: target.ID,
		Shares:       ctx.Security.ImpliedShares,
	}, nil
}

// CapAware converts only when the exit amount clears the security's
// valuation cap; below the cap (or with no cap set and no upside) the note
// redeems at principal plus accrued simple interest. Opt-in; AlwaysCommon
// remains the default.
type CapAware struct{}

func (CapAware) Decide(ctx Context) (Decision, error) {
	sec := ctx.Security

	if sec.ValuationCap.IsPositive() && ctx.ExitAmountCents.GreaterThanOrEqual(sec.ValuationCap) {
		target, ok := firstCommonClass(ctx.ShareClasses)
		if !ok {
			return Decision{}, ErrNoCommonClass
		}
		return Decision{
			Outcome:      OutcomeConvert,
			ShareClassID: target.ID,
			Shares:       sec.ImpliedShares,
		}, nil
	}

	return Decision{
		Outcome:         OutcomeRedeem,
		RedemptionCents: RedemptionValue(sec, ctx.ExitDate),
	}, nil
}

// RedemptionValue returns principal plus accrued simple interest from issue
// to exit, in exact cents. Securities without an interest rate redeem at
// principal.
func RedemptionValue(sec model.ConvertibleSecurity, exitDate time.Time) decimal.Decimal {
	if !sec.InterestRate.IsPositive() || sec.IssueDate.IsZero() || !exitDate.After(sec.IssueDate) {
		return sec.PrincipalCents
	}

	accrualEnd := exitDate
	if !sec.MaturityDate.IsZero() && sec.MaturityDate.Before(exitDate) {
		accrualEnd = sec.MaturityDate
	}

	days := decimal.NewFromInt(int64(accrualEnd.Sub(sec.IssueDate).Hours() / 24))
	year := decimal.NewFromInt(365)
	interest := sec.PrincipalCents.Mul(sec.InterestRate).Mul(days).Div(year)
	return sec.PrincipalCents.Add(interest)
}

// firstCommonClass returns the first share class not marked preferred, in
// declaration order.
func firstCommonClass(classes []model.ShareClass) (model.ShareClass, bool) {
	for _, c := range classes {
		if !c.Preferred {
			return c, true
		}
	}
	return model.ShareClass{}, false
}
