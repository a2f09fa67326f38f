// Package validate runs structural sanity checks over an equity structure.
//
// Findings are advisory, human-readable warnings: calculation proceeds
// regardless. Hard input failures (no equity, bad exit amount) live in the
// waterfall package as typed errors.
package validate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/antiwork/flexile-sub003/internal/model"
)

// maxPlausiblePrice is the per-share dollar price above which a warning is
// raised. Legitimate cap tables rarely price a single share past this.
var maxPlausiblePrice = decimal.NewFromInt(100000)

// Check returns a list of structural warnings for the given structure.
// An empty list means nothing looked suspicious.
func Check(s model.EquityStructure) []string {
	var warnings []string

	classByID := make(map[string]model.ShareClass, len(s.ShareClasses))
	for _, c := range s.ShareClasses {
		classByID[c.ID] = c
	}
	investorByID := make(map[string]model.Investor, len(s.Investors))
	for _, inv := range s.Investors {
		investorByID[inv.ID] = inv
	}

	investorsWithEquity := make(map[string]bool)
	classesWithHoldings := make(map[string]bool)

	for _, h := range s.ShareHoldings {
		investorsWithEquity[h.InvestorID] = true
		classesWithHoldings[h.ShareClassID] = true

		if _, ok := investorByID[h.InvestorID]; !ok {
			warnings = append(warnings, fmt.Sprintf("share holding %s references unknown investor %s", h.ID, h.InvestorID))
		}
		if _, ok := classByID[h.ShareClassID]; !ok {
			warnings = append(warnings, fmt.Sprintf("share holding %s references unknown share class %s", h.ID, h.ShareClassID))
		}
		if !h.Shares.IsPositive() {
			warnings = append(warnings, fmt.Sprintf("share holding %s has non-positive share count %s", h.ID, h.Shares))
		}
		if h.IssuePricePerShare.IsNegative() || h.IssuePricePerShare.GreaterThan(maxPlausiblePrice) {
			warnings = append(warnings, fmt.Sprintf("share holding %s has unrealistic issue price $%s/share", h.ID, h.IssuePricePerShare))
		}
	}

	for _, sec := range s.ConvertibleSecurities {
		investorsWithEquity[sec.InvestorID] = true

		if _, ok := investorByID[sec.InvestorID]; !ok {
			warnings = append(warnings, fmt.Sprintf("convertible security %s references unknown investor %s", sec.ID, sec.InvestorID))
		}
		if !sec.ImpliedShares.IsPositive() {
			warnings = append(warnings, fmt.Sprintf("convertible security %s has no implied shares; it will convert to nothing", sec.ID))
		}
		if !sec.PrincipalCents.IsPositive() {
			warnings = append(warnings, fmt.Sprintf("convertible security %s has non-positive principal", sec.ID))
		}
	}

	for _, inv := range s.Investors {
		if !investorsWithEquity[inv.ID] {
			warnings = append(warnings, fmt.Sprintf("investor %s (%s) has no holdings or convertible securities", inv.ID, inv.Name))
		}
	}

	seniorityOwner := make(map[int]string)
	for _, c := range s.ShareClasses {
		if !classesWithHoldings[c.ID] {
			warnings = append(warnings, fmt.Sprintf("share class %s (%s) has no holdings", c.ID, c.Name))
		}
		if c.OriginalIssuePrice.IsNegative() || c.OriginalIssuePrice.GreaterThan(maxPlausiblePrice) {
			warnings = append(warnings, fmt.Sprintf("share class %s (%s) has unrealistic original issue price $%s/share", c.ID, c.Name, c.OriginalIssuePrice))
		}
		if c.Preferred && !c.OriginalIssuePrice.IsPositive() && c.LiquidationPreferenceMultiple.IsPositive() {
			warnings = append(warnings, fmt.Sprintf("share class %s (%s) has a liquidation preference but no original issue price", c.ID, c.Name))
		}

		// Seniority ranks among preference-bearing classes should be unique;
		// ties are treated pari passu but usually indicate a data entry slip.
		if c.LiquidationPreferenceMultiple.IsPositive() && c.SeniorityRank > 0 {
			if other, dup := seniorityOwner[c.SeniorityRank]; dup {
				warnings = append(warnings, fmt.Sprintf("share classes %s and %s share seniority rank %d; they will be paid pari passu", other, c.Name, c.SeniorityRank))
			} else {
				seniorityOwner[c.SeniorityRank] = c.Name
			}
		}
	}

	return warnings
}
