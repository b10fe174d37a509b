// Package matching reconciles the line items of two documents
// describing the same transaction. Reconcile is a pure computation:
// it holds no locks and touches no storage, so the same inputs always
// produce the same report.
package matching

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Manzp111/Procured-Payment/internal/services/similarity"
)

var hundred = decimal.NewFromInt(100)

// Input carries both document sides plus the tolerance parameters.
// Reference is the purchase-order-derived data, Candidate the
// receipt- or invoice-derived data.
type Input struct {
	ReferenceItems  []Item
	ReferenceVendor string
	CandidateItems  []Item
	CandidateVendor string

	AmountTolerancePct   decimal.Decimal
	QuantityTolerancePct decimal.Decimal
}

// Reconcile pairs reference items to candidate items and checks every
// pair against the tolerance thresholds.
//
// Pairing is greedy first-match in reference-list order with no
// backtracking: the first candidate the oracle accepts is consumed.
// Ambiguous ties therefore resolve to the earliest candidate.
func Reconcile(ctx context.Context, in Input, oracle similarity.Oracle) Report {
	report := Report{
		Issues:          []Issue{},
		ReferenceVendor: in.ReferenceVendor,
		CandidateVendor: in.CandidateVendor,
	}

	// Vendor mismatch is recorded informationally and never forces a
	// discrepancy on its own.
	if in.ReferenceVendor != "" && in.CandidateVendor != "" {
		report.VendorMatch = sameName(ctx, oracle, in.ReferenceVendor, in.CandidateVendor)
	}

	consumed := make(map[int]bool, len(in.CandidateItems))

	for _, ref := range in.ReferenceItems {
		if ref.Name == "" {
			continue
		}

		pairedIdx := -1
		for idx, cand := range in.CandidateItems {
			if consumed[idx] || cand.Name == "" {
				continue
			}
			if sameName(ctx, oracle, ref.Name, cand.Name) {
				pairedIdx = idx
				consumed[idx] = true
				break
			}
		}

		if pairedIdx < 0 {
			report.Issues = append(report.Issues, missingItemIssue(ref))
			continue
		}

		cand := in.CandidateItems[pairedIdx]
		// Both checks may fire for the same pair.
		if issue, ok := priceIssue(ref, cand, in.AmountTolerancePct); ok {
			report.Issues = append(report.Issues, issue)
		}
		if issue, ok := quantityIssue(ref, cand, in.QuantityTolerancePct); ok {
			report.Issues = append(report.Issues, issue)
		}
	}

	for idx, cand := range in.CandidateItems {
		if !consumed[idx] && cand.Name != "" {
			report.Issues = append(report.Issues, extraItemIssue(cand))
		}
	}

	return report
}

// sameName degrades a failed oracle call to the deterministic
// normalized comparison for that single pair.
func sameName(ctx context.Context, oracle similarity.Oracle, a, b string) bool {
	if oracle == nil {
		return similarity.NormalizedEqual(a, b)
	}
	same, err := oracle.Same(ctx, a, b)
	if err != nil {
		return similarity.NormalizedEqual(a, b)
	}
	return same
}

// priceIssue flags a pair whose price deviation exceeds the tolerance.
// Only evaluated for a positive reference price; the comparison is
// strict, a deviation of exactly the tolerance passes.
func priceIssue(ref, cand Item, tolerancePct decimal.Decimal) (Issue, bool) {
	if !ref.Price.IsPositive() {
		return Issue{}, false
	}
	diffPct := ref.Price.Sub(cand.Price).Abs().Div(ref.Price).Mul(hundred)
	if !diffPct.GreaterThan(tolerancePct) {
		return Issue{}, false
	}
	return Issue{
		Type:          IssuePrice,
		Item:          ref.Name,
		Expected:      ref.Price.String(),
		Received:      cand.Price.String(),
		TolerancePct:  tolerancePct,
		DifferencePct: diffPct.Round(2),
	}, true
}

func quantityIssue(ref, cand Item, tolerancePct decimal.Decimal) (Issue, bool) {
	if ref.Quantity <= 0 {
		return Issue{}, false
	}
	refQty := decimal.NewFromInt(int64(ref.Quantity))
	candQty := decimal.NewFromInt(int64(cand.Quantity))
	diffPct := refQty.Sub(candQty).Abs().Div(refQty).Mul(hundred)
	if !diffPct.GreaterThan(tolerancePct) {
		return Issue{}, false
	}
	return Issue{
		Type:          IssueQuantity,
		Item:          ref.Name,
		Expected:      refQty.String(),
		Received:      candQty.String(),
		TolerancePct:  tolerancePct,
		DifferencePct: diffPct.Round(2),
	}, true
}
