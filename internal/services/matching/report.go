package matching

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Item is one document line: a name, a unit price and a quantity.
// Prices and quantities are never negative in extracted data.
type Item struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type IssueType string

const (
	IssuePrice       IssueType = "price"
	IssueQuantity    IssueType = "quantity"
	IssueMissingItem IssueType = "missing_item"
	IssueExtraItem   IssueType = "extra_item"
)

// Issue is one mismatch found between the two documents. Expected and
// Received carry the compared values for price/quantity issues and a
// human-readable summary for missing/extra items.
type Issue struct {
	Type          IssueType       `json:"type"`
	Item          string          `json:"item"`
	Expected      string          `json:"expected,omitempty"`
	Received      string          `json:"received,omitempty"`
	TolerancePct  decimal.Decimal `json:"tolerance_pct"`
	DifferencePct decimal.Decimal `json:"difference_pct"`
	Message       string          `json:"message,omitempty"`
}

// Report is the structured output of a reconciliation run, stored on
// the request as its discrepancy detail payload.
type Report struct {
	Issues          []Issue `json:"issues"`
	VendorMatch     bool    `json:"vendor_match"`
	ReferenceVendor string  `json:"reference_vendor"`
	CandidateVendor string  `json:"candidate_vendor"`
}

// Matched reports the overall classification: matched iff no issues.
func (r Report) Matched() bool {
	return len(r.Issues) == 0
}

func missingItemIssue(ref Item) Issue {
	return Issue{
		Type:     IssueMissingItem,
		Item:     ref.Name,
		Expected: fmt.Sprintf("%d units @ %s", ref.Quantity, ref.Price.String()),
		Message:  "item not found in candidate document",
	}
}

func extraItemIssue(cand Item) Issue {
	return Issue{
		Type:     IssueExtraItem,
		Item:     cand.Name,
		Received: fmt.Sprintf("%d units @ %s", cand.Quantity, cand.Price.String()),
		Message:  "item not present in purchase order",
	}
}
