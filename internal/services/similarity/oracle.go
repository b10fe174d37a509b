// Package similarity answers whether two item or vendor names denote
// the same real-world entity. The matching engine only sees the Oracle
// interface, so its core logic is testable without any remote backend.
package similarity

import "context"

// Oracle reports whether two names denote the same product or vendor.
// Implementations must not mutate their inputs. An error marks that
// single comparison as failed; callers degrade to NormalizedEqual.
type Oracle interface {
	Same(ctx context.Context, a, b string) (bool, error)
}

// Normalized is the deterministic fallback oracle: two names match iff
// their normalized forms are equal. It never fails.
type Normalized struct{}

func (Normalized) Same(_ context.Context, a, b string) (bool, error) {
	return NormalizedEqual(a, b), nil
}

// NormalizedEqual compares case-folded, accent-stripped,
// punctuation-stripped, whitespace-collapsed forms.
func NormalizedEqual(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

type fallbackOracle struct {
	primary Oracle
}

// WithFallback wraps an oracle so that it never returns an error: any
// failure of the primary degrades that single comparison to the
// normalized-text fallback.
func WithFallback(primary Oracle) Oracle {
	if primary == nil {
		return Normalized{}
	}
	return fallbackOracle{primary: primary}
}

func (f fallbackOracle) Same(ctx context.Context, a, b string) (bool, error) {
	same, err := f.primary.Same(ctx, a, b)
	if err != nil {
		return NormalizedEqual(a, b), nil
	}
	return same, nil
}
