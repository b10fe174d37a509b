// Package extraction turns a raw uploaded document into structured
// line-item data. Raw text recovery (OCR, PDF text layers) is an
// external capability; this package owns only the structured-parsing
// boundary the core consumes.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Manzp111/Procured-Payment/internal/services/ai"
	"github.com/Manzp111/Procured-Payment/internal/services/matching"
)

// Result is the structured data recovered from one document.
type Result struct {
	VendorName    string          `json:"vendor_name"`
	VendorAddress string          `json:"vendor_address"`
	Items         []matching.Item `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentTerms  string          `json:"payment_terms"`
}

// Extractor is the boundary the workflow consumes. Failures are
// tolerated by callers: a failed extraction marks the document FAILED
// and never crashes the triggering transition.
type Extractor interface {
	Extract(ctx context.Context, document []byte) (Result, error)
}

const parsePrompt = `Extract structured data from this document. Return ONLY valid JSON:
{
    "vendor_name": "string",
    "vendor_address": "string",
    "items": [
        {"name": "string", "price": number, "quantity": integer}
    ],
    "total_amount": number,
    "payment_terms": "string"
}
Text: %s`

// maxPromptChars bounds how much document text is sent per call.
const maxPromptChars = 4000

// AIExtractor parses document text through the completion backend.
type AIExtractor struct {
	client  *ai.Client
	timeout time.Duration
}

func NewAIExtractor(client *ai.Client, timeout time.Duration) *AIExtractor {
	return &AIExtractor{client: client, timeout: timeout}
}

func (e *AIExtractor) Extract(ctx context.Context, document []byte) (Result, error) {
	text := strings.TrimSpace(string(document))
	if text == "" {
		return Result{}, fmt.Errorf("document contains no readable text")
	}
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.client.Complete(ctx, fmt.Sprintf(parsePrompt, text), 0)
	if err != nil {
		return Result{}, err
	}

	var result Result
	if err := json.Unmarshal([]byte(stripFences(raw)), &result); err != nil {
		return Result{}, fmt.Errorf("decode extraction result: %w", err)
	}
	return result, nil
}

// stripFences removes a markdown code fence the model sometimes wraps
// its JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
