package similarity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Manzp111/Procured-Payment/internal/services/ai"
)

const samePrompt = `You are a smart procurement assistant. Determine if these two item names
refer to the same physical product or service. Ignore word order, extra words,
synonyms, or minor typos. Respond ONLY with "YES" or "NO".

Item 1: %q
Item 2: %q`

// AIOracle asks the completion backend for a semantic YES/NO comparison.
// Every call carries its own timeout; a timeout fails only that call.
type AIOracle struct {
	client  *ai.Client
	timeout time.Duration
}

func NewAIOracle(client *ai.Client, timeout time.Duration) *AIOracle {
	return &AIOracle{client: client, timeout: timeout}
}

func (o *AIOracle) Same(ctx context.Context, a, b string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	answer, err := o.client.Complete(ctx, fmt.Sprintf(samePrompt, a, b), 5)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(answer), "YES"), nil
}
