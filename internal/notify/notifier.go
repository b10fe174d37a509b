// Package notify is the fire-and-forget dispatch boundary. Actual mail
// delivery belongs to an external collaborator; the log notifier keeps
// the contract observable without one. Re-sent notifications are an
// accepted trade-off of at-least-once task execution.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Manzp111/Procured-Payment/internal/models"
	"github.com/Manzp111/Procured-Payment/internal/services/matching"
)

type Notifier interface {
	// DocumentReady announces a generated document to the request owner.
	DocumentReady(ctx context.Context, pr *models.PurchaseRequest, documentKey string) error
	// DiscrepancyFound sends the reconciliation report to the owner.
	DiscrepancyFound(ctx context.Context, pr *models.PurchaseRequest, report matching.Report) error
}

type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) DocumentReady(_ context.Context, pr *models.PurchaseRequest, documentKey string) error {
	n.log.Info().
		Str("request_id", pr.ID.String()).
		Str("owner_id", pr.CreatedByID.String()).
		Str("document", documentKey).
		Msg("document ready notification")
	return nil
}

func (n *LogNotifier) DiscrepancyFound(_ context.Context, pr *models.PurchaseRequest, report matching.Report) error {
	n.log.Warn().
		Str("request_id", pr.ID.String()).
		Str("owner_id", pr.CreatedByID.String()).
		Int("issues", len(report.Issues)).
		Bool("vendor_match", report.VendorMatch).
		Msg("discrepancy report notification")
	return nil
}
