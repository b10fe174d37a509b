package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Manzp111/Procured-Payment/internal/models"
	"github.com/Manzp111/Procured-Payment/internal/notify"
	"github.com/Manzp111/Procured-Payment/internal/services/extraction"
	"github.com/Manzp111/Procured-Payment/internal/services/matching"
	"github.com/Manzp111/Procured-Payment/internal/services/similarity"
	"github.com/Manzp111/Procured-Payment/internal/services/workflow"
	"github.com/Manzp111/Procured-Payment/internal/storage"
)

// Procurement bundles the background jobs the workflow schedules:
// proforma extraction, purchase-order generation and three-way
// matching of uploaded receipts and invoices. Every job is safe to run
// twice; regenerating a document overwrites the previous blob.
type Procurement struct {
	store     workflow.Store
	engine    *workflow.Engine
	extractor extraction.Extractor
	oracle    similarity.Oracle
	blobs     storage.Store
	notifier  notify.Notifier
	log       zerolog.Logger
}

func NewProcurement(
	store workflow.Store,
	engine *workflow.Engine,
	extractor extraction.Extractor,
	oracle similarity.Oracle,
	blobs storage.Store,
	notifier notify.Notifier,
	log zerolog.Logger,
) *Procurement {
	return &Procurement{
		store:     store,
		engine:    engine,
		extractor: extractor,
		oracle:    oracle,
		blobs:     blobs,
		notifier:  notifier,
		log:       log,
	}
}

// ProcessProforma extracts structured data from the uploaded proforma
// and persists it on the request. Extraction failure marks the request
// FAILED and is reported to the runner for retry.
func (p *Procurement) ProcessProforma(ctx context.Context, requestID uuid.UUID) error {
	pr, err := p.store.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if pr.ProformaPath == "" {
		p.log.Warn().Str("request_id", requestID.String()).Msg("no proforma uploaded, skipping extraction")
		return nil
	}

	document, err := p.readBlob(ctx, pr.ProformaPath)
	if err != nil {
		return err
	}

	result, err := p.extractor.Extract(ctx, document)
	if err != nil {
		if markErr := p.store.WithRequestLock(ctx, requestID, func(l workflow.Ledger, pr *models.PurchaseRequest) error {
			pr.ExtractionStatus = models.ExtractionFailed
			return l.SaveRequest(ctx, pr)
		}); markErr != nil {
			p.log.Error().Err(markErr).Str("request_id", requestID.String()).Msg("failed to mark extraction FAILED")
		}
		return fmt.Errorf("proforma extraction: %w", err)
	}

	items, err := json.Marshal(result.Items)
	if err != nil {
		return err
	}

	err = p.store.WithRequestLock(ctx, requestID, func(l workflow.Ledger, pr *models.PurchaseRequest) error {
		pr.VendorName = truncate(result.VendorName, 255)
		pr.VendorAddress = result.VendorAddress
		pr.Items = items
		pr.TotalAmountExtracted = decimal.NewNullDecimal(result.TotalAmount)
		pr.PaymentTerms = truncate(result.PaymentTerms, 255)
		pr.ExtractionStatus = models.ExtractionSuccess
		return l.SaveRequest(ctx, pr)
	})
	if err != nil {
		return err
	}

	p.log.Info().Str("request_id", requestID.String()).Int("items", len(result.Items)).
		Msg("proforma processed")
	return nil
}

// GeneratePurchaseOrder renders the purchase order document for a
// fully approved request, stores it and notifies the owner.
func (p *Procurement) GeneratePurchaseOrder(ctx context.Context, requestID uuid.UUID) error {
	pr, err := p.store.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if pr.Status != models.StatusApproved {
		p.log.Warn().Str("request_id", requestID.String()).Str("status", string(pr.Status)).
			Msg("skipping purchase order generation for non-approved request")
		return nil
	}

	doc, err := renderPurchaseOrder(pr)
	if err != nil {
		return fmt.Errorf("render purchase order: %w", err)
	}

	key := fmt.Sprintf("purchase_orders/PO_%s.html", pr.ID)
	if _, err := p.blobs.Save(ctx, key, bytes.NewReader(doc)); err != nil {
		return fmt.Errorf("store purchase order: %w", err)
	}

	err = p.store.WithRequestLock(ctx, requestID, func(l workflow.Ledger, pr *models.PurchaseRequest) error {
		pr.PurchaseOrderPath = key
		return l.SaveRequest(ctx, pr)
	})
	if err != nil {
		return err
	}

	if err := p.notifier.DocumentReady(ctx, pr, key); err != nil {
		p.log.Error().Err(err).Str("request_id", requestID.String()).Msg("purchase order notification failed")
	}

	p.log.Info().Str("request_id", requestID.String()).Str("document", key).Msg("purchase order generated")
	return nil
}

// ValidateReceipt reconciles the uploaded receipt against the
// proforma-derived purchase order data.
func (p *Procurement) ValidateReceipt(ctx context.Context, requestID uuid.UUID) error {
	return p.reconcileDocument(ctx, requestID, documentReceipt)
}

// ValidateInvoice reconciles the uploaded invoice the same way.
func (p *Procurement) ValidateInvoice(ctx context.Context, requestID uuid.UUID) error {
	return p.reconcileDocument(ctx, requestID, documentInvoice)
}

type documentKind string

const (
	documentReceipt documentKind = "receipt"
	documentInvoice documentKind = "invoice"
)

func (p *Procurement) reconcileDocument(ctx context.Context, requestID uuid.UUID, kind documentKind) error {
	pr, err := p.store.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}

	path := pr.ReceiptPath
	if kind == documentInvoice {
		path = pr.InvoicePath
	}
	if path == "" {
		p.log.Warn().Str("request_id", requestID.String()).Str("document", string(kind)).
			Msg("no document uploaded, skipping reconciliation")
		return nil
	}

	refItems, err := pr.ExtractedItems()
	if err != nil {
		return fmt.Errorf("decode reference items: %w", err)
	}

	document, err := p.readBlob(ctx, path)
	if err != nil {
		return err
	}

	candidate, err := p.extractor.Extract(ctx, document)
	if err != nil {
		if markErr := p.markReconciliationFailed(ctx, requestID, kind, err); markErr != nil {
			p.log.Error().Err(markErr).Str("request_id", requestID.String()).
				Msg("failed to record reconciliation failure")
		}
		return fmt.Errorf("%s extraction: %w", kind, err)
	}

	candidateData, err := json.Marshal(candidate)
	if err != nil {
		return err
	}
	err = p.store.WithRequestLock(ctx, requestID, func(l workflow.Ledger, pr *models.PurchaseRequest) error {
		if kind == documentReceipt {
			pr.ReceiptData = candidateData
			pr.ReceiptExtractionStatus = models.ExtractionSuccess
		} else {
			pr.InvoiceData = candidateData
			pr.InvoiceExtractionStatus = models.ExtractionSuccess
		}
		return l.SaveRequest(ctx, pr)
	})
	if err != nil {
		return err
	}

	report := matching.Reconcile(ctx, matching.Input{
		ReferenceItems:       refItems,
		ReferenceVendor:      pr.VendorName,
		CandidateItems:       candidate.Items,
		CandidateVendor:      candidate.VendorName,
		AmountTolerancePct:   pr.AmountTolerancePercent,
		QuantityTolerancePct: pr.QuantityTolerancePercent,
	}, p.oracle)

	status, err := p.engine.RecordReconciliation(ctx, requestID, report)
	if err != nil {
		return err
	}

	p.log.Info().Str("request_id", requestID.String()).Str("document", string(kind)).
		Str("status", string(status)).Int("issues", len(report.Issues)).
		Msg("three-way matching completed")

	if status == models.MatchDiscrepancy {
		if err := p.notifier.DiscrepancyFound(ctx, pr, report); err != nil {
			p.log.Error().Err(err).Str("request_id", requestID.String()).Msg("discrepancy notification failed")
		}
	}
	return nil
}

func (p *Procurement) markReconciliationFailed(ctx context.Context, requestID uuid.UUID, kind documentKind, cause error) error {
	if err := p.store.WithRequestLock(ctx, requestID, func(l workflow.Ledger, pr *models.PurchaseRequest) error {
		if kind == documentReceipt {
			pr.ReceiptExtractionStatus = models.ExtractionFailed
		} else {
			pr.InvoiceExtractionStatus = models.ExtractionFailed
		}
		return l.SaveRequest(ctx, pr)
	}); err != nil {
		return err
	}
	return p.engine.RecordReconciliationFailure(ctx, requestID, cause)
}

func (p *Procurement) readBlob(ctx context.Context, key string) ([]byte, error) {
	rc, err := p.blobs.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open document %s: %w", key, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
