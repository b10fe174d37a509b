package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manzp111/Procured-Payment/internal/models"
	"github.com/Manzp111/Procured-Payment/internal/repository"
	"github.com/Manzp111/Procured-Payment/internal/services/extraction"
	"github.com/Manzp111/Procured-Payment/internal/services/matching"
	"github.com/Manzp111/Procured-Payment/internal/services/similarity"
	"github.com/Manzp111/Procured-Payment/internal/services/workflow"
	"github.com/Manzp111/Procured-Payment/internal/storage"
	"github.com/Manzp111/Procured-Payment/internal/tasks"
)

type fakeExtractor struct {
	result extraction.Result
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(context.Context, []byte) (extraction.Result, error) {
	f.calls++
	return f.result, f.err
}

type recordingNotifier struct {
	documents     []string
	discrepancies []matching.Report
}

func (n *recordingNotifier) DocumentReady(_ context.Context, _ *models.PurchaseRequest, key string) error {
	n.documents = append(n.documents, key)
	return nil
}

func (n *recordingNotifier) DiscrepancyFound(_ context.Context, _ *models.PurchaseRequest, report matching.Report) error {
	n.discrepancies = append(n.discrepancies, report)
	return nil
}

type fixture struct {
	store    *repository.MemoryStore
	engine   *workflow.Engine
	ext      *fakeExtractor
	blobs    storage.Store
	notifier *recordingNotifier
	jobs     *tasks.Procurement
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	engine := workflow.NewEngine(store, zerolog.Nop())
	blobs, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	ext := &fakeExtractor{}
	notifier := &recordingNotifier{}
	jobs := tasks.NewProcurement(store, engine, ext, similarity.Normalized{}, blobs, notifier, zerolog.Nop())
	return &fixture{store: store, engine: engine, ext: ext, blobs: blobs, notifier: notifier, jobs: jobs}
}

func (f *fixture) createRequest(t *testing.T, mutate func(pr *models.PurchaseRequest)) uuid.UUID {
	t.Helper()
	pr := &models.PurchaseRequest{
		ID:                       uuid.New(),
		Title:                    "Workstation refresh",
		Amount:                   decimal.NewFromInt(2000),
		Currency:                 "USD",
		Status:                   models.StatusPending,
		CurrentLevel:             workflow.LevelManager,
		CreatedByID:              uuid.New(),
		ExtractionStatus:         models.ExtractionPending,
		ThreeWayMatchStatus:      models.MatchPending,
		AmountTolerancePercent:   decimal.NewFromInt(5),
		QuantityTolerancePercent: decimal.NewFromInt(10),
		CreatedAt:                time.Now(),
	}
	if mutate != nil {
		mutate(pr)
	}
	require.NoError(t, f.store.CreateRequest(context.Background(), pr))
	return pr.ID
}

func (f *fixture) putBlob(t *testing.T, key, body string) {
	t.Helper()
	_, err := f.blobs.Save(context.Background(), key, strings.NewReader(body))
	require.NoError(t, err)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestProcessProformaPersistsExtraction(t *testing.T) {
	f := newFixture(t)
	f.putBlob(t, "proformas/doc.pdf", "raw proforma bytes")
	id := f.createRequest(t, func(pr *models.PurchaseRequest) {
		pr.ProformaPath = "proformas/doc.pdf"
	})

	f.ext.result = extraction.Result{
		VendorName:    "Tech Supplies Inc",
		VendorAddress: "12 Industrial Rd",
		Items: []matching.Item{
			{Name: "Laptop", Price: decimal.NewFromInt(1000), Quantity: 2},
		},
		TotalAmount:  decimal.NewFromInt(2000),
		PaymentTerms: "Net 30",
	}

	require.NoError(t, f.jobs.ProcessProforma(context.Background(), id))

	pr, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ExtractionSuccess, pr.ExtractionStatus)
	assert.Equal(t, "Tech Supplies Inc", pr.VendorName)
	assert.Equal(t, "Net 30", pr.PaymentTerms)
	require.True(t, pr.TotalAmountExtracted.Valid)
	assert.True(t, pr.TotalAmountExtracted.Decimal.Equal(decimal.NewFromInt(2000)))

	items, err := pr.ExtractedItems()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Laptop", items[0].Name)
}

func TestProcessProformaMarksFailureAndReturnsError(t *testing.T) {
	f := newFixture(t)
	f.putBlob(t, "proformas/doc.pdf", "unreadable")
	id := f.createRequest(t, func(pr *models.PurchaseRequest) {
		pr.ProformaPath = "proformas/doc.pdf"
	})
	f.ext.err = errors.New("model unavailable")

	err := f.jobs.ProcessProforma(context.Background(), id)
	require.Error(t, err)

	pr, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ExtractionFailed, pr.ExtractionStatus)
}

func TestProcessProformaSkipsWhenNoDocument(t *testing.T) {
	f := newFixture(t)
	id := f.createRequest(t, nil)

	require.NoError(t, f.jobs.ProcessProforma(context.Background(), id))
	assert.Zero(t, f.ext.calls)
}

func TestGeneratePurchaseOrder(t *testing.T) {
	f := newFixture(t)
	id := f.createRequest(t, func(pr *models.PurchaseRequest) {
		pr.Status = models.StatusApproved
		pr.VendorName = "Tech Supplies Inc"
		pr.Items = mustJSON(t, []matching.Item{
			{Name: "Laptop", Price: decimal.NewFromInt(1000), Quantity: 2},
			{Name: "Dock", Price: decimal.NewFromInt(150), Quantity: 2},
		})
	})

	require.NoError(t, f.jobs.GeneratePurchaseOrder(context.Background(), id))

	pr, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	require.NotEmpty(t, pr.PurchaseOrderPath)

	rc, err := f.blobs.Open(context.Background(), pr.PurchaseOrderPath)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Tech Supplies Inc")
	assert.Contains(t, string(body), "Laptop")

	require.Len(t, f.notifier.documents, 1)
	assert.Equal(t, pr.PurchaseOrderPath, f.notifier.documents[0])
}

func TestGeneratePurchaseOrderSkipsNonApproved(t *testing.T) {
	f := newFixture(t)
	id := f.createRequest(t, nil)

	require.NoError(t, f.jobs.GeneratePurchaseOrder(context.Background(), id))

	pr, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, pr.PurchaseOrderPath)
	assert.Empty(t, f.notifier.documents)
}

func TestValidateReceiptMatched(t *testing.T) {
	f := newFixture(t)
	f.putBlob(t, "receipts/doc.pdf", "receipt bytes")
	id := f.createRequest(t, func(pr *models.PurchaseRequest) {
		pr.Status = models.StatusApproved
		pr.VendorName = "Tech Supplies Inc"
		pr.ReceiptPath = "receipts/doc.pdf"
		pr.Items = mustJSON(t, []matching.Item{
			{Name: "Laptop", Price: decimal.NewFromInt(1000), Quantity: 2},
		})
	})

	f.ext.result = extraction.Result{
		VendorName: "Tech Supplies Inc",
		Items: []matching.Item{
			{Name: "Laptop", Price: decimal.NewFromInt(1020), Quantity: 2},
		},
	}

	require.NoError(t, f.jobs.ValidateReceipt(context.Background(), id))

	pr, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.MatchMatched, pr.ThreeWayMatchStatus)
	assert.Equal(t, models.ExtractionSuccess, pr.ReceiptExtractionStatus)
	assert.NotEmpty(t, pr.ReceiptData)
	assert.Empty(t, f.notifier.discrepancies)
}

func TestValidateInvoiceDiscrepancyNotifies(t *testing.T) {
	f := newFixture(t)
	f.putBlob(t, "invoices/doc.pdf", "invoice bytes")
	id := f.createRequest(t, func(pr *models.PurchaseRequest) {
		pr.Status = models.StatusApproved
		pr.VendorName = "Tech Supplies Inc"
		pr.InvoicePath = "invoices/doc.pdf"
		pr.Items = mustJSON(t, []matching.Item{
			{Name: "Laptop", Price: decimal.NewFromInt(1000), Quantity: 2},
		})
	})

	// 20% over the proforma price.
	f.ext.result = extraction.Result{
		VendorName: "Tech Supplies Inc",
		Items: []matching.Item{
			{Name: "Laptop", Price: decimal.NewFromInt(1200), Quantity: 2},
		},
	}

	require.NoError(t, f.jobs.ValidateInvoice(context.Background(), id))

	pr, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.MatchDiscrepancy, pr.ThreeWayMatchStatus)
	assert.Equal(t, models.ExtractionSuccess, pr.InvoiceExtractionStatus)

	require.Len(t, f.notifier.discrepancies, 1)
	require.Len(t, f.notifier.discrepancies[0].Issues, 1)
	assert.Equal(t, matching.IssuePrice, f.notifier.discrepancies[0].Issues[0].Type)
}

func TestValidateReceiptExtractionFailure(t *testing.T) {
	f := newFixture(t)
	f.putBlob(t, "receipts/doc.pdf", "garbage")
	id := f.createRequest(t, func(pr *models.PurchaseRequest) {
		pr.Status = models.StatusApproved
		pr.ReceiptPath = "receipts/doc.pdf"
		pr.Items = mustJSON(t, []matching.Item{})
	})
	f.ext.err = errors.New("model unavailable")

	err := f.jobs.ValidateReceipt(context.Background(), id)
	require.Error(t, err)

	pr, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ExtractionFailed, pr.ReceiptExtractionStatus)
	assert.Equal(t, models.MatchDiscrepancy, pr.ThreeWayMatchStatus)
}

func TestValidateReceiptSkipsWhenNoDocument(t *testing.T) {
	f := newFixture(t)
	id := f.createRequest(t, func(pr *models.PurchaseRequest) {
		pr.Status = models.StatusApproved
	})

	require.NoError(t, f.jobs.ValidateReceipt(context.Background(), id))
	assert.Zero(t, f.ext.calls)
}
