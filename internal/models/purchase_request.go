package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/Manzp111/Procured-Payment/internal/services/matching"
)

type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
)

type ExtractionStatus string

const (
	ExtractionPending ExtractionStatus = "PENDING"
	ExtractionSuccess ExtractionStatus = "SUCCESS"
	ExtractionFailed  ExtractionStatus = "FAILED"
)

type MatchStatus string

const (
	MatchPending     MatchStatus = "PENDING"
	MatchMatched     MatchStatus = "MATCHED"
	MatchDiscrepancy MatchStatus = "DISCREPANCY"
)

// PurchaseRequest is the aggregate root of the approval workflow. All
// status and level writes go through the workflow engine under a row
// lock; extraction and matching fields are written only by background
// jobs, never by approvers.
type PurchaseRequest struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string          `gorm:"size:255;not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2)" json:"amount"`
	Currency    string          `gorm:"size:10;default:USD" json:"currency"`

	Status       RequestStatus `gorm:"size:10;index;default:PENDING" json:"status"`
	CurrentLevel int           `gorm:"default:1;index" json:"current_level"`
	CreatedByID  uuid.UUID     `gorm:"type:uuid;index" json:"created_by"`

	// Stored document references, empty until uploaded/generated.
	ProformaPath      string `gorm:"size:512" json:"proforma,omitempty"`
	PurchaseOrderPath string `gorm:"size:512" json:"purchase_order,omitempty"`
	InvoicePath       string `gorm:"size:512" json:"invoice,omitempty"`
	ReceiptPath       string `gorm:"size:512" json:"receipt,omitempty"`

	// Structured data extracted from the proforma.
	VendorName           string              `gorm:"size:255" json:"vendor_name"`
	VendorAddress        string              `gorm:"type:text" json:"vendor_address"`
	Items                datatypes.JSON      `json:"items"`
	TotalAmountExtracted decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"total_amount_extracted"`
	PaymentTerms         string              `gorm:"size:255" json:"payment_terms"`
	ExtractionStatus     ExtractionStatus    `gorm:"size:10;default:PENDING" json:"extraction_status"`

	// Structured data extracted from the uploaded invoice and receipt.
	InvoiceData             datatypes.JSON   `json:"invoice_data,omitempty"`
	InvoiceExtractionStatus ExtractionStatus `gorm:"size:10;default:PENDING" json:"invoice_extraction_status"`
	ReceiptData             datatypes.JSON   `json:"receipt_data,omitempty"`
	ReceiptExtractionStatus ExtractionStatus `gorm:"size:10;default:PENDING" json:"receipt_extraction_status"`

	ThreeWayMatchStatus MatchStatus    `gorm:"size:12;default:PENDING" json:"three_way_match_status"`
	DiscrepancyDetails  datatypes.JSON `json:"discrepancy_details,omitempty"`

	AmountTolerancePercent   decimal.Decimal `gorm:"type:numeric(5,2);default:5" json:"amount_tolerance_percent"`
	QuantityTolerancePercent decimal.Decimal `gorm:"type:numeric(5,2);default:10" json:"quantity_tolerance_percent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExtractedItems decodes the proforma line items. A request with no
// successful extraction yields an empty slice.
func (pr *PurchaseRequest) ExtractedItems() ([]matching.Item, error) {
	if len(pr.Items) == 0 {
		return nil, nil
	}
	var items []matching.Item
	if err := json.Unmarshal(pr.Items, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (pr *PurchaseRequest) Terminal() bool {
	return pr.Status != StatusPending
}
