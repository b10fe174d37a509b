package handler

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Manzp111/Procured-Payment/internal/apperrors"
	"github.com/Manzp111/Procured-Payment/internal/models"
	"github.com/Manzp111/Procured-Payment/internal/services/workflow"
	"github.com/Manzp111/Procured-Payment/internal/storage"
	"github.com/Manzp111/Procured-Payment/internal/tasks"
)

const (
	maxUploadBytes  = 5 << 20
	defaultPageSize = 10
	maxPageSize     = 100
)

type PurchaseRequestHandler struct {
	store  workflow.Store
	engine *workflow.Engine
	jobs   *tasks.Procurement
	runner *tasks.Runner
	blobs  storage.Store
	log    zerolog.Logger
}

func NewPurchaseRequestHandler(
	store workflow.Store,
	engine *workflow.Engine,
	jobs *tasks.Procurement,
	runner *tasks.Runner,
	blobs storage.Store,
	log zerolog.Logger,
) *PurchaseRequestHandler {
	return &PurchaseRequestHandler{
		store:  store,
		engine: engine,
		jobs:   jobs,
		runner: runner,
		blobs:  blobs,
		log:    log,
	}
}

// Create accepts a multipart purchase request with its proforma and
// schedules the extraction job.
func (h *PurchaseRequestHandler) Create(c *gin.Context) {
	principal := currentPrincipal(c)

	title := strings.TrimSpace(c.PostForm("title"))
	description := strings.TrimSpace(c.PostForm("description"))
	if title == "" || description == "" {
		respond(c, http.StatusBadRequest, false, "title and description are required", nil)
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(c.PostForm("amount")))
	if err != nil || !amount.IsPositive() {
		respond(c, http.StatusBadRequest, false, "amount must be a positive number", nil)
		return
	}

	amountTolerance := decimal.NewFromInt(5)
	if raw := strings.TrimSpace(c.PostForm("amount_tolerance_percent")); raw != "" {
		if amountTolerance, err = decimal.NewFromString(raw); err != nil || amountTolerance.IsNegative() {
			respond(c, http.StatusBadRequest, false, "invalid amount tolerance", nil)
			return
		}
	}
	quantityTolerance := decimal.NewFromInt(10)
	if raw := strings.TrimSpace(c.PostForm("quantity_tolerance_percent")); raw != "" {
		if quantityTolerance, err = decimal.NewFromString(raw); err != nil || quantityTolerance.IsNegative() {
			respond(c, http.StatusBadRequest, false, "invalid quantity tolerance", nil)
			return
		}
	}

	file, header, err := c.Request.FormFile("proforma")
	if err != nil {
		respond(c, http.StatusBadRequest, false, "proforma file is required", nil)
		return
	}
	defer file.Close()
	if err := validateUpload(header); err != nil {
		respond(c, http.StatusBadRequest, false, err.Error(), nil)
		return
	}

	id := uuid.New()
	key, err := h.saveUpload(c, "proforma_files", id, header.Filename, file)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to store proforma")
		respond(c, http.StatusInternalServerError, false, "failed to store proforma", nil)
		return
	}

	now := time.Now()
	pr := &models.PurchaseRequest{
		ID:                       id,
		Title:                    title,
		Description:              description,
		Amount:                   amount,
		Currency:                 "USD",
		Status:                   models.StatusPending,
		CurrentLevel:             workflow.LevelManager,
		CreatedByID:              principal.ID,
		ProformaPath:             key,
		ExtractionStatus:         models.ExtractionPending,
		ThreeWayMatchStatus:      models.MatchPending,
		AmountTolerancePercent:   amountTolerance,
		QuantityTolerancePercent: quantityTolerance,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := h.store.CreateRequest(c.Request.Context(), pr); err != nil {
		respondError(c, err)
		return
	}

	h.runner.Submit("process_proforma", func(ctx context.Context) error {
		return h.jobs.ProcessProforma(ctx, id)
	})

	respond(c, http.StatusCreated, true, "Purchase request created. Proforma processing started.", pr)
}

// List returns requests visible to the caller's role.
func (h *PurchaseRequestHandler) List(c *gin.Context) {
	principal := currentPrincipal(c)

	filter := workflow.ListFilter{}
	switch principal.Role {
	case models.RoleStaff:
		owner := principal.ID
		filter.CreatedBy = &owner
	case models.RoleManager:
		level := workflow.LevelManager
		filter.CurrentLevel = &level
	case models.RoleGeneralManager:
		level := workflow.LevelGeneralManager
		filter.CurrentLevel = &level
	case models.RoleFinance:
		status := models.StatusApproved
		filter.Status = &status
	}

	if raw := c.Query("status"); raw != "" && !strings.EqualFold(raw, "all") {
		status := models.RequestStatus(strings.ToUpper(raw))
		filter.Status = &status
	}

	page := parsePositiveInt(c.Query("page"), 1)
	pageSize := parsePositiveInt(c.Query("page_size"), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	requests, err := h.store.ListRequests(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, true, "Requests retrieved successfully", gin.H{
		"items":     requests,
		"page":      page,
		"page_size": pageSize,
	})
}

// Get returns a request with its approval history.
func (h *PurchaseRequestHandler) Get(c *gin.Context) {
	pr, ok := h.loadVisible(c)
	if !ok {
		return
	}

	actions, err := h.store.ListActions(c.Request.Context(), pr.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, true, "Request retrieved successfully", gin.H{
		"request":   pr,
		"approvals": actions,
	})
}

type updateRequestInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

// Update lets the owner edit a still-pending request.
func (h *PurchaseRequestHandler) Update(c *gin.Context) {
	principal := currentPrincipal(c)
	id, ok := requestID(c)
	if !ok {
		return
	}

	var input updateRequestInput
	if err := c.BindJSON(&input); err != nil {
		respond(c, http.StatusBadRequest, false, "invalid payload", nil)
		return
	}

	var updated *models.PurchaseRequest
	err := h.store.WithRequestLock(c.Request.Context(), id, func(l workflow.Ledger, pr *models.PurchaseRequest) error {
		if pr.CreatedByID != principal.ID {
			return apperrors.Forbiddenf("you can only update your own requests")
		}
		if pr.Status != models.StatusPending {
			return apperrors.Conflictf("only pending requests can be updated")
		}

		if title := strings.TrimSpace(input.Title); title != "" {
			pr.Title = title
		}
		if description := strings.TrimSpace(input.Description); description != "" {
			pr.Description = description
		}
		if input.Amount != "" {
			amount, err := decimal.NewFromString(input.Amount)
			if err != nil || !amount.IsPositive() {
				return apperrors.Validationf("amount must be a positive number")
			}
			pr.Amount = amount
		}
		pr.UpdatedAt = time.Now()

		if err := l.SaveRequest(c.Request.Context(), pr); err != nil {
			return err
		}
		updated = pr
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, true, "Request updated successfully.", updated)
}

type actionInput struct {
	Comment string `json:"comment"`
}

// Approve applies an APPROVE decision at the request's current level.
func (h *PurchaseRequestHandler) Approve(c *gin.Context) {
	h.submitAction(c, workflow.DecisionApprove, "Request approved successfully.")
}

// Reject applies a REJECT decision; rejection is terminal.
func (h *PurchaseRequestHandler) Reject(c *gin.Context) {
	h.submitAction(c, workflow.DecisionReject, "Request rejected successfully.")
}

func (h *PurchaseRequestHandler) submitAction(c *gin.Context, decision workflow.Decision, message string) {
	principal := currentPrincipal(c)
	id, ok := requestID(c)
	if !ok {
		return
	}

	var input actionInput
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&input); err != nil {
			respond(c, http.StatusBadRequest, false, "invalid payload", nil)
			return
		}
	}

	result, err := h.engine.SubmitAction(
		c.Request.Context(),
		id,
		workflow.Actor{ID: principal.ID, Role: principal.Role},
		decision,
		input.Comment,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, true, message, gin.H{
		"status":        result.Status,
		"current_level": result.Level,
	})
}

// SubmitReceipt stores the owner's receipt for an approved request and
// schedules three-way matching.
func (h *PurchaseRequestHandler) SubmitReceipt(c *gin.Context) {
	principal := currentPrincipal(c)
	id, ok := requestID(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("receipt")
	if err != nil {
		respond(c, http.StatusBadRequest, false, "receipt file is required", nil)
		return
	}
	defer file.Close()
	if err := validateUpload(header); err != nil {
		respond(c, http.StatusBadRequest, false, err.Error(), nil)
		return
	}

	key, err := h.saveUpload(c, "receipts", id, header.Filename, file)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to store receipt")
		respond(c, http.StatusInternalServerError, false, "failed to store receipt", nil)
		return
	}

	err = h.store.WithRequestLock(c.Request.Context(), id, func(l workflow.Ledger, pr *models.PurchaseRequest) error {
		if pr.CreatedByID != principal.ID {
			return apperrors.Forbiddenf("you can only submit receipts for your own requests")
		}
		if pr.Status != models.StatusApproved {
			return apperrors.Conflictf("receipt can only be submitted for approved requests")
		}
		pr.ReceiptPath = key
		pr.ReceiptExtractionStatus = models.ExtractionPending
		return l.SaveRequest(c.Request.Context(), pr)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.runner.Submit("validate_receipt", func(ctx context.Context) error {
		return h.jobs.ValidateReceipt(ctx, id)
	})

	respond(c, http.StatusOK, true, "Receipt submitted successfully.", gin.H{"receipt": key})
}

// SubmitInvoice stores the invoice uploaded by finance and schedules
// three-way matching.
func (h *PurchaseRequestHandler) SubmitInvoice(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("invoice")
	if err != nil {
		respond(c, http.StatusBadRequest, false, "invoice file is required", nil)
		return
	}
	defer file.Close()
	if err := validateUpload(header); err != nil {
		respond(c, http.StatusBadRequest, false, err.Error(), nil)
		return
	}

	key, err := h.saveUpload(c, "invoices", id, header.Filename, file)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to store invoice")
		respond(c, http.StatusInternalServerError, false, "failed to store invoice", nil)
		return
	}

	err = h.store.WithRequestLock(c.Request.Context(), id, func(l workflow.Ledger, pr *models.PurchaseRequest) error {
		pr.InvoicePath = key
		pr.InvoiceExtractionStatus = models.ExtractionPending
		return l.SaveRequest(c.Request.Context(), pr)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.runner.Submit("validate_invoice", func(ctx context.Context) error {
		return h.jobs.ValidateInvoice(ctx, id)
	})

	respond(c, http.StatusOK, true, "Invoice uploaded successfully.", gin.H{"invoice": key})
}

func (h *PurchaseRequestHandler) loadVisible(c *gin.Context) (*models.PurchaseRequest, bool) {
	principal := currentPrincipal(c)
	id, ok := requestID(c)
	if !ok {
		return nil, false
	}

	pr, err := h.store.GetRequest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if principal.Role == models.RoleStaff && pr.CreatedByID != principal.ID {
		respond(c, http.StatusForbidden, false, "you can only view your own requests", nil)
		return nil, false
	}
	return pr, true
}

func (h *PurchaseRequestHandler) saveUpload(c *gin.Context, prefix string, id uuid.UUID, filename string, file multipart.File) (string, error) {
	key := fmt.Sprintf("%s/%s_%s", prefix, id, filepath.Base(filename))
	return h.blobs.Save(c.Request.Context(), key, file)
}

func requestID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond(c, http.StatusBadRequest, false, "invalid request ID", nil)
		return uuid.Nil, false
	}
	return id, true
}

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".txt":  true,
}

func validateUpload(header *multipart.FileHeader) error {
	if header.Size > maxUploadBytes {
		return fmt.Errorf("file exceeds the 5MB limit")
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("unsupported file type %s", ext)
	}
	return nil
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
