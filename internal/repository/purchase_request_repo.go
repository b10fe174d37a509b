package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Manzp111/Procured-Payment/internal/apperrors"
	"github.com/Manzp111/Procured-Payment/internal/models"
	"github.com/Manzp111/Procured-Payment/internal/services/workflow"
)

// PurchaseRequestRepository is the postgres-backed workflow.Store. The
// critical section is a gorm transaction holding SELECT ... FOR UPDATE
// on the request row.
type PurchaseRequestRepository struct {
	db *gorm.DB
}

func NewPurchaseRequestRepository(db *gorm.DB) *PurchaseRequestRepository {
	return &PurchaseRequestRepository{db: db}
}

// DB exposes the underlying handle for migrations.
func (r *PurchaseRequestRepository) DB() *gorm.DB {
	return r.db
}

func (r *PurchaseRequestRepository) CreateRequest(ctx context.Context, pr *models.PurchaseRequest) error {
	return r.db.WithContext(ctx).Create(pr).Error
}

func (r *PurchaseRequestRepository) GetRequest(ctx context.Context, id uuid.UUID) (*models.PurchaseRequest, error) {
	var pr models.PurchaseRequest
	err := r.db.WithContext(ctx).First(&pr, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFoundf("purchase request %s not found", id)
		}
		return nil, err
	}
	return &pr, nil
}

func (r *PurchaseRequestRepository) ListRequests(ctx context.Context, filter workflow.ListFilter) ([]models.PurchaseRequest, error) {
	query := r.db.WithContext(ctx).Model(&models.PurchaseRequest{}).Order("created_at DESC")

	if filter.CreatedBy != nil {
		query = query.Where("created_by_id = ?", *filter.CreatedBy)
	}
	if filter.CurrentLevel != nil {
		query = query.Where("current_level = ?", *filter.CurrentLevel)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var requests []models.PurchaseRequest
	err := query.Find(&requests).Error
	return requests, err
}

func (r *PurchaseRequestRepository) ListActions(ctx context.Context, requestID uuid.UUID) ([]models.ApprovalAction, error) {
	var actions []models.ApprovalAction
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&actions).Error
	return actions, err
}

func (r *PurchaseRequestRepository) WithRequestLock(ctx context.Context, id uuid.UUID, fn func(l workflow.Ledger, pr *models.PurchaseRequest) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pr models.PurchaseRequest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&pr, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFoundf("purchase request %s not found", id)
			}
			return err
		}
		return fn(&gormLedger{tx: tx}, &pr)
	})
}

// gormLedger scopes ledger writes to the locking transaction.
type gormLedger struct {
	tx *gorm.DB
}

func (l *gormLedger) HasAction(ctx context.Context, requestID uuid.UUID, level int, actorID uuid.UUID) (bool, error) {
	var count int64
	err := l.tx.WithContext(ctx).Model(&models.ApprovalAction{}).
		Where("request_id = ? AND level = ? AND actor_id = ?", requestID, level, actorID).
		Count(&count).Error
	return count > 0, err
}

func (l *gormLedger) RecordAction(ctx context.Context, action *models.ApprovalAction) error {
	err := l.tx.WithContext(ctx).Create(action).Error
	// Requires TranslateError on the gorm config so the unique index
	// violation surfaces as ErrDuplicatedKey.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Conflictf("you have already acted on this request at this level")
	}
	return err
}

func (l *gormLedger) SaveRequest(ctx context.Context, pr *models.PurchaseRequest) error {
	return l.tx.WithContext(ctx).Save(pr).Error
}
