package workflow

import (
	"context"

	"github.com/google/uuid"

	"github.com/Manzp111/Procured-Payment/internal/models"
)

// Ledger is the mutation surface available inside a request's critical
// section. Implementations back it with the same transaction that holds
// the row lock.
type Ledger interface {
	// HasAction reports whether the actor already acted on this request
	// at the given level.
	HasAction(ctx context.Context, requestID uuid.UUID, level int, actorID uuid.UUID) (bool, error)
	// RecordAction appends one audit row. A duplicate (request, level,
	// actor) triple returns an apperrors.ErrConflict wrapped error;
	// the unique index makes this hold even against a concurrent
	// insert that slipped past HasAction.
	RecordAction(ctx context.Context, action *models.ApprovalAction) error
	SaveRequest(ctx context.Context, pr *models.PurchaseRequest) error
}

// ListFilter narrows ListRequests. Nil fields are not applied.
type ListFilter struct {
	CreatedBy    *uuid.UUID
	CurrentLevel *int
	Status       *models.RequestStatus
	Limit        int
	Offset       int
}

// Store is the persistence port for purchase requests. The engine only
// needs WithRequestLock; the HTTP layer uses the rest.
type Store interface {
	CreateRequest(ctx context.Context, pr *models.PurchaseRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (*models.PurchaseRequest, error)
	ListRequests(ctx context.Context, filter ListFilter) ([]models.PurchaseRequest, error)
	ListActions(ctx context.Context, requestID uuid.UUID) ([]models.ApprovalAction, error)

	// WithRequestLock loads the request under an exclusive per-request
	// lock and runs fn; the lock is held for the whole check-then-write
	// sequence. Concurrent calls for the same request serialize,
	// different requests proceed independently. A missing request
	// returns apperrors.ErrNotFound without invoking fn.
	WithRequestLock(ctx context.Context, id uuid.UUID, fn func(l Ledger, pr *models.PurchaseRequest) error) error
}
