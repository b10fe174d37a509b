package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Manzp111/Procured-Payment/internal/apperrors"
	"github.com/Manzp111/Procured-Payment/internal/models"
	"github.com/Manzp111/Procured-Payment/internal/services/workflow"
)

type actionKey struct {
	requestID uuid.UUID
	level     int
	actorID   uuid.UUID
}

// MemoryStore is an in-process workflow.Store used by tests and local
// development. The per-request mutex gives the same serialization the
// postgres store gets from row locks; the taken map mirrors the unique
// index on (request, level, actor).
//
// Ledger writes apply immediately and are not rolled back if fn later
// fails; the engine performs all of its checks before its first write,
// so the difference is not observable through the engine.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*models.PurchaseRequest
	actions  map[uuid.UUID][]models.ApprovalAction
	taken    map[actionKey]struct{}
	locks    map[uuid.UUID]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[uuid.UUID]*models.PurchaseRequest),
		actions:  make(map[uuid.UUID][]models.ApprovalAction),
		taken:    make(map[actionKey]struct{}),
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *MemoryStore) CreateRequest(_ context.Context, pr *models.PurchaseRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[pr.ID]; exists {
		return apperrors.Conflictf("purchase request %s already exists", pr.ID)
	}
	cp := *pr
	s.requests[pr.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRequest(_ context.Context, id uuid.UUID) (*models.PurchaseRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr, ok := s.requests[id]
	if !ok {
		return nil, apperrors.NotFoundf("purchase request %s not found", id)
	}
	cp := *pr
	return &cp, nil
}

func (s *MemoryStore) ListRequests(_ context.Context, filter workflow.ListFilter) ([]models.PurchaseRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.PurchaseRequest
	for _, pr := range s.requests {
		if filter.CreatedBy != nil && pr.CreatedByID != *filter.CreatedBy {
			continue
		}
		if filter.CurrentLevel != nil && pr.CurrentLevel != *filter.CurrentLevel {
			continue
		}
		if filter.Status != nil && pr.Status != *filter.Status {
			continue
		}
		out = append(out, *pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) ListActions(_ context.Context, requestID uuid.UUID) ([]models.ApprovalAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := append([]models.ApprovalAction(nil), s.actions[requestID]...)
	sort.Slice(actions, func(i, j int) bool { return actions[i].CreatedAt.Before(actions[j].CreatedAt) })
	return actions, nil
}

func (s *MemoryStore) WithRequestLock(ctx context.Context, id uuid.UUID, fn func(l workflow.Ledger, pr *models.PurchaseRequest) error) error {
	s.mu.Lock()
	if _, ok := s.requests[id]; !ok {
		s.mu.Unlock()
		return apperrors.NotFoundf("purchase request %s not found", id)
	}
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	pr, ok := s.requests[id]
	if !ok {
		s.mu.Unlock()
		return apperrors.NotFoundf("purchase request %s not found", id)
	}
	cp := *pr
	s.mu.Unlock()

	return fn(&memLedger{store: s}, &cp)
}

type memLedger struct {
	store *MemoryStore
}

func (l *memLedger) HasAction(_ context.Context, requestID uuid.UUID, level int, actorID uuid.UUID) (bool, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	_, acted := l.store.taken[actionKey{requestID, level, actorID}]
	return acted, nil
}

func (l *memLedger) RecordAction(_ context.Context, action *models.ApprovalAction) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	key := actionKey{action.RequestID, action.Level, action.ActorID}
	if _, dup := l.store.taken[key]; dup {
		return apperrors.Conflictf("you have already acted on this request at this level")
	}
	l.store.taken[key] = struct{}{}
	l.store.actions[action.RequestID] = append(l.store.actions[action.RequestID], *action)
	return nil
}

func (l *memLedger) SaveRequest(_ context.Context, pr *models.PurchaseRequest) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	if _, ok := l.store.requests[pr.ID]; !ok {
		return fmt.Errorf("save of unknown purchase request %s", pr.ID)
	}
	cp := *pr
	l.store.requests[pr.ID] = &cp
	return nil
}
