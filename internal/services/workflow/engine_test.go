package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manzp111/Procured-Payment/internal/apperrors"
	"github.com/Manzp111/Procured-Payment/internal/models"
	"github.com/Manzp111/Procured-Payment/internal/repository"
	"github.com/Manzp111/Procured-Payment/internal/services/matching"
	"github.com/Manzp111/Procured-Payment/internal/services/workflow"
)

func newTestEngine(t *testing.T) (*workflow.Engine, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	return workflow.NewEngine(store, zerolog.Nop()), store
}

func newPendingRequest(t *testing.T, store *repository.MemoryStore) uuid.UUID {
	t.Helper()
	pr := &models.PurchaseRequest{
		ID:                       uuid.New(),
		Title:                    "Office laptops",
		Description:              "Replacement hardware",
		Amount:                   decimal.NewFromInt(3500),
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
	require.NoError(t, store.CreateRequest(context.Background(), pr))
	return pr.ID
}

func manager() workflow.Actor {
	return workflow.Actor{ID: uuid.New(), Role: models.RoleManager}
}

func generalManager() workflow.Actor {
	return workflow.Actor{ID: uuid.New(), Role: models.RoleGeneralManager}
}

func TestApproveLevelOneAdvances(t *testing.T) {
	engine, store := newTestEngine(t)
	id := newPendingRequest(t, store)

	res, err := engine.SubmitAction(context.Background(), id, manager(), workflow.DecisionApprove, "looks good")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, res.Status)
	assert.Equal(t, workflow.LevelGeneralManager, res.Level)

	actions, err := store.ListActions(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionApproved, actions[0].Action)
	assert.Equal(t, 1, actions[0].Level)
	assert.Equal(t, "looks good", actions[0].Comment)
}

func TestApproveLevelTwoIsTerminalAndFiresHook(t *testing.T) {
	engine, store := newTestEngine(t)
	id := newPendingRequest(t, store)

	var hooked []uuid.UUID
	engine.OnFinalApproval(func(requestID uuid.UUID) { hooked = append(hooked, requestID) })

	_, err := engine.SubmitAction(context.Background(), id, manager(), workflow.DecisionApprove, "")
	require.NoError(t, err)

	res, err := engine.SubmitAction(context.Background(), id, generalManager(), workflow.DecisionApprove, "final")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, res.Status)

	require.Len(t, hooked, 1)
	assert.Equal(t, id, hooked[0])

	// Terminal: no further transitions.
	_, err = engine.SubmitAction(context.Background(), id, generalManager(), workflow.DecisionApprove, "")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestRejectIsTerminal(t *testing.T) {
	engine, store := newTestEngine(t)
	id := newPendingRequest(t, store)

	res, err := engine.SubmitAction(context.Background(), id, manager(), workflow.DecisionReject, "over budget")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, res.Status)

	_, err = engine.SubmitAction(context.Background(), id, manager(), workflow.DecisionApprove, "")
	require.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, err.Error(), "already processed")
}

func TestRejectAllowedFromAnyApproverAtAnyLevel(t *testing.T) {
	engine, store := newTestEngine(t)
	id := newPendingRequest(t, store)

	_, err := engine.SubmitAction(context.Background(), id, manager(), workflow.DecisionApprove, "")
	require.NoError(t, err)

	// A different manager may still reject at level 2.
	res, err := engine.SubmitAction(context.Background(), id, manager(), workflow.DecisionReject, "vendor blacklisted")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, res.Status)
}

func TestApproveWrongRoleForbidden(t *testing.T) {
	engine, store := newTestEngine(t)
	id := newPendingRequest(t, store)

	// General manager cannot approve at level 1.
	_, err := engine.SubmitAction(context.Background(), id, generalManager(), workflow.DecisionApprove, "")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = engine.SubmitAction(context.Background(), id, manager(), workflow.DecisionApprove, "")
	require.NoError(t, err)

	// A fresh manager is the wrong role at level 2.
	_, err = engine.SubmitAction(context.Background(), id, manager(), workflow.DecisionApprove, "")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestNonApproverRolesForbidden(t *testing.T) {
	engine, store := newTestEngine(t)
	id := newPendingRequest(t, store)

	for _, role := range []models.Role{models.RoleStaff, models.RoleFinance, models.RoleAdmin} {
		actor := workflow.Actor{ID: uuid.New(), Role: role}
		_, err := engine.SubmitAction(context.Background(), id, actor, workflow.DecisionApprove, "")
		assert.ErrorIs(t, err, apperrors.ErrForbidden, "role %s", role)
	}
}

func TestDuplicateApproveByActorConflicts(t *testing.T) {
	engine, store := newTestEngine(t)
	id := newPendingRequest(t, store)
	actor := manager()

	_, err := engine.SubmitAction(context.Background(), id, actor, workflow.DecisionApprove, "")
	require.NoError(t, err)

	// The level has moved on, but the retried approval is still a
	// duplicate submission, not a role problem.
	_, err = engine.SubmitAction(context.Background(), id, actor, workflow.DecisionApprove, "")
	require.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, err.Error(), "already acted")
}

func TestUnknownRequestNotFound(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.SubmitAction(context.Background(), uuid.New(), manager(), workflow.DecisionApprove, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUnknownDecisionRejected(t *testing.T) {
	engine, store := newTestEngine(t)
	id := newPendingRequest(t, store)
	_, err := engine.SubmitAction(context.Background(), id, manager(), workflow.Decision("DEFER"), "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCurrentLevelIsMonotone(t *testing.T) {
	engine, store := newTestEngine(t)
	id := newPendingRequest(t, store)

	levels := []int{}
	record := func() {
		pr, err := store.GetRequest(context.Background(), id)
		require.NoError(t, err)
		levels = append(levels, pr.CurrentLevel)
	}

	record()
	_, _ = engine.SubmitAction(context.Background(), id, manager(), workflow.DecisionApprove, "")
	record()
	_, _ = engine.SubmitAction(context.Background(), id, generalManager(), workflow.DecisionReject, "")
	record()

	for i := 1; i < len(levels); i++ {
		assert.GreaterOrEqual(t, levels[i], levels[i-1])
	}
}

func TestConcurrentDuplicateSubmissions(t *testing.T) {
	engine, store := newTestEngine(t)
	id := newPendingRequest(t, store)
	actor := manager()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = engine.SubmitAction(context.Background(), id, actor, workflow.DecisionApprove, "")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.True(t, errors.Is(err, apperrors.ErrConflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, successes, "exactly one concurrent duplicate may win")

	actions, err := store.ListActions(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, actions, 1, "exactly one audit row per (request, level, actor)")
}

func TestConcurrentActionsOnDistinctRequestsProceed(t *testing.T) {
	engine, store := newTestEngine(t)

	const requests = 8
	ids := make([]uuid.UUID, requests)
	for i := range ids {
		ids[i] = newPendingRequest(t, store)
	}

	var wg sync.WaitGroup
	errs := make([]error, requests)
	for i, id := range ids {
		wg.Add(1)
		go func(n int, id uuid.UUID) {
			defer wg.Done()
			_, errs[n] = engine.SubmitAction(context.Background(), id, manager(), workflow.DecisionApprove, "")
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestRecordReconciliation(t *testing.T) {
	engine, store := newTestEngine(t)
	id := newPendingRequest(t, store)

	report := matching.Report{
		Issues:          []matching.Issue{},
		VendorMatch:     true,
		ReferenceVendor: "Acme",
		CandidateVendor: "Acme",
	}

	status, err := engine.RecordReconciliation(context.Background(), id, report)
	require.NoError(t, err)
	assert.Equal(t, models.MatchMatched, status)

	report.Issues = append(report.Issues, matching.Issue{Type: matching.IssueMissingItem, Item: "Mouse"})
	status, err = engine.RecordReconciliation(context.Background(), id, report)
	require.NoError(t, err)
	assert.Equal(t, models.MatchDiscrepancy, status)

	pr, err := store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.MatchDiscrepancy, pr.ThreeWayMatchStatus)

	var stored matching.Report
	require.NoError(t, json.Unmarshal(pr.DiscrepancyDetails, &stored))
	require.Len(t, stored.Issues, 1)
	assert.Equal(t, matching.IssueMissingItem, stored.Issues[0].Type)
}

func TestRecordReconciliationFailureKeepsDetail(t *testing.T) {
	engine, store := newTestEngine(t)
	id := newPendingRequest(t, store)

	require.NoError(t, engine.RecordReconciliationFailure(context.Background(), id, errors.New("extractor unavailable")))

	pr, err := store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.MatchDiscrepancy, pr.ThreeWayMatchStatus)

	var detail map[string]string
	require.NoError(t, json.Unmarshal(pr.DiscrepancyDetails, &detail))
	assert.Equal(t, "extractor unavailable", detail["error"])
}
