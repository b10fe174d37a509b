// Package workflow owns the purchase request lifecycle: level
// progression, terminal transitions and the per-level action ledger.
// Every state write happens inside the store's per-request critical
// section, so concurrent approver actions on the same request
// serialize and the loser is rejected by a guard instead of racing.
package workflow

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Manzp111/Procured-Payment/internal/apperrors"
	"github.com/Manzp111/Procured-Payment/internal/models"
	"github.com/Manzp111/Procured-Payment/internal/services/matching"
)

type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Actor is the authenticated principal submitting a decision. The role
// comes from the identity provider and is treated as opaque input.
type Actor struct {
	ID   uuid.UUID
	Role models.Role
}

// Result is the post-transition state returned to the caller.
type Result struct {
	Status models.RequestStatus
	Level  int
}

type Engine struct {
	store Store
	log   zerolog.Logger

	// onFinalApproval runs after the approving transaction commits.
	// It is fire-and-forget: its failure must never roll back the
	// approval.
	onFinalApproval func(requestID uuid.UUID)
}

func NewEngine(store Store, log zerolog.Logger) *Engine {
	return &Engine{store: store, log: log}
}

// OnFinalApproval registers the downstream document-generation hook
// invoked when a request reaches APPROVED.
func (e *Engine) OnFinalApproval(fn func(requestID uuid.UUID)) {
	e.onFinalApproval = fn
}

// SubmitAction validates and applies one approver decision. The checks
// run in order under the request's exclusive lock: pending state, no
// prior action by this actor, role for the current level. Constraint
// violations surface synchronously and are never retried.
func (e *Engine) SubmitAction(ctx context.Context, requestID uuid.UUID, actor Actor, decision Decision, comment string) (Result, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return Result{}, apperrors.Validationf("unknown decision %q", decision)
	}
	if !IsApproverRole(actor.Role) {
		return Result{}, apperrors.Forbiddenf("only approvers can act on purchase requests")
	}

	var (
		res           Result
		finalApproval bool
	)

	err := e.store.WithRequestLock(ctx, requestID, func(l Ledger, pr *models.PurchaseRequest) error {
		if pr.Terminal() {
			return apperrors.Conflictf("request is already processed")
		}

		// Duplicate guard. A retried APPROVE must come back as a
		// conflict even after the first one advanced the level, so for
		// approvals the actor's earlier levels count too.
		firstLevel := pr.CurrentLevel
		if decision == DecisionApprove {
			firstLevel = LevelManager
		}
		for level := firstLevel; level <= pr.CurrentLevel; level++ {
			acted, err := l.HasAction(ctx, pr.ID, level, actor.ID)
			if err != nil {
				return err
			}
			if acted {
				return apperrors.Conflictf("you have already acted on this request at this level")
			}
		}

		if decision == DecisionApprove {
			if required := RequiredRoleForLevel(pr.CurrentLevel); actor.Role != required {
				return apperrors.Forbiddenf(
					"only %ss can approve at level %d",
					strings.ReplaceAll(string(required), "_", " "), pr.CurrentLevel,
				)
			}
		}

		action := &models.ApprovalAction{
			ID:        uuid.New(),
			RequestID: pr.ID,
			Level:     pr.CurrentLevel,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Comment:   comment,
			CreatedAt: time.Now(),
		}

		switch {
		case decision == DecisionReject:
			action.Action = models.ActionRejected
			pr.Status = models.StatusRejected
		case pr.CurrentLevel == LevelManager:
			action.Action = models.ActionApproved
			pr.CurrentLevel = LevelGeneralManager
		default:
			action.Action = models.ActionApproved
			pr.Status = models.StatusApproved
			finalApproval = true
		}

		if err := l.RecordAction(ctx, action); err != nil {
			return err
		}
		if err := l.SaveRequest(ctx, pr); err != nil {
			return err
		}

		res = Result{Status: pr.Status, Level: pr.CurrentLevel}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	e.log.Info().
		Str("request_id", requestID.String()).
		Str("actor_id", actor.ID.String()).
		Str("decision", string(decision)).
		Str("status", string(res.Status)).
		Int("level", res.Level).
		Msg("approval action recorded")

	if finalApproval && e.onFinalApproval != nil {
		e.onFinalApproval(requestID)
	}
	return res, nil
}

// RecordReconciliation persists a matching report on the owning request
// under the same lock discipline the approval path uses.
func (e *Engine) RecordReconciliation(ctx context.Context, requestID uuid.UUID, report matching.Report) (models.MatchStatus, error) {
	status := models.MatchDiscrepancy
	if report.Matched() {
		status = models.MatchMatched
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return "", err
	}

	err = e.store.WithRequestLock(ctx, requestID, func(l Ledger, pr *models.PurchaseRequest) error {
		pr.ThreeWayMatchStatus = status
		pr.DiscrepancyDetails = payload
		return l.SaveRequest(ctx, pr)
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

// RecordReconciliationFailure marks a reconciliation that could not
// complete. The error detail is preserved for manual follow-up.
func (e *Engine) RecordReconciliationFailure(ctx context.Context, requestID uuid.UUID, cause error) error {
	msg := cause.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	payload, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return err
	}
	return e.store.WithRequestLock(ctx, requestID, func(l Ledger, pr *models.PurchaseRequest) error {
		pr.ThreeWayMatchStatus = models.MatchDiscrepancy
		pr.DiscrepancyDetails = payload
		return l.SaveRequest(ctx, pr)
	})
}
