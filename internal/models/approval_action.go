package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStaff          Role = "staff"
	RoleManager        Role = "manager"
	RoleGeneralManager Role = "general_manager"
	RoleFinance        Role = "finance"
	RoleAdmin          Role = "admin"
)

type ActionType string

const (
	ActionApproved ActionType = "APPROVED"
	ActionRejected ActionType = "REJECTED"
)

// ApprovalAction is one immutable audit row per approver decision.
// The unique index over (request, level, actor) closes the race window
// between two concurrent submissions by the same actor: only one insert
// can win, the loser gets a duplicate-key error.
type ApprovalAction struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID uuid.UUID  `gorm:"type:uuid;index;uniqueIndex:idx_actions_request_level_actor" json:"request_id"`
	Level     int        `gorm:"uniqueIndex:idx_actions_request_level_actor" json:"level"`
	Action    ActionType `gorm:"size:8" json:"action"`
	ActorID   uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_actions_request_level_actor" json:"actor_id"`
	ActorRole Role       `gorm:"size:20" json:"actor_role"`
	Comment   string     `gorm:"type:text" json:"comment"`
	CreatedAt time.Time  `json:"created_at"`
}
