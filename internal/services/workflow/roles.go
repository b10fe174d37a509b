package workflow

import "github.com/Manzp111/Procured-Payment/internal/models"

// Approval levels are fixed to two ordered stages.
const (
	LevelManager        = 1
	LevelGeneralManager = 2
)

// RequiredRoleForLevel returns the approver role an APPROVE needs at
// the given level. Kept as a pure function so the check runs inside the
// same lock as the state write, not in a middleware layer.
func RequiredRoleForLevel(level int) models.Role {
	if level == LevelGeneralManager {
		return models.RoleGeneralManager
	}
	return models.RoleManager
}

// IsApproverRole reports whether the role may act on pending requests
// at all. REJECT is allowed from any approver role at any level.
func IsApproverRole(role models.Role) bool {
	return role == models.RoleManager || role == models.RoleGeneralManager
}
