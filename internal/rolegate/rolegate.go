// Package rolegate holds the single authorization table for approval-gated
// actions. Every submission and decision is checked here; handlers never
// compare roles themselves.
package rolegate

import (
	"fmt"

	"donasi/internal/models"
)

type capabilities struct {
	submit map[models.UserRole]struct{}
	decide map[models.UserRole]struct{}
}

func roles(rs ...models.UserRole) map[models.UserRole]struct{} {
	m := make(map[models.UserRole]struct{}, len(rs))
	for _, r := range rs {
		m[r] = struct{}{}
	}
	return m
}

// table maps each action type to the roles allowed to submit and decide it.
// super_admin is not listed: it is allowed everything by override.
var table = map[models.ActionType]capabilities{
	models.ActionProgramPublish: {
		submit: roles(models.RolePengusul, models.RoleAuthor, models.RoleManager),
		decide: roles(models.RoleManager),
	},
	models.ActionArticlePublish: {
		submit: roles(models.RoleAuthor, models.RoleManager),
		decide: roles(models.RoleManager),
	},
	models.ActionRoleUpgrade: {
		submit: roles(models.RoleDonatur),
		decide: roles(models.RoleManager),
	},
}

var observers = roles(models.RoleSupervisor, models.RoleManager, models.RoleFinance, models.RoleSuperAdmin)

// sensitive action types need a freshly verified credential before a decision.
var sensitive = map[models.ActionType]bool{
	models.ActionRoleUpgrade:    true,
	models.ActionProgramPublish: true,
	models.ActionArticlePublish: true,
}

// CanSubmit reports whether role may open an approval for actionType.
func CanSubmit(actionType models.ActionType, role models.UserRole) bool {
	if role == models.RoleSuperAdmin {
		return actionType.Valid()
	}
	caps, ok := table[actionType]
	if !ok {
		return false
	}
	_, allowed := caps.submit[role]
	return allowed
}

// CanDecide reports whether role may approve or reject actionType.
func CanDecide(actionType models.ActionType, role models.UserRole) bool {
	if role == models.RoleSuperAdmin {
		return actionType.Valid()
	}
	caps, ok := table[actionType]
	if !ok {
		return false
	}
	_, allowed := caps.decide[role]
	return allowed
}

// CanObserve reports whether role may read approval history and finance reports.
func CanObserve(role models.UserRole) bool {
	_, ok := observers[role]
	return ok
}

// IsSensitive reports whether decisions on actionType require re-authentication.
func IsSensitive(actionType models.ActionType) bool {
	return sensitive[actionType]
}

// AuthorizeSubmit returns a FORBIDDEN AppError when user may not submit actionType.
func AuthorizeSubmit(actionType models.ActionType, user *models.User) error {
	if user == nil || !user.IsActive || !CanSubmit(actionType, user.Role) {
		return models.NewForbiddenError(fmt.Sprintf("role is not permitted to submit %s", actionType))
	}
	return nil
}

// AuthorizeDecide returns a FORBIDDEN AppError when user may not decide actionType.
func AuthorizeDecide(actionType models.ActionType, user *models.User) error {
	if user == nil || !user.IsActive || !CanDecide(actionType, user.Role) {
		return models.NewForbiddenError(fmt.Sprintf("role is not permitted to decide %s", actionType))
	}
	return nil
}
