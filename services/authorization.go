package services

import (
	"github.com/akinalp/maelink/models"
	"github.com/akinalp/maelink/pkg"
)

// The rules below are pure functions of the actor and target records so
// they can be tested without a store.

// canBan: actor must be mod+, and only a sysadmin may ban a sysadmin.
func canBan(actor, target *models.User) error {
	if actor.ID == target.ID {
		return pkg.ErrSelfTarget
	}
	if !actor.Role.AtLeast(models.RoleMod) {
		return pkg.ErrInsufficientPermissions
	}
	if target.Role == models.RoleSysadmin && actor.Role != models.RoleSysadmin {
		return pkg.ErrInsufficientPermissions
	}
	return nil
}

// canSetRole: actor must be admin+. Granting sysadmin, or changing the
// role of a sysadmin, requires a sysadmin actor.
func canSetRole(actor, target *models.User, role models.Role) error {
	if !role.Valid() {
		return pkg.ErrInvalidRole
	}
	if actor.ID == target.ID {
		return pkg.ErrSelfTarget
	}
	if !actor.Role.AtLeast(models.RoleAdmin) {
		return pkg.ErrInsufficientPermissions
	}
	if (role == models.RoleSysadmin || target.Role == models.RoleSysadmin) && actor.Role != models.RoleSysadmin {
		return pkg.ErrInsufficientPermissions
	}
	return nil
}

// canDeletePost: the author, or any mod+.
func canDeletePost(actor *models.User, post *models.Post) error {
	if post.UserID == actor.ID || actor.Role.AtLeast(models.RoleMod) {
		return nil
	}
	return pkg.ErrInsufficientPermissions
}

// canDeleteAccount: moderator deletion of another account. Same shape as
// banning.
func canDeleteAccount(actor, target *models.User) error {
	if !actor.Role.AtLeast(models.RoleMod) {
		return pkg.ErrInsufficientPermissions
	}
	if target.Role == models.RoleSysadmin && actor.Role != models.RoleSysadmin {
		return pkg.ErrInsufficientPermissions
	}
	return nil
}

// canReadActionLogs: mod+.
func canReadActionLogs(actor *models.User) error {
	if !actor.Role.AtLeast(models.RoleMod) {
		return pkg.ErrInsufficientPermissions
	}
	return nil
}
