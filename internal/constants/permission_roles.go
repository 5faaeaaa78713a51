package constants

import roles "sol-backend/internal/pkg/constants"

// PermissionRoles maps each permission to roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ViewData:         {roles.Member, roles.Admin, roles.Superadmin},
	CreateSol:        {roles.Member, roles.Admin, roles.Superadmin},
	ValidatePayments: {roles.Admin, roles.Superadmin},
	ManageTransfers:  {roles.Admin, roles.Superadmin},
	ViewAllTransfers: {roles.Admin, roles.Superadmin},
	ResolveDisputes:  {roles.Admin, roles.Superadmin},
	AdvanceRounds:    {roles.Admin, roles.Superadmin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	allowed, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
