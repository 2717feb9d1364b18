package auth

import "pulseops/src/models"

// Logical permissions the role allowlist maps onto.
const (
	PermissionRead  = "read"
	PermissionWrite = "write"
	PermissionAdmin = "admin"
)

// -----------------------------------------------------------------------------

// RolesForPermission returns the role names config accepts for a permission.
func RolesForPermission(cfg *models.MConfig, permission string) []string {
	switch permission {
	case PermissionRead:
		return cfg.Auth.Roles.Read
	case PermissionWrite:
		return cfg.Auth.Roles.Write
	case PermissionAdmin:
		return cfg.Auth.Roles.Admin
	default:
		return nil
	}
}

// -----------------------------------------------------------------------------

// HasAnyRole reports whether the identity carries at least one accepted role.
func HasAnyRole(identity *models.MIdentity, accepted []string) bool {
	if identity == nil {
		return false
	}
	for _, have := range identity.Roles {
		for _, want := range accepted {
			if have == want {
				return true
			}
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// AnonymousIdentity is the identity requests run under when verification is
// disabled (local development). It carries every configured role so all
// endpoints stay reachable.
func AnonymousIdentity(cfg *models.MConfig) *models.MIdentity {
	subject := cfg.Auth.AnonymousSubject
	if subject == "" {
		subject = "anonymous"
	}

	var roles []string
	roles = append(roles, cfg.Auth.Roles.Read...)
	roles = append(roles, cfg.Auth.Roles.Write...)
	roles = append(roles, cfg.Auth.Roles.Admin...)

	return &models.MIdentity{Subject: subject, Roles: roles, Active: true}
}
