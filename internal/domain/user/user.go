// Package user holds the per-request caller identity. Never persisted.
package user

import (
	"fmt"

	"github.com/fusedex/fusedex/internal/domain"
)

// Role gates what the access filter enforces for a caller.
type Role string

const (
	// RoleMember is the default role: full tenant and access-level checks.
	RoleMember Role = "member"
	// RoleAdmin bypasses the access-level check but never the tenant check.
	RoleAdmin Role = "admin"
	// RoleCrossTenant bypasses both tenant and access-level checks.
	RoleCrossTenant Role = "cross_tenant"
)

// IsValid reports whether the role is one of the known values.
func (r Role) IsValid() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleCrossTenant:
		return true
	default:
		return false
	}
}

// Context identifies the caller of one request.
type Context struct {
	userID         string
	tenantID       string
	role           Role
	maxAccessLevel int
}

// New validates and creates a caller context. TenantID is required unless
// the role is cross_tenant.
func New(userID, tenantID string, role Role, maxAccessLevel int) (Context, error) {
	if userID == "" {
		return Context{}, fmt.Errorf("user ID is required: %w", domain.ErrAuth)
	}
	if role == "" {
		role = RoleMember
	}
	if !role.IsValid() {
		return Context{}, fmt.Errorf("unknown role %q: %w", role, domain.ErrAuth)
	}
	if tenantID == "" && role != RoleCrossTenant {
		return Context{}, fmt.Errorf("tenant ID is required for role %q: %w", role, domain.ErrAuth)
	}
	if maxAccessLevel < 0 {
		return Context{}, fmt.Errorf("max access level must be non-negative: %w", domain.ErrAuth)
	}

	return Context{
		userID:         userID,
		tenantID:       tenantID,
		role:           role,
		maxAccessLevel: maxAccessLevel,
	}, nil
}

// UserID returns the caller identifier.
func (c *Context) UserID() string { return c.userID }

// TenantID returns the caller's isolation boundary.
func (c *Context) TenantID() string { return c.tenantID }

// Role returns the caller's role.
func (c *Context) Role() Role { return c.role }

// MaxAccessLevel returns the highest access level the caller may read.
func (c *Context) MaxAccessLevel() int { return c.maxAccessLevel }
