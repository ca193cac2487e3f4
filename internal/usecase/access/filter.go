// Package access enforces tenant isolation and access-level visibility.
// Constraints are pushed into retrieval sources where possible; Allowed is
// the non-bypassable post-filter applied to every candidate regardless.
package access

import (
	"github.com/fusedex/fusedex/internal/domain/document"
	"github.com/fusedex/fusedex/internal/domain/user"
	"github.com/fusedex/fusedex/internal/retrieval"
)

// Constraints returns the pushdown values for a caller.
// Admin keeps the tenant restriction but drops the access cap; cross_tenant
// drops both.
func Constraints(u user.Context) (tenant string, maxAccessLevel int) {
	switch u.Role() {
	case user.RoleCrossTenant:
		return "", retrieval.NoAccessCap
	case user.RoleAdmin:
		return u.TenantID(), retrieval.NoAccessCap
	default:
		return u.TenantID(), u.MaxAccessLevel()
	}
}

// Allowed reports whether the caller may read the document. Applied after
// retrieval even when the source already evaluated the pushdown, so a
// misconfigured source can never leak documents.
func Allowed(u user.Context, doc *document.Document) bool {
	if u.Role() == user.RoleCrossTenant {
		return true
	}
	if doc.TenantID() != u.TenantID() {
		return false
	}
	if u.Role() == user.RoleAdmin {
		return true
	}
	return doc.AccessLevel() <= u.MaxAccessLevel()
}
