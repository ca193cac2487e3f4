package retrieval

import "github.com/fusedex/fusedex/internal/db"

// pushdownFilter translates the query's access constraints into an FT
// pre-filter expression.
func pushdownFilter(q Query) db.FilterExpr {
	var f db.FilterExpr
	if q.Tenant != "" {
		f.Tags = append(f.Tags, db.TagMatch{Field: "__tenant", Value: q.Tenant})
	}
	if q.MaxAccessLevel != NoAccessCap {
		f.Ranges = append(f.Ranges, db.NumericMax{Field: "__access", Max: float64(q.MaxAccessLevel)})
	}
	return f
}
