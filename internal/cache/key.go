// Package cache stores fused search rankings keyed by the full request
// shape. Invalidation is generational: every write bumps a per-collection
// counter that is folded into the key, so stale entries are simply never
// addressed again and age out by TTL.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/fusedex/fusedex/internal/domain"
	"github.com/fusedex/fusedex/internal/domain/search"
)

// KeyParts identifies one cacheable search. Two requests share an entry
// only when every part matches.
type KeyParts struct {
	Collection string
	Query      string
	Filters    map[string]string
	TopK       int
	Weights    map[search.Source]float64
	Rerank     bool
	// Tenant is the caller's tenant, or "" for cross-tenant callers.
	Tenant string
	// MaxAccessLevel is the caller's effective access cap. Together with
	// Tenant it pins the entry to one visibility predicate, so callers
	// with different clearance never share an entry.
	MaxAccessLevel int
}

// hash derives the store key from the parts and the current generation.
// Maps are serialized in sorted key order so the digest is deterministic.
func (p KeyParts) hash(generation int64) string {
	h := sha256.New()
	fmt.Fprintf(h, "c=%s\nq=%s\nk=%d\nr=%t\nt=%s\nl=%d\ng=%d\n",
		p.Collection, p.Query, p.TopK, p.Rerank, p.Tenant, p.MaxAccessLevel, generation)

	filterKeys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		filterKeys = append(filterKeys, k)
	}
	sort.Strings(filterKeys)
	for _, k := range filterKeys {
		fmt.Fprintf(h, "f:%s=%s\n", k, p.Filters[k])
	}

	weightKeys := make([]string, 0, len(p.Weights))
	for s := range p.Weights {
		weightKeys = append(weightKeys, string(s))
	}
	sort.Strings(weightKeys)
	for _, k := range weightKeys {
		fmt.Fprintf(h, "w:%s=%g\n", k, p.Weights[search.Source(k)])
	}

	return domain.KeyPrefix + "cache:" + hex.EncodeToString(h.Sum(nil))
}

// generationKey is the per-(collection, tenant) write counter. The empty
// tenant slot is the cross-tenant view, bumped on every write.
func generationKey(collection, tenant string) string {
	var sb strings.Builder
	sb.WriteString(domain.KeyPrefix)
	sb.WriteString("gen:")
	sb.WriteString(collection)
	sb.WriteString(":")
	sb.WriteString(tenant)
	return sb.String()
}
