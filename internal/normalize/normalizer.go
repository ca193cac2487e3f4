// Package normalize turns arbitrary semi-structured documents into a flat
// field map plus one extracted primary text string.
package normalize

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fusedex/fusedex/internal/domain"
	"github.com/fusedex/fusedex/internal/domain/value"
)

// DefaultMaxTextLength bounds the fallback primary text concatenation.
const DefaultMaxTextLength = 4096

// primaryFields is the extraction priority order, matched case-insensitively.
var primaryFields = []string{
	"title", "name", "subject", "description", "content", "message", "text", "body",
}

// Entry is one flattened field in insertion order.
type Entry struct {
	Key string
	Val value.Value
}

// Flat is the normalization output.
type Flat struct {
	Entries     []Entry
	PrimaryText string
	Warnings    []string
}

// Fields renders the flattened entries as a plain string map for storage.
func (f *Flat) Fields() map[string]string {
	m := make(map[string]string, len(f.Entries))
	for _, e := range f.Entries {
		m[e.Key] = e.Val.ScalarString()
	}
	return m
}

// Get returns the value for a flattened key.
func (f *Flat) Get(key string) (value.Value, bool) {
	for _, e := range f.Entries {
		if e.Key == key {
			return e.Val, true
		}
	}
	return value.Value{}, false
}

// Normalizer flattens documents and extracts primary text.
type Normalizer struct {
	maxTextLen int
}

// New creates a normalizer. maxTextLen bounds the fallback concatenation;
// zero means DefaultMaxTextLength.
func New(maxTextLen int) *Normalizer {
	if maxTextLen <= 0 {
		maxTextLen = DefaultMaxTextLength
	}
	return &Normalizer{maxTextLen: maxTextLen}
}

// Normalize flattens exactly one structural level of the input and extracts
// the primary text. The input must be a map at the top level.
func (n *Normalizer) Normalize(v value.Value) (*Flat, error) {
	if v.Kind() != value.Map {
		return nil, fmt.Errorf("document must be an object, got %s: %w", v.Kind(), domain.ErrValidation)
	}

	flat := &Flat{}
	for _, key := range v.Keys() {
		val, _ := v.Get(key)
		switch val.Kind() {
		case value.Map:
			// Descend one level; anything still nested below becomes its
			// literal string form to bound flattening cost.
			for _, sub := range val.Keys() {
				subVal, _ := val.Get(sub)
				flat.put(key+"_"+sub, collapse(subVal))
			}
		case value.Sequence:
			for i, item := range val.Items() {
				flat.put(fmt.Sprintf("%s_%d", key, i), collapse(item))
			}
		default:
			flat.put(key, val)
		}
	}

	flat.PrimaryText = n.extractPrimaryText(flat)
	return flat, nil
}

// collapse keeps scalars as-is and serializes still-nested values.
func collapse(v value.Value) value.Value {
	if v.IsScalar() {
		return v
	}
	return value.NewString(v.Literal())
}

// put inserts a flattened entry. On key collision the later value wins and
// a warning is recorded.
func (f *Flat) put(key string, val value.Value) {
	for i, e := range f.Entries {
		if e.Key == key {
			f.Entries[i].Val = val
			f.Warnings = append(f.Warnings, fmt.Sprintf("flatten collision on key %q, later value kept", key))
			return
		}
	}
	f.Entries = append(f.Entries, Entry{Key: key, Val: val})
}

// extractPrimaryText returns the first non-empty string among the priority
// fields, or the space-joined concatenation of all scalar strings in
// insertion order, truncated to the configured maximum.
func (n *Normalizer) extractPrimaryText(flat *Flat) string {
	for _, name := range primaryFields {
		for _, e := range flat.Entries {
			if !strings.EqualFold(e.Key, name) {
				continue
			}
			if e.Val.Kind() == value.String && strings.TrimSpace(e.Val.Str()) != "" {
				return e.Val.Str()
			}
		}
	}

	var parts []string
	for _, e := range flat.Entries {
		if e.Val.Kind() == value.String && e.Val.Str() != "" {
			parts = append(parts, e.Val.Str())
		}
	}
	joined := strings.Join(parts, " ")
	if len(joined) > n.maxTextLen {
		// Back the cut up to a rune boundary so the text stays valid UTF-8.
		cut := n.maxTextLen
		for cut > 0 && !utf8.RuneStart(joined[cut]) {
			cut--
		}
		joined = joined[:cut]
	}
	return joined
}
