package document

import (
	"fmt"
	"regexp"

	"github.com/fusedex/fusedex/internal/domain"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// MaxPrimaryTextSize is the maximum primary text size in bytes.
const MaxPrimaryTextSize = 163840 // 160KB

// Document is the document aggregate (immutable value object).
// Version is assigned by the store on upsert, monotonic per (collection, id).
type Document struct {
	id          string
	parentID    string
	tenantID    string
	accessLevel int
	primaryText string
	fields      map[string]string
	vector      []float32
	version     int
}

// New validates and creates a Document.
// ID: ^[a-zA-Z0-9_.-]+$, 1-256 chars. TenantID is required — every document
// belongs to exactly one tenant. Field values are flat (post-normalization).
func New(id, tenantID string, accessLevel int, primaryText string, fields map[string]string) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required: %w", domain.ErrValidation)
	}
	if len(id) > 256 {
		return Document{}, fmt.Errorf("document ID too long (max 256): %w", domain.ErrValidation)
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf(
			"document ID must be alphanumeric with underscores, dots and hyphens: %w", domain.ErrValidation,
		)
	}
	if tenantID == "" {
		return Document{}, fmt.Errorf("tenant ID is required: %w", domain.ErrValidation)
	}
	if accessLevel < 0 {
		return Document{}, fmt.Errorf("access level must be non-negative: %w", domain.ErrValidation)
	}
	if primaryText == "" {
		return Document{}, fmt.Errorf("primary text is required: %w", domain.ErrValidation)
	}
	if len(primaryText) > MaxPrimaryTextSize {
		return Document{}, fmt.Errorf(
			"primary text too large (max %d bytes): %w", MaxPrimaryTextSize, domain.ErrValidation,
		)
	}

	return Document{
		id:          id,
		tenantID:    tenantID,
		accessLevel: accessLevel,
		primaryText: primaryText,
		fields:      cloneStringMap(fields),
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(
	id, parentID, tenantID string, accessLevel int,
	primaryText string, fields map[string]string,
	vector []float32, version int,
) Document {
	return Document{
		id: id, parentID: parentID, tenantID: tenantID, accessLevel: accessLevel,
		primaryText: primaryText, fields: fields, vector: vector, version: version,
	}
}

// ID returns the document identifier, unique within a collection.
func (d *Document) ID() string { return d.id }

// ParentID returns the owning document's ID when this document is a chunk,
// or "" for a root document. The association is non-owning.
func (d *Document) ParentID() string { return d.parentID }

// TenantID returns the isolation boundary this document belongs to.
func (d *Document) TenantID() string { return d.tenantID }

// AccessLevel returns the ordered visibility gate.
func (d *Document) AccessLevel() int { return d.accessLevel }

// PrimaryText returns the extracted text used for retrieval.
func (d *Document) PrimaryText() string { return d.primaryText }

// Fields returns the flat field map.
func (d *Document) Fields() map[string]string { return d.fields }

// Vector returns the dense embedding vector.
func (d *Document) Vector() []float32 { return d.vector }

// Version returns the store-assigned monotonic version.
func (d *Document) Version() int { return d.version }

// Chunk derives a child document carrying a back-reference to this one.
func (d *Document) Chunk(chunkID, text string) Document {
	return Document{
		id:          chunkID,
		parentID:    d.id,
		tenantID:    d.tenantID,
		accessLevel: d.accessLevel,
		primaryText: text,
		fields:      d.fields,
	}
}

// SetVector sets the vector in place (mutation).
func (d *Document) SetVector(v []float32) { d.vector = v }

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
