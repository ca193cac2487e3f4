// Package document persists documents as hashes covered by per-collection
// FT indexes.
package document

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fusedex/fusedex/internal/db"
	"github.com/fusedex/fusedex/internal/domain"
	domdoc "github.com/fusedex/fusedex/internal/domain/document"
	"github.com/fusedex/fusedex/internal/repository/collection"
)

// Reserved hash fields. Flat caller fields live under __fields as JSON so
// they can never collide with the indexed schema.
const (
	fieldText    = "__text"
	fieldVector  = "__vector"
	fieldTenant  = "__tenant"
	fieldAccess  = "__access"
	fieldParent  = "__parent"
	fieldVersion = "__version"
	fieldFlat    = "__fields"
)

// store is the consumer interface for documents (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// Repo implements document persistence for the ingestion and search flows.
type Repo struct {
	store store
}

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Upsert creates or updates a document and bumps its version.
// Returns the new version and whether the document was created.
func (r *Repo) Upsert(ctx context.Context, collectionName string, doc *domdoc.Document) (int, bool, error) {
	key := docKey(collectionName, doc.ID())

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return 0, false, fmt.Errorf("check exists %s: %w", key, err)
	}

	fields, err := buildHashFields(doc)
	if err != nil {
		return 0, false, err
	}
	if exists {
		if err := r.clearStale(ctx, collectionName, doc, fields); err != nil {
			return 0, false, err
		}
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return 0, false, fmt.Errorf("hset %s: %w", key, err)
	}

	version, err := r.store.HIncrBy(ctx, key, fieldVersion, 1)
	if err != nil {
		return 0, false, fmt.Errorf("bump version %s: %w", key, err)
	}

	if doc.ParentID() != "" {
		if err := r.store.SAdd(ctx, chunkSetKey(collectionName, doc.ParentID()), doc.ID()); err != nil {
			return 0, false, fmt.Errorf("track chunk %s: %w", doc.ID(), err)
		}
	}

	return int(version), !exists, nil
}

// UpsertBatch writes a batch of documents in one pipelined round-trip, then
// bumps each version.
func (r *Repo) UpsertBatch(ctx context.Context, collectionName string, docs []domdoc.Document) error {
	if len(docs) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(docs))
	for i := range docs {
		fields, err := buildHashFields(&docs[i])
		if err != nil {
			return err
		}
		items[i] = db.HashSetItem{Key: docKey(collectionName, docs[i].ID()), Fields: fields}
	}

	// Stale state must go before the pipelined write: a root's new chunks
	// may sit in this very batch.
	for i := range docs {
		if err := r.clearStale(ctx, collectionName, &docs[i], items[i].Fields); err != nil {
			return err
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset batch: %w", err)
	}

	for i := range docs {
		key := docKey(collectionName, docs[i].ID())
		if _, err := r.store.HIncrBy(ctx, key, fieldVersion, 1); err != nil {
			return fmt.Errorf("bump version %s: %w", key, err)
		}
		if docs[i].ParentID() != "" {
			if err := r.store.SAdd(ctx, chunkSetKey(collectionName, docs[i].ParentID()), docs[i].ID()); err != nil {
				return fmt.Errorf("track chunk %s: %w", docs[i].ID(), err)
			}
		}
	}
	return nil
}

// Get returns a document by ID.
func (r *Repo) Get(ctx context.Context, collectionName, id string) (domdoc.Document, error) {
	key := docKey(collectionName, id)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return hydrate(id, fields), nil
}

// GetMany returns documents for the given IDs in one round-trip.
// Missing IDs are skipped.
func (r *Repo) GetMany(ctx context.Context, collectionName string, ids []string) ([]domdoc.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(collectionName, id)
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall batch: %w", err)
	}

	docs := make([]domdoc.Document, 0, len(ids))
	for i, fields := range maps {
		if len(fields) == 0 {
			continue
		}
		docs = append(docs, hydrate(ids[i], fields))
	}
	return docs, nil
}

// Delete removes a document and every chunk derived from it.
func (r *Repo) Delete(ctx context.Context, collectionName, id string) error {
	key := docKey(collectionName, id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrDocumentNotFound
	}

	if err := r.deleteChunks(ctx, collectionName, id); err != nil {
		return err
	}

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// clearStale removes derived state the new revision of a root no longer
// carries. HSET merges fields, so without this a previously-small root
// would keep its old vector after growing into chunks, and a shrunk root
// would leave the prior revision's chunk hashes retrievable.
func (r *Repo) clearStale(ctx context.Context, collectionName string, doc *domdoc.Document, fields map[string]string) error {
	if doc.ParentID() != "" {
		return nil
	}

	stale := make([]string, 0, 2)
	if _, ok := fields[fieldVector]; !ok {
		stale = append(stale, fieldVector)
	}
	if _, ok := fields[fieldParent]; !ok {
		stale = append(stale, fieldParent)
	}
	if len(stale) > 0 {
		if err := r.store.HDel(ctx, docKey(collectionName, doc.ID()), stale...); err != nil {
			return fmt.Errorf("clear stale fields %s: %w", doc.ID(), err)
		}
	}

	return r.deleteChunks(ctx, collectionName, doc.ID())
}

// deleteChunks removes every chunk hash derived from the parent along with
// the tracking set.
func (r *Repo) deleteChunks(ctx context.Context, collectionName, parentID string) error {
	chunkSet := chunkSetKey(collectionName, parentID)
	chunks, err := r.store.SMembers(ctx, chunkSet)
	if err != nil {
		return fmt.Errorf("list chunks %s: %w", parentID, err)
	}
	if len(chunks) == 0 {
		return nil
	}
	for _, chunkID := range chunks {
		if err := r.store.Del(ctx, docKey(collectionName, chunkID)); err != nil {
			return fmt.Errorf("del chunk %s: %w", chunkID, err)
		}
	}
	if err := r.store.Del(ctx, chunkSet); err != nil {
		return fmt.Errorf("del chunk set %s: %w", parentID, err)
	}
	return nil
}

// ExtractID strips the collection prefix from a store key.
func ExtractID(key, collectionName string) string {
	return strings.TrimPrefix(key, collection.DocPrefix(collectionName))
}

func docKey(collectionName, id string) string {
	return collection.DocPrefix(collectionName) + id
}

func chunkSetKey(collectionName, parentID string) string {
	return fmt.Sprintf("%schunks:%s:%s", domain.KeyPrefix, collectionName, parentID)
}

func buildHashFields(doc *domdoc.Document) (map[string]string, error) {
	flat, err := json.Marshal(doc.Fields())
	if err != nil {
		return nil, fmt.Errorf("marshal fields %s: %w", doc.ID(), err)
	}

	fields := map[string]string{
		fieldText:   doc.PrimaryText(),
		fieldTenant: doc.TenantID(),
		fieldAccess: strconv.Itoa(doc.AccessLevel()),
		fieldFlat:   string(flat),
	}
	if doc.ParentID() != "" {
		fields[fieldParent] = doc.ParentID()
	}
	if v := doc.Vector(); len(v) > 0 {
		fields[fieldVector] = encodeVector(v)
	}
	return fields, nil
}

func hydrate(id string, fields map[string]string) domdoc.Document {
	access, _ := strconv.Atoi(fields[fieldAccess])
	version, _ := strconv.Atoi(fields[fieldVersion])

	var flat map[string]string
	if raw := fields[fieldFlat]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &flat)
	}

	return domdoc.Reconstruct(
		id,
		fields[fieldParent],
		fields[fieldTenant],
		access,
		fields[fieldText],
		flat,
		decodeVector(fields[fieldVector]),
		version,
	)
}

func encodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func decodeVector(s string) []float32 {
	if len(s) == 0 || len(s)%4 != 0 {
		return nil
	}
	v := make([]float32, len(s)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32([]byte(s[i*4 : i*4+4])))
	}
	return v
}
