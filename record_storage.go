package tenantstore

import (
	"context"
)

// payloadProperty holds a record's serialized payload inside its entity.
// Column names must not collide with it.
const payloadProperty = "_payload"

// Record is what the owning framework hands this layer per write: an
// identifier, the serialized record payload, and a flat bag of extracted
// column values for filtering and ordering.
type Record struct {
	ID      RecordID
	Payload []byte
	Columns map[string]interface{}
}

// RecordQuery describes a read: either a plain identifier lookup, or a
// composite predicate with ordering and a result limit.
type RecordQuery struct {
	IDs     []RecordID
	Filters []CompositeFilter
	OrderBy []Order
	Limit   int
}

// RecordStorage binds the pieces into the record-storage contract the
// owning framework consumes: typed records of one kind, written with
// extracted columns and read back through composite filters.
type RecordStorage struct {
	store *Store
	kind  Kind
}

// NewRecordStorage creates record storage for one kind on a store
func NewRecordStorage(store *Store, kind Kind) (*RecordStorage, error) {
	if kind.IsZero() {
		return nil, WithContext(ErrInvalidKind, map[string]interface{}{
			"reason": "kind must be set",
		})
	}
	return &RecordStorage{store: store, kind: kind}, nil
}

// Kind returns the record kind this storage serves
func (rs *RecordStorage) Kind() Kind {
	return rs.kind
}

// Write stores one record, creating or replacing it
func (rs *RecordStorage) Write(ctx context.Context, rec Record) error {
	return rs.WriteBatch(ctx, []Record{rec})
}

// WriteBatch stores many records in chunked bulk writes
func (rs *RecordStorage) WriteBatch(ctx context.Context, recs []Record) error {
	entities := make([]*Entity, 0, len(recs))
	for _, rec := range recs {
		e, err := rs.toEntity(ctx, rec)
		if err != nil {
			return err
		}
		entities = append(entities, e)
	}
	return rs.store.CreateOrUpdate(ctx, entities...)
}

// Read fetches records by identifier, preserving input order and leaving
// nil in place of records that do not exist.
func (rs *RecordStorage) Read(ctx context.Context, ids ...RecordID) ([]*Record, error) {
	factory, err := rs.store.KeyFactory(ctx, rs.kind)
	if err != nil {
		return nil, err
	}
	keys := make([]Key, len(ids))
	for i, id := range ids {
		keys[i] = factory.NewKey(id)
	}
	entities, err := rs.store.Lookup(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([]*Record, len(entities))
	for i, e := range entities {
		if e == nil {
			continue
		}
		out[i] = fromEntity(e)
	}
	return out, nil
}

// Query reads records matching a composite predicate. Identifier-only
// queries dispatch to a direct batched lookup. Predicates with EITHER
// groups fan out into one provider query per compiled conjunction and the
// results are merged, de-duplicated by key, then ordered and limited.
func (rs *RecordStorage) Query(ctx context.Context, q RecordQuery) ([]*Record, error) {
	if len(q.IDs) > 0 && len(q.Filters) == 0 {
		return rs.Read(ctx, q.IDs...)
	}

	ns, err := rs.store.namespaceFor(ctx, false)
	if err != nil {
		return nil, err
	}

	conjunctions, err := rs.store.Columns().Compile(q.Filters)
	if err != nil {
		return nil, err
	}
	if len(conjunctions) == 0 {
		// No predicate means match everything of the kind.
		conjunctions = []Conjunction{nil}
	}

	// A single conjunction runs provider side with ordering and limit
	// pushed down. A fan-out merges client side, so ordering and limit
	// apply only after de-duplication.
	single := len(conjunctions) == 1
	rs.store.metrics.Histogram(MetricQueryFanout, float64(len(conjunctions)), "kind", rs.kind.String())

	seen := make(map[Key]struct{})
	var merged []*Entity
	for _, conjunction := range conjunctions {
		query := Query{
			Namespace: ns.String(),
			Kind:      rs.kind,
			Filters:   conjunction,
		}
		if single {
			query.OrderBy = q.OrderBy
			query.Limit = q.Limit
		}
		it := rs.store.Read(query)
		for it.HasNext(ctx) {
			e, err := it.Next(ctx)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[e.Key]; dup {
				continue
			}
			seen[e.Key] = struct{}{}
			merged = append(merged, e)
		}
		if err := it.Err(); err != nil {
			return nil, err
		}
	}

	if !single {
		sortEntities(merged, q.OrderBy)
		if q.Limit > 0 && len(merged) > q.Limit {
			merged = merged[:q.Limit]
		}
	}

	out := make([]*Record, len(merged))
	for i, e := range merged {
		out[i] = fromEntity(e)
	}
	return out, nil
}

// Delete removes records by identifier in chunked bulk deletes
func (rs *RecordStorage) Delete(ctx context.Context, ids ...RecordID) error {
	factory, err := rs.store.KeyFactory(ctx, rs.kind)
	if err != nil {
		return err
	}
	keys := make([]Key, len(ids))
	for i, id := range ids {
		keys[i] = factory.NewKey(id)
	}
	return rs.store.DeleteKeys(ctx, keys...)
}

// DeleteAll truncates the kind in the caller's tenant namespace. The
// deletion is chunked, so truncating n records costs
// ceil(n/MaxEntitiesPerDelete) provider calls, not n.
func (rs *RecordStorage) DeleteAll(ctx context.Context) error {
	return rs.store.DropKind(ctx, rs.kind)
}

func (rs *RecordStorage) toEntity(ctx context.Context, rec Record) (*Entity, error) {
	if rec.ID == "" {
		return nil, WithContext(ErrInvalidArgument, map[string]interface{}{
			"reason": "record id must not be empty",
		})
	}
	if _, collides := rec.Columns[payloadProperty]; collides {
		return nil, WithContext(ErrInvalidArgument, map[string]interface{}{
			"column": payloadProperty,
			"reason": "column name is reserved",
		})
	}
	key, err := rs.store.KeyFor(ctx, rs.kind, rec.ID)
	if err != nil {
		return nil, err
	}
	properties, err := rs.store.Columns().ConvertAll(rec.Columns)
	if err != nil {
		return nil, err
	}
	e := &Entity{Key: key, Properties: properties}
	e.Set(payloadProperty, BytesValue(rec.Payload))
	return e, nil
}

func fromEntity(e *Entity) *Record {
	rec := &Record{ID: e.Key.RecordID(), Columns: make(map[string]interface{})}
	for name, v := range e.Properties {
		if name == payloadProperty {
			if b, ok := v.(BytesValue); ok {
				rec.Payload = []byte(b)
			}
			continue
		}
		rec.Columns[name] = v
	}
	return rec
}
