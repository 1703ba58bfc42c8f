package tenantstore

import "context"

// Query is one AND-only structured query in provider terms. Disjunctive
// predicates never reach a provider; the filter compiler splits them into
// one Query per conjunction first.
type Query struct {
	Namespace string
	Kind      Kind
	Filters   Conjunction
	OrderBy   []Order
	Limit     int
	KeysOnly  bool
}

// Cursor pulls query results one entity at a time. Next returns
// ErrIteratorDone once the result set is exhausted. Cursors are not safe
// for concurrent use.
type Cursor interface {
	Next() (*Entity, error)
}

// PutMode selects the write semantics of a provider put
type PutMode int

const (
	// PutInsert fails with ErrAlreadyExists if the key already exists
	PutInsert PutMode = iota
	// PutUpsert writes unconditionally
	PutUpsert
	// PutUpdate fails with ErrNotFound if the key does not exist
	PutUpdate
)

// Mutation is one buffered transactional operation
type Mutation struct {
	Mode   PutMode
	Entity *Entity // set for puts
	Delete *Key    // set for deletes; Entity is nil
}

// Provider is the narrow capability the document database exposes to this
// layer. Every method is one blocking provider call; batching to respect
// request ceilings is the Store's job, not the provider's.
//
// Keeping the surface this small lets the filter compiler and batching
// logic run against an in-memory fake instead of a live database.
type Provider interface {
	// Lookup returns the entities found for the given keys. Missing keys
	// are simply absent from the result; they are not an error.
	Lookup(ctx context.Context, keys []Key) (map[Key]*Entity, error)

	// Put writes all entities in one provider call with the given mode
	Put(ctx context.Context, mode PutMode, entities []*Entity) error

	// Delete removes all keys in one provider call. Deleting a missing
	// key is a no-op.
	Delete(ctx context.Context, keys []Key) error

	// Run executes one structured query and returns a cursor over its
	// results
	Run(ctx context.Context, q Query) (Cursor, error)

	// Namespaces lists every namespace label under which entities exist
	Namespaces(ctx context.Context) ([]string, error)

	// NewTransaction begins a snapshot-isolated provider transaction
	NewTransaction(ctx context.Context) (ProviderTx, error)

	// Close releases provider resources. Idempotent.
	Close() error
}

// ProviderTx is one provider-level transaction. Reads observe the
// transaction-start snapshot; Commit applies all mutations atomically or
// none at all, returning ErrAlreadyExists when an insert mutation
// collides with an existing key.
type ProviderTx interface {
	Get(ctx context.Context, keys []Key) (map[Key]*Entity, error)
	Commit(ctx context.Context, mutations []Mutation) error
	Rollback(ctx context.Context) error
}

// sliceCursor serves pre-materialized results; providers that filter
// client side use it.
type sliceCursor struct {
	entities []*Entity
	pos      int
}

func newSliceCursor(entities []*Entity) *sliceCursor {
	return &sliceCursor{entities: entities}
}

func (c *sliceCursor) Next() (*Entity, error) {
	if c.pos >= len(c.entities) {
		return nil, ErrIteratorDone
	}
	e := c.entities[c.pos]
	c.pos++
	return e, nil
}
