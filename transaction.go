package tenantstore

import (
	"context"
)

type txState int

const (
	txInactive txState = iota
	txActive
)

// Transaction wraps one provider transaction with explicit lifecycle
// discipline: INACTIVE → ACTIVE on Begin, back to INACTIVE on Commit or
// Rollback. Begin while active, or Commit/Rollback while inactive, is an
// illegal-state error — those call patterns indicate a caller bug.
//
// While active the wrapper buffers mutations and overlays them on
// snapshot reads, so a read after an uncommitted write observes the
// write. One instance models one transaction and must not be used from
// multiple goroutines.
type Transaction struct {
	store     *Store
	namespace Namespace

	state     txState
	ptx       ProviderTx
	mutations []Mutation
	// overlay holds pending writes keyed by entity key; a nil entry marks
	// a pending delete.
	overlay map[Key]*Entity
}

// Begin starts the transaction. Illegal while already active.
func (tx *Transaction) Begin(ctx context.Context) error {
	if tx.state == txActive {
		return WithContext(ErrIllegalState, map[string]interface{}{
			"reason": "transaction already active",
		})
	}
	ptx, err := tx.store.provider.NewTransaction(ctx)
	if err != nil {
		return err
	}
	tx.ptx = ptx
	tx.mutations = nil
	tx.overlay = make(map[Key]*Entity)
	tx.state = txActive
	return nil
}

// Active reports whether the transaction is between Begin and
// Commit/Rollback
func (tx *Transaction) Active() bool {
	return tx.state == txActive
}

// Create buffers an insert. It fails immediately — before commit — when
// the key already exists in the transaction-start snapshot or in this
// transaction's own pending writes.
func (tx *Transaction) Create(ctx context.Context, entities ...*Entity) error {
	if err := tx.requireActive("create"); err != nil {
		return err
	}
	for _, e := range entities {
		existing, err := tx.lookupOne(ctx, e.Key)
		if err != nil {
			return err
		}
		if existing != nil {
			tx.store.metrics.Increment(MetricTxConflict, "kind", e.Key.Kind)
			return WithContext(ErrAlreadyExists, map[string]interface{}{
				"key": e.Key.String(),
			})
		}
	}
	for _, e := range entities {
		tx.buffer(Mutation{Mode: PutInsert, Entity: e.Clone()})
	}
	return nil
}

// CreateOrUpdate buffers an unconditional write
func (tx *Transaction) CreateOrUpdate(ctx context.Context, entities ...*Entity) error {
	if err := tx.requireActive("createOrUpdate"); err != nil {
		return err
	}
	for _, e := range entities {
		tx.buffer(Mutation{Mode: PutUpsert, Entity: e.Clone()})
	}
	return nil
}

// Delete buffers removals
func (tx *Transaction) Delete(ctx context.Context, keys ...Key) error {
	if err := tx.requireActive("delete"); err != nil {
		return err
	}
	for _, k := range keys {
		key := k
		tx.mutations = append(tx.mutations, Mutation{Delete: &key})
		tx.overlay[key] = nil
	}
	return nil
}

// Lookup reads within the transaction, preserving input order with nil
// placeholders for missing keys. Pending writes of this transaction are
// visible; everything else comes from the transaction-start snapshot.
func (tx *Transaction) Lookup(ctx context.Context, keys []Key) ([]*Entity, error) {
	if err := tx.requireActive("lookup"); err != nil {
		return nil, err
	}

	var fetch []Key
	for _, k := range keys {
		if _, pending := tx.overlay[k]; !pending {
			fetch = append(fetch, k)
		}
	}
	fetched := make(map[Key]*Entity)
	for _, batch := range chunks(fetch, MaxKeysPerLookup) {
		part, err := tx.ptx.Get(ctx, batch)
		if err != nil {
			return nil, err
		}
		for k, e := range part {
			fetched[k] = e
		}
	}

	out := make([]*Entity, len(keys))
	for i, k := range keys {
		if pending, ok := tx.overlay[k]; ok {
			if pending != nil {
				out[i] = pending.Clone()
			}
			continue
		}
		out[i] = fetched[k]
	}
	return out, nil
}

// Commit applies all buffered mutations atomically. A provider-level
// conflict (for example an insert raced by another writer) propagates
// unmodified and nothing in the transaction persists. The transaction is
// inactive afterwards either way.
func (tx *Transaction) Commit(ctx context.Context) error {
	if err := tx.requireActive("commit"); err != nil {
		return err
	}
	tx.state = txInactive
	if err := tx.ptx.Commit(ctx, tx.mutations); err != nil {
		tx.store.metrics.Increment(MetricTxRollback)
		return err
	}
	tx.store.metrics.Increment(MetricTxCommit)
	tx.store.logger.Debug("transaction committed", "mutations", len(tx.mutations))
	return nil
}

// Rollback abandons the transaction. Illegal while inactive.
func (tx *Transaction) Rollback(ctx context.Context) error {
	if err := tx.requireActive("rollback"); err != nil {
		return err
	}
	tx.state = txInactive
	tx.store.metrics.Increment(MetricTxRollback)
	return tx.ptx.Rollback(ctx)
}

// Close rolls the transaction back if it is still active, so a
// deferred Close gives scoped-resource semantics: leaving the scope
// without an explicit Commit abandons the transaction. Closing an
// inactive transaction is a no-op.
func (tx *Transaction) Close() error {
	if tx.state != txActive {
		return nil
	}
	return tx.Rollback(context.Background())
}

func (tx *Transaction) buffer(m Mutation) {
	tx.mutations = append(tx.mutations, m)
	tx.overlay[m.Entity.Key] = m.Entity
}

func (tx *Transaction) lookupOne(ctx context.Context, k Key) (*Entity, error) {
	if pending, ok := tx.overlay[k]; ok {
		return pending, nil
	}
	found, err := tx.ptx.Get(ctx, []Key{k})
	if err != nil {
		return nil, err
	}
	return found[k], nil
}

func (tx *Transaction) requireActive(op string) error {
	if tx.state != txActive {
		return WithContext(ErrIllegalState, map[string]interface{}{
			"operation": op,
			"reason":    "no active transaction",
		})
	}
	return nil
}
