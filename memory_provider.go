package tenantstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryProvider is a complete in-process Provider. It backs unit tests
// and local development the way a local database emulator would, with
// strong consistency and full transaction semantics.
type MemoryProvider struct {
	mu       sync.RWMutex
	entities map[Key]*Entity
	closed   bool
}

// NewMemoryProvider creates an empty in-memory provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{entities: make(map[Key]*Entity)}
}

func (p *MemoryProvider) Lookup(ctx context.Context, keys []Key) (map[Key]*Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	found := make(map[Key]*Entity)
	for _, k := range keys {
		if e, ok := p.entities[k]; ok {
			found[k] = e.Clone()
		}
	}
	return found, nil
}

func (p *MemoryProvider) Put(ctx context.Context, mode PutMode, entities []*Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	// One Put call is one provider request: it applies fully or not at
	// all, so precondition checks run before any write.
	for _, e := range entities {
		_, exists := p.entities[e.Key]
		if mode == PutInsert && exists {
			return WithContext(ErrAlreadyExists, map[string]interface{}{
				"key": e.Key.String(),
			})
		}
		if mode == PutUpdate && !exists {
			return WithContext(ErrNotFound, map[string]interface{}{
				"key": e.Key.String(),
			})
		}
	}
	for _, e := range entities {
		p.entities[e.Key] = e.Clone()
	}
	return nil
}

func (p *MemoryProvider) Delete(ctx context.Context, keys []Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, k := range keys {
		delete(p.entities, k)
	}
	return nil
}

func (p *MemoryProvider) Run(ctx context.Context, q Query) (Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	matched := make([]*Entity, 0)
	for _, e := range p.entities {
		if e.Key.Namespace != q.Namespace || e.Key.Kind != q.Kind.String() {
			continue
		}
		if !q.Filters.Matches(e) {
			continue
		}
		matched = append(matched, e.Clone())
	}
	p.mu.RUnlock()

	sortEntities(matched, q.OrderBy)
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	if q.KeysOnly {
		for i, e := range matched {
			matched[i] = NewEntity(e.Key)
		}
	}
	return newSliceCursor(matched), nil
}

func (p *MemoryProvider) Namespaces(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	seen := make(map[string]struct{})
	for k := range p.entities {
		seen[k.Namespace] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out, nil
}

func (p *MemoryProvider) NewTransaction(ctx context.Context) (ProviderTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	snapshot := make(map[Key]*Entity, len(p.entities))
	for k, e := range p.entities {
		snapshot[k] = e
	}
	p.mu.RUnlock()

	return &memoryTx{provider: p, snapshot: snapshot}, nil
}

func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Len reports the number of stored entities (test helper)
func (p *MemoryProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entities)
}

// memoryTx reads from the transaction-start snapshot and applies its
// mutations atomically at commit.
type memoryTx struct {
	provider *MemoryProvider
	snapshot map[Key]*Entity
	done     bool
}

func (tx *memoryTx) Get(ctx context.Context, keys []Key) (map[Key]*Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found := make(map[Key]*Entity)
	for _, k := range keys {
		if e, ok := tx.snapshot[k]; ok {
			found[k] = e.Clone()
		}
	}
	return found, nil
}

func (tx *memoryTx) Commit(ctx context.Context, mutations []Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx.done {
		return WithContext(ErrIllegalState, map[string]interface{}{
			"reason": "transaction already finished",
		})
	}
	tx.done = true

	p := tx.provider
	p.mu.Lock()
	defer p.mu.Unlock()

	// Validate before applying so a conflict leaves nothing behind.
	for _, m := range mutations {
		if m.Delete != nil || m.Mode != PutInsert {
			continue
		}
		if _, exists := p.entities[m.Entity.Key]; exists {
			return WithContext(ErrAlreadyExists, map[string]interface{}{
				"key": m.Entity.Key.String(),
			})
		}
	}
	for _, m := range mutations {
		if m.Delete != nil {
			delete(p.entities, *m.Delete)
			continue
		}
		p.entities[m.Entity.Key] = m.Entity.Clone()
	}
	return nil
}

func (tx *memoryTx) Rollback(ctx context.Context) error {
	tx.done = true
	return nil
}

// sortEntities orders entities by the given directives, breaking ties by
// key name so results are deterministic.
func sortEntities(entities []*Entity, orderBy []Order) {
	sort.SliceStable(entities, func(i, j int) bool {
		for _, o := range orderBy {
			c := compareValues(entities[i].Get(o.Column), entities[j].Get(o.Column))
			if c == 0 {
				continue
			}
			if o.Descending {
				return c > 0
			}
			return c < 0
		}
		return entities[i].Key.Name < entities[j].Key.Name
	})
}
