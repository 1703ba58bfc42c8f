package tenantstore

import (
	"context"
	"fmt"
	"testing"
)

// countingProvider wraps a MemoryProvider and counts provider calls, so
// tests can assert on batching behavior and call laziness.
type countingProvider struct {
	*MemoryProvider
	lookupCalls int
	putCalls    int
	deleteCalls int
	runCalls    int
}

func newCountingProvider() *countingProvider {
	return &countingProvider{MemoryProvider: NewMemoryProvider()}
}

func (p *countingProvider) Lookup(ctx context.Context, keys []Key) (map[Key]*Entity, error) {
	p.lookupCalls++
	return p.MemoryProvider.Lookup(ctx, keys)
}

func (p *countingProvider) Put(ctx context.Context, mode PutMode, entities []*Entity) error {
	p.putCalls++
	return p.MemoryProvider.Put(ctx, mode, entities)
}

func (p *countingProvider) Delete(ctx context.Context, keys []Key) error {
	p.deleteCalls++
	return p.MemoryProvider.Delete(ctx, keys)
}

func (p *countingProvider) Run(ctx context.Context, q Query) (Cursor, error) {
	p.runCalls++
	return p.MemoryProvider.Run(ctx, q)
}

func newTestStore(t *testing.T, multitenant bool) (*Store, *MemoryProvider) {
	t.Helper()
	provider := NewMemoryProvider()
	store, err := NewStore(provider, StoreConfig{ProjectID: "test-project", Multitenant: multitenant})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store, provider
}

func testEntity(t *testing.T, store *Store, ctx context.Context, kind Kind, id string, props map[string]Value) *Entity {
	t.Helper()
	key, err := store.KeyFor(ctx, kind, RecordID(id))
	if err != nil {
		t.Fatalf("KeyFor failed: %v", err)
	}
	e := NewEntity(key)
	for name, v := range props {
		e.Set(name, v)
	}
	return e
}

var orderKind = MustKind("order")

// TestStore_LookupOrderAndPlaceholders tests the positional lookup contract:
// results come back in input order with nil for missing keys
func TestStore_LookupOrderAndPlaceholders(t *testing.T) {
	store, _ := newTestStore(t, false)
	ctx := context.Background()

	e1 := testEntity(t, store, ctx, orderKind, "o-1", map[string]Value{"total": IntValue(10)})
	e2 := testEntity(t, store, ctx, orderKind, "o-2", map[string]Value{"total": IntValue(20)})
	if err := store.Create(ctx, e1, e2); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	missing, _ := store.KeyFor(ctx, orderKind, "o-nope")
	got, err := store.Lookup(ctx, []Key{e2.Key, missing, e1.Key})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if got[0] == nil || got[0].Key != e2.Key {
		t.Errorf("position 0: expected o-2, got %+v", got[0])
	}
	if got[1] != nil {
		t.Errorf("position 1: expected nil placeholder for missing key, got %+v", got[1])
	}
	if got[2] == nil || got[2].Key != e1.Key {
		t.Errorf("position 2: expected o-1, got %+v", got[2])
	}
	if got[0].Get("total") != IntValue(20) {
		t.Errorf("expected stored property back, got %#v", got[0].Get("total"))
	}
}

// TestStore_CreateConflict tests insert and update preconditions
func TestStore_CreateConflict(t *testing.T) {
	store, _ := newTestStore(t, false)
	ctx := context.Background()

	e := testEntity(t, store, ctx, orderKind, "o-1", nil)
	if err := store.Create(ctx, e); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Create(ctx, e); !IsAlreadyExists(err) {
		t.Errorf("expected existence conflict, got %v", err)
	}

	ghost := testEntity(t, store, ctx, orderKind, "o-ghost", nil)
	if err := store.Update(ctx, ghost); !IsNotFound(err) {
		t.Errorf("expected not-found for update of missing entity, got %v", err)
	}
	if err := store.CreateOrUpdate(ctx, ghost); err != nil {
		t.Errorf("upsert of missing entity must succeed: %v", err)
	}
}

// TestStore_WriteChunking tests that a bulk write one over the ceiling is
// split into exactly two provider calls
func TestStore_WriteChunking(t *testing.T) {
	provider := newCountingProvider()
	metrics := NewInMemoryMetrics()
	store, err := NewStoreWithObservability(provider, StoreConfig{ProjectID: "test-project"}, &NoOpLogger{}, metrics)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ctx := context.Background()

	entities := make([]*Entity, MaxEntitiesPerWrite+1)
	for i := range entities {
		entities[i] = testEntity(t, store, ctx, orderKind, fmt.Sprintf("o-%d", i), nil)
	}
	if err := store.Create(ctx, entities...); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if provider.putCalls != 2 {
		t.Errorf("expected 2 provider put calls, got %d", provider.putCalls)
	}
	if provider.Len() != MaxEntitiesPerWrite+1 {
		t.Errorf("expected all entities stored, got %d", provider.Len())
	}
	h := metrics.Histograms[MetricWriteBatches]
	if len(h) != 1 || h[0] != 2 {
		t.Errorf("expected one batch-count observation of 2, got %v", h)
	}
}

// TestStore_DeleteChunking tests the delete ceiling and that deleting
// missing keys is a no-op
func TestStore_DeleteChunking(t *testing.T) {
	provider := newCountingProvider()
	store, err := NewStore(provider, StoreConfig{ProjectID: "test-project"})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ctx := context.Background()

	keys := make([]Key, MaxEntitiesPerDelete+1)
	for i := range keys {
		keys[i], _ = store.KeyFor(ctx, orderKind, RecordID(fmt.Sprintf("o-%d", i)))
	}
	if err := store.DeleteKeys(ctx, keys...); err != nil {
		t.Fatalf("DeleteKeys failed: %v", err)
	}
	if provider.deleteCalls != 2 {
		t.Errorf("expected 2 provider delete calls, got %d", provider.deleteCalls)
	}
}

// TestStore_LookupChunking tests the lookup ceiling
func TestStore_LookupChunking(t *testing.T) {
	provider := newCountingProvider()
	store, err := NewStore(provider, StoreConfig{ProjectID: "test-project"})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ctx := context.Background()

	keys := make([]Key, MaxKeysPerLookup+1)
	for i := range keys {
		keys[i], _ = store.KeyFor(ctx, orderKind, RecordID(fmt.Sprintf("o-%d", i)))
	}
	got, err := store.Lookup(ctx, keys)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if provider.lookupCalls != 2 {
		t.Errorf("expected 2 provider lookup calls, got %d", provider.lookupCalls)
	}
	if len(got) != len(keys) {
		t.Errorf("expected %d placeholders, got %d", len(keys), len(got))
	}
}

// TestStore_ReadAll tests paged materialization including ordering
func TestStore_ReadAll(t *testing.T) {
	store, _ := newTestStore(t, false)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e := testEntity(t, store, ctx, orderKind, fmt.Sprintf("o-%d", i), map[string]Value{
			"total": IntValue(100 - i),
		})
		if err := store.Create(ctx, e); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := store.ReadAll(ctx, Query{Kind: orderKind, OrderBy: []Order{Asc("total")}}, 2)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 entities, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if compareValues(got[i-1].Get("total"), got[i].Get("total")) > 0 {
			t.Fatalf("results not ascending at %d: %#v before %#v", i, got[i-1].Get("total"), got[i].Get("total"))
		}
	}
}

// TestStore_ReadAllValidation tests the batch size preconditions
func TestStore_ReadAllValidation(t *testing.T) {
	store, _ := newTestStore(t, false)
	ctx := context.Background()

	if _, err := store.ReadAll(ctx, Query{Kind: orderKind}, 0); !IsInvalidArgument(err) {
		t.Errorf("expected invalid-argument for zero batch size, got %v", err)
	}
	if _, err := store.ReadAll(ctx, Query{Kind: orderKind, Limit: 5}, 10); !IsInvalidArgument(err) {
		t.Errorf("expected invalid-argument for limit below batch size, got %v", err)
	}
	if _, err := store.ReadAll(ctx, Query{Kind: orderKind, Limit: 10}, 10); err != nil {
		t.Errorf("limit equal to batch size must be accepted: %v", err)
	}
}

// TestStore_DropKind tests that only the named kind is removed
func TestStore_DropKind(t *testing.T) {
	store, provider := newTestStore(t, false)
	ctx := context.Background()
	customerKind := MustKind("customer")

	for i := 0; i < 3; i++ {
		if err := store.Create(ctx, testEntity(t, store, ctx, orderKind, fmt.Sprintf("o-%d", i), nil)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if err := store.Create(ctx, testEntity(t, store, ctx, customerKind, "c-1", nil)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.DropKind(ctx, orderKind); err != nil {
		t.Fatalf("DropKind failed: %v", err)
	}
	if provider.Len() != 1 {
		t.Errorf("expected only the customer entity to survive, got %d entities", provider.Len())
	}
}

// TestStore_MultitenantIsolation tests that tenants never observe each
// other's records
func TestStore_MultitenantIsolation(t *testing.T) {
	store, _ := newTestStore(t, true)
	ctxA := WithTenant(context.Background(), TenantValue("acme"))
	ctxB := WithTenant(context.Background(), TenantValue("globex"))

	if err := store.Create(ctxA, testEntity(t, store, ctxA, orderKind, "o-1", nil)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Create(ctxB, testEntity(t, store, ctxB, orderKind, "o-1", nil)); err != nil {
		t.Fatalf("same record id under another tenant must not conflict: %v", err)
	}

	keyB, _ := store.KeyFor(ctxB, orderKind, "o-1")
	got, err := store.Lookup(ctxA, []Key{keyB})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	// Tenant A holds B's key, so the lookup finds B's record; isolation
	// comes from A never being able to derive that key through the store.
	keyA, _ := store.KeyFor(ctxA, orderKind, "o-1")
	if keyA == keyB {
		t.Fatalf("keys for different tenants must differ")
	}
	if got[0] == nil {
		t.Fatalf("direct lookup by explicit key must succeed")
	}

	nsA, _ := store.Resolver().OfContext(ctxA)
	results, err := store.ReadAll(ctxA, Query{Namespace: nsA.String(), Kind: orderKind}, 10)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly tenant A's record, got %d", len(results))
	}
	if results[0].Key.Namespace != "Vacme" {
		t.Errorf("expected namespace Vacme, got %q", results[0].Key.Namespace)
	}
}

// TestStore_MultitenantWriteRequiresTenant tests the ambient-tenant
// precondition on writes
func TestStore_MultitenantWriteRequiresTenant(t *testing.T) {
	store, _ := newTestStore(t, true)
	e := &Entity{Key: Key{ProjectID: "test-project", Kind: "order", Name: "o-1"}, Properties: map[string]Value{}}
	if err := store.Create(context.Background(), e); !IsInvalidArgument(err) {
		t.Errorf("expected invalid-argument without ambient tenant, got %v", err)
	}
	if _, err := store.KeyFor(context.Background(), orderKind, "o-1"); !IsInvalidArgument(err) {
		t.Errorf("expected invalid-argument from KeyFor, got %v", err)
	}
}

// TestStore_EmptyBulkOps tests that empty writes and deletes are no-ops
func TestStore_EmptyBulkOps(t *testing.T) {
	provider := newCountingProvider()
	store, err := NewStore(provider, StoreConfig{ProjectID: "test-project"})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ctx := context.Background()
	if err := store.Create(ctx); err != nil {
		t.Errorf("empty create must be a no-op: %v", err)
	}
	if err := store.DeleteKeys(ctx); err != nil {
		t.Errorf("empty delete must be a no-op: %v", err)
	}
	if provider.putCalls != 0 || provider.deleteCalls != 0 {
		t.Errorf("no provider calls expected, got put=%d delete=%d", provider.putCalls, provider.deleteCalls)
	}
}

// TestChunks tests the chunk boundary arithmetic
func TestChunks(t *testing.T) {
	cases := []struct {
		n, size int
		want    []int
	}{
		{0, 10, nil},
		{1, 10, []int{1}},
		{10, 10, []int{10}},
		{11, 10, []int{10, 1}},
		{25, 10, []int{10, 10, 5}},
	}
	for _, tc := range cases {
		items := make([]int, tc.n)
		got := chunks(items, tc.size)
		if len(got) != len(tc.want) {
			t.Errorf("n=%d size=%d: expected %d chunks, got %d", tc.n, tc.size, len(tc.want), len(got))
			continue
		}
		for i, c := range got {
			if len(c) != tc.want[i] {
				t.Errorf("n=%d size=%d chunk %d: expected len %d, got %d", tc.n, tc.size, i, tc.want[i], len(c))
			}
		}
	}
}
