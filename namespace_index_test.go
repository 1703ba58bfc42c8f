package tenantstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func seedNamespace(t *testing.T, provider *MemoryProvider, ns string) {
	t.Helper()
	e := NewEntity(Key{ProjectID: "test-project", Namespace: ns, Kind: "order", Name: "o-1"})
	if err := provider.Put(context.Background(), PutUpsert, []*Entity{e}); err != nil {
		t.Fatalf("seed put failed: %v", err)
	}
}

// TestNamespaceIndex_LazyPopulate tests that stored namespaces surface on
// first access without any prior registration
func TestNamespaceIndex_LazyPopulate(t *testing.T) {
	provider := NewMemoryProvider()
	seedNamespace(t, provider, "Vacme")
	seedNamespace(t, provider, "Eops-at-globex.com")

	ix := NewNamespaceIndex(provider, NewNamespaceResolver("test-project", true))
	all, err := ix.All(context.Background())
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tenants, got %d", len(all))
	}
	seen := make(map[TenantID]bool)
	for _, tenant := range all {
		seen[tenant] = true
	}
	if !seen[TenantValue("acme")] || !seen[TenantEmail("ops@globex.com")] {
		t.Errorf("decoded tenants wrong: %v", all)
	}
}

// TestNamespaceIndex_KeepBeforeWrite tests that a reserved tenant is known
// even though nothing exists under its namespace yet
func TestNamespaceIndex_KeepBeforeWrite(t *testing.T) {
	provider := NewMemoryProvider()
	ix := NewNamespaceIndex(provider, NewNamespaceResolver("test-project", true))

	ix.Keep(TenantDomain("acme.com"))
	ix.Keep(TenantDomain("acme.com")) // idempotent
	ix.Keep(TenantID{})               // zero tenant is ignored

	all, err := ix.All(context.Background())
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 1 || all[0] != TenantDomain("acme.com") {
		t.Errorf("expected the kept tenant only, got %v", all)
	}
}

// TestNamespaceIndex_Contains tests membership with and without population
func TestNamespaceIndex_Contains(t *testing.T) {
	provider := NewMemoryProvider()
	seedNamespace(t, provider, "Vacme")
	ix := NewNamespaceIndex(provider, NewNamespaceResolver("test-project", true))
	ctx := context.Background()

	ok, err := ix.Contains(ctx, Namespace{value: "Vacme"})
	if err != nil || !ok {
		t.Errorf("expected stored namespace to be known (ok=%v err=%v)", ok, err)
	}
	ok, err = ix.Contains(ctx, Namespace{value: "Vglobex"})
	if err != nil || ok {
		t.Errorf("expected unknown namespace to report false (ok=%v err=%v)", ok, err)
	}
	if _, err := ix.Contains(ctx, Namespace{value: "Xbogus"}); !IsInvalidArgument(err) {
		t.Errorf("expected invalid-argument for undecodable label, got %v", err)
	}
}

// TestNamespaceIndex_SingleTenantLabelSkipped tests that the empty label of
// single-tenant data never enters the index
func TestNamespaceIndex_SingleTenantLabelSkipped(t *testing.T) {
	provider := NewMemoryProvider()
	seedNamespace(t, provider, "")
	seedNamespace(t, provider, "Vacme")

	ix := NewNamespaceIndex(provider, NewNamespaceResolver("test-project", true))
	all, err := ix.All(context.Background())
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 1 || all[0] != TenantValue("acme") {
		t.Errorf("expected only the namespaced tenant, got %v", all)
	}
}

// TestNamespaceIndex_Concurrent tests that concurrent Keep and All calls
// never race or lose registrations
func TestNamespaceIndex_Concurrent(t *testing.T) {
	provider := NewMemoryProvider()
	seedNamespace(t, provider, "Vseed")
	ix := NewNamespaceIndex(provider, NewNamespaceResolver("test-project", true))
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			ix.Keep(TenantValue(fmt.Sprintf("tenant-%d", i)))
		}(i)
		go func() {
			defer wg.Done()
			if _, err := ix.All(ctx); err != nil {
				t.Errorf("All failed: %v", err)
			}
		}()
	}
	wg.Wait()

	all, err := ix.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != writers+1 {
		t.Errorf("expected %d tenants, got %d", writers+1, len(all))
	}
}

// TestNamespaceIndex_Close tests idempotent shutdown
func TestNamespaceIndex_Close(t *testing.T) {
	ix := NewNamespaceIndex(NewMemoryProvider(), NewNamespaceResolver("test-project", true))
	if err := ix.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := ix.Close(); err != nil {
		t.Errorf("second Close must not fail: %v", err)
	}
}

// TestStore_WritesFeedIndex tests that every multitenant write registers
// its tenant with the store's index
func TestStore_WritesFeedIndex(t *testing.T) {
	store, _ := newTestStore(t, true)
	ctx := WithTenant(context.Background(), TenantValue("acme"))

	if err := store.Create(ctx, testEntity(t, store, ctx, orderKind, "o-1", nil)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	all, err := store.Index().All(context.Background())
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 1 || all[0] != TenantValue("acme") {
		t.Errorf("expected the writing tenant in the index, got %v", all)
	}
}
