package tenantstore

import (
	"context"
	"testing"
)

// TestMemoryProvider_PutAtomicity tests that one failing entity in a batch
// keeps the whole batch out
func TestMemoryProvider_PutAtomicity(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	taken := NewEntity(Key{ProjectID: "p", Kind: "order", Name: "o-1"})
	if err := p.Put(ctx, PutInsert, []*Entity{taken}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	fresh := NewEntity(Key{ProjectID: "p", Kind: "order", Name: "o-2"})
	err := p.Put(ctx, PutInsert, []*Entity{fresh, taken.Clone()})
	if !IsAlreadyExists(err) {
		t.Fatalf("expected existence conflict, got %v", err)
	}
	if p.Len() != 1 {
		t.Errorf("failed batch must apply nothing, store holds %d entities", p.Len())
	}
}

// TestMemoryProvider_CloneOnHandout tests that callers cannot mutate stored
// state through returned entities
func TestMemoryProvider_CloneOnHandout(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()
	key := Key{ProjectID: "p", Kind: "order", Name: "o-1"}

	e := NewEntity(key).Set("n", IntValue(1))
	if err := p.Put(ctx, PutUpsert, []*Entity{e}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	// Mutating the caller's copy after the put changes nothing.
	e.Set("n", IntValue(99))

	got, err := p.Lookup(ctx, []Key{key})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got[key].Get("n") != IntValue(1) {
		t.Errorf("stored state shared with caller: %#v", got[key].Get("n"))
	}
	// Mutating the looked-up copy changes nothing either.
	got[key].Set("n", IntValue(77))
	again, _ := p.Lookup(ctx, []Key{key})
	if again[key].Get("n") != IntValue(1) {
		t.Errorf("stored state shared with reader: %#v", again[key].Get("n"))
	}
}

// TestMemoryProvider_NamespacesSorted tests distinct, sorted enumeration
func TestMemoryProvider_NamespacesSorted(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()
	for _, ns := range []string{"Vzeta", "Vacme", "Vzeta", ""} {
		e := NewEntity(Key{ProjectID: "p", Namespace: ns, Kind: "order", Name: "o-" + ns})
		if err := p.Put(ctx, PutUpsert, []*Entity{e}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	got, err := p.Namespaces(ctx)
	if err != nil {
		t.Fatalf("Namespaces failed: %v", err)
	}
	want := []string{"", "Vacme", "Vzeta"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

// TestMemoryProvider_ContextCancellation tests that a cancelled context
// short-circuits every operation
func TestMemoryProvider_ContextCancellation(t *testing.T) {
	p := NewMemoryProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Lookup(ctx, nil); err == nil {
		t.Errorf("expected context error from Lookup")
	}
	if err := p.Put(ctx, PutUpsert, nil); err == nil {
		t.Errorf("expected context error from Put")
	}
	if _, err := p.Run(ctx, Query{}); err == nil {
		t.Errorf("expected context error from Run")
	}
	if _, err := p.NewTransaction(ctx); err == nil {
		t.Errorf("expected context error from NewTransaction")
	}
}
