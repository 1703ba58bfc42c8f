package tenantstore

import (
	"context"
	"sync"
)

// NamespaceIndex is the registry of every tenant namespace known for one
// project scope. It populates itself lazily on first access by asking the
// provider which namespaces hold entities, and additionally remembers
// tenants registered through Keep before their first write — reserving a
// namespace is legitimate.
//
// One index instance belongs to one store; all methods are safe for
// concurrent use. The single monitor mutex deliberately spans the whole
// populate-then-mutate sequence: "populate if absent, then update" must
// be atomic as one logical step, not per map operation.
type NamespaceIndex struct {
	mu        sync.Mutex
	provider  Provider
	resolver  *NamespaceResolver
	known     map[TenantID]struct{}
	populated bool
	closed    bool
}

// NewNamespaceIndex creates an index that scans the given provider on
// first access
func NewNamespaceIndex(provider Provider, resolver *NamespaceResolver) *NamespaceIndex {
	return &NamespaceIndex{
		provider: provider,
		resolver: resolver,
		known:    make(map[TenantID]struct{}),
	}
}

// All returns a snapshot of every tenant observed so far, populating the
// index from the provider on first call.
func (ix *NamespaceIndex) All(ctx context.Context) ([]TenantID, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.ensurePopulated(ctx); err != nil {
		return nil, err
	}
	out := make([]TenantID, 0, len(ix.known))
	for t := range ix.known {
		out = append(out, t)
	}
	return out, nil
}

// Keep idempotently records a tenant as known. A later All or Contains
// reflects it even if nothing has been written under its namespace yet.
func (ix *NamespaceIndex) Keep(t TenantID) {
	if t.IsZero() {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.known[t] = struct{}{}
}

// Contains reports whether the namespace belongs to a known tenant,
// populating the index on first call.
func (ix *NamespaceIndex) Contains(ctx context.Context, ns Namespace) (bool, error) {
	t, err := ix.resolver.TenantOf(ns)
	if err != nil {
		return false, err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.known[t]; ok {
		return true, nil
	}
	if err := ix.ensurePopulated(ctx); err != nil {
		return false, err
	}
	_, ok := ix.known[t]
	return ok, nil
}

// Close releases the index. Idempotent; repeated calls never fail.
func (ix *NamespaceIndex) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.closed = true
	return nil
}

// ensurePopulated runs the one-time key-only provider scan.
// Caller must hold ix.mu.
func (ix *NamespaceIndex) ensurePopulated(ctx context.Context) error {
	if ix.populated {
		return nil
	}
	labels, err := ix.provider.Namespaces(ctx)
	if err != nil {
		return err
	}
	for _, label := range labels {
		if label == "" {
			// Single-tenant data carries no namespace.
			continue
		}
		t, err := ix.resolver.TenantOf(Namespace{value: label})
		if err != nil {
			return err
		}
		ix.known[t] = struct{}{}
	}
	ix.populated = true
	return nil
}
