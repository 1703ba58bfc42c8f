package tenantstore

import (
	"context"
	"strings"
	"testing"
)

// TestNamespaceResolver_RoundTrip tests that every tenant variant survives an
// encode-then-decode cycle unchanged
func TestNamespaceResolver_RoundTrip(t *testing.T) {
	r := NewNamespaceResolver("test-project", true)
	cases := []struct {
		name   string
		tenant TenantID
		label  string
	}{
		{"value", TenantValue("acme-7"), "Vacme-7"},
		{"email", TenantEmail("ops@acme.com"), "Eops-at-acme.com"},
		{"domain", TenantDomain("acme.com"), "Dacme.com"},
	}
	for _, tc := range cases {
		ns, err := r.Of(tc.tenant)
		if err != nil {
			t.Fatalf("%s: resolve failed: %v", tc.name, err)
		}
		if ns.String() != tc.label {
			t.Errorf("%s: expected label %q, got %q", tc.name, tc.label, ns.String())
		}
		back, err := r.TenantOf(ns)
		if err != nil {
			t.Fatalf("%s: decode failed: %v", tc.name, err)
		}
		if back != tc.tenant {
			t.Errorf("%s: round trip changed tenant: %+v -> %+v", tc.name, tc.tenant, back)
		}
	}
}

// TestNamespaceResolver_SingleTenant tests that single-tenant mode collapses
// every resolution to the empty namespace
func TestNamespaceResolver_SingleTenant(t *testing.T) {
	r := NewNamespaceResolver("test-project", false)
	ns, err := r.Of(TenantEmail("ops@acme.com"))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !ns.IsEmpty() {
		t.Errorf("expected empty namespace in single-tenant mode, got %q", ns.String())
	}
	ns, err = r.Of(TenantID{})
	if err != nil {
		t.Fatalf("zero tenant must be allowed in single-tenant mode: %v", err)
	}
	if !ns.IsEmpty() {
		t.Errorf("expected empty namespace, got %q", ns.String())
	}
}

// TestNamespaceResolver_ZeroTenantRejected tests the multitenant precondition
func TestNamespaceResolver_ZeroTenantRejected(t *testing.T) {
	r := NewNamespaceResolver("test-project", true)
	if _, err := r.Of(TenantID{}); !IsInvalidArgument(err) {
		t.Errorf("expected invalid-argument error, got %v", err)
	}
}

// TestDecodeTenant_UnknownPrefix tests that foreign labels are refused rather
// than guessed at
func TestDecodeTenant_UnknownPrefix(t *testing.T) {
	r := NewNamespaceResolver("test-project", true)
	if _, err := r.TenantOf(Namespace{value: "Xwhatever"}); !IsInvalidArgument(err) {
		t.Errorf("expected invalid-argument error, got %v", err)
	}
	if _, err := r.TenantOf(Namespace{}); !IsInvalidArgument(err) {
		t.Errorf("expected invalid-argument error for empty label, got %v", err)
	}
}

// upperConverter encodes tenants as upper-cased values, for testing the
// custom converter hook.
type upperConverter struct{}

func (upperConverter) Encode(t TenantID) string {
	return "U" + strings.ToUpper(t.String())
}

func (upperConverter) Decode(ns string) (TenantID, error) {
	if !strings.HasPrefix(ns, "U") {
		return TenantID{}, ErrInvalidArgument
	}
	return TenantValue(strings.ToLower(ns[1:])), nil
}

// TestNamespaceConverter_Custom tests that a registered converter replaces
// the built-in encodings for its project only
func TestNamespaceConverter_Custom(t *testing.T) {
	RegisterNamespaceConverter("custom-project", upperConverter{})
	defer UnregisterNamespaceConverter("custom-project")

	custom := NewNamespaceResolver("custom-project", true)
	ns, err := custom.Of(TenantValue("acme"))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if ns.String() != "UACME" {
		t.Errorf("expected custom encoding UACME, got %q", ns.String())
	}
	back, err := custom.TenantOf(ns)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if back != TenantValue("acme") {
		t.Errorf("custom round trip changed tenant: %+v", back)
	}

	// Other projects keep the built-in scheme.
	plain := NewNamespaceResolver("other-project", true)
	ns, err = plain.Of(TenantValue("acme"))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if ns.String() != "Vacme" {
		t.Errorf("converter leaked across projects: got %q", ns.String())
	}
}

// TestWithTenant_ContextRoundTrip tests the ambient tenant plumbing
func TestWithTenant_ContextRoundTrip(t *testing.T) {
	ctx := WithTenant(context.Background(), TenantDomain("acme.com"))
	if got := TenantFromContext(ctx); got != TenantDomain("acme.com") {
		t.Errorf("expected ambient tenant, got %+v", got)
	}
	if got := TenantFromContext(context.Background()); !got.IsZero() {
		t.Errorf("expected zero tenant from bare context, got %+v", got)
	}

	r := NewNamespaceResolver("test-project", true)
	ns, err := r.OfContext(ctx)
	if err != nil {
		t.Fatalf("OfContext failed: %v", err)
	}
	if ns.String() != "Dacme.com" {
		t.Errorf("expected Dacme.com, got %q", ns.String())
	}
}

// TestNamespaceResolver_FromKey tests namespace extraction from provider keys
func TestNamespaceResolver_FromKey(t *testing.T) {
	r := NewNamespaceResolver("test-project", true)
	ns, ok := r.FromKey(Key{ProjectID: "test-project", Namespace: "Vacme", Kind: "order", Name: "o-1"})
	if !ok || ns.String() != "Vacme" {
		t.Errorf("expected Vacme, got %q (ok=%v)", ns.String(), ok)
	}
	if _, ok := r.FromKey(Key{ProjectID: "test-project", Kind: "order", Name: "o-1"}); ok {
		t.Errorf("key without namespace must report false")
	}
}
