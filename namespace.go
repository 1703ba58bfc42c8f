package tenantstore

import (
	"context"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// Namespace is the per-tenant partition label attached to provider keys.
// It is derived from a TenantID, never stored as data on its own.
type Namespace struct {
	value string
}

// Namespace type prefixes. These are part of the stored key layout and
// participate in sort order; changing them orphans existing data.
const (
	valuePrefix  = "V"
	emailPrefix  = "E"
	domainPrefix = "D"

	emailAtReplacement = "-at-"
)

// NamespaceConverter is the customization point for deployments whose
// tenant identifiers need an encoding the built-ins do not cover.
// Encode and Decode must be mutual inverses.
type NamespaceConverter interface {
	Encode(t TenantID) string
	Decode(ns string) (TenantID, error)
}

// converterRegistry maps a project scope to its custom converter.
var converterRegistry = xsync.NewMapOf[string, NamespaceConverter]()

// RegisterNamespaceConverter installs a custom converter for a project.
// The converter replaces the built-in encodings for that project entirely.
func RegisterNamespaceConverter(projectID string, c NamespaceConverter) {
	converterRegistry.Store(projectID, c)
}

// UnregisterNamespaceConverter removes a project's custom converter
func UnregisterNamespaceConverter(projectID string) {
	converterRegistry.Delete(projectID)
}

// NamespaceResolver computes partition labels for one project scope.
type NamespaceResolver struct {
	projectID   string
	multitenant bool
}

// NewNamespaceResolver creates a resolver for the given project.
// In single-tenant mode every resolution yields the empty namespace.
func NewNamespaceResolver(projectID string, multitenant bool) *NamespaceResolver {
	return &NamespaceResolver{projectID: projectID, multitenant: multitenant}
}

// Multitenant reports whether the resolver partitions data per tenant
func (r *NamespaceResolver) Multitenant() bool {
	return r.multitenant
}

// Of resolves the namespace for a tenant. In single-tenant mode the result
// is always the empty namespace. In multitenant mode a zero tenant
// identifier is rejected.
func (r *NamespaceResolver) Of(t TenantID) (Namespace, error) {
	if !r.multitenant {
		return Namespace{}, nil
	}
	if t.IsZero() {
		return Namespace{}, WithContext(ErrInvalidArgument, map[string]interface{}{
			"reason": "tenant id must be set in multitenant mode",
		})
	}
	if conv, ok := converterRegistry.Load(r.projectID); ok {
		return Namespace{value: conv.Encode(t)}, nil
	}
	return Namespace{value: encodeTenant(t)}, nil
}

// FromKey reconstructs the namespace carried by a provider key.
// Returns false if the key carries no namespace component.
func (r *NamespaceResolver) FromKey(k Key) (Namespace, bool) {
	if k.Namespace == "" {
		return Namespace{}, false
	}
	return Namespace{value: k.Namespace}, true
}

// TenantOf reverses the encoding back to the tenant identifier.
// Custom converters registered for the project take precedence over the
// built-in prefix scheme.
func (r *NamespaceResolver) TenantOf(ns Namespace) (TenantID, error) {
	if conv, ok := converterRegistry.Load(r.projectID); ok {
		return conv.Decode(ns.value)
	}
	return decodeTenant(ns.value)
}

// OfContext resolves the namespace for the tenant carried by ctx.
// A context without a tenant resolves like a zero tenant identifier.
func (r *NamespaceResolver) OfContext(ctx context.Context) (Namespace, error) {
	return r.Of(TenantFromContext(ctx))
}

func encodeTenant(t TenantID) string {
	if email, ok := t.Email(); ok {
		return emailPrefix + strings.ReplaceAll(email, "@", emailAtReplacement)
	}
	if domain, ok := t.Domain(); ok {
		return domainPrefix + domain
	}
	v, _ := t.Value()
	return valuePrefix + v
}

func decodeTenant(ns string) (TenantID, error) {
	if ns == "" {
		return TenantID{}, WithContext(ErrInvalidArgument, map[string]interface{}{
			"reason": "cannot decode tenant from empty namespace",
		})
	}
	prefix, rest := ns[:1], ns[1:]
	switch prefix {
	case emailPrefix:
		return TenantEmail(strings.ReplaceAll(rest, emailAtReplacement, "@")), nil
	case domainPrefix:
		return TenantDomain(rest), nil
	case valuePrefix:
		return TenantValue(rest), nil
	default:
		return TenantID{}, WithContext(ErrInvalidArgument, map[string]interface{}{
			"namespace": ns,
			"reason":    "unknown namespace type prefix",
		})
	}
}

// String returns the namespace label. Empty in single-tenant mode.
func (n Namespace) String() string {
	return n.value
}

// IsEmpty reports whether the namespace is the single-tenant empty label
func (n Namespace) IsEmpty() bool {
	return n.value == ""
}

// WithTenant returns a context carrying the tenant every subsequent store
// operation is scoped to.
func WithTenant(ctx context.Context, t TenantID) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, t)
}

// TenantFromContext extracts the ambient tenant, or the zero TenantID
func TenantFromContext(ctx context.Context) TenantID {
	t, _ := ctx.Value(tenantContextKey{}).(TenantID)
	return t
}
