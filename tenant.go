package tenantstore

// TenantID identifies a tenant by exactly one of three payload variants:
// an opaque string value, an email address, or an internet domain.
// The populated variant selects the namespace encoding.
type TenantID struct {
	value  string
	email  string
	domain string
}

// TenantValue creates a tenant identifier from an opaque string value
func TenantValue(v string) TenantID {
	return TenantID{value: v}
}

// TenantEmail creates a tenant identifier from an email address
func TenantEmail(e string) TenantID {
	return TenantID{email: e}
}

// TenantDomain creates a tenant identifier from an internet domain
func TenantDomain(d string) TenantID {
	return TenantID{domain: d}
}

// Value returns the opaque-value payload, if that variant is populated
func (t TenantID) Value() (string, bool) {
	return t.value, t.value != ""
}

// Email returns the email payload, if that variant is populated
func (t TenantID) Email() (string, bool) {
	return t.email, t.email != ""
}

// Domain returns the domain payload, if that variant is populated
func (t TenantID) Domain() (string, bool) {
	return t.domain, t.domain != ""
}

// IsZero reports whether no variant is populated. A zero tenant identifier
// is rejected when resolving a multitenant namespace.
func (t TenantID) IsZero() bool {
	return t.value == "" && t.email == "" && t.domain == ""
}

// String returns the populated payload regardless of variant
func (t TenantID) String() string {
	switch {
	case t.email != "":
		return t.email
	case t.domain != "":
		return t.domain
	default:
		return t.value
	}
}

// tenantContextKey carries the ambient tenant through a context.Context.
type tenantContextKey struct{}
