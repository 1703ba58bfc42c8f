// Package tenantstore maps a typed record storage abstraction onto a
// managed, schema-less cloud document database, handling the pieces the
// database itself does not: tenant isolation through namespace encoding,
// translation of composite (possibly disjunctive) column predicates into
// the AND-only structured queries the provider accepts, request chunking
// at provider batch ceilings, and transaction lifecycle discipline.
//
// # Overview
//
// The database is abstracted behind the narrow Provider interface; three
// implementations ship with the package:
//
//   - MemoryProvider: in-process, strongly consistent; unit tests and
//     local development
//   - RedisProvider: Redis-backed, filters evaluated client side
//   - DatastoreProvider: Google Cloud Datastore, the production target
//
// # Quick start
//
//	provider := tenantstore.NewMemoryProvider()
//	store, _ := tenantstore.NewStore(provider, tenantstore.StoreConfig{
//		ProjectID:   "demo",
//		Multitenant: true,
//	})
//	ctx := tenantstore.WithTenant(context.Background(), tenantstore.TenantDomain("acme.example"))
//
//	records, _ := tenantstore.NewRecordStorage(store, tenantstore.MustKind("order"))
//	records.Write(ctx, tenantstore.Record{
//		ID:      tenantstore.NewID(),
//		Payload: payload,
//		Columns: map[string]interface{}{"status": "open", "total": 125},
//	})
//
//	open, _ := records.Query(ctx, tenantstore.RecordQuery{
//		Filters: []tenantstore.CompositeFilter{
//			tenantstore.All(tenantstore.Eq("status", "open")),
//		},
//		OrderBy: []tenantstore.Order{tenantstore.Desc("total")},
//	})
//
// Every operation is scoped to the tenant carried by the context. In
// multitenant mode the tenant identifier (plain value, email address, or
// internet domain) is encoded into the provider namespace with a type
// prefix; the encoding round-trips, so namespaces enumerate back into
// tenant identifiers through the NamespaceIndex.
//
// The provider is eventually consistent: a write is not promised to be
// visible to an immediately following query. AwaitConsistency exists for
// tests and administrative paths; production callers must tolerate
// staleness.
package tenantstore
