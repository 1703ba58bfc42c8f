package tenantstore

import (
	"context"
	"time"
)

// Store is the operational façade over a Provider: it scopes keys by
// tenant namespace, chunks bulk operations at the provider's request
// ceilings, and hands out lazy iterators over query results.
//
// A Store is safe for concurrent use; transactions obtained from it are
// not.
type Store struct {
	provider Provider
	config   StoreConfig
	resolver *NamespaceResolver
	columns  *ColumnMapping
	index    *NamespaceIndex
	logger   Logger
	metrics  Metrics
}

// NewStore creates a store with no-op logger and metrics
func NewStore(provider Provider, config StoreConfig) (*Store, error) {
	return NewStoreWithObservability(provider, config, &NoOpLogger{}, &NoOpMetrics{})
}

// NewStoreWithLogger creates a store with a custom logger
func NewStoreWithLogger(provider Provider, config StoreConfig, logger Logger) (*Store, error) {
	return NewStoreWithObservability(provider, config, logger, &NoOpMetrics{})
}

// NewStoreWithObservability creates a store with logging and metrics
func NewStoreWithObservability(provider Provider, config StoreConfig, logger Logger, metrics Metrics) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	resolver := NewNamespaceResolver(config.ProjectID, config.Multitenant)
	return &Store{
		provider: provider,
		config:   config,
		resolver: resolver,
		columns:  NewColumnMapping(),
		index:    NewNamespaceIndex(provider, resolver),
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// SetLogger updates the logger for this store
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// SetMetrics updates the metrics collector for this store
func (s *Store) SetMetrics(metrics Metrics) {
	s.metrics = metrics
}

// Columns returns the store's column value mapping for rule registration
func (s *Store) Columns() *ColumnMapping {
	return s.columns
}

// Resolver returns the store's namespace resolver
func (s *Store) Resolver() *NamespaceResolver {
	return s.resolver
}

// Index returns the store's namespace index
func (s *Store) Index() *NamespaceIndex {
	return s.index
}

// Provider returns the underlying provider (for administrative use)
func (s *Store) Provider() Provider {
	return s.provider
}

// namespaceFor resolves the ambient tenant's namespace for one call.
// Writes also register the tenant with the namespace index, so the index
// reflects every namespace this process has ever written under.
func (s *Store) namespaceFor(ctx context.Context, write bool) (Namespace, error) {
	ns, err := s.resolver.OfContext(ctx)
	if err != nil {
		return Namespace{}, err
	}
	if write && s.resolver.Multitenant() {
		s.index.Keep(TenantFromContext(ctx))
		s.metrics.Increment(MetricNamespaceKept)
	}
	return ns, nil
}

// KeyFor composes a provider key for one record, scoped to the caller's
// current tenant namespace.
func (s *Store) KeyFor(ctx context.Context, kind Kind, id RecordID) (Key, error) {
	f, err := s.KeyFactory(ctx, kind)
	if err != nil {
		return Key{}, err
	}
	return f.NewKey(id), nil
}

// KeyFactory returns a key builder pre-scoped to kind and the caller's
// current tenant namespace.
func (s *Store) KeyFactory(ctx context.Context, kind Kind) (*KeyFactory, error) {
	if kind.IsZero() {
		return nil, WithContext(ErrInvalidKind, map[string]interface{}{
			"reason": "kind must be set",
		})
	}
	ns, err := s.namespaceFor(ctx, false)
	if err != nil {
		return nil, err
	}
	return &KeyFactory{
		projectID: s.config.ProjectID,
		namespace: ns.String(),
		kind:      kind,
	}, nil
}

// Create writes entities that must not exist yet. An existing key
// surfaces the provider's existence conflict unmodified; retrying is the
// caller's decision.
func (s *Store) Create(ctx context.Context, entities ...*Entity) error {
	return s.write(ctx, PutInsert, entities)
}

// Update writes entities that must already exist
func (s *Store) Update(ctx context.Context, entities ...*Entity) error {
	return s.write(ctx, PutUpdate, entities)
}

// CreateOrUpdate writes entities unconditionally
func (s *Store) CreateOrUpdate(ctx context.Context, entities ...*Entity) error {
	return s.write(ctx, PutUpsert, entities)
}

// write chunks a bulk write at the provider's entities-per-request
// ceiling. Earlier chunks that committed stay committed if a later chunk
// fails; there is no cross-chunk atomicity.
func (s *Store) write(ctx context.Context, mode PutMode, entities []*Entity) error {
	if len(entities) == 0 {
		return nil
	}
	if _, err := s.namespaceFor(ctx, true); err != nil {
		return err
	}

	start := time.Now()
	batches := 0
	for _, batch := range chunks(entities, MaxEntitiesPerWrite) {
		if err := s.provider.Put(ctx, mode, batch); err != nil {
			s.metrics.Increment(MetricWriteError)
			return err
		}
		batches++
	}
	s.metrics.Timing(MetricWriteDuration, time.Since(start))
	s.metrics.Increment(MetricWriteSuccess)
	s.metrics.Histogram(MetricWriteBatches, float64(batches))
	s.logger.Debug("bulk write applied",
		"entities", len(entities),
		"batches", batches,
		"mode", int(mode),
	)
	return nil
}

// DeleteKeys removes entities by key, chunked at the provider's
// entities-per-delete ceiling.
func (s *Store) DeleteKeys(ctx context.Context, keys ...Key) error {
	if len(keys) == 0 {
		return nil
	}

	start := time.Now()
	batches := 0
	for _, batch := range chunks(keys, MaxEntitiesPerDelete) {
		if err := s.provider.Delete(ctx, batch); err != nil {
			s.metrics.Increment(MetricDeleteError)
			return err
		}
		batches++
	}
	s.metrics.Timing(MetricDeleteDuration, time.Since(start))
	s.metrics.Increment(MetricDeleteSuccess)
	s.metrics.Histogram(MetricDeleteBatches, float64(batches))
	s.logger.Debug("bulk delete applied", "keys", len(keys), "batches", batches)
	return nil
}

// Lookup fetches entities by key, returning results in the same order as
// the input keys with nil in place of any key not found. Callers
// correlate results positionally; both order and the nil placeholders are
// load-bearing.
func (s *Store) Lookup(ctx context.Context, keys []Key) ([]*Entity, error) {
	start := time.Now()
	found := make(map[Key]*Entity, len(keys))
	for _, batch := range chunks(keys, MaxKeysPerLookup) {
		part, err := s.provider.Lookup(ctx, batch)
		if err != nil {
			s.metrics.Increment(MetricLookupError)
			return nil, err
		}
		for k, e := range part {
			found[k] = e
		}
	}

	out := make([]*Entity, len(keys))
	for i, k := range keys {
		out[i] = found[k]
	}
	s.metrics.Timing(MetricLookupDuration, time.Since(start))
	s.metrics.Increment(MetricLookupSuccess)
	return out, nil
}

// Read returns a lazy iterator over a structured query's results. No
// provider call happens until the first HasNext or Next.
func (s *Store) Read(q Query) *LazyIterator {
	return newLazyIterator(s.provider, q, s.logger, s.metrics)
}

// ReadAll executes a query and materializes its results, consuming the
// provider cursor in pages of batchSize. batchSize must be positive, and
// a query-level limit smaller than batchSize cannot be honored by paging
// and is rejected.
func (s *Store) ReadAll(ctx context.Context, q Query, batchSize int) ([]*Entity, error) {
	if batchSize <= 0 {
		return nil, WithContext(ErrInvalidArgument, map[string]interface{}{
			"batchSize": batchSize,
			"reason":    "batch size must be positive",
		})
	}
	if q.Limit > 0 && q.Limit < batchSize {
		return nil, WithContext(ErrInvalidArgument, map[string]interface{}{
			"batchSize": batchSize,
			"limit":     q.Limit,
			"reason":    "query limit smaller than batch size cannot be paged",
		})
	}

	start := time.Now()
	cursor, err := s.provider.Run(ctx, q)
	if err != nil {
		return nil, err
	}

	var out []*Entity
	page := make([]*Entity, 0, batchSize)
	for {
		e, err := cursor.Next()
		if err == ErrIteratorDone {
			break
		}
		if err != nil {
			return nil, err
		}
		page = append(page, e)
		if len(page) == batchSize {
			out = append(out, page...)
			s.logger.Debug("query page consumed", "kind", q.Kind.String(), "size", len(page))
			page = page[:0]
		}
	}
	out = append(out, page...)

	s.metrics.Timing(MetricQueryDuration, time.Since(start), "kind", q.Kind.String())
	s.metrics.Histogram(MetricQueryResults, float64(len(out)), "kind", q.Kind.String())
	return out, nil
}

// DropKind deletes every entity of a kind in the caller's current tenant
// namespace. Administrative/test path; it still honors the delete
// ceiling, issuing ceil(n/MaxEntitiesPerDelete) provider calls.
func (s *Store) DropKind(ctx context.Context, kind Kind) error {
	ns, err := s.namespaceFor(ctx, false)
	if err != nil {
		return err
	}

	cursor, err := s.provider.Run(ctx, Query{
		Namespace: ns.String(),
		Kind:      kind,
		KeysOnly:  true,
	})
	if err != nil {
		return err
	}

	var keys []Key
	for {
		e, err := cursor.Next()
		if err == ErrIteratorDone {
			break
		}
		if err != nil {
			return err
		}
		keys = append(keys, e.Key)
	}
	s.logger.Info("dropping kind", "kind", kind.String(), "namespace", ns.String(), "entities", len(keys))
	return s.DeleteKeys(ctx, keys...)
}

// NewTransaction creates an inactive transaction wrapper bound to the
// caller's current tenant namespace. The wrapper must not be shared
// across goroutines.
func (s *Store) NewTransaction(ctx context.Context) (*Transaction, error) {
	ns, err := s.namespaceFor(ctx, false)
	if err != nil {
		return nil, err
	}
	return &Transaction{store: s, namespace: ns}, nil
}

// Close releases the store's resources, including the namespace index
// and the provider.
func (s *Store) Close() error {
	if err := s.index.Close(); err != nil {
		return err
	}
	return s.provider.Close()
}

// chunks splits items into consecutive slices of at most size elements
func chunks[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
