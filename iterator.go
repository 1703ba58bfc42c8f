package tenantstore

import (
	"context"
	"time"
)

// LazyIterator is a pull-based iterator over a structured query. The
// provider is not contacted until the first HasNext or Next call; after
// exhaustion HasNext stays false and Next keeps returning
// ErrIteratorDone. Not safe for concurrent use.
type LazyIterator struct {
	provider Provider
	query    Query
	logger   Logger
	metrics  Metrics

	cursor  Cursor
	started bool
	next    *Entity
	ready   bool
	err     error
}

func newLazyIterator(provider Provider, q Query, logger Logger, metrics Metrics) *LazyIterator {
	return &LazyIterator{provider: provider, query: q, logger: logger, metrics: metrics}
}

// HasNext reports whether another entity is pending, fetching from the
// provider on first use. Repeated calls never re-fetch.
func (it *LazyIterator) HasNext(ctx context.Context) bool {
	if it.ready {
		return true
	}
	if it.err != nil {
		return false
	}
	if !it.started {
		it.start(ctx)
		if it.err != nil {
			return false
		}
	}
	e, err := it.cursor.Next()
	if err != nil {
		if err != ErrIteratorDone {
			it.logger.Error("query cursor failed", "kind", it.query.Kind.String(), "error", err)
		}
		it.err = err
		return false
	}
	it.next = e
	it.ready = true
	return true
}

// Next returns the next entity, or ErrIteratorDone once the result set is
// exhausted.
func (it *LazyIterator) Next(ctx context.Context) (*Entity, error) {
	if !it.HasNext(ctx) {
		if it.err != nil {
			return nil, it.err
		}
		return nil, ErrIteratorDone
	}
	e := it.next
	it.next = nil
	it.ready = false
	return e, nil
}

// Err returns the first non-exhaustion error the iterator hit, if any
func (it *LazyIterator) Err() error {
	if it.err == ErrIteratorDone {
		return nil
	}
	return it.err
}

func (it *LazyIterator) start(ctx context.Context) {
	it.started = true
	begin := time.Now()
	cursor, err := it.provider.Run(ctx, it.query)
	if err != nil {
		it.err = err
		return
	}
	it.cursor = cursor
	it.metrics.Timing(MetricQueryDuration, time.Since(begin), "kind", it.query.Kind.String())
	it.logger.Debug("query started", "kind", it.query.Kind.String(), "namespace", it.query.Namespace)
}
