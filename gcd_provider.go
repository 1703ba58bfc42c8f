package tenantstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DatastoreConfig contains Cloud Datastore-specific configuration
type DatastoreConfig struct {
	ProjectID       string
	CredentialsFile string // Path to service account JSON file (optional, uses ADC if empty)
	Endpoint        string // Custom endpoint (for the local emulator)
}

// DatastoreProvider implements Provider on Google Cloud Datastore. This
// is the production provider: namespaces, kinds, property filters,
// keys-only queries and transactions all map onto native constructs, and
// its per-request entity ceiling is where MaxEntitiesPerWrite comes from.
type DatastoreProvider struct {
	client    *datastore.Client
	projectID string
}

// NewDatastoreProvider creates a new Cloud Datastore provider
func NewDatastoreProvider(ctx context.Context, cfg DatastoreConfig) (*DatastoreProvider, error) {
	if cfg.ProjectID == "" {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "ProjectID",
			"reason": "project id is required",
		})
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := datastore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore client: %w", err)
	}
	return &DatastoreProvider{client: client, projectID: cfg.ProjectID}, nil
}

func (p *DatastoreProvider) Lookup(ctx context.Context, keys []Key) (map[Key]*Entity, error) {
	nativeKeys := make([]*datastore.Key, len(keys))
	for i, k := range keys {
		nativeKeys[i] = nativeKey(k)
	}
	props := make([]datastore.PropertyList, len(keys))
	err := p.client.GetMulti(ctx, nativeKeys, props)

	found := make(map[Key]*Entity)
	var multi datastore.MultiError
	switch {
	case err == nil:
		for i := range keys {
			found[keys[i]] = entityFromProperties(keys[i], props[i])
		}
		return found, nil
	case errors.As(err, &multi):
		for i, itemErr := range multi {
			if itemErr == nil {
				found[keys[i]] = entityFromProperties(keys[i], props[i])
				continue
			}
			if errors.Is(itemErr, datastore.ErrNoSuchEntity) {
				continue
			}
			return nil, itemErr
		}
		return found, nil
	default:
		return nil, translateDatastoreError(err)
	}
}

func (p *DatastoreProvider) Put(ctx context.Context, mode PutMode, entities []*Entity) error {
	muts := make([]*datastore.Mutation, len(entities))
	for i, e := range entities {
		muts[i] = nativeMutation(Mutation{Mode: mode, Entity: e})
	}
	if _, err := p.client.Mutate(ctx, muts...); err != nil {
		return translateDatastoreError(err)
	}
	return nil
}

func (p *DatastoreProvider) Delete(ctx context.Context, keys []Key) error {
	nativeKeys := make([]*datastore.Key, len(keys))
	for i, k := range keys {
		nativeKeys[i] = nativeKey(k)
	}
	if err := p.client.DeleteMulti(ctx, nativeKeys); err != nil {
		return translateDatastoreError(err)
	}
	return nil
}

func (p *DatastoreProvider) Run(ctx context.Context, q Query) (Cursor, error) {
	query := datastore.NewQuery(q.Kind.String()).Namespace(q.Namespace)
	for _, f := range q.Filters {
		query = query.FilterField(f.Property, f.Op.String(), nativeValue(f.Value))
	}
	for _, o := range q.OrderBy {
		if o.Descending {
			query = query.Order("-" + o.Column)
		} else {
			query = query.Order(o.Column)
		}
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.KeysOnly {
		query = query.KeysOnly()
	}
	return &datastoreCursor{
		iter:     p.client.Run(ctx, query),
		keysOnly: q.KeysOnly,
		project:  p.projectID,
	}, nil
}

func (p *DatastoreProvider) Namespaces(ctx context.Context) ([]string, error) {
	query := datastore.NewQuery("__namespace__").KeysOnly()
	it := p.client.Run(ctx, query)

	var out []string
	for {
		k, err := it.Next(nil)
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, translateDatastoreError(err)
		}
		// The default namespace appears as a numeric key; only named
		// keys are tenant namespaces.
		if k.Name != "" {
			out = append(out, k.Name)
		}
	}
}

func (p *DatastoreProvider) NewTransaction(ctx context.Context) (ProviderTx, error) {
	tx, err := p.client.NewTransaction(ctx)
	if err != nil {
		return nil, translateDatastoreError(err)
	}
	return &datastoreTx{tx: tx}, nil
}

func (p *DatastoreProvider) Close() error {
	return p.client.Close()
}

type datastoreTx struct {
	tx *datastore.Transaction
}

func (t *datastoreTx) Get(ctx context.Context, keys []Key) (map[Key]*Entity, error) {
	nativeKeys := make([]*datastore.Key, len(keys))
	for i, k := range keys {
		nativeKeys[i] = nativeKey(k)
	}
	props := make([]datastore.PropertyList, len(keys))
	err := t.tx.GetMulti(nativeKeys, props)

	found := make(map[Key]*Entity)
	var multi datastore.MultiError
	switch {
	case err == nil:
		for i := range keys {
			found[keys[i]] = entityFromProperties(keys[i], props[i])
		}
		return found, nil
	case errors.As(err, &multi):
		for i, itemErr := range multi {
			if itemErr == nil {
				found[keys[i]] = entityFromProperties(keys[i], props[i])
				continue
			}
			if errors.Is(itemErr, datastore.ErrNoSuchEntity) {
				continue
			}
			return nil, itemErr
		}
		return found, nil
	default:
		return nil, translateDatastoreError(err)
	}
}

func (t *datastoreTx) Commit(ctx context.Context, mutations []Mutation) error {
	muts := make([]*datastore.Mutation, len(mutations))
	for i, m := range mutations {
		muts[i] = nativeMutation(m)
	}
	if len(muts) > 0 {
		if _, err := t.tx.Mutate(muts...); err != nil {
			t.tx.Rollback()
			return translateDatastoreError(err)
		}
	}
	if _, err := t.tx.Commit(); err != nil {
		return translateDatastoreError(err)
	}
	return nil
}

func (t *datastoreTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback()
}

type datastoreCursor struct {
	iter     *datastore.Iterator
	keysOnly bool
	project  string
}

func (c *datastoreCursor) Next() (*Entity, error) {
	if c.keysOnly {
		k, err := c.iter.Next(nil)
		if err == iterator.Done {
			return nil, ErrIteratorDone
		}
		if err != nil {
			return nil, translateDatastoreError(err)
		}
		return NewEntity(keyFromNative(c.project, k)), nil
	}

	var props datastore.PropertyList
	k, err := c.iter.Next(&props)
	if err == iterator.Done {
		return nil, ErrIteratorDone
	}
	if err != nil {
		return nil, translateDatastoreError(err)
	}
	return entityFromProperties(keyFromNative(c.project, k), props), nil
}

// Conversions between this layer's model and the native client types.

func nativeKey(k Key) *datastore.Key {
	nk := datastore.NameKey(k.Kind, k.Name, nil)
	nk.Namespace = k.Namespace
	return nk
}

func keyFromNative(projectID string, k *datastore.Key) Key {
	return Key{
		ProjectID: projectID,
		Namespace: k.Namespace,
		Kind:      k.Kind,
		Name:      k.Name,
	}
}

func nativeMutation(m Mutation) *datastore.Mutation {
	if m.Delete != nil {
		return datastore.NewDelete(nativeKey(*m.Delete))
	}
	props := propertiesFromEntity(m.Entity)
	switch m.Mode {
	case PutInsert:
		return datastore.NewInsert(nativeKey(m.Entity.Key), &props)
	case PutUpdate:
		return datastore.NewUpdate(nativeKey(m.Entity.Key), &props)
	default:
		return datastore.NewUpsert(nativeKey(m.Entity.Key), &props)
	}
}

func propertiesFromEntity(e *Entity) datastore.PropertyList {
	props := make(datastore.PropertyList, 0, len(e.Properties))
	for name, v := range e.Properties {
		props = append(props, datastore.Property{
			Name:  name,
			Value: nativeValue(v),
		})
	}
	return props
}

func entityFromProperties(k Key, props datastore.PropertyList) *Entity {
	e := NewEntity(k)
	for _, prop := range props {
		e.Properties[prop.Name] = valueFromNative(prop.Value)
	}
	return e
}

func nativeValue(v Value) interface{} {
	switch tv := v.(type) {
	case StringValue:
		return string(tv)
	case IntValue:
		return int64(tv)
	case FloatValue:
		return float64(tv)
	case BoolValue:
		return bool(tv)
	case BytesValue:
		return []byte(tv)
	case TimestampValue:
		return time.Time(tv)
	}
	return nil
}

func valueFromNative(v interface{}) Value {
	switch tv := v.(type) {
	case string:
		return StringValue(tv)
	case int64:
		return IntValue(tv)
	case float64:
		return FloatValue(tv)
	case bool:
		return BoolValue(tv)
	case []byte:
		return BytesValue(tv)
	case time.Time:
		return TimestampValue(tv)
	}
	return NullValue{}
}

// translateDatastoreError maps provider status codes onto this layer's
// error taxonomy so callers branch on sentinels, not grpc codes.
func translateDatastoreError(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.AlreadyExists:
		return WithContext(ErrAlreadyExists, map[string]interface{}{"cause": err.Error()})
	case codes.NotFound:
		return WithContext(ErrNotFound, map[string]interface{}{"cause": err.Error()})
	case codes.Unavailable, codes.DeadlineExceeded:
		return WithContext(ErrProviderUnavailable, map[string]interface{}{"cause": err.Error()})
	}
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return WithContext(ErrNotFound, map[string]interface{}{"cause": err.Error()})
	}
	return err
}
