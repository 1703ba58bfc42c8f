package tenantstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProvider implements Provider on Redis. Entities live as JSON
// values under one key per entity, with per-kind membership sets and a
// namespace set for enumeration. Structured queries fetch the kind's
// members and filter client side — Redis has no property filters, so the
// conjunctions the compiler emits are evaluated here.
//
// Transactions use optimistic WATCH/MULTI/EXEC: reads are watched and a
// commit fails if any read or written key changed underneath, which
// approximates the snapshot isolation the contract asks for.
type RedisProvider struct {
	client     *redis.Client
	projectID  string
	ownsClient bool
}

// txFailedAttempts bounds internal retries when EXEC aborts because a
// watched key changed.
const txFailedAttempts = 5

// NewRedisProvider creates a provider on an existing client
func NewRedisProvider(client *redis.Client, projectID string) *RedisProvider {
	return &RedisProvider{client: client, projectID: projectID}
}

// NewRedisProviderWithOwnedClient creates a provider that closes the
// client when the provider is closed
func NewRedisProviderWithOwnedClient(client *redis.Client, projectID string) *RedisProvider {
	return &RedisProvider{client: client, projectID: projectID, ownsClient: true}
}

func (p *RedisProvider) entityKey(k Key) string {
	return fmt.Sprintf("ts:%s:e:%s/%s/%s", p.projectID, k.Namespace, k.Kind, k.Name)
}

func (p *RedisProvider) kindKey(namespace, kind string) string {
	return fmt.Sprintf("ts:%s:k:%s/%s", p.projectID, namespace, kind)
}

func (p *RedisProvider) namespacesKey() string {
	return fmt.Sprintf("ts:%s:ns", p.projectID)
}

func (p *RedisProvider) Lookup(ctx context.Context, keys []Key) (map[Key]*Entity, error) {
	if len(keys) == 0 {
		return map[Key]*Entity{}, nil
	}
	entityKeys := make([]string, len(keys))
	for i, k := range keys {
		entityKeys[i] = p.entityKey(k)
	}
	raw, err := p.client.MGet(ctx, entityKeys...).Result()
	if err != nil {
		return nil, err
	}

	found := make(map[Key]*Entity)
	for i, item := range raw {
		if item == nil {
			continue
		}
		data, ok := item.(string)
		if !ok {
			continue
		}
		e, err := decodeEntity(keys[i], []byte(data))
		if err != nil {
			return nil, err
		}
		found[keys[i]] = e
	}
	return found, nil
}

func (p *RedisProvider) Put(ctx context.Context, mode PutMode, entities []*Entity) error {
	muts := make([]Mutation, len(entities))
	for i, e := range entities {
		muts[i] = Mutation{Mode: mode, Entity: e}
	}
	return p.commit(ctx, muts, nil)
}

func (p *RedisProvider) Delete(ctx context.Context, keys []Key) error {
	muts := make([]Mutation, len(keys))
	for i := range keys {
		k := keys[i]
		muts[i] = Mutation{Delete: &k}
	}
	return p.commit(ctx, muts, nil)
}

func (p *RedisProvider) Run(ctx context.Context, q Query) (Cursor, error) {
	names, err := p.client.SMembers(ctx, p.kindKey(q.Namespace, q.Kind.String())).Result()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return newSliceCursor(nil), nil
	}

	keys := make([]Key, len(names))
	entityKeys := make([]string, len(names))
	for i, name := range names {
		keys[i] = Key{ProjectID: p.projectID, Namespace: q.Namespace, Kind: q.Kind.String(), Name: name}
		entityKeys[i] = p.entityKey(keys[i])
	}
	raw, err := p.client.MGet(ctx, entityKeys...).Result()
	if err != nil {
		return nil, err
	}

	matched := make([]*Entity, 0, len(raw))
	for i, item := range raw {
		data, ok := item.(string)
		if !ok {
			// Membership can outlive the value briefly; skip the gap.
			continue
		}
		e, err := decodeEntity(keys[i], []byte(data))
		if err != nil {
			return nil, err
		}
		if !q.Filters.Matches(e) {
			continue
		}
		matched = append(matched, e)
	}

	sortEntities(matched, q.OrderBy)
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	if q.KeysOnly {
		for i, e := range matched {
			matched[i] = NewEntity(e.Key)
		}
	}
	return newSliceCursor(matched), nil
}

func (p *RedisProvider) Namespaces(ctx context.Context) ([]string, error) {
	return p.client.SMembers(ctx, p.namespacesKey()).Result()
}

func (p *RedisProvider) NewTransaction(ctx context.Context) (ProviderTx, error) {
	return &redisTx{provider: p}, nil
}

func (p *RedisProvider) Close() error {
	if p.ownsClient {
		return p.client.Close()
	}
	return nil
}

// commit applies mutations atomically under WATCH. Insert preconditions
// are re-checked inside the watched section, so a raced insert either
// fails the existence check or aborts the EXEC.
func (p *RedisProvider) commit(ctx context.Context, mutations []Mutation, alsoWatch []string) error {
	watch := make([]string, 0, len(mutations)+len(alsoWatch))
	watch = append(watch, alsoWatch...)
	for _, m := range mutations {
		if m.Delete != nil {
			watch = append(watch, p.entityKey(*m.Delete))
		} else {
			watch = append(watch, p.entityKey(m.Entity.Key))
		}
	}
	if len(watch) == 0 {
		return nil
	}

	apply := func(tx *redis.Tx) error {
		for _, m := range mutations {
			if m.Delete != nil {
				continue
			}
			exists, err := tx.Exists(ctx, p.entityKey(m.Entity.Key)).Result()
			if err != nil {
				return err
			}
			if m.Mode == PutInsert && exists == 1 {
				return WithContext(ErrAlreadyExists, map[string]interface{}{
					"key": m.Entity.Key.String(),
				})
			}
			if m.Mode == PutUpdate && exists == 0 {
				return WithContext(ErrNotFound, map[string]interface{}{
					"key": m.Entity.Key.String(),
				})
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, m := range mutations {
				if m.Delete != nil {
					k := *m.Delete
					pipe.Del(ctx, p.entityKey(k))
					pipe.SRem(ctx, p.kindKey(k.Namespace, k.Kind), k.Name)
					continue
				}
				k := m.Entity.Key
				data, err := encodeEntity(m.Entity)
				if err != nil {
					return err
				}
				pipe.Set(ctx, p.entityKey(k), data, 0)
				pipe.SAdd(ctx, p.kindKey(k.Namespace, k.Kind), k.Name)
				if k.Namespace != "" {
					pipe.SAdd(ctx, p.namespacesKey(), k.Namespace)
				}
			}
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < txFailedAttempts; attempt++ {
		err = p.client.Watch(ctx, apply, watch...)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return WithContext(ErrProviderUnavailable, map[string]interface{}{
		"attempts": txFailedAttempts,
		"reason":   "optimistic commit kept losing races",
	})
}

// redisTx tracks the keys its reads touched and watches them at commit,
// failing the commit if any of them changed since.
type redisTx struct {
	provider *RedisProvider
	read     []string
	done     bool
}

func (tx *redisTx) Get(ctx context.Context, keys []Key) (map[Key]*Entity, error) {
	for _, k := range keys {
		tx.read = append(tx.read, tx.provider.entityKey(k))
	}
	return tx.provider.Lookup(ctx, keys)
}

func (tx *redisTx) Commit(ctx context.Context, mutations []Mutation) error {
	if tx.done {
		return WithContext(ErrIllegalState, map[string]interface{}{
			"reason": "transaction already finished",
		})
	}
	tx.done = true
	return tx.provider.commit(ctx, mutations, tx.read)
}

func (tx *redisTx) Rollback(ctx context.Context) error {
	tx.done = true
	return nil
}

// Wire format for entity property bags stored in Redis.

type wireValue struct {
	Type  string          `json:"t"`
	Value json.RawMessage `json:"v,omitempty"`
}

func encodeEntity(e *Entity) ([]byte, error) {
	bag := make(map[string]wireValue, len(e.Properties))
	for name, v := range e.Properties {
		wv, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		bag[name] = wv
	}
	return json.Marshal(bag)
}

func decodeEntity(key Key, data []byte) (*Entity, error) {
	var bag map[string]wireValue
	if err := json.Unmarshal(data, &bag); err != nil {
		return nil, err
	}
	e := NewEntity(key)
	for name, wv := range bag {
		v, err := decodeValue(wv)
		if err != nil {
			return nil, err
		}
		e.Properties[name] = v
	}
	return e, nil
}

func encodeValue(v Value) (wireValue, error) {
	marshal := func(t string, v interface{}) (wireValue, error) {
		raw, err := json.Marshal(v)
		if err != nil {
			return wireValue{}, err
		}
		return wireValue{Type: t, Value: raw}, nil
	}
	switch tv := v.(type) {
	case StringValue:
		return marshal("s", string(tv))
	case IntValue:
		return marshal("i", int64(tv))
	case FloatValue:
		return marshal("f", float64(tv))
	case BoolValue:
		return marshal("b", bool(tv))
	case BytesValue:
		return marshal("x", base64.StdEncoding.EncodeToString(tv))
	case TimestampValue:
		return marshal("ts", time.Time(tv).Format(time.RFC3339Nano))
	case NullValue:
		return wireValue{Type: "null"}, nil
	}
	return wireValue{}, WithContext(ErrInvalidArgument, map[string]interface{}{
		"reason": fmt.Sprintf("unknown value type %T", v),
	})
}

func decodeValue(wv wireValue) (Value, error) {
	switch wv.Type {
	case "s":
		var s string
		if err := json.Unmarshal(wv.Value, &s); err != nil {
			return nil, err
		}
		return StringValue(s), nil
	case "i":
		var i int64
		if err := json.Unmarshal(wv.Value, &i); err != nil {
			return nil, err
		}
		return IntValue(i), nil
	case "f":
		var f float64
		if err := json.Unmarshal(wv.Value, &f); err != nil {
			return nil, err
		}
		return FloatValue(f), nil
	case "b":
		var b bool
		if err := json.Unmarshal(wv.Value, &b); err != nil {
			return nil, err
		}
		return BoolValue(b), nil
	case "x":
		var s string
		if err := json.Unmarshal(wv.Value, &s); err != nil {
			return nil, err
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, err
		}
		return BytesValue(raw), nil
	case "ts":
		var s string
		if err := json.Unmarshal(wv.Value, &s); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		return TimestampValue(ts), nil
	case "null":
		return NullValue{}, nil
	}
	return nil, WithContext(ErrInvalidArgument, map[string]interface{}{
		"type":   wv.Type,
		"reason": "unknown wire value type",
	})
}
