package tenantstore

import (
	"context"
	"fmt"
	"time"
)

// ShardSessionKind is the kind under which shard claims are stored
var ShardSessionKind = MustKind("shard_session")

const (
	shardIndexColumn  = "shard_index"
	shardNodeColumn   = "node_id"
	shardPickedColumn = "picked_at"
)

// ShardSession binds one shard index to the worker node currently
// processing it. A session exists only while the shard is claimed.
type ShardSession struct {
	Index    int
	NodeID   string
	PickedAt time.Time
}

// ShardRegistry coordinates shard ownership between worker nodes using
// the optimistic-claim pattern: claiming is a transactional create, and
// an existence conflict means another node already holds the shard.
type ShardRegistry struct {
	store *Store
}

// NewShardRegistry creates a registry on the given store
func NewShardRegistry(store *Store) *ShardRegistry {
	return &ShardRegistry{store: store}
}

// PickUp attempts to claim a shard for a node. Returns false when the
// shard is already claimed by any node; the conflict is expected
// contention, not an error.
func (r *ShardRegistry) PickUp(ctx context.Context, index int, nodeID string) (bool, error) {
	key, err := r.store.KeyFor(ctx, ShardSessionKind, shardSessionID(index))
	if err != nil {
		return false, err
	}

	session := NewEntity(key).
		Set(shardIndexColumn, IntValue(index)).
		Set(shardNodeColumn, StringValue(nodeID)).
		Set(shardPickedColumn, TimestampValue(time.Now().UTC()))

	tx, err := r.store.NewTransaction(ctx)
	if err != nil {
		return false, err
	}
	if err := tx.Begin(ctx); err != nil {
		return false, err
	}
	defer tx.Close()

	if err := tx.Create(ctx, session); err != nil {
		if IsAlreadyExists(err) {
			return false, nil
		}
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		if IsAlreadyExists(err) {
			// Another node committed its claim between our snapshot and
			// commit.
			return false, nil
		}
		return false, err
	}
	r.store.logger.Debug("shard picked up", "shard", index, "node", nodeID)
	return true, nil
}

// Complete releases a shard claimed by the given node. Releasing a shard
// the node does not hold is a no-op.
func (r *ShardRegistry) Complete(ctx context.Context, index int, nodeID string) error {
	key, err := r.store.KeyFor(ctx, ShardSessionKind, shardSessionID(index))
	if err != nil {
		return err
	}

	tx, err := r.store.NewTransaction(ctx)
	if err != nil {
		return err
	}
	if err := tx.Begin(ctx); err != nil {
		return err
	}
	defer tx.Close()

	sessions, err := tx.Lookup(ctx, []Key{key})
	if err != nil {
		return err
	}
	session := sessions[0]
	if session == nil {
		return tx.Rollback(ctx)
	}
	if owner, ok := session.Get(shardNodeColumn).(StringValue); !ok || string(owner) != nodeID {
		return tx.Rollback(ctx)
	}
	if err := tx.Delete(ctx, key); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.store.logger.Debug("shard released", "shard", index, "node", nodeID)
	return nil
}

// Owner returns the node currently holding a shard, or false when the
// shard is unclaimed.
func (r *ShardRegistry) Owner(ctx context.Context, index int) (string, bool, error) {
	key, err := r.store.KeyFor(ctx, ShardSessionKind, shardSessionID(index))
	if err != nil {
		return "", false, err
	}
	entities, err := r.store.Lookup(ctx, []Key{key})
	if err != nil {
		return "", false, err
	}
	if entities[0] == nil {
		return "", false, nil
	}
	owner, _ := entities[0].Get(shardNodeColumn).(StringValue)
	return string(owner), true, nil
}

func shardSessionID(index int) RecordID {
	return RecordID(fmt.Sprintf("shard-%d", index))
}
