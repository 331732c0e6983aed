package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot is the durable subset of a CallSession persisted on cleanup,
// for post-call inspection or transfer to another node — it does not
// round-trip into a resumable session.
type Snapshot struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	CallerPhone string    `json:"caller_phone"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	TurnCount   int       `json:"turn_count"`
}

// SnapshotOf builds a Snapshot from the current state of sess.
func SnapshotOf(sess *CallSession) Snapshot {
	turns := 0
	for _, m := range sess.History {
		if m.Role == "user" {
			turns++
		}
	}
	return Snapshot{
		ID:          sess.ID,
		TenantID:    sess.Tenant.TenantID,
		CallerPhone: sess.CallerPhone,
		StartedAt:   sess.StartedAt,
		EndedAt:     time.Now(),
		TurnCount:   turns,
	}
}

// SnapshotStore persists call snapshots to Redis under a namespaced key,
// with a TTL so abandoned entries expire rather than accumulating forever.
type SnapshotStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewSnapshotStore wraps client. prefix namespaces keys (e.g. "callagent");
// ttl is how long a snapshot survives before Redis expires it.
func NewSnapshotStore(client *redis.Client, prefix string, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *SnapshotStore) key(callID string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, callID)
}

// Save writes snap to Redis.
func (s *SnapshotStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("session: marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(snap.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: save snapshot %s: %w", snap.ID, err)
	}
	return nil
}

// Load reads a previously saved snapshot back, or returns
// redis.Nil-wrapped error if the key has expired or never existed.
func (s *SnapshotStore) Load(ctx context.Context, callID string) (Snapshot, error) {
	var snap Snapshot
	data, err := s.client.Get(ctx, s.key(callID)).Bytes()
	if err != nil {
		return snap, fmt.Errorf("session: load snapshot %s: %w", callID, err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("session: unmarshal snapshot %s: %w", callID, err)
	}
	return snap, nil
}
