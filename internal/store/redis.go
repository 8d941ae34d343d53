// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jmulder/tunequiz/internal/models"
)

const (
	keyPrefix = "tunequiz:session:"

	// txRetries bounds the optimistic retry loop when concurrent writers
	// race an Update on the same session key.
	txRetries = 8

	// revField is a store-internal counter bumped on every committed write.
	// Subscribers use it to discard snapshots queued on the pub/sub channel
	// that an initial read already superseded; it never reaches clients.
	revField = "rev"
)

// RedisStore keeps each session document as a JSON value and publishes the
// full document on a per-session channel after every committed write, which
// gives subscribers the push-based snapshot feed the clients rely on.
type RedisStore struct {
	client *redis.Client
	log    *logrus.Logger
}

// NewRedisStore connects a session store to the given Redis client.
func NewRedisStore(client *redis.Client, log *logrus.Logger) *RedisStore {
	return &RedisStore{client: client, log: log}
}

func sessionKey(code string) string    { return keyPrefix + code }
func eventsChannel(code string) string { return keyPrefix + code + ":events" }

func (r *RedisStore) Create(ctx context.Context, code string, doc *models.Session) error {
	enc, err := encodeSession(doc)
	if err != nil {
		return err
	}
	enc[revField] = 1
	raw, err := json.Marshal(enc)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ok, err := r.client.SetNX(ctx, sessionKey(code), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrCodeExists
	}
	r.publish(ctx, code, raw)
	return nil
}

func (r *RedisStore) Read(ctx context.Context, code string) (*models.Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var s models.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", code, err)
	}
	return &s, nil
}

// Update applies the field map inside an optimistic WATCH transaction, so the
// read-modify-write of the stored JSON is atomic with respect to every other
// writer of the same session. On success the new document is published.
func (r *RedisStore) Update(ctx context.Context, code string, fields map[string]any) error {
	key := sessionKey(code)

	var committed []byte
	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decode session %s: %w", code, err)
		}
		if err := applyFields(doc, fields); err != nil {
			return err
		}
		doc[revField] = docRev(doc) + 1
		next, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode session %s: %w", code, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		if err == nil {
			committed = next
		}
		return err
	}

	for i := 0; i < txRetries; i++ {
		err := r.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			r.log.Debugf("session %s: update raced another writer, retrying (%d/%d)", code, i+1, txRetries)
			continue
		}
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		r.publish(ctx, code, committed)
		return nil
	}
	return fmt.Errorf("%w: update on session %s kept colliding", ErrUnavailable, code)
}

func (r *RedisStore) Subscribe(ctx context.Context, code string, fn SnapshotFunc) (func(), error) {
	ps := r.client.Subscribe(ctx, eventsChannel(code))
	// Force the subscription onto the wire before the initial read so no
	// change between Read and the first channel message can be missed without
	// a later snapshot superseding it.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Writes committed between the wire subscribe and this read are queued on
	// the channel and would arrive after the (newer) document read here. The
	// revision comparison in the loop below drops those stale snapshots.
	var last int64
	raw, err := r.client.Get(ctx, sessionKey(code)).Bytes()
	switch {
	case err == nil:
		s, rev, err := parseSnapshot(raw)
		if err != nil {
			_ = ps.Close()
			return nil, fmt.Errorf("decode session %s: %w", code, err)
		}
		fn(s)
		last = rev
	case errors.Is(err, redis.Nil):
		// Session not created yet; the first publish delivers it.
	default:
		_ = ps.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	go func() {
		for msg := range ps.Channel() {
			s, rev, err := parseSnapshot([]byte(msg.Payload))
			if err != nil {
				r.log.Warnf("session %s: dropping malformed snapshot: %v", code, err)
				continue
			}
			if !admitSnapshot(last, rev) {
				continue
			}
			last = rev
			fn(s)
		}
	}()

	return func() { _ = ps.Close() }, nil
}

// docRev reads the revision counter out of a decoded document.
func docRev(doc map[string]any) int64 {
	switch v := doc[revField].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// parseSnapshot decodes a published document into the typed session plus its
// revision.
func parseSnapshot(raw []byte) (*models.Session, int64, error) {
	var s models.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, 0, err
	}
	var meta struct {
		Rev int64 `json:"rev"`
	}
	_ = json.Unmarshal(raw, &meta)
	return &s, meta.Rev, nil
}

// admitSnapshot reports whether a snapshot at rev may be delivered after one
// at last. Unversioned snapshots (rev 0) are always delivered.
func admitSnapshot(last, rev int64) bool {
	return rev == 0 || rev > last
}

func (r *RedisStore) publish(ctx context.Context, code string, raw []byte) {
	if err := r.client.Publish(ctx, eventsChannel(code), raw).Err(); err != nil {
		// Subscribers recover on the next committed write; the document
		// itself is already durable.
		r.log.Warnf("session %s: snapshot publish failed: %v", code, err)
	}
}
