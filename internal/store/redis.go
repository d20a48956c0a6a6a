package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix     = "wallet:"
	redisCommitRetries = 5
)

// Redis stores each record as one JSON document under "wallet:<collection>:<key>".
// Commit runs under WATCH on every touched record key and applies the merged
// documents in a single MULTI/EXEC pipeline, so a concurrent writer aborts
// the whole commit rather than interleaving with it.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an already-connected client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// ConnectRedis parses a redis URL, connects and pings.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func redisKey(collection, key string) string {
	return redisKeyPrefix + collection + ":" + key
}

func (r *Redis) Get(ctx context.Context, path string) (json.RawMessage, bool, error) {
	ref, err := splitPath(path)
	if err != nil {
		return nil, false, err
	}

	val, err := r.client.Get(ctx, redisKey(ref.collection, ref.key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", ref.record(), err)
	}
	raw := json.RawMessage(val)
	if ref.field == "" {
		return raw, true, nil
	}

	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("record %s: not a document: %w", ref.record(), err)
	}
	fieldRaw, ok := doc[ref.field]
	if !ok {
		return nil, false, nil
	}
	return fieldRaw, true, nil
}

func (r *Redis) GetAll(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	prefix := redisKeyPrefix + collection + ":"
	out := make(map[string]json.RawMessage)

	iter := r.client.Scan(ctx, 0, prefix+"*", 256).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", collection, err)
	}
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget %s: %w", collection, err)
	}
	for i, val := range vals {
		s, ok := val.(string)
		if !ok {
			continue // key expired between SCAN and MGET
		}
		out[strings.TrimPrefix(keys[i], prefix)] = json.RawMessage(s)
	}
	return out, nil
}

func (r *Redis) Commit(ctx context.Context, updates map[string]any) error {
	staged, err := stageUpdates(updates)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommit, err)
	}

	watched := make([]string, 0, len(staged))
	for _, ru := range staged {
		watched = append(watched, redisKey(ru.ref.collection, ru.ref.key))
	}

	txn := func(tx *redis.Tx) error {
		merged := make(map[string]json.RawMessage, len(staged))
		for _, ru := range staged {
			var current json.RawMessage
			val, err := tx.Get(ctx, redisKey(ru.ref.collection, ru.ref.key)).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return fmt.Errorf("read %s: %w", ru.ref.record(), err)
			}
			if err == nil {
				current = json.RawMessage(val)
			}
			doc, err := mergeDoc(current, ru)
			if err != nil {
				return err
			}
			merged[redisKey(ru.ref.collection, ru.ref.key)] = doc
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for key, doc := range merged {
				pipe.Set(ctx, key, []byte(doc), 0)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisCommitRetries; attempt++ {
		err := r.client.Watch(ctx, txn, watched...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // a watched key changed underneath us
		}
		return fmt.Errorf("%w: %v", ErrCommit, err)
	}
	return fmt.Errorf("%w: commit contention on %d keys", ErrCommit, len(watched))
}

func (r *Redis) Append(ctx context.Context, collection string, value any) (string, error) {
	key := NewKey()
	if err := r.Commit(ctx, map[string]any{Path(collection, key): value}); err != nil {
		return "", err
	}
	return key, nil
}
