package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink keeps rows as JSON entries of a Redis list
type RedisSink struct {
	client *redis.Client
	key    string
	owned  bool
}

// OpenRedis connects to the server in url and returns a sink on key
func OpenRedis(ctx context.Context, url, key string) (*RedisSink, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis unavailable: %w", err)
	}
	sink := NewRedisSink(client, key)
	sink.owned = true
	return sink, nil
}

// NewRedisSink creates a sink on an existing client. Close leaves the
// client open.
func NewRedisSink(client *redis.Client, key string) *RedisSink {
	if key == "" {
		key = "engagedl:rows"
	}
	return &RedisSink{client: client, key: key}
}

// Save replaces the list in a MULTI/EXEC transaction
func (s *RedisSink) Save(ctx context.Context, rows []Row) error {
	values := make([]interface{}, len(rows))
	for i, r := range rows {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode row %s: %w", r.ID, err)
		}
		values[i] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.RPush(ctx, s.key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	return nil
}

// Load reads the list back in order
func (s *RedisSink) Load(ctx context.Context) ([]Row, error) {
	entries, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}

	var rows []Row
	for _, entry := range entries {
		var r Row
		if err := json.Unmarshal([]byte(entry), &r); err != nil {
			return nil, fmt.Errorf("decode entry of %s: %w", s.key, err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func (s *RedisSink) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

func (s *RedisSink) Kind() string   { return "redis" }
func (s *RedisSink) String() string { return "redis:" + s.key }
