package matchstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/Cheese-Damas/internal/checkers"
	"github.com/redis/go-redis/v9"
)

// Redis stores each record as JSON under match:<id> and keeps a capped,
// newest-first id list per player.
type Redis struct {
	rdb   *redis.Client
	ttl   time.Duration
	limit int64
}

func NewRedis(redisURL string, ttl time.Duration, historyLimit int) (*Redis, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis match store")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisWithClient(rdb, ttl, historyLimit), nil
}

func NewRedisWithClient(rdb *redis.Client, ttl time.Duration, historyLimit int) *Redis {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &Redis{rdb: rdb, ttl: ttl, limit: int64(historyLimit)}
}

func (s *Redis) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Redis) keyMatch(id string) string      { return "match:" + strings.TrimSpace(id) }
func (s *Redis) keyPlayer(player string) string { return "player:" + strings.TrimSpace(player) + ":matches" }

func (s *Redis) Record(ctx context.Context, rec checkers.MatchRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal match: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, s.keyMatch(rec.ID), payload, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicateMatch
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, name := range players(rec) {
			k := s.keyPlayer(name)
			p.LPush(ctx, k, rec.ID)
			p.LTrim(ctx, k, 0, s.limit-1)
			if s.ttl > 0 {
				p.Expire(ctx, k, s.ttl)
			}
		}
		return nil
	})
	return err
}

func (s *Redis) Get(ctx context.Context, id string) (*checkers.MatchRecord, error) {
	raw, err := s.rdb.Get(ctx, s.keyMatch(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec checkers.MatchRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode match %s: %w", id, err)
	}
	return &rec, nil
}

// Recent skips ids whose record already expired.
func (s *Redis) Recent(ctx context.Context, player string, limit int) ([]checkers.MatchRecord, error) {
	n := s.limit
	if limit > 0 && int64(limit) < n {
		n = int64(limit)
	}
	ids, err := s.rdb.LRange(ctx, s.keyPlayer(player), 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []checkers.MatchRecord{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keyMatch(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]checkers.MatchRecord, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec checkers.MatchRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			return nil, fmt.Errorf("decode match %s: %w", ids[i], err)
		}
		out = append(out, rec)
	}
	return out, nil
}
