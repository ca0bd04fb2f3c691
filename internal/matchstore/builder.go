package matchstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/park285/Cheese-Damas/internal/boardimg"
	"github.com/park285/Cheese-Damas/internal/config"
	"github.com/park285/Cheese-Damas/internal/obslog"
	"go.uber.org/zap"
)

// Deps is the recording stack assembled from configuration.
type Deps struct {
	// Recorder receives every finished match.
	Recorder *Multi
	// History serves reads; the most durable configured store wins.
	History Store

	closers []func() error
}

func (d *Deps) Close() error {
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// New wires Postgres, Redis, webhook and PNG snapshots as configured.
// Without any of them, matches go to an in-memory store.
func New(cfg *config.AppConfig) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	d := &Deps{Recorder: NewMulti()}
	logger := obslog.L()

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pg, err := NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = pg.EnsureSchema(ctx)
		cancel()
		if err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		d.closers = append(d.closers, pg.Close)
		d.Recorder.Add("postgres", pg)
		d.History = pg
		logger.Info("matchstore_postgres_enabled")
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		rs, err := NewRedis(cfg.RedisURL, cfg.MatchTTL, cfg.MatchHistoryLimit)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		d.closers = append(d.closers, rs.Close)
		d.Recorder.Add("redis", rs)
		if d.History == nil {
			d.History = rs
		}
		logger.Info("matchstore_redis_enabled", zap.Duration("ttl", cfg.MatchTTL))
	}

	if d.History == nil {
		mem := NewMemory()
		d.Recorder.Add("memory", mem)
		d.History = mem
	}

	if strings.TrimSpace(cfg.MatchWebhookURL) != "" {
		d.Recorder.Add("webhook", NewWebhook(cfg.MatchWebhookURL))
		logger.Info("matchstore_webhook_enabled")
	}

	if strings.TrimSpace(cfg.MatchSnapshotDir) != "" {
		snaps, err := NewSnapshots(cfg.MatchSnapshotDir, boardimg.NewRenderer())
		if err != nil {
			_ = d.Close()
			return nil, err
		}
		d.Recorder.Add("snapshot", snaps)
		logger.Info("matchstore_snapshots_enabled", zap.String("dir", cfg.MatchSnapshotDir))
	}
	return d, nil
}
