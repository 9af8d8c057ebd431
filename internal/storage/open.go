package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cookify/internal/config"
	"cookify/internal/database"
)

// Open builds a Store on the backend named by cfg.Store.Backend. db is only used by
// the sqlite backend and may be nil otherwise.
func Open(ctx context.Context, cfg *config.Config, db *database.DB, logger *zap.Logger) (*Store, error) {
	var kv KV
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		if db == nil {
			return nil, fmt.Errorf("sqlite store requires a database")
		}
		kv = NewSQLiteKV(db.SQL)
	case config.BackendFile:
		f, err := NewFileKV(cfg.Store.Dir)
		if err != nil {
			return nil, err
		}
		kv = f
	case config.BackendRedis:
		r, err := NewRedisKV(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		kv = r
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	logger.Debug("client store opened", zap.String("backend", cfg.Store.Backend))
	return NewStore(kv, logger), nil
}
