// Package backend opens the kv.Store selected by storage.driver.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bryanwahyu/leafdoctor/internal/config"
	"github.com/bryanwahyu/leafdoctor/internal/domain/kv"
	"github.com/bryanwahyu/leafdoctor/internal/infra/db/mysql"
	"github.com/bryanwahyu/leafdoctor/internal/infra/db/postgres"
	"github.com/bryanwahyu/leafdoctor/internal/infra/db/redis"
	"github.com/bryanwahyu/leafdoctor/internal/infra/storage"
)

// Closer releases the connections held by a store.
type Closer func() error

func noop() error { return nil }

// Open connects to the configured backend and prepares its schema when needed.
func Open(ctx context.Context, cfg config.StorageConfig, mysqlDSN string, log *zap.Logger) (kv.Store, Closer, error) {
	switch cfg.Driver {
	case "memory":
		log.Warn("using in-memory storage, gallery will not survive restarts")
		return storage.NewMemory(), noop, nil

	case "file":
		st, err := storage.NewFile(cfg.File.Dir)
		if err != nil {
			return nil, nil, err
		}
		log.Info("file storage ready", zap.String("dir", cfg.File.Dir))
		return st, noop, nil

	case "mysql":
		db, err := mysql.Connect(ctx, mysqlDSN)
		if err != nil {
			return nil, nil, err
		}
		st := mysql.NewKVStore(db)
		if err := st.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("mysql storage ready", zap.String("host", cfg.MySQL.Host), zap.String("db", cfg.MySQL.Name))
		return st, db.Close, nil

	case "postgres":
		db, err := postgres.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		st := postgres.NewKVStore(db)
		if err := st.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Info("postgres storage ready")
		return st, db.Close, nil

	case "redis":
		st, err := redis.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		log.Info("redis storage ready", zap.String("addr", cfg.Redis.Addr))
		return st, st.Close, nil

	case "minio":
		m := cfg.Minio
		st, err := storage.NewMinio(ctx, m.Endpoint, m.Region, m.BucketName, m.AccessKey, m.SecretKey, m.UseSSL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("minio storage ready", zap.String("endpoint", m.Endpoint), zap.String("bucket", m.BucketName))
		return st, noop, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
