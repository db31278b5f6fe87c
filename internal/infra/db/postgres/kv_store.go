package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bryanwahyu/leafdoctor/internal/domain/kv"
)

const createKVTable = `
CREATE TABLE IF NOT EXISTS leafdoctor_kv (
  k          TEXT        PRIMARY KEY,
  v          BYTEA       NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);
`

type KVStore struct {
	db *sql.DB
}

func NewKVStore(db *sql.DB) *KVStore {
	return &KVStore{db: db}
}

func (r *KVStore) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, createKVTable)
	return err
}

func (r *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	const q = `SELECT v FROM leafdoctor_kv WHERE k=$1;`
	var v []byte
	if err := r.db.QueryRowContext(ctx, q, key).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, kv.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (r *KVStore) Put(ctx context.Context, key string, value []byte) error {
	const q = `
INSERT INTO leafdoctor_kv (k, v, updated_at)
VALUES ($1,$2,$3)
ON CONFLICT (k) DO UPDATE SET
  v=EXCLUDED.v,
  updated_at=EXCLUDED.updated_at;
`
	if value == nil {
		value = []byte{}
	}
	_, err := r.db.ExecContext(ctx, q, key, value, time.Now().UTC())
	return err
}

func (r *KVStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}
