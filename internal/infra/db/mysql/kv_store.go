package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bryanwahyu/leafdoctor/internal/domain/kv"
)

const createKVTable = `
CREATE TABLE IF NOT EXISTS leafdoctor_kv (
  k          VARCHAR(191) NOT NULL PRIMARY KEY,
  v          LONGBLOB     NOT NULL,
  updated_at DATETIME(3)  NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`

// KVStore keeps values in a single two-column table, one row per key.
type KVStore struct {
	db *sql.DB
}

func NewKVStore(db *sql.DB) *KVStore {
	return &KVStore{db: db}
}

// EnsureSchema creates the table if it is missing.
func (r *KVStore) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, createKVTable)
	return err
}

func (r *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	const q = `SELECT v FROM leafdoctor_kv WHERE k=?;`
	var v []byte
	if err := r.db.QueryRowContext(ctx, q, key).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, kv.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// Put upserts the whole value in one statement.
func (r *KVStore) Put(ctx context.Context, key string, value []byte) error {
	const q = `
INSERT INTO leafdoctor_kv (k, v, updated_at)
VALUES (?,?,?)
ON DUPLICATE KEY UPDATE
  v=VALUES(v), updated_at=VALUES(updated_at);
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
