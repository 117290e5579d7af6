package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/Portunus/unit/internal/db"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
)

type PropertyStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewPropertyStore(db *sql.DB, writer *dbpkg.Worker) *PropertyStore {
	return &PropertyStore{db: db, writer: writer}
}

func (s *PropertyStore) GetProp(ctx context.Context, table, key string) (string, error) {
	if err := store.CheckTable(table); err != nil {
		return "", err
	}
	var v string
	err := s.db.QueryRowContext(ctx, `
SELECT value FROM properties WHERE tbl = ? AND property = ?;
`, table, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s.%s: %w", table, key, store.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("GetProp %s.%s: %w", table, key, err)
	}
	return v, nil
}

func (s *PropertyStore) SetProp(ctx context.Context, table, key, value string) error {
	if err := store.CheckTable(table); err != nil {
		return err
	}
	now := time.Now().UTC().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO properties(tbl, property, value, updated_at_ms) VALUES (?, ?, ?, ?)
ON CONFLICT(tbl, property) DO UPDATE SET
  value = excluded.value,
  updated_at_ms = excluded.updated_at_ms;
`, table, key, value, now); err != nil {
			return fmt.Errorf("SetProp %s.%s: %w", table, key, err)
		}
		return nil
	})
}
