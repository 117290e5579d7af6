package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	dbpkg "github.com/BrandonDHaskell/Portunus/unit/internal/db"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

type AccessEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessEventStore(db *sql.DB, writer *dbpkg.Worker) *AccessEventStore {
	return &AccessEventStore{db: db, writer: writer}
}

func (s *AccessEventStore) RecordEvent(ctx context.Context, rec types.AccessRecord) (int64, error) {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	if rec.EventID == "" {
		rec.EventID = uuid.NewString()
	}
	now := time.Now().UTC().UnixMilli()

	var id int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO access_events(event_id, card_id, reader_id, occurred_at_ms, status, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`,
			rec.EventID, rec.CardID, rec.ReaderID, rec.OccurredAt.UTC().UnixMilli(), int(rec.Status), now,
		)
		if err != nil {
			return fmt.Errorf("RecordEvent insert: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("RecordEvent last id: %w", err)
		}
		return nil
	})
	return id, err
}

func (s *AccessEventStore) EventsWithStatus(ctx context.Context, statuses ...types.Status) ([]types.AccessRecord, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = int(st)
	}
	q := `
SELECT id, event_id, card_id, reader_id, occurred_at_ms, status
FROM access_events
WHERE status IN (` + placeholders(len(statuses)) + `)
ORDER BY id;`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("EventsWithStatus query: %w", err)
	}
	defer rows.Close()

	var out []types.AccessRecord
	for rows.Next() {
		var (
			rec        types.AccessRecord
			occurredMs int64
			status     int
		)
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.CardID, &rec.ReaderID, &occurredMs, &status); err != nil {
			return nil, fmt.Errorf("EventsWithStatus scan: %w", err)
		}
		rec.OccurredAt = time.UnixMilli(occurredMs).UTC()
		rec.Status = types.Status(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *AccessEventStore) UpdateStatus(ctx context.Context, id int64, status types.Status) error {
	now := time.Now().UTC().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE access_events SET status = ?, updated_at_ms = ? WHERE id = ?;
`, int(status), now, id)
		if err != nil {
			return fmt.Errorf("UpdateStatus: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("UpdateStatus id=%d: %w", id, store.ErrNotFound)
		}
		return nil
	})
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
