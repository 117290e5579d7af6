package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	dbpkg "github.com/BrandonDHaskell/Portunus/unit/internal/db"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

type TimePlanStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewTimePlanStore(db *sql.DB, writer *dbpkg.Worker) *TimePlanStore {
	return &TimePlanStore{db: db, writer: writer}
}

// times are stored as one comma separated column of 32 HH:MM:SS values.
func (s *TimePlanStore) TimePlans(ctx context.Context) ([]types.TimePlanRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT plan_id, name, description, action, times FROM time_plans ORDER BY plan_id;
`)
	if err != nil {
		return nil, fmt.Errorf("TimePlans query: %w", err)
	}
	defer rows.Close()

	var out []types.TimePlanRecord
	for rows.Next() {
		var (
			rec    types.TimePlanRecord
			action int
			times  string
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Description, &action, &times); err != nil {
			return nil, fmt.Errorf("TimePlans scan: %w", err)
		}
		rec.Action = types.Action(action)
		parts := strings.Split(times, ",")
		if len(parts) != len(rec.Times) {
			return nil, fmt.Errorf("time plan %d: expected %d times, got %d", rec.ID, len(rec.Times), len(parts))
		}
		copy(rec.Times[:], parts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *TimePlanStore) ReplaceTimePlans(ctx context.Context, recs []types.TimePlanRecord) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM time_plans;`); err != nil {
			return fmt.Errorf("ReplaceTimePlans clear: %w", err)
		}
		for _, rec := range recs {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO time_plans(plan_id, name, description, action, times) VALUES (?, ?, ?, ?, ?);
`, rec.ID, rec.Name, rec.Description, int(rec.Action), strings.Join(rec.Times[:], ",")); err != nil {
				return fmt.Errorf("ReplaceTimePlans insert %d: %w", rec.ID, err)
			}
		}
		return nil
	})
}
