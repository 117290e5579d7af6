package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/Portunus/unit/internal/db"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

type ReaderStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewReaderStore(db *sql.DB, writer *dbpkg.Worker) *ReaderStore {
	return &ReaderStore{db: db, writer: writer}
}

func (s *ReaderStore) ActiveReaders(ctx context.Context) ([]types.ReaderInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT reader_id, protocol, address, secure_key, pulse_time_ms, has_monitor,
       monitor_default, max_open_time_ms, sys_plan
FROM readers
WHERE active = 1
ORDER BY reader_id;
`)
	if err != nil {
		return nil, fmt.Errorf("ActiveReaders query: %w", err)
	}
	defer rows.Close()

	var out []types.ReaderInfo
	for rows.Next() {
		var (
			r                      types.ReaderInfo
			protocol               string
			address                sql.NullInt64
			pulseMs, maxOpenMs     int64
			hasMonitor, monDefault int
		)
		if err := rows.Scan(&r.ID, &protocol, &address, &r.SecureKey, &pulseMs, &hasMonitor,
			&monDefault, &maxOpenMs, &r.SysPlan); err != nil {
			return nil, fmt.Errorf("ActiveReaders scan: %w", err)
		}
		r.Protocol = types.Protocol(protocol)
		if address.Valid {
			a := int(address.Int64)
			r.Address = &a
		}
		r.PulseTime = time.Duration(pulseMs) * time.Millisecond
		r.MaxOpenTime = time.Duration(maxOpenMs) * time.Millisecond
		r.HasMonitor = hasMonitor == 1
		r.MonitorDefault = monDefault == 1
		r.Active = true
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *ReaderStore) DeactivateAll(ctx context.Context) error {
	now := time.Now().UTC().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE readers SET active = 0, updated_at_ms = ?;`, now); err != nil {
			return fmt.Errorf("DeactivateAll: %w", err)
		}
		return nil
	})
}

// Activate keeps the door settings of an existing row and replaces only the
// protocol fields.
func (s *ReaderStore) Activate(ctx context.Context, info types.ReaderInfo) error {
	now := time.Now().UTC().UnixMilli()

	var address any
	if info.Address != nil {
		address = *info.Address
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO readers(reader_id, protocol, address, secure_key, active, updated_at_ms)
VALUES (?, ?, ?, ?, 1, ?)
ON CONFLICT(reader_id) DO UPDATE SET
  protocol = excluded.protocol,
  address = excluded.address,
  secure_key = excluded.secure_key,
  active = 1,
  updated_at_ms = excluded.updated_at_ms;
`, info.ID, string(info.Protocol), address, info.SecureKey, now); err != nil {
			return fmt.Errorf("Activate reader %d: %w", info.ID, err)
		}
		return nil
	})
}

func (s *ReaderStore) SetMonitor(ctx context.Context, readerID int, open bool) error {
	now := time.Now().UTC().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE readers SET monitor = ?, updated_at_ms = ? WHERE reader_id = ?;
`, boolInt(open), now, readerID); err != nil {
			return fmt.Errorf("SetMonitor reader %d: %w", readerID, err)
		}
		return nil
	})
}
