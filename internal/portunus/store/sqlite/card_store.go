package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/Portunus/unit/internal/db"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

type CardStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewCardStore(db *sql.DB, writer *dbpkg.Worker) *CardStore {
	return &CardStore{db: db, writer: writer}
}

func (s *CardStore) CheckAccess(ctx context.Context, cardID string, readerID int) (bool, error) {
	var allowed int
	err := s.db.QueryRowContext(ctx, `
SELECT allowed FROM cards WHERE card_id = ? AND reader_id = ? AND deleted = 0;
`, strings.TrimSpace(cardID), readerID).Scan(&allowed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("CheckAccess query: %w", err)
	}
	return allowed == 1, nil
}

func (s *CardStore) CardPlan(ctx context.Context, cardID string, readerID int) (int, error) {
	var plan int
	err := s.db.QueryRowContext(ctx, `
SELECT plan_id FROM cards WHERE card_id = ? AND reader_id = ? AND deleted = 0;
`, strings.TrimSpace(cardID), readerID).Scan(&plan)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("CardPlan query: %w", err)
	}
	return plan, nil
}

func (s *CardStore) GrantAccess(ctx context.Context, rec types.CardRecord) error {
	now := time.Now().UTC().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := upsertCard(ctx, tx, rec, true, now); err != nil {
			return fmt.Errorf("GrantAccess: %w", err)
		}
		return nil
	})
}

func (s *CardStore) RemoveAccess(ctx context.Context, cardID string, readerID int) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM cards WHERE card_id = ? AND reader_id = ?;
`, strings.TrimSpace(cardID), readerID); err != nil {
			return fmt.Errorf("RemoveAccess: %w", err)
		}
		return nil
	})
}

func (s *CardStore) ReplaceAll(ctx context.Context, recs []types.CardRecord) error {
	now := time.Now().UTC().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cards;`); err != nil {
			return fmt.Errorf("ReplaceAll clear: %w", err)
		}
		for _, rec := range recs {
			if err := upsertCard(ctx, tx, rec, rec.Allowed, now); err != nil {
				return fmt.Errorf("ReplaceAll card %s/%d: %w", rec.CardID, rec.ReaderID, err)
			}
		}
		return nil
	})
}

func upsertCard(ctx context.Context, tx *sql.Tx, rec types.CardRecord, allowed bool, now int64) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO cards(card_id, reader_id, plan_id, allowed, deleted, note, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(card_id, reader_id) DO UPDATE SET
  plan_id = excluded.plan_id,
  allowed = excluded.allowed,
  deleted = excluded.deleted,
  note = excluded.note,
  updated_at_ms = excluded.updated_at_ms;
`, strings.TrimSpace(rec.CardID), rec.ReaderID, rec.PlanID, boolInt(allowed), boolInt(rec.Deleted), rec.Note, now)
	return err
}
