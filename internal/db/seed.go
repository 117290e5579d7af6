package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultOperatorConfig is the ConfigDU content of a freshly installed unit.
var DefaultOperatorConfig = map[string]string{
	"mode":               "1", // 0 cloud, 1 offline
	"enable_osdp":        "0",
	"use_secure_channel": "0",
	"mqttenabled":        "0",
	"enable_ivar":        "0",
	"ivar_server":        "",
	"ivar_term_name1":    "",
	"ivar_term_name2":    "",
	"ws":                 "",
	"easy_add":           "1",
	"easy_remove":        "1",
}

type SeedOptions struct {
	// DevCards adds a starter card granted on reader 1.
	DevCards bool
}

// SeedDefaults inserts the operator defaults and the two Wiegand reader rows
// without touching existing values.
func SeedDefaults(ctx context.Context, db *sql.DB, opt SeedOptions) error {
	now := time.Now().UTC().UnixMilli()

	for k, v := range DefaultOperatorConfig {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO properties(tbl, property, value, updated_at_ms)
VALUES ('ConfigDU', ?, ?, ?);`, k, v, now); err != nil {
			return fmt.Errorf("seed ConfigDU %s: %w", k, err)
		}
	}

	for id := 1; id <= 2; id++ {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO readers(reader_id, protocol, active, updated_at_ms)
VALUES (?, 'wiegand', 1, ?);`, id, now); err != nil {
			return fmt.Errorf("seed reader %d: %w", id, err)
		}
	}

	if opt.DevCards {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO cards(card_id, reader_id, plan_id, allowed, note, updated_at_ms)
VALUES ('00001 0000001', 1, 0, 1, 'dev seed', ?);`, now); err != nil {
			return fmt.Errorf("seed dev card: %w", err)
		}
	}

	return nil
}
