package store

import (
	"context"
	"errors"
	"fmt"
)

// PropertyStore is the key/value store behind the running and ConfigDU tables.
type PropertyStore interface {
	// GetProp returns ErrNotFound when the key has never been set.
	GetProp(ctx context.Context, table, key string) (string, error)
	SetProp(ctx context.Context, table, key, value string) error
}

// ErrUnknownTable is returned for tables other than running and ConfigDU.
var ErrUnknownTable = errors.New("unknown property table")

// CheckTable validates a property table name.
func CheckTable(table string) error {
	if table != TableRunning && table != TableConfigDU {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	return nil
}
