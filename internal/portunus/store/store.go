package store

import "errors"

// ErrNotFound is returned when a lookup key has no row.
var ErrNotFound = errors.New("not found")

// Property tables.
const (
	TableRunning  = "running"
	TableConfigDU = "ConfigDU"
)

// Well-known property keys.
const (
	PropLastStart     = "LastStart"
	PropVersion       = "Version"
	PropRebootPending = "RebootPending"
	PropMode          = "mode"
)

// LastStartLayout formats running.LastStart.
const LastStartLayout = "2006-01-02 15:04:05.000000"
