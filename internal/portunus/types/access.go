package types

import "time"

// ButtonCardID is recorded as the card id of an open-button event.
const ButtonCardID = "00000 0000000"

// Credential is one card read, consumed once by the access pipeline.
type Credential struct {
	ReaderID int
	CardID   string
}

// AccessRecord is one row of the local access log.
type AccessRecord struct {
	ID         int64
	EventID    string // stable id sent to the online authority on every insert attempt
	CardID     string
	ReaderID   int
	OccurredAt time.Time
	Status     Status
}
