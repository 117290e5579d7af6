package types

import (
	"fmt"
	"strconv"
)

// Status is the persisted outcome code of one access attempt. The same code
// is echoed to the online authority.
type Status int

const (
	StatusAllow                          Status = 701
	StatusAllowTerminalNotFound          Status = 702
	StatusAllowCardNotFound              Status = 703
	StatusAllowDoorNotClosed             Status = 704
	StatusAllowInsertFailed              Status = 711
	StatusAllowDoorNotClosedInsertFailed Status = 714
	StatusDeny                           Status = 716
	StatusDenyTerminalNotFound           Status = 717
	StatusDenyCardNotFound               Status = 718
	StatusDenyInsertFailed               Status = 726
	StatusOpenWithButton                 Status = 731
	StatusOpenWithButtonInsertFailed     Status = 741
	StatusUnauthorizedAccess             Status = 751
	StatusUnauthorizedAccessInsertFailed Status = 761
)

// InsertFailedOffset marks a decision whose audit record did not reach the
// online authority. The resync task finds records by this offset and clears it.
const InsertFailedOffset = 10

var statusNames = map[Status]string{
	StatusAllow:                          "allow",
	StatusAllowTerminalNotFound:          "allow_terminal_not_found",
	StatusAllowCardNotFound:              "allow_card_not_found",
	StatusAllowDoorNotClosed:             "allow_door_not_closed",
	StatusAllowInsertFailed:              "allow_insert_failed",
	StatusAllowDoorNotClosedInsertFailed: "allow_door_not_closed_insert_failed",
	StatusDeny:                           "deny",
	StatusDenyTerminalNotFound:           "deny_terminal_not_found",
	StatusDenyCardNotFound:               "deny_card_not_found",
	StatusDenyInsertFailed:               "deny_insert_failed",
	StatusOpenWithButton:                 "open_with_button",
	StatusOpenWithButtonInsertFailed:     "open_with_button_insert_failed",
	StatusUnauthorizedAccess:             "unauthorized_access",
	StatusUnauthorizedAccessInsertFailed: "unauthorized_access_insert_failed",
}

// RetryableStatuses are the base codes that have an insert-failed variant.
var RetryableStatuses = []Status{
	StatusAllow,
	StatusAllowDoorNotClosed,
	StatusDeny,
	StatusOpenWithButton,
	StatusUnauthorizedAccess,
}

func init() {
	if err := checkInsertFailedOffsets(); err != nil {
		panic(err)
	}
}

// checkInsertFailedOffsets asserts that base+10 is a defined code for every
// retryable base and that no base+10 lands on another base code.
func checkInsertFailedOffsets() error {
	bases := make(map[Status]bool, len(RetryableStatuses))
	for _, b := range RetryableStatuses {
		bases[b] = true
	}
	seen := make(map[Status]Status, len(RetryableStatuses))
	for _, b := range RetryableStatuses {
		failed := b + InsertFailedOffset
		if _, ok := statusNames[failed]; !ok {
			return fmt.Errorf("status %d: insert-failed variant %d is not defined", b, failed)
		}
		if bases[failed] {
			return fmt.Errorf("status %d: insert-failed variant %d collides with a base code", b, failed)
		}
		if other, dup := seen[failed]; dup {
			return fmt.Errorf("statuses %d and %d share insert-failed variant %d", other, b, failed)
		}
		seen[failed] = b
	}
	return nil
}

// IsRetryable reports whether s is a base code with an insert-failed variant.
func (s Status) IsRetryable() bool {
	for _, b := range RetryableStatuses {
		if s == b {
			return true
		}
	}
	return false
}

// InsertFailed returns the insert-failed variant of a retryable base code.
// Any other code is returned unchanged.
func (s Status) InsertFailed() Status {
	if s.IsRetryable() {
		return s + InsertFailedOffset
	}
	return s
}

// IsInsertFailed reports whether s carries the insert-failed offset.
func (s Status) IsInsertFailed() bool {
	return (s - InsertFailedOffset).IsRetryable()
}

// Base strips the insert-failed offset, if present.
func (s Status) Base() Status {
	if s.IsInsertFailed() {
		return s - InsertFailedOffset
	}
	return s
}

// InsertFailedStatuses lists every code the resync task retries.
func InsertFailedStatuses() []Status {
	out := make([]Status, 0, len(RetryableStatuses))
	for _, b := range RetryableStatuses {
		out = append(out, b.InsertFailed())
	}
	return out
}

// Granted reports whether s belongs to the allow family.
func (s Status) Granted() bool {
	switch s.Base() {
	case StatusAllow, StatusAllowTerminalNotFound, StatusAllowCardNotFound, StatusAllowDoorNotClosed:
		return true
	}
	return false
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}
