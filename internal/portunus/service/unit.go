package service

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
	"github.com/BrandonDHaskell/Portunus/unit/internal/reader"
)

// Unit is the door and reader surface the access pipeline drives.
// *unit.Controller implements it.
type Unit interface {
	OpenDoor(id int, d time.Duration)
	CloseDoor(id int)
	PermanentOpenDoor(id int)
	ReverseDoor(id int)
	IsOpening(id int) bool
	IsPermanentOpen(id int) bool
	HasMonitor(id int) bool
	IsDoorOpen(id int) bool
	SetMonitor(ctx context.Context, id int, level bool)
	PulseTime(id int) time.Duration
	MaxOpenTime(id int) time.Duration
	SysPlanIDs() map[int]int
	SetSignal(readerID int, s reader.Signal)
}

// Planner resolves the action of a time plan at the current time.
type Planner interface {
	Action(planID int) types.Action
}

// CardPublisher mirrors card reads to the message bus.
type CardPublisher interface {
	PublishCard(ctx context.Context, cred types.Credential) error
}

// SysActions reports the action the system plan currently applies to a door.
type SysActions interface {
	Current(readerID int) types.Action
}

// CacheInvalidator is told when the online authority knows a card the local
// cache does not.
type CacheInvalidator interface {
	MarkDirty()
}
