package types

import "time"

// Protocol is the physical reader protocol. Exactly one is active.
type Protocol string

const (
	ProtocolWiegand Protocol = "wiegand"
	ProtocolOSDP    Protocol = "osdp"
)

// DefaultPulseTime applies when a reader row carries no pulse time.
const DefaultPulseTime = 3 * time.Second

// ReaderInfo is the static configuration of one reader/door pair,
// loaded at mode entry.
type ReaderInfo struct {
	ID             int
	Protocol       Protocol
	Address        *int   // OSDP bus address; nil for Wiegand
	SecureKey      string // hex SCBK; empty when secure channel is off
	PulseTime      time.Duration
	HasMonitor     bool
	MonitorDefault bool // monitor input level when the door is closed
	MaxOpenTime    time.Duration
	SysPlan        int
	Active         bool
}

// EffectivePulseTime returns PulseTime or the default when unset.
func (r ReaderInfo) EffectivePulseTime() time.Duration {
	if r.PulseTime <= 0 {
		return DefaultPulseTime
	}
	return r.PulseTime
}
