package hw

import (
	"context"
	"time"
)

// Press is the outcome of waiting on a push button.
type Press int

const (
	PressNone Press = iota
	PressShort
	PressLong
)

func (p Press) String() string {
	switch p {
	case PressShort:
		return "short"
	case PressLong:
		return "long"
	default:
		return "none"
	}
}

// Button is a push button wired to pull its line low when pressed.
type Button struct {
	pin       InputPin
	activeLow bool
}

func NewButton(pin InputPin, activeLow bool) *Button {
	return &Button{pin: pin, activeLow: activeLow}
}

func (b *Button) Pressed() bool {
	return b.pin.Read() != b.activeLow
}

// WaitPress polls until the button is pressed and released, classifying the
// press by how long it was held. It returns PressNone if ctx ends first.
func (b *Button) WaitPress(ctx context.Context, poll, long time.Duration) Press {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var since time.Time
	for {
		select {
		case <-ctx.Done():
			return PressNone
		case <-ticker.C:
		}

		pressed := b.Pressed()
		switch {
		case pressed && since.IsZero():
			since = time.Now()
		case !pressed && !since.IsZero():
			if time.Since(since) >= long {
				return PressLong
			}
			return PressShort
		}
	}
}
