package hw

import (
	"context"
	"sync"
	"time"
)

// Color is an RGB combination of on/off channels.
type Color struct{ R, G, B bool }

var (
	Off     = Color{}
	Red     = Color{R: true}
	Green   = Color{G: true}
	Blue    = Color{B: true}
	Yellow  = Color{R: true, G: true}
	Magenta = Color{R: true, B: true}
	Cyan    = Color{G: true, B: true}
	White   = Color{R: true, G: true, B: true}
)

// Style is how a status color is shown.
type Style int

const (
	Solid Style = iota
	Blink
	BlinkFast
)

func (s Style) period() time.Duration {
	switch s {
	case Blink:
		return 500 * time.Millisecond
	case BlinkFast:
		return 125 * time.Millisecond
	default:
		return 250 * time.Millisecond
	}
}

// StatusLED shows the unit's operating state on an RGB LED.
type StatusLED struct {
	r, g, b OutputPin

	mu    sync.Mutex
	color Color
	style Style
}

func NewStatusLED(r, g, b OutputPin) *StatusLED {
	return &StatusLED{r: r, g: g, b: b}
}

// Set changes what Run displays.
func (l *StatusLED) Set(c Color, s Style) {
	l.mu.Lock()
	l.color, l.style = c, s
	l.mu.Unlock()
}

// Current returns the displayed color and style.
func (l *StatusLED) Current() (Color, Style) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.color, l.style
}

// Run drives the LED until ctx is done, then switches it off.
func (l *StatusLED) Run(ctx context.Context) {
	on := true
	for {
		c, s := l.Current()
		if s == Solid || on {
			l.show(c)
		} else {
			l.show(Off)
		}
		on = !on

		t := time.NewTimer(s.period())
		select {
		case <-ctx.Done():
			t.Stop()
			l.show(Off)
			return
		case <-t.C:
		}
	}
}

func (l *StatusLED) show(c Color) {
	_ = l.r.Write(c.R)
	_ = l.g.Write(c.G)
	_ = l.b.Write(c.B)
}
