package hw_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Portunus/unit/internal/hw"
)

func TestSimPin_Falls(t *testing.T) {
	p := &hw.SimPin{}
	for _, lvl := range []bool{true, true, false, true, false, false} {
		_ = p.Write(lvl)
	}
	assert.Equal(t, 2, p.Falls())
	assert.False(t, p.Read())
}

func TestButton_ActiveLow(t *testing.T) {
	bank := hw.NewSimBank()
	bank.Pin(3).Set(true)
	b := hw.NewButton(bank.Input(3), true)
	assert.False(t, b.Pressed())
	bank.Pin(3).Set(false)
	assert.True(t, b.Pressed())
}

func TestButton_WaitPress(t *testing.T) {
	bank := hw.NewSimBank()
	pin := bank.Pin(1)
	pin.Set(true)
	b := hw.NewButton(pin, true)

	go func() {
		time.Sleep(10 * time.Millisecond)
		pin.Set(false)
		time.Sleep(20 * time.Millisecond)
		pin.Set(true)
	}()
	assert.Equal(t, hw.PressShort, b.WaitPress(context.Background(), time.Millisecond, time.Second))

	go func() {
		time.Sleep(10 * time.Millisecond)
		pin.Set(false)
		time.Sleep(80 * time.Millisecond)
		pin.Set(true)
	}()
	assert.Equal(t, hw.PressLong, b.WaitPress(context.Background(), time.Millisecond, 40*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, hw.PressNone, b.WaitPress(ctx, time.Millisecond, time.Second))
}

func TestStatusLED_RunShowsColorAndTurnsOff(t *testing.T) {
	bank := hw.NewSimBank()
	led := hw.NewStatusLED(bank.Output(1), bank.Output(2), bank.Output(3))
	led.Set(hw.Magenta, hw.Solid)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { led.Run(ctx); close(done) }()

	require.Eventually(t, func() bool {
		return bank.Pin(1).Read() && !bank.Pin(2).Read() && bank.Pin(3).Read()
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.False(t, bank.Pin(1).Read())
	assert.False(t, bank.Pin(3).Read())
}
