// Package mqttcmd implements the unit's remote command grammar and the MQTT
// transport that carries it.
//
// A command is a three-letter opcode followed by fixed-width positional
// fields, e.g. "C02300001" pulses door 1 for 3000 ms.
package mqttcmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/clock"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/store"
)

// Doors is the door surface remote commands act on.
type Doors interface {
	OpenDoor(id int, d time.Duration)
	CloseDoor(id int)
	PermanentOpenDoor(id int)
	ReverseDoor(id int)
	Monitor(id int) bool
	IsPermanentOpen(id int) bool
}

type Parser struct {
	doors  Doors
	props  store.PropertyStore
	unitID string
	clk    clock.Clock
	logger *zap.Logger
}

func NewParser(doors Doors, props store.PropertyStore, unitID string, clk clock.Clock, logger *zap.Logger) *Parser {
	return &Parser{doors: doors, props: props, unitID: unitID, clk: clk, logger: logger.Named("mqttcmd")}
}

// Parse executes cmd and returns the reply to publish, which is empty for
// commands without a reply and for anything that could not be executed.
func (p *Parser) Parse(ctx context.Context, cmd string) string {
	if len(cmd) < 3 {
		return p.unknown(cmd)
	}
	switch cmd[:3] {
	case "C02":
		if err := p.doorCommand(cmd); err != nil {
			p.logger.Warn("bad door command", zap.String("command", cmd), zap.Error(err))
		}
		return ""
	case "C03":
		return fmt.Sprintf("X03|%s|%d", p.unitID, p.clk.Now().Unix())
	case "C13":
		return p.uptime(ctx)
	case "C17":
		return p.state("Magnet1", p.doors.Monitor(1))
	case "C18":
		return p.state("Magnet2", p.doors.Monitor(2))
	case "C19":
		return p.state("Relay1", p.doors.IsPermanentOpen(1))
	case "C20":
		return p.state("Relay2", p.doors.IsPermanentOpen(2))
	}
	return p.unknown(cmd)
}

// doorCommand handles C02<ms:4><pad:1><subtype:1>. Odd subtypes address
// door 1, even ones door 2: 1/2 pulse, 3/4 close, 5/6 permanent open,
// 7/8 reverse.
func (p *Parser) doorCommand(cmd string) error {
	if len(cmd) < 9 {
		return fmt.Errorf("want 9 characters, got %d", len(cmd))
	}
	ms, err := strconv.Atoi(cmd[3:7])
	if err != nil {
		return fmt.Errorf("pulse length: %w", err)
	}
	sub, err := strconv.Atoi(cmd[8:9])
	if err != nil {
		return fmt.Errorf("subtype: %w", err)
	}
	if sub < 1 || sub > 8 {
		return fmt.Errorf("subtype %d out of range", sub)
	}

	id := 2 - sub%2
	switch (sub + 1) / 2 {
	case 1:
		p.doors.OpenDoor(id, time.Duration(ms)*time.Millisecond)
	case 2:
		p.doors.CloseDoor(id)
	case 3:
		p.doors.PermanentOpenDoor(id)
	case 4:
		p.doors.ReverseDoor(id)
	}
	return nil
}

func (p *Parser) uptime(ctx context.Context) string {
	v, err := p.props.GetProp(ctx, store.TableRunning, store.PropLastStart)
	if err != nil {
		p.logger.Warn("uptime: last start unavailable", zap.Error(err))
		return ""
	}
	start, err := time.ParseInLocation(store.LastStartLayout, v, time.Local)
	if err != nil {
		p.logger.Warn("uptime: bad last start", zap.String("value", v), zap.Error(err))
		return ""
	}
	minutes := int64(p.clk.Now().Sub(start) / time.Minute)
	return fmt.Sprintf("X13|%s|Up:%d", p.unitID, minutes)
}

func (p *Parser) state(name string, on bool) string {
	v := "Off"
	if on {
		v = "On"
	}
	return fmt.Sprintf("X55|%s|%s:%s\n", p.unitID, name, v)
}

func (p *Parser) unknown(cmd string) string {
	p.logger.Warn("unknown command", zap.String("command", cmd))
	return ""
}
