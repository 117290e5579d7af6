package hw

import "sync"

// SimPin is an in-memory line usable as input and output.
type SimPin struct {
	mu     sync.Mutex
	level  bool
	writes []bool
}

func (p *SimPin) Read() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *SimPin) Write(high bool) error {
	p.mu.Lock()
	p.level = high
	p.writes = append(p.writes, high)
	p.mu.Unlock()
	return nil
}

// Set changes the level without recording a write, as an external signal would.
func (p *SimPin) Set(high bool) {
	p.mu.Lock()
	p.level = high
	p.mu.Unlock()
}

// Writes returns every level written so far.
func (p *SimPin) Writes() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.writes...)
}

// Falls counts high-to-low transitions among the recorded writes.
func (p *SimPin) Falls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	prev := false
	for _, w := range p.writes {
		if prev && !w {
			n++
		}
		prev = w
	}
	return n
}

// SimBank is a Bank of SimPins created on first use.
type SimBank struct {
	mu   sync.Mutex
	pins map[int]*SimPin
}

func NewSimBank() *SimBank {
	return &SimBank{pins: make(map[int]*SimPin)}
}

// Pin returns the SimPin for n, creating it if needed.
func (b *SimBank) Pin(n int) *SimPin {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pins[n]
	if !ok {
		p = &SimPin{}
		b.pins[n] = p
	}
	return p
}

func (b *SimBank) Input(n int) InputPin   { return b.Pin(n) }
func (b *SimBank) Output(n int) OutputPin { return b.Pin(n) }
