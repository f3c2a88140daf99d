package mge

import "sync"

// BaseElement implements the Element interface's bookkeeping (name, pad
// lookup by name) so concrete elements only need to embed it and add
// their own pads and behavior.
type BaseElement struct {
	name string

	mu   sync.RWMutex
	pads map[string]*Pad
}

// NewBaseElement creates a BaseElement with the given name.
func NewBaseElement(name string) BaseElement {
	return BaseElement{name: name, pads: make(map[string]*Pad)}
}

func (b *BaseElement) Name() string { return b.name }

// AddPad registers a pad under this element by name.
func (b *BaseElement) AddPad(p *Pad) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pads[p.Name] = p
}

// RemovePad unregisters a pad by name.
func (b *BaseElement) RemovePad(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pads, name)
}

// Pad looks up a pad by name.
func (b *BaseElement) Pad(name string) (*Pad, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.pads[name]
	return p, ok
}
