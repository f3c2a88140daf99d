// Package elements implements the concrete node set the ingest and
// recording-branch topologies are built from, on top of the generic
// internal/mge graph runtime.
package elements

import (
	"sync"

	"github.com/streampipe/recordpipe/internal/mge"
)

// Identity is a passthrough element that raises a "handoff" callback the
// first time a sample crosses it — the session's readiness signal.
// Unlike the rest of the chain it is transform-free by design; its only
// job is observability.
type Identity struct {
	mge.BaseElement
	in  *mge.Pad
	out *mge.Pad

	mu       sync.Mutex
	handoffs []func()
	fired    bool

	stop chan struct{}
	done chan struct{}
}

// NewIdentity creates an identity element with a bounded input mailbox.
func NewIdentity(name string, queueCapacity int) *Identity {
	id := &Identity{BaseElement: mge.NewBaseElement(name)}
	id.in = mge.NewSinkPad("sink", id, queueCapacity)
	id.out = mge.NewSrcPad("src", id)
	id.AddPad(id.in)
	id.AddPad(id.out)
	return id
}

// In returns the sink pad upstream elements link to.
func (id *Identity) In() *mge.Pad { return id.in }

// Out returns the source pad downstream elements link to.
func (id *Identity) Out() *mge.Pad { return id.out }

// OnHandoff registers a callback fired exactly once, the first time a
// sample is handed off. Registering after the handoff already fired
// invokes fn immediately so late subscribers don't miss it.
func (id *Identity) OnHandoff(fn func()) {
	id.mu.Lock()
	already := id.fired
	if !already {
		id.handoffs = append(id.handoffs, fn)
	}
	id.mu.Unlock()
	if already {
		fn()
	}
}

// SetState starts or stops the pump goroutine.
func (id *Identity) SetState(s mge.State) error {
	switch s {
	case mge.StatePlaying:
		if id.stop != nil {
			return nil
		}
		id.stop = make(chan struct{})
		id.done = make(chan struct{})
		go id.run()
	case mge.StateNull:
		if id.stop != nil {
			close(id.stop)
			<-id.done
			id.stop, id.done = nil, nil
		}
	}
	return nil
}

func (id *Identity) run() {
	defer close(id.done)
	for {
		select {
		case s := <-id.in.Recv():
			id.maybeFire()
			id.out.Push(s)
			if s.EOS {
				return
			}
		case <-id.stop:
			return
		}
	}
}

func (id *Identity) maybeFire() {
	id.mu.Lock()
	if id.fired {
		id.mu.Unlock()
		return
	}
	id.fired = true
	cbs := id.handoffs
	id.handoffs = nil
	id.mu.Unlock()
	for _, fn := range cbs {
		fn()
	}
}
