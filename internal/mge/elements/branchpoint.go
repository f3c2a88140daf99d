package elements

import (
	"fmt"
	"sync"

	"github.com/streampipe/recordpipe/internal/mge"
)

// BranchPoint is the fan-out node: a graph node with one input and many
// on-demand outputs. Every sample reaching
// its sink pad is copied to every currently-linked requested output pad;
// an output with nothing attached (allow-not-linked=true) is silently
// skipped rather than stalling the fan-out.
type BranchPoint struct {
	mge.BaseElement
	in *mge.Pad

	mu      sync.RWMutex
	outputs map[string]*mge.Pad
	nextID  int

	stop chan struct{}
	done chan struct{}

	onDrop func(padName string)
}

// NewBranchPoint creates a branch point with the given input mailbox
// capacity.
func NewBranchPoint(name string, queueCapacity int) *BranchPoint {
	bp := &BranchPoint{
		BaseElement: mge.NewBaseElement(name),
		outputs:     make(map[string]*mge.Pad),
	}
	bp.in = mge.NewSinkPad("sink", bp, queueCapacity)
	bp.AddPad(bp.in)
	return bp
}

// In returns the fan-in sink pad.
func (bp *BranchPoint) In() *mge.Pad { return bp.in }

// OnDrop registers a callback invoked whenever a sample could not be
// delivered to a requested-but-unlinked output (silent-logs=false: the
// event is observable, just not fatal).
func (bp *BranchPoint) OnDrop(fn func(padName string)) { bp.onDrop = fn }

// RequestPad mints a new output pad matching the "src_%u" template.
func (bp *BranchPoint) RequestPad(template string) (*mge.Pad, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	name := fmt.Sprintf("src_%d", bp.nextID)
	bp.nextID++
	p := mge.NewSrcPad(name, bp)
	bp.outputs[name] = p
	bp.AddPad(p)
	return p, nil
}

// ReleasePad removes a previously requested output pad. Pad names are
// not reused: the next RequestPad mints a new, higher-numbered name.
func (bp *BranchPoint) ReleasePad(pad *mge.Pad) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if _, ok := bp.outputs[pad.Name]; !ok {
		return fmt.Errorf("mge: branch point %s: pad %s not owned", bp.Name(), pad.Name)
	}
	delete(bp.outputs, pad.Name)
	bp.RemovePad(pad.Name)
	return nil
}

func (bp *BranchPoint) SetState(s mge.State) error {
	switch s {
	case mge.StatePlaying:
		if bp.stop != nil {
			return nil
		}
		bp.stop = make(chan struct{})
		bp.done = make(chan struct{})
		go bp.run()
	case mge.StateNull:
		if bp.stop != nil {
			close(bp.stop)
			<-bp.done
			bp.stop, bp.done = nil, nil
		}
	}
	return nil
}

func (bp *BranchPoint) run() {
	defer close(bp.done)
	for {
		select {
		case s := <-bp.in.Recv():
			bp.fanOut(s)
			if s.EOS {
				return
			}
		case <-bp.stop:
			return
		}
	}
}

func (bp *BranchPoint) fanOut(s mge.Sample) {
	bp.mu.RLock()
	outs := make([]*mge.Pad, 0, len(bp.outputs))
	for _, p := range bp.outputs {
		outs = append(outs, p)
	}
	bp.mu.RUnlock()

	for _, p := range outs {
		if !p.IsLinked() {
			if bp.onDrop != nil {
				bp.onDrop(p.Name)
			}
			continue
		}
		p.Push(s)
	}
}
