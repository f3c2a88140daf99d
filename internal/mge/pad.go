package mge

import (
	"fmt"
	"sync"
	"time"
)

// Direction is a pad's data flow direction.
type Direction int

const (
	PadSrc Direction = iota
	PadSink
)

// Format describes a pad's negotiated media format, enough to implement
// the dynamic-linking acceptance test ("media family = rtp, media kind =
// video, encoding = H264").
type Format struct {
	Family   string // "rtp"
	Kind     string // "video"
	Encoding string // "H264"
}

// Accepts reports whether f satisfies the ingest chain's acceptance
// criteria for linking a dynamically-appearing source pad.
func (f Format) Accepts(family, kind, encoding string) bool {
	return f.Family == family && f.Kind == kind && f.Encoding == encoding
}

// Sample is the unit of data flowing across a linked Pad pair: an access
// unit (one or more NAL units) plus enough metadata for the muxer and
// readiness signal to do their jobs. EOS, when true, carries no Data and
// marks end-of-stream for everything downstream of this pad.
type Sample struct {
	Data     []byte
	Keyframe bool
	PTS      time.Duration
	EOS      bool
}

// ProbeFunc observes (but does not mutate) samples crossing a pad.
type ProbeFunc func(Sample)

// Pad is one endpoint of a link. Sink pads own the channel samples are
// delivered on; source pads hold a reference to their linked sink's
// channel once Link succeeds.
type Pad struct {
	Name      string
	Dir       Direction
	Fmt       Format
	Owner     Element

	mu     sync.RWMutex
	peer   *Pad
	ch     chan Sample // non-nil only on sink pads
	probes []ProbeFunc
}

// NewSinkPad creates a sink pad with a bounded, drop-oldest mailbox of the
// given capacity (the ingest/branch queues size this per their
// max-size-buffers property).
func NewSinkPad(name string, owner Element, capacity int) *Pad {
	if capacity <= 0 {
		capacity = 1
	}
	return &Pad{Name: name, Dir: PadSink, Owner: owner, ch: make(chan Sample, capacity)}
}

// NewSrcPad creates a source pad with no backing channel; it must be
// Linked to a sink pad before Push delivers anything.
func NewSrcPad(name string, owner Element) *Pad {
	return &Pad{Name: name, Dir: PadSrc, Owner: owner}
}

// AddProbe installs an observability probe on this pad.
func (p *Pad) AddProbe(fn ProbeFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes = append(p.probes, fn)
}

// IsLinked reports whether this pad currently has a peer.
func (p *Pad) IsLinked() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.peer != nil
}

// Link connects a source pad to a sink pad. If the sink is already
// linked, this is a rejection (caller logs a warning and does nothing),
// not an error that tears anything down.
func Link(src, sink *Pad) error {
	if src.Dir != PadSrc {
		return fmt.Errorf("mge: Link: %q is not a source pad", src.Name)
	}
	if sink.Dir != PadSink {
		return fmt.Errorf("mge: Link: %q is not a sink pad", sink.Name)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.peer != nil {
		return ErrAlreadyLinked
	}

	src.mu.Lock()
	src.peer = sink
	src.mu.Unlock()

	sink.peer = src
	return nil
}

// Unlink severs a previously-linked pad pair. Safe to call on an already
// unlinked pair (idempotent, matching the detach path's cancel-safety
// requirement).
func Unlink(src, sink *Pad) {
	src.mu.Lock()
	src.peer = nil
	src.mu.Unlock()

	sink.mu.Lock()
	sink.peer = nil
	sink.mu.Unlock()
}

// ErrAlreadyLinked is returned by Link when the sink pad already has a peer.
var ErrAlreadyLinked = fmt.Errorf("mge: sink pad already linked")

// Push sends a sample from a source pad to its linked sink, running any
// probes first. If the pad is unlinked, Push silently drops the sample —
// this is what lets a branch point with "allow not-linked outputs" run
// with zero attached branches. If the sink's mailbox is full, the oldest
// queued sample is dropped to admit the new one (leak policy: "drop
// oldest downstream"), so a slow consumer never blocks the producer.
func (p *Pad) Push(s Sample) {
	p.mu.RLock()
	probes := p.probes
	peer := p.peer
	p.mu.RUnlock()

	for _, fn := range probes {
		fn(s)
	}

	if peer == nil {
		return
	}
	select {
	case peer.ch <- s:
	default:
		select {
		case <-peer.ch:
		default:
		}
		select {
		case peer.ch <- s:
		default:
		}
	}
}

// Recv returns this sink pad's inbound channel for the owning element to
// range/select over.
func (p *Pad) Recv() <-chan Sample {
	return p.ch
}

// Inject delivers a sample directly into this sink pad's own mailbox,
// bypassing peer linkage. Used to push a synthetic EOS sample into a pad
// that has just been unlinked, so the owning element's pump goroutine
// still sees end-of-stream even though Push (which writes to the peer's
// channel) would no longer reach it.
func (p *Pad) Inject(s Sample) {
	if p.ch == nil {
		return
	}
	select {
	case p.ch <- s:
	default:
		select {
		case <-p.ch:
		default:
		}
		select {
		case p.ch <- s:
		default:
		}
	}
}
