package mge

// GhostPad is a sub-graph boundary pad that proxies an internal element's
// pad, so a Recording Branch's sub-graph can be linked by the owning
// session's branch point without the branch point knowing the sub-graph's
// internal topology (queue → parser → muxer → filesink).
//
// A ghost sink pad simply *is* the target's pad from the outside world's
// perspective: Link/Push operate directly on Target, matching the
// underlying engine's proxy-pad semantics (the ghost pad has no buffering
// of its own).
type GhostPad struct {
	*Pad
	Target *Pad
	active bool
}

// NewGhostSink creates a ghost input pad proxying target (normally a
// sub-graph's first element's sink pad, e.g. the branch queue's input).
func NewGhostSink(name string, target *Pad) *GhostPad {
	return &GhostPad{Pad: target, Target: target}
}

// SetActive toggles the ghost pad's active flag. The ghost input must
// be activated before the sub-graph is added to the parent graph.
func (g *GhostPad) SetActive(active bool) { g.active = active }

// Active reports the ghost pad's active flag.
func (g *GhostPad) Active() bool { return g.active }
