package elements

import (
	"bytes"

	"github.com/streampipe/recordpipe/internal/mge"
)

// H264Parser enforces an "emit parameter sets with every IDR frame;
// passthrough disabled" policy: it remembers the
// most recently seen SPS/PPS NAL units and, for any access unit flagged
// as a keyframe that doesn't already carry them, prepends them so the
// MP4 muxer (and any mid-stream joiner) always has what it needs to
// decode from that point.
type H264Parser struct {
	mge.BaseElement
	in  *mge.Pad
	out *mge.Pad

	sps []byte
	pps []byte

	stop chan struct{}
	done chan struct{}
}

// NewH264Parser creates a parser element.
func NewH264Parser(name string, queueCapacity int) *H264Parser {
	p := &H264Parser{BaseElement: mge.NewBaseElement(name)}
	p.in = mge.NewSinkPad("sink", p, queueCapacity)
	p.out = mge.NewSrcPad("src", p)
	p.AddPad(p.in)
	p.AddPad(p.out)
	return p
}

func (p *H264Parser) In() *mge.Pad  { return p.in }
func (p *H264Parser) Out() *mge.Pad { return p.out }

func (p *H264Parser) SetState(s mge.State) error {
	switch s {
	case mge.StatePlaying:
		if p.stop != nil {
			return nil
		}
		p.stop = make(chan struct{})
		p.done = make(chan struct{})
		go p.run()
	case mge.StateNull:
		if p.stop != nil {
			close(p.stop)
			<-p.done
			p.stop, p.done = nil, nil
		}
	}
	return nil
}

func (p *H264Parser) run() {
	defer close(p.done)
	for {
		select {
		case s := <-p.in.Recv():
			if s.EOS {
				p.out.Push(s)
				return
			}
			p.out.Push(p.normalize(s))
		case <-p.stop:
			return
		}
	}
}

func (p *H264Parser) normalize(s mge.Sample) mge.Sample {
	nalus := splitAnnexB(s.Data)
	hasSPS, hasPPS := false, false
	for _, n := range nalus {
		if len(n) == 0 {
			continue
		}
		switch n[0] & 0x1F {
		case 7:
			p.sps = append([]byte{}, n...)
			hasSPS = true
		case 8:
			p.pps = append([]byte{}, n...)
			hasPPS = true
		}
	}

	if !s.Keyframe || (hasSPS && hasPPS) || (p.sps == nil && p.pps == nil) {
		return s
	}

	var buf bytes.Buffer
	if !hasSPS && p.sps != nil {
		buf.Write(annexBStartCode)
		buf.Write(p.sps)
	}
	if !hasPPS && p.pps != nil {
		buf.Write(annexBStartCode)
		buf.Write(p.pps)
	}
	buf.Write(s.Data)
	s.Data = buf.Bytes()
	return s
}

func splitAnnexB(data []byte) [][]byte {
	var out [][]byte
	idx := bytes.Index(data, annexBStartCode)
	for idx != -1 {
		rest := data[idx+len(annexBStartCode):]
		next := bytes.Index(rest, annexBStartCode)
		if next == -1 {
			out = append(out, rest)
			break
		}
		out = append(out, rest[:next])
		data = rest[next:]
		idx = bytes.Index(data, annexBStartCode)
	}
	return out
}
