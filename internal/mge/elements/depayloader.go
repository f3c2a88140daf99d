package elements

import (
	"bytes"
	"errors"

	"github.com/bluenviron/gortsplib/v4/pkg/format/rtph264"
	"github.com/pion/rtp"

	"github.com/streampipe/recordpipe/internal/mge"
)

var annexBStartCode = []byte{0x00, 0x00, 0x00, 0x01}

// Depayloader turns the RTP/H264 packets the RTSP source element
// forwards into Annex-B access units, using gortsplib's RTP/H264
// decoder — the same depacketization logic the rest of the MediaMTX
// family relies on. "Wait for keyframe" is implemented by dropping every
// access unit until the first one containing an IDR NAL unit is seen.
type Depayloader struct {
	mge.BaseElement
	in  *mge.Pad
	out *mge.Pad

	dec         *rtph264.Decoder
	sawKeyframe bool

	stop chan struct{}
	done chan struct{}
}

// NewDepayloader creates a depayloader element.
func NewDepayloader(name string, queueCapacity int) *Depayloader {
	d := &Depayloader{BaseElement: mge.NewBaseElement(name), dec: &rtph264.Decoder{}}
	d.dec.Init()
	d.in = mge.NewSinkPad("sink", d, queueCapacity)
	d.out = mge.NewSrcPad("src", d)
	d.AddPad(d.in)
	d.AddPad(d.out)
	return d
}

func (d *Depayloader) In() *mge.Pad  { return d.in }
func (d *Depayloader) Out() *mge.Pad { return d.out }

func (d *Depayloader) SetState(s mge.State) error {
	switch s {
	case mge.StatePlaying:
		if d.stop != nil {
			return nil
		}
		d.stop = make(chan struct{})
		d.done = make(chan struct{})
		go d.run()
	case mge.StateNull:
		if d.stop != nil {
			close(d.stop)
			<-d.done
			d.stop, d.done = nil, nil
		}
	}
	return nil
}

func (d *Depayloader) run() {
	defer close(d.done)
	for {
		select {
		case s := <-d.in.Recv():
			if s.EOS {
				d.out.Push(s)
				return
			}
			d.handle(s)
		case <-d.stop:
			return
		}
	}
}

func (d *Depayloader) handle(s mge.Sample) {
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(s.Data); err != nil {
		return
	}

	au, err := d.dec.Decode(pkt)
	if err != nil {
		if errors.Is(err, rtph264.ErrMorePacketsNeeded) || errors.Is(err, rtph264.ErrNonStartingPacketAndNoPrevious) {
			return
		}
		return
	}

	keyframe := false
	var buf bytes.Buffer
	for _, nalu := range au {
		if len(nalu) > 0 && nalu[0]&0x1F == 5 {
			keyframe = true
		}
		buf.Write(annexBStartCode)
		buf.Write(nalu)
	}

	if !d.sawKeyframe {
		if !keyframe {
			return
		}
		d.sawKeyframe = true
	}

	d.out.Push(mge.Sample{Data: buf.Bytes(), Keyframe: keyframe, PTS: s.PTS})
}
