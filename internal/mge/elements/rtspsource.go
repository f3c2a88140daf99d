package elements

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/pion/rtp"

	"github.com/streampipe/recordpipe/internal/mge"
)

// RTSPSourceConfig holds the RTSP source's properties. The source applies
// Location, TCPTimeout (as the client's read and write timeout) and
// UDPBufferBytes; Latency, ConnectTimeout, Retry, Retransmission, NTPSync,
// DropOnLatency and BufferModeAuto are stored but not applied.
type RTSPSourceConfig struct {
	Location         string
	Latency          time.Duration
	ConnectTimeout   time.Duration
	Retry            int
	Retransmission   bool
	NTPSync          bool
	DropOnLatency    bool
	TCPTimeout       time.Duration
	UDPBufferBytes   int
	BufferModeAuto   bool
}

// RTSPSource is the ingest chain's network-facing element: it negotiates
// an RTSP session with gortsplib and, once the H264 video media is set
// up, exposes a dynamic output pad carrying raw RTP packets for the
// Depayloader downstream to turn into access units.
type RTSPSource struct {
	mge.BaseElement
	cfg RTSPSourceConfig

	out *mge.Pad

	mu        sync.Mutex
	client    *gortsplib.Client
	connected atomic.Bool

	stop chan struct{}
	done chan struct{}

	onPadAdded func(*mge.Pad, mge.Format)
	onError    func(error)
}

// NewRTSPSource creates a source element; its output pad is created lazily
// once RTSP negotiation succeeds (pad-added is asynchronous).
func NewRTSPSource(name string, cfg RTSPSourceConfig) *RTSPSource {
	return &RTSPSource{BaseElement: mge.NewBaseElement(name), cfg: cfg}
}

// OnPadAdded registers the callback fired once the source's output pad
// exists, so the session can run the dynamic-linking acceptance test.
func (s *RTSPSource) OnPadAdded(fn func(*mge.Pad, mge.Format)) { s.onPadAdded = fn }

// OnError registers a callback for unrecoverable negotiation/playback
// failures, surfaced by the session as a bus error message.
func (s *RTSPSource) OnError(fn func(error)) { s.onError = fn }

// Connected reports whether the source has an active, playing RTSP
// session — the source-side half of the "graph reaches running state"
// condition the connect procedure polls for.
func (s *RTSPSource) Connected() bool { return s.connected.Load() }

func (s *RTSPSource) SetState(state mge.State) error {
	switch state {
	case mge.StatePlaying:
		if s.stop != nil {
			return nil
		}
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.run()
	case mge.StateNull:
		s.mu.Lock()
		client := s.client
		s.client = nil
		s.mu.Unlock()
		if client != nil {
			client.Close()
		}
		if s.stop != nil {
			close(s.stop)
			<-s.done
			s.stop, s.done = nil, nil
		}
		s.connected.Store(false)
	}
	return nil
}

func (s *RTSPSource) run() {
	defer close(s.done)

	u, err := base.ParseURL(s.cfg.Location)
	if err != nil {
		s.fail(fmt.Errorf("parse rtsp url: %w", err))
		return
	}

	client := &gortsplib.Client{
		ReadTimeout:           s.cfg.TCPTimeout,
		WriteTimeout:          s.cfg.TCPTimeout,
		UDPReadBufferSize:     s.cfg.UDPBufferBytes,
	}
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	if err := client.Start(u.Scheme, u.Host); err != nil {
		s.fail(fmt.Errorf("start rtsp client: %w", err))
		return
	}

	desc, _, err := client.Describe(u)
	if err != nil {
		s.fail(fmt.Errorf("describe: %w", err))
		return
	}

	var forma *format.H264
	media := desc.FindFormat(&forma)
	if media == nil {
		s.fail(fmt.Errorf("no H264 media in stream"))
		return
	}

	if _, err := client.Setup(desc.BaseURL, media, 0, 0); err != nil {
		s.fail(fmt.Errorf("setup: %w", err))
		return
	}

	s.out = mge.NewSrcPad("src", s)
	s.AddPad(s.out)
	padFormat := mge.Format{Family: "rtp", Kind: "video", Encoding: "H264"}
	if s.onPadAdded != nil {
		s.onPadAdded(s.out, padFormat)
	}

	client.OnPacketRTP(media, forma, func(pkt *rtp.Packet) {
		data, err := pkt.Marshal()
		if err != nil {
			return
		}
		s.out.Push(mge.Sample{Data: data, PTS: time.Duration(pkt.Timestamp)})
	})

	if _, err := client.Play(nil); err != nil {
		s.fail(fmt.Errorf("play: %w", err))
		return
	}
	s.connected.Store(true)

	select {
	case <-s.stop:
		return
	case <-client.Wait():
		s.connected.Store(false)
		if s.onError != nil {
			s.onError(fmt.Errorf("rtsp session ended"))
		}
	}
}

func (s *RTSPSource) fail(err error) {
	s.connected.Store(false)
	if s.onError != nil {
		s.onError(err)
	}
}
