package elements

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"

	"github.com/streampipe/recordpipe/internal/mge"
)

// defaultSampleDuration paces samples when two consecutive access units
// carry the same or a non-increasing PTS (e.g. the very first sample).
const defaultSampleDuration = 33 * time.Millisecond

// WebRTCSink is the branch-point leaf for the WebRTC Branch: a queue
// feeds it Annex-B access units, and it writes each one as
// a pion sample on a single outbound video track. Grounded on this
// codebase's lineage having no native webrtcbin binding to call, the same
// way internal/mge/elements/mp4muxer.go stands in for a muxer+filesink
// bin — here a *webrtc.PeerConnection plus a TrackLocalStaticSample
// stands in for the original's tee->queue->webrtcbin wiring, with pion
// doing the RTP packetization the original left to GStreamer.
type WebRTCSink struct {
	mge.BaseElement
	in  *mge.Pad
	bus *mge.Bus

	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	track   *webrtc.TrackLocalStaticSample
	prevPTS time.Duration
	hasPrev bool

	stop chan struct{}
	done chan struct{}
}

// NewWebRTCSink creates a sink element with no peer connection yet; one
// is created on the first call to Offer. Completion/error is posted to
// bus the same way internal/mge/elements/mp4muxer.go does, so the owning
// branch's detach bus-wait observes end-of-stream.
func NewWebRTCSink(name string, queueCapacity int, bus *mge.Bus) *WebRTCSink {
	w := &WebRTCSink{BaseElement: mge.NewBaseElement(name), bus: bus}
	w.in = mge.NewSinkPad("sink", w, queueCapacity)
	w.AddPad(w.in)
	return w
}

// In returns the sink pad the branch's queue links into.
func (w *WebRTCSink) In() *mge.Pad { return w.in }

// Offer applies a client's SDP offer as the remote description, creates a
// local answer, and waits for ICE gathering to complete before returning
// the answer's SDP text.
func (w *WebRTCSink) Offer(offerSDP string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pc != nil {
		return "", fmt.Errorf("webrtcsink: %s already has a peer connection", w.Name())
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		"video", "recordpipe-"+w.Name(),
	)
	if err != nil {
		return "", fmt.Errorf("webrtcsink: new track: %w", err)
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return "", fmt.Errorf("webrtcsink: new peer connection: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		_ = pc.Close()
		return "", fmt.Errorf("webrtcsink: add track: %w", err)
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerSDP,
	}); err != nil {
		_ = pc.Close()
		return "", fmt.Errorf("webrtcsink: set remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = pc.Close()
		return "", fmt.Errorf("webrtcsink: create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		_ = pc.Close()
		return "", fmt.Errorf("webrtcsink: set local description: %w", err)
	}
	<-gatherComplete

	w.pc = pc
	w.track = track
	return pc.LocalDescription().SDP, nil
}

func (w *WebRTCSink) SetState(s mge.State) error {
	switch s {
	case mge.StatePlaying:
		if w.stop != nil {
			return nil
		}
		w.stop = make(chan struct{})
		w.done = make(chan struct{})
		go w.run()
	case mge.StateNull:
		if w.stop != nil {
			close(w.stop)
			<-w.done
			w.stop, w.done = nil, nil
		}
		w.mu.Lock()
		if w.pc != nil {
			_ = w.pc.Close()
			w.pc = nil
		}
		w.mu.Unlock()
	}
	return nil
}

func (w *WebRTCSink) run() {
	defer close(w.done)
	for {
		select {
		case s := <-w.in.Recv():
			if s.EOS {
				if w.bus != nil {
					w.bus.Post(mge.Message{Type: mge.MsgEOS, Source: w.Name()})
				}
				return
			}
			w.mu.Lock()
			track := w.track
			dur := defaultSampleDuration
			if w.hasPrev && s.PTS > w.prevPTS {
				dur = s.PTS - w.prevPTS
			}
			w.prevPTS, w.hasPrev = s.PTS, true
			w.mu.Unlock()
			if track == nil {
				continue
			}
			_ = track.WriteSample(media.Sample{Data: s.Data, Duration: dur})
		case <-w.stop:
			return
		}
	}
}
