package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/streampipe/recordpipe/internal/mge"
	"github.com/streampipe/recordpipe/internal/mge/elements"
	"github.com/streampipe/recordpipe/internal/streamerrors"
)

// WebRTCBranch is the WebRTC Branch (C7) sub-graph attached to the
// session's branch point: queue -> webrtc endpoint, using the same
// branch-point attach/detach protocol recording branches use. Unlike a
// RecordingBranch it is torn down by session teardown or an explicit
// client hangup, never by a "stop" request naming it.
type WebRTCBranch struct {
	ID        string
	StartedAt time.Time

	branchPad *mge.Pad
	ghost     *mge.GhostPad
	queue     *elements.Queue
	sink      *elements.WebRTCSink

	state atomic.Int32 // BranchState
}

func (b *WebRTCBranch) State() BranchState    { return BranchState(b.state.Load()) }
func (b *WebRTCBranch) setState(s BranchState) { b.state.Store(int32(s)) }

// AttachWebRTC builds a queue->webrtc-endpoint branch, links it to the
// session's branch point, applies offerSDP as the remote description, and
// returns the branch id plus the answer SDP.
func (s *Session) AttachWebRTC(ctx context.Context, offerSDP string) (string, string, error) {
	if err := s.requireLive(); err != nil {
		return "", "", err
	}
	if err := s.waitReady(ctx); err != nil {
		return "", "", err
	}

	id := newRecordingID()
	branch := &WebRTCBranch{ID: id, StartedAt: time.Now()}
	branch.setState(BranchAttaching)

	branch.queue = elements.NewQueue(fmt.Sprintf("webrtc-%s-queue", id), s.cfg.BranchQueueMaxBuffers)
	branch.sink = elements.NewWebRTCSink(fmt.Sprintf("webrtc-%s-sink", id), s.cfg.BranchQueueMaxBuffers, s.graph.Bus)

	s.graph.Add(branch.queue)
	s.graph.Add(branch.sink)

	if err := mge.Link(branch.queue.Out(), branch.sink.In()); err != nil {
		return "", "", streamerrors.NewPipelineError("failed to link webrtc branch queue to sink", err)
	}

	pad, err := s.branchPoint.RequestPad("src_%u")
	if err != nil {
		return "", "", streamerrors.NewPipelineError("failed to request branch point pad", err)
	}
	branch.branchPad = pad

	branch.ghost = mge.NewGhostSink("sink", branch.queue.In())
	branch.ghost.SetActive(true)

	s.mu.Lock()
	s.webrtcBranches[id] = branch
	s.mu.Unlock()

	if err := mge.Link(pad, branch.ghost.Pad); err != nil {
		s.abortWebRTCBranch(id, branch)
		return "", "", streamerrors.NewPipelineError("failed to link branch point pad to webrtc branch", err)
	}

	for _, e := range []mge.StateChanger{branch.queue, branch.sink} {
		if err := e.SetState(mge.StatePlaying); err != nil {
			s.abortWebRTCBranch(id, branch)
			return "", "", streamerrors.NewPipelineError("failed to start webrtc branch element", err)
		}
	}

	answer, err := branch.sink.Offer(offerSDP)
	if err != nil {
		_ = s.detachWebRTCBranch(ctx, id)
		return "", "", streamerrors.NewPipelineError("failed to negotiate webrtc offer", err)
	}

	branch.setState(BranchCapturing)
	s.logger.WithField("webrtc_branch_id", id).Info("webrtc branch attached")
	return id, answer, nil
}

func (s *Session) abortWebRTCBranch(id string, branch *WebRTCBranch) {
	s.mu.Lock()
	delete(s.webrtcBranches, id)
	s.mu.Unlock()
	if branch.branchPad != nil {
		_ = s.branchPoint.ReleasePad(branch.branchPad)
	}
}

// DetachWebRTC tears down one webrtc branch by id (client hangup).
// detachWebRTCBranch owns the lookup and removal from s.webrtcBranches;
// this only peeks to report an unknown id without racing that removal.
func (s *Session) DetachWebRTC(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.webrtcBranches[id]
	s.mu.Unlock()

	if !ok {
		return streamerrors.NewStreamError("no such webrtc branch")
	}
	return s.detachWebRTCBranch(ctx, id)
}

// detachWebRTCBranch mirrors detachBranch's unlink -> EOS -> bus-wait ->
// null -> release-pad ordering, the same teardown steps a recording
// branch uses.
func (s *Session) detachWebRTCBranch(ctx context.Context, id string) error {
	s.mu.Lock()
	branch, ok := s.webrtcBranches[id]
	if ok {
		delete(s.webrtcBranches, id)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	branch.setState(BranchDraining)

	sub := s.graph.Bus.Subscribe()

	mge.Unlink(branch.branchPad, branch.ghost.Pad)
	branch.ghost.SetActive(false)
	branch.queue.In().Inject(mge.Sample{EOS: true})

	_, err := mge.Wait(ctx, sub, s.cfg.DetachBusWait, mge.MsgEOS, mge.MsgError)
	s.graph.Bus.Unsubscribe(sub)

	for _, e := range []mge.StateChanger{branch.queue, branch.sink} {
		_ = e.SetState(mge.StateNull)
	}

	s.graph.Remove(branch.queue)
	s.graph.Remove(branch.sink)

	if relErr := s.branchPoint.ReleasePad(branch.branchPad); relErr != nil {
		s.logger.WithError(relErr).Warn("failed to release branch point pad for webrtc branch")
	}

	branch.setState(BranchDetached)
	s.logger.WithField("webrtc_branch_id", branch.ID).Info("webrtc branch detached")

	if err != nil {
		s.logger.WithError(err).WithField("webrtc_branch_id", branch.ID).
			Warn("detach bus wait timed out, proceeding with cleanup")
	}
	return nil
}
