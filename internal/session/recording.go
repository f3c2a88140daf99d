package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/streampipe/recordpipe/internal/diskspace"
	"github.com/streampipe/recordpipe/internal/mge"
	"github.com/streampipe/recordpipe/internal/mge/elements"
	"github.com/streampipe/recordpipe/internal/streamerrors"
)

// RecordingBranch is the sub-graph a recording start request attaches to
// the session's branch point: queue -> h264parser -> mp4muxer+filesink,
// fed through a requested output pad. Grounded on the
// original recording-bin construction — queue/h264parse/mp4mux/filesink
// built as a unit, ghosted onto the tee's requested src pad — but
// expressed here as a plain element chain since the Media Graph Engine
// has no Bin concept: a branch is just pads linked and later unlinked.
type RecordingBranch struct {
	RecordingID string
	FilePath    string
	StartedAt   time.Time

	branchPad *mge.Pad
	ghost     *mge.GhostPad
	queue     *elements.Queue
	parser    *elements.H264Parser
	muxer     *elements.MP4Muxer

	state atomic.Int32 // BranchState
}

func (b *RecordingBranch) State() BranchState { return BranchState(b.state.Load()) }
func (b *RecordingBranch) setState(s BranchState) { b.state.Store(int32(s)) }

// StartRecording attaches a new Recording Branch to the session's branch
// point and returns its minted recording id. By design, only one
// recording may be active on a session at a time; a second start while
// one is already attached is rejected.
func (s *Session) StartRecording(ctx context.Context) (string, string, error) {
	if err := s.requireLive(); err != nil {
		return "", "", err
	}

	s.mu.Lock()
	if len(s.activeRecordings) > 0 {
		s.mu.Unlock()
		return "", "", streamerrors.ErrAlreadyRecording
	}
	s.mu.Unlock()

	if err := s.waitReady(ctx); err != nil {
		return "", "", err
	}

	if low, info, err := diskspace.LowSpace(s.recordingDir, s.cfg.LowSpaceWarnBytes); err != nil {
		s.logger.WithError(err).Warn("failed to check recording directory free space")
	} else if low {
		s.logger.WithField("available_bytes", info.AvailableBytes).
			Warn("recording directory is low on free space, starting recording anyway")
	}

	recordingID := newRecordingID()
	filePath := filepath.Join(s.recordingDir, recordingID+".mp4")

	branch := &RecordingBranch{
		RecordingID: recordingID,
		FilePath:    filePath,
		StartedAt:   time.Now(),
	}
	branch.setState(BranchAttaching)

	// Step 1: build the branch's element chain, unlinked.
	branch.queue = elements.NewQueue(fmt.Sprintf("rec-%s-queue", recordingID), s.cfg.BranchQueueMaxBuffers)
	branch.parser = elements.NewH264Parser(fmt.Sprintf("rec-%s-parser", recordingID), s.cfg.BranchQueueMaxBuffers)
	branch.muxer = elements.NewMP4Muxer(fmt.Sprintf("rec-%s-muxer", recordingID), s.ffmpegPath, filePath, s.graph.Bus, s.cfg.BranchQueueMaxBuffers)

	s.graph.Add(branch.queue)
	s.graph.Add(branch.parser)
	s.graph.Add(branch.muxer)

	if err := mge.Link(branch.queue.Out(), branch.parser.In()); err != nil {
		return "", "", streamerrors.NewPipelineError("failed to link branch queue to parser", err)
	}
	if err := mge.Link(branch.parser.Out(), branch.muxer.In()); err != nil {
		return "", "", streamerrors.NewPipelineError("failed to link branch parser to muxer", err)
	}

	// Step 2: request an output pad from the branch point, register it
	// before linking so a concurrent Status call never observes a
	// recording id with no backing pad.
	pad, err := s.branchPoint.RequestPad("src_%u")
	if err != nil {
		return "", "", streamerrors.NewPipelineError("failed to request branch point pad", err)
	}
	branch.branchPad = pad

	// The branch's sub-graph is exposed to the branch point as a single
	// ghost sink pad over the queue's real sink, so attach/detach never
	// needs to know the sub-graph's internal topology.
	branch.ghost = mge.NewGhostSink("sink", branch.queue.In())
	branch.ghost.SetActive(true)

	s.mu.Lock()
	s.activeRecordings[recordingID] = branch
	s.mu.Unlock()

	// Step 3: link the requested pad to the branch's ghost sink.
	if err := mge.Link(pad, branch.ghost.Pad); err != nil {
		s.abortBranch(recordingID, branch)
		return "", "", streamerrors.NewPipelineError("failed to link branch point pad to branch queue", err)
	}

	// Step 4: sync branch element states to the graph's running state and
	// start them explicitly (the engine has no sync_children_states, so
	// each element is driven to Playing directly), dispatched through the
	// bounded worker pool since the muxer's start blocks on spawning ffmpeg.
	changers := []mge.StateChanger{branch.queue, branch.parser, branch.muxer}
	fns := make([]func() error, len(changers))
	for i, e := range changers {
		e := e
		fns[i] = func() error { return e.SetState(mge.StatePlaying) }
	}
	if err := mge.DefaultPool().SubmitAll(ctx, fns...); err != nil {
		s.abortBranch(recordingID, branch)
		return "", "", streamerrors.NewPipelineError("failed to start branch element", err)
	}

	branch.setState(BranchCapturing)
	s.logger.WithField("recording_id", recordingID).Info("recording branch attached")
	return recordingID, filePath, nil
}

// waitReady polls the readiness flag up to the configured ReadinessWait
// window: attaching before data flows leads to negotiation stalls on
// the branch's input side.
func (s *Session) waitReady(ctx context.Context) error {
	if s.Ready() {
		return nil
	}
	deadline := time.NewTimer(s.cfg.ReadinessWait)
	defer deadline.Stop()
	ticker := time.NewTicker(s.cfg.ReadinessPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.Ready() {
				return nil
			}
		case <-deadline.C:
			return streamerrors.NewStreamError("Stream is not ready for recording")
		case <-ctx.Done():
			return streamerrors.NewStreamError("Stream is not ready for recording")
		}
	}
}

func (s *Session) abortBranch(recordingID string, branch *RecordingBranch) {
	s.mu.Lock()
	delete(s.activeRecordings, recordingID)
	s.mu.Unlock()
	if branch.branchPad != nil {
		_ = s.branchPoint.ReleasePad(branch.branchPad)
	}
}

// StopRecording detaches the session's single active recording. The
// wire contract names no recording id, so this always targets
// whichever recording is currently attached.
func (s *Session) StopRecording(ctx context.Context) (string, int64, error) {
	s.mu.Lock()
	var branch *RecordingBranch
	for id, b := range s.activeRecordings {
		branch = b
		delete(s.activeRecordings, id)
		break
	}
	s.mu.Unlock()

	if branch == nil {
		return "", 0, streamerrors.ErrNoActiveRecording
	}

	if err := s.detachBranch(ctx, branch); err != nil {
		return branch.RecordingID, branch.muxer.FileSize(), err
	}
	return branch.RecordingID, branch.muxer.FileSize(), nil
}

// detachBranch implements the unlink -> EOS -> bus-wait -> null ->
// release-pad ordering contract recording branches follow.
func (s *Session) detachBranch(ctx context.Context, branch *RecordingBranch) error {
	branch.setState(BranchDraining)

	sub := s.graph.Bus.Subscribe()

	mge.Unlink(branch.branchPad, branch.ghost.Pad)
	branch.ghost.SetActive(false)
	branch.queue.In().Inject(mge.Sample{EOS: true})

	_, err := mge.Wait(ctx, sub, s.cfg.DetachBusWait, mge.MsgEOS, mge.MsgError)
	s.graph.Bus.Unsubscribe(sub)

	for _, e := range []mge.StateChanger{branch.queue, branch.parser, branch.muxer} {
		_ = e.SetState(mge.StateNull)
	}

	s.graph.Remove(branch.queue)
	s.graph.Remove(branch.parser)
	s.graph.Remove(branch.muxer)

	if relErr := s.branchPoint.ReleasePad(branch.branchPad); relErr != nil {
		s.logger.WithError(relErr).Warn("failed to release branch point pad")
	}

	branch.setState(BranchDetached)
	s.logger.WithField("recording_id", branch.RecordingID).Info("recording branch detached")

	if err != nil {
		s.logger.WithError(err).WithField("recording_id", branch.RecordingID).
			Warn("detach bus wait timed out, proceeding with cleanup; recording may be incomplete")
	}
	return nil
}
