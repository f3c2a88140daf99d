package elements

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/streampipe/recordpipe/internal/mge"
)

// MP4Muxer is the combined muxer+file-sink element: an MP4 muxer with
// faststart=true feeding a file sink at a fixed
// location. The concrete implementation pipes the incoming Annex-B H.264
// elementary stream into an external ffmpeg remux process — the same
// os/exec-driven subprocess pattern this codebase's lineage already uses
// for recording, generalized from a REST-triggered external MediaMTX
// recorder into an in-process muxer element that the branch point feeds
// directly.
type MP4Muxer struct {
	mge.BaseElement
	in *mge.Pad

	ffmpegPath string
	filePath   string
	bus        *mge.Bus

	cmd   *exec.Cmd
	stdin io.WriteCloser

	stop chan struct{}
	done chan struct{}
}

// NewMP4Muxer creates a muxer+filesink element writing to filePath via
// ffmpegPath, posting completion/error messages to bus.
func NewMP4Muxer(name, ffmpegPath, filePath string, bus *mge.Bus, queueCapacity int) *MP4Muxer {
	m := &MP4Muxer{
		BaseElement: mge.NewBaseElement(name),
		ffmpegPath:  ffmpegPath,
		filePath:    filePath,
		bus:         bus,
	}
	m.in = mge.NewSinkPad("sink", m, queueCapacity)
	m.AddPad(m.in)
	return m
}

// In returns the sink pad the branch's parser links into.
func (m *MP4Muxer) In() *mge.Pad { return m.in }

// FileSize returns the current size of the output file, or 0 if it
// doesn't exist yet.
func (m *MP4Muxer) FileSize() int64 {
	info, err := os.Stat(m.filePath)
	if err != nil {
		return 0
	}
	return info.Size()
}

func (m *MP4Muxer) SetState(s mge.State) error {
	switch s {
	case mge.StatePlaying:
		if m.stop != nil {
			return nil
		}
		if err := m.start(); err != nil {
			return err
		}
		m.stop = make(chan struct{})
		m.done = make(chan struct{})
		go m.run()
	case mge.StateNull:
		if m.cmd != nil && m.cmd.Process != nil {
			_ = m.cmd.Process.Kill()
		}
		if m.stop != nil {
			close(m.stop)
			<-m.done
			m.stop, m.done = nil, nil
		}
	}
	return nil
}

func (m *MP4Muxer) start() error {
	m.cmd = exec.Command(m.ffmpegPath,
		"-loglevel", "error",
		"-f", "h264",
		"-i", "pipe:0",
		"-c", "copy",
		"-movflags", "+faststart",
		"-y",
		m.filePath,
	)
	stdin, err := m.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("mp4muxer: stdin pipe: %w", err)
	}
	m.stdin = stdin
	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("mp4muxer: start ffmpeg: %w", err)
	}
	return nil
}

func (m *MP4Muxer) run() {
	defer close(m.done)
	for {
		select {
		case s := <-m.in.Recv():
			if s.EOS {
				m.finalize(nil)
				return
			}
			if _, err := m.stdin.Write(s.Data); err != nil {
				m.finalize(err)
				return
			}
		case <-m.stop:
			m.finalize(nil)
			return
		}
	}
}

func (m *MP4Muxer) finalize(writeErr error) {
	_ = m.stdin.Close()
	waitErr := m.cmd.Wait()
	if writeErr != nil || waitErr != nil {
		if m.bus != nil {
			m.bus.Post(mge.Message{Type: mge.MsgError, Source: m.Name(), Err: firstNonNil(writeErr, waitErr)})
		}
		return
	}
	if m.bus != nil {
		m.bus.Post(mge.Message{Type: mge.MsgEOS, Source: m.Name()})
	}
}

func firstNonNil(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
