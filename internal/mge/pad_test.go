package mge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeElement struct{ name string }

func (f *fakeElement) Name() string                 { return f.name }
func (f *fakeElement) Pad(name string) (*Pad, bool) { return nil, false }

func TestFormat_Accepts(t *testing.T) {
	f := Format{Family: "rtp", Kind: "video", Encoding: "H264"}
	assert.True(t, f.Accepts("rtp", "video", "H264"))
	assert.False(t, f.Accepts("rtp", "audio", "H264"))
	assert.False(t, f.Accepts("rtp", "video", "H265"))
}

func TestLink_SourceToSink(t *testing.T) {
	owner := &fakeElement{name: "e"}
	src := NewSrcPad("src", owner)
	sink := NewSinkPad("sink", owner, 4)

	require.NoError(t, Link(src, sink))
	assert.True(t, src.IsLinked())
	assert.True(t, sink.IsLinked())
}

func TestLink_RejectsAlreadyLinkedSink(t *testing.T) {
	owner := &fakeElement{name: "e"}
	sink := NewSinkPad("sink", owner, 4)
	src1 := NewSrcPad("src1", owner)
	src2 := NewSrcPad("src2", owner)

	require.NoError(t, Link(src1, sink))
	err := Link(src2, sink)
	assert.ErrorIs(t, err, ErrAlreadyLinked)
}

func TestLink_RejectsWrongDirections(t *testing.T) {
	owner := &fakeElement{name: "e"}
	a := NewSrcPad("a", owner)
	b := NewSrcPad("b", owner)
	assert.Error(t, Link(a, b))
}

func TestUnlink_IsIdempotent(t *testing.T) {
	owner := &fakeElement{name: "e"}
	src := NewSrcPad("src", owner)
	sink := NewSinkPad("sink", owner, 4)
	require.NoError(t, Link(src, sink))

	Unlink(src, sink)
	assert.False(t, src.IsLinked())
	assert.False(t, sink.IsLinked())

	assert.NotPanics(t, func() { Unlink(src, sink) })
}

func TestPush_DeliversToLinkedSink(t *testing.T) {
	owner := &fakeElement{name: "e"}
	src := NewSrcPad("src", owner)
	sink := NewSinkPad("sink", owner, 4)
	require.NoError(t, Link(src, sink))

	src.Push(Sample{Data: []byte("x"), PTS: time.Second})

	select {
	case s := <-sink.Recv():
		assert.Equal(t, []byte("x"), s.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sample")
	}
}

func TestPush_UnlinkedDropsSilently(t *testing.T) {
	owner := &fakeElement{name: "e"}
	src := NewSrcPad("src", owner)
	assert.NotPanics(t, func() { src.Push(Sample{Data: []byte("x")}) })
}

func TestPush_FullMailboxDropsOldest(t *testing.T) {
	owner := &fakeElement{name: "e"}
	src := NewSrcPad("src", owner)
	sink := NewSinkPad("sink", owner, 1)
	require.NoError(t, Link(src, sink))

	src.Push(Sample{Data: []byte("first")})
	src.Push(Sample{Data: []byte("second")})

	s := <-sink.Recv()
	assert.Equal(t, []byte("second"), s.Data, "oldest queued sample should have been dropped")
}

func TestPush_RunsProbes(t *testing.T) {
	owner := &fakeElement{name: "e"}
	src := NewSrcPad("src", owner)
	var seen []Sample
	src.AddProbe(func(s Sample) { seen = append(seen, s) })

	src.Push(Sample{Data: []byte("probed")})
	require.Len(t, seen, 1)
	assert.Equal(t, []byte("probed"), seen[0].Data)
}

func TestInject_DeliversDirectlyToSinkMailbox(t *testing.T) {
	owner := &fakeElement{name: "e"}
	sink := NewSinkPad("sink", owner, 2)

	sink.Inject(Sample{EOS: true})

	select {
	case s := <-sink.Recv():
		assert.True(t, s.EOS)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for injected sample")
	}
}

func TestInject_SourcePadIsNoop(t *testing.T) {
	owner := &fakeElement{name: "e"}
	src := NewSrcPad("src", owner)
	assert.NotPanics(t, func() { src.Inject(Sample{EOS: true}) })
}
