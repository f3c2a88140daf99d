package elements

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampipe/recordpipe/internal/mge"
)

func TestDepayloader_PropagatesEOSWithoutDecoding(t *testing.T) {
	d := NewDepayloader("d1", 4)
	require.NoError(t, d.SetState(mge.StatePlaying))
	defer d.SetState(mge.StateNull)

	out := mge.NewSinkPad("out", &fakeOwner{}, 4)
	require.NoError(t, mge.Link(d.Out(), out))

	d.In().Inject(mge.Sample{EOS: true})

	select {
	case s := <-out.Recv():
		assert.True(t, s.EOS)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for EOS to propagate")
	}
}

func TestDepayloader_MalformedPacketIsDroppedNotPanicked(t *testing.T) {
	d := NewDepayloader("d1", 4)
	require.NoError(t, d.SetState(mge.StatePlaying))
	defer d.SetState(mge.StateNull)

	out := mge.NewSinkPad("out", &fakeOwner{}, 1)
	require.NoError(t, mge.Link(d.Out(), out))

	assert.NotPanics(t, func() {
		d.In().Inject(mge.Sample{Data: []byte{0xFF}})
	})

	select {
	case <-out.Recv():
		t.Fatal("a malformed RTP packet must not produce an access unit")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDepayloader_SetStateIsIdempotentAndStoppable(t *testing.T) {
	d := NewDepayloader("d1", 4)
	require.NoError(t, d.SetState(mge.StatePlaying))
	require.NoError(t, d.SetState(mge.StatePlaying))
	require.NoError(t, d.SetState(mge.StateNull))
	require.NoError(t, d.SetState(mge.StateNull))
}
