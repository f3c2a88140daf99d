package elements

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampipe/recordpipe/internal/mge"
)

func TestBranchPoint_RequestAndReleasePad(t *testing.T) {
	bp := NewBranchPoint("bp1", 4)

	p1, err := bp.RequestPad("src_%u")
	require.NoError(t, err)
	assert.Equal(t, "src_0", p1.Name)

	p2, err := bp.RequestPad("src_%u")
	require.NoError(t, err)
	assert.Equal(t, "src_1", p2.Name)

	require.NoError(t, bp.ReleasePad(p1))
	assert.Error(t, bp.ReleasePad(p1), "releasing an already-released pad must fail")
}

func TestBranchPoint_FansOutToEveryLinkedOutput(t *testing.T) {
	bp := NewBranchPoint("bp1", 4)
	require.NoError(t, bp.SetState(mge.StatePlaying))
	defer bp.SetState(mge.StateNull)

	p1, err := bp.RequestPad("src_%u")
	require.NoError(t, err)
	p2, err := bp.RequestPad("src_%u")
	require.NoError(t, err)

	sink1 := mge.NewSinkPad("sink1", &fakeOwner{}, 4)
	sink2 := mge.NewSinkPad("sink2", &fakeOwner{}, 4)
	require.NoError(t, mge.Link(p1, sink1))
	require.NoError(t, mge.Link(p2, sink2))

	bp.In().Inject(mge.Sample{Data: []byte("fanned")})

	for _, sink := range []*mge.Pad{sink1, sink2} {
		select {
		case s := <-sink.Recv():
			assert.Equal(t, []byte("fanned"), s.Data)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out delivery")
		}
	}
}

func TestBranchPoint_UnlinkedOutputInvokesOnDrop(t *testing.T) {
	bp := NewBranchPoint("bp1", 4)
	require.NoError(t, bp.SetState(mge.StatePlaying))
	defer bp.SetState(mge.StateNull)

	dropped := make(chan string, 1)
	bp.OnDrop(func(padName string) { dropped <- padName })

	p1, err := bp.RequestPad("src_%u")
	require.NoError(t, err)

	bp.In().Inject(mge.Sample{Data: []byte("x")})

	select {
	case name := <-dropped:
		assert.Equal(t, p1.Name, name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for onDrop callback")
	}
}

func TestBranchPoint_ReleasePadOfUnownedPadFails(t *testing.T) {
	bp := NewBranchPoint("bp1", 4)
	foreign := mge.NewSrcPad("src_99", &fakeOwner{})
	assert.Error(t, bp.ReleasePad(foreign))
}
