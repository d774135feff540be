package socket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmux/rsocket/internal/framing"
)

func TestResponderRequestChannelRelaysInboundValuesAndAutoRefills(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestChannel(8, mux, 1)
	source := &fakeStreamSource{}
	sm.bindSource(source)

	sm.OnFrame(framing.NewFramePayload(8, []byte("in"), nil, true, false))

	require.Len(t, source.nexts, 1)
	assert.Equal(t, []byte("in"), source.nexts[0].Data())

	require.Equal(t, 1, mux.count())
	fr := mux.last().(*framing.FrameRequestN)
	assert.Equal(t, uint32(1), fr.N())
}

func TestResponderRequestChannelClosesOnlyAfterBothSidesComplete(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestChannel(8, mux, 1)
	source := &fakeStreamSource{}
	sm.bindSource(source)

	sm.Complete()
	assert.False(t, mux.wasClosed(8), "responder's own COMPLETE alone must not close a bidirectional stream")

	sm.OnFrame(framing.NewFramePayload(8, nil, nil, false, true))
	assert.True(t, source.completed)
	assert.True(t, mux.wasClosed(8))
}

func TestResponderRequestChannelPeerCompleteFirstThenLocalComplete(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestChannel(8, mux, 1)
	source := &fakeStreamSource{}
	sm.bindSource(source)

	sm.OnFrame(framing.NewFramePayload(8, nil, nil, false, true))
	assert.True(t, source.completed)
	assert.False(t, mux.wasClosed(8))

	sm.Complete()
	assert.True(t, mux.wasClosed(8))
}

func TestResponderRequestChannelCancelDeliversErrorToSource(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestChannel(8, mux, 1)
	source := &fakeStreamSource{}
	sm.bindSource(source)

	sm.OnFrame(framing.NewFrameCancel(8))

	require.Len(t, source.errs, 1)
	assert.True(t, mux.wasClosed(8))
}

func TestResponderRequestChannelErrorWritesFrameAndCloses(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestChannel(8, mux, 1)

	sm.Error(assertErr("boom"))

	require.Equal(t, 1, mux.count())
	fr := mux.last().(*framing.FrameError)
	assert.Equal(t, "boom", fr.Error())
	assert.True(t, mux.wasClosed(8))
}

func TestResponderRequestChannelRequestNAddsDemand(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestChannel(8, mux, 1)

	sm.OnFrame(framing.NewFrameRequestN(8, 4))
	assert.Equal(t, uint32(5), sm.Requested())
}

func TestResponderRequestChannelNextIgnoredWithoutSource(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestChannel(8, mux, 1)

	assert.NotPanics(t, func() {
		sm.OnFrame(framing.NewFramePayload(8, []byte("x"), nil, true, false))
	})
	assert.Equal(t, 0, mux.count())
}
