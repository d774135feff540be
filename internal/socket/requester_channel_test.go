package socket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmux/rsocket/internal/common"
	"github.com/flowmux/rsocket/internal/framing"
	"github.com/flowmux/rsocket/payload"
)

func TestRequesterRequestChannelRelaysInboundValuesAndAutoRefills(t *testing.T) {
	mux := &fakeMux{}
	cb := &fakeStreamCallback{}
	sm := newRequesterRequestChannel(10, mux, cb)

	sm.OnFrame(framing.NewFramePayload(10, []byte("in"), nil, true, false))

	require.Len(t, cb.nexts, 1)
	require.Equal(t, 1, mux.count())
	fr := mux.last().(*framing.FrameRequestN)
	assert.Equal(t, uint32(1), fr.N())
}

func TestRequesterRequestChannelClosesOnlyAfterBothSidesComplete(t *testing.T) {
	mux := &fakeMux{}
	cb := &fakeStreamCallback{}
	sm := newRequesterRequestChannel(10, mux, cb)

	sm.Complete()
	assert.False(t, mux.wasClosed(10))

	sm.OnFrame(framing.NewFramePayload(10, nil, nil, false, true))
	assert.True(t, cb.completed)
	assert.True(t, mux.wasClosed(10))
}

func TestRequesterRequestChannelPeerCompletesFirst(t *testing.T) {
	mux := &fakeMux{}
	cb := &fakeStreamCallback{}
	sm := newRequesterRequestChannel(10, mux, cb)

	sm.OnFrame(framing.NewFramePayload(10, nil, nil, false, true))
	assert.True(t, cb.completed)
	assert.False(t, mux.wasClosed(10))

	sm.Complete()
	assert.True(t, mux.wasClosed(10))
}

func TestRequesterRequestChannelOnErrorClosesImmediately(t *testing.T) {
	mux := &fakeMux{}
	cb := &fakeStreamCallback{}
	sm := newRequesterRequestChannel(10, mux, cb)

	sm.OnFrame(framing.NewFrameError(10, common.ErrorCodeApplicationError, []byte("bad")))

	require.Len(t, cb.errs, 1)
	assert.True(t, mux.wasClosed(10))
}

func TestRequesterRequestChannelNextWritesPayload(t *testing.T) {
	mux := &fakeMux{}
	cb := &fakeStreamCallback{}
	sm := newRequesterRequestChannel(10, mux, cb)

	sm.Next(payload.NewString("out", ""))

	require.Equal(t, 1, mux.count())
	fr := mux.last().(*framing.FramePayload)
	assert.Equal(t, []byte("out"), fr.Data())
}

func TestRequesterRequestChannelCancelClosesWithoutWaitingForPeer(t *testing.T) {
	mux := &fakeMux{}
	cb := &fakeStreamCallback{}
	sm := newRequesterRequestChannel(10, mux, cb)

	sm.Cancel()

	require.Equal(t, 1, mux.count())
	assert.Equal(t, framing.FrameTypeCancel, mux.last().Header().Type())
	assert.True(t, mux.wasClosed(10))
}
