package socket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmux/rsocket/internal/common"
	"github.com/flowmux/rsocket/internal/framing"
)

func TestRequesterRequestStreamRelaysValuesUntilComplete(t *testing.T) {
	mux := &fakeMux{}
	cb := &fakeStreamCallback{}
	sm := newRequesterRequestStream(6, mux, cb)

	sm.OnFrame(framing.NewFramePayload(6, []byte("a"), nil, true, false))
	sm.OnFrame(framing.NewFramePayload(6, []byte("b"), nil, false, true))

	require.Len(t, cb.nexts, 1)
	assert.Equal(t, []byte("a"), cb.nexts[0].Data())
	assert.True(t, cb.completed)
	assert.True(t, mux.wasClosed(6))
}

func TestRequesterRequestStreamOnErrorInvokesCallback(t *testing.T) {
	mux := &fakeMux{}
	cb := &fakeStreamCallback{}
	sm := newRequesterRequestStream(6, mux, cb)

	sm.OnFrame(framing.NewFrameError(6, common.ErrorCodeApplicationError, []byte("bad")))

	require.Len(t, cb.errs, 1)
	assert.True(t, mux.wasClosed(6))
}

func TestRequesterRequestStreamRequestNWritesFrame(t *testing.T) {
	mux := &fakeMux{}
	cb := &fakeStreamCallback{}
	sm := newRequesterRequestStream(6, mux, cb)

	sm.RequestN(10)

	require.Equal(t, 1, mux.count())
	fr := mux.last().(*framing.FrameRequestN)
	assert.Equal(t, uint32(10), fr.N())
}

func TestRequesterRequestStreamRequestNZeroIsNoop(t *testing.T) {
	mux := &fakeMux{}
	cb := &fakeStreamCallback{}
	sm := newRequesterRequestStream(6, mux, cb)

	sm.RequestN(0)

	assert.Equal(t, 0, mux.count())
}

func TestRequesterRequestStreamCancelWritesCancelAndCloses(t *testing.T) {
	mux := &fakeMux{}
	cb := &fakeStreamCallback{}
	sm := newRequesterRequestStream(6, mux, cb)

	sm.Cancel()

	require.Equal(t, 1, mux.count())
	assert.Equal(t, framing.FrameTypeCancel, mux.last().Header().Type())
	assert.True(t, mux.wasClosed(6))

	sm.RequestN(5)
	assert.Equal(t, 1, mux.count())
}
