package socket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmux/rsocket/internal/common"
	"github.com/flowmux/rsocket/internal/framing"
)

func TestRequesterRequestResponseOnPayloadCompleteInvokesCallback(t *testing.T) {
	mux := &fakeMux{}
	cb := &fakeResponseCallback{}
	sm := newRequesterRequestResponse(3, mux, cb)

	sm.OnFrame(framing.NewFramePayload(3, []byte("v"), nil, false, true))

	require.Len(t, cb.responses, 1)
	assert.Equal(t, []byte("v"), cb.responses[0].Data())
	assert.True(t, mux.wasClosed(3))
}

func TestRequesterRequestResponseOnErrorInvokesCallback(t *testing.T) {
	mux := &fakeMux{}
	cb := &fakeResponseCallback{}
	sm := newRequesterRequestResponse(3, mux, cb)

	sm.OnFrame(framing.NewFrameError(3, common.ErrorCodeApplicationError, []byte("failed")))

	require.Len(t, cb.errs, 1)
	assert.EqualError(t, cb.errs[0], "failed")
	assert.True(t, mux.wasClosed(3))
}

func TestRequesterRequestResponseCancelWritesCancelFrame(t *testing.T) {
	mux := &fakeMux{}
	cb := &fakeResponseCallback{}
	sm := newRequesterRequestResponse(3, mux, cb)

	sm.Cancel()

	require.Equal(t, 1, mux.count())
	assert.Equal(t, framing.FrameTypeCancel, mux.last().Header().Type())
	assert.True(t, mux.wasClosed(3))
}

func TestRequesterRequestResponseCancelAfterCloseIsNoop(t *testing.T) {
	mux := &fakeMux{}
	cb := &fakeResponseCallback{}
	sm := newRequesterRequestResponse(3, mux, cb)

	sm.OnFrame(framing.NewFramePayload(3, []byte("v"), nil, false, true))
	sm.Cancel()

	assert.Equal(t, 0, mux.count())
}
