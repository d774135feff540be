package socket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmux/rsocket/internal/framing"
	"github.com/flowmux/rsocket/payload"
)

func TestResponderRequestResponseSuccessWritesCompletePayloadAndCloses(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestResponse(7, mux)

	sm.Success(payload.NewString("hello", ""))

	require.Equal(t, 1, mux.count())
	fr := mux.last().(*framing.FramePayload)
	assert.True(t, fr.Complete())
	assert.Equal(t, []byte("hello"), fr.Data())
	assert.True(t, mux.wasClosed(7))
}

func TestResponderRequestResponseErrorWritesErrorFrameAndCloses(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestResponse(7, mux)

	sm.Error(assertErr("boom"))

	require.Equal(t, 1, mux.count())
	fr := mux.last().(*framing.FrameError)
	assert.Equal(t, "boom", fr.Error())
	assert.True(t, mux.wasClosed(7))
}

func TestResponderRequestResponseIgnoresSecondOutcome(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestResponse(7, mux)

	sm.Success(payload.NewString("first", ""))
	sm.Success(payload.NewString("second", ""))
	sm.Error(assertErr("late"))

	assert.Equal(t, 1, mux.count())
}

func TestResponderRequestResponseCancelBeforeResultClosesWithoutWriting(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestResponse(7, mux)

	sm.OnFrame(framing.NewFrameCancel(7))

	assert.Equal(t, 0, mux.count())
	assert.True(t, mux.wasClosed(7))

	sm.Success(payload.NewString("too-late", ""))
	assert.Equal(t, 0, mux.count())
}

func TestResponderRequestResponseIgnoresUnrelatedFrames(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestResponse(7, mux)

	sm.OnFrame(framing.NewFrameRequestN(7, 5))

	assert.Equal(t, 0, mux.count())
	assert.False(t, mux.wasClosed(7))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
