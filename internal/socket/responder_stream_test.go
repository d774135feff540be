package socket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmux/rsocket/internal/framing"
	"github.com/flowmux/rsocket/payload"
)

func TestResponderRequestStreamTracksInitialAndAdditionalDemand(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestStream(4, mux, 2)
	assert.Equal(t, uint32(2), sm.Requested())

	sm.OnFrame(framing.NewFrameRequestN(4, 3))
	assert.Equal(t, uint32(5), sm.Requested())
}

func TestResponderRequestStreamNextWritesNonTerminalPayload(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestStream(4, mux, 1)

	sm.Next(payload.NewString("v1", ""))

	require.Equal(t, 1, mux.count())
	fr := mux.last().(*framing.FramePayload)
	assert.True(t, fr.Next())
	assert.False(t, fr.Complete())
	assert.False(t, mux.wasClosed(4))
}

func TestResponderRequestStreamCompleteClosesStream(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestStream(4, mux, 1)

	sm.Complete()

	require.Equal(t, 1, mux.count())
	fr := mux.last().(*framing.FramePayload)
	assert.True(t, fr.Complete())
	assert.True(t, mux.wasClosed(4))
}

func TestResponderRequestStreamErrorClosesStream(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestStream(4, mux, 1)

	sm.Error(assertErr("boom"))

	require.Equal(t, 1, mux.count())
	fr := mux.last().(*framing.FrameError)
	assert.Equal(t, "boom", fr.Error())
	assert.True(t, mux.wasClosed(4))
}

func TestResponderRequestStreamCancelStopsFurtherEmission(t *testing.T) {
	mux := &fakeMux{}
	sm := newResponderRequestStream(4, mux, 1)

	sm.OnFrame(framing.NewFrameCancel(4))
	assert.True(t, mux.wasClosed(4))

	sm.Next(payload.NewString("too-late", ""))
	assert.Equal(t, 0, mux.count())
}
