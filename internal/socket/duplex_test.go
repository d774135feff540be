package socket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmux/rsocket/internal/common"
	"github.com/flowmux/rsocket/internal/framing"
	"github.com/flowmux/rsocket/payload"
)

type fakeHandler struct {
	fnf            []payload.Payload
	requestResp    []payload.Payload
	requestStream  []payload.Payload
	requestChannel []payload.Payload
	metadataPush   [][]byte
}

func (h *fakeHandler) FireAndForget(p payload.Payload) { h.fnf = append(h.fnf, p) }
func (h *fakeHandler) RequestResponse(p payload.Payload, sink ResponseSink) {
	h.requestResp = append(h.requestResp, p)
}
func (h *fakeHandler) RequestStream(p payload.Payload, initialN uint32, sink StreamSink) {
	h.requestStream = append(h.requestStream, p)
}
func (h *fakeHandler) RequestChannel(p payload.Payload, initialN uint32, sink StreamSink) StreamSource {
	h.requestChannel = append(h.requestChannel, p)
	return &fakeStreamSource{}
}
func (h *fakeHandler) MetadataPush(metadata []byte) { h.metadataPush = append(h.metadataPush, metadata) }

func TestDuplexClientAndServerStreamIDsHaveCorrectParity(t *testing.T) {
	client := NewDuplex(RoleClient, nil, 0, nil)
	id, err := client.NextStreamID()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)

	server := NewDuplex(RoleServer, nil, 0, nil)
	id, err = server.NextStreamID()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), id)
}

func TestDuplexHandleRequestResponseRegistersStreamAndInvokesHandler(t *testing.T) {
	h := &fakeHandler{}
	d := NewDuplex(RoleServer, h, 0, nil)

	d.handleRequestResponse(framing.NewFrameRequestResponse(2, []byte("in"), nil, false))

	require.Len(t, h.requestResp, 1)
	assert.Equal(t, []byte("in"), h.requestResp[0].Data())
	_, ok := d.streams[2]
	assert.True(t, ok)
}

func TestDuplexHandleRequestResponseCollidingStreamIDClosesConnection(t *testing.T) {
	h := &fakeHandler{}
	d := NewDuplex(RoleServer, h, 0, nil)

	d.handleRequestResponse(framing.NewFrameRequestResponse(2, []byte("first"), nil, false))
	d.handleRequestResponse(framing.NewFrameRequestResponse(2, []byte("second"), nil, false))

	assert.Len(t, h.requestResp, 1, "colliding stream id must not reach the handler twice")
	assert.True(t, d.IsClosed(), "a stream id collision is a protocol violation that tears down the whole connection")
	assert.Empty(t, d.streams, "every stream must be dropped once the connection closes")

	require.Len(t, d.pending, 1, "a stream-id-0 CONNECTION_ERROR frame should be queued for the peer")
	fr, ok := d.pending[0].(*framing.FrameError)
	require.True(t, ok)
	assert.Equal(t, uint32(0), fr.Header().StreamID())
	assert.Equal(t, common.ErrorCodeConnectionError, fr.ErrorCode())
}

func TestDuplexOnStreamClosedRemovesDemuxEntry(t *testing.T) {
	h := &fakeHandler{}
	d := NewDuplex(RoleServer, h, 0, nil)
	d.handleRequestResponse(framing.NewFrameRequestResponse(2, []byte("in"), nil, false))
	_, ok := d.streams[2]
	require.True(t, ok)

	d.OnStreamClosed(2)

	_, ok = d.streams[2]
	assert.False(t, ok)
}

func TestDuplexBeginFragmentIsMutuallyExclusiveWithDemuxEntry(t *testing.T) {
	h := &fakeHandler{}
	d := NewDuplex(RoleServer, h, 20, nil)

	first := framing.NewFrameRequestResponse(2, []byte("0123456789"), nil, true)
	d.handleRequestResponse(first)

	_, fragmented := d.fragments[2]
	require.True(t, fragmented)
	_, demuxed := d.streams[2]
	assert.False(t, demuxed)

	// A second REQUEST_RESPONSE for the same still-fragmenting id collides.
	d.handleRequestResponse(framing.NewFrameRequestResponse(2, []byte("x"), nil, false))
	assert.Empty(t, h.requestResp, "handler must not see a stream id still being reassembled")
	require.Len(t, d.pending, 1)
	_, ok := d.pending[0].(*framing.FrameError)
	assert.True(t, ok)
}

func TestDuplexContinueFragmentFinalizesAndDispatches(t *testing.T) {
	h := &fakeHandler{}
	d := NewDuplex(RoleServer, h, 20, nil)

	d.handleRequestResponse(framing.NewFrameRequestResponse(2, []byte("0123456789"), nil, true))
	require.Contains(t, d.fragments, uint32(2))

	ok := d.continueFragment(framing.NewFramePayload(2, []byte("end"), nil, false, false))
	assert.True(t, ok)

	require.Len(t, h.requestResp, 1)
	assert.Equal(t, []byte("0123456789end"), h.requestResp[0].Data())
	assert.NotContains(t, d.fragments, uint32(2))
	assert.Contains(t, d.streams, uint32(2))
}

func TestDuplexFireAndForgetQueuesFramesWhenUnbound(t *testing.T) {
	d := NewDuplex(RoleClient, nil, 0, nil)
	d.FireAndForget(payload.NewString("hi", ""))

	require.Len(t, d.pending, 1)
	fr, ok := d.pending[0].(*framing.FrameRequestFNF)
	require.True(t, ok)
	assert.Equal(t, []byte("hi"), fr.ToPayload().Data())
}

func TestDuplexRequestResponseRegistersRequesterStreamAndQueuesFrame(t *testing.T) {
	d := NewDuplex(RoleClient, nil, 0, nil)
	cb := &fakeResponseCallback{}

	sm, err := d.RequestResponse(payload.NewString("req", ""), cb)
	require.NoError(t, err)

	require.Len(t, d.pending, 1)
	assert.Contains(t, d.streams, sm.streamID)
}

func TestDuplexCloseIsIdempotentAndFailsOpenStreams(t *testing.T) {
	h := &fakeHandler{}
	d := NewDuplex(RoleServer, h, 0, nil)
	d.handleRequestResponse(framing.NewFrameRequestResponse(2, []byte("in"), nil, false))

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.True(t, d.IsClosed())
	assert.Empty(t, d.streams)

	select {
	case <-d.Done():
	default:
		t.Fatal("Done channel should be closed")
	}
}

func TestDuplexPauseStopsAcceptingLiveTransportWrites(t *testing.T) {
	d := NewDuplex(RoleServer, nil, 0, nil)
	d.state.Store(int32(stateConnected))

	d.Pause()

	d.writeFrame(framing.NewFrameKeepalive(false, 0, nil))
	assert.Len(t, d.pending, 1, "frames written while paused must queue for later delivery")
}
