package fragmentation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmux/rsocket/internal/framing"
)

func reassemble(t *testing.T, frames []framing.Frame, typ framing.FrameType) framing.Frame {
	t.Helper()
	require.NotEmpty(t, frames)

	acc := NewAccumulator(frames[0].Header().StreamID(), 0)

	var initialN uint32
	var complete bool
	var data, md []byte
	var hasMeta bool

	switch typ {
	case framing.FrameTypeRequestResponse:
		f := frames[0].(*framing.FrameRequestResponse)
		data = f.Data()
		md, hasMeta = f.Metadata()
	case framing.FrameTypeRequestStream:
		f := frames[0].(*framing.FrameRequestStream)
		initialN = f.InitialRequestN()
		p := f.ToPayload()
		data = p.Data()
		md, hasMeta = p.Metadata()
	case framing.FrameTypeRequestChannel:
		f := frames[0].(*framing.FrameRequestChannel)
		initialN = f.InitialRequestN()
		complete = f.Complete()
		p := f.ToPayload()
		data = p.Data()
		md, hasMeta = p.Metadata()
	}

	require.NoError(t, acc.AppendFirst(typ, md, hasMeta, data, initialN, complete))

	for _, fr := range frames[1:] {
		fp := fr.(*framing.FramePayload)
		fmd, fhasMeta := fp.Metadata()
		require.NoError(t, acc.AppendFollowing(fmd, fhasMeta, fp.Data()))
	}

	out, err := acc.Finalize()
	require.NoError(t, err)
	return out
}

func TestSplitPayloadSingleFrameBelowMTU(t *testing.T) {
	data := []byte("small")
	frames := SplitPayload(1, nil, data, 1024, func(chunkMeta, chunkData []byte, follows bool) framing.Frame {
		return framing.NewFrameRequestResponse(1, chunkData, chunkMeta, follows)
	})
	require.Len(t, frames, 1)
	f := frames[0].(*framing.FrameRequestResponse)
	assert.Equal(t, data, f.Data())
	assert.False(t, f.Header().Flag().Check(framing.FlagFollows))
}

func TestSplitPayloadDisabledByZeroMTU(t *testing.T) {
	data := []byte(strings.Repeat("x", 500))
	frames := SplitPayload(1, []byte("md"), data, 0, func(chunkMeta, chunkData []byte, follows bool) framing.Frame {
		return framing.NewFrameRequestResponse(1, chunkData, chunkMeta, follows)
	})
	require.Len(t, frames, 1)
}

func TestSplitAndReassembleRequestResponse(t *testing.T) {
	data := []byte(strings.Repeat("abcdefgh", 40))
	md := []byte(strings.Repeat("m", 30))
	frames := SplitPayload(1, md, data, 32, func(chunkMeta, chunkData []byte, follows bool) framing.Frame {
		return framing.NewFrameRequestResponse(1, chunkData, chunkMeta, follows)
	})
	require.Greater(t, len(frames), 1)

	for i, fr := range frames[:len(frames)-1] {
		assert.True(t, fr.Header().Flag().Check(framing.FlagFollows), "frame %d should set FOLLOWS", i)
	}
	assert.False(t, frames[len(frames)-1].Header().Flag().Check(framing.FlagFollows))

	final := reassemble(t, frames, framing.FrameTypeRequestResponse)
	f := final.(*framing.FrameRequestResponse)
	assert.Equal(t, data, f.Data())
	gotMD, ok := f.Metadata()
	assert.True(t, ok)
	assert.Equal(t, md, gotMD)
}

func TestSplitAndReassembleRequestStreamPreservesInitialN(t *testing.T) {
	data := []byte(strings.Repeat("y", 200))
	frames := SplitPayload(5, nil, data, 48, func(chunkMeta, chunkData []byte, follows bool) framing.Frame {
		return framing.NewFrameRequestStream(5, 17, chunkData, chunkMeta, follows)
	})
	require.Greater(t, len(frames), 1)

	final := reassemble(t, frames, framing.FrameTypeRequestStream)
	f := final.(*framing.FrameRequestStream)
	assert.Equal(t, uint32(17), f.InitialRequestN())
	assert.Equal(t, data, f.ToPayload().Data())
}

func TestSplitAndReassembleRequestChannelPreservesComplete(t *testing.T) {
	data := []byte(strings.Repeat("z", 150))
	frames := SplitPayload(9, nil, data, 40, func(chunkMeta, chunkData []byte, follows bool) framing.Frame {
		return framing.NewFrameRequestChannel(9, 3, chunkData, chunkMeta, true, follows)
	})
	require.Greater(t, len(frames), 1)

	final := reassemble(t, frames, framing.FrameTypeRequestChannel)
	f := final.(*framing.FrameRequestChannel)
	assert.Equal(t, uint32(3), f.InitialRequestN())
	assert.True(t, f.Complete())
	assert.Equal(t, data, f.ToPayload().Data())
}

func TestAccumulatorRejectsOversizedInput(t *testing.T) {
	acc := NewAccumulator(1, 4)
	err := acc.AppendFirst(framing.FrameTypeRequestResponse, nil, false, []byte("too much data"), 0, false)
	assert.True(t, errors.Is(err, ErrFragmentTooLarge))
}

func TestIsValidFragment(t *testing.T) {
	assert.NoError(t, IsValidFragment(0))
	assert.NoError(t, IsValidFragment(MinFragment))
	assert.Error(t, IsValidFragment(MinFragment-1))
	assert.Error(t, IsValidFragment(MaxFragment+1))
}
