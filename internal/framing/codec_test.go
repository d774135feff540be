package framing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmux/rsocket/internal/common"
)

func roundTrip(t *testing.T, f Frame) Frame {
	t.Helper()
	s := &Serializer{}
	raw, err := s.EncodeToBytes(f)
	require.NoError(t, err)
	out, err := DecodeFrom(raw)
	require.NoError(t, err)
	require.NoError(t, out.Validate())
	return out
}

func TestFrameRequestResponseRoundTrip(t *testing.T) {
	in := NewFrameRequestResponse(7, []byte("data"), []byte("md"), false)
	out := roundTrip(t, in).(*FrameRequestResponse)
	assert.Equal(t, uint32(7), out.Header().StreamID())
	assert.Equal(t, FrameTypeRequestResponse, out.Header().Type())
	assert.Equal(t, []byte("data"), out.Data())
	md, ok := out.Metadata()
	assert.True(t, ok)
	assert.Equal(t, []byte("md"), md)
}

func TestFrameRequestResponseNoMetadata(t *testing.T) {
	in := NewFrameRequestResponse(3, []byte("data"), nil, false)
	out := roundTrip(t, in).(*FrameRequestResponse)
	_, ok := out.Metadata()
	assert.False(t, ok)
	assert.Equal(t, []byte("data"), out.Data())
}

func TestFrameRequestStreamRoundTrip(t *testing.T) {
	in := NewFrameRequestStream(9, 42, []byte("data"), []byte("md"), false)
	out := roundTrip(t, in).(*FrameRequestStream)
	assert.Equal(t, uint32(42), out.InitialRequestN())
	p := out.ToPayload()
	assert.Equal(t, []byte("data"), p.Data())
	md, ok := p.Metadata()
	assert.True(t, ok)
	assert.Equal(t, []byte("md"), md)
}

func TestFrameRequestChannelRoundTrip(t *testing.T) {
	in := NewFrameRequestChannel(11, 1, []byte("d"), nil, true, false)
	out := roundTrip(t, in).(*FrameRequestChannel)
	assert.Equal(t, uint32(1), out.InitialRequestN())
	assert.True(t, out.Complete())
}

func TestFramePayloadRoundTrip(t *testing.T) {
	in := NewFramePayload(5, []byte("v1"), []byte("m1"), true, false)
	out := roundTrip(t, in).(*FramePayload)
	assert.True(t, out.Next())
	assert.False(t, out.Complete())
	assert.Equal(t, []byte("v1"), out.Data())
	md, ok := out.Metadata()
	assert.True(t, ok)
	assert.Equal(t, []byte("m1"), md)
}

func TestFrameSetupRoundTrip(t *testing.T) {
	info := SetupInfo{
		Major: 1, Minor: 0,
		KeepaliveIntervalMs: 30000,
		MaxLifetimeMs:       90000,
		Token:               []byte("resume-token"),
		MetadataMimeType:    "application/json",
		DataMimeType:        "application/binary",
		Data:                []byte("setup-data"),
		Metadata:            []byte("setup-meta"),
	}
	in := NewFrameSetup(info)
	out := roundTrip(t, in).(*FrameSetup)
	major, minor := out.Version()
	assert.Equal(t, uint16(1), major)
	assert.Equal(t, uint16(0), minor)
	assert.Equal(t, uint32(30000), out.KeepaliveInterval())
	assert.Equal(t, uint32(90000), out.MaxLifetime())
	assert.Equal(t, []byte("resume-token"), out.Token())
	assert.Equal(t, "application/json", out.MetadataMimeType())
	assert.Equal(t, "application/binary", out.DataMimeType())
	assert.Equal(t, []byte("setup-data"), out.Data())
	md, ok := out.Metadata()
	assert.True(t, ok)
	assert.Equal(t, []byte("setup-meta"), md)
}

func TestFrameSetupWithoutResume(t *testing.T) {
	info := SetupInfo{Major: 1, Minor: 0, MetadataMimeType: "m", DataMimeType: "d"}
	in := NewFrameSetup(info)
	out := roundTrip(t, in).(*FrameSetup)
	assert.Nil(t, out.Token())
}

func TestFrameResumeRoundTrip(t *testing.T) {
	in := NewFrameResume(1, 0, []byte("tok"), 100, 50)
	out := roundTrip(t, in).(*FrameResume)
	major, minor := out.Version()
	assert.Equal(t, uint16(1), major)
	assert.Equal(t, uint16(0), minor)
	assert.Equal(t, []byte("tok"), out.Token())
	assert.Equal(t, uint64(100), out.LastReceivedServerPosition())
	assert.Equal(t, uint64(50), out.FirstClientPosition())
}

func TestFrameResumeOKRoundTrip(t *testing.T) {
	in := NewFrameResumeOK(12345)
	out := roundTrip(t, in).(*FrameResumeOK)
	assert.Equal(t, uint64(12345), out.LastReceivedClientPosition())
}

func TestFrameKeepaliveRoundTrip(t *testing.T) {
	in := NewFrameKeepalive(true, 777, []byte("ping"))
	out := roundTrip(t, in).(*FrameKeepalive)
	assert.True(t, out.Respond())
	assert.Equal(t, uint64(777), out.LastReceivedPosition())
	assert.Equal(t, []byte("ping"), out.Data())
}

func TestFrameErrorRoundTrip(t *testing.T) {
	in := NewFrameError(3, common.ErrorCodeApplicationError, []byte("boom"))
	out := roundTrip(t, in).(*FrameError)
	assert.Equal(t, common.ErrorCodeApplicationError, out.ErrorCode())
	assert.Equal(t, "boom", out.Error())
}

func TestFrameCancelRoundTrip(t *testing.T) {
	in := NewFrameCancel(21)
	out := roundTrip(t, in)
	assert.Equal(t, uint32(21), out.Header().StreamID())
	assert.Equal(t, FrameTypeCancel, out.Header().Type())
}

func TestFrameRequestNRoundTrip(t *testing.T) {
	in := NewFrameRequestN(21, 64)
	out := roundTrip(t, in).(*FrameRequestN)
	assert.Equal(t, uint32(64), out.N())
}

func TestFrameLeaseRoundTrip(t *testing.T) {
	in := NewFrameLease(5000, 10, []byte("lease-md"))
	out := roundTrip(t, in).(*FrameLease)
	assert.Equal(t, uint32(5000), out.TimeToLiveMs())
	assert.Equal(t, uint32(10), out.NumberOfRequests())
	md, ok := out.Metadata()
	assert.True(t, ok)
	assert.Equal(t, []byte("lease-md"), md)
}

func TestFrameMetadataPushRoundTrip(t *testing.T) {
	in := NewFrameMetadataPush([]byte("pushed"))
	out := roundTrip(t, in).(*FrameMetadataPush)
	assert.Equal(t, []byte("pushed"), out.Metadata())
}

func TestProbeVersion(t *testing.T) {
	in := NewFrameSetup(SetupInfo{Major: 1, Minor: 0, MetadataMimeType: "m", DataMimeType: "d"})
	s := &Serializer{}
	raw, err := s.EncodeToBytes(in)
	require.NoError(t, err)
	major, minor, ok := ProbeVersion(raw)
	require.True(t, ok)
	assert.Equal(t, uint16(1), major)
	assert.Equal(t, uint16(0), minor)
}

func TestProbeVersionRejectsNonSetup(t *testing.T) {
	in := NewFrameCancel(1)
	s := &Serializer{}
	raw, err := s.EncodeToBytes(in)
	require.NoError(t, err)
	_, _, ok := ProbeVersion(raw)
	assert.False(t, ok)
}

func TestSerializerProbeFirstFixesOnce(t *testing.T) {
	in := NewFrameSetup(SetupInfo{Major: 1, Minor: 0, MetadataMimeType: "m", DataMimeType: "d"})
	s := NewSerializer(Version{})
	raw, err := s.EncodeToBytes(in)
	require.NoError(t, err)
	v, ok := s.ProbeFirst(raw)
	require.True(t, ok)
	assert.Equal(t, DefaultVersion, v)
	assert.True(t, s.Fixed())

	// second call is a no-op even against a different frame's bytes
	cancelRaw, err := s.EncodeToBytes(NewFrameCancel(9))
	require.NoError(t, err)
	v2, ok2 := s.ProbeFirst(cancelRaw)
	require.True(t, ok2)
	assert.Equal(t, v, v2)
}

func TestDecodeFromRejectsShortBuffer(t *testing.T) {
	_, err := DecodeFrom([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestIsResumableType(t *testing.T) {
	assert.True(t, isResumableType(FrameTypeRequestResponse))
	assert.True(t, isResumableType(FrameTypePayload))
	assert.False(t, isResumableType(FrameTypeSetup))
	assert.False(t, isResumableType(FrameTypeKeepalive))
}

func TestFrameHeaderBytesRoundTrip(t *testing.T) {
	h := NewFrameHeader(123, FrameTypeRequestStream, FlagMetadata|FlagFollows)
	raw := h.Bytes()
	got := ParseFrameHeader(raw[:])
	assert.Equal(t, h.StreamID(), got.StreamID())
	assert.Equal(t, h.Type(), got.Type())
	assert.Equal(t, h.Flag(), got.Flag())
}

func TestFrameHeaderMasksStreamIDAndFlags(t *testing.T) {
	h := NewFrameHeader(0xFFFFFFFF, FrameTypeCancel, 0xFFFF)
	assert.Equal(t, uint32(0x7FFFFFFF), h.StreamID())
	assert.Equal(t, FrameFlag(0x3FF), h.Flag())
}
