package framing

import (
	"encoding/binary"

	"github.com/flowmux/rsocket/internal/common"
	"github.com/flowmux/rsocket/payload"
)

// FrameRequestResponse is a REQUEST_RESPONSE frame: a single request
// expecting a single PAYLOAD-with-COMPLETE in return.
type FrameRequestResponse struct {
	*BaseFrame
}

// NewFrameRequestResponse constructs an outbound REQUEST_RESPONSE.
func NewFrameRequestResponse(streamID uint32, data, metadata []byte, follows bool) *FrameRequestResponse {
	flags := requestFlags(metadata != nil, follows)
	bb := common.NewByteBuff()
	writeMetadataData(bb, metadata, data, metadata != nil)
	return &FrameRequestResponse{NewBaseFrame(NewFrameHeader(streamID, FrameTypeRequestResponse, flags), bb)}
}

func (f *FrameRequestResponse) Metadata() ([]byte, bool) {
	md, _, _ := splitMetadataData(f.Body(), 0, f.Header().Flag().Check(FlagMetadata))
	return md, f.Header().Flag().Check(FlagMetadata)
}

func (f *FrameRequestResponse) Data() []byte {
	_, data, _ := splitMetadataData(f.Body(), 0, f.Header().Flag().Check(FlagMetadata))
	return data
}

func (f *FrameRequestResponse) ToPayload() payload.Payload {
	return toPayload(f.BaseFrame)
}

func (f *FrameRequestResponse) Validate() error {
	_, _, err := splitMetadataData(f.Body(), 0, f.Header().Flag().Check(FlagMetadata))
	return err
}

func (f *FrameRequestResponse) String() string { return "FrameRequestResponse{}" }

// FrameRequestFNF is a REQUEST_FNF frame: fire-and-forget, no response.
type FrameRequestFNF struct {
	*BaseFrame
}

// NewFrameRequestFNF constructs an outbound REQUEST_FNF.
func NewFrameRequestFNF(streamID uint32, data, metadata []byte, follows bool) *FrameRequestFNF {
	flags := requestFlags(metadata != nil, follows)
	bb := common.NewByteBuff()
	writeMetadataData(bb, metadata, data, metadata != nil)
	return &FrameRequestFNF{NewBaseFrame(NewFrameHeader(streamID, FrameTypeRequestFNF, flags), bb)}
}

func (f *FrameRequestFNF) ToPayload() payload.Payload {
	return toPayload(f.BaseFrame)
}

func (f *FrameRequestFNF) Validate() error {
	_, _, err := splitMetadataData(f.Body(), 0, f.Header().Flag().Check(FlagMetadata))
	return err
}

func (f *FrameRequestFNF) String() string { return "FrameRequestFNF{}" }

// FrameRequestStream is a REQUEST_STREAM frame, carrying the initial
// requestN before the metadata/data payload.
type FrameRequestStream struct {
	*BaseFrame
}

// NewFrameRequestStream constructs an outbound REQUEST_STREAM.
func NewFrameRequestStream(streamID uint32, initialRequestN uint32, data, metadata []byte, follows bool) *FrameRequestStream {
	flags := requestFlags(metadata != nil, follows)
	bb := common.NewByteBuff()
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], initialRequestN)
	_, _ = bb.Write(n[:])
	writeMetadataData(bb, metadata, data, metadata != nil)
	return &FrameRequestStream{NewBaseFrame(NewFrameHeader(streamID, FrameTypeRequestStream, flags), bb)}
}

func (f *FrameRequestStream) InitialRequestN() uint32 {
	return binary.BigEndian.Uint32(f.Body()[:4])
}

func (f *FrameRequestStream) ToPayload() payload.Payload {
	md, data, _ := splitMetadataData(f.Body(), 4, f.Header().Flag().Check(FlagMetadata))
	return payload.New(copyBytes(data), copyBytesOrNil(md, f.Header().Flag().Check(FlagMetadata)))
}

func (f *FrameRequestStream) Validate() error {
	if len(f.Body()) < 4 {
		return ErrInvalidFrame
	}
	_, _, err := splitMetadataData(f.Body(), 4, f.Header().Flag().Check(FlagMetadata))
	return err
}

func (f *FrameRequestStream) String() string { return "FrameRequestStream{}" }

// FrameRequestChannel is a REQUEST_CHANNEL frame, carrying the initial
// requestN and an optional COMPLETE flag for a channel that the requester
// closes immediately on its first frame.
type FrameRequestChannel struct {
	*BaseFrame
}

// NewFrameRequestChannel constructs an outbound REQUEST_CHANNEL.
func NewFrameRequestChannel(streamID uint32, initialRequestN uint32, data, metadata []byte, complete, follows bool) *FrameRequestChannel {
	flags := requestFlags(metadata != nil, follows)
	if complete {
		flags |= FlagComplete
	}
	bb := common.NewByteBuff()
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], initialRequestN)
	_, _ = bb.Write(n[:])
	writeMetadataData(bb, metadata, data, metadata != nil)
	return &FrameRequestChannel{NewBaseFrame(NewFrameHeader(streamID, FrameTypeRequestChannel, flags), bb)}
}

func (f *FrameRequestChannel) InitialRequestN() uint32 {
	return binary.BigEndian.Uint32(f.Body()[:4])
}

func (f *FrameRequestChannel) Complete() bool {
	return f.Header().Flag().Check(FlagComplete)
}

func (f *FrameRequestChannel) ToPayload() payload.Payload {
	md, data, _ := splitMetadataData(f.Body(), 4, f.Header().Flag().Check(FlagMetadata))
	return payload.New(copyBytes(data), copyBytesOrNil(md, f.Header().Flag().Check(FlagMetadata)))
}

func (f *FrameRequestChannel) Validate() error {
	if len(f.Body()) < 4 {
		return ErrInvalidFrame
	}
	_, _, err := splitMetadataData(f.Body(), 4, f.Header().Flag().Check(FlagMetadata))
	return err
}

func (f *FrameRequestChannel) String() string { return "FrameRequestChannel{}" }

func requestFlags(hasMetadata, follows bool) FrameFlag {
	var flags FrameFlag
	if hasMetadata {
		flags |= FlagMetadata
	}
	if follows {
		flags |= FlagFollows
	}
	return flags
}

func toPayload(b *BaseFrame) payload.Payload {
	hasMeta := b.Header().Flag().Check(FlagMetadata)
	md, data, _ := splitMetadataData(b.Body(), 0, hasMeta)
	return payload.New(copyBytes(data), copyBytesOrNil(md, hasMeta))
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func copyBytesOrNil(b []byte, present bool) []byte {
	if !present {
		return nil
	}
	return copyBytes(b)
}
