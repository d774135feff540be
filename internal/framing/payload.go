package framing

import (
	"github.com/flowmux/rsocket/internal/common"
	"github.com/flowmux/rsocket/payload"
)

// FramePayload carries a (metadata?, data) pair for an in-flight stream, with
// NEXT and/or COMPLETE semantics carried in the header flags.
type FramePayload struct {
	*BaseFrame
}

// NewFramePayload constructs an outbound PAYLOAD frame.
func NewFramePayload(streamID uint32, data, metadata []byte, next, complete bool) *FramePayload {
	return NewFramePayloadFragment(streamID, data, metadata, next, complete, false)
}

// NewFramePayloadFragment constructs an outbound PAYLOAD frame, additionally
// setting FOLLOWS when this frame is one link of a fragmented chain
// (internal/fragmentation splitter).
func NewFramePayloadFragment(streamID uint32, data, metadata []byte, next, complete, follows bool) *FramePayload {
	var flags FrameFlag
	if next {
		flags |= FlagNext
	}
	if complete {
		flags |= FlagComplete
	}
	if follows {
		flags |= FlagFollows
	}
	hasMeta := metadata != nil
	if hasMeta {
		flags |= FlagMetadata
	}
	bb := common.NewByteBuff()
	writeMetadataData(bb, metadata, data, hasMeta)
	return &FramePayload{NewBaseFrame(NewFrameHeader(streamID, FrameTypePayload, flags), bb)}
}

// NewFramePayloadFromPayload builds a PAYLOAD frame from a payload.Payload.
func NewFramePayloadFromPayload(streamID uint32, p payload.Payload, next, complete bool) *FramePayload {
	md, _ := p.Metadata()
	return NewFramePayload(streamID, p.Data(), md, next, complete)
}

// Next reports whether the NEXT flag is set.
func (f *FramePayload) Next() bool {
	return f.Header().Flag().Check(FlagNext)
}

// Complete reports whether the COMPLETE flag is set.
func (f *FramePayload) Complete() bool {
	return f.Header().Flag().Check(FlagComplete)
}

// Metadata returns the metadata section, if present.
func (f *FramePayload) Metadata() ([]byte, bool) {
	md, _, _ := splitMetadataData(f.Body(), 0, f.Header().Flag().Check(FlagMetadata))
	return md, f.Header().Flag().Check(FlagMetadata)
}

// Data returns the data section.
func (f *FramePayload) Data() []byte {
	_, data, _ := splitMetadataData(f.Body(), 0, f.Header().Flag().Check(FlagMetadata))
	return data
}

// ToPayload materializes a payload.Payload, copying bytes so it outlives Done().
func (f *FramePayload) ToPayload() payload.Payload {
	md, hasMeta := f.Metadata()
	data := f.Data()
	out := make([]byte, len(data))
	copy(out, data)
	if !hasMeta {
		return payload.New(out, nil)
	}
	mdCopy := make([]byte, len(md))
	copy(mdCopy, md)
	return payload.New(out, mdCopy)
}

// Validate checks the metadata length prefix is consistent with body size.
func (f *FramePayload) Validate() error {
	_, _, err := splitMetadataData(f.Body(), 0, f.Header().Flag().Check(FlagMetadata))
	return err
}

func (f *FramePayload) String() string {
	return "FramePayload{" + f.Header().Type().String() + "}"
}
