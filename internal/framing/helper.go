package framing

import "github.com/flowmux/rsocket/internal/common"

// splitMetadataData splits body[offset:] into (metadata, data). metadata is
// present only when hasMetadata, prefixed on the wire by a 24-bit length.
func splitMetadataData(body []byte, offset int, hasMetadata bool) (metadata, data []byte, err error) {
	if hasMetadata {
		if len(body) < offset+3 {
			return nil, nil, ErrInvalidFrame
		}
		mlen := int(common.DecodeUint24Bytes(body[offset : offset+3]))
		offset += 3
		if len(body) < offset+mlen {
			return nil, nil, ErrInvalidFrame
		}
		metadata = body[offset : offset+mlen]
		offset += mlen
	}
	if offset > len(body) {
		return nil, nil, ErrInvalidFrame
	}
	data = body[offset:]
	return
}

// writeMetadataData appends the optional 24-bit-prefixed metadata followed by
// data to bb.
func writeMetadataData(bb *common.ByteBuff, metadata, data []byte, hasMetadata bool) {
	if hasMetadata {
		u := common.NewUint24(len(metadata))
		bs := u.Bytes()
		_, _ = bb.Write(bs[:])
		_, _ = bb.Write(metadata)
	}
	_, _ = bb.Write(data)
}
