package framing

import "encoding/binary"

// FrameType identifies the variant of a frame, encoded in the high 6 bits of
// the second header word.
type FrameType uint8

// Frame types defined by the RSocket wire protocol.
const (
	FrameTypeReserved        FrameType = 0x00
	FrameTypeSetup           FrameType = 0x01
	FrameTypeLease           FrameType = 0x02
	FrameTypeKeepalive       FrameType = 0x03
	FrameTypeRequestResponse FrameType = 0x04
	FrameTypeRequestFNF      FrameType = 0x05
	FrameTypeRequestStream   FrameType = 0x06
	FrameTypeRequestChannel  FrameType = 0x07
	FrameTypeRequestN        FrameType = 0x08
	FrameTypeCancel          FrameType = 0x09
	FrameTypePayload         FrameType = 0x0A
	FrameTypeError           FrameType = 0x0B
	FrameTypeMetadataPush    FrameType = 0x0C
	FrameTypeResume          FrameType = 0x0D
	FrameTypeResumeOK        FrameType = 0x0E
	FrameTypeExt             FrameType = 0x3F
)

var frameTypeNames = map[FrameType]string{
	FrameTypeReserved:        "RESERVED",
	FrameTypeSetup:           "SETUP",
	FrameTypeLease:           "LEASE",
	FrameTypeKeepalive:       "KEEPALIVE",
	FrameTypeRequestResponse: "REQUEST_RESPONSE",
	FrameTypeRequestFNF:      "REQUEST_FNF",
	FrameTypeRequestStream:   "REQUEST_STREAM",
	FrameTypeRequestChannel:  "REQUEST_CHANNEL",
	FrameTypeRequestN:        "REQUEST_N",
	FrameTypeCancel:          "CANCEL",
	FrameTypePayload:         "PAYLOAD",
	FrameTypeError:           "ERROR",
	FrameTypeMetadataPush:    "METADATA_PUSH",
	FrameTypeResume:          "RESUME",
	FrameTypeResumeOK:        "RESUME_OK",
	FrameTypeExt:             "EXT",
}

func (t FrameType) String() string {
	if s, ok := frameTypeNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// FrameFlag is the 10-bit flags field. Bit meaning is type-dependent; constants
// below name every bit actually used by a frame type this module implements.
type FrameFlag uint16

// Flag bits, as positioned within the low 10 bits of the second header word.
const (
	FlagIgnore   FrameFlag = 0x200
	FlagMetadata FrameFlag = 0x100
	FlagFollows  FrameFlag = 0x080
	FlagComplete FrameFlag = 0x040
	FlagNext     FrameFlag = 0x020
	// FlagResume marks RESUME_ENABLE on SETUP; it shares bit position with
	// FlagFollows/FlagRespond because the bit is only meaningful per frame type.
	FlagResume  FrameFlag = 0x080
	FlagLease   FrameFlag = 0x040
	FlagRespond FrameFlag = 0x080
)

// Check reports whether all bits of want are set in f.
func (f FrameFlag) Check(want FrameFlag) bool {
	return f&want == want
}

const (
	// HeaderLen is the fixed size, in bytes, of the stream id + type/flags
	// header that precedes every frame body.
	HeaderLen = 6
	// DataLen24MaxAbsolute is the maximum value a 24-bit length field can hold.
	DataLen24MaxAbsolute = 0xFFFFFF
)

// FrameHeader is the fixed leading portion of every RSocket frame.
type FrameHeader struct {
	streamID uint32
	typ      FrameType
	flags    FrameFlag
}

// NewFrameHeader builds a header, masking streamID to 31 bits and flags to 10.
func NewFrameHeader(streamID uint32, typ FrameType, flags FrameFlag) FrameHeader {
	return FrameHeader{streamID: streamID & 0x7FFFFFFF, typ: typ, flags: flags & 0x3FF}
}

// StreamID returns the 31-bit stream id; 0 means connection-level.
func (h FrameHeader) StreamID() uint32 {
	return h.streamID
}

// Type returns the frame type.
func (h FrameHeader) Type() FrameType {
	return h.typ
}

// Flag returns the flags word.
func (h FrameHeader) Flag() FrameFlag {
	return h.flags
}

// Bytes encodes the header to its 6-byte wire form.
func (h FrameHeader) Bytes() [HeaderLen]byte {
	var b [HeaderLen]byte
	binary.BigEndian.PutUint32(b[0:4], h.streamID&0x7FFFFFFF)
	v := (uint16(h.typ&0x3F) << 10) | uint16(h.flags&0x3FF)
	binary.BigEndian.PutUint16(b[4:6], v)
	return b
}

// ParseFrameHeader decodes the first HeaderLen bytes of raw into a header.
// Callers must guarantee len(raw) >= HeaderLen.
func ParseFrameHeader(raw []byte) FrameHeader {
	streamID := binary.BigEndian.Uint32(raw[0:4]) & 0x7FFFFFFF
	v := binary.BigEndian.Uint16(raw[4:6])
	return FrameHeader{
		streamID: streamID,
		typ:      FrameType((v >> 10) & 0x3F),
		flags:    FrameFlag(v & 0x3FF),
	}
}

// isResumableType reports whether frames of type t advance resume position
// bookkeeping. Connection-setup/negotiation/keepalive frames are not resumable;
// per-stream frames are.
func isResumableType(t FrameType) bool {
	switch t {
	case FrameTypeRequestResponse, FrameTypeRequestFNF, FrameTypeRequestStream,
		FrameTypeRequestChannel, FrameTypeRequestN, FrameTypeCancel,
		FrameTypePayload, FrameTypeError:
		return true
	default:
		return false
	}
}
