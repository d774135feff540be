package framing

import (
	"encoding/binary"

	"github.com/flowmux/rsocket/internal/common"
)

// NewFromBase dispatches on the header's frame type to build the concrete,
// typed frame wrapping the given base. Unknown/extension types decode as a
// frame that callers can still route generically (header + raw body) but not
// introspect further.
func NewFromBase(base *BaseFrame) (Frame, error) {
	switch base.Header().Type() {
	case FrameTypeSetup:
		return &FrameSetup{base}, nil
	case FrameTypeLease:
		return &FrameLease{base}, nil
	case FrameTypeKeepalive:
		return &FrameKeepalive{base}, nil
	case FrameTypeRequestResponse:
		return &FrameRequestResponse{base}, nil
	case FrameTypeRequestFNF:
		return &FrameRequestFNF{base}, nil
	case FrameTypeRequestStream:
		return &FrameRequestStream{base}, nil
	case FrameTypeRequestChannel:
		return &FrameRequestChannel{base}, nil
	case FrameTypeRequestN:
		return &FrameRequestN{base}, nil
	case FrameTypeCancel:
		return &FrameCancel{base}, nil
	case FrameTypePayload:
		return &FramePayload{base}, nil
	case FrameTypeError:
		return &FrameError{base}, nil
	case FrameTypeMetadataPush:
		return &FrameMetadataPush{base}, nil
	case FrameTypeResume:
		return &FrameResume{base}, nil
	case FrameTypeResumeOK:
		return &FrameResumeOK{base}, nil
	default:
		return &extFrame{base}, nil
	}
}

// extFrame is a catch-all for FrameTypeExt / anything this module doesn't
// interpret further; the connection machine ignores these unless an
// extension is registered.
type extFrame struct {
	*BaseFrame
}

func (f *extFrame) Validate() error { return nil }
func (f *extFrame) String() string  { return "FrameExt{}" }

// ProbeVersion inspects the first inbound frame's raw bytes (header+body, no
// length prefix) and, if it is a SETUP frame, returns the version it
// proposes. Auto-detection only ever looks at the very first frame of a
// connection; it never re-detects after that.
func ProbeVersion(raw []byte) (major, minor uint16, ok bool) {
	if len(raw) < HeaderLen+4 {
		return 0, 0, false
	}
	h := ParseFrameHeader(raw)
	if h.Type() != FrameTypeSetup {
		return 0, 0, false
	}
	body := raw[HeaderLen:]
	return binary.BigEndian.Uint16(body[0:2]), binary.BigEndian.Uint16(body[2:4]), true
}

// PeekStreamID reads just the stream id out of a raw header without fully
// parsing or allocating a body buffer.
func PeekStreamID(raw []byte) uint32 {
	return binary.BigEndian.Uint32(raw[0:4]) & 0x7FFFFFFF
}

// DecodeFrom decodes a complete framed buffer (header+body, no length
// prefix) into a typed, validated Frame. The returned frame's body is copied
// into a pooled ByteBuff, so raw may be reused by the caller once DecodeFrom
// returns.
func DecodeFrom(raw []byte) (Frame, error) {
	if len(raw) < HeaderLen {
		return nil, ErrInvalidFrame
	}
	h := ParseFrameHeader(raw)
	bb := common.NewByteBuff()
	if _, err := bb.Write(raw[HeaderLen:]); err != nil {
		return nil, err
	}
	f, err := NewFromBase(NewBaseFrame(h, bb))
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}
