package framing

import (
	"io"

	"github.com/pkg/errors"

	"github.com/flowmux/rsocket/internal/common"
)

// ErrInvalidFrame is returned by Validate when a decoded frame violates a
// length prefix, reserved bit, or required-field constraint.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is the common contract implemented by every concrete frame type, for
// both inbound (decoded) and outbound (freshly constructed) frames.
type Frame interface {
	// Header returns the fixed leading header.
	Header() FrameHeader
	// Len returns the total encoded length, header included, of this frame.
	Len() int
	// IsResumable reports whether this frame advances resume position
	// bookkeeping when sent or received.
	IsResumable() bool
	// Validate checks wire-format invariants not already enforced by parsing.
	Validate() error
	// WriteTo writes the header followed by the body to w.
	WriteTo(w io.Writer) (int64, error)
	// Done releases any pooled resources backing this frame. Safe to call
	// more than once.
	Done()
	String() string
}

// BaseFrame is embedded by every concrete frame type; it owns the header and
// the raw body bytes (everything after the 6-byte header).
type BaseFrame struct {
	header FrameHeader
	body   *common.ByteBuff
}

// NewBaseFrame wraps a header and its body bytes.
func NewBaseFrame(h FrameHeader, body *common.ByteBuff) *BaseFrame {
	return &BaseFrame{header: h, body: body}
}

// Header returns the frame header.
func (b *BaseFrame) Header() FrameHeader {
	return b.header
}

// Len returns HeaderLen plus the body length.
func (b *BaseFrame) Len() int {
	return HeaderLen + b.body.Len()
}

// IsResumable reports whether this frame counts toward resume position.
func (b *BaseFrame) IsResumable() bool {
	return b.header.StreamID() != 0 && isResumableType(b.header.Type())
}

// WriteTo writes the 6-byte header followed by the raw body.
func (b *BaseFrame) WriteTo(w io.Writer) (int64, error) {
	hb := b.header.Bytes()
	n1, err := w.Write(hb[:])
	if err != nil {
		return int64(n1), err
	}
	n2, err := b.body.WriteTo(w)
	return int64(n1) + n2, err
}

// Done releases the pooled body buffer. Safe to call once; callers that need
// to retain decoded bytes must copy them out first (see payload.Clone).
func (b *BaseFrame) Done() {
	if b.body != nil {
		common.ReleaseByteBuff(b.body)
		b.body = nil
	}
}

// Body returns the raw body bytes (excludes the header).
func (b *BaseFrame) Body() []byte {
	if b.body == nil {
		return nil
	}
	return b.body.Bytes()
}

// bodyLen is a convenience for Validate implementations.
func (b *BaseFrame) bodyLen() int {
	if b.body == nil {
		return 0
	}
	return b.body.Len()
}
