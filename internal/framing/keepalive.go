package framing

import (
	"encoding/binary"

	"github.com/flowmux/rsocket/internal/common"
)

// FrameKeepalive is the connection-level liveness frame.
type FrameKeepalive struct {
	*BaseFrame
}

// NewFrameKeepalive constructs an outbound KEEPALIVE frame.
func NewFrameKeepalive(respond bool, lastReceivedPosition uint64, data []byte) *FrameKeepalive {
	var flags FrameFlag
	if respond {
		flags |= FlagRespond
	}
	bb := common.NewByteBuff()
	var pos [8]byte
	binary.BigEndian.PutUint64(pos[:], lastReceivedPosition)
	_, _ = bb.Write(pos[:])
	_, _ = bb.Write(data)
	return &FrameKeepalive{NewBaseFrame(NewFrameHeader(0, FrameTypeKeepalive, flags), bb)}
}

// Respond reports whether the RESPOND flag (echo requested) is set.
func (f *FrameKeepalive) Respond() bool {
	return f.Header().Flag().Check(FlagRespond)
}

// LastReceivedPosition returns the sender's last received resumable position.
func (f *FrameKeepalive) LastReceivedPosition() uint64 {
	return binary.BigEndian.Uint64(f.Body()[0:8])
}

// Data returns the keepalive payload, usually empty.
func (f *FrameKeepalive) Data() []byte {
	return f.Body()[8:]
}

// Validate checks the body carries at least the 8-byte position.
func (f *FrameKeepalive) Validate() error {
	if len(f.Body()) < 8 {
		return ErrInvalidFrame
	}
	return nil
}

func (f *FrameKeepalive) String() string { return "FrameKeepalive{}" }
