// Package fragmentation implements both directions of RSocket frame
// fragmentation: splitting an outbound request/payload across a FOLLOWS
// chain bounded by an MTU, and reassembling an inbound chain back into one
// logical frame.
package fragmentation

import (
	"github.com/pkg/errors"

	"github.com/flowmux/rsocket/internal/framing"
)

// Fragment size bounds. MTU 0 means fragmentation is disabled.
const (
	MinFragment = 64
	// MaxFragment matches the ceiling of the 24-bit frame length field.
	MaxFragment = framing.DataLen24MaxAbsolute
)

// IsValidFragment validates a configured MTU.
func IsValidFragment(mtu int) error {
	if mtu == 0 {
		return nil
	}
	if mtu < MinFragment {
		return errors.Errorf("fragment size %d is smaller than minimum %d", mtu, MinFragment)
	}
	if mtu > MaxFragment {
		return errors.Errorf("fragment size %d exceeds maximum %d", mtu, MaxFragment)
	}
	return nil
}

// Accumulator assembles a remote-initiated first-of-stream request that
// arrived as a chain of FOLLOWS-flagged fragments, until the FOLLOWS flag
// clears. It is present only while assembly is in progress; the owning
// connection removes it and installs a real stream entry once Finalize
// succeeds, since a stream id may never be both mid-assembly and live in
// the demux table at once.
type Accumulator struct {
	streamID     uint32
	originalType framing.FrameType
	metadata     []byte
	hasMetadata  bool
	data         []byte
	initialN     uint32
	complete     bool
	maxSize      int
	size         int
}

// NewAccumulator creates an accumulator bounded to maxSize total bytes
// (metadata+data combined); maxSize <= 0 means unbounded.
func NewAccumulator(streamID uint32, maxSize int) *Accumulator {
	return &Accumulator{streamID: streamID, maxSize: maxSize}
}

// ErrFragmentTooLarge is returned when accumulated bytes exceed the configured
// bound; the caller must translate this into a stream-level REJECTED error.
var ErrFragmentTooLarge = errors.New("fragment accumulator exceeded maximum size")

// AppendFirst records the original REQUEST_* frame that opened this stream.
func (a *Accumulator) AppendFirst(typ framing.FrameType, metadata []byte, hasMetadata bool, data []byte, initialN uint32, complete bool) error {
	a.originalType = typ
	a.initialN = initialN
	a.complete = complete
	return a.append(metadata, hasMetadata, data)
}

// AppendFollowing records a subsequent PAYLOAD-with-FOLLOWS fragment.
func (a *Accumulator) AppendFollowing(metadata []byte, hasMetadata bool, data []byte) error {
	return a.append(metadata, hasMetadata, data)
}

func (a *Accumulator) append(metadata []byte, hasMetadata bool, data []byte) error {
	n := len(data)
	if hasMetadata {
		n += len(metadata)
	}
	if a.maxSize > 0 && a.size+n > a.maxSize {
		return ErrFragmentTooLarge
	}
	a.size += n
	if hasMetadata {
		a.hasMetadata = true
		a.metadata = append(a.metadata, metadata...)
	}
	a.data = append(a.data, data...)
	return nil
}

// Finalize builds the synthetic, complete logical REQUEST frame for delivery
// to the stream-creation path, with FOLLOWS cleared.
func (a *Accumulator) Finalize() (framing.Frame, error) {
	var md []byte
	if a.hasMetadata {
		md = a.metadata
	}
	switch a.originalType {
	case framing.FrameTypeRequestResponse:
		return framing.NewFrameRequestResponse(a.streamID, a.data, md, false), nil
	case framing.FrameTypeRequestFNF:
		return framing.NewFrameRequestFNF(a.streamID, a.data, md, false), nil
	case framing.FrameTypeRequestStream:
		return framing.NewFrameRequestStream(a.streamID, a.initialN, a.data, md, false), nil
	case framing.FrameTypeRequestChannel:
		return framing.NewFrameRequestChannel(a.streamID, a.initialN, a.data, md, a.complete, false), nil
	default:
		return nil, errors.Errorf("fragmentation: cannot finalize frame type %s", a.originalType)
	}
}
