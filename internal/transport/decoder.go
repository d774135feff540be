package transport

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"github.com/flowmux/rsocket/internal/common"
)

// LengthBasedFrameDecoder reads the 3-byte big-endian length prefix that
// precedes every frame on the wire, then the exact number of bytes it names.
type LengthBasedFrameDecoder struct {
	r *bufio.Reader
}

// NewLengthBasedFrameDecoder wraps r for length-prefixed reads.
func NewLengthBasedFrameDecoder(r io.Reader) *LengthBasedFrameDecoder {
	return &LengthBasedFrameDecoder{r: bufio.NewReader(r)}
}

// Read returns the next complete framed buffer (header+body, length prefix
// stripped), or io.EOF when the peer closed cleanly.
func (d *LengthBasedFrameDecoder) Read() ([]byte, error) {
	var lb [3]byte
	if _, err := io.ReadFull(d.r, lb[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	n := int(common.DecodeUint24Bytes(lb[:]))
	if n <= 0 {
		return nil, errors.New("invalid frame length prefix")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	return buf, nil
}
