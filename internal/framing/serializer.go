package framing

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/flowmux/rsocket/internal/common"
)

// Version is a wire protocol version pair.
type Version struct {
	Major, Minor uint16
}

// String renders "major.minor".
func (v Version) String() string {
	return itoa(int(v.Major)) + "." + itoa(int(v.Minor))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}

// DefaultVersion is the only wire version this module encodes/decodes.
var DefaultVersion = Version{Major: 1, Minor: 0}

// Serializer is the FrameSerializer: it owns bit-exact encode/decode for a
// chosen protocol version and the one-shot version auto-detection run against
// the first inbound frame of a connection.
//
// A Serializer is not safe for concurrent encode/decode calls against the
// same connection, matching the single-threaded-executor model a connection
// runs under; it performs no internal locking.
type Serializer struct {
	version  Version
	detected bool
}

// NewSerializer creates a Serializer fixed to v. If v is the zero Version,
// the serializer instead waits for ProbeFirst to fix it from the wire.
func NewSerializer(v Version) *Serializer {
	s := &Serializer{version: v}
	s.detected = v != (Version{})
	return s
}

// Version returns the currently fixed version, which may be the zero value
// if auto-detection hasn't run yet.
func (s *Serializer) Version() Version {
	return s.version
}

// Fixed reports whether a version has been fixed, by configuration or probe.
func (s *Serializer) Fixed() bool {
	return s.detected
}

// ProbeFirst inspects the first inbound frame and fixes the version from it.
// This only ever runs once per connection; calling it again is a no-op
// returning the already-fixed version.
func (s *Serializer) ProbeFirst(raw []byte) (Version, bool) {
	if s.detected {
		return s.version, true
	}
	major, minor, ok := ProbeVersion(raw)
	if !ok {
		return Version{}, false
	}
	s.version = Version{Major: major, Minor: minor}
	s.detected = true
	return s.version, true
}

// PeekHeader parses only the 6-byte header of a framed buffer, without
// allocating a body copy.
func (s *Serializer) PeekHeader(raw []byte) (FrameHeader, error) {
	if len(raw) < HeaderLen {
		return FrameHeader{}, ErrInvalidFrame
	}
	return ParseFrameHeader(raw), nil
}

// Decode decodes a complete framed buffer (header+body) into a typed Frame,
// validating it bit-exactly for the current version.
func (s *Serializer) Decode(raw []byte) (Frame, error) {
	if !s.detected {
		return nil, errors.New("serializer: version not yet fixed")
	}
	return DecodeFrom(raw)
}

// Encode serializes f (header+body) into w.
func (s *Serializer) Encode(w io.Writer, f Frame) (int64, error) {
	return f.WriteTo(w)
}

// EncodeToBytes serializes f into a freshly allocated buffer, used by the
// resume cache which must retain bytes past the frame's own Done().
func (s *Serializer) EncodeToBytes(f Frame) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WithLengthPrefix writes the 3-byte big-endian length prefix followed by
// the frame itself, matching the on-wire framing used by all transports.
func (s *Serializer) WithLengthPrefix(w io.Writer, f Frame) error {
	if _, err := common.NewUint24(f.Len()).WriteTo(w); err != nil {
		return errors.Wrap(err, "write length prefix failed")
	}
	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "write frame failed")
	}
	return nil
}
