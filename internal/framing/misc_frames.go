package framing

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/flowmux/rsocket/internal/common"
)

// FrameLease is the LEASE frame, granting the peer a permit budget.
type FrameLease struct {
	*BaseFrame
}

// NewFrameLease constructs an outbound LEASE frame.
func NewFrameLease(ttlMs, numRequests uint32, metadata []byte) *FrameLease {
	var flags FrameFlag
	if metadata != nil {
		flags |= FlagMetadata
	}
	bb := common.NewByteBuff()
	var head [8]byte
	binary.BigEndian.PutUint32(head[0:4], ttlMs)
	binary.BigEndian.PutUint32(head[4:8], numRequests)
	_, _ = bb.Write(head[:])
	if metadata != nil {
		_, _ = bb.Write(metadata)
	}
	return &FrameLease{NewBaseFrame(NewFrameHeader(0, FrameTypeLease, flags), bb)}
}

func (f *FrameLease) TimeToLiveMs() uint32    { return binary.BigEndian.Uint32(f.Body()[0:4]) }
func (f *FrameLease) NumberOfRequests() uint32 { return binary.BigEndian.Uint32(f.Body()[4:8]) }

func (f *FrameLease) Metadata() ([]byte, bool) {
	if !f.Header().Flag().Check(FlagMetadata) {
		return nil, false
	}
	return f.Body()[8:], true
}

func (f *FrameLease) Validate() error {
	if len(f.Body()) < 8 {
		return ErrInvalidFrame
	}
	return nil
}

func (f *FrameLease) String() string { return "FrameLease{}" }

// FrameRequestN is the REQUEST_N frame: the requester grants the responder
// permission to emit n further PAYLOADs.
type FrameRequestN struct {
	*BaseFrame
}

// NewFrameRequestN constructs an outbound REQUEST_N frame.
func NewFrameRequestN(streamID uint32, n uint32) *FrameRequestN {
	bb := common.NewByteBuff()
	var body [4]byte
	binary.BigEndian.PutUint32(body[:], n)
	_, _ = bb.Write(body[:])
	return &FrameRequestN{NewBaseFrame(NewFrameHeader(streamID, FrameTypeRequestN, 0), bb)}
}

// N returns the granted request count.
func (f *FrameRequestN) N() uint32 {
	return binary.BigEndian.Uint32(f.Body()[0:4])
}

func (f *FrameRequestN) Validate() error {
	if len(f.Body()) < 4 {
		return ErrInvalidFrame
	}
	return nil
}

func (f *FrameRequestN) String() string { return "FrameRequestN{}" }

// FrameCancel is the CANCEL frame: the requester withdraws interest in a
// stream still in flight.
type FrameCancel struct {
	*BaseFrame
}

// NewFrameCancel constructs an outbound CANCEL frame.
func NewFrameCancel(streamID uint32) *FrameCancel {
	return &FrameCancel{NewBaseFrame(NewFrameHeader(streamID, FrameTypeCancel, 0), common.NewByteBuff())}
}

func (f *FrameCancel) Validate() error { return nil }
func (f *FrameCancel) String() string  { return "FrameCancel{}" }

// FrameError is the ERROR frame: carries an error code and a UTF-8 message.
// A zero stream id means connection-level/fatal.
type FrameError struct {
	*BaseFrame
}

// NewFrameError constructs an outbound ERROR frame.
func NewFrameError(streamID uint32, code uint32, data []byte) *FrameError {
	bb := common.NewByteBuff()
	var c [4]byte
	binary.BigEndian.PutUint32(c[:], code)
	_, _ = bb.Write(c[:])
	_, _ = bb.Write(data)
	return &FrameError{NewBaseFrame(NewFrameHeader(streamID, FrameTypeError, 0), bb)}
}

// ErrorCode returns the numeric error code.
func (f *FrameError) ErrorCode() uint32 {
	return binary.BigEndian.Uint32(f.Body()[0:4])
}

// ErrorData returns the error message bytes.
func (f *FrameError) ErrorData() []byte {
	return f.Body()[4:]
}

// Error implements the error interface so FrameError can be propagated
// directly as a Go error value.
func (f *FrameError) Error() string {
	return string(f.ErrorData())
}

// ToError wraps the frame in a plain error, for callers that only want the
// message and don't need the code.
func (f *FrameError) ToError() error {
	return errors.New(f.Error())
}

func (f *FrameError) Validate() error {
	if len(f.Body()) < 4 {
		return ErrInvalidFrame
	}
	return nil
}

func (f *FrameError) String() string { return "FrameError{code=" + errCodeName(f.ErrorCode()) + "}" }

func errCodeName(code uint32) string {
	switch code {
	case common.ErrorCodeInvalidSetup:
		return "INVALID_SETUP"
	case common.ErrorCodeUnsupportedSetup:
		return "UNSUPPORTED_SETUP"
	case common.ErrorCodeRejectedSetup:
		return "REJECTED_SETUP"
	case common.ErrorCodeRejectedResume:
		return "REJECTED_RESUME"
	case common.ErrorCodeConnectionError:
		return "CONNECTION_ERROR"
	case common.ErrorCodeConnectionClose:
		return "CONNECTION_CLOSE"
	case common.ErrorCodeApplicationError:
		return "APPLICATION_ERROR"
	case common.ErrorCodeRejected:
		return "REJECTED"
	case common.ErrorCodeCanceled:
		return "CANCELED"
	case common.ErrorCodeInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// FrameMetadataPush is the connection-level METADATA_PUSH frame: the entire
// body is metadata, with no length prefix.
type FrameMetadataPush struct {
	*BaseFrame
}

// NewFrameMetadataPush constructs an outbound METADATA_PUSH frame.
func NewFrameMetadataPush(metadata []byte) *FrameMetadataPush {
	bb := common.NewByteBuff()
	_, _ = bb.Write(metadata)
	return &FrameMetadataPush{NewBaseFrame(NewFrameHeader(0, FrameTypeMetadataPush, FlagMetadata), bb)}
}

// Metadata returns the pushed metadata bytes.
func (f *FrameMetadataPush) Metadata() []byte {
	return f.Body()
}

func (f *FrameMetadataPush) Validate() error { return nil }
func (f *FrameMetadataPush) String() string  { return "FrameMetadataPush{}" }
