package common

import "time"

// Default connection-level tunables, used when a caller does not override them
// via SETUP parameters.
const (
	DefaultKeepaliveInterval   = 20 * time.Second
	DefaultKeepaliveMaxLifetime = 90 * time.Second
	DefaultMimeType            = "application/binary"
	DefaultStreamID            = uint32(0)
)

// Error codes defined by the RSocket wire protocol. Connection-level codes are
// carried in an ERROR frame with streamId == 0; stream-level codes are carried
// in an ERROR frame with the stream's own id.
const (
	ErrorCodeInvalidSetup     = uint32(0x00000001)
	ErrorCodeUnsupportedSetup = uint32(0x00000002)
	ErrorCodeRejectedSetup    = uint32(0x00000003)
	ErrorCodeRejectedResume   = uint32(0x00000004)
	ErrorCodeConnectionError  = uint32(0x00000101)
	ErrorCodeConnectionClose  = uint32(0x00000102)
	ErrorCodeApplicationError = uint32(0x00000201)
	ErrorCodeRejected         = uint32(0x00000202)
	ErrorCodeCanceled         = uint32(0x00000203)
	ErrorCodeInvalid          = uint32(0x00000204)
)
