package socket

import "github.com/pkg/errors"

// errCanceled is delivered to a channel's StreamSource when the peer cancels
// before sending its own COMPLETE.
var errCanceled = errors.New("socket: stream canceled by peer")
