package wire

import "errors"

// ErrMessage is raised on a malformed envelope or a short payload
// buffer. It is local to the offending message: the listener logs and
// drops it, never tearing down the loop.
var ErrMessage = errors.New("wire: malformed message")
