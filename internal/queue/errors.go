package queue

import "errors"

// ErrQueueFull is raised by Send when the named queue is at capacity
// (MAX_MESSAGES).
var ErrQueueFull = errors.New("queue: full")

// ErrMessageTooLarge is raised by Send when the payload is at or beyond
// MAX_MESSAGE_SIZE. This is a hard failure: oversize payloads are
// never queued.
var ErrMessageTooLarge = errors.New("queue: message too large")

// ErrQueue wraps any other queue-level failure (backend open/close
// errors).
var ErrQueue = errors.New("queue: operation failed")
