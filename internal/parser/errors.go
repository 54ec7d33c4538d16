package parser

import "errors"

// ErrParser wraps any malformed or unparseable order line.
var ErrParser = errors.New("parser: invalid order line")
