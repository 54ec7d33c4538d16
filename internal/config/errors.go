package config

import "errors"

// ErrArgument is raised by CLI/argument parsing and enum lookups. It
// is surfaced to the user and maps to exit code 84 at the top of main().
var ErrArgument = errors.New("config: argument error")
