package process

import (
	"errors"
	"fmt"
)

// ErrProcess wraps any failure to spawn or terminate a kitchen worker,
// whether the backend is a forked OS process or a Kubernetes pod.
var ErrProcess = errors.New("process: spawn failed")

// WrapSpawnError tags a Spawner.Spawn failure with ErrProcess so
// callers can distinguish spawn failures from other error classes with
// errors.Is, regardless of which Spawner backend produced it.
func WrapSpawnError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrProcess, err)
}
