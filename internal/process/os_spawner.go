package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"

	"plazza/pkg/logger"
)

// OSProcessSpawner is the default backend: it re-execs the current
// binary with the "kitchen" subcommand, one child process per kitchen.
// Termination is SIGTERM followed by a bounded wait before a hard kill.
type OSProcessSpawner struct {
	// Args is appended after "kitchen <kitchenID>" when building the
	// child command line (e.g. Redis URL, cooks-per-kitchen, time
	// multiplier). Self is the path to re-exec; defaults to
	// os.Executable() when empty.
	Args []string
	Self string
}

type osHandle struct {
	id      uint32
	cmd     *exec.Cmd
	running atomic.Bool
	exited  chan struct{}
}

func (h *osHandle) ID() uint32      { return h.id }
func (h *osHandle) IsRunning() bool { return h.running.Load() }

func (h *osHandle) Terminate(ctx context.Context) error {
	if !h.running.Load() {
		return nil
	}
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("process: signal kitchen %d: %w", h.id, err)
	}

	select {
	case <-h.exited:
		return nil
	case <-ctx.Done():
		_ = h.cmd.Process.Kill()
		return fmt.Errorf("process: kitchen %d did not exit before deadline, killed", h.id)
	}
}

// Spawn starts a new kitchen subprocess.
func (s *OSProcessSpawner) Spawn(ctx context.Context, kitchenID uint32) (Handle, error) {
	self := s.Self
	if self == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("process: resolve self: %w", err)
		}
		self = exe
	}

	args := append([]string{"kitchen", strconv.FormatUint(uint64(kitchenID), 10)}, s.Args...)
	cmd := exec.Command(self, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("process: start kitchen %d: %w", kitchenID, err)
	}

	h := &osHandle{id: kitchenID, cmd: cmd, exited: make(chan struct{})}
	h.running.Store(true)

	go func() {
		err := cmd.Wait()
		h.running.Store(false)
		close(h.exited)
		if err != nil {
			logger.Warn("kitchen process exited with error",
				zap.Uint32("kitchen_id", kitchenID), zap.Error(err))
		} else {
			logger.Info("kitchen process exited", zap.Uint32("kitchen_id", kitchenID))
		}
	}()

	return h, nil
}
