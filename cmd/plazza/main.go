// Command plazza is reception and kitchen in one binary: invoked with
// its three positional arguments it runs reception; invoked as
// "plazza kitchen <id> <cooks> <timeMultiplier> <stockRestockMS> <redisURL>"
// (the form process.OSProcessSpawner re-execs it with) it runs one
// kitchen worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"plazza/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) > 0 && args[0] == "kitchen" {
		return runKitchen(args[1:])
	}
	return runReception(args)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()
	return ctx, cancel
}

// exitError prints err and maps it to this program's exit-84-on-any-error
// convention.
func exitError(err error) int {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 84
}
