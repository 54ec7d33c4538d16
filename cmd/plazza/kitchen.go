package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"plazza/internal/ipc"
	"plazza/internal/kitchen"
	"plazza/pkg/logger"
)

// runKitchen parses the positional arguments process.OSProcessSpawner
// passes a re-exec'd kitchen worker: <id> <cooks> <timeMultiplier>
// <stockRestockMS> <redisURL>.
func runKitchen(args []string) int {
	if len(args) != 5 {
		fmt.Println("Error: usage: plazza kitchen <id> <cooks> <timeMultiplier> <stockRestockMS> <redisURL>")
		return 84
	}

	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return exitError(fmt.Errorf("invalid kitchen id: %w", err))
	}
	cooks, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return exitError(fmt.Errorf("invalid cooks count: %w", err))
	}
	timeMultiplier, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return exitError(fmt.Errorf("invalid time multiplier: %w", err))
	}
	stockRestockMS, err := strconv.ParseUint(args[3], 10, 32)
	if err != nil {
		return exitError(fmt.Errorf("invalid stock restock ms: %w", err))
	}
	redisURL := args[4]

	if err := logger.InitLogger("info", ""); err != nil {
		fmt.Println("Error: failed to initialize logger:", err)
		return 84
	}
	defer logger.Sync()

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return exitError(fmt.Errorf("invalid redis url: %w", err))
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx, cancel := signalContext()
	defer cancel()

	ipcMgr, err := ipc.NewKitchenManager(ctx, client, uint32(id))
	if err != nil {
		logger.Error("failed to start kitchen ipc", zap.Uint32("kitchen_id", uint32(id)), zap.Error(err))
		return exitError(err)
	}

	sched := kitchen.New(kitchen.Config{
		ID:               uint32(id),
		CookCount:        uint32(cooks),
		TimeMultiplier:   timeMultiplier,
		StockRestockTime: time.Duration(stockRestockMS) * time.Millisecond,
	}, ipcMgr)

	logger.Info("kitchen started", zap.Uint32("kitchen_id", uint32(id)), zap.Uint64("cooks", cooks))
	sched.Run(ctx)
	logger.Info("kitchen exiting", zap.Uint32("kitchen_id", uint32(id)))
	return 0
}
