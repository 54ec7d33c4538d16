package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"plazza/internal/api"
	"plazza/internal/api/handlers"
	"plazza/internal/config"
	"plazza/internal/manager"
	"plazza/internal/parser"
	"plazza/internal/process"
	"plazza/pkg/logger"
)

func runReception(args []string) int {
	cfg, err := config.ParseCLIArgs(args)
	if err != nil {
		return exitError(err)
	}

	if err := logger.InitLogger(cfg.LogLevel, cfg.LogFilePath); err != nil {
		fmt.Fprintln(os.Stderr, "Error: failed to initialize logger:", err)
		return 84
	}
	defer logger.Sync()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("invalid redis url", zap.Error(err))
		return exitError(err)
	}
	opts.PoolSize = cfg.RedisPoolSize
	opts.MinIdleConns = cfg.RedisMinIdleConn
	opts.DialTimeout = cfg.RedisDialTimeout
	client := redis.NewClient(opts)
	defer client.Close()

	ctx, cancel := signalContext()
	defer cancel()

	spawner, err := buildSpawner(cfg)
	if err != nil {
		logger.Error("failed to configure kitchen spawner", zap.Error(err))
		return exitError(err)
	}

	mgr, err := manager.New(ctx, client, spawner, cfg.CooksPerKitchen, cfg.StockRestockInterval(), cfg.TimeMultiplier)
	if err != nil {
		logger.Error("failed to start kitchen manager", zap.Error(err))
		return exitError(err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer shutdownCancel()
		mgr.Cleanup(shutdownCtx)
	}()

	if cfg.MetricsEnabled {
		startAdminServer(cfg, mgr, client)
	}

	logger.Info("reception started",
		zap.Float64("time_multiplier", cfg.TimeMultiplier),
		zap.Uint32("cooks_per_kitchen", cfg.CooksPerKitchen),
	)

	runOrderLoop(ctx, mgr)
	return 0
}

func buildSpawner(cfg *config.Config) (process.Spawner, error) {
	switch cfg.SpawnMode {
	case config.SpawnModeK8s:
		return process.NewK8sPodSpawner(cfg.K8sNamespace, cfg.KitchenImage, cfg.K8sInCluster, cfg.K8sKubeConfigPath)
	default:
		return &process.OSProcessSpawner{
			Args: []string{
				strconv.FormatUint(uint64(cfg.CooksPerKitchen), 10),
				strconv.FormatFloat(cfg.TimeMultiplier, 'f', -1, 64),
				strconv.FormatUint(uint64(cfg.StockRestockMS), 10),
				cfg.RedisURL,
			},
		}, nil
	}
}

func startAdminServer(cfg *config.Config, mgr *manager.Manager, client *redis.Client) {
	pinger := pingerFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})

	router := api.NewRouter(mgr, pinger, logger.L())
	srv := &http.Server{Addr: cfg.AdminHTTPAddr, Handler: router}

	go func() {
		logger.Info("admin http server listening", zap.String("addr", cfg.AdminHTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin http server failed", zap.Error(err))
		}
	}()
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

var _ handlers.Pinger = pingerFunc(nil)

// runOrderLoop reads stdin lines: "status" prints the kitchen table,
// "exit"/"quit" stops reception (EOF does the same), anything else is
// parsed as an order line and distributed.
func runOrderLoop(ctx context.Context, mgr *manager.Manager) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "exit", "quit":
			return
		case "status":
			mgr.DisplayStatus(ctx, printStatus)
			continue
		}

		orders, err := parser.Parse(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			continue
		}
		if err := mgr.DistributeOrder(ctx, orders); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
}

func printStatus(rows []manager.StatusRow) {
	for _, row := range rows {
		fmt.Printf("Kitchen %d: %d/%d cooks busy, %d pending, active=%v\n",
			row.KitchenID, row.Busy, row.Total, row.Pending, row.Active)
	}
}
