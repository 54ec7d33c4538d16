// Package kitchen implements the in-process scheduler that runs
// inside every kitchen worker: a 100ms tick loop driving heartbeats,
// deferred-order retry, and idle-timeout exit, plus the message
// handlers that turn inbound orders into cook assignments.
package kitchen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"plazza/internal/config"
	"plazza/internal/cook"
	"plazza/internal/ipc"
	"plazza/internal/pizza"
	"plazza/internal/stock"
	"plazza/internal/wire"
	"plazza/pkg/logger"
)

// Scheduler is one kitchen's in-process runtime.
type Scheduler struct {
	id             uint32
	cooks          []*cook.Cook
	stock          *stock.Stock
	ipc            *ipc.Manager
	timeMultiplier float64

	pendingPizzas int32
	pendingMu     sync.Mutex

	lastActivity      time.Time
	lastHeartbeatSent time.Time
	activityMu        sync.Mutex

	deferredMu sync.Mutex
	deferred   []pizza.Pizza

	running bool
	runMu   sync.Mutex

	stopRestock chan struct{}
}

// Config bundles a kitchen scheduler's startup parameters, matching
// what manager.createKitchen passes a spawned kitchen process.
type Config struct {
	ID               uint32
	CookCount        uint32
	TimeMultiplier   float64
	StockRestockTime time.Duration
}

// New constructs a scheduler. Call Run to start it; Run blocks until
// Shutdown is handled or the idle timeout fires.
func New(cfg Config, ipcMgr *ipc.Manager) *Scheduler {
	cooks := make([]*cook.Cook, cfg.CookCount)
	for i := range cooks {
		cooks[i] = cook.New(uint32(i), cfg.TimeMultiplier)
	}

	s := &Scheduler{
		id:             cfg.ID,
		cooks:          cooks,
		stock:          stock.New(),
		ipc:            ipcMgr,
		timeMultiplier: cfg.TimeMultiplier,
		stopRestock:    make(chan struct{}),
	}
	s.touchActivity()
	go s.stock.RunRestockLoop(cfg.StockRestockTime, s.stopRestock)
	return s
}

func (s *Scheduler) touchActivity() {
	s.activityMu.Lock()
	s.lastActivity = time.Now()
	s.activityMu.Unlock()
}

func (s *Scheduler) idleFor() time.Duration {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	return time.Since(s.lastActivity)
}

// Run installs handlers, starts the IPC listener, and runs the main
// 100ms tick loop until Shutdown is received or the kitchen goes
// idle for config.IdleTimeout.
func (s *Scheduler) Run(ctx context.Context) {
	s.runMu.Lock()
	s.running = true
	s.runMu.Unlock()

	s.ipc.SetHandler(wire.PizzaOrder, s.handlePizzaOrder)
	s.ipc.SetHandler(wire.StatusRequest, s.handleStatusRequest)
	s.ipc.SetHandler(wire.Shutdown, s.handleShutdown)
	s.ipc.StartListening(ctx)

	ticker := time.NewTicker(config.PollInterval)
	defer ticker.Stop()

loop:
	for {
		if !s.isRunning() {
			break
		}
		if s.idleFor() >= config.IdleTimeout {
			logger.Info("kitchen idle timeout, exiting", zap.Uint32("kitchen_id", s.id))
			break
		}

		select {
		case <-ctx.Done():
			s.stop()
			break loop
		case <-ticker.C:
			s.tick(ctx)
		}
	}

	s.shutdown(ctx)
}

func (s *Scheduler) isRunning() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}

func (s *Scheduler) stop() {
	s.runMu.Lock()
	s.running = false
	s.runMu.Unlock()
}

func (s *Scheduler) tick(ctx context.Context) {
	s.activityMu.Lock()
	dueHeartbeat := time.Since(s.lastHeartbeatSent) >= config.HeartbeatInterval
	if dueHeartbeat {
		s.lastHeartbeatSent = time.Now()
	}
	s.activityMu.Unlock()

	if dueHeartbeat {
		s.sendHeartbeat(ctx)
	}

	s.retryDeferred(ctx)
}

func (s *Scheduler) sendHeartbeat(ctx context.Context) {
	msg := wire.Message{Type: wire.Heartbeat, SenderID: s.id, Timestamp: uint32(time.Now().Unix())}
	if err := s.ipc.SendToReception(ctx, msg); err != nil {
		logger.Warn("failed to send heartbeat", zap.Uint32("kitchen_id", s.id), zap.Error(err))
	}
}

// retryDeferred walks the FIFO deferred list once, re-attempting
// atomic dispatch for each and keeping only the ones that still fail.
func (s *Scheduler) retryDeferred(ctx context.Context) {
	s.deferredMu.Lock()
	current := s.deferred
	s.deferred = nil
	s.deferredMu.Unlock()

	var stillDeferred []pizza.Pizza
	for _, p := range current {
		if !s.tryDispatch(ctx, p) {
			stillDeferred = append(stillDeferred, p)
		}
	}

	if len(stillDeferred) > 0 {
		s.deferredMu.Lock()
		s.deferred = append(stillDeferred, s.deferred...)
		s.deferredMu.Unlock()
	}
}

// tryDispatch attempts the atomic consume-stock-and-assign-to-a-free-cook
// operation for one pizza, returning true iff it succeeded. The cook
// claim (Assign's CAS) happens inside the ConsumeIf closure, under the
// stock's lock, so a concurrent tryDispatch call from the other caller
// (the IPC listener goroutine handling a fresh order and the tick-loop
// goroutine retrying deferred ones both call this) can never win the
// same cook while this one's debit is still uncommitted: the debit and
// the claim commit together, or neither does.
func (s *Scheduler) tryDispatch(ctx context.Context, p pizza.Pizza) bool {
	ingredients := ingredientCounts(pizza.Ingredients(p.Type))

	return s.stock.ConsumeIf(ingredients, func() bool {
		for _, c := range s.cooks {
			if c.Assign(ctx, p, s.onPizzaComplete) {
				return true
			}
		}
		return false
	})
}

func ingredientCounts(list []pizza.Ingredient) map[pizza.Ingredient]uint32 {
	counts := make(map[pizza.Ingredient]uint32, len(list))
	for _, ing := range list {
		counts[ing]++
	}
	return counts
}

func (s *Scheduler) onPizzaComplete(p pizza.Pizza, elapsed time.Duration) {
	s.touchActivity()
	s.decrementPending()

	completion := wire.CompletionPayload{
		Pizza:          p,
		CompletionNano: uint64(time.Now().UnixNano()),
	}
	msg := wire.Message{
		Type:      wire.PizzaCompleted,
		SenderID:  s.id,
		Timestamp: uint32(time.Now().Unix()),
		Payload:   completion.Pack().Bytes(),
	}
	if err := s.ipc.SendToReception(context.Background(), msg); err != nil {
		logger.Warn("failed to send pizza completion", zap.Uint32("kitchen_id", s.id), zap.Error(err))
	}
}

func (s *Scheduler) incrementPending() {
	s.pendingMu.Lock()
	s.pendingPizzas++
	s.pendingMu.Unlock()
}

func (s *Scheduler) decrementPending() {
	s.pendingMu.Lock()
	if s.pendingPizzas > 0 {
		s.pendingPizzas--
	}
	s.pendingMu.Unlock()
}

func (s *Scheduler) handlePizzaOrder(ctx context.Context, msg wire.Message) error {
	buf := wire.BufferFromBytes(msg.Payload)
	order, err := wire.UnpackOrder(buf)
	if err != nil {
		return fmt.Errorf("kitchen: decode pizza order: %w", err)
	}

	p := pizza.Pizza{Type: order.Type, Size: order.Size, OrderID: order.OrderID, KitchenID: s.id}

	if s.tryDispatch(ctx, p) {
		s.incrementPending()
		s.touchActivity()
		logger.Info("pizza order dispatched", zap.Uint32("kitchen_id", s.id), zap.Uint32("order_id", order.OrderID))
	} else {
		s.deferredMu.Lock()
		s.deferred = append(s.deferred, p)
		s.deferredMu.Unlock()
		logger.Info("pizza order deferred", zap.Uint32("kitchen_id", s.id), zap.Uint32("order_id", order.OrderID))
	}
	return nil
}

func (s *Scheduler) handleStatusRequest(ctx context.Context, msg wire.Message) error {
	s.touchActivity()

	var busy uint32
	for _, c := range s.cooks {
		if c.IsBusy() {
			busy++
		}
	}

	snap := s.stock.Snapshot()
	entries := make([]wire.StockEntry, 0, len(snap))
	for ing, count := range snap {
		entries = append(entries, wire.StockEntry{Ingredient: ing, Count: count})
	}

	s.pendingMu.Lock()
	pending := s.pendingPizzas
	s.pendingMu.Unlock()

	status := wire.StatusPayload{
		KitchenID:     s.id,
		BusyCooks:     busy,
		TotalCooks:    uint32(len(s.cooks)),
		PendingPizzas: uint32(pending),
		Stock:         entries,
	}
	resp := wire.Message{
		Type:      wire.StatusResponse,
		SenderID:  s.id,
		Timestamp: uint32(time.Now().Unix()),
		Payload:   status.Pack().Bytes(),
	}
	return s.ipc.SendToReception(ctx, resp)
}

func (s *Scheduler) handleShutdown(ctx context.Context, msg wire.Message) error {
	s.stop()
	return nil
}

// shutdown stops the listener, every cook, and the stock replenish
// loop, in that order.
func (s *Scheduler) shutdown(ctx context.Context) {
	s.ipc.StopListening()
	for _, c := range s.cooks {
		c.Cancel()
	}
	close(s.stopRestock)
	_ = s.ipc.Close(ctx)
}
