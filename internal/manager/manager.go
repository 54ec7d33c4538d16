// Package manager implements the reception-side kitchen manager:
// tracking spawned kitchens, routing orders to the best-fit kitchen
// (spawning a new one when none qualifies), and reaping kitchens that
// go quiet.
package manager

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"plazza/internal/config"
	"plazza/internal/ipc"
	"plazza/internal/metrics"
	"plazza/internal/pizza"
	"plazza/internal/process"
	"plazza/internal/queue"
	"plazza/internal/wire"
	"plazza/pkg/logger"
)

// KitchenInfo is reception's view of one spawned kitchen.
type KitchenInfo struct {
	ID              uint32
	Handle          process.Handle
	LastHeartbeat   time.Time
	LastKnownStatus wire.StatusPayload
	HasStatus       bool
	PendingPizzas   uint32
	Active          bool
}

// Manager is the reception-side kitchen manager.
type Manager struct {
	ipc             *ipc.Manager
	spawner         process.Spawner
	cooksPerKitchen uint32
	stockRestock    time.Duration
	timeMultiplier  float64

	mu       sync.Mutex
	kitchens map[uint32]*KitchenInfo
	nextID   uint32
}

// New constructs the reception-side manager, including a fresh
// reception-role IPC manager.
func New(ctx context.Context, client queue.Cmdable, spawner process.Spawner, cooksPerKitchen uint32, stockRestock time.Duration, timeMultiplier float64) (*Manager, error) {
	ipcMgr, err := ipc.NewReceptionManager(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("manager: create reception ipc: %w", err)
	}

	m := &Manager{
		ipc:             ipcMgr,
		spawner:         spawner,
		cooksPerKitchen: cooksPerKitchen,
		stockRestock:    stockRestock,
		timeMultiplier:  timeMultiplier,
		kitchens:        make(map[uint32]*KitchenInfo),
		nextID:          1,
	}

	ipcMgr.SetHandler(wire.PizzaCompleted, m.handlePizzaCompleted)
	ipcMgr.SetHandler(wire.StatusResponse, m.handleStatusResponse)
	ipcMgr.SetHandler(wire.Heartbeat, m.handleHeartbeat)
	ipcMgr.StartListening(ctx)

	return m, nil
}

// DistributeOrder routes each order to the best available kitchen,
// spawning a new one when none qualifies.
func (m *Manager) DistributeOrder(ctx context.Context, orders []pizza.Order) error {
	m.removeInactiveKitchens(ctx)

	for _, order := range orders {
		target, err := m.findBestKitchenOrCreate(ctx)
		if err != nil {
			metrics.OrdersTotal.WithLabelValues("no_kitchen_available").Inc()
			return fmt.Errorf("manager: no kitchen available for order %d: %w", order.OrderID, err)
		}

		payload := wire.OrderPayload{Type: order.Type, Size: order.Size, Quantity: 1, OrderID: order.OrderID}
		msg := wire.Message{
			Type:      wire.PizzaOrder,
			Timestamp: uint32(time.Now().Unix()),
			Payload:   payload.Pack().Bytes(),
		}

		if err := m.ipc.SendToKitchen(ctx, target, msg); err != nil {
			logger.Warn("failed to send order to kitchen", zap.Uint32("kitchen_id", target), zap.Error(err))
			metrics.OrdersTotal.WithLabelValues("send_failed").Inc()
			continue
		}

		m.mu.Lock()
		if info, ok := m.kitchens[target]; ok {
			info.PendingPizzas++
			info.LastHeartbeat = time.Now()
		}
		m.mu.Unlock()
		metrics.OrdersTotal.WithLabelValues("dispatched").Inc()
	}

	m.removeInactiveKitchens(ctx)
	m.refreshGauges()
	return nil
}

// refreshGauges recomputes the active-kitchen and pending-pizza gauges
// from the current kitchen table.
func (m *Manager) refreshGauges() {
	m.mu.Lock()
	m.refreshGaugesLocked()
	m.mu.Unlock()
}

// refreshGaugesLocked is refreshGauges for callers that already hold m.mu.
func (m *Manager) refreshGaugesLocked() {
	var pending uint32
	var active int
	for _, info := range m.kitchens {
		pending += info.PendingPizzas
		if m.isAliveLocked(info) {
			active++
		}
	}
	metrics.KitchensActive.Set(float64(active))
	metrics.PendingPizzas.Set(float64(pending))
}

func (m *Manager) findBestKitchenOrCreate(ctx context.Context) (uint32, error) {
	if best := m.findBestKitchen(); best != 0 {
		return best, nil
	}
	return m.createKitchen(ctx)
}

// findBestKitchen picks the lowest-pending alive kitchen under
// capacity, ties broken by lowest id. Returns 0 when none qualify.
func (m *Manager) findBestKitchen() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]uint32, 0, len(m.kitchens))
	for id := range m.kitchens {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	capacity := m.cooksPerKitchen * config.MaxPizzasPerKitchenMultiplier
	var best uint32
	var bestPending uint32 = ^uint32(0)

	for _, id := range ids {
		info := m.kitchens[id]
		if !m.isAliveLocked(info) {
			continue
		}
		if info.PendingPizzas >= capacity {
			continue
		}
		if info.PendingPizzas < bestPending {
			best = id
			bestPending = info.PendingPizzas
		}
	}
	return best
}

func (m *Manager) isAliveLocked(info *KitchenInfo) bool {
	if !info.Active {
		return false
	}
	if info.Handle != nil && !info.Handle.IsRunning() {
		return false
	}
	return time.Since(info.LastHeartbeat) < config.HeartbeatTimeout
}

// createKitchen allocates a new id, opens its inbox channel, and
// spawns its backing process. On spawn failure the channel is removed
// and the error propagated.
func (m *Manager) createKitchen(ctx context.Context) (uint32, error) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.mu.Unlock()

	if err := m.ipc.CreateKitchenChannel(id); err != nil {
		return 0, fmt.Errorf("manager: open channel for kitchen %d: %w", id, err)
	}

	handle, err := m.spawner.Spawn(ctx, id)
	if err != nil {
		_ = m.ipc.RemoveKitchenChannel(id)
		return 0, fmt.Errorf("manager: spawn kitchen %d: %w", id, process.WrapSpawnError(err))
	}

	m.mu.Lock()
	m.kitchens[id] = &KitchenInfo{
		ID:            id,
		Handle:        handle,
		LastHeartbeat: time.Now(),
		Active:        true,
	}
	m.mu.Unlock()

	metrics.KitchensCreatedTotal.Inc()
	m.refreshGauges()
	logger.Info("kitchen created", zap.Uint32("kitchen_id", id))
	return id, nil
}

// reapReason classifies why isAliveLocked rejected a kitchen, for the
// KitchensReapedTotal label.
func (m *Manager) reapReason(info *KitchenInfo) string {
	if info.Handle != nil && !info.Handle.IsRunning() {
		return "process_exited"
	}
	if time.Since(info.LastHeartbeat) >= config.HeartbeatTimeout {
		return "heartbeat_stale"
	}
	return "inactive"
}

// removeInactiveKitchens reaps any kitchen whose process has exited or
// whose heartbeat is stale. Outstanding pending pizzas on a reaped
// kitchen are not requeued.
func (m *Manager) removeInactiveKitchens(ctx context.Context) {
	m.mu.Lock()
	var dead []uint32
	reasons := make(map[uint32]string)
	for id, info := range m.kitchens {
		if !m.isAliveLocked(info) {
			dead = append(dead, id)
			reasons[id] = m.reapReason(info)
		} else {
			metrics.HeartbeatAgeSeconds.WithLabelValues(strconv.FormatUint(uint64(id), 10)).Set(time.Since(info.LastHeartbeat).Seconds())
		}
	}
	m.mu.Unlock()

	for _, id := range dead {
		_ = m.ipc.RemoveKitchenChannel(id)
		m.mu.Lock()
		delete(m.kitchens, id)
		m.mu.Unlock()
		metrics.KitchensReapedTotal.WithLabelValues(reasons[id]).Inc()
		metrics.HeartbeatAgeSeconds.DeleteLabelValues(strconv.FormatUint(uint64(id), 10))
		logger.Info("kitchen reaped", zap.Uint32("kitchen_id", id), zap.String("reason", reasons[id]))
	}

	if len(dead) > 0 {
		m.refreshGauges()
	}
}

func (m *Manager) handlePizzaCompleted(ctx context.Context, msg wire.Message) error {
	completion, err := wire.UnpackCompletion(wire.BufferFromBytes(msg.Payload))
	if err != nil {
		return fmt.Errorf("manager: decode completion: %w", err)
	}

	m.mu.Lock()
	info, ok := m.kitchens[completion.Pizza.KitchenID]
	if !ok {
		m.mu.Unlock()
		return nil // completion from an already-reaped kitchen; nothing to update
	}
	if info.PendingPizzas > 0 {
		info.PendingPizzas--
	}
	info.LastHeartbeat = time.Now()
	metrics.PizzasCompletedTotal.Inc()
	m.refreshGaugesLocked()
	m.mu.Unlock()

	logger.Info("pizza completed",
		zap.String("type", completion.Pizza.Type.String()),
		zap.String("size", completion.Pizza.Size.String()),
		zap.Uint32("kitchen_id", completion.Pizza.KitchenID),
	)
	return nil
}

func (m *Manager) handleStatusResponse(ctx context.Context, msg wire.Message) error {
	status, err := wire.UnpackStatus(wire.BufferFromBytes(msg.Payload))
	if err != nil {
		return fmt.Errorf("manager: decode status: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.kitchens[status.KitchenID]
	if !ok {
		return nil
	}
	info.LastKnownStatus = status
	info.HasStatus = true
	info.PendingPizzas = status.PendingPizzas
	info.LastHeartbeat = time.Now()
	return nil
}

func (m *Manager) handleHeartbeat(ctx context.Context, msg wire.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if info, ok := m.kitchens[msg.SenderID]; ok {
		info.LastHeartbeat = time.Now()
		metrics.HeartbeatAgeSeconds.WithLabelValues(strconv.FormatUint(uint64(msg.SenderID), 10)).Set(0)
	}
	return nil
}

// DisplayStatus prints the kitchen table from last-known status, then
// asynchronously requests a fresh status from each kitchen so the
// *next* call reflects current state.
func (m *Manager) DisplayStatus(ctx context.Context, print func(rows []StatusRow)) {
	m.mu.Lock()
	ids := make([]uint32, 0, len(m.kitchens))
	for id := range m.kitchens {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([]StatusRow, 0, len(ids))
	for _, id := range ids {
		info := m.kitchens[id]
		rows = append(rows, StatusRow{
			KitchenID: id,
			Busy:      info.LastKnownStatus.BusyCooks,
			Total:     info.LastKnownStatus.TotalCooks,
			Pending:   info.PendingPizzas,
			Active:    m.isAliveLocked(info),
		})
	}
	m.mu.Unlock()

	print(rows)

	req := wire.Message{Type: wire.StatusRequest, Timestamp: uint32(time.Now().Unix())}
	_, _ = m.ipc.BroadcastToKitchens(ctx, req)
}

// StatusRow is one line of the kitchen status table.
type StatusRow struct {
	KitchenID uint32
	Busy      uint32
	Total     uint32
	Pending   uint32
	Active    bool
}

// Cleanup broadcasts Shutdown to every kitchen and waits for each
// child process to exit, then clears the kitchen table and stops
// listening.
func (m *Manager) Cleanup(ctx context.Context) {
	_, _ = m.ipc.BroadcastToKitchens(ctx, wire.Message{Type: wire.Shutdown, Timestamp: uint32(time.Now().Unix())})

	m.mu.Lock()
	handles := make([]process.Handle, 0, len(m.kitchens))
	for id, info := range m.kitchens {
		if info.Handle != nil {
			handles = append(handles, info.Handle)
		}
		metrics.HeartbeatAgeSeconds.DeleteLabelValues(strconv.FormatUint(uint64(id), 10))
	}
	m.kitchens = make(map[uint32]*KitchenInfo)
	m.refreshGaugesLocked()
	m.mu.Unlock()

	for _, h := range handles {
		_ = h.Terminate(ctx)
	}

	_ = m.ipc.Close(ctx)
}
