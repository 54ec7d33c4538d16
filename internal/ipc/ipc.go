// Package ipc is the messaging layer above internal/queue: it names
// reception's and each kitchen's inbox, registers per-Kind handlers,
// and runs a single listener goroutine per endpoint that polls its
// inbox with a bounded timeout, isolating each dispatched handler from
// panics so one misbehaving message never stops the loop.
package ipc

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"plazza/internal/config"
	"plazza/internal/queue"
	"plazza/internal/wire"
	"plazza/pkg/logger"
)

// Role distinguishes reception's endpoint from a kitchen's endpoint;
// only the naming of inbound/outbound queues differs between them.
type Role int

const (
	RoleReception Role = iota
	RoleKitchen
)

// Handler processes one received message. A handler error is logged
// and otherwise swallowed: one bad message must never take down the
// listener loop.
type Handler func(ctx context.Context, msg wire.Message) error

const receptionInboxName = "reception_inbox"

func kitchenInboxName(kitchenID uint32) string {
	return fmt.Sprintf("kitchen_%d_inbox", kitchenID)
}

// Manager owns one endpoint's inbox plus however many outbound queues
// it has opened to talk to peers (reception talks to every kitchen;
// a kitchen only ever talks back to reception).
type Manager struct {
	role      Role
	client    queue.Cmdable
	kitchenID uint32 // meaningful only when role == RoleKitchen

	inbox *queue.Queue

	mu       sync.Mutex
	handlers map[wire.Kind]Handler
	peers    map[string]*queue.Queue // outbound queues, keyed by name

	listening listenState
}

// listenState tracks the single listener goroutine's cancel func and
// exit signal so StartListening/StopListening are safe to call from
// any goroutine, and so StopListening can join the goroutine instead
// of merely requesting its exit.
type listenState struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	done    chan struct{}
}

// NewReceptionManager creates the reception-side IPC endpoint and
// creates (owns) reception_inbox.
func NewReceptionManager(ctx context.Context, client queue.Cmdable) (*Manager, error) {
	inbox, err := queue.Create(ctx, client, receptionInboxName, config.MaxMessages, config.MaxMessageSize)
	if err != nil {
		return nil, err
	}
	return &Manager{
		role:     RoleReception,
		client:   client,
		inbox:    inbox,
		handlers: make(map[wire.Kind]Handler),
		peers:    make(map[string]*queue.Queue),
	}, nil
}

// NewKitchenManager creates a kitchen-side IPC endpoint: it creates
// (owns) its own inbox and opens a non-owning handle to reception's.
func NewKitchenManager(ctx context.Context, client queue.Cmdable, kitchenID uint32) (*Manager, error) {
	name := kitchenInboxName(kitchenID)
	inbox, err := queue.Create(ctx, client, name, config.MaxMessages, config.MaxMessageSize)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		role:      RoleKitchen,
		client:    client,
		kitchenID: kitchenID,
		inbox:     inbox,
		handlers:  make(map[wire.Kind]Handler),
		peers:     make(map[string]*queue.Queue),
	}
	m.peers[receptionInboxName] = queue.Open(client, receptionInboxName, config.MaxMessages, config.MaxMessageSize)
	return m, nil
}

// CreateKitchenChannel opens an outbound handle to a kitchen's inbox.
// Reception calls this once per spawned kitchen. A kitchen-role Manager
// has no peer list of other kitchens to manage and rejects this call.
func (m *Manager) CreateKitchenChannel(kitchenID uint32) error {
	if m.role != RoleReception {
		return fmt.Errorf("%w: CreateKitchenChannel is reception-only", ErrIPC)
	}
	name := kitchenInboxName(kitchenID)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers[name] = queue.Open(m.client, name, config.MaxMessages, config.MaxMessageSize)
	return nil
}

// RemoveKitchenChannel drops the outbound handle for a reaped kitchen.
// It does not delete the kitchen's inbox key: the kitchen process owns
// that and removes it itself on shutdown. Reception-only.
func (m *Manager) RemoveKitchenChannel(kitchenID uint32) error {
	if m.role != RoleReception {
		return fmt.Errorf("%w: RemoveKitchenChannel is reception-only", ErrIPC)
	}
	name := kitchenInboxName(kitchenID)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.peers, name)
	return nil
}

// SendToKitchen serializes and enqueues msg onto a specific kitchen's
// inbox. Reception must have called CreateKitchenChannel first.
// Reception-only: a kitchen never addresses another kitchen directly.
func (m *Manager) SendToKitchen(ctx context.Context, kitchenID uint32, msg wire.Message) error {
	if m.role != RoleReception {
		return fmt.Errorf("%w: SendToKitchen is reception-only", ErrIPC)
	}
	name := kitchenInboxName(kitchenID)
	m.mu.Lock()
	peer, ok := m.peers[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("ipc: no channel open to kitchen %d", kitchenID)
	}
	return peer.Send(ctx, msg.Serialize(), 0)
}

// BroadcastToKitchens sends msg to every kitchen with an open channel.
// Errors are collected per-kitchen rather than aborting the broadcast.
// Reception-only.
func (m *Manager) BroadcastToKitchens(ctx context.Context, msg wire.Message) (map[uint32]error, error) {
	if m.role != RoleReception {
		return nil, fmt.Errorf("%w: BroadcastToKitchens is reception-only", ErrIPC)
	}

	m.mu.Lock()
	targets := make([]*queue.Queue, 0, len(m.peers))
	for _, peer := range m.peers {
		targets = append(targets, peer)
	}
	m.mu.Unlock()

	errs := make(map[uint32]error)
	payload := msg.Serialize()
	for _, peer := range targets {
		if err := peer.Send(ctx, payload, 0); err != nil {
			errs[m.kitchenIDFromInboxName(peer.Name())] = err
		}
	}
	if len(errs) == 0 {
		return nil, nil
	}
	return errs, nil
}

func (m *Manager) kitchenIDFromInboxName(name string) uint32 {
	var id uint32
	_, _ = fmt.Sscanf(name, "kitchen_%d_inbox", &id)
	return id
}

// SendToReception serializes and enqueues msg onto reception's inbox.
// Only meaningful for a kitchen-role Manager.
func (m *Manager) SendToReception(ctx context.Context, msg wire.Message) error {
	m.mu.Lock()
	peer, ok := m.peers[receptionInboxName]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("ipc: not connected to reception")
	}
	return peer.Send(ctx, msg.Serialize(), 0)
}

// SetHandler registers (or replaces) the handler for a message kind.
func (m *Manager) SetHandler(kind wire.Kind, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[kind] = h
}

// StartListening launches the single listener goroutine that polls
// this endpoint's inbox every config.PollInterval and dispatches to
// the registered handler for each message's Kind. It returns
// immediately; call StopListening to stop the loop.
func (m *Manager) StartListening(ctx context.Context) {
	listenCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.listening.mu.Lock()
	m.listening.cancel = cancel
	m.listening.running = true
	m.listening.done = done
	m.listening.mu.Unlock()

	go func() {
		defer close(done)
		m.listenLoop(listenCtx)
	}()
}

// StopListening cancels the listener goroutine and blocks until it has
// actually exited, so a caller that closes the inbox right after
// StopListening returns can never race listenLoop's in-flight receive
// against that close. Safe to call more than once or when no listener
// is running.
func (m *Manager) StopListening() {
	m.listening.mu.Lock()
	cancel := m.listening.cancel
	done := m.listening.done
	running := m.listening.running
	m.listening.running = false
	m.listening.mu.Unlock()

	if running && cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Manager) listenLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, err := m.inbox.TimedReceive(ctx, config.PollInterval)
		if err != nil {
			logger.Warn("ipc: receive failed", zap.Error(err))
			continue
		}
		if raw == nil {
			continue // poll interval elapsed with nothing queued
		}

		msg, err := wire.Deserialize(*raw)
		if err != nil {
			logger.Warn("ipc: dropping malformed message", zap.Error(err))
			continue
		}

		m.dispatch(ctx, msg)
	}
}

// dispatch runs the registered handler for msg.Type, isolating any
// panic or error so one misbehaving handler cannot stop the listener.
func (m *Manager) dispatch(ctx context.Context, msg wire.Message) {
	m.mu.Lock()
	h, ok := m.handlers[msg.Type]
	m.mu.Unlock()
	if !ok {
		logger.Debug("ipc: no handler registered", zap.String("kind", msg.Type.String()))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("ipc: handler panicked",
				zap.String("kind", msg.Type.String()),
				zap.Any("panic", r),
			)
		}
	}()

	if err := h(ctx, msg); err != nil {
		logger.Error("ipc: handler returned error",
			zap.String("kind", msg.Type.String()),
			zap.Error(err),
		)
	}
}

// Close releases this endpoint's owned inbox.
func (m *Manager) Close(ctx context.Context) error {
	m.StopListening()
	return m.inbox.Close(ctx)
}
