package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"libraryhub/internal/notification"
)

// ErrNotConnected is returned by Subscribe and Send while no broker
// connection is established.
var ErrNotConnected = errors.New("realtime: not connected")

// State of the broker connection as seen by the Manager.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Manager owns the single broker connection of the application. It
// multiplexes per-user subscriptions over that connection and dispatches
// inbound messages to registered handlers.
type Manager struct {
	transport Transport
	logger    *slog.Logger

	mu                sync.RWMutex
	state             State
	active            bool // transport activated and not yet deactivated by us
	connected         bool
	reconnectAttempts int
	subscriptions     map[string]Subscription // destination -> subscription; nil value = being set up
	handlers          handlerTable
}

// constructor for Manager
func NewManager(transport Transport, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		transport:     transport,
		logger:        logger,
		subscriptions: make(map[string]Subscription),
	}
}

// Connect activates the transport for userID. It returns immediately; the
// handshake outcome is reported through onConnect / onError, which may fire
// again on every automatic reconnect. Calling Connect while a transport is
// already active only logs.
func (m *Manager) Connect(userID int64, onConnect func(), onError func(error)) {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		m.logger.Info("websocket_already_connected", "user_id", userID)
		return
	}
	m.active = true
	m.state = Connecting
	m.mu.Unlock()

	m.logger.Info("websocket_connecting", "user_id", userID)

	events := TransportEvents{
		OnConnect: func() {
			m.handleConnect(userID, onConnect)
		},
		OnError: func(err error) {
			m.handleFailure("websocket_error", err, onError)
		},
		OnDisconnect: func(err error) {
			m.handleFailure("websocket_closed", err, onError)
		},
		OnReconnect: func() {
			m.handleReconnect(userID)
		},
	}

	if err := m.transport.Activate(events); err != nil {
		m.mu.Lock()
		m.active = false
		m.connected = false
		m.state = Disconnected
		m.mu.Unlock()

		m.logger.Error("websocket_activate_failed", "user_id", userID, "error", err)
		if onError != nil {
			onError(fmt.Errorf("activate transport: %w", err))
		}
	}
}

func (m *Manager) handleConnect(userID int64, onConnect func()) {
	m.mu.Lock()
	if !m.active {
		// handshake completed after Disconnect
		m.mu.Unlock()
		return
	}
	m.connected = true
	m.state = Connected
	m.reconnectAttempts = 0
	m.mu.Unlock()

	m.logger.Info("websocket_connected", "user_id", userID)

	var onMessage Handler
	if onConnect != nil {
		onMessage = func(*notification.Notification) { onConnect() }
	}
	_ = m.Subscribe(userID, onMessage) // failure already logged

	if onConnect != nil {
		onConnect()
	}
}

func (m *Manager) handleFailure(event string, err error, onError func(error)) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.connected = false
	m.state = Disconnected
	m.reconnectAttempts++
	attempts := m.reconnectAttempts
	// a dropped transport loses its broker subscriptions
	m.subscriptions = make(map[string]Subscription)
	m.mu.Unlock()

	m.logger.Warn(event, "error", err, "reconnect_attempts", attempts)
	if onError != nil {
		onError(err)
	}
}

// handleReconnect marks a scheduled retry as in progress.
func (m *Manager) handleReconnect(userID int64) {
	m.mu.Lock()
	if !m.active || m.connected {
		m.mu.Unlock()
		return
	}
	m.state = Connecting
	attempts := m.reconnectAttempts
	m.mu.Unlock()

	m.logger.Info("websocket_reconnecting", "user_id", userID, "reconnect_attempts", attempts)
}

// Subscribe listens on the per-user queue of userID. Every parsed message is
// passed to all KindNotification handlers and then to onMessage. Subscribing
// twice to the same queue is a no-op.
func (m *Manager) Subscribe(userID int64, onMessage Handler) error {
	if !m.IsConnected() {
		m.logger.Error("subscribe_without_connection", "user_id", userID)
		return ErrNotConnected
	}

	destination := UserDestination(userID)

	m.mu.Lock()
	if _, exists := m.subscriptions[destination]; exists {
		m.mu.Unlock()
		m.logger.Debug("subscription_exists", "destination", destination)
		return nil
	}
	m.subscriptions[destination] = nil
	m.mu.Unlock()

	sub, err := m.transport.Subscribe(destination, func(body []byte) {
		m.dispatch(body, onMessage)
	})
	if err != nil {
		m.mu.Lock()
		delete(m.subscriptions, destination)
		m.mu.Unlock()
		m.logger.Error("subscribe_failed", "destination", destination, "error", err)
		return fmt.Errorf("subscribe %s: %w", destination, err)
	}

	m.mu.Lock()
	_, pending := m.subscriptions[destination]
	if pending {
		m.subscriptions[destination] = sub
	}
	m.mu.Unlock()

	if !pending {
		// the connection dropped or was closed while subscribing
		if err := sub.Unsubscribe(); err != nil {
			m.logger.Debug("unsubscribe_failed", "destination", destination, "error", err)
		}
		m.logger.Warn("subscription_discarded", "destination", destination)
		return ErrNotConnected
	}

	m.logger.Info("subscribed", "destination", destination, "subscription_id", sub.ID())
	return nil
}

// dispatch parses one inbound payload and fans it out. Malformed payloads
// are logged and dropped.
func (m *Manager) dispatch(body []byte, onMessage Handler) {
	n, err := notification.Parse(body)
	if err != nil {
		m.logger.Error("notification_parse_failed", "error", err, "size", len(body))
		return
	}

	m.mu.RLock()
	handlers := append([]Handler(nil), m.handlers[KindNotification]...)
	m.mu.RUnlock()

	for _, h := range handlers {
		h(n)
	}
	if onMessage != nil {
		onMessage(n)
	}
}

// OnMessage registers handler for kind. Handlers accumulate; all of them fire
// in registration order.
func (m *Manager) OnMessage(kind MessageKind, handler Handler) {
	if !kind.valid() {
		m.logger.Error("unknown_message_kind", "kind", kind.String())
		return
	}
	if handler == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[kind] = append(m.handlers[kind], handler)
}

// Send publishes body as JSON to destination.
func (m *Manager) Send(destination string, body any) error {
	if !m.IsConnected() {
		m.logger.Error("send_without_connection", "destination", destination)
		return ErrNotConnected
	}

	data, err := json.Marshal(body)
	if err != nil {
		m.logger.Error("send_marshal_failed", "destination", destination, "error", err)
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := m.transport.Publish(destination, data); err != nil {
		m.logger.Error("send_failed", "destination", destination, "error", err)
		return fmt.Errorf("publish %s: %w", destination, err)
	}
	return nil
}

// MarkAsRead tells the broker that notificationID was read on this client.
func (m *Manager) MarkAsRead(notificationID int64) error {
	return m.Send(MarkReadDestination, MarkReadCommand{NotificationID: notificationID})
}

// Disconnect deactivates the transport and forgets every subscription and
// handler, from any state. Safe to call when already disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	wasActive := m.active
	m.active = false
	m.connected = false
	m.state = Disconnected
	m.subscriptions = make(map[string]Subscription)
	m.handlers = handlerTable{}
	m.mu.Unlock()

	if !wasActive {
		return
	}

	if err := m.transport.Deactivate(); err != nil {
		m.logger.Warn("websocket_deactivate_failed", "error", err)
	}
	m.logger.Info("websocket_disconnected")
}

// IsConnected reports whether the manager believes it is connected and the
// transport agrees.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	connected := m.connected
	m.mu.RUnlock()
	return connected && m.transport.Connected()
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// ReconnectAttempts counts failures since the last successful handshake.
func (m *Manager) ReconnectAttempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reconnectAttempts
}
