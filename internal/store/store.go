package store

import (
	"context"
	"log/slog"
	"sync"

	"libraryhub/internal/notification"
	"libraryhub/internal/realtime"
)

// NotificationAPI is the subset of the REST client the store calls.
type NotificationAPI interface {
	GetUserNotifications(ctx context.Context, userID int64, page, size int) (*notification.Page, error)
	GetNotificationsByType(ctx context.Context, userID int64, t notification.Type, page, size int) (*notification.Page, error)
	MarkAsRead(ctx context.Context, notificationID int64) error
	MarkAllAsRead(ctx context.Context, userID int64) error
	DeleteNotification(ctx context.Context, notificationID int64) error
	DeleteAllNotifications(ctx context.Context, userID int64) error
}

// Connector is the push side of the store, implemented by *realtime.Manager.
type Connector interface {
	Connect(userID int64, onConnect func(), onError func(error))
	Disconnect()
	OnMessage(kind realtime.MessageKind, handler realtime.Handler)
	IsConnected() bool
	MarkAsRead(notificationID int64) error
}

// Toaster raises transient user-facing alerts.
type Toaster interface {
	Info(msg string)
	Warning(msg string)
}

// State is a snapshot of the store. Notifications is a copy and may be
// modified freely by the caller.
type State struct {
	Notifications        []notification.Notification `json:"notifications"`
	UnreadCount          int                         `json:"unreadCount"`
	IsLoading            bool                        `json:"isLoading"`
	Error                string                      `json:"error,omitempty"`
	IsWebSocketConnected bool                        `json:"isWebSocketConnected"`
	Version              uint64                      `json:"version"` // grows with every change
}

// Store is the single source of truth for notification state. It merges
// REST history with pushed notifications, newest first, keyed by id.
type Store struct {
	api     NotificationAPI
	conn    Connector
	toaster Toaster
	logger  *slog.Logger

	mu            sync.RWMutex
	notifications []notification.Notification
	unreadCount   int
	isLoading     bool
	errMsg        string
	wsConnected   bool
	pushWired     bool // notification handler registered on conn
	version       uint64

	// notifyMu orders delivery; delivered is the newest version handed out
	notifyMu  sync.Mutex
	delivered uint64

	listenerMu sync.Mutex
	listeners  map[int]func(State)
	nextID     int
}

// constructor for Store; conn and toaster may be nil
func New(api NotificationAPI, conn Connector, toaster Toaster, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		api:           api,
		conn:          conn,
		toaster:       toaster,
		logger:        logger,
		notifications: []notification.Notification{},
		listeners:     make(map[int]func(State)),
	}
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	return State{
		Notifications:        append([]notification.Notification{}, s.notifications...),
		UnreadCount:          s.unreadCount,
		IsLoading:            s.isLoading,
		Error:                s.errMsg,
		IsWebSocketConnected: s.wsConnected,
		Version:              s.version,
	}
}

// Notifications returns a copy of the list, newest first.
func (s *Store) Notifications() []notification.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]notification.Notification{}, s.notifications...)
}

// UnreadCount returns the number of unread notifications.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unreadCount
}

func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoading
}

// Error returns the message of the last failed remote operation, or "".
func (s *Store) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

func (s *Store) IsWebSocketConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wsConnected
}

// Subscribe registers fn to receive a snapshot after every state change.
// Snapshots arrive in version order; one superseded by a concurrent change
// is skipped. fn must not mutate the store. The returned func removes the
// listener.
func (s *Store) Subscribe(fn func(State)) func() {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenerMu.Unlock()

	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

// update runs fn under the write lock and then notifies listeners.
func (s *Store) update(fn func()) {
	s.mu.Lock()
	fn()
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if snap.Version <= s.delivered {
		return
	}
	s.delivered = snap.Version

	s.listenerMu.Lock()
	listeners := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenerMu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// Reset disconnects the push connection and clears all state, as on logout.
func (s *Store) Reset() {
	s.DisconnectWebSocket()
	s.update(func() {
		s.notifications = []notification.Notification{}
		s.unreadCount = 0
		s.isLoading = false
		s.errMsg = ""
	})
	s.logger.Info("notification_store_reset")
}
