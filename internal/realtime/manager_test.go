package realtime

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryhub/internal/notification"
)

// fakeTransport records calls and lets tests drive the lifecycle by hand.
type fakeTransport struct {
	mu            sync.Mutex
	events        TransportEvents
	activations   int
	deactivations int
	connected     bool
	activateErr   error
	subs          map[string]func([]byte)
	subscribes    int
	unsubscribes  int
	published     []publishedMessage
	duringSub     func() // runs inside Subscribe, after the broker accepted it
}

type publishedMessage struct {
	destination string
	body        []byte
}

type fakeSubscription struct {
	id, destination string
	transport       *fakeTransport
}

func (s fakeSubscription) ID() string          { return s.id }
func (s fakeSubscription) Destination() string { return s.destination }

func (s fakeSubscription) Unsubscribe() error {
	s.transport.mu.Lock()
	defer s.transport.mu.Unlock()
	s.transport.unsubscribes++
	delete(s.transport.subs, s.destination)
	return nil
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{subs: make(map[string]func([]byte))}
}

func (f *fakeTransport) Activate(events TransportEvents) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activations++
	f.events = events
	return f.activateErr
}

func (f *fakeTransport) Deactivate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deactivations++
	f.connected = false
	f.subs = make(map[string]func([]byte))
	return nil
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Subscribe(destination string, fn func([]byte)) (Subscription, error) {
	f.mu.Lock()
	f.subscribes++
	f.subs[destination] = fn
	hook := f.duringSub
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return fakeSubscription{id: "sub-" + destination, destination: destination, transport: f}, nil
}

func (f *fakeTransport) Publish(destination string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{destination, body})
	return nil
}

// handshake simulates a successful (re)connect.
func (f *fakeTransport) handshake() {
	f.mu.Lock()
	f.connected = true
	onConnect := f.events.OnConnect
	f.mu.Unlock()
	onConnect()
}

// drop simulates the connection dying.
func (f *fakeTransport) drop(err error) {
	f.mu.Lock()
	f.connected = false
	f.subs = make(map[string]func([]byte))
	onDisconnect := f.events.OnDisconnect
	f.mu.Unlock()
	onDisconnect(err)
}

// retry simulates the transport starting a scheduled reconnect.
func (f *fakeTransport) retry() {
	f.mu.Lock()
	onReconnect := f.events.OnReconnect
	f.mu.Unlock()
	onReconnect()
}

func (f *fakeTransport) deliver(destination string, body string) bool {
	f.mu.Lock()
	fn, ok := f.subs[destination]
	f.mu.Unlock()
	if ok {
		fn([]byte(body))
	}
	return ok
}

func (f *fakeTransport) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func connectedManager(t *testing.T, userID int64) (*Manager, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	m := NewManager(ft, quietLogger())
	m.Connect(userID, nil, nil)
	ft.handshake()
	require.True(t, m.IsConnected())
	return m, ft
}

const bookPayload = `{"id":1,"notificationType":"NEW_BOOK","title":"Dune","message":"Now on the shelf","isRead":false}`

func TestConnect_SecondCallDoesNotOpenSecondTransport(t *testing.T) {
	ft := newFakeTransport()
	m := NewManager(ft, quietLogger())

	onConnectCalls := 0
	onConnect := func() { onConnectCalls++ }

	m.Connect(42, onConnect, nil)
	m.Connect(42, onConnect, nil)
	assert.Equal(t, Connecting, m.State())

	ft.handshake()

	assert.Equal(t, 1, ft.activations)
	assert.Equal(t, 1, onConnectCalls)
	assert.Equal(t, Connected, m.State())
	assert.Equal(t, 1, ft.subscribeCount())
}

func TestConnect_ActivateFailureReportsError(t *testing.T) {
	ft := newFakeTransport()
	ft.activateErr = errors.New("dial refused")
	m := NewManager(ft, quietLogger())

	var got error
	m.Connect(1, nil, func(err error) { got = err })

	require.Error(t, got)
	assert.ErrorIs(t, got, ft.activateErr)
	assert.False(t, m.IsConnected())
	assert.Equal(t, Disconnected, m.State())

	// a later attempt may activate again
	ft.activateErr = nil
	m.Connect(1, nil, nil)
	assert.Equal(t, 2, ft.activations)
}

func TestSubscribe_RequiresConnection(t *testing.T) {
	ft := newFakeTransport()
	m := NewManager(ft, quietLogger())

	err := m.Subscribe(42, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Zero(t, ft.subscribeCount())

	// still connecting
	m.Connect(42, nil, nil)
	assert.ErrorIs(t, m.Subscribe(42, nil), ErrNotConnected)
}

func TestSubscribe_TwiceDeliversOnce(t *testing.T) {
	m, ft := connectedManager(t, 42)

	adds := 0
	m.OnMessage(KindNotification, func(*notification.Notification) { adds++ })

	require.NoError(t, m.Subscribe(42, nil))
	require.NoError(t, m.Subscribe(42, nil))
	assert.Equal(t, 1, ft.subscribeCount())

	require.True(t, ft.deliver(UserDestination(42), bookPayload))
	assert.Equal(t, 1, adds)
}

func TestDispatch_HandlersInOrderThenOnMessage(t *testing.T) {
	ft := newFakeTransport()
	m := NewManager(ft, quietLogger())
	m.Connect(7, nil, nil)
	ft.handshake()

	// re-subscribe on another user's queue to exercise onMessage
	var order []string
	var seen []*notification.Notification
	m.OnMessage(KindNotification, func(n *notification.Notification) {
		order = append(order, "first")
		seen = append(seen, n)
	})
	m.OnMessage(KindNotification, func(n *notification.Notification) {
		order = append(order, "second")
		seen = append(seen, n)
	})
	require.NoError(t, m.Subscribe(8, func(n *notification.Notification) {
		order = append(order, "onMessage")
		seen = append(seen, n)
	}))

	require.True(t, ft.deliver(UserDestination(8), bookPayload))

	assert.Equal(t, []string{"first", "second", "onMessage"}, order)
	require.Len(t, seen, 3)
	assert.Same(t, seen[0], seen[1])
	assert.Same(t, seen[1], seen[2])
	assert.Equal(t, int64(1), seen[0].ID)
}

func TestDispatch_ConnectFlowReaffirmsOnConnect(t *testing.T) {
	ft := newFakeTransport()
	m := NewManager(ft, quietLogger())

	onConnectCalls := 0
	m.Connect(3, func() { onConnectCalls++ }, nil)
	ft.handshake()
	require.Equal(t, 1, onConnectCalls)

	ft.deliver(UserDestination(3), bookPayload)
	assert.Equal(t, 2, onConnectCalls)
}

func TestDispatch_MalformedPayloadDropped(t *testing.T) {
	m, ft := connectedManager(t, 42)

	calls := 0
	m.OnMessage(KindNotification, func(*notification.Notification) { calls++ })

	require.True(t, ft.deliver(UserDestination(42), "{not json"))
	require.True(t, ft.deliver(UserDestination(42), ""))
	assert.Zero(t, calls)

	require.True(t, ft.deliver(UserDestination(42), bookPayload))
	assert.Equal(t, 1, calls)
}

func TestOnMessage_UnknownKindIgnored(t *testing.T) {
	m, ft := connectedManager(t, 42)

	calls := 0
	m.OnMessage(MessageKind(99), func(*notification.Notification) { calls++ })
	m.OnMessage(KindNotification, nil)

	ft.deliver(UserDestination(42), bookPayload)
	assert.Zero(t, calls)
	assert.Equal(t, "MessageKind(99)", MessageKind(99).String())
	assert.Equal(t, "notification", KindNotification.String())
}

func TestSend(t *testing.T) {
	ft := newFakeTransport()
	m := NewManager(ft, quietLogger())

	assert.ErrorIs(t, m.Send("/app/x", map[string]int{"a": 1}), ErrNotConnected)
	assert.ErrorIs(t, m.MarkAsRead(5), ErrNotConnected)
	assert.Empty(t, ft.published)

	m.Connect(42, nil, nil)
	ft.handshake()

	require.NoError(t, m.MarkAsRead(5))
	require.Len(t, ft.published, 1)
	assert.Equal(t, MarkReadDestination, ft.published[0].destination)

	var cmd map[string]int64
	require.NoError(t, json.Unmarshal(ft.published[0].body, &cmd))
	assert.Equal(t, map[string]int64{"notificationId": 5}, cmd)

	assert.Error(t, m.Send("/app/x", make(chan int)))
}

func TestDisconnect_TwiceIsSafe(t *testing.T) {
	m, ft := connectedManager(t, 42)

	calls := 0
	m.OnMessage(KindNotification, func(*notification.Notification) { calls++ })

	m.Disconnect()
	assert.NotPanics(t, m.Disconnect)

	assert.False(t, m.IsConnected())
	assert.Equal(t, Disconnected, m.State())
	assert.Equal(t, 1, ft.deactivations)

	// handlers were cleared; a fresh connect does not resurrect them
	m.Connect(42, nil, nil)
	ft.handshake()
	ft.deliver(UserDestination(42), bookPayload)
	assert.Zero(t, calls)
}

func TestDisconnect_WhenNeverConnected(t *testing.T) {
	ft := newFakeTransport()
	m := NewManager(ft, quietLogger())

	assert.NotPanics(t, m.Disconnect)
	assert.Zero(t, ft.deactivations)
}

func TestReconnect_ResubscribesOnce(t *testing.T) {
	ft := newFakeTransport()
	m := NewManager(ft, quietLogger())

	var errs []error
	connects := 0
	m.Connect(42, func() { connects++ }, func(err error) { errs = append(errs, err) })
	ft.handshake()

	calls := 0
	m.OnMessage(KindNotification, func(*notification.Notification) { calls++ })

	ft.drop(errors.New("connection reset"))
	assert.False(t, m.IsConnected())
	assert.Equal(t, 1, m.ReconnectAttempts())
	require.Len(t, errs, 1)

	ft.handshake()
	assert.True(t, m.IsConnected())
	assert.Zero(t, m.ReconnectAttempts())
	assert.Equal(t, 2, connects)
	assert.Equal(t, 2, ft.subscribeCount())

	ft.deliver(UserDestination(42), bookPayload)
	assert.Equal(t, 1, calls)
}

func TestIsConnected_StaleFlag(t *testing.T) {
	m, ft := connectedManager(t, 42)

	ft.mu.Lock()
	ft.connected = false
	ft.mu.Unlock()

	assert.False(t, m.IsConnected())
	assert.ErrorIs(t, m.Send("/app/x", "ping"), ErrNotConnected)
}

func TestLateHandshakeAfterDisconnectIgnored(t *testing.T) {
	ft := newFakeTransport()
	m := NewManager(ft, quietLogger())

	connects := 0
	m.Connect(42, func() { connects++ }, nil)
	m.Disconnect()
	ft.handshake()

	assert.Zero(t, connects)
	assert.Equal(t, Disconnected, m.State())
}

func TestReconnect_StateFollowsRetry(t *testing.T) {
	ft := newFakeTransport()
	m := NewManager(ft, quietLogger())
	m.Connect(42, nil, nil)
	ft.handshake()
	require.Equal(t, Connected, m.State())

	ft.drop(errors.New("connection reset"))
	assert.Equal(t, Disconnected, m.State())

	ft.retry()
	assert.Equal(t, Connecting, m.State())
	assert.Equal(t, 1, m.ReconnectAttempts())

	ft.handshake()
	assert.Equal(t, Connected, m.State())

	// a retry racing a deliberate disconnect stays disconnected
	m.Disconnect()
	ft.retry()
	assert.Equal(t, Disconnected, m.State())
}

func TestDisconnect_AfterActivateFailureClearsHandlers(t *testing.T) {
	ft := newFakeTransport()
	ft.activateErr = errors.New("dial refused")
	m := NewManager(ft, quietLogger())

	calls := 0
	m.OnMessage(KindNotification, func(*notification.Notification) { calls++ })
	m.Connect(42, nil, nil)
	require.Equal(t, Disconnected, m.State())

	m.Disconnect()
	assert.Zero(t, ft.deactivations)

	ft.activateErr = nil
	m.OnMessage(KindNotification, func(*notification.Notification) { calls++ })
	m.Connect(42, nil, nil)
	ft.handshake()

	require.True(t, ft.deliver(UserDestination(42), bookPayload))
	assert.Equal(t, 1, calls)
}

func TestSubscribe_DropWhileSubscribingDiscardsSubscription(t *testing.T) {
	m, ft := connectedManager(t, 42)

	ft.duringSub = func() { ft.drop(errors.New("connection reset")) }
	err := m.Subscribe(43, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, 1, ft.unsubscribes)

	// the registry holds nothing for the dead connection
	ft.duringSub = nil
	ft.retry()
	ft.handshake()
	assert.NoError(t, m.Subscribe(43, nil))
	assert.Equal(t, 4, ft.subscribeCount())
}
