package stompws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"libraryhub/internal/realtime"
)

const (
	WriteWait        = 10 * time.Second // max time to write a frame to the broker
	HandshakeTimeout = 10 * time.Second // max time to wait for CONNECTED
	MaxFrameSize     = 1 << 20          // largest inbound websocket message accepted

	// heartbeatGrace multiplies the negotiated incoming heartbeat before the
	// connection is declared dead
	heartbeatGrace = 2
)

var (
	ErrNotConnected  = errors.New("stompws: not connected")
	ErrAlreadyActive = errors.New("stompws: already active")
)

// BrokerError is an ERROR frame sent by the broker.
type BrokerError struct {
	Message string
	Body    string
}

func (e *BrokerError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("broker error: %s: %s", e.Message, e.Body)
	}
	return "broker error: " + e.Message
}

// Options configures a Client.
type Options struct {
	URL    string      // ws:// or wss:// endpoint of the broker
	Header http.Header // sent with the websocket upgrade, e.g. Authorization
	Host   string      // STOMP virtual host; defaults to the URL host
	Policy realtime.ReconnectPolicy
	Dialer *websocket.Dialer
	Logger *slog.Logger
}

// Client is a realtime.Transport speaking STOMP 1.2 over a websocket. It
// reconnects after a fixed delay and exchanges heartbeats in both
// directions.
type Client struct {
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
	conn   *websocket.Conn
	subs   map[string]*subscription // subscription id -> subscription

	writeMu   sync.Mutex
	connected atomic.Bool
}

var _ realtime.Transport = (*Client)(nil)

// constructor for Client
func New(opts Options) *Client {
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: HandshakeTimeout,
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Host == "" {
		if u, err := url.Parse(opts.URL); err == nil {
			opts.Host = u.Hostname()
		}
	}
	return &Client{
		opts:   opts,
		logger: opts.Logger,
		subs:   make(map[string]*subscription),
	}
}

// Activate starts the connect loop in the background.
func (c *Client) Activate(events realtime.TransportEvents) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return ErrAlreadyActive
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.active = true
	c.cancel = cancel

	go c.run(ctx, events)
	return nil
}

// Deactivate stops reconnecting and closes the current connection after a
// best-effort DISCONNECT. It does not wait for the background loop, so it is
// safe to call from inside a subscription callback.
func (c *Client) Deactivate() error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	c.active = false
	c.cancel()
	conn := c.conn
	c.conn = nil
	c.subs = make(map[string]*subscription)
	c.mu.Unlock()

	c.connected.Store(false)
	if conn == nil {
		return nil
	}

	_ = c.writeFrame(conn, frame.New(frame.DISCONNECT))
	return conn.Close()
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

// run keeps one session alive until ctx is cancelled.
func (c *Client) run(ctx context.Context, events realtime.TransportEvents) {
	var retry backoff.BackOff = &backoff.StopBackOff{}
	if c.opts.Policy.Delay > 0 {
		retry = backoff.NewConstantBackOff(c.opts.Policy.Delay)
	}

	for attempt := 1; ; attempt++ {
		c.session(ctx, events)

		if ctx.Err() != nil {
			return
		}
		wait := retry.NextBackOff()
		if wait == backoff.Stop {
			c.logger.Info("broker_reconnect_disabled")
			return
		}
		c.logger.Info("broker_reconnect_scheduled", "attempt", attempt, "delay", wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if events.OnReconnect != nil {
			events.OnReconnect()
		}
	}
}

// session dials, performs the STOMP handshake and reads until the
// connection ends. Every outcome except cancellation is reported.
func (c *Client) session(ctx context.Context, events realtime.TransportEvents) {
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
	if err != nil {
		if ctx.Err() == nil {
			c.report(events.OnError, fmt.Errorf("dial broker: %w", err))
		}
		return
	}
	conn.SetReadLimit(MaxFrameSize)

	sendEvery, expectEvery, err := c.handshake(conn)
	if err != nil {
		conn.Close()
		if ctx.Err() == nil {
			c.report(events.OnError, err)
		}
		return
	}

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.subs = make(map[string]*subscription)
	c.mu.Unlock()
	c.connected.Store(true)

	c.logger.Info("broker_connected",
		"url", c.opts.URL,
		"heartbeat_out", sendEvery,
		"heartbeat_in", expectEvery,
	)

	sessionDone := make(chan struct{})
	if sendEvery > 0 {
		go c.heartbeat(conn, sendEvery, sessionDone)
	}

	if events.OnConnect != nil {
		events.OnConnect()
	}

	readErr := c.readLoop(conn, expectEvery)
	close(sessionDone)

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.subs = make(map[string]*subscription)
		c.connected.Store(false)
	}
	c.mu.Unlock()
	conn.Close()

	if ctx.Err() != nil {
		return
	}
	var brokerErr *BrokerError
	if errors.As(readErr, &brokerErr) {
		c.report(events.OnError, readErr)
		return
	}
	c.report(events.OnDisconnect, readErr)
}

func (c *Client) report(fn func(error), err error) {
	c.logger.Warn("broker_connection_failed", "error", err)
	if fn != nil {
		fn(err)
	}
}

// handshake sends CONNECT and waits for CONNECTED. It returns the negotiated
// heartbeat intervals.
func (c *Client) handshake(conn *websocket.Conn) (sendEvery, expectEvery time.Duration, err error) {
	policy := c.opts.Policy
	connect := frame.New(frame.CONNECT,
		frame.AcceptVersion, "1.2,1.1",
		frame.Host, c.opts.Host,
		frame.HeartBeat, fmt.Sprintf("%d,%d", policy.HeartbeatOutgoing.Milliseconds(), policy.HeartbeatIncoming.Milliseconds()),
	)
	if err := c.writeFrame(conn, connect); err != nil {
		return 0, 0, fmt.Errorf("send CONNECT: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return 0, 0, fmt.Errorf("await CONNECTED: %w", err)
		}
		frames, err := decodeFrames(data)
		if err != nil {
			return 0, 0, err
		}
		for _, f := range frames {
			switch f.Command {
			case frame.CONNECTED:
				serverOut, serverIn, err := frame.ParseHeartBeat(f.Header.Get(frame.HeartBeat))
				if err != nil {
					serverOut, serverIn = 0, 0
				}
				return negotiate(policy.HeartbeatOutgoing, serverIn), negotiate(policy.HeartbeatIncoming, serverOut), nil
			case frame.ERROR:
				return 0, 0, brokerError(f)
			}
		}
	}
}

// negotiate applies the STOMP heart-beat rule: zero on either side disables,
// otherwise the larger interval wins.
func negotiate(ours, theirs time.Duration) time.Duration {
	if ours <= 0 || theirs <= 0 {
		return 0
	}
	return max(ours, theirs)
}

func (c *Client) heartbeat(conn *websocket.Conn, every time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.writeRaw(conn, []byte{'\n'}); err != nil {
				c.logger.Debug("broker_heartbeat_failed", "error", err)
				return
			}
		}
	}
}

// readLoop routes inbound frames until the connection fails. A silent broker
// is detected by the read deadline derived from the incoming heartbeat.
func (c *Client) readLoop(conn *websocket.Conn, expectEvery time.Duration) error {
	for {
		if expectEvery > 0 {
			conn.SetReadDeadline(time.Now().Add(heartbeatGrace * expectEvery))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		frames, err := decodeFrames(data)
		if err != nil {
			c.logger.Error("broker_frame_invalid", "error", err)
			continue
		}
		for _, f := range frames {
			switch f.Command {
			case frame.MESSAGE:
				c.route(f)
			case frame.ERROR:
				return brokerError(f)
			case frame.RECEIPT:
				// no receipts are requested
			default:
				c.logger.Debug("broker_frame_ignored", "command", f.Command)
			}
		}
	}
}

func (c *Client) route(f *frame.Frame) {
	id := f.Header.Get(frame.Subscription)

	c.mu.Lock()
	sub := c.subs[id]
	c.mu.Unlock()

	if sub == nil {
		c.logger.Debug("broker_message_unrouted", "subscription", id, "destination", f.Header.Get(frame.Destination))
		return
	}
	sub.fn(f.Body)
}

// Subscribe registers fn for every MESSAGE delivered on destination.
func (c *Client) Subscribe(destination string, fn func(body []byte)) (realtime.Subscription, error) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	sub := &subscription{
		id:          "sub-" + uuid.NewString(),
		destination: destination,
		fn:          fn,
		client:      c,
		conn:        conn,
	}
	c.subs[sub.id] = sub
	c.mu.Unlock()

	f := frame.New(frame.SUBSCRIBE,
		frame.Id, sub.id,
		frame.Destination, destination,
		frame.Ack, "auto",
	)
	if err := c.writeFrame(conn, f); err != nil {
		c.mu.Lock()
		delete(c.subs, sub.id)
		c.mu.Unlock()
		return nil, fmt.Errorf("send SUBSCRIBE: %w", err)
	}
	return sub, nil
}

// Publish sends body as a JSON SEND frame.
func (c *Client) Publish(destination string, body []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	f := frame.New(frame.SEND,
		frame.Destination, destination,
		frame.ContentType, "application/json",
		frame.ContentLength, strconv.Itoa(len(body)),
	)
	f.Body = body
	return c.writeFrame(conn, f)
}

func (c *Client) writeFrame(conn *websocket.Conn, f *frame.Frame) error {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return fmt.Errorf("encode %s: %w", f.Command, err)
	}
	return c.writeRaw(conn, buf.Bytes())
}

// writeRaw serializes writers; gorilla connections allow one at a time.
func (c *Client) writeRaw(conn *websocket.Conn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// decodeFrames splits one websocket message into STOMP frames. Bare
// newlines are heartbeats and yield no frame.
func decodeFrames(data []byte) ([]*frame.Frame, error) {
	r := frame.NewReader(bytes.NewReader(data))
	var frames []*frame.Frame
	for {
		f, err := r.Read()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("decode frame: %w", err)
		}
		if f != nil {
			frames = append(frames, f)
		}
	}
}

func brokerError(f *frame.Frame) *BrokerError {
	return &BrokerError{
		Message: f.Header.Get(frame.Message),
		Body:    string(f.Body),
	}
}

type subscription struct {
	id          string
	destination string
	fn          func(body []byte)
	client      *Client
	conn        *websocket.Conn
}

func (s *subscription) ID() string          { return s.id }
func (s *subscription) Destination() string { return s.destination }

// Unsubscribe stops delivery. It is a no-op once the connection it was made
// on has gone away.
func (s *subscription) Unsubscribe() error {
	c := s.client
	c.mu.Lock()
	_, live := c.subs[s.id]
	delete(c.subs, s.id)
	current := c.conn
	c.mu.Unlock()

	if !live || current != s.conn {
		return nil
	}
	return c.writeFrame(s.conn, frame.New(frame.UNSUBSCRIBE, frame.Id, s.id))
}
