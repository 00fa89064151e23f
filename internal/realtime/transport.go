package realtime

import "time"

// Default reconnect policy: fixed delay between attempts, heartbeats in both
// directions to detect a silently dead connection.
const (
	DefaultReconnectDelay    = 5 * time.Second
	DefaultHeartbeatIncoming = 4 * time.Second
	DefaultHeartbeatOutgoing = 4 * time.Second
)

// ReconnectPolicy configures how a Transport keeps its connection alive.
type ReconnectPolicy struct {
	Delay             time.Duration // wait between reconnect attempts; 0 disables reconnecting
	HeartbeatIncoming time.Duration // expected interval of broker heartbeats; 0 disables
	HeartbeatOutgoing time.Duration // interval of client heartbeats; 0 disables
}

// DefaultReconnectPolicy returns the policy used when none is configured.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Delay:             DefaultReconnectDelay,
		HeartbeatIncoming: DefaultHeartbeatIncoming,
		HeartbeatOutgoing: DefaultHeartbeatOutgoing,
	}
}

// TransportEvents are the lifecycle callbacks a Transport reports through.
// OnConnect fires after every successful handshake, including reconnects.
// OnError fires on a failed handshake or a broker-reported error.
// OnDisconnect fires when an established connection drops.
// OnReconnect fires when a scheduled retry starts dialing again.
type TransportEvents struct {
	OnConnect    func()
	OnError      func(err error)
	OnDisconnect func(err error)
	OnReconnect  func()
}

// Subscription is a live broker subscription.
type Subscription interface {
	ID() string
	Destination() string
	Unsubscribe() error
}

// Transport is the narrow view of a reconnecting message-broker connection.
// Activate must not block on the network; the handshake result is reported
// through events. Subscriptions do not survive a reconnect.
type Transport interface {
	Activate(events TransportEvents) error
	Deactivate() error
	Connected() bool
	Subscribe(destination string, fn func(body []byte)) (Subscription, error)
	Publish(destination string, body []byte) error
}
