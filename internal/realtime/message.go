package realtime

import (
	"fmt"

	"libraryhub/internal/notification"
)

// MessageKind enumerates the kinds of inbound push messages.
type MessageKind int

const (
	KindNotification MessageKind = iota // a new notification for the subscribed user

	kindCount // number of kinds; keep last
)

func (k MessageKind) String() string {
	switch k {
	case KindNotification:
		return "notification"
	default:
		return fmt.Sprintf("MessageKind(%d)", int(k))
	}
}

func (k MessageKind) valid() bool {
	return k >= 0 && k < kindCount
}

// Handler receives a parsed push message.
type Handler func(n *notification.Notification)

// handlerTable holds the handlers of every kind, in registration order.
type handlerTable [kindCount][]Handler

// Destinations on the broker.
const (
	MarkReadDestination = "/app/notifications/mark-read"
	userQueuePattern    = "/user/%d/queue/notifications"
)

// UserDestination returns the per-user inbound queue.
func UserDestination(userID int64) string {
	return fmt.Sprintf(userQueuePattern, userID)
}

// MarkReadCommand is published when the client marks a notification read.
type MarkReadCommand struct {
	NotificationID int64 `json:"notificationId"`
}
