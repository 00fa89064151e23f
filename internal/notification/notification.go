package notification

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// Type classifies a notification's origin or purpose
type Type string

const (
	TypeNewBook  Type = "NEW_BOOK"  // a book was added to the catalog
	TypeNewEvent Type = "NEW_EVENT" // a library event was announced
	TypeReminder Type = "REMINDER"  // a loan is about to fall due
	TypeOverdue  Type = "OVERDUE"   // a loan is past due
)

// Types lists the closed enumeration in display order.
var Types = []Type{TypeNewBook, TypeNewEvent, TypeReminder, TypeOverdue}

// Known reports whether t is one of the four enumerated types.
func (t Type) Known() bool {
	_, ok := TypeConfig[t]
	return ok
}

// ErrEmptyPayload is returned by Parse for an empty or null body.
var ErrEmptyPayload = errors.New("notification: empty payload")

// Notification is a single notification as delivered by both the REST API and
// the push broker. Both sources use the same id, which keys the local list.
type Notification struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"userId,omitempty"`
	NotificationType Type      `json:"notificationType"`
	Title            string    `json:"title"`
	Message          string    `json:"message,omitempty"`
	Description      string    `json:"description,omitempty"`
	IsRead           bool      `json:"isRead"`
	CreatedDate      Timestamp `json:"createdDate,omitzero"`
	CreatedAt        Timestamp `json:"createdAt,omitzero"`
}

// Text returns the display body. Older payloads carry it as description.
func (n *Notification) Text() string {
	if n.Message != "" {
		return n.Message
	}
	return n.Description
}

// Time returns the creation time used for ordering and relative display.
func (n *Notification) Time() Timestamp {
	if !n.CreatedDate.IsZero() {
		return n.CreatedDate
	}
	return n.CreatedAt
}

// ToJSON: marshal Notification struct to JSON
func (n *Notification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}

// Parse decodes one pushed payload.
func Parse(body []byte) (*Notification, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrEmptyPayload
	}

	var n Notification
	if err := json.Unmarshal(trimmed, &n); err != nil {
		slog.Debug("notification_unmarshal_failed", "error", err)
		return nil, fmt.Errorf("parse notification: %w", err)
	}
	return &n, nil
}
