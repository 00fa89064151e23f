package store

import (
	"context"
	"errors"

	"libraryhub/internal/notification"
)

const defaultPageSize = 10

// Fallback messages when the server gives no explanation.
const (
	msgFetchFailed     = "Failed to fetch notifications"
	msgFetchByType     = "Failed to fetch notifications by type"
	msgMarkReadFailed  = "Failed to mark notification as read"
	msgMarkAllFailed   = "Failed to mark all notifications as read"
	msgDeleteFailed    = "Failed to delete notification"
	msgDeleteAllFailed = "Failed to delete all notifications"
)

// FetchNotifications loads one page of history and replaces the list with
// it. size <= 0 means 10.
func (s *Store) FetchNotifications(ctx context.Context, userID int64, page, size int) ([]notification.Notification, error) {
	if size <= 0 {
		size = defaultPageSize
	}
	s.begin()

	p, err := s.api.GetUserNotifications(ctx, userID, page, size)
	if err != nil {
		return nil, s.fail("fetch_notifications_failed", err, msgFetchFailed)
	}

	s.SetNotifications(p.Content)
	s.finish()
	s.logger.Info("notifications_fetched", "user_id", userID, "page", page, "count", len(p.Content))
	return p.Content, nil
}

// FetchNotificationsByType loads one page of notifications of type t. The
// main list is left untouched.
func (s *Store) FetchNotificationsByType(ctx context.Context, userID int64, t notification.Type, page, size int) (*notification.Page, error) {
	if size <= 0 {
		size = defaultPageSize
	}
	s.begin()

	p, err := s.api.GetNotificationsByType(ctx, userID, t, page, size)
	if err != nil {
		return nil, s.fail("fetch_notifications_by_type_failed", err, msgFetchByType)
	}

	s.finish()
	return p, nil
}

// MarkAsReadAPI marks id read on the server and then locally. The local
// list is unchanged when the server call fails.
func (s *Store) MarkAsReadAPI(ctx context.Context, id int64) error {
	s.begin()
	if err := s.api.MarkAsRead(ctx, id); err != nil {
		return s.fail("mark_as_read_failed", err, msgMarkReadFailed)
	}

	s.MarkAsRead(id)
	s.finish()
	s.echoRead(id)
	return nil
}

// MarkAllAsReadAPI marks every notification of userID read on the server
// and then locally.
func (s *Store) MarkAllAsReadAPI(ctx context.Context, userID int64) error {
	s.begin()
	if err := s.api.MarkAllAsRead(ctx, userID); err != nil {
		return s.fail("mark_all_as_read_failed", err, msgMarkAllFailed)
	}

	s.MarkAllAsRead()
	s.finish()
	return nil
}

// DeleteNotificationAPI deletes id on the server and then locally.
func (s *Store) DeleteNotificationAPI(ctx context.Context, id int64) error {
	s.begin()
	if err := s.api.DeleteNotification(ctx, id); err != nil {
		return s.fail("delete_notification_failed", err, msgDeleteFailed)
	}

	s.RemoveNotification(id)
	s.finish()
	return nil
}

// DeleteAllNotificationsAPI deletes every notification of userID on the
// server and then clears the local list.
func (s *Store) DeleteAllNotificationsAPI(ctx context.Context, userID int64) error {
	s.begin()
	if err := s.api.DeleteAllNotifications(ctx, userID); err != nil {
		return s.fail("delete_all_notifications_failed", err, msgDeleteAllFailed)
	}

	s.ClearAll()
	s.finish()
	return nil
}

func (s *Store) begin() {
	s.update(func() {
		s.isLoading = true
		s.errMsg = ""
	})
}

func (s *Store) finish() {
	s.update(func() { s.isLoading = false })
}

// fail records a user-facing message for err and returns err unchanged.
func (s *Store) fail(event string, err error, fallback string) error {
	msg := fallback
	var um interface{ UserMessage() string }
	if errors.As(err, &um) && um.UserMessage() != "" {
		msg = um.UserMessage()
	}

	s.update(func() {
		s.isLoading = false
		s.errMsg = msg
	})
	s.logger.Error(event, "error", err)
	return err
}

// echoRead tells the broker about a confirmed read so other sessions of the
// same user can update. Skipped while offline.
func (s *Store) echoRead(id int64) {
	if s.conn == nil || !s.conn.IsConnected() {
		return
	}
	if err := s.conn.MarkAsRead(id); err != nil {
		s.logger.Warn("mark_read_publish_failed", "id", id, "error", err)
	}
}
