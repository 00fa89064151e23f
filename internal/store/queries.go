package store

import "libraryhub/internal/notification"

const defaultRecentLimit = 5

// GetNotificationConfig returns the display config of t, falling back to
// NEW_BOOK for unknown types.
func (s *Store) GetNotificationConfig(t notification.Type) notification.Config {
	return notification.ConfigFor(t)
}

// FilterByType returns every notification of type t, in list order.
func (s *Store) FilterByType(t notification.Type) []notification.Notification {
	return s.filter(func(n *notification.Notification) bool { return n.NotificationType == t })
}

// GetUnreadNotifications returns every unread notification, in list order.
func (s *Store) GetUnreadNotifications() []notification.Notification {
	return s.filter(func(n *notification.Notification) bool { return !n.IsRead })
}

// GetRecentNotifications returns the first limit entries of the list.
// limit <= 0 means 5.
func (s *Store) GetRecentNotifications(limit int) []notification.Notification {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	limit = min(limit, len(s.notifications))
	return append([]notification.Notification{}, s.notifications[:limit]...)
}

func (s *Store) filter(keep func(*notification.Notification) bool) []notification.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []notification.Notification{}
	for i := range s.notifications {
		if keep(&s.notifications[i]) {
			out = append(out, s.notifications[i])
		}
	}
	return out
}
