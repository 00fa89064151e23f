package store

import "libraryhub/internal/notification"

// Patch holds the fields UpdateNotification merges into an entry. Nil
// fields are left untouched.
type Patch struct {
	NotificationType *notification.Type
	Title            *string
	Message          *string
	Description      *string
	IsRead           *bool
}

func (p Patch) apply(n *notification.Notification) {
	if p.NotificationType != nil {
		n.NotificationType = *p.NotificationType
	}
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Message != nil {
		n.Message = *p.Message
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if p.IsRead != nil {
		n.IsRead = *p.IsRead
	}
}

// SetNotifications replaces the list. When list repeats an id only the
// first occurrence is kept.
func (s *Store) SetNotifications(list []notification.Notification) {
	s.update(func() {
		seen := make(map[int64]struct{}, len(list))
		out := make([]notification.Notification, 0, len(list))
		for _, n := range list {
			if _, dup := seen[n.ID]; dup {
				s.logger.Debug("duplicate_notification_dropped", "id", n.ID)
				continue
			}
			seen[n.ID] = struct{}{}
			out = append(out, n)
		}
		s.notifications = out
		s.recountLocked()
	})
}

// AddNotification puts n at the front of the list. An existing entry with
// the same id is replaced.
func (s *Store) AddNotification(n notification.Notification) {
	s.update(func() {
		out := make([]notification.Notification, 0, len(s.notifications)+1)
		out = append(out, n)
		for _, existing := range s.notifications {
			if existing.ID == n.ID {
				s.logger.Debug("notification_replaced", "id", n.ID)
				continue
			}
			out = append(out, existing)
		}
		s.notifications = out
		s.recountLocked()
	})
}

// UpdateNotification merges patch into the entry with id. Unknown ids are
// ignored.
func (s *Store) UpdateNotification(id int64, patch Patch) {
	s.update(func() {
		for i := range s.notifications {
			if s.notifications[i].ID == id {
				patch.apply(&s.notifications[i])
				break
			}
		}
		s.recountLocked()
	})
}

// RemoveNotification drops the entry with id.
func (s *Store) RemoveNotification(id int64) {
	s.update(func() {
		out := make([]notification.Notification, 0, len(s.notifications))
		for _, n := range s.notifications {
			if n.ID != id {
				out = append(out, n)
			}
		}
		s.notifications = out
		s.recountLocked()
	})
}

// MarkAsRead flags the entry with id as read, locally only.
func (s *Store) MarkAsRead(id int64) {
	read := true
	s.UpdateNotification(id, Patch{IsRead: &read})
}

// MarkAllAsRead flags every entry as read, locally only.
func (s *Store) MarkAllAsRead() {
	s.update(func() {
		for i := range s.notifications {
			s.notifications[i].IsRead = true
		}
		s.recountLocked()
	})
}

// ClearAll empties the list.
func (s *Store) ClearAll() {
	s.update(func() {
		s.notifications = []notification.Notification{}
		s.recountLocked()
	})
}

func (s *Store) recountLocked() {
	unread := 0
	for i := range s.notifications {
		if !s.notifications[i].IsRead {
			unread++
		}
	}
	s.unreadCount = unread
}
