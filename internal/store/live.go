package store

import (
	"libraryhub/internal/notification"
	"libraryhub/internal/realtime"
)

// ConnectWebSocket opens the push connection for userID. Pushed
// notifications are prepended to the list and announced with a toast.
func (s *Store) ConnectWebSocket(userID int64) {
	if s.conn == nil {
		s.logger.Error("websocket_not_configured", "user_id", userID)
		return
	}

	// an established connection makes Connect a no-op with no callback
	alreadyUp := s.conn.IsConnected()
	register := false
	s.update(func() {
		if alreadyUp {
			s.wsConnected = true
		} else {
			s.isLoading = true
		}
		if !s.pushWired {
			s.pushWired = true
			register = true
		}
	})
	if register {
		s.conn.OnMessage(realtime.KindNotification, s.handlePush)
	}

	s.conn.Connect(userID,
		func() {
			s.update(func() {
				s.wsConnected = true
				s.isLoading = false
			})
		},
		func(err error) {
			s.update(func() {
				s.wsConnected = false
				s.isLoading = false
			})
			s.logger.Warn("websocket_connection_error", "user_id", userID, "error", err)
		},
	)
}

// DisconnectWebSocket closes the push connection. Safe to call repeatedly.
func (s *Store) DisconnectWebSocket() {
	if s.conn != nil {
		s.conn.Disconnect()
	}
	s.update(func() {
		s.wsConnected = false
		s.pushWired = false // Disconnect drops every handler, whatever the state
	})
}

func (s *Store) handlePush(n *notification.Notification) {
	s.AddNotification(*n)
	s.logger.Info("notification_received", "id", n.ID, "type", n.NotificationType)

	if s.toaster == nil {
		return
	}
	cfg := notification.ConfigFor(n.NotificationType)
	msg := cfg.Label + ": " + n.Text()
	if cfg.Priority == notification.PriorityHigh {
		s.toaster.Warning(msg)
	} else {
		s.toaster.Info(msg)
	}
}
