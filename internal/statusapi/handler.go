package statusapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"libraryhub/internal/api"
	"libraryhub/internal/notification"
	"libraryhub/internal/store"
)

const requestTimeout = 5 * time.Second

// NotificationStore is the part of *store.Store the handlers drive.
type NotificationStore interface {
	State() store.State
	UnreadCount() int
	GetUnreadNotifications() []notification.Notification
	GetRecentNotifications(limit int) []notification.Notification
	Subscribe(fn func(store.State)) func()
	FetchNotifications(ctx context.Context, userID int64, page, size int) ([]notification.Notification, error)
	FetchNotificationsByType(ctx context.Context, userID int64, t notification.Type, page, size int) (*notification.Page, error)
	MarkAsReadAPI(ctx context.Context, id int64) error
	MarkAllAsReadAPI(ctx context.Context, userID int64) error
	DeleteNotificationAPI(ctx context.Context, id int64) error
	DeleteAllNotificationsAPI(ctx context.Context, userID int64) error
}

type NotificationHandler struct {
	store    NotificationStore
	feed     *Feed
	pageSize int
}

// constructor for NotificationHandler; a nil feed streams state only
func NewNotificationHandler(s NotificationStore, feed *Feed, pageSize int) *NotificationHandler {
	if feed == nil {
		feed = NewFeed()
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	return &NotificationHandler{store: s, feed: feed, pageSize: pageSize}
}

func (h *NotificationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.GetAll)
	rg.GET("/unread", h.GetUnread)
	rg.GET("/unread-count", h.GetUnreadCount)
	rg.GET("/recent", h.GetRecent)
	rg.GET("/types", h.GetTypes)
	rg.GET("/type/:type", h.GetByType)
	rg.GET("/stream", h.Stream)
	rg.POST("/refresh", h.Refresh)
	rg.PUT("/:id/read", h.MarkAsRead)
	rg.PUT("/read-all", h.MarkAllAsRead)
	rg.DELETE("/:id", h.Delete)
	rg.DELETE("", h.DeleteAll)
}

// GetAll returns the full store state
func (h *NotificationHandler) GetAll(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.State())
}

// GetUnread returns all unread notifications of the session user
func (h *NotificationHandler) GetUnread(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notifications": h.store.GetUnreadNotifications()})
}

func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"unreadCount": h.store.UnreadCount()})
}

// GetRecent returns the newest notifications, 5 unless ?limit= says otherwise
func (h *NotificationHandler) GetRecent(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "5"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": h.store.GetRecentNotifications(limit)})
}

type typeEntry struct {
	Type notification.Type `json:"type"`
	notification.Config
}

// GetTypes returns the display config of every notification type
func (h *NotificationHandler) GetTypes(c *gin.Context) {
	types := make([]typeEntry, 0, len(notification.Types))
	for _, t := range notification.Types {
		types = append(types, typeEntry{Type: t, Config: notification.TypeConfig[t]})
	}
	c.JSON(http.StatusOK, gin.H{"types": types})
}

// GetByType fetches one page of a single type from the REST API
func (h *NotificationHandler) GetByType(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}

	t := notification.Type(c.Param("type"))
	if !t.Known() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown notification type"})
		return
	}
	page, size, ok := h.pagination(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := h.store.FetchNotificationsByType(ctx, userID, t, page, size)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Refresh reloads the list from the REST API
func (h *NotificationHandler) Refresh(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}
	page, size, ok := h.pagination(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if _, err := h.store.FetchNotifications(ctx, userID, page, size); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.store.State())
}

// MarkAsRead marks a specific notification as read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id, ok := notificationID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.store.MarkAsReadAPI(ctx, id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllAsRead marks all notifications as read for the user
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.store.MarkAllAsReadAPI(ctx, userID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := notificationID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.store.DeleteNotificationAPI(ctx, id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) DeleteAll(c *gin.Context) {
	userID, ok := sessionUser(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.store.DeleteAllNotificationsAPI(ctx, userID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stream pushes a "state" event on every store change and a "toast" event
// for every raised toast, starting with the current state.
func (h *NotificationHandler) Stream(c *gin.Context) {
	events := h.feed.join()
	defer h.feed.leave(events)

	unsubscribe := h.store.Subscribe(func(st store.State) {
		h.feed.offer(events, event{name: "state", data: st})
	})
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	current := h.store.State()
	sent := current.Version
	c.SSEvent("state", current)
	c.Writer.Flush()

	done := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev := <-events:
			if st, ok := ev.data.(store.State); ok {
				if st.Version <= sent {
					return true
				}
				sent = st.Version
			}
			c.SSEvent(ev.name, ev.data)
			return true
		case <-done:
			return false
		}
	})
}

func (h *NotificationHandler) pagination(c *gin.Context) (page, size int, ok bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return 0, 0, false
	}
	size, err = strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(h.pageSize)))
	if err != nil || size <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid size"})
		return 0, 0, false
	}
	return page, size, true
}

// fail reports a failed remote operation. Client errors from the REST API
// keep their status; everything else is a bad gateway.
func (h *NotificationHandler) fail(c *gin.Context, err error) {
	status := http.StatusBadGateway
	var httpErr *api.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
		status = httpErr.StatusCode
	}
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}

	msg := h.store.State().Error
	if msg == "" {
		msg = err.Error()
	}
	c.JSON(status, gin.H{"error": msg})
}

func notificationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return 0, false
	}
	return id, true
}

func sessionUser(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return 0, false
	}
	return userID.(int64), true
}
