package api

// client.go = REST client for the library notification endpoints.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"libraryhub/internal/notification"
)

const (
	DefaultTimeout  = 10 * time.Second
	maxErrorBody    = 1 << 20 // 1 MB max error body
	defaultPageSize = 10
)

// Client talks to the notification endpoints of the library REST API.
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.rateLimiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// constructor for REST client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.token = token
}

// GetUserNotifications fetches one page of a user's notifications, newest first.
func (c *Client) GetUserNotifications(ctx context.Context, userID int64, page, size int) (*notification.Page, error) {
	var p notification.Page
	path := fmt.Sprintf("/notifications/user/%d?%s", userID, pageQuery(page, size))
	if err := c.get(ctx, path, &p); err != nil {
		return nil, fmt.Errorf("api.GetUserNotifications: %w", err)
	}
	return &p, nil
}

// GetUnreadNotifications fetches one page of a user's unread notifications.
func (c *Client) GetUnreadNotifications(ctx context.Context, userID int64, page, size int) (*notification.Page, error) {
	var p notification.Page
	path := fmt.Sprintf("/notifications/user/%d/unread?%s", userID, pageQuery(page, size))
	if err := c.get(ctx, path, &p); err != nil {
		return nil, fmt.Errorf("api.GetUnreadNotifications: %w", err)
	}
	return &p, nil
}

// GetUnreadCount returns how many unread notifications a user has. The API
// answers with a bare number or with {"count": n}.
func (c *Client) GetUnreadCount(ctx context.Context, userID int64) (int64, error) {
	var raw json.RawMessage
	if err := c.get(ctx, fmt.Sprintf("/notifications/user/%d/unread-count", userID), &raw); err != nil {
		return 0, fmt.Errorf("api.GetUnreadCount: %w", err)
	}

	var count int64
	if err := json.Unmarshal(raw, &count); err == nil {
		return count, nil
	}
	var wrapped struct {
		Count       *int64 `json:"count"`
		UnreadCount *int64 `json:"unreadCount"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return 0, fmt.Errorf("api.GetUnreadCount: decode response: %w", err)
	}
	switch {
	case wrapped.Count != nil:
		return *wrapped.Count, nil
	case wrapped.UnreadCount != nil:
		return *wrapped.UnreadCount, nil
	}
	return 0, fmt.Errorf("api.GetUnreadCount: unexpected response %s", raw)
}

// GetNotificationsByType fetches one page of a user's notifications of type t.
func (c *Client) GetNotificationsByType(ctx context.Context, userID int64, t notification.Type, page, size int) (*notification.Page, error) {
	var p notification.Page
	path := fmt.Sprintf("/notifications/user/%d/type/%s?%s", userID, url.PathEscape(string(t)), pageQuery(page, size))
	if err := c.get(ctx, path, &p); err != nil {
		return nil, fmt.Errorf("api.GetNotificationsByType: %w", err)
	}
	return &p, nil
}

// MarkAsRead marks one notification read.
func (c *Client) MarkAsRead(ctx context.Context, notificationID int64) error {
	if err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/notifications/%d/read", notificationID), nil, nil); err != nil {
		return fmt.Errorf("api.MarkAsRead: %w", err)
	}
	return nil
}

// MarkAllAsRead marks every notification of a user read.
func (c *Client) MarkAllAsRead(ctx context.Context, userID int64) error {
	if err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/notifications/user/%d/read-all", userID), nil, nil); err != nil {
		return fmt.Errorf("api.MarkAllAsRead: %w", err)
	}
	return nil
}

// DeleteNotification deletes one notification.
func (c *Client) DeleteNotification(ctx context.Context, notificationID int64) error {
	if err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/notifications/%d", notificationID), nil, nil); err != nil {
		return fmt.Errorf("api.DeleteNotification: %w", err)
	}
	return nil
}

// DeleteAllNotifications deletes every notification of a user.
func (c *Client) DeleteAllNotifications(ctx context.Context, userID int64) error {
	if err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/notifications/user/%d", userID), nil, nil); err != nil {
		return fmt.Errorf("api.DeleteAllNotifications: %w", err)
	}
	return nil
}

func pageQuery(page, size int) string {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultPageSize
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("size", strconv.Itoa(size))
	return params.Encode()
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// decodeError builds an HTTPError, preferring the server's "message" field
// and falling back to "error".
func decodeError(resp *http.Response) error {
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		return &HTTPError{StatusCode: resp.StatusCode, Body: fmt.Sprintf("failed to read body: %v", readErr)}
	}

	var apiErr struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	if json.Unmarshal(respBody, &apiErr) == nil {
		httpErr.Message = apiErr.Message
		if httpErr.Message == "" {
			httpErr.Message = apiErr.Error
		}
	}
	return httpErr
}
