package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"libraryhub/internal/notification"
	"libraryhub/internal/store"
)

const (
	DefaultTTL  = 24 * time.Hour
	saveTimeout = 3 * time.Second
)

// SnapshotRedisRepo mirrors a user's notification list into Redis so the
// next session can render it before the first REST fetch returns.
//
// Keys:
//
//	notifications:user:{id}         JSON array, newest first
//	notifications:user:{id}:unread  unread count
type SnapshotRedisRepo struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// constructor for SnapshotRedisRepo; redisURL is a redis:// URL or host:port
func NewSnapshotRedisRepo(redisURL, password string, ttl time.Duration, logger *slog.Logger) (*SnapshotRedisRepo, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		opts = &redis.Options{Addr: redisURL}
	}
	if password != "" {
		opts.Password = password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewSnapshotRedisRepoFromClient(rdb, ttl, logger), nil
}

// NewSnapshotRedisRepoFromClient wraps an existing client. A nil client
// gives a repo whose methods are all no-ops.
func NewSnapshotRedisRepoFromClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SnapshotRedisRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotRedisRepo{client: client, ttl: ttl, logger: logger}
}

func listKey(userID int64) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

func unreadKey(userID int64) string {
	return fmt.Sprintf("notifications:user:%d:unread", userID)
}

func (r *SnapshotRedisRepo) disabled() bool {
	return r == nil || r.client == nil
}

// Save writes the list and unread count of st for userID.
func (r *SnapshotRedisRepo) Save(ctx context.Context, userID int64, st store.State) error {
	if r.disabled() {
		// No-op for testing/offline mode
		return nil
	}

	data, err := json.Marshal(st.Notifications)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, listKey(userID), data, r.ttl)
	pipe.Set(ctx, unreadKey(userID), st.UnreadCount, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load returns the cached list for userID, or nil when nothing is cached.
func (r *SnapshotRedisRepo) Load(ctx context.Context, userID int64) ([]notification.Notification, error) {
	if r.disabled() {
		return nil, nil
	}

	data, err := r.client.Get(ctx, listKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var list []notification.Notification
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return list, nil
}

// UnreadCount returns the cached unread count. ok is false when nothing is
// cached.
func (r *SnapshotRedisRepo) UnreadCount(ctx context.Context, userID int64) (count int64, ok bool, err error) {
	if r.disabled() {
		return 0, false, nil
	}

	count, err = r.client.Get(ctx, unreadKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load unread count: %w", err)
	}
	return count, true, nil
}

// Delete removes everything cached for userID.
func (r *SnapshotRedisRepo) Delete(ctx context.Context, userID int64) error {
	if r.disabled() {
		return nil
	}
	return r.client.Del(ctx, listKey(userID), unreadKey(userID)).Err()
}

// Warm seeds s with the cached list. It returns how many entries were
// loaded.
func (r *SnapshotRedisRepo) Warm(ctx context.Context, s *store.Store, userID int64) (int, error) {
	list, err := r.Load(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(list) > 0 {
		s.SetNotifications(list)
		r.logger.Info("snapshot_warm_start", "user_id", userID, "count", len(list))
	}
	return len(list), nil
}

// Mirror saves every state change of s in the background. Bursts are
// coalesced: only the latest snapshot is written. The returned func stops
// mirroring.
func (r *SnapshotRedisRepo) Mirror(s *store.Store, userID int64) (stop func()) {
	if r.disabled() {
		return func() {}
	}

	pending := make(chan store.State, 1)
	done := make(chan struct{})

	unsubscribe := s.Subscribe(func(st store.State) {
		for {
			select {
			case pending <- st:
				return
			default:
			}
			select {
			case <-pending: // drop the stale snapshot
			default:
			}
		}
	})

	go func() {
		for {
			select {
			case st := <-pending:
				ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
				if err := r.Save(ctx, userID, st); err != nil {
					r.logger.Warn("snapshot_save_failed", "user_id", userID, "error", err)
				}
				cancel()
			case <-done:
				return
			}
		}
	}()

	return func() {
		unsubscribe()
		close(done)
	}
}

func (r *SnapshotRedisRepo) Close() error {
	if r.disabled() {
		// No-op for testing/offline mode
		return nil
	}
	return r.client.Close()
}
