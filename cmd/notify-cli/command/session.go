package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"libraryhub/cmd/notify-cli/authentication"
	"libraryhub/internal/api"
	"libraryhub/internal/cache"
	"libraryhub/internal/realtime"
	"libraryhub/internal/realtime/stompws"
	"libraryhub/internal/store"
	"libraryhub/internal/toast"
)

// session wires one user's store with its collaborators.
type session struct {
	creds    *authentication.StoredCredentials
	client   *api.Client
	manager  *realtime.Manager
	store    *store.Store
	snapshot *cache.SnapshotRedisRepo
	terminal *toast.Terminal
}

// currentCredentials prefers --token, then ACCESS_TOKEN, then the keyring.
func currentCredentials() (*authentication.StoredCredentials, error) {
	raw := token
	if raw == "" {
		raw = cfg.AccessToken
	}
	if raw != "" {
		return authentication.NewCredentials(raw, "")
	}

	creds, err := authentication.GetTokens()
	if errors.Is(err, authentication.ErrNotLoggedIn) {
		return nil, fmt.Errorf("not logged in, please run 'notify-cli auth set-token' first")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stored token: %w", err)
	}
	if creds.Expired(time.Now()) {
		logger.Warn("access_token_expired", "user_id", creds.UserID)
	}
	return creds, nil
}

// openSession builds the store for the current user. Toasts go to the
// terminal and to every extra toaster.
func openSession(extra ...toast.Toaster) (*session, error) {
	creds, err := currentCredentials()
	if err != nil {
		return nil, err
	}

	client := api.NewClient(cfg.APIURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		api.WithRateLimit(cfg.APIRateLimit, cfg.APIRateBurst),
	)
	client.SetToken(creds.AccessToken)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+creds.AccessToken)
	transport := stompws.New(stompws.Options{
		URL:    cfg.BrokerURL,
		Header: header,
		Policy: cfg.ReconnectPolicy(),
		Logger: logger.With("component", "stompws"),
	})
	manager := realtime.NewManager(transport, logger.With("component", "realtime"))

	terminal := toast.NewTerminal(os.Stdout, cfg.ToastRate, cfg.ToastBurst, logger)
	toasters := append(toast.Multi{terminal}, extra...)

	s := &session{
		creds:    creds,
		client:   client,
		manager:  manager,
		store:    store.New(client, manager, toasters, logger.With("component", "store")),
		terminal: terminal,
	}

	if cfg.CacheEnabled() {
		snapshot, err := cache.NewSnapshotRedisRepo(cfg.RedisURL, cfg.RedisPassword, cfg.CacheTTL, logger)
		if err != nil {
			// the cache only speeds up start-up
			logger.Warn("snapshot_cache_unavailable", "error", err)
		} else {
			s.snapshot = snapshot
		}
	}
	return s, nil
}

// load warms the store from the cache and then fetches the first page.
func (s *session) load(ctx context.Context) error {
	if _, err := s.snapshot.Warm(ctx, s.store, s.creds.UserID); err != nil {
		logger.Warn("snapshot_warm_failed", "error", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, cfg.HTTPTimeout)
	defer cancel()
	_, err := s.store.FetchNotifications(fetchCtx, s.creds.UserID, 0, cfg.PageSize)
	return err
}

func (s *session) close() {
	s.store.DisconnectWebSocket()
	if err := s.snapshot.Close(); err != nil {
		logger.Warn("snapshot_close_failed", "error", err)
	}
}
