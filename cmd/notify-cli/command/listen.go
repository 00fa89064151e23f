package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"libraryhub/internal/store"
)

// listenCmd streams live notifications to the terminal
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Listen for real-time notifications",
	Long: `Load your recent notifications, then connect to the push broker and show
new ones as they arrive. The connection is re-established automatically
after a drop.

Press Ctrl+C to stop listening and disconnect.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		return runLive(ctx, s, func() {
			printNotifications(os.Stdout, s.store.GetRecentNotifications(0))
			fmt.Printf("\n%d unread. Waiting for notifications...\n\n", s.store.UnreadCount())
		})
	},
}

// runLive loads history, opens the push connection and blocks until ctx
// ends. ready runs once the history is loaded.
func runLive(ctx context.Context, s *session, ready func()) error {
	fmt.Println("🔌 Connecting to the notification broker...")
	fmt.Printf("   Broker: %s\n", cfg.BrokerURL)
	fmt.Printf("   User: %d\n\n", s.creds.UserID)

	if err := s.load(ctx); err != nil {
		// push still works without history
		fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", s.store.Error(), err)
	}

	stopMirror := s.snapshot.Mirror(s.store, s.creds.UserID)
	defer stopMirror()

	unsubscribe := watchConnection(s.store)
	defer unsubscribe()

	s.store.ConnectWebSocket(s.creds.UserID)
	if ready != nil {
		ready()
	}

	<-ctx.Done()
	fmt.Println("\nDisconnecting...")
	s.store.DisconnectWebSocket()
	printStats(s)
	return nil
}

// watchConnection prints connection changes as they happen.
func watchConnection(s *store.Store) func() {
	var mu sync.Mutex
	connected := false
	return s.Subscribe(func(st store.State) {
		mu.Lock()
		defer mu.Unlock()
		if st.IsWebSocketConnected == connected {
			return
		}
		connected = st.IsWebSocketConnected
		if connected {
			fmt.Println("✓ Connected")
		} else {
			fmt.Println("✗ Connection lost, retrying...")
		}
	})
}

func printStats(s *session) {
	fmt.Printf("Received notifications: %d (unread %d)\n", len(s.store.Notifications()), s.store.UnreadCount())
	fmt.Printf("Reconnect attempts since last connect: %d\n", s.manager.ReconnectAttempts())
	if dropped := s.terminal.Dropped(); dropped > 0 {
		fmt.Printf("Toasts suppressed during bursts: %d\n", dropped)
	}
}
