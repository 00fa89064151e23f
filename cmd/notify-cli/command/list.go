package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"libraryhub/internal/notification"
)

var (
	listUnread bool
	listType   string
	listPage   int
	listSize   int
)

// listCmd prints one page of notifications
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your notifications",
	Long: `Fetch one page of your notifications from the library API, newest first.

Use --unread to show only unread ones, or --type to fetch a single type
(NEW_BOOK, NEW_EVENT, REMINDER, OVERDUE).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HTTPTimeout)
		defer cancel()
		size := listSize
		if size <= 0 {
			size = cfg.PageSize
		}

		if listType != "" {
			t := notification.Type(strings.ToUpper(listType))
			if !t.Known() {
				return fmt.Errorf("unknown notification type %q", listType)
			}
			page, err := s.store.FetchNotificationsByType(ctx, s.creds.UserID, t, listPage, size)
			if err != nil {
				return fmt.Errorf("%s: %w", s.store.Error(), err)
			}
			printNotifications(os.Stdout, page.Content)
			return nil
		}

		if listUnread {
			page, err := s.client.GetUnreadNotifications(ctx, s.creds.UserID, listPage, size)
			if err != nil {
				return fmt.Errorf("failed to fetch unread notifications: %w", err)
			}
			printNotifications(os.Stdout, page.Content)
			return nil
		}

		if _, err := s.store.FetchNotifications(ctx, s.creds.UserID, listPage, size); err != nil {
			return fmt.Errorf("%s: %w", s.store.Error(), err)
		}
		printNotifications(os.Stdout, s.store.Notifications())
		fmt.Printf("\n%d unread\n", s.store.UnreadCount())
		return nil
	},
}

// unreadCmd prints the unread count, from the cache when it has one
var unreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Show how many notifications are unread",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HTTPTimeout)
		defer cancel()

		if count, ok, err := s.snapshot.UnreadCount(ctx, s.creds.UserID); err == nil && ok {
			fmt.Printf("%d unread (cached)\n", count)
			return nil
		}

		count, err := s.client.GetUnreadCount(ctx, s.creds.UserID)
		if err != nil {
			return fmt.Errorf("failed to fetch unread count: %w", err)
		}
		fmt.Printf("%d unread\n", count)
		return nil
	},
}

// typesCmd prints the notification type table
var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "Show the notification types",
	Run: func(cmd *cobra.Command, args []string) {
		printTypes(os.Stdout)
	},
}

func init() {
	listCmd.Flags().BoolVarP(&listUnread, "unread", "u", false, "only unread notifications")
	listCmd.Flags().StringVarP(&listType, "type", "t", "", "only notifications of this type")
	listCmd.Flags().IntVar(&listPage, "page", 0, "page number, starting at 0")
	listCmd.Flags().IntVar(&listSize, "size", 0, "page size (default PAGE_SIZE)")
	listCmd.MarkFlagsMutuallyExclusive("unread", "type")
}
