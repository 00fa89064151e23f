package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// readCmd marks notifications read
var readCmd = &cobra.Command{
	Use:   "read [id]",
	Short: "Mark a notification, or all of them, as read",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		return runAction(cmd, args, all, "marked as read",
			func(ctx context.Context, s *session, id int64) error { return s.store.MarkAsReadAPI(ctx, id) },
			func(ctx context.Context, s *session) error { return s.store.MarkAllAsReadAPI(ctx, s.creds.UserID) },
		)
	},
}

// deleteCmd deletes notifications
var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a notification, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		return runAction(cmd, args, all, "deleted",
			func(ctx context.Context, s *session, id int64) error { return s.store.DeleteNotificationAPI(ctx, id) },
			func(ctx context.Context, s *session) error { return s.store.DeleteAllNotificationsAPI(ctx, s.creds.UserID) },
		)
	},
}

func runAction(cmd *cobra.Command, args []string, all bool, done string,
	one func(context.Context, *session, int64) error,
	every func(context.Context, *session) error,
) error {
	if all == (len(args) == 1) {
		return fmt.Errorf("pass either a notification id or --all")
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HTTPTimeout)
	defer cancel()

	if all {
		if err := every(ctx, s); err != nil {
			return fmt.Errorf("%s: %w", s.store.Error(), err)
		}
		fmt.Printf("✓ All notifications %s\n", done)
		return nil
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid notification id %q", args[0])
	}
	if err := one(ctx, s, id); err != nil {
		return fmt.Errorf("%s: %w", s.store.Error(), err)
	}
	fmt.Printf("✓ Notification #%d %s\n", id, done)
	return nil
}

func init() {
	readCmd.Flags().Bool("all", false, "mark every notification as read")
	deleteCmd.Flags().Bool("all", false, "delete every notification")
}
