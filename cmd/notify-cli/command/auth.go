package command

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"libraryhub/cmd/notify-cli/authentication"
)

// auth.go handles credential commands. Logging in happens in the library
// web app; its access token is handed to the CLI with set-token.

// authCmd represents the auth command for authentication related subcommands
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  `Store, inspect and forget the access token used to reach the library API and push broker.`,
}

// setTokenCmd stores an access token in the OS keyring
var setTokenCmd = &cobra.Command{
	Use:   "set-token",
	Short: "Store an access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		access, _ := cmd.Flags().GetString("access")
		refresh, _ := cmd.Flags().GetString("refresh")

		creds, err := authentication.NewCredentials(access, refresh)
		if err != nil {
			return fmt.Errorf("invalid access token: %w", err)
		}
		if err := authentication.StoreTokens(creds); err != nil {
			return fmt.Errorf("failed to store token: %w", err)
		}

		fmt.Println("✓ Token stored")
		fmt.Printf("UserID: %d\n", creds.UserID)
		return nil
	},
}

// showCmd prints who is logged in
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored login",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := authentication.GetTokens()
		if errors.Is(err, authentication.ErrNotLoggedIn) {
			fmt.Println("Not logged in. Run 'notify-cli auth set-token --access <token>'.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read stored token: %w", err)
		}

		fmt.Printf("UserID:   %d\n", creds.UserID)
		if creds.Username != "" {
			fmt.Printf("Username: %s\n", creds.Username)
		}
		if creds.ExpiresAt > 0 {
			exp := time.Unix(creds.ExpiresAt, 0)
			state := "expires"
			if creds.Expired(time.Now()) {
				state = "expired"
			}
			fmt.Printf("Token:    %s %s\n", state, humanize.Time(exp))
		}
		return nil
	},
}

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := authentication.DeleteTokens(); err != nil {
			return fmt.Errorf("failed to delete token: %w", err)
		}
		fmt.Println("✓ Successfully logged out.")
		return nil
	},
}

// init function to add auth commands to root command
func init() {
	authCmd.AddCommand(setTokenCmd)
	authCmd.AddCommand(showCmd)
	authCmd.AddCommand(logoutCmd)

	setTokenCmd.Flags().StringP("access", "a", "", "access token (jwt)")
	setTokenCmd.Flags().StringP("refresh", "r", "", "refresh token")
	setTokenCmd.MarkFlagRequired("access")
}
