package command

// root.go defines the root command for notify-cli and loads the shared
// configuration every subcommand runs with.

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"libraryhub/internal/config"
)

var (
	apiURL    string // Global flag for the library REST API URL
	brokerURL string // Global flag for the push broker URL
	token     string // access token (jwt) overriding the stored one

	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notify-cli",
	Short: "notify-cli - library notification client",
	Long: `notify-cli keeps you up to date with your library account. It can:
- Listen for new books, events, loan reminders and overdue notices in real time
- List, read and delete your notifications
- Serve your notification feed to local tools over HTTP

Use "notify-cli command --help" to see all available commands.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("could not load config: %w", err)
		}
		if cmd.Flags().Changed("api") {
			loaded.APIURL = apiURL
		}
		if cmd.Flags().Changed("broker") {
			loaded.BrokerURL = brokerURL
		}
		if err := loaded.Validate(); err != nil {
			return err
		}

		cfg = loaded
		logger = config.NewLogger(cfg, os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err) // Print error to standard error
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "library REST API URL (overrides API_URL)")
	rootCmd.PersistentFlags().StringVar(&brokerURL, "broker", "", "push broker URL (overrides BROKER_URL)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "access token (overrides the stored login)")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(unreadCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(serveCmd)
}
