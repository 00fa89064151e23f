package command

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"libraryhub/internal/statusapi"
)

var servePort int

// serveCmd exposes the live notification feed to local tools
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve your notifications on a local HTTP API",
	Long: `Keep a live notification feed and expose it on 127.0.0.1 for other local
tools: the list and unread count, read and delete actions, and a
server-sent event stream at /api/notifications/stream.

Requests must carry the same bearer token the CLI uses.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		gin.SetMode(ginMode(cfg.IsDevelopment()))
		port := cfg.StatusPort
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		feed := statusapi.NewFeed()
		s, err := openSession(feed.Toaster())
		if err != nil {
			return err
		}
		defer s.close()
		handler := statusapi.NewNotificationHandler(s.store, feed, cfg.PageSize)

		router := statusapi.NewRouter(handler, s.creds.AccessToken, s.creds.UserID, logger)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return statusapi.Serve(gctx, router, port, logger)
		})
		g.Go(func() error {
			return runLive(gctx, s, func() {
				fmt.Printf("🚀 Status API on http://127.0.0.1:%d/api/notifications\n", port)
			})
		})
		return g.Wait()
	},
}

// ginMode prints gin's route table and per-request debug lines only while
// developing.
func ginMode(development bool) string {
	if development {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port for the local API (default STATUS_PORT)")
}
