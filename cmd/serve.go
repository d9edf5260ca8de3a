package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kylinctl/kylinctl/internal/api"
	"github.com/kylinctl/kylinctl/internal/service"
	"github.com/kylinctl/kylinctl/internal/ws"
)

var (
	servePort    int
	serveOrigins []string
	servePoll    time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON gateway for the project",
	Long: `Serve the project over HTTP: health, projects, datasources, queries and
jobs under /api, plus a websocket feed of job snapshots at /api/ws.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}

		port := cfg.Serve.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		origins := cfg.Serve.AllowedOrigins
		if cmd.Flags().Changed("allowed-origin") {
			origins = serveOrigins
		}
		interval := time.Duration(cfg.Serve.PollSeconds) * time.Second
		if cmd.Flags().Changed("poll") {
			interval = servePoll
		}

		// Graceful shutdown on signals
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hub := ws.NewHub(logger, origins...)
		go hub.Run(ctx)
		go hub.Poll(ctx, interval, func(ctx context.Context) (any, error) {
			return p.Jobs(ctx, service.JobFilter{TimeFilter: service.LastDay})
		})

		srv := api.New(p, logger, port,
			api.WithHub(hub),
			api.WithAllowedOrigins(origins),
		)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		fmt.Fprintf(os.Stderr, "kylinctl gateway for project %s: http://localhost:%d/api\n", p.Name(), port)

		select {
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return err
			}
		case <-ctx.Done():
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8470, "port for the gateway")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "allowed-origin", nil, "CORS origin allowed to call the gateway (repeatable)")
	serveCmd.Flags().DurationVar(&servePoll, "poll", 10*time.Second, "job snapshot interval of the websocket feed")
	rootCmd.AddCommand(serveCmd)
}
