package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trendscope/internal/config"
	"trendscope/internal/logger"
	"trendscope/internal/server"
)

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port    int
		host    string
		noRelay bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API for the browser dashboard",
		Long: `Start the trendscope HTTP server.

The server provides:
  • A JSON API driving the two-tab dashboard (search, filter, insights, questions, posts)
  • Bookmarks, export and the saved Membit credential
  • A /relay passthrough to the Membit API for browsers blocked by CORS
  • A /health endpoint

Each browser gets its own dashboard session, tracked by a cookie.

Examples:
  # Start server on default port 8080
  trendscope serve

  # Listen on all interfaces on a custom port
  trendscope serve --host 0.0.0.0 --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host, noRelay)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 127.0.0.1)")
	cmd.Flags().BoolVar(&noRelay, "no-relay", false, "Disable the /relay passthrough")

	return cmd
}

func runServe(ctx context.Context, port int, host string, noRelay bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.Get()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	serverCfg := a.cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	sessions := server.NewSessionManager(a.newSession)
	pruneCtx, stopPruner := context.WithCancel(ctx)
	defer stopPruner()
	go sessions.RunPruner(pruneCtx, 10*time.Minute, 12*time.Hour)

	srv := server.New(sessions, a.cache, server.Options{
		Host:         serverCfg.Host,
		Port:         serverCfg.Port,
		ReadTimeout:  config.Duration(serverCfg.ReadTimeout, 15*time.Second),
		WriteTimeout: config.Duration(serverCfg.WriteTimeout, 90*time.Second),
		CORSOrigins:  serverCfg.CORSOrigins,
		RelayEnabled: serverCfg.RelayEnabled && !noRelay,
		RelayBaseURL: a.cfg.Membit.BaseURL,
		RelayTimeout: config.Duration(a.cfg.Membit.Timeout, 30*time.Second),
	})

	serverErrors := make(chan error, 1)

	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		log.Info("Press Ctrl+C to stop")
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(serverCfg.ShutdownTimeout, 10*time.Second))
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed, forcing close", err)
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		log.Info("Server stopped successfully")
	}

	return nil
}
