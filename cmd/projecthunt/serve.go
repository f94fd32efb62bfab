package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/donovan0902/project-hunt/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run the HTTP/JSON API. Callers identify themselves with the X-Caller-ID
header, normally set by an authenticating proxy.

Examples:
  # Listen on the configured address
  projecthunt serve

  # Override the port
  PROJECTHUNT_SERVER_PORT=9000 projecthunt serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	defer func() { _ = a.Logger.Sync() }()

	srv, err := api.NewServer(a.Coordinator, a.Logger.Named("http"), &api.Config{
		Host: a.Config.Server.Host,
		Port: a.Config.Server.Port,
	})
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		a.Logger.Info("received shutdown signal")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("server error", zap.Error(err))
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
