package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tphakala/quack-go/internal/api"
	"github.com/tphakala/quack-go/internal/app"
	"github.com/tphakala/quack-go/internal/logger"
)

// Command creates the command that runs the engine and the HTTP API until
// interrupted.
func Command(rt *app.Runtime) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync engine and the HTTP API",
		Long:  "Keeps the catalog in sync with the configured server, maintains the daily selection and serves the HTTP API until SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				rt.Settings.WebServer.Listen = listen
			}
			return run(cmd.Context(), rt)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address of the HTTP API, overrides webserver.listen")

	return cmd
}

func run(ctx context.Context, rt *app.Runtime) error {
	log := logger.Global().Module("serve")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, rt.Settings, rt.Options()...)
	if err != nil {
		return fmt.Errorf("failed to start quack-go: %w", err)
	}
	defer a.Close()

	a.Start(ctx)

	if !rt.Settings.WebServer.Enabled {
		log.Info("web server disabled, running headless")
		<-ctx.Done()
		log.Info("shutdown signal received")
		return nil
	}

	server, err := api.New(api.ConfigFromSettings(rt.Settings), a, a.Settings(),
		api.WithLogger(log.Module("api")),
		api.WithMetricsHandler(a.Metrics().Handler()),
		api.WithVersion(rt.Build.GetVersion()))
	if err != nil {
		return err
	}
	server.Start()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-server.Errors():
		_ = server.Shutdown()
		return err
	}

	return server.Shutdown()
}
