package cmd

import (
	"context"
	"log/slog"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/nfrund/huddle/internal/app"
	"github.com/nfrund/huddle/internal/config"
	"github.com/nfrund/huddle/internal/logging"
	"github.com/nfrund/huddle/internal/pubsub"
	"github.com/nfrund/huddle/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.New()

		cfg, err := config.New()
		if err != nil {
			return err
		}

		injector := app.NewContainer(cfg)
		srv, err := do.Invoke[*server.Server](injector)
		if err != nil {
			return err
		}
		bridge := do.MustInvoke[*pubsub.WatermillBridge](injector)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			if err := srv.Run(ctx); err != nil {
				slog.Error("Server stopped", "error", err)
				os.Exit(1)
			}
		}()

		// Graceful shutdown
		wait := gfshutdown.GracefulShutdown(
			context.Background(),
			cfg.GetShutdownTimeout(),
			map[string]gfshutdown.Operation{
				"http": func(ctx context.Context) error {
					slog.Info("Graceful shutdown initiated...")
					cancel()
					return srv.Shutdown(ctx)
				},
				"bus": func(ctx context.Context) error {
					return bridge.Close()
				},
			},
		)

		exitCode := <-wait
		slog.Info("Server exited", "code", exitCode)
		os.Exit(exitCode)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
