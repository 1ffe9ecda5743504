package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/socialgraph-parser/internal/app"
)

// newServeCmd creates the serve command, which runs the HTTP API and the
// parser workers until SIGINT or SIGTERM.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the page intake API and the parser workers.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, e)
		},
	}
}

func runServe(ctx context.Context, e *env) (err error) {
	a, err := app.New(ctx, e.cfg, e.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()

	e.logger.Info("parser service starting", zap.Int("port", e.cfg.Server.Port))
	if err := a.Run(ctx); err != nil {
		return err
	}
	e.logger.Info("parser service stopped")
	return nil
}
