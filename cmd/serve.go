package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/davidbz/uniai/internal/http"
	"github.com/davidbz/uniai/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return buildContainer().Invoke(func(server *http.Server) error {
				errc := make(chan error, 1)
				go func() {
					errc <- server.Start()
				}()

				select {
				case err := <-errc:
					return err
				case <-ctx.Done():
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					observability.FromContext(shutdownCtx).Error("shutdown failed", observability.Error(err))
					return fmt.Errorf("shutdown: %w", err)
				}
				return <-errc
			})
		},
	}
}
