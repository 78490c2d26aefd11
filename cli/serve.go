package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevemurr/school-directory/handler"
	"github.com/stevemurr/school-directory/viewmodel"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the directory over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts, cmd)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	e, err := openEnv(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	logger := e.log.With().Str("component", "server").Logger()
	adapter := viewmodel.New(ctx, e.records, viewmodel.WithLogger(e.log.With().Str("component", "viewmodel").Logger()))
	if msg := adapter.Err(); msg != "" {
		logger.Warn().Str("error", msg).Msg("initial load failed; serving with an empty list")
	}

	h := handler.New(adapter,
		handler.WithLogger(logger),
		handler.WithAllowedOrigins(e.cfg.Server.AllowedOrigins),
	)
	srv := &http.Server{
		Addr:              e.cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("store", e.cfg.Store.Backend).
			Str("data_dir", e.cfg.Store.DataDir).
			Msg("School Directory starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
		}
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
