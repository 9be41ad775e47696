package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/trainbooking/config"
	"github.com/Domenick1991/trainbooking/internal/logger"
)

const shutdownTimeout = 5 * time.Second

// Run serves handler on the configured address and blocks until ctx is
// canceled or the server fails.
func Run(ctx context.Context, cfg *config.Config, handler http.Handler, log *logger.Logger) error {
	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP", fmt.Sprintf("listening on %s", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		log.Info("HTTP", "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}
