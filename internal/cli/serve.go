package cli

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/toyz/keel/internal/errors"
	"github.com/toyz/keel/internal/utils"
	"github.com/toyz/keel/pkg/keel"
	"github.com/toyz/keel/pkg/keel/adapters"
)

// ShutdownTimeout bounds how long Serve waits for in-flight requests
const ShutdownTimeout = 5 * time.Second

// Serve mounts the inspection endpoints for report on the configured framework
// and serves them on config.Serve until ctx is done
func Serve(ctx context.Context, config Config, report *keel.Report, diagnostics *utils.DiagnosticSystem) error {
	server, err := adapters.New(config.framework())
	if err != nil {
		return errors.WrapConfigurationError("serve", "start", err)
	}
	keel.Mount(server, func() *keel.Report { return report })

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(config.Serve)
	}()
	diagnostics.Info("Serving %s%s on %s with %s", keel.InspectionPrefix, "/report", config.Serve, server.Name())

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.WrapWithOperation("serve", "report", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		diagnostics.Verbose("Stopping %s server", server.Name())
		return server.Stop(shutdownCtx)
	}
}
