package observability

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/tphakala/audioloop/internal/errors"
	"github.com/tphakala/audioloop/internal/logger"
	metricspkg "github.com/tphakala/audioloop/internal/observability/metrics"
)

const readHeaderTimeout = 5 * time.Second

// Endpoint serves /metrics over HTTP.
type Endpoint struct {
	listenAddress string
	metrics       *Metrics
}

// NewEndpoint creates an endpoint for metrics on listenAddress
// (host:port, port 0 picks a free port).
func NewEndpoint(listenAddress string, metrics *Metrics) *Endpoint {
	return &Endpoint{
		listenAddress: listenAddress,
		metrics:       metrics,
	}
}

// Run listens on the configured address and serves until ctx is done.
func (e *Endpoint) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", e.listenAddress)
	if err != nil {
		return err
	}
	return e.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts the server down
// gracefully. ln is closed on return.
func (e *Endpoint) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Metrics endpoint starting", logger.String("address", ln.Addr().String()))
		serveErr <- server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Stopping metrics endpoint")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Metrics server shutdown error", logger.Error(err))
		return err
	}
	<-serveErr
	return nil
}
