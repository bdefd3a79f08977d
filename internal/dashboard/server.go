// Package dashboard exposes the HTTP surface: procurement intake, trace and
// scorecard queries, and a live event stream. It is a thin JSON layer over
// the supervisor, tracer, and learning engine.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tradewind/tradewind/internal/bus"
	"github.com/tradewind/tradewind/internal/learning"
	"github.com/tradewind/tradewind/internal/supervisor"
	"github.com/tradewind/tradewind/internal/trace"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Port     int
	Bus      *bus.Bus
	Sup      *supervisor.Agent
	Tracer   *trace.Tracer
	Engine   *learning.Engine
	Analyzer *learning.Analyzer // optional; analytics answer 503 without it
	Out      io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Bus == nil || opts.Sup == nil || opts.Tracer == nil || opts.Engine == nil {
		return fmt.Errorf("dashboard: bus, supervisor, tracer, and engine are required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Tradewind API running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
