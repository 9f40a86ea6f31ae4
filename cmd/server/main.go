// cmd/server/main.go
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	http_api "taskdispatch/internal/api/http"
	"taskdispatch/internal/config"
	"taskdispatch/internal/domain"
	"taskdispatch/internal/infra/etcd"
	"taskdispatch/internal/metrics"
	"taskdispatch/internal/reporting"
	"taskdispatch/internal/tracing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// recoverMiddleware wraps an http.Handler so a panic anywhere below it is
// logged and turned into a 500 instead of crashing the process. It only
// guards against genuine implementation bugs; documented client-input
// errors are still produced explicitly by the handlers as 400s.
func recoverMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("recovered from panic", "panic", rec, "path", r.URL.Path, "method", r.Method)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"internal error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	tracerShutdown, err := tracing.InitTracer("taskdispatch")
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			log.Printf("failed to shutdown tracer: %v", err)
		}
	}()

	log.Println("Starting task dispatch service...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupGracefulShutdown(cancel)

	audit := newAuditSink(cfg, logger)

	queue := domain.NewQueue(metrics.QueueObserver{})
	pauses := domain.NewPauseRegistry()

	reporter, err := reporting.NewReporter(cfg.StatsReportCron, queue, pauses, logger)
	if err != nil {
		log.Fatalf("Failed to schedule stats reporter: %v", err)
	}
	go reporter.Start(rootCtx)

	handler := http_api.NewHandler(queue, pauses, audit, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	log.Printf("Starting HTTP API server on %s", cfg.ListenAddr())
	server := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: recoverMiddleware(logger)(mux),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("Shutting down application gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP server shutdown failed: %v", err)
	}

	log.Println("Application shut down.")
}

// newAuditSink wires the etcd-backed audit sink when endpoints are
// configured, falling back to a no-op so the rest of the control plane
// never has to branch on whether auditing is enabled.
func newAuditSink(cfg *config.Config, logger *slog.Logger) domain.AuditSink {
	if len(cfg.EtcdEndpoints) == 0 {
		return domain.NoopAuditSink{}
	}

	client, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdTimeout)
	if err != nil {
		log.Printf("audit sink disabled: failed to connect to etcd: %v", err)
		return domain.NoopAuditSink{}
	}
	log.Println("Connected to etcd for audit trail.")
	return etcd.NewAuditSink(client, logger)
}

func setupGracefulShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v. Initiating graceful shutdown...", sig)
		cancel()
	}()
}
