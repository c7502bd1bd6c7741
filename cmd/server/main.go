package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"event-management-api/internal/auth"
	"event-management-api/internal/config"
	"event-management-api/internal/handler"
	eventshealth "event-management-api/internal/health"
	"event-management-api/internal/metrics"
	"event-management-api/internal/middleware"
	"event-management-api/internal/notify"
	"event-management-api/internal/registration"
	"event-management-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger := config.NewLogger(cfg.Logging)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// schema
	if err := store.MigrateUp(cfg.Database.URL); err != nil {
		return err
	}
	logger.Info().Msg("migrations applied")

	// database
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	logger.Info().Msg("connected to postgres")

	if err := notify.Migrate(ctx, pool); err != nil {
		return err
	}

	// job queue
	mailer := notify.NewMailer(cfg.Mail, logger)
	workers := river.NewWorkers()
	river.AddWorker(workers, notify.NewRegistrationEmailWorker(mailer, cfg.Mail.SendTimeout, logger))
	jobs, err := notify.NewClient(pool, workers, cfg.Jobs, config.NewSlogLogger(cfg.Logging), logger)
	if err != nil {
		return err
	}
	// cancelling River's start context aborts running jobs; Stop drains them
	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	if err := jobs.Start(jobsCtx); err != nil {
		return err
	}

	st := store.New(pool)
	engine := registration.New(st, notify.NewEnqueuer(jobs), logger)
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	rl := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	defer rl.Close()

	// health
	healthServer := health.NewServer()
	checker := eventshealth.NewChecker(st, healthServer, logger)
	go checker.Watch(ctx, 10*time.Second)

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		return err
	}
	go func() {
		logger.Info().Str("port", cfg.Server.GRPCPort).Msg("grpc health listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("grpc health")
		}
	}()

	// http
	mux := http.NewServeMux()
	handler.New(st, engine, issuer, cfg.Environment).Routes(mux, rl)
	mux.HandleFunc("GET /healthz", checker.Healthz)
	mux.HandleFunc("GET /readyz", checker.Readyz)
	mux.Handle("GET /metrics", metrics.Handler())

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           middleware.CorrelationID(logger)(middleware.RequestLogging()(middleware.Metrics(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Server.Port).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	serveErr := awaitShutdown(ctx, errCh)

	// graceful shutdown
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	healthServer.Shutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	grpcServer.GracefulStop()
	if err := jobs.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("job queue shutdown")
	}
	return serveErr
}

// awaitShutdown blocks until a signal arrives or the HTTP server fails; only
// the latter is an error.
func awaitShutdown(ctx context.Context, errCh <-chan error) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}
