// Package health reports liveness and database readiness over HTTP and
// mirrors readiness into the gRPC health service.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the gRPC health service name for the API.
const Service = "events.v1.EventService"

type Pinger interface {
	Ping(ctx context.Context) error
}

type Checker struct {
	db      Pinger
	grpc    *health.Server
	timeout time.Duration
	logger  zerolog.Logger
}

func NewChecker(db Pinger, grpc *health.Server, logger zerolog.Logger) *Checker {
	return &Checker{
		db:      db,
		grpc:    grpc,
		timeout: 2 * time.Second,
		logger:  logger.With().Str("component", "health").Logger(),
	}
}

// Check pings the database and updates the gRPC serving status to match.
func (c *Checker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.db.Ping(ctx)
	status := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	if c.grpc != nil {
		c.grpc.SetServingStatus("", status)
		c.grpc.SetServingStatus(Service, status)
	}
	return err
}

// Watch re-checks readiness every interval until ctx ends.
func (c *Checker) Watch(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err := c.Check(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn().Err(err).Msg("database not ready")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (c *Checker) Healthz(w http.ResponseWriter, _ *http.Request) {
	write(w, http.StatusOK, "ok")
}

func (c *Checker) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := c.Check(r.Context()); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("readiness check failed")
		write(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	write(w, http.StatusOK, "ok")
}

func write(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
