package handler

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for bookwyrm.
const ServiceName = "bookwyrm.Books"

// Pinger checks a dependency the server cannot work without.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthReporter keeps the gRPC health status in line with database reachability.
type HealthReporter struct {
	server   *health.Server
	db       Pinger
	interval time.Duration
	logger   *slog.Logger
}

func NewHealthReporter(db Pinger, interval time.Duration, logger *slog.Logger) *HealthReporter {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HealthReporter{
		server:   health.NewServer(),
		db:       db,
		interval: interval,
		logger:   logger.With("component", "health"),
	}
}

// Server is the health service to register on a grpc.Server.
func (h *HealthReporter) Server() healthpb.HealthServer {
	return h.server
}

// Check pings the database once and publishes the result.
func (h *HealthReporter) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("database ping failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
	return status
}

// Run re-checks on every interval until ctx is done, then reports NOT_SERVING.
func (h *HealthReporter) Run(ctx context.Context) error {
	h.Check(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return nil
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}
