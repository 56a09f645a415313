package services

import (
	"context"
	"log/slog"

	"arklicense/internal/store"
)

// HealthStatus is the liveness snapshot returned by the health endpoint.
// The store path stays out of it; operators read it from logs instead.
type HealthStatus struct {
	OK       bool   `json:"ok"`
	App      string `json:"app"`
	KeyCount int    `json:"keys"`
}

// HealthService reports service liveness and basic store statistics.
type HealthService interface {
	Health(ctx context.Context) HealthStatus
}

type healthService struct {
	store  *store.Store
	appID  string
	logger *slog.Logger
}

// NewHealthService creates the health checker.
func NewHealthService(st *store.Store, appID string, logger *slog.Logger) HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &healthService{
		store:  st,
		appID:  appID,
		logger: logger.With(slog.String("service", "health")),
	}
}

func (s *healthService) Health(ctx context.Context) HealthStatus {
	count, err := s.store.Count()
	if err != nil {
		// Count never fails today; an unreadable store loads as empty.
		s.logger.WarnContext(ctx, "health check could not count keys",
			slog.String("error", err.Error()))
	}
	return HealthStatus{
		OK:       true,
		App:      s.appID,
		KeyCount: count,
	}
}
