package services

import (
	"context"
	"log/slog"

	"arklicense/internal/infrastructure"
	"arklicense/internal/license"
	"arklicense/internal/store"
)

// AdminService exposes license key lifecycle operations. Authentication is
// enforced by the transport layer before any of these are reached.
//
// Writes are last-writer-wins: concurrent admin writes to the same key may
// race. That is an accepted limitation at expected admin volume.
type AdminService interface {
	// Upsert replaces the scalar fields of the record wholesale, creating
	// it when absent. Bound machines are preserved but renormalized.
	Upsert(ctx context.Context, key string, active bool, plan string, expiresUnix int64, seats int) (license.Record, error)
	// RemoveMachine frees the seat bound to the canonical form of machine.
	RemoveMachine(ctx context.Context, key, machine string) (license.Record, error)
	// Get returns the full record for key.
	Get(ctx context.Context, key string) (license.Record, error)
	// List returns all license keys.
	List(ctx context.Context) ([]string, error)
}

type adminService struct {
	store   *store.Store
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
}

// NewAdminService creates the admin orchestrator.
func NewAdminService(st *store.Store, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &adminService{
		store:   st,
		logger:  logger.With(slog.String("service", "admin")),
		metrics: metrics,
	}
}

func (s *adminService) Upsert(ctx context.Context, key string, active bool, plan string, expiresUnix int64, seats int) (license.Record, error) {
	s.metrics.RecordAdminOperation(ctx, "upsert")

	rec, err := s.store.UpsertFields(key, active, plan, expiresUnix, seats)
	if err != nil {
		s.logger.ErrorContext(ctx, "license upsert failed",
			slog.String("error", err.Error()))
		return rec, err
	}

	s.logger.InfoContext(ctx, "license upserted",
		slog.Bool("active", rec.Active),
		slog.String("plan", rec.Plan),
		slog.Int("seats", rec.Seats),
		slog.Int("bound_machines", len(rec.Machines)))
	return rec, nil
}

func (s *adminService) RemoveMachine(ctx context.Context, key, machine string) (license.Record, error) {
	s.metrics.RecordAdminOperation(ctx, "remove_machine")

	rec, err := s.store.RemoveMachine(key, machine)
	if err != nil {
		return rec, err
	}

	s.logger.InfoContext(ctx, "machine removed from license",
		slog.String("machine", license.NormalizeMachineID(machine)),
		slog.Int("bound_machines", len(rec.Machines)))
	return rec, nil
}

func (s *adminService) Get(ctx context.Context, key string) (license.Record, error) {
	s.metrics.RecordAdminOperation(ctx, "get")

	rec, ok, err := s.store.Get(key)
	if err != nil {
		return rec, err
	}
	if !ok {
		return rec, license.ErrNotFound
	}
	return rec, nil
}

func (s *adminService) List(ctx context.Context) ([]string, error) {
	s.metrics.RecordAdminOperation(ctx, "list")
	return s.store.List()
}
