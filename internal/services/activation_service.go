package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"arklicense/internal/infrastructure"
	"arklicense/internal/license"
	"arklicense/internal/store"
	"arklicense/internal/token"
)

// ActivationService is the sole entry point the network layer uses for
// activation requests.
type ActivationService interface {
	// Activate binds rawMachineID's canonical fingerprint to the license
	// key and returns a signed entitlement token.
	Activate(ctx context.Context, licenseKey, appID, rawMachineID string) (*ActivationResult, error)
}

// ActivationResult is the outcome of a successful activation.
type ActivationResult struct {
	Token       string
	ExpiresAt   time.Time
	Fingerprint string
	Plan        string
}

type activationService struct {
	store   *store.Store
	issuer  *token.Issuer
	appID   string
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
	now     func() time.Time
}

// NewActivationService creates the activation orchestrator.
func NewActivationService(st *store.Store, issuer *token.Issuer, appID string, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) ActivationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &activationService{
		store:   st,
		issuer:  issuer,
		appID:   appID,
		logger:  logger.With(slog.String("service", "activation")),
		metrics: metrics,
		now:     time.Now,
	}
}

// Activate runs the activation sequence. Check ordering is significant so a
// caller can distinguish wrong-app from bad-key from expired from seat-full:
// app identity first, then license state, then machine specifics, then token
// minting. The seat binding and its persistence happen inside a single store
// transaction; a client never receives a token for a binding that did not
// survive to durable storage.
func (s *activationService) Activate(ctx context.Context, licenseKey, appID, rawMachineID string) (*ActivationResult, error) {
	tracer := otel.Tracer("activation-service")
	ctx, span := tracer.Start(ctx, "activation.activate",
		trace.WithAttributes(
			attribute.String("app.id", appID),
		),
	)
	defer span.End()

	if appID != s.appID {
		s.fail(ctx, span, "app_mismatch")
		return nil, license.ErrAppMismatch
	}

	fingerprint := license.NormalizeMachineID(rawMachineID)
	if fingerprint != "" {
		span.SetAttributes(attribute.String("license.machine", fingerprint))
	}

	now := s.now()
	var bound bool
	rec, err := s.store.Mutate(licenseKey, func(rec *license.Record, exists bool) (bool, error) {
		if !exists {
			return false, license.ErrInvalidKey
		}
		if !rec.Active {
			return false, license.ErrInactive
		}
		if rec.Expired(now) {
			return false, license.ErrExpired
		}
		if fingerprint == "" {
			return false, license.ErrBadMachineID
		}
		changed, err := license.Bind(rec, fingerprint)
		bound = changed
		return changed, err
	})
	if err != nil {
		s.fail(ctx, span, failureReason(err))
		return nil, err
	}

	issued, err := s.issuer.Issue(licenseKey, fingerprint, rec.Plan, time.Unix(rec.ExpiresUnix, 0))
	if err != nil {
		s.fail(ctx, span, "signing_error")
		s.logger.ErrorContext(ctx, "token signing failed",
			slog.String("error", err.Error()))
		return nil, err
	}

	s.metrics.RecordActivation(ctx, "")
	if bound {
		s.metrics.RecordSeatBound(ctx)
	}
	span.SetAttributes(
		attribute.Bool("activation.success", true),
		attribute.Int("license.seats_left", rec.SeatsLeft()),
	)
	s.logger.InfoContext(ctx, "license activated",
		slog.String("machine", fingerprint),
		slog.String("plan", rec.Plan),
		slog.Int("bound_machines", len(rec.Machines)),
		slog.Time("token_expires_at", issued.ExpiresAt))

	return &ActivationResult{
		Token:       issued.Token,
		ExpiresAt:   issued.ExpiresAt,
		Fingerprint: fingerprint,
		Plan:        rec.Plan,
	}, nil
}

func (s *activationService) fail(ctx context.Context, span trace.Span, reason string) {
	s.metrics.RecordActivation(ctx, reason)
	span.SetAttributes(
		attribute.Bool("activation.success", false),
		attribute.String("activation.failure_reason", reason),
	)
	s.logger.InfoContext(ctx, "license activation rejected",
		slog.String("reason", reason))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, license.ErrInvalidKey):
		return "invalid_key"
	case errors.Is(err, license.ErrInactive):
		return "inactive"
	case errors.Is(err, license.ErrExpired):
		return "expired"
	case errors.Is(err, license.ErrSeatLimit):
		return "seat_limit"
	case errors.Is(err, license.ErrBadMachineID):
		return "bad_machine_id"
	case errors.Is(err, store.ErrPersist):
		return "persist_error"
	default:
		return "internal_error"
	}
}
