package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apierrors "arklicense/internal/errors"
	"arklicense/internal/infrastructure"
	"arklicense/internal/services"
)

// ActivationHandler serves the public activation endpoint.
type ActivationHandler struct {
	service services.ActivationService
	logger  *slog.Logger
}

// NewActivationHandler creates the activation handler.
func NewActivationHandler(service services.ActivationService, logger *slog.Logger) *ActivationHandler {
	return &ActivationHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "activation")),
	}
}

// ActivationRequest is the activation payload. Older clients send the
// machine identifier under "fingerprint"; "machine" wins when both appear.
type ActivationRequest struct {
	Key         string `json:"key" validate:"required"`
	App         string `json:"app"`
	Machine     string `json:"machine"`
	Fingerprint string `json:"fingerprint"`
}

// Bind implements the render.Binder interface.
func (a *ActivationRequest) Bind(r *http.Request) error {
	if a.Machine == "" {
		a.Machine = a.Fingerprint
	}
	if err := validateStruct(a); err != nil {
		return err
	}
	if a.Machine == "" {
		return errors.New("machine is required")
	}
	return nil
}

// ActivationResponse carries the signed entitlement token. Expires is the
// unix timestamp of the token's expiry.
type ActivationResponse struct {
	Token   string `json:"token"`
	Expires int64  `json:"expires"`
}

// Routes returns a chi router for the activation endpoint.
func (h *ActivationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/activate", h.Activate)
	return r
}

// Activate handles POST /api/activate.
func (h *ActivationHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("activation-handler")
	start := time.Now()

	ctx, span := tracer.Start(ctx, "activation_handler.activate",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/activate"),
		),
	)
	defer span.End()

	data := &ActivationRequest{}
	if err := render.Bind(r, data); err != nil {
		span.RecordError(err)
		h.logger.InfoContext(ctx, "activation request rejected at binding",
			slog.String("error", err.Error()),
			slog.String("trace_id", infrastructure.GetTraceID(ctx)))
		render.Render(w, r, apierrors.ErrInvalidRequest(err.Error()))
		return
	}

	result, err := h.service.Activate(ctx, data.Key, data.App, data.Machine)
	if err != nil {
		span.RecordError(err)
		render.Render(w, r, mapDomainError(err))
		return
	}

	span.SetAttributes(
		attribute.Bool("activation.success", true),
		attribute.Int64("request.latency_ms", time.Since(start).Milliseconds()),
	)

	render.JSON(w, r, ActivationResponse{
		Token:   result.Token,
		Expires: result.ExpiresAt.Unix(),
	})
}
