package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "arklicense/internal/errors"
	"arklicense/internal/license"
	"arklicense/internal/services"
)

// AdminHandler serves the token-gated admin API. The AdminAuth middleware
// runs before any of these handlers.
type AdminHandler struct {
	service services.AdminService
	logger  *slog.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(service services.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "admin")),
	}
}

// UpsertRequest creates or wholesale-replaces a license record. Omitted
// fields take their defaults: active true, plan "monthly", one seat.
type UpsertRequest struct {
	Key         string `json:"key" validate:"required"`
	Active      *bool  `json:"active"`
	Plan        string `json:"plan"`
	ExpiresUnix int64  `json:"expires_unix" validate:"gt=0"`
	Seats       *int   `json:"seats" validate:"omitempty,min=1"`
}

// Bind implements the render.Binder interface.
func (u *UpsertRequest) Bind(r *http.Request) error {
	if err := validateStruct(u); err != nil {
		return err
	}
	if u.Active == nil {
		active := true
		u.Active = &active
	}
	if u.Plan == "" {
		u.Plan = license.DefaultPlan
	}
	if u.Seats == nil {
		seats := 1
		u.Seats = &seats
	}
	return nil
}

// RemoveMachineRequest frees the seat bound to a machine.
type RemoveMachineRequest struct {
	Key     string `json:"key" validate:"required"`
	Machine string `json:"machine" validate:"required"`
}

// Bind implements the render.Binder interface.
func (m *RemoveMachineRequest) Bind(r *http.Request) error {
	return validateStruct(m)
}

// UpsertResponse acknowledges a successful upsert.
type UpsertResponse struct {
	OK     bool           `json:"ok"`
	Record license.Record `json:"record"`
}

// RemoveMachineResponse returns the remaining bound machines.
type RemoveMachineResponse struct {
	OK       bool     `json:"ok"`
	Machines []string `json:"machines"`
}

// ListResponse enumerates all license keys.
type ListResponse struct {
	Keys  []string `json:"keys"`
	Count int      `json:"count"`
}

// Routes returns a chi router for the admin endpoints.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/upsert", h.Upsert)
	r.Post("/remove_machine", h.RemoveMachine)
	r.Get("/get/{key}", h.Get)
	r.Get("/list", h.List)
	return r
}

// Upsert handles POST /admin/upsert.
func (h *AdminHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := &UpsertRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, apierrors.ErrInvalidRequest(err.Error()))
		return
	}

	rec, err := h.service.Upsert(ctx, data.Key, *data.Active, data.Plan, data.ExpiresUnix, *data.Seats)
	if err != nil {
		h.logger.ErrorContext(ctx, "upsert failed", slog.String("error", err.Error()))
		render.Render(w, r, mapDomainError(err))
		return
	}

	render.JSON(w, r, UpsertResponse{OK: true, Record: rec})
}

// RemoveMachine handles POST /admin/remove_machine.
func (h *AdminHandler) RemoveMachine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := &RemoveMachineRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, apierrors.ErrInvalidRequest(err.Error()))
		return
	}

	rec, err := h.service.RemoveMachine(ctx, data.Key, data.Machine)
	if err != nil {
		render.Render(w, r, mapDomainError(err))
		return
	}

	render.JSON(w, r, RemoveMachineResponse{OK: true, Machines: rec.Machines})
}

// Get handles GET /admin/get/{key}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	rec, err := h.service.Get(ctx, key)
	if err != nil {
		render.Render(w, r, mapDomainError(err))
		return
	}

	render.JSON(w, r, rec)
}

// List handles GET /admin/list.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	keys, err := h.service.List(ctx)
	if err != nil {
		render.Render(w, r, mapDomainError(err))
		return
	}

	render.JSON(w, r, ListResponse{Keys: keys, Count: len(keys)})
}
