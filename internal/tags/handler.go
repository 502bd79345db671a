package tags

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stagedoor-hq/stagedoor/internal/platform/httpx"
	"github.com/stagedoor-hq/stagedoor/internal/shared"
)

// Handler exposes the tag API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers tag routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{tagID}", h.get)
	r.Put("/{tagID}", h.update)
	r.Delete("/{tagID}", h.delete)
}

type createTagRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	Slug      string `json:"slug" validate:"required,max=120,lowercase"`
	Scope     string `json:"scope" validate:"required"`
	TenantID  string `json:"tenant_id" validate:"omitempty,uuid"`
	AccountID string `json:"account_id" validate:"omitempty,uuid"`
	UserID    string `json:"user_id" validate:"omitempty,uuid"`
}

type updateTagRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	Slug string `json:"slug" validate:"required,max=120,lowercase"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createTagRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	tag, err := h.service.Create(r.Context(), shared.PrincipalFromContext(r.Context()), CreateInput{
		Name:      req.Name,
		Slug:      req.Slug,
		Scope:     req.Scope,
		TenantID:  req.TenantID,
		AccountID: req.AccountID,
		UserID:    req.UserID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tag)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.List(r.Context(), shared.PrincipalFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "tagID"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
		return
	}
	tag, err := h.service.Get(r.Context(), shared.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tag)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "tagID"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
		return
	}
	var req updateTagRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tag, err := h.service.Update(r.Context(), shared.PrincipalFromContext(r.Context()), id, req.Name, req.Slug)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tag)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "tagID"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
		return
	}
	if err := h.service.Delete(r.Context(), shared.PrincipalFromContext(r.Context()), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidScope), errors.Is(err, ErrInvalidIdentifiers):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDuplicateSlug):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
