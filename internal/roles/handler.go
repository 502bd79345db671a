package roles

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

// Handler exposes the role and permission admin API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers role admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{roleID}", h.get)
	r.Put("/{roleID}", h.update)
	r.Delete("/{roleID}", h.delete)
	r.Get("/{roleID}/permissions", h.rolePermissions)
	r.Put("/{roleID}/permissions", h.setPermissions)
	r.Post("/{roleID}/assignments", h.assign)
	r.Delete("/{roleID}/assignments/{principalID}", h.remove)
}

// MountPermissionRoutes registers permission catalog routes.
func (h *Handler) MountPermissionRoutes(r chi.Router) {
	r.Get("/", h.permissions)
	r.Put("/", h.ensurePermission)
}

type createRoleRequest struct {
	Code     string `json:"code" validate:"required,max=64,lowercase"`
	Name     string `json:"name" validate:"required,max=120"`
	Level    int    `json:"level" validate:"gte=0,lte=99"`
	TenantID string `json:"tenant_id" validate:"omitempty,uuid"`
}

type updateRoleRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Level int    `json:"level" validate:"gte=0,lte=99"`
}

type setPermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" validate:"required,dive,uuid"`
}

type assignRoleRequest struct {
	PrincipalID string `json:"principal_id" validate:"required,uuid"`
}

type ensurePermissionRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Scope       string `json:"scope" validate:"required"`
	Description string `json:"description" validate:"max=255"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.List(r.Context(), shared.PrincipalFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	role, err := h.service.Get(r.Context(), shared.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.Create(r.Context(), shared.PrincipalFromContext(r.Context()), CreateInput{
		Code:     req.Code,
		Name:     req.Name,
		Level:    req.Level,
		TenantID: req.TenantID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.Update(r.Context(), shared.PrincipalFromContext(r.Context()), id, req.Name, req.Level)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), shared.PrincipalFromContext(r.Context()), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	perms, err := h.service.RolePermissions(r.Context(), shared.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) setPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req setPermissionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	ids := make([]uuid.UUID, 0, len(req.PermissionIDs))
	for _, raw := range req.PermissionIDs {
		pid, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid permission id")
			return
		}
		ids = append(ids, pid)
	}
	if err := h.service.SetPermissions(r.Context(), shared.PrincipalFromContext(r.Context()), id, ids); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req assignRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.Assign(r.Context(), shared.PrincipalFromContext(r.Context()), req.PrincipalID, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	subjectID := chi.URLParam(r, "principalID")
	if _, err := uuid.Parse(subjectID); err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
		return
	}
	if err := h.service.Remove(r.Context(), shared.PrincipalFromContext(r.Context()), subjectID, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) permissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.Permissions(r.Context(), shared.PrincipalFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) ensurePermission(w http.ResponseWriter, r *http.Request) {
	var req ensurePermissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	perm, err := h.service.EnsurePermission(r.Context(), shared.PrincipalFromContext(r.Context()),
		req.Name, req.Scope, req.Description)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidPermissionName), errors.Is(err, ErrInvalidPermissionScope):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDuplicateCode):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
