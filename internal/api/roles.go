package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/assettrack/internal/model"
	"github.com/erazemk/assettrack/internal/store"
)

// RolesHandler handles role management endpoints.
type RolesHandler struct {
	*Deps
}

type roleRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Permissions model.Permissions `json:"permissions"`
}

// List handles GET /api/roles.
func (h *RolesHandler) List(w http.ResponseWriter, req *Request) {
	roles, err := store.ListRoles(req.Context(), h.DB)
	if err != nil {
		h.fail(w, req.Request, err, "failed to list roles")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"roles": nonNil(roles)})
}

// Create handles POST /api/roles.
func (h *RolesHandler) Create(w http.ResponseWriter, req *Request) {
	var body roleRequest
	if err := decodeJSON(req.Request, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	role, err := store.CreateRole(req.Context(), h.DB, body.Name, body.Description, body.Permissions)
	if err != nil {
		h.fail(w, req.Request, err, "failed to create role")
		return
	}

	h.record(req, model.ActionCreate, "Role", role.ID, nil, role)
	slog.Info("role created", "user", req.Principal.Username, "role", role.Name)
	jsonResponse(w, http.StatusCreated, map[string]any{"message": "role created", "role": role})
}

// Get handles GET /api/roles/{id}.
func (h *RolesHandler) Get(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid role id")
		return
	}

	role, err := store.GetRole(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get role")
		return
	}
	if role == nil {
		jsonError(w, http.StatusNotFound, "role not found")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"role": role})
}

// Update handles PUT /api/roles/{id}. Omitted fields keep their values.
func (h *RolesHandler) Update(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid role id")
		return
	}

	previous, err := store.GetRole(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get role")
		return
	}
	if previous == nil {
		jsonError(w, http.StatusNotFound, "role not found")
		return
	}

	body := roleRequest{
		Name:        previous.Name,
		Description: previous.Description,
		Permissions: previous.Permissions,
	}
	if err := decodeJSON(req.Request, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	role, err := store.UpdateRole(req.Context(), h.DB, id, body.Name, body.Description, body.Permissions)
	if err != nil {
		h.fail(w, req.Request, err, "failed to update role")
		return
	}

	h.record(req, model.ActionUpdate, "Role", id, previous, role)
	slog.Info("role updated", "user", req.Principal.Username, "role", role.Name)
	jsonResponse(w, http.StatusOK, map[string]any{"message": "role updated", "role": role})
}

// Delete handles DELETE /api/roles/{id}.
func (h *RolesHandler) Delete(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid role id")
		return
	}

	previous, err := store.GetRole(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get role")
		return
	}

	if err := store.DeleteRole(req.Context(), h.DB, id); err != nil {
		h.fail(w, req.Request, err, "failed to delete role")
		return
	}

	h.record(req, model.ActionDelete, "Role", id, previous, nil)
	slog.Info("role deleted", "user", req.Principal.Username, "role_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "role deleted"})
}
