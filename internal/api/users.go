package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/assettrack/internal/auth"
	"github.com/erazemk/assettrack/internal/model"
	"github.com/erazemk/assettrack/internal/store"
)

// UsersHandler handles user management endpoints (admin only).
type UsersHandler struct {
	*Deps
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
	RoleID   *int64 `json:"roleId"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, req *Request) {
	page, err := parsePage(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, total, err := store.ListUsers(req.Context(), h.DB, page)
	if err != nil {
		h.fail(w, req.Request, err, "failed to list users")
		return
	}
	jsonResponse(w, http.StatusOK, listResponse("users", nonNil(users), total, page))
}

// Create handles POST /api/users. The role is given by name or by ID and
// defaults to User.
func (h *UsersHandler) Create(w http.ResponseWriter, req *Request) {
	var body createUserRequest
	if err := decodeJSON(req.Request, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.Username == "" || body.Password == "" {
		jsonError(w, http.StatusBadRequest, "username and password required")
		return
	}
	if err := model.ValidatePassword(body.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	var role *model.Role
	var err error
	switch {
	case body.RoleID != nil:
		role, err = store.GetRole(req.Context(), h.DB, *body.RoleID)
	case body.Role != "":
		role, err = store.GetRoleByName(req.Context(), h.DB, body.Role)
	default:
		role, err = store.GetRoleByName(req.Context(), h.DB, model.RoleUser)
	}
	if err != nil {
		h.fail(w, req.Request, err, "failed to look up role")
		return
	}
	if role == nil {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		h.fail(w, req.Request, err, "failed to hash password")
		return
	}

	user, err := store.InsertUser(req.Context(), h.DB, &model.User{
		Username:     body.Username,
		Email:        body.Email,
		FullName:     body.FullName,
		PasswordHash: hash,
		RoleID:       role.ID,
		IsActive:     true,
	})
	if err != nil {
		h.fail(w, req.Request, err, "failed to create user")
		return
	}

	h.record(req, model.ActionCreate, "User", user.ID, nil, user)
	slog.Info("user created", "user", req.Principal.Username, "new_user", user.Username, "role", user.Role)
	jsonResponse(w, http.StatusCreated, map[string]any{"message": "user created", "user": user})
}

// Get handles GET /api/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := store.GetUser(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get user")
		return
	}
	if user == nil || user.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{"user": user})
}

// Update handles PUT /api/users/{id}.
func (h *UsersHandler) Update(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var body store.UserUpdate
	if err := decodeJSON(req.Request, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if id == req.Principal.UserID && body.IsActive != nil && !*body.IsActive {
		jsonError(w, http.StatusBadRequest, "cannot deactivate yourself")
		return
	}

	previous, err := store.GetUser(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get user")
		return
	}

	user, err := store.UpdateUser(req.Context(), h.DB, id, body)
	if err != nil {
		h.fail(w, req.Request, err, "failed to update user")
		return
	}

	h.record(req, model.ActionUpdate, "User", id, previous, user)
	slog.Info("user updated", "user", req.Principal.Username, "target_user", user.Username, "role", user.Role)
	jsonResponse(w, http.StatusOK, map[string]any{"message": "user updated", "user": user})
}

// ResetPassword handles PUT /api/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var body resetPasswordRequest
	if err := decodeJSON(req.Request, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.Password == "" {
		jsonError(w, http.StatusBadRequest, "password required")
		return
	}
	if err := model.ValidatePassword(body.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		h.fail(w, req.Request, err, "failed to hash password")
		return
	}

	if err := store.UpdateUserPassword(req.Context(), h.DB, id, hash); err != nil {
		h.fail(w, req.Request, err, "failed to reset password")
		return
	}

	h.record(req, model.ActionUpdate, "User", id, nil, map[string]string{"password": "reset"})
	slog.Info("user password reset", "user", req.Principal.Username, "target_user_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if req.Principal.UserID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	target, err := store.GetUser(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get user")
		return
	}

	if err := store.DeleteUser(req.Context(), h.DB, id); err != nil {
		h.fail(w, req.Request, err, "failed to delete user")
		return
	}

	h.record(req, model.ActionDelete, "User", id, target, nil)
	slog.Info("user deleted", "user", req.Principal.Username, "deleted_user", target.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
