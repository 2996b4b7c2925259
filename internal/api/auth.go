package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/assettrack/internal/auth"
	"github.com/erazemk/assettrack/internal/authz"
	"github.com/erazemk/assettrack/internal/model"
	"github.com/erazemk/assettrack/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	*Deps
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message   string      `json:"message"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := store.GetUserByUsername(r.Context(), h.DB, req.Username)
	if err != nil {
		h.fail(w, r, err, "failed to log in")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		slog.Warn("login failed", "username", req.Username, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.IsActive {
		slog.Warn("login to inactive account", "username", req.Username, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "account is disabled")
		return
	}

	token, claims, err := h.Issuer.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		h.fail(w, r, err, "failed to generate token")
		return
	}

	if err := store.TouchLastLogin(r.Context(), h.DB, user.ID); err != nil {
		slog.Error("failed to record login time", "user", user.Username, "error", err)
	}

	scope := &Request{
		Request:   r,
		Principal: &authz.Principal{UserID: user.ID, Username: user.Username, Role: user.Role},
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
	h.record(scope, model.ActionLogin, "User", user.ID, nil, nil)

	slog.Info("user logged in", "user", user.Username, "role", user.Role)
	jsonResponse(w, http.StatusOK, loginResponse{
		Message:   "login successful",
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      user,
	})
}

// Logout handles POST /api/auth/logout. The token stays revoked until it
// would have expired anyway.
func (h *AuthHandler) Logout(w http.ResponseWriter, req *Request) {
	if err := store.RevokeToken(req.Context(), h.DB, req.Claims.ID, req.Claims.ExpiresAt.Time); err != nil {
		h.fail(w, req.Request, err, "failed to log out")
		return
	}

	slog.Info("user logged out", "user", req.Principal.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, req *Request) {
	user, err := store.GetUser(req.Context(), h.DB, req.Principal.UserID)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get user")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"user":        user,
		"permissions": req.Principal.Permissions,
	})
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, req *Request) {
	var body changePasswordRequest
	if err := decodeJSON(req.Request, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.CurrentPassword == "" || body.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}
	if err := model.ValidatePassword(body.NewPassword); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := store.GetUser(req.Context(), h.DB, req.Principal.UserID)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get user")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, body.CurrentPassword) {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(body.NewPassword)
	if err != nil {
		h.fail(w, req.Request, err, "failed to hash password")
		return
	}

	if err := store.UpdateUserPassword(req.Context(), h.DB, user.ID, hash); err != nil {
		h.fail(w, req.Request, err, "failed to update password")
		return
	}

	h.record(req, model.ActionUpdate, "User", user.ID, nil, map[string]string{"password": "changed"})
	slog.Info("user changed own password", "user", user.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}
