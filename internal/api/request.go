package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/erazemk/assettrack/internal/auth"
	"github.com/erazemk/assettrack/internal/authz"
	"github.com/erazemk/assettrack/internal/model"
	"github.com/erazemk/assettrack/internal/store"
)

// Request is the per-request scope built once by protect and handed to the
// policy check, the handler and the audit recorder.
type Request struct {
	*http.Request
	Principal *authz.Principal
	Claims    *auth.Claims
	IP        string
	UserAgent string
}

// HandlerFunc handles an authenticated request.
type HandlerFunc func(w http.ResponseWriter, req *Request)

// UserID returns the caller's ID as a nullable reference.
func (req *Request) UserID() *int64 {
	id := req.Principal.UserID
	return &id
}

// MovementActor describes the caller for movement lifecycle checks.
func (req *Request) MovementActor() store.MovementActor {
	return store.MovementActor{
		UserID:     req.Principal.UserID,
		IsAdmin:    req.Principal.IsAdmin(),
		CanApprove: req.Principal.Can(permMovementsApprove),
	}
}

var errNoToken = errors.New("missing or invalid authorization header")

// bearerToken reads the Authorization header. Browsers cannot set headers on
// websocket upgrades, so those may pass the token as a query parameter.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
		return token, nil
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
	}
	return "", errNoToken
}

// protect authenticates the request, loads the caller's current user and
// role from the database and applies policy before calling fn.
func (d *Deps) protect(policy authz.Policy, fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := d.Issuer.Verify(token)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		revoked, err := store.IsTokenRevoked(r.Context(), d.DB, claims.ID)
		if err != nil {
			d.fail(w, r, err, "failed to check token")
			return
		}
		if revoked {
			jsonError(w, http.StatusUnauthorized, "token has been revoked")
			return
		}

		user, err := store.GetUser(r.Context(), d.DB, claims.UserID)
		if err != nil {
			d.fail(w, r, err, "failed to load user")
			return
		}
		if user == nil || user.DeletedAt != nil || !user.IsActive {
			jsonError(w, http.StatusUnauthorized, "account is disabled or no longer exists")
			return
		}

		role, err := store.GetRole(r.Context(), d.DB, user.RoleID)
		if err != nil {
			d.fail(w, r, err, "failed to load role")
			return
		}
		principal := &authz.Principal{UserID: user.ID, Username: user.Username, Role: user.Role}
		if role != nil {
			principal.Permissions = role.Permissions
		}

		if !policy.Allow(principal) {
			slog.Warn("access denied", "user", user.Username, "role", user.Role,
				"policy", policy.String(), "method", r.Method, "path", r.URL.Path)
			jsonError(w, http.StatusForbidden, "insufficient permissions")
			return
		}

		fn(w, &Request{
			Request:   r,
			Principal: principal,
			Claims:    claims,
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// record queues an audit entry for a successful mutation. prev and next are
// stored as JSON snapshots; either may be nil.
func (d *Deps) record(req *Request, action, entityType string, entityID int64, prev, next any) {
	entry := &model.AuditLog{
		Action:         action,
		EntityType:     entityType,
		PreviousValues: snapshot(prev),
		NewValues:      snapshot(next),
		IPAddress:      req.IP,
		UserAgent:      req.UserAgent,
	}
	if entityID != 0 {
		entry.EntityID = &entityID
	}
	if req.Principal != nil {
		entry.UserID = req.UserID()
		entry.Username = req.Principal.Username
	}
	d.Audit.Record(entry)
}

func snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil
	}
	return b
}
