package api

import (
	"net/http"

	"github.com/erazemk/assettrack/internal/store"
)

// AuditHandler exposes the audit trail (admin only).
type AuditHandler struct {
	*Deps
}

// List handles GET /api/audit-logs.
func (h *AuditHandler) List(w http.ResponseWriter, req *Request) {
	page, err := parsePage(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := req.URL.Query()
	f := store.AuditFilter{Action: q.Get("action"), EntityType: q.Get("entityType")}
	if f.EntityID, err = queryInt64(req.Request, "entityId"); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.UserID, err = queryInt64(req.Request, "userId"); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Created, err = queryDateRange(req.Request); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, total, err := store.ListAuditLogs(req.Context(), h.DB, f, page)
	if err != nil {
		h.fail(w, req.Request, err, "failed to list audit logs")
		return
	}
	jsonResponse(w, http.StatusOK, listResponse("auditLogs", nonNil(logs), total, page))
}

// Get handles GET /api/audit-logs/{id}.
func (h *AuditHandler) Get(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid audit log id")
		return
	}

	entry, err := store.GetAuditLog(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get audit log")
		return
	}
	if entry == nil {
		jsonError(w, http.StatusNotFound, "audit log not found")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"auditLog": entry})
}

// Stream handles GET /api/audit-logs/stream, a websocket feed of new entries.
func (h *AuditHandler) Stream(w http.ResponseWriter, req *Request) {
	if h.Hub == nil {
		jsonError(w, http.StatusServiceUnavailable, "live audit feed is disabled")
		return
	}
	h.Hub.ServeWS(w, req.Request)
}
