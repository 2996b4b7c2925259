package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/assettrack/internal/model"
	"github.com/erazemk/assettrack/internal/store"
)

// SitesHandler handles site CRUD endpoints.
type SitesHandler struct {
	*Deps
}

// List handles GET /api/sites.
func (h *SitesHandler) List(w http.ResponseWriter, req *Request) {
	page, err := parsePage(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	sites, total, err := store.ListSites(req.Context(), h.DB, req.URL.Query().Get("search"), page)
	if err != nil {
		h.fail(w, req.Request, err, "failed to list sites")
		return
	}
	jsonResponse(w, http.StatusOK, listResponse("sites", nonNil(sites), total, page))
}

// Create handles POST /api/sites.
func (h *SitesHandler) Create(w http.ResponseWriter, req *Request) {
	var site model.Site
	if err := decodeJSON(req.Request, &site); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := store.CreateSite(req.Context(), h.DB, &site)
	if err != nil {
		h.fail(w, req.Request, err, "failed to create site")
		return
	}

	h.record(req, model.ActionCreate, "Site", created.ID, nil, created)
	slog.Info("site created", "user", req.Principal.Username, "site", created.Name)
	jsonResponse(w, http.StatusCreated, map[string]any{"message": "site created", "site": created})
}

// Get handles GET /api/sites/{id}.
func (h *SitesHandler) Get(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid site id")
		return
	}

	site, err := store.GetSite(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get site")
		return
	}
	if site == nil {
		jsonError(w, http.StatusNotFound, "site not found")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"site": site})
}

// Update handles PUT /api/sites/{id}. Omitted fields keep their values.
func (h *SitesHandler) Update(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid site id")
		return
	}

	current, err := store.GetSite(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get site")
		return
	}
	if current == nil {
		jsonError(w, http.StatusNotFound, "site not found")
		return
	}

	site := *current
	if err := decodeJSON(req.Request, &site); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, previous, err := store.UpdateSite(req.Context(), h.DB, id, &site)
	if err != nil {
		h.fail(w, req.Request, err, "failed to update site")
		return
	}

	h.record(req, model.ActionUpdate, "Site", id, previous, updated)
	slog.Info("site updated", "user", req.Principal.Username, "site", updated.Name)
	jsonResponse(w, http.StatusOK, map[string]any{"message": "site updated", "site": updated})
}

// Delete handles DELETE /api/sites/{id}.
func (h *SitesHandler) Delete(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid site id")
		return
	}

	deleted, err := store.DeleteSite(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to delete site")
		return
	}

	h.record(req, model.ActionDelete, "Site", id, deleted, nil)
	slog.Info("site deleted", "user", req.Principal.Username, "site", deleted.Name)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "site deleted"})
}
