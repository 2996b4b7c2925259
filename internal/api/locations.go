package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/assettrack/internal/model"
	"github.com/erazemk/assettrack/internal/store"
)

// LocationsHandler handles location CRUD endpoints.
type LocationsHandler struct {
	*Deps
}

// List handles GET /api/locations.
func (h *LocationsHandler) List(w http.ResponseWriter, req *Request) {
	page, err := parsePage(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	var f store.LocationFilter
	if f.SiteID, err = queryInt64(req.Request, "siteId"); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.ParentID, err = queryInt64(req.Request, "parentId"); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	locations, total, err := store.ListLocations(req.Context(), h.DB, f, page)
	if err != nil {
		h.fail(w, req.Request, err, "failed to list locations")
		return
	}
	jsonResponse(w, http.StatusOK, listResponse("locations", nonNil(locations), total, page))
}

// Create handles POST /api/locations.
func (h *LocationsHandler) Create(w http.ResponseWriter, req *Request) {
	var loc model.Location
	if err := decodeJSON(req.Request, &loc); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if loc.SiteID == 0 {
		jsonError(w, http.StatusBadRequest, "siteId required")
		return
	}

	created, err := store.CreateLocation(req.Context(), h.DB, &loc)
	if err != nil {
		h.fail(w, req.Request, err, "failed to create location")
		return
	}

	h.record(req, model.ActionCreate, "Location", created.ID, nil, created)
	slog.Info("location created", "user", req.Principal.Username, "location", created.Name, "site", created.SiteName)
	jsonResponse(w, http.StatusCreated, map[string]any{"message": "location created", "location": created})
}

// Get handles GET /api/locations/{id}.
func (h *LocationsHandler) Get(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid location id")
		return
	}

	loc, err := store.GetLocation(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get location")
		return
	}
	if loc == nil {
		jsonError(w, http.StatusNotFound, "location not found")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"location": loc})
}

// Update handles PUT /api/locations/{id}. Omitted fields keep their values;
// "parentId": null moves the location to the top level.
func (h *LocationsHandler) Update(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid location id")
		return
	}

	current, err := store.GetLocation(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get location")
		return
	}
	if current == nil {
		jsonError(w, http.StatusNotFound, "location not found")
		return
	}

	loc := *current
	if err := decodeJSON(req.Request, &loc); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, previous, err := store.UpdateLocation(req.Context(), h.DB, id, &loc)
	if err != nil {
		h.fail(w, req.Request, err, "failed to update location")
		return
	}

	h.record(req, model.ActionUpdate, "Location", id, previous, updated)
	slog.Info("location updated", "user", req.Principal.Username, "location", updated.Name)
	jsonResponse(w, http.StatusOK, map[string]any{"message": "location updated", "location": updated})
}

// Delete handles DELETE /api/locations/{id}.
func (h *LocationsHandler) Delete(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid location id")
		return
	}

	deleted, err := store.DeleteLocation(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to delete location")
		return
	}

	h.record(req, model.ActionDelete, "Location", id, deleted, nil)
	slog.Info("location deleted", "user", req.Principal.Username, "location", deleted.Name)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "location deleted"})
}
