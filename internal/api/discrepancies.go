package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/assettrack/internal/discrepancy"
	"github.com/erazemk/assettrack/internal/model"
	"github.com/erazemk/assettrack/internal/store"
)

// DiscrepanciesHandler handles discrepancy endpoints.
type DiscrepanciesHandler struct {
	*Deps
}

// List handles GET /api/discrepancies.
func (h *DiscrepanciesHandler) List(w http.ResponseWriter, req *Request) {
	page, err := parsePage(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := req.URL.Query()
	f := store.DiscrepancyFilter{Status: q.Get("status"), Type: q.Get("type"), Priority: q.Get("priority")}
	if f.AssetID, err = queryInt64(req.Request, "assetId"); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.MovementID, err = queryInt64(req.Request, "movementId"); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := store.ListDiscrepancies(req.Context(), h.DB, f, page)
	if err != nil {
		h.fail(w, req.Request, err, "failed to list discrepancies")
		return
	}
	jsonResponse(w, http.StatusOK, listResponse("discrepancies", nonNil(items), total, page))
}

// Create handles POST /api/discrepancies. Exactly one of assetId and
// movementId must be given.
func (h *DiscrepanciesHandler) Create(w http.ResponseWriter, req *Request) {
	var in model.DiscrepancyInput
	if err := decodeJSON(req.Request, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	d, err := store.CreateDiscrepancy(req.Context(), h.DB, in, req.UserID())
	if err != nil {
		h.fail(w, req.Request, err, "failed to create discrepancy")
		return
	}

	h.Metrics.DiscrepancyOpened(d.Type)
	h.record(req, model.ActionCreate, "Discrepancy", d.ID, nil, d)
	slog.Info("discrepancy reported", "user", req.Principal.Username, "discrepancy", d.ID, "type", d.Type)
	jsonResponse(w, http.StatusCreated, map[string]any{"message": "discrepancy created", "discrepancy": d})
}

// Get handles GET /api/discrepancies/{id}.
func (h *DiscrepanciesHandler) Get(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid discrepancy id")
		return
	}

	d, err := store.GetDiscrepancy(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get discrepancy")
		return
	}
	if d == nil {
		jsonError(w, http.StatusNotFound, "discrepancy not found")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"discrepancy": d})
}

// Update handles PUT /api/discrepancies/{id}. Resolving or closing the last
// unsettled discrepancy of an owner clears the owner's flag.
func (h *DiscrepanciesHandler) Update(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid discrepancy id")
		return
	}

	var in model.DiscrepancyInput
	if err := decodeJSON(req.Request, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.AssetID != nil || in.MovementID != nil {
		current, err := store.GetDiscrepancy(req.Context(), h.DB, id)
		if err != nil {
			h.fail(w, req.Request, err, "failed to get discrepancy")
			return
		}
		if current == nil {
			jsonError(w, http.StatusNotFound, "discrepancy not found")
			return
		}
		if !sameRef(in.AssetID, current.AssetID) || !sameRef(in.MovementID, current.MovementID) {
			jsonError(w, http.StatusBadRequest, "the owner of a discrepancy cannot be changed")
			return
		}
	}

	change, err := store.UpdateDiscrepancy(req.Context(), h.DB, id, in, req.UserID())
	if err != nil {
		h.fail(w, req.Request, err, "failed to update discrepancy")
		return
	}

	if discrepancy.Resolves(change.Previous.Status, change.Discrepancy.Status) {
		h.Metrics.DiscrepancyResolved()
	}
	h.record(req, model.ActionUpdate, "Discrepancy", id, change.Previous, change.Discrepancy)
	slog.Info("discrepancy updated", "user", req.Principal.Username, "discrepancy", id,
		"status", change.Discrepancy.Status, "owner_cleared", change.OwnerCleared)
	jsonResponse(w, http.StatusOK, map[string]any{
		"message":      "discrepancy updated",
		"discrepancy":  change.Discrepancy,
		"ownerCleared": change.OwnerCleared,
	})
}

// sameRef reports whether an optional incoming reference matches the stored one.
func sameRef(in, stored *int64) bool {
	if in == nil || *in == 0 {
		return true
	}
	return stored != nil && *stored == *in
}

// Delete handles DELETE /api/discrepancies/{id}.
func (h *DiscrepanciesHandler) Delete(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid discrepancy id")
		return
	}

	d, err := store.DeleteDiscrepancy(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to delete discrepancy")
		return
	}

	h.record(req, model.ActionDelete, "Discrepancy", id, d, nil)
	slog.Info("discrepancy deleted", "user", req.Principal.Username, "discrepancy", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "discrepancy deleted"})
}

// Reconcile handles POST /api/discrepancies/reconcile. It recomputes every
// hasDiscrepancy flag from the open discrepancies.
func (h *DiscrepanciesHandler) Reconcile(w http.ResponseWriter, req *Request) {
	fixed, err := store.ReconcileDiscrepancyFlags(req.Context(), h.DB)
	if err != nil {
		h.fail(w, req.Request, err, "failed to reconcile discrepancy flags")
		return
	}

	h.record(req, model.ActionUpdate, "Discrepancy", 0, nil, map[string]int{"corrected": fixed})
	slog.Info("discrepancy flags reconciled", "user", req.Principal.Username, "corrected", fixed)
	jsonResponse(w, http.StatusOK, map[string]any{"message": "discrepancy flags reconciled", "corrected": fixed})
}
