package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/assettrack/internal/model"
	"github.com/erazemk/assettrack/internal/store"
)

// MovementsHandler handles movement requests and their lifecycle.
type MovementsHandler struct {
	*Deps
}

type transitionRequest struct {
	Notes *string `json:"notes"`
}

// List handles GET /api/movements.
func (h *MovementsHandler) List(w http.ResponseWriter, req *Request) {
	page, err := parsePage(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := req.URL.Query()
	f := store.MovementFilter{Status: q.Get("status"), Type: q.Get("type")}
	if f.AssetID, err = queryInt64(req.Request, "assetId"); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.RequesterID, err = queryInt64(req.Request, "requesterId"); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Requested, err = queryDateRange(req.Request); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	movements, total, err := store.ListMovements(req.Context(), h.DB, f, page)
	if err != nil {
		h.fail(w, req.Request, err, "failed to list movements")
		return
	}
	jsonResponse(w, http.StatusOK, listResponse("movements", nonNil(movements), total, page))
}

// Create handles POST /api/movements. The caller becomes the requester.
func (h *MovementsHandler) Create(w http.ResponseWriter, req *Request) {
	var in model.MovementInput
	if err := decodeJSON(req.Request, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := store.CreateMovement(req.Context(), h.DB, in, req.Principal.UserID)
	if err != nil {
		h.fail(w, req.Request, err, "failed to create movement")
		return
	}

	h.record(req, model.ActionCreate, "Movement", m.ID, nil, m)
	slog.Info("movement requested", "user", req.Principal.Username, "movement", m.ID, "asset", m.AssetID,
		"type", m.Type, "to_location", m.ToLocation)
	jsonResponse(w, http.StatusCreated, map[string]any{"message": "movement created", "movement": m})
}

// Get handles GET /api/movements/{id}.
func (h *MovementsHandler) Get(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid movement id")
		return
	}

	m, err := store.GetMovement(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get movement")
		return
	}
	if m == nil {
		jsonError(w, http.StatusNotFound, "movement not found")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"movement": m})
}

// Update handles PUT /api/movements/{id}. A status in the body runs the
// lifecycle transition.
func (h *MovementsHandler) Update(w http.ResponseWriter, req *Request) {
	var in model.MovementInput
	if err := decodeJSON(req.Request, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.AssetID != nil {
		jsonError(w, http.StatusBadRequest, "assetId cannot be changed")
		return
	}
	h.update(w, req, in, "movement updated")
}

// Approve handles POST /api/movements/{id}/approve.
func (h *MovementsHandler) Approve(w http.ResponseWriter, req *Request) {
	h.transition(w, req, model.MovementApproved, "movement approved")
}

// Reject handles POST /api/movements/{id}/reject.
func (h *MovementsHandler) Reject(w http.ResponseWriter, req *Request) {
	h.transition(w, req, model.MovementRejected, "movement rejected")
}

// Complete handles POST /api/movements/{id}/complete.
func (h *MovementsHandler) Complete(w http.ResponseWriter, req *Request) {
	h.transition(w, req, model.MovementCompleted, "movement completed")
}

func (h *MovementsHandler) transition(w http.ResponseWriter, req *Request, status, message string) {
	var body transitionRequest
	if err := decodeJSON(req.Request, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.update(w, req, model.MovementInput{Status: &status, Notes: body.Notes}, message)
}

func (h *MovementsHandler) update(w http.ResponseWriter, req *Request, in model.MovementInput, message string) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid movement id")
		return
	}

	change, err := store.UpdateMovement(req.Context(), h.DB, id, in, req.MovementActor())
	if err != nil {
		h.fail(w, req.Request, err, "failed to update movement")
		return
	}

	h.record(req, model.ActionUpdate, "Movement", id, change.Previous, change.Movement)
	if change.StatusChanged() {
		h.Metrics.MovementTransition(change.Movement.Status)
		slog.Info("movement status changed", "user", req.Principal.Username, "movement", id,
			"from", change.Previous.Status, "to", change.Movement.Status)
	}
	body := map[string]any{"message": message, "movement": change.Movement}
	if change.Asset != nil {
		h.record(req, model.ActionUpdate, "Asset", change.Asset.ID, nil, change.Asset)
		body["asset"] = change.Asset
	}
	jsonResponse(w, http.StatusOK, body)
}

// Delete handles DELETE /api/movements/{id}. Photos of the movement are
// removed from blob storage after the rows are gone.
func (h *MovementsHandler) Delete(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid movement id")
		return
	}

	m, keys, err := store.DeleteMovement(req.Context(), h.DB, id, req.MovementActor())
	if err != nil {
		h.fail(w, req.Request, err, "failed to delete movement")
		return
	}

	for _, key := range keys {
		if err := h.Blobs.Delete(req.Context(), key); err != nil {
			slog.Error("failed to delete movement photo", "key", key, "error", err)
		}
	}

	h.record(req, model.ActionDelete, "Movement", id, m, nil)
	slog.Info("movement deleted", "user", req.Principal.Username, "movement", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "movement deleted"})
}
