package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/assettrack/internal/export"
	"github.com/erazemk/assettrack/internal/model"
	"github.com/erazemk/assettrack/internal/store"
)

// recentMovements is how many movements an asset detail includes.
const recentMovements = 5

// AssetsHandler handles asset endpoints, including field scans and exports.
type AssetsHandler struct {
	*Deps
}

type scanRequest struct {
	AssetTag string `json:"assetTag"`
	store.ScanInput
}

// assetFilter reads the list filters shared by List and Export.
func assetFilter(r *http.Request) (store.AssetFilter, error) {
	q := r.URL.Query()
	f := store.AssetFilter{
		Category:   q.Get("category"),
		Status:     q.Get("status"),
		Condition:  q.Get("condition"),
		Department: q.Get("department"),
		Custodian:  q.Get("custodian"),
		Search:     q.Get("search"),
	}
	var err error
	if f.SiteID, err = queryInt64(r, "siteId"); err != nil {
		return f, err
	}
	if f.LocationID, err = queryInt64(r, "locationId"); err != nil {
		return f, err
	}
	if f.HasDiscrepancy, err = queryBool(r, "hasDiscrepancy"); err != nil {
		return f, err
	}
	f.Created, err = queryDateRange(r)
	return f, err
}

// List handles GET /api/assets.
func (h *AssetsHandler) List(w http.ResponseWriter, req *Request) {
	page, err := parsePage(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := assetFilter(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	assets, total, err := store.ListAssets(req.Context(), h.DB, f, page)
	if err != nil {
		h.fail(w, req.Request, err, "failed to list assets")
		return
	}
	jsonResponse(w, http.StatusOK, listResponse("assets", nonNil(assets), total, page))
}

// Export handles GET /api/assets/export. It accepts the list filters and
// returns every matching asset as an XLSX workbook.
func (h *AssetsHandler) Export(w http.ResponseWriter, req *Request) {
	f, err := assetFilter(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	assets, _, err := store.ListAssets(req.Context(), h.DB, f, store.Page{})
	if err != nil {
		h.fail(w, req.Request, err, "failed to list assets")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteAssets(&buf, assets); err != nil {
		h.fail(w, req.Request, err, "failed to export assets")
		return
	}

	slog.Info("assets exported", "user", req.Principal.Username, "count", len(assets))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(time.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Create handles POST /api/assets.
func (h *AssetsHandler) Create(w http.ResponseWriter, req *Request) {
	var in model.AssetInput
	if err := decodeJSON(req.Request, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	asset, err := store.CreateAsset(req.Context(), h.DB, in, req.UserID())
	if err != nil {
		h.fail(w, req.Request, err, "failed to create asset")
		return
	}

	h.record(req, model.ActionCreate, "Asset", asset.ID, nil, asset)
	slog.Info("asset created", "user", req.Principal.Username, "asset", asset.Name, "tag", asset.AssetTag)
	jsonResponse(w, http.StatusCreated, map[string]any{"message": "asset created", "asset": asset})
}

// Get handles GET /api/assets/{id}. The response includes the asset's open
// discrepancies and its most recent movements.
func (h *AssetsHandler) Get(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	asset, err := store.GetAsset(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get asset")
		return
	}
	if asset == nil {
		jsonError(w, http.StatusNotFound, "asset not found")
		return
	}

	open, _, err := store.ListDiscrepancies(req.Context(), h.DB,
		store.DiscrepancyFilter{AssetID: &id, Status: model.DiscrepancyOpen}, store.Page{})
	if err != nil {
		h.fail(w, req.Request, err, "failed to get asset discrepancies")
		return
	}
	movements, _, err := store.ListMovements(req.Context(), h.DB,
		store.MovementFilter{AssetID: &id}, store.Page{Page: 1, Limit: recentMovements})
	if err != nil {
		h.fail(w, req.Request, err, "failed to get asset movements")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"asset":           asset,
		"discrepancies":   nonNil(open),
		"recentMovements": nonNil(movements),
	})
}

// Update handles PUT /api/assets/{id}. Changes to location, custodian or
// condition open discrepancies.
func (h *AssetsHandler) Update(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	var in model.AssetInput
	if err := decodeJSON(req.Request, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	change, err := store.UpdateAsset(req.Context(), h.DB, id, in, req.UserID())
	if err != nil {
		h.fail(w, req.Request, err, "failed to update asset")
		return
	}

	h.record(req, model.ActionUpdate, "Asset", id, change.Previous, change.Asset)
	h.recordFindings(req, change)
	slog.Info("asset updated", "user", req.Principal.Username, "asset", change.Asset.Name,
		"discrepancies", len(change.Discrepancies))
	jsonResponse(w, http.StatusOK, assetChangeResponse("asset updated", change))
}

// Scan handles POST /api/assets/scan.
func (h *AssetsHandler) Scan(w http.ResponseWriter, req *Request) {
	var body scanRequest
	if err := decodeJSON(req.Request, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	change, err := store.ScanAsset(req.Context(), h.DB, body.AssetTag, body.ScanInput, req.UserID())
	if err != nil {
		h.fail(w, req.Request, err, "failed to record scan")
		return
	}

	h.record(req, model.ActionScan, "Asset", change.Asset.ID, change.Previous, change.Asset)
	h.recordFindings(req, change)
	slog.Info("asset scanned", "user", req.Principal.Username, "tag", body.AssetTag,
		"location", change.Asset.Location, "discrepancies", len(change.Discrepancies))
	jsonResponse(w, http.StatusOK, assetChangeResponse("scan recorded", change))
}

// Delete handles DELETE /api/assets/{id}. Assets are soft-deleted.
func (h *AssetsHandler) Delete(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	previous, err := store.SoftDeleteAsset(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to delete asset")
		return
	}

	h.record(req, model.ActionDelete, "Asset", id, previous, nil)
	slog.Info("asset deleted", "user", req.Principal.Username, "asset", previous.Name)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "asset deleted"})
}

// recordFindings audits and counts the discrepancies an asset change opened.
func (h *AssetsHandler) recordFindings(req *Request, change *store.AssetChange) {
	for i := range change.Discrepancies {
		d := &change.Discrepancies[i]
		h.Metrics.DiscrepancyOpened(d.Type)
		h.record(req, model.ActionCreate, "Discrepancy", d.ID, nil, d)
	}
}

func assetChangeResponse(message string, change *store.AssetChange) map[string]any {
	return map[string]any{
		"message":               message,
		"asset":                 change.Asset,
		"discrepanciesDetected": len(change.Discrepancies) > 0,
		"discrepancies":         nonNil(change.Discrepancies),
	}
}
