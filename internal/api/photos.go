package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/erazemk/assettrack/internal/blob"
	"github.com/erazemk/assettrack/internal/imaging"
	"github.com/erazemk/assettrack/internal/model"
	"github.com/erazemk/assettrack/internal/store"
)

// multipartOverhead is allowed on top of the file size for the other form
// fields and part headers.
const multipartOverhead = 1 << 20

// PhotosHandler handles photo uploads and downloads.
type PhotosHandler struct {
	*Deps
}

type updatePhotoRequest struct {
	Description string `json:"description"`
}

// List handles GET /api/photos.
func (h *PhotosHandler) List(w http.ResponseWriter, req *Request) {
	page, err := parsePage(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	var f store.PhotoFilter
	if f.AssetID, err = queryInt64(req.Request, "assetId"); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.MovementID, err = queryInt64(req.Request, "movementId"); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	photos, total, err := store.ListPhotos(req.Context(), h.DB, f, page)
	if err != nil {
		h.fail(w, req.Request, err, "failed to list photos")
		return
	}
	jsonResponse(w, http.StatusOK, listResponse("photos", nonNil(photos), total, page))
}

// Upload handles POST /api/photos. The image is written to blob storage
// first; if the row cannot be inserted the blob is removed again.
func (h *PhotosHandler) Upload(w http.ResponseWriter, req *Request) {
	req.Body = http.MaxBytesReader(w, req.Body, h.MaxUploadSize+multipartOverhead)
	if err := req.ParseMultipartForm(h.MaxUploadSize + multipartOverhead); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, header, err := req.FormFile("photo")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "photo file required")
		return
	}
	defer file.Close()
	if header.Size > h.MaxUploadSize {
		jsonError(w, http.StatusBadRequest, fmt.Sprintf("photo exceeds the %d byte limit", h.MaxUploadSize))
		return
	}

	assetID, err := formInt64(req, "assetId")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	movementID, err := formInt64(req, "movementId")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	owner, err := model.NewOwner(assetID, movementID)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := store.CheckPhotoOwner(req.Context(), h.DB, owner); err != nil {
		h.fail(w, req.Request, err, "failed to check photo owner")
		return
	}

	img, err := h.Images.Process(file)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupported) {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid image")
		return
	}

	photo := &model.Photo{
		OriginalName: header.Filename,
		MimeType:     img.MIME,
		Size:         int64(len(img.Data)),
		Description:  req.FormValue("description"),
		Latitude:     img.Latitude,
		Longitude:    img.Longitude,
		TakenAt:      img.TakenAt,
		UploadedBy:   req.UserID(),
	}
	photo.SetOwner(owner)
	lat, err := formFloat(req, "latitude")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	lng, err := formFloat(req, "longitude")
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if lat != nil && lng != nil {
		photo.Latitude, photo.Longitude = lat, lng
	}

	photo.FileName = fmt.Sprintf("%ss/%d/%s%s", owner.Kind, owner.ID, uuid.NewString(), img.Extension(header.Filename))
	if err := h.Blobs.Put(req.Context(), photo.FileName, bytes.NewReader(img.Data), photo.Size, photo.MimeType); err != nil {
		h.fail(w, req.Request, err, "failed to store photo")
		return
	}

	created, err := store.CreatePhoto(req.Context(), h.DB, photo)
	if err != nil {
		if delErr := h.Blobs.Delete(req.Context(), photo.FileName); delErr != nil {
			slog.Error("failed to remove orphaned photo", "key", photo.FileName, "error", delErr)
		}
		h.fail(w, req.Request, err, "failed to save photo")
		return
	}

	h.record(req, model.ActionUpload, "Photo", created.ID, nil, created)
	slog.Info("photo uploaded", "user", req.Principal.Username, "photo", created.ID, "owner", string(owner.Kind),
		"owner_id", owner.ID, "size", created.Size, "resized", img.Resized)
	jsonResponse(w, http.StatusCreated, map[string]any{"message": "photo uploaded", "photo": created})
}

// Get handles GET /api/photos/{id}.
func (h *PhotosHandler) Get(w http.ResponseWriter, req *Request) {
	photo, ok := h.lookup(w, req)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"photo": photo})
}

// File handles GET /api/photos/{id}/file and streams the stored image.
func (h *PhotosHandler) File(w http.ResponseWriter, req *Request) {
	photo, ok := h.lookup(w, req)
	if !ok {
		return
	}

	rc, info, err := h.Blobs.Open(req.Context(), photo.FileName)
	if errors.Is(err, blob.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "photo file not found")
		return
	}
	if err != nil {
		h.fail(w, req.Request, err, "failed to open photo")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", photo.MimeType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("streaming photo interrupted", "photo", photo.ID, "error", err)
	}
}

// Update handles PUT /api/photos/{id}. Only the description is editable.
func (h *PhotosHandler) Update(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid photo id")
		return
	}

	var body updatePhotoRequest
	if err := decodeJSON(req.Request, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	previous, err := store.GetPhoto(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get photo")
		return
	}

	photo, err := store.UpdatePhotoDescription(req.Context(), h.DB, id, body.Description)
	if err != nil {
		h.fail(w, req.Request, err, "failed to update photo")
		return
	}

	h.record(req, model.ActionUpdate, "Photo", id, previous, photo)
	jsonResponse(w, http.StatusOK, map[string]any{"message": "photo updated", "photo": photo})
}

// Delete handles DELETE /api/photos/{id}. The row goes first, then the blob.
func (h *PhotosHandler) Delete(w http.ResponseWriter, req *Request) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid photo id")
		return
	}

	photo, err := store.DeletePhoto(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to delete photo")
		return
	}
	if err := h.Blobs.Delete(req.Context(), photo.FileName); err != nil && !errors.Is(err, blob.ErrNotFound) {
		slog.Error("failed to delete photo file", "key", photo.FileName, "error", err)
	}

	h.record(req, model.ActionDelete, "Photo", id, photo, nil)
	slog.Info("photo deleted", "user", req.Principal.Username, "photo", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "photo deleted"})
}

func (h *PhotosHandler) lookup(w http.ResponseWriter, req *Request) (*model.Photo, bool) {
	id, err := pathID(req.Request)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid photo id")
		return nil, false
	}

	photo, err := store.GetPhoto(req.Context(), h.DB, id)
	if err != nil {
		h.fail(w, req.Request, err, "failed to get photo")
		return nil, false
	}
	if photo == nil {
		jsonError(w, http.StatusNotFound, "photo not found")
		return nil, false
	}
	return photo, true
}

func formInt64(req *Request, name string) (*int64, error) {
	s := req.FormValue(name)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", name)
	}
	return &n, nil
}

func formFloat(req *Request, name string) (*float64, error) {
	s := req.FormValue(name)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &f, nil
}
