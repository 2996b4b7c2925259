// Package api implements the HTTP/JSON interface under /api.
package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/assettrack/internal/audit"
	"github.com/erazemk/assettrack/internal/auth"
	"github.com/erazemk/assettrack/internal/authz"
	"github.com/erazemk/assettrack/internal/blob"
	"github.com/erazemk/assettrack/internal/imaging"
	"github.com/erazemk/assettrack/internal/metrics"
	"github.com/erazemk/assettrack/internal/model"
)

// Deps are the services shared by all handlers.
type Deps struct {
	DB      *sql.DB
	Issuer  *auth.Issuer
	Blobs   blob.Store
	Images  *imaging.Processor
	Audit   *audit.Recorder
	Hub     *audit.Hub
	Metrics *metrics.Metrics

	// MaxUploadSize limits photo uploads, in bytes.
	MaxUploadSize int64
	// Dev exposes internal error details in responses.
	Dev bool
}

// Permission keys checked by routes and handlers.
const (
	permAssetsCreate        = "assets.create"
	permAssetsUpdate        = "assets.update"
	permAssetsDelete        = "assets.delete"
	permAssetsScan          = "assets.scan"
	permAssetsExport        = "assets.export"
	permMovementsCreate     = "movements.create"
	permMovementsApprove    = "movements.approve"
	permDiscrepanciesCreate = "discrepancies.create"
	permDiscrepanciesUpdate = "discrepancies.update"
	permDiscrepanciesDelete = "discrepancies.delete"
	permPhotosCreate        = "photos.create"
	permPhotosUpdate        = "photos.update"
	permPhotosDelete        = "photos.delete"
	permRolesRead           = "roles.read"
	permRolesCreate         = "roles.create"
	permRolesUpdate         = "roles.update"
	permRolesDelete         = "roles.delete"
)

// NewRouter creates the API router with all endpoints registered. Each
// protected route carries exactly one policy: a role list or a permission.
func NewRouter(d *Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{d}
	usersHandler := &UsersHandler{d}
	rolesHandler := &RolesHandler{d}
	sitesHandler := &SitesHandler{d}
	locationsHandler := &LocationsHandler{d}
	assetsHandler := &AssetsHandler{d}
	movementsHandler := &MovementsHandler{d}
	discrepanciesHandler := &DiscrepanciesHandler{d}
	photosHandler := &PhotosHandler{d}
	auditHandler := &AuditHandler{d}

	signedIn := authz.Authenticated()
	admin := authz.Roles(model.RoleAdmin)
	managers := authz.Roles(model.RoleAdmin, model.RoleManager)
	can := authz.Permission

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.Handle("POST /api/auth/logout", d.protect(signedIn, authHandler.Logout))
	mux.Handle("GET /api/auth/me", d.protect(signedIn, authHandler.Me))
	mux.Handle("PUT /api/auth/password", d.protect(signedIn, authHandler.ChangePassword))

	// Users (admin only).
	mux.Handle("GET /api/users", d.protect(admin, usersHandler.List))
	mux.Handle("POST /api/users", d.protect(admin, usersHandler.Create))
	mux.Handle("GET /api/users/{id}", d.protect(admin, usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", d.protect(admin, usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", d.protect(admin, usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", d.protect(admin, usersHandler.Delete))

	// Roles.
	mux.Handle("GET /api/roles", d.protect(can(permRolesRead), rolesHandler.List))
	mux.Handle("POST /api/roles", d.protect(can(permRolesCreate), rolesHandler.Create))
	mux.Handle("GET /api/roles/{id}", d.protect(can(permRolesRead), rolesHandler.Get))
	mux.Handle("PUT /api/roles/{id}", d.protect(can(permRolesUpdate), rolesHandler.Update))
	mux.Handle("DELETE /api/roles/{id}", d.protect(can(permRolesDelete), rolesHandler.Delete))

	// Sites and locations: read (all), write (manager+).
	mux.Handle("GET /api/sites", d.protect(signedIn, sitesHandler.List))
	mux.Handle("POST /api/sites", d.protect(managers, sitesHandler.Create))
	mux.Handle("GET /api/sites/{id}", d.protect(signedIn, sitesHandler.Get))
	mux.Handle("PUT /api/sites/{id}", d.protect(managers, sitesHandler.Update))
	mux.Handle("DELETE /api/sites/{id}", d.protect(managers, sitesHandler.Delete))

	mux.Handle("GET /api/locations", d.protect(signedIn, locationsHandler.List))
	mux.Handle("POST /api/locations", d.protect(managers, locationsHandler.Create))
	mux.Handle("GET /api/locations/{id}", d.protect(signedIn, locationsHandler.Get))
	mux.Handle("PUT /api/locations/{id}", d.protect(managers, locationsHandler.Update))
	mux.Handle("DELETE /api/locations/{id}", d.protect(managers, locationsHandler.Delete))

	// Assets.
	mux.Handle("GET /api/assets", d.protect(signedIn, assetsHandler.List))
	mux.Handle("POST /api/assets", d.protect(can(permAssetsCreate), assetsHandler.Create))
	mux.Handle("GET /api/assets/export", d.protect(can(permAssetsExport), assetsHandler.Export))
	mux.Handle("POST /api/assets/scan", d.protect(can(permAssetsScan), assetsHandler.Scan))
	mux.Handle("GET /api/assets/{id}", d.protect(signedIn, assetsHandler.Get))
	mux.Handle("PUT /api/assets/{id}", d.protect(can(permAssetsUpdate), assetsHandler.Update))
	mux.Handle("DELETE /api/assets/{id}", d.protect(can(permAssetsDelete), assetsHandler.Delete))

	// Movements. Update and delete authorization depends on the movement, so
	// the lifecycle code decides.
	mux.Handle("GET /api/movements", d.protect(signedIn, movementsHandler.List))
	mux.Handle("POST /api/movements", d.protect(can(permMovementsCreate), movementsHandler.Create))
	mux.Handle("GET /api/movements/{id}", d.protect(signedIn, movementsHandler.Get))
	mux.Handle("PUT /api/movements/{id}", d.protect(signedIn, movementsHandler.Update))
	mux.Handle("DELETE /api/movements/{id}", d.protect(signedIn, movementsHandler.Delete))
	mux.Handle("POST /api/movements/{id}/approve", d.protect(can(permMovementsApprove), movementsHandler.Approve))
	mux.Handle("POST /api/movements/{id}/reject", d.protect(can(permMovementsApprove), movementsHandler.Reject))
	mux.Handle("POST /api/movements/{id}/complete", d.protect(signedIn, movementsHandler.Complete))

	// Discrepancies.
	mux.Handle("GET /api/discrepancies", d.protect(signedIn, discrepanciesHandler.List))
	mux.Handle("POST /api/discrepancies", d.protect(can(permDiscrepanciesCreate), discrepanciesHandler.Create))
	mux.Handle("POST /api/discrepancies/reconcile", d.protect(admin, discrepanciesHandler.Reconcile))
	mux.Handle("GET /api/discrepancies/{id}", d.protect(signedIn, discrepanciesHandler.Get))
	mux.Handle("PUT /api/discrepancies/{id}", d.protect(can(permDiscrepanciesUpdate), discrepanciesHandler.Update))
	mux.Handle("DELETE /api/discrepancies/{id}", d.protect(can(permDiscrepanciesDelete), discrepanciesHandler.Delete))

	// Photos.
	mux.Handle("GET /api/photos", d.protect(signedIn, photosHandler.List))
	mux.Handle("POST /api/photos", d.protect(can(permPhotosCreate), photosHandler.Upload))
	mux.Handle("GET /api/photos/{id}", d.protect(signedIn, photosHandler.Get))
	mux.Handle("GET /api/photos/{id}/file", d.protect(signedIn, photosHandler.File))
	mux.Handle("PUT /api/photos/{id}", d.protect(can(permPhotosUpdate), photosHandler.Update))
	mux.Handle("DELETE /api/photos/{id}", d.protect(can(permPhotosDelete), photosHandler.Delete))

	// Audit log (admin only).
	mux.Handle("GET /api/audit-logs", d.protect(admin, auditHandler.List))
	mux.Handle("GET /api/audit-logs/stream", d.protect(admin, auditHandler.Stream))
	mux.Handle("GET /api/audit-logs/{id}", d.protect(admin, auditHandler.Get))

	// Anything else under /api is a JSON 404.
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusNotFound, "route not found: "+r.Method+" "+r.URL.Path)
	})

	return mux
}
