package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erazemk/assettrack/internal/audit"
	"github.com/erazemk/assettrack/internal/auth"
	"github.com/erazemk/assettrack/internal/blob/fs"
	"github.com/erazemk/assettrack/internal/db"
	"github.com/erazemk/assettrack/internal/export"
	"github.com/erazemk/assettrack/internal/imaging"
	"github.com/erazemk/assettrack/internal/metrics"
	"github.com/erazemk/assettrack/internal/model"
	"github.com/erazemk/assettrack/internal/store"
)

const (
	testJWTSecret = "test-secret"
	testPassword  = "password123"
)

type testEnv struct {
	t      *testing.T
	db     *sql.DB
	server *httptest.Server
}

func setupTestServer(t *testing.T) (*testEnv, string) {
	t.Helper()
	database := db.NewTestDB(t)

	blobs, err := fs.New(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	m := metrics.New()
	recorder := audit.NewRecorder(64, m, audit.StoreSink{DB: database})

	deps := &Deps{
		DB:            database,
		Issuer:        auth.NewIssuer(testJWTSecret, time.Hour),
		Blobs:         blobs,
		Images:        imaging.New(0),
		Audit:         recorder,
		Hub:           audit.NewHub(),
		Metrics:       m,
		MaxUploadSize: 1 << 20,
		Dev:           true,
	}
	handler := RecoveryMiddleware(true)(LoggingMiddleware(m)(NewRouter(deps)))
	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		server.Close()
		recorder.Close()
	})

	env := &testEnv{t: t, db: database, server: server}
	env.addUser("admin", model.RoleAdmin)
	return env, env.login("admin")
}

func (e *testEnv) addUser(username, role string) *model.User {
	e.t.Helper()
	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		e.t.Fatalf("hashing password: %v", err)
	}
	u, err := store.CreateUser(context.Background(), e.db, username, hash, role)
	if err != nil {
		e.t.Fatalf("creating user %s: %v", username, err)
	}
	return u
}

func (e *testEnv) login(username string) string {
	e.t.Helper()
	var resp struct{ Token string }
	status := e.call("POST", "/api/auth/login", "", map[string]string{
		"username": username, "password": testPassword,
	}, &resp)
	if status != http.StatusOK {
		e.t.Fatalf("login %s: status %d", username, status)
	}
	if resp.Token == "" {
		e.t.Fatal("empty token from login")
	}
	return resp.Token
}

// call sends a JSON request and decodes the response into out when given.
func (e *testEnv) call(method, path, token string, body, out any) int {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		e.t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			e.t.Fatalf("decoding %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type assetResponse struct {
	Asset                 model.Asset
	DiscrepanciesDetected bool
	Discrepancies         []model.Discrepancy
}

type movementResponse struct {
	Movement model.Movement
	Asset    *model.Asset
}

func (e *testEnv) createAsset(token string, body map[string]any) model.Asset {
	e.t.Helper()
	var resp assetResponse
	if status := e.call("POST", "/api/assets", token, body, &resp); status != http.StatusCreated {
		e.t.Fatalf("creating asset: status %d", status)
	}
	return resp.Asset
}

func TestLoginEndpoint(t *testing.T) {
	env, _ := setupTestServer(t)

	status := env.call("POST", "/api/auth/login", "", map[string]string{"username": "admin", "password": "wrong"}, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", status)
	}

	status = env.call("POST", "/api/auth/login", "", map[string]string{"username": "admin"}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for missing password, got %d", status)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env, token := setupTestServer(t)

	var me struct{ User model.User }
	if status := env.call("GET", "/api/auth/me", token, nil, &me); status != http.StatusOK {
		t.Fatalf("me: status %d", status)
	}
	if me.User.Username != "admin" || me.User.Role != model.RoleAdmin {
		t.Errorf("unexpected user %+v", me.User)
	}

	if status := env.call("POST", "/api/auth/logout", token, nil, nil); status != http.StatusOK {
		t.Fatalf("logout: status %d", status)
	}
	if status := env.call("GET", "/api/auth/me", token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", status)
	}
}

func TestDeactivatedUserRejected(t *testing.T) {
	env, adminToken := setupTestServer(t)
	user := env.addUser("field", model.RoleUser)
	token := env.login("field")

	inactive := false
	path := fmt.Sprintf("/api/users/%d", user.ID)
	if status := env.call("PUT", path, adminToken, map[string]any{"isActive": inactive}, nil); status != http.StatusOK {
		t.Fatalf("deactivating user: status %d", status)
	}
	if status := env.call("GET", "/api/assets", token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for deactivated user, got %d", status)
	}
}

func TestAuthorizationPolicies(t *testing.T) {
	env, _ := setupTestServer(t)
	env.addUser("field", model.RoleUser)
	token := env.login("field")

	if status := env.call("GET", "/api/assets", "", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", status)
	}
	if status := env.call("GET", "/api/assets", "not-a-token", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for garbage token, got %d", status)
	}
	// Permission-based route.
	if status := env.call("POST", "/api/assets", token, map[string]any{"name": "Drill"}, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 creating asset as User, got %d", status)
	}
	// Role-based route.
	if status := env.call("POST", "/api/sites", token, map[string]any{"name": "HQ"}, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 creating site as User, got %d", status)
	}
	if status := env.call("GET", "/api/users", token, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 listing users as User, got %d", status)
	}
	// Granted by the User role's permission map.
	if status := env.call("GET", "/api/assets", token, nil, nil); status != http.StatusOK {
		t.Errorf("expected 200 listing assets as User, got %d", status)
	}
}

func TestUnknownRoute(t *testing.T) {
	env, token := setupTestServer(t)
	var body map[string]string
	if status := env.call("GET", "/api/nope", token, nil, &body); status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
	if body["message"] == "" {
		t.Error("expected JSON error message")
	}
}

// Warehouse A -> Warehouse B opens one Location discrepancy; resolving it
// clears the asset flag.
func TestAssetLocationDiscrepancyFlow(t *testing.T) {
	env, token := setupTestServer(t)
	asset := env.createAsset(token, map[string]any{
		"name": "Forklift", "assetTag": "FL-1", "location": "Warehouse A", "custodian": "Ana",
	})
	if asset.HasDiscrepancy {
		t.Fatal("new asset should not be flagged")
	}

	var updated assetResponse
	path := fmt.Sprintf("/api/assets/%d", asset.ID)
	if status := env.call("PUT", path, token, map[string]any{"location": "Warehouse B"}, &updated); status != http.StatusOK {
		t.Fatalf("update: status %d", status)
	}
	if !updated.DiscrepanciesDetected || len(updated.Discrepancies) != 1 {
		t.Fatalf("expected one discrepancy, got %+v", updated.Discrepancies)
	}
	d := updated.Discrepancies[0]
	if d.Type != model.DiscrepancyLocation || d.ExpectedValue != "Warehouse A" || d.ActualValue != "Warehouse B" {
		t.Errorf("unexpected discrepancy %+v", d)
	}
	if d.Status != model.DiscrepancyOpen || d.DetectedBy == nil {
		t.Errorf("expected Open discrepancy with detector, got %+v", d)
	}
	if !updated.Asset.HasDiscrepancy || updated.Asset.Location != "Warehouse B" {
		t.Errorf("unexpected asset after update %+v", updated.Asset)
	}

	var detail struct {
		Asset         model.Asset
		Discrepancies []model.Discrepancy
	}
	env.call("GET", path, token, nil, &detail)
	if len(detail.Discrepancies) != 1 {
		t.Errorf("expected asset detail to list 1 open discrepancy, got %d", len(detail.Discrepancies))
	}

	var resolved struct {
		Discrepancy  model.Discrepancy
		OwnerCleared bool
	}
	status := env.call("PUT", fmt.Sprintf("/api/discrepancies/%d", d.ID), token,
		map[string]any{"status": model.DiscrepancyResolved, "resolution": "Moved back"}, &resolved)
	if status != http.StatusOK {
		t.Fatalf("resolve: status %d", status)
	}
	if !resolved.OwnerCleared || resolved.Discrepancy.ResolvedAt == nil {
		t.Errorf("expected flag cleared and resolution stamped, got %+v", resolved)
	}

	env.call("GET", path, token, nil, &detail)
	if detail.Asset.HasDiscrepancy {
		t.Error("asset flag should be cleared after resolving its only discrepancy")
	}
}

func TestAssetScan(t *testing.T) {
	env, token := setupTestServer(t)
	env.createAsset(token, map[string]any{"name": "Pallet jack", "assetTag": "PJ-7", "location": "Dock 1"})

	var resp assetResponse
	status := env.call("POST", "/api/assets/scan", token, map[string]any{
		"assetTag": "PJ-7", "location": "Dock 4", "latitude": 46.05, "longitude": 14.5,
	}, &resp)
	if status != http.StatusOK {
		t.Fatalf("scan: status %d", status)
	}
	if !resp.DiscrepanciesDetected || resp.Asset.Location != "Dock 4" || resp.Asset.LastScannedAt == nil {
		t.Errorf("unexpected scan result %+v", resp)
	}

	if status := env.call("POST", "/api/assets/scan", token, map[string]any{"assetTag": "nope"}, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown tag, got %d", status)
	}
}

func TestAssetValidationAndPagination(t *testing.T) {
	env, token := setupTestServer(t)
	for i := range 3 {
		env.createAsset(token, map[string]any{"name": fmt.Sprintf("Laptop %d", i), "serialNumber": fmt.Sprintf("SN-%d", i)})
	}

	if status := env.call("POST", "/api/assets", token, map[string]any{"name": "Dup", "serialNumber": "SN-1"}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for duplicate serial, got %d", status)
	}

	var page struct {
		Assets      []model.Asset
		TotalItems  int
		TotalPages  int
		CurrentPage int
	}
	if status := env.call("GET", "/api/assets?page=2&limit=2", token, nil, &page); status != http.StatusOK {
		t.Fatalf("list: status %d", status)
	}
	if page.TotalItems != 3 || page.TotalPages != 2 || page.CurrentPage != 2 || len(page.Assets) != 1 {
		t.Errorf("unexpected page %+v", page)
	}

	if status := env.call("GET", "/api/assets?limit=zero", token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", status)
	}
}

func TestAssetExport(t *testing.T) {
	env, token := setupTestServer(t)
	env.createAsset(token, map[string]any{"name": "Printer"})

	req, _ := http.NewRequest("GET", env.server.URL+"/api/assets/export", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != export.ContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	data, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Error("expected a zip-based workbook")
	}
}

// Pending -> Approved -> Completed copies the destination onto the asset.
func TestMovementLifecycle(t *testing.T) {
	env, token := setupTestServer(t)
	asset := env.createAsset(token, map[string]any{"name": "Generator", "location": "Site1", "custodian": "Ana"})

	var created movementResponse
	status := env.call("POST", "/api/movements", token, map[string]any{
		"assetId": asset.ID, "toLocation": "Site2", "reason": "Relocation",
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create movement: status %d", status)
	}
	m := created.Movement
	if m.Status != model.MovementPending || m.FromLocation != "Site1" || m.FromCustodian != "Ana" {
		t.Errorf("unexpected new movement %+v", m)
	}

	var approved movementResponse
	base := fmt.Sprintf("/api/movements/%d", m.ID)
	if status := env.call("POST", base+"/approve", token, nil, &approved); status != http.StatusOK {
		t.Fatalf("approve: status %d", status)
	}
	if approved.Movement.ApproverID == nil || approved.Movement.ApprovalDate == nil {
		t.Errorf("approval not stamped: %+v", approved.Movement)
	}

	if status := env.call("POST", base+"/reject", token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 rejecting an approved movement, got %d", status)
	}

	var completed movementResponse
	if status := env.call("POST", base+"/complete", token, nil, &completed); status != http.StatusOK {
		t.Fatalf("complete: status %d", status)
	}
	if completed.Movement.CompletionDate == nil || completed.Movement.Status != model.MovementCompleted {
		t.Errorf("completion not stamped: %+v", completed.Movement)
	}

	var detail assetResponse
	env.call("GET", fmt.Sprintf("/api/assets/%d", asset.ID), token, nil, &detail)
	if detail.Asset.Location != "Site2" || detail.Asset.Custodian != "Ana" {
		t.Errorf("expected location Site2 and custodian kept, got %+v", detail.Asset)
	}

	if status := env.call("POST", base+"/complete", token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 updating a completed movement, got %d", status)
	}
	if status := env.call("DELETE", base, token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 deleting a completed movement, got %d", status)
	}
}

func TestMovementStrangerIsForbidden(t *testing.T) {
	env, adminToken := setupTestServer(t)
	env.addUser("requester", model.RoleUser)
	env.addUser("stranger", model.RoleUser)
	requesterToken := env.login("requester")
	strangerToken := env.login("stranger")

	asset := env.createAsset(adminToken, map[string]any{"name": "Ladder", "location": "Shed"})
	var created movementResponse
	if status := env.call("POST", "/api/movements", requesterToken,
		map[string]any{"assetId": asset.ID, "toLocation": "Roof"}, &created); status != http.StatusCreated {
		t.Fatalf("create movement: status %d", status)
	}
	path := fmt.Sprintf("/api/movements/%d", created.Movement.ID)

	if status := env.call("PUT", path, strangerToken, map[string]any{"notes": "mine now"}, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for stranger update, got %d", status)
	}
	if status := env.call("POST", path+"/approve", strangerToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for stranger approve, got %d", status)
	}
	if status := env.call("PUT", path, requesterToken, map[string]any{"status": model.MovementApproved}, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for requester self-approval, got %d", status)
	}
	if status := env.call("DELETE", path, strangerToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for stranger delete, got %d", status)
	}

	var got movementResponse
	env.call("GET", path, adminToken, nil, &got)
	if got.Movement.Status != model.MovementPending || got.Movement.Notes != "" || got.Movement.ApproverID != nil {
		t.Errorf("movement changed by unauthorized calls: %+v", got.Movement)
	}

	if status := env.call("PUT", path, requesterToken, map[string]any{"notes": "fragile"}, nil); status != http.StatusOK {
		t.Errorf("expected requester update to succeed, got %d", status)
	}
	if status := env.call("DELETE", path, requesterToken, nil, nil); status != http.StatusOK {
		t.Errorf("expected requester delete to succeed, got %d", status)
	}
}

func TestDiscrepancyOwnerRules(t *testing.T) {
	env, token := setupTestServer(t)
	asset := env.createAsset(token, map[string]any{"name": "Camera"})

	if status := env.call("POST", "/api/discrepancies", token, map[string]any{"type": "Missing"}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 without owner, got %d", status)
	}
	if status := env.call("POST", "/api/discrepancies", token,
		map[string]any{"type": "Missing", "assetId": asset.ID, "movementId": 1}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 with two owners, got %d", status)
	}
	if status := env.call("POST", "/api/discrepancies", token,
		map[string]any{"type": "Missing", "assetId": 9999}, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for missing asset, got %d", status)
	}

	var n int
	env.db.QueryRow(`SELECT COUNT(*) FROM discrepancies`).Scan(&n)
	if n != 0 {
		t.Errorf("expected no discrepancies written, got %d", n)
	}

	var created struct{ Discrepancy model.Discrepancy }
	if status := env.call("POST", "/api/discrepancies", token,
		map[string]any{"type": "Missing", "assetId": asset.ID, "priority": "High"}, &created); status != http.StatusCreated {
		t.Fatalf("create: status %d", status)
	}
	path := fmt.Sprintf("/api/discrepancies/%d", created.Discrepancy.ID)
	other := asset.ID + 1
	if status := env.call("PUT", path, token, map[string]any{"assetId": other}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 changing owner, got %d", status)
	}

	if status := env.call("DELETE", path, token, nil, nil); status != http.StatusOK {
		t.Fatalf("delete: status %d", status)
	}
	var detail assetResponse
	env.call("GET", fmt.Sprintf("/api/assets/%d", asset.ID), token, nil, &detail)
	if detail.Asset.HasDiscrepancy {
		t.Error("deleting the only discrepancy should clear the flag")
	}
}

func TestReconcileEndpoint(t *testing.T) {
	env, token := setupTestServer(t)
	asset := env.createAsset(token, map[string]any{"name": "Router"})
	env.db.Exec(`UPDATE assets SET has_discrepancy = 1 WHERE id = ?`, asset.ID)

	var resp struct{ Corrected int }
	if status := env.call("POST", "/api/discrepancies/reconcile", token, nil, &resp); status != http.StatusOK {
		t.Fatalf("reconcile: status %d", status)
	}
	if resp.Corrected != 1 {
		t.Errorf("expected 1 corrected flag, got %d", resp.Corrected)
	}
}

func TestSitesAndLocations(t *testing.T) {
	env, token := setupTestServer(t)

	var site struct{ Site model.Site }
	if status := env.call("POST", "/api/sites", token, map[string]any{"name": "HQ", "code": "HQ1"}, &site); status != http.StatusCreated {
		t.Fatalf("create site: status %d", status)
	}
	if status := env.call("POST", "/api/sites", token, map[string]any{"name": "HQ"}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for duplicate site name, got %d", status)
	}

	var loc struct{ Location model.Location }
	if status := env.call("POST", "/api/locations", token,
		map[string]any{"siteId": site.Site.ID, "name": "Floor 1"}, &loc); status != http.StatusCreated {
		t.Fatalf("create location: status %d", status)
	}

	sitePath := fmt.Sprintf("/api/sites/%d", site.Site.ID)
	if status := env.call("DELETE", sitePath, token, nil, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 deleting site with locations, got %d", status)
	}

	var updated struct{ Site model.Site }
	env.call("PUT", sitePath, token, map[string]any{"address": "Main St 1"}, &updated)
	if updated.Site.Name != "HQ" || updated.Site.Address != "Main St 1" {
		t.Errorf("partial update lost fields: %+v", updated.Site)
	}

	if status := env.call("DELETE", fmt.Sprintf("/api/locations/%d", loc.Location.ID), token, nil, nil); status != http.StatusOK {
		t.Fatalf("delete location: status %d", status)
	}
	if status := env.call("DELETE", sitePath, token, nil, nil); status != http.StatusOK {
		t.Errorf("expected site delete to succeed, got %d", status)
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		for y := range 8 {
			img.Set(x, y, color.RGBA{0, 128, 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func TestPhotoUploadDownloadDelete(t *testing.T) {
	env, token := setupTestServer(t)
	asset := env.createAsset(token, map[string]any{"name": "Crane"})
	data := testPNG(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("assetId", fmt.Sprint(asset.ID))
	mw.WriteField("description", "front view")
	part, _ := mw.CreateFormFile("photo", "crane.png")
	part.Write(data)
	mw.Close()

	req, _ := http.NewRequest("POST", env.server.URL+"/api/photos", &body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	var uploaded struct{ Photo model.Photo }
	json.NewDecoder(resp.Body).Decode(&uploaded)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	p := uploaded.Photo
	prefix := fmt.Sprintf("assets/%d/", asset.ID)
	if !strings.HasPrefix(p.FileName, prefix) || !strings.HasSuffix(p.FileName, ".png") {
		t.Errorf("unexpected storage key %q", p.FileName)
	}
	if p.MimeType != imaging.MIMEPNG || p.OriginalName != "crane.png" || p.Description != "front view" {
		t.Errorf("unexpected photo %+v", p)
	}

	req, _ = http.NewRequest("GET", fmt.Sprintf("%s/api/photos/%d/file", env.server.URL, p.ID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	got, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !bytes.Equal(got, data) {
		t.Errorf("download mismatch: status %d, %d bytes", resp.StatusCode, len(got))
	}

	path := fmt.Sprintf("/api/photos/%d", p.ID)
	if status := env.call("DELETE", path, token, nil, nil); status != http.StatusOK {
		t.Fatalf("delete: status %d", status)
	}
	if status := env.call("GET", path+"/file", token, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", status)
	}
}

func TestPhotoUploadRejectsNonImage(t *testing.T) {
	env, token := setupTestServer(t)
	asset := env.createAsset(token, map[string]any{"name": "Crane"})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("assetId", fmt.Sprint(asset.ID))
	part, _ := mw.CreateFormFile("photo", "notes.png")
	part.Write([]byte("plain text pretending to be a picture"))
	mw.Close()

	req, _ := http.NewRequest("POST", env.server.URL+"/api/photos", &body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAuditTrailRecorded(t *testing.T) {
	env, token := setupTestServer(t)
	var site struct{ Site model.Site }
	env.call("POST", "/api/sites", token, map[string]any{"name": "Depot"}, &site)

	var logs struct {
		AuditLogs  []model.AuditLog
		TotalItems int
	}
	path := fmt.Sprintf("/api/audit-logs?entityType=Site&entityId=%d", site.Site.ID)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		env.call("GET", path, token, nil, &logs)
		if logs.TotalItems > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if logs.TotalItems != 1 {
		t.Fatalf("expected 1 audit entry, got %d", logs.TotalItems)
	}
	entry := logs.AuditLogs[0]
	if entry.Action != model.ActionCreate || entry.Username != "admin" || len(entry.NewValues) == 0 {
		t.Errorf("unexpected audit entry %+v", entry)
	}
}
