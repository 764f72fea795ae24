package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/seglab/segcase-backend/internal/http/handlers"
	"github.com/seglab/segcase-backend/internal/http/middleware"
	"github.com/seglab/segcase-backend/internal/pkg/logger"
	"github.com/seglab/segcase-backend/internal/repos"
	"github.com/seglab/segcase-backend/internal/services"
	"github.com/seglab/segcase-backend/internal/types"
)

func newTestRouter(t *testing.T) (*gin.Engine, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	if err := db.AutoMigrate(&types.User{}, &types.UserToken{}, &types.Case{}); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	engineSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ImagePaths []string `json:"image_paths"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		masks := make([]string, len(req.ImagePaths))
		for i := range req.ImagePaths {
			masks[i] = fmt.Sprintf("/masks/mask_%d.png", i)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"mask_paths": masks})
	}))
	t.Cleanup(engineSrv.Close)

	userRepo := repos.NewUserRepo(db, log)
	userTokenRepo := repos.NewUserTokenRepo(db, log)
	caseRepo := repos.NewCaseRepo(db, log)

	staging, err := services.NewStagingService(log, t.TempDir(), 50*1024*1024)
	if err != nil {
		t.Fatalf("NewStagingService: %v", err)
	}
	engine, err := services.NewSegmentationClient(log, engineSrv.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewSegmentationClient: %v", err)
	}
	authService := services.NewAuthService(db, log, userRepo, userTokenRepo, "test-secret", time.Hour, 24*time.Hour)
	userService := services.NewUserService(db, log, userRepo)
	caseService := services.NewCaseService(db, log, caseRepo, staging, engine)

	router := NewRouter(RouterConfig{
		Log:            log,
		AuthMiddleware: middleware.NewAuthMiddleware(log, authService),
		HealthHandler:  handlers.NewHealthHandler(),
		AuthHandler:    handlers.NewAuthHandler(authService, userService),
		CaseHandler:    handlers.NewCaseHandler(log, caseService),
		ServiceName:    "segcase-backend-test",
		UploadsRoot:    staging.Root(),
	})
	return router, engineSrv
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func registerUser(t *testing.T, router *gin.Engine, email string) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     "Dr. Test",
		"email":    email,
		"password": "hunter22",
		"hospital": "General",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: want=201 got=%d body=%s", w.Code, w.Body.String())
	}
	token, _ := decodeBody(t, w)["token"].(string)
	if token == "" {
		t.Fatalf("register: no token in response")
	}
	return token
}

func caseBody() map[string]any {
	return map[string]any{
		"patientDetails": map[string]any{
			"patientName": "Jane Roe",
			"patientId":   "PX-1042",
			"age":         54,
			"gender":      "Female",
			"modality":    "MRI",
			"bodyPart":    "brain",
			"studyDate":   "2026-03-14",
		},
	}
}

func TestHealthcheckIsPublic(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/healthcheck", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthcheck: want=200 got=%d", w.Code)
	}
}

func TestCaseRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/cases", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: want=401 got=%d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/api/cases", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: want=401 got=%d", w.Code)
	}
}

func TestCaseLifecycleRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)
	token := registerUser(t, router, "roundtrip@example.org")

	w := doJSON(t, router, http.MethodPost, "/api/cases", token, caseBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create: want=201 got=%d body=%s", w.Code, w.Body.String())
	}
	created, _ := decodeBody(t, w)["case"].(map[string]any)
	caseID, _ := created["id"].(string)
	if caseID == "" {
		t.Fatalf("create: no case id in response")
	}
	if created["status"] != "created" {
		t.Fatalf("create: status=%v", created["status"])
	}

	// Multipart upload with one primary image and one support pair.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, name := range map[string]string{
		"images":        "scan.png",
		"supportImages": "support.png",
		"supportLabels": "label.png",
	} {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write([]byte("img")); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/cases/"+caseID+"/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	uploaded, _ := decodeBody(t, rec)["case"].(map[string]any)
	if uploaded["status"] != "uploading" {
		t.Fatalf("upload: status=%v", uploaded["status"])
	}

	w = doJSON(t, router, http.MethodPost, "/api/cases/"+caseID+"/segment", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("segment: want=200 got=%d body=%s", w.Code, w.Body.String())
	}
	segmented, _ := decodeBody(t, w)["case"].(map[string]any)
	if segmented["status"] != "completed" {
		t.Fatalf("segment: status=%v", segmented["status"])
	}
	masks, _ := segmented["segmentedImages"].([]any)
	if len(masks) != 1 {
		t.Fatalf("segment: want 1 mask, got %d", len(masks))
	}

	w = doJSON(t, router, http.MethodGet, "/api/cases", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: want=200 got=%d", w.Code)
	}
	cases, _ := decodeBody(t, w)["cases"].([]any)
	if len(cases) != 1 {
		t.Fatalf("list: want 1 case, got %d", len(cases))
	}

	w = doJSON(t, router, http.MethodDelete, "/api/cases/"+caseID, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: want=200 got=%d body=%s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodGet, "/api/cases/"+caseID, token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: want=404 got=%d", w.Code)
	}
}

func TestSegmentWithoutImagesIsBadRequest(t *testing.T) {
	router, _ := newTestRouter(t)
	token := registerUser(t, router, "noimages@example.org")

	w := doJSON(t, router, http.MethodPost, "/api/cases", token, caseBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create: want=201 got=%d", w.Code)
	}
	created, _ := decodeBody(t, w)["case"].(map[string]any)
	caseID, _ := created["id"].(string)

	w = doJSON(t, router, http.MethodPost, "/api/cases/"+caseID+"/segment", token, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("segment without images: want=400 got=%d body=%s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "validation_error" {
		t.Fatalf("error code: want=validation_error got=%v", errObj["code"])
	}
}

func TestCasesAreInvisibleAcrossOwners(t *testing.T) {
	router, _ := newTestRouter(t)
	ownerToken := registerUser(t, router, "owner@example.org")
	strangerToken := registerUser(t, router, "stranger@example.org")

	w := doJSON(t, router, http.MethodPost, "/api/cases", ownerToken, caseBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create: want=201 got=%d", w.Code)
	}
	created, _ := decodeBody(t, w)["case"].(map[string]any)
	caseID, _ := created["id"].(string)

	w = doJSON(t, router, http.MethodGet, "/api/cases/"+caseID, strangerToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("stranger get: want=404 got=%d body=%s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodDelete, "/api/cases/"+caseID, strangerToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("stranger delete: want=404 got=%d", w.Code)
	}
}

func TestMalformedCaseIDIsNotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	token := registerUser(t, router, "badid@example.org")

	w := doJSON(t, router, http.MethodGet, "/api/cases/not-a-uuid", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("malformed id: want=404 got=%d", w.Code)
	}
}
