package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ai-data-analyst/internal/app"
	"ai-data-analyst/internal/bootstrap"
	"ai-data-analyst/internal/config"
	"ai-data-analyst/internal/ingest"
	"ai-data-analyst/internal/model"
	"ai-data-analyst/internal/pipeline"
	"ai-data-analyst/internal/repository"
	"ai-data-analyst/internal/transport/http/response"
)

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, table, _ string) pipeline.Result {
	return pipeline.Result{
		Response: pipeline.Response{Answer: "rows in " + table, SQLQuery: "SELECT COUNT(*) FROM " + table},
		Outcome:  pipeline.OutcomeSuccess,
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "http.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Dataset{}, &model.ChatMessage{}, &model.SavedChart{}, &model.QueryLog{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cfg := &config.Config{
		App:       config.AppConfig{Name: "analyst-test", Env: "test", GinMode: gin.TestMode, AllowedOrigins: []string{"*"}},
		Auth:      config.AuthConfig{JWTSecret: "test-secret", JWTExpireMinute: 60},
		Upload:    config.UploadConfig{MaxSizeMB: 1},
		RateLimit: config.RateLimitConfig{RequestsPerMinute: 600, Burst: 100},
	}

	messageRepo := repository.NewMessageRepository(db)
	queryLogRepo := repository.NewQueryLogRepository(db)
	datasets := app.NewDatasetService(app.DatasetServiceDeps{
		DB:           db,
		DatasetRepo:  repository.NewDatasetRepository(db),
		MessageRepo:  messageRepo,
		QueryLogRepo: queryLogRepo,
		Ingestor:     ingest.NewIngestor(db, 1000),
	})
	a := &bootstrap.App{
		Config:   cfg,
		Logger:   zap.NewNop(),
		DB:       db,
		Auth:     app.NewAuthService(repository.NewUserRepository(db), cfg.Auth.JWTSecret, time.Hour),
		Datasets: datasets,
		Analyst: app.NewAnalystService(app.AnalystServiceDeps{
			Datasets:     datasets,
			MessageRepo:  messageRepo,
			QueryLogRepo: queryLogRepo,
			Runner:       stubRunner{},
		}),
		Charts:    app.NewChartService(datasets, repository.NewSavedChartRepository(db)),
		StartedAt: time.Now(),
	}
	return NewRouter(a)
}

func do(t *testing.T, router *gin.Engine, req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func jsonRequest(method, path string, body any) *http.Request {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write([]byte(content))
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/data/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func registerAndToken(t *testing.T, router *gin.Engine, email string) string {
	t.Helper()
	w, _ := do(t, router, jsonRequest(http.MethodPost, "/api/v1/auth/register", gin.H{"email": email, "password": "password123"}), "")
	if w.Code != http.StatusOK {
		t.Fatalf("register status = %d body = %s", w.Code, w.Body.String())
	}

	form := url.Values{"username": {email}, "password": {"password123"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w, env := do(t, router, req, "")
	if w.Code != http.StatusOK {
		t.Fatalf("token status = %d body = %s", w.Code, w.Body.String())
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(env.Data, &tok); err != nil || tok.AccessToken == "" || tok.TokenType != "bearer" {
		t.Fatalf("token payload = %s", env.Data)
	}
	return tok.AccessToken
}

func TestAuthRoutes(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndToken(t, router, "ana@example.com")

	w, env := do(t, router, jsonRequest(http.MethodPost, "/api/v1/auth/register", gin.H{"email": "ana@example.com", "password": "password123"}), "")
	if w.Code != http.StatusBadRequest || env.Code != response.CodeEmailExists || env.Message != "Email already registered" {
		t.Fatalf("duplicate register = %d %+v", w.Code, env)
	}

	w, env = do(t, router, jsonRequest(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ana@example.com", "password": "nope-nope"}), "")
	if w.Code != http.StatusUnauthorized || env.Message != "Incorrect email or password" {
		t.Fatalf("bad login = %d %+v", w.Code, env)
	}

	w, env = do(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil), token)
	if w.Code != http.StatusOK || !strings.Contains(string(env.Data), `"email":"ana@example.com"`) {
		t.Fatalf("me = %d %s", w.Code, env.Data)
	}

	w, env = do(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/datasets", nil), "")
	if w.Code != http.StatusUnauthorized || env.Message != "Could not validate credentials" {
		t.Fatalf("anonymous datasets = %d %+v", w.Code, env)
	}
}

func TestDatasetLifecycle(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndToken(t, router, "ana@example.com")
	intruder := registerAndToken(t, router, "eve@example.com")

	w, env := do(t, router, uploadRequest(t, "sales.csv", "Region,Total $\nnorth,10\nsouth,20\n"), token)
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d body = %s", w.Code, w.Body.String())
	}
	var dataset struct {
		ID               uint   `json:"id"`
		OriginalFilename string `json:"original_filename"`
		RowCount         int64  `json:"row_count"`
	}
	if err := json.Unmarshal(env.Data, &dataset); err != nil {
		t.Fatalf("decode dataset: %v", err)
	}
	if dataset.ID == 0 || dataset.OriginalFilename != "sales.csv" || dataset.RowCount != 2 {
		t.Fatalf("dataset = %+v", dataset)
	}
	base := "/api/v1/datasets/" + itoa(dataset.ID)

	w, env = do(t, router, jsonRequest(http.MethodPost, "/api/v1/query/chat", gin.H{"dataset_id": dataset.ID, "question": "how many rows?"}), token)
	if w.Code != http.StatusOK {
		t.Fatalf("chat status = %d body = %s", w.Code, w.Body.String())
	}
	var answer pipeline.Response
	if err := json.Unmarshal(env.Data, &answer); err != nil || !strings.HasPrefix(answer.Answer, "rows in data_sales_") {
		t.Fatalf("chat answer = %s", env.Data)
	}

	w, env = do(t, router, httptest.NewRequest(http.MethodGet, base+"/history", nil), token)
	var history []model.ChatMessage
	if err := json.Unmarshal(env.Data, &history); err != nil || len(history) != 2 || !history[0].IsFromUser {
		t.Fatalf("history = %d %s", w.Code, env.Data)
	}

	chartsPath := "/api/v1/charts/datasets/" + itoa(dataset.ID) + "/charts"
	w, _ = do(t, router, jsonRequest(http.MethodPost, chartsPath, gin.H{"label": "by region", "chart_data": `{"type":"chart"}`}), token)
	if w.Code != http.StatusOK {
		t.Fatalf("save chart status = %d body = %s", w.Code, w.Body.String())
	}
	w, env = do(t, router, httptest.NewRequest(http.MethodGet, chartsPath, nil), token)
	if w.Code != http.StatusOK || !strings.Contains(string(env.Data), `"label":"by region"`) {
		t.Fatalf("list charts = %d %s", w.Code, env.Data)
	}

	w, env = do(t, router, httptest.NewRequest(http.MethodGet, base+"/history", nil), intruder)
	if w.Code != http.StatusNotFound || env.Code != response.CodeDatasetNotFound {
		t.Fatalf("intruder history = %d %+v", w.Code, env)
	}
	w, _ = do(t, router, jsonRequest(http.MethodPost, "/api/v1/query/chat", gin.H{"dataset_id": dataset.ID, "question": "hi"}), intruder)
	if w.Code != http.StatusNotFound {
		t.Fatalf("intruder chat = %d", w.Code)
	}

	w, _ = do(t, router, httptest.NewRequest(http.MethodDelete, base, nil), token)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d body = %s", w.Code, w.Body.String())
	}
	w, _ = do(t, router, httptest.NewRequest(http.MethodGet, base+"/history", nil), token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("history after delete = %d", w.Code)
	}
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndToken(t, router, "ana@example.com")

	w, env := do(t, router, uploadRequest(t, "notes.txt", "hello"), token)
	if w.Code != http.StatusBadRequest || env.Code != response.CodeUnsupportedFormat {
		t.Fatalf("upload txt = %d %+v", w.Code, env)
	}
	if !strings.HasPrefix(env.Message, "Unsupported file format.") {
		t.Fatalf("message = %q", env.Message)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndToken(t, router, "ana@example.com")

	big := "v\n" + strings.Repeat("1234567890\n", 120000)
	w, env := do(t, router, uploadRequest(t, "big.csv", big), token)
	if w.Code != http.StatusRequestEntityTooLarge || env.Code != response.CodePayloadTooLarge {
		t.Fatalf("oversized upload = %d %+v", w.Code, env)
	}
}

func TestChatValidatesPayload(t *testing.T) {
	router := newTestRouter(t)
	token := registerAndToken(t, router, "ana@example.com")

	w, _ := do(t, router, jsonRequest(http.MethodPost, "/api/v1/query/chat", gin.H{"question": "hi"}), token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing dataset id = %d", w.Code)
	}
	w, _ = do(t, router, jsonRequest(http.MethodPost, "/api/v1/query/chat", gin.H{"dataset_id": 99, "question": "hi"}), token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown dataset = %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"database":{"ok":true}`) {
		t.Fatalf("healthz = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "analyst_http_requests_total") {
		t.Fatalf("metrics = %d", w.Code)
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
