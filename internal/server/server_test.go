package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"educraft/internal/app"
	"educraft/internal/ratelimit"
	"educraft/pkg/ai"
	"educraft/pkg/storage"
	"educraft/pkg/store"
	"educraft/pkg/token"
)

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	if cfg.App == nil {
		cfg.App = newTestApp(t, "")
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func newTestApp(t *testing.T, uploadsDir string) *app.App {
	t.Helper()
	issuer, err := token.New(token.Config{Secret: "test-secret-test-secret"})
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	cfg := app.Config{
		Store:  store.NewFallbackStore(nil, store.NewMemoryStore(), nil),
		Tokens: issuer,
		AI:     ai.NewDispatcher("mock", nil),
	}
	if uploadsDir != "" {
		objects, err := storage.NewLocalStore(uploadsDir, "/uploads")
		if err != nil {
			t.Fatalf("NewLocalStore: %v", err)
		}
		cfg.Objects = objects
	}
	a, err := app.New(cfg)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	return a
}

type apiEnvelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		Current    int   `json:"current"`
		PageSize   int   `json:"pageSize"`
		Total      int64 `json:"total"`
		TotalPages int   `json:"totalPages"`
	} `json:"pagination"`
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, bearer string, body any) (*http.Response, apiEnvelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, env
}

func registerAccount(t *testing.T, ts *httptest.Server, username, email string) (string, string) {
	t.Helper()
	resp, env := doJSON(t, ts, http.MethodPost, "/api/accounts/register", "", map[string]any{
		"username": username,
		"email":    email,
		"password": "sup3rsecret",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d message %q", username, resp.StatusCode, env.Message)
	}
	var data struct {
		Account struct {
			ID string `json:"id"`
		} `json:"account"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode register data: %v", err)
	}
	return data.Account.ID, data.Token
}

func TestRegisterThenLogin(t *testing.T) {
	ts := newTestServer(t, Config{})
	accountID, _ := registerAccount(t, ts, "frizzle", "frizzle@example.com")

	resp, env := doJSON(t, ts, http.MethodPost, "/api/accounts/login", "", map[string]any{
		"email":    "frizzle@example.com",
		"password": "sup3rsecret",
	})
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("login: status %d message %q", resp.StatusCode, env.Message)
	}
	var data struct {
		Account struct {
			ID          string  `json:"id"`
			LastLoginAt *string `json:"lastLoginAt"`
		} `json:"account"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	if data.Account.ID != accountID {
		t.Fatalf("login returned wrong account %s", data.Account.ID)
	}
	if data.Account.LastLoginAt == nil {
		t.Fatal("expected lastLoginAt to be stamped")
	}

	resp, env = doJSON(t, ts, http.MethodGet, "/api/accounts/me", data.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d message %q", resp.StatusCode, env.Message)
	}
}

func TestLoginFailureIsGeneric(t *testing.T) {
	ts := newTestServer(t, Config{})
	registerAccount(t, ts, "alice", "alice@example.com")

	resp, env := doJSON(t, ts, http.MethodPost, "/api/accounts/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "wrongpass1",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if env.Message != "invalid email or password" {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	ts := newTestServer(t, Config{})
	for _, path := range []string{"/api/resources", "/api/generations", "/api/accounts/me"} {
		resp, _ := doJSON(t, ts, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, resp.StatusCode)
		}
	}
}

func TestResourceLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t, Config{})
	_, creatorTok := registerAccount(t, ts, "creator", "creator@example.com")
	_, otherTok := registerAccount(t, ts, "other", "other@example.com")

	resp, env := doJSON(t, ts, http.MethodPost, "/api/resources", creatorTok, map[string]any{
		"title":       "Fractions revision",
		"contentType": "text",
		"category":    "worksheet",
		"isPublic":    false,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d message %q", resp.StatusCode, env.Message)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode resource: %v", err)
	}

	// Private resources look missing to other accounts.
	resp, _ = doJSON(t, ts, http.MethodGet, "/api/resources/"+created.ID, otherTok, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("private read by other: expected 404, got %d", resp.StatusCode)
	}

	resp, env = doJSON(t, ts, http.MethodPut, "/api/resources/"+created.ID, creatorTok, map[string]any{
		"isPublic": true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("publish: status %d message %q", resp.StatusCode, env.Message)
	}

	resp, env = doJSON(t, ts, http.MethodPost, "/api/resources/"+created.ID+"/like", otherTok, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("like: status %d message %q", resp.StatusCode, env.Message)
	}
	var liked struct {
		Likes []string `json:"likes"`
	}
	if err := json.Unmarshal(env.Data, &liked); err != nil {
		t.Fatalf("decode liked: %v", err)
	}
	if len(liked.Likes) != 1 {
		t.Fatalf("expected one like, got %v", liked.Likes)
	}

	// Non-owner update is forbidden even on public resources.
	resp, _ = doJSON(t, ts, http.MethodPut, "/api/resources/"+created.ID, otherTok, map[string]any{"title": "hijack"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-owner update: expected 403, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, ts, http.MethodDelete, "/api/resources/"+created.ID, creatorTok, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, ts, http.MethodGet, "/api/resources/"+created.ID, creatorTok, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("read after delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestResourceListPagination(t *testing.T) {
	ts := newTestServer(t, Config{})
	_, tok := registerAccount(t, ts, "creator", "creator@example.com")

	for i := 0; i < 5; i++ {
		resp, env := doJSON(t, ts, http.MethodPost, "/api/resources", tok, map[string]any{
			"title":       fmt.Sprintf("Worksheet %d", i),
			"contentType": "text",
			"category":    "worksheet",
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %d: status %d message %q", i, resp.StatusCode, env.Message)
		}
	}

	resp, env := doJSON(t, ts, http.MethodGet, "/api/resources?page=2&pageSize=2", tok, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", resp.StatusCode)
	}
	if env.Pagination == nil {
		t.Fatal("expected pagination block")
	}
	if env.Pagination.Total != 5 || env.Pagination.TotalPages != 3 || env.Pagination.Current != 2 {
		t.Fatalf("unexpected pagination %+v", env.Pagination)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(env.Data, &items); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items on page 2, got %d", len(items))
	}
}

func TestGenerationMockSubstitutionOverHTTP(t *testing.T) {
	ts := newTestServer(t, Config{})
	_, tok := registerAccount(t, ts, "teacher", "teacher@example.com")

	resp, env := doJSON(t, ts, http.MethodPost, "/api/generations", tok, map[string]any{
		"prompt":      "Explain photosynthesis",
		"contentType": "text",
		"provider":    "no-such-provider",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate: status %d message %q", resp.StatusCode, env.Message)
	}
	var record struct {
		ID       string         `json:"id"`
		Provider string         `json:"provider"`
		Status   string         `json:"status"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal(env.Data, &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.Provider != "mock" || record.Status != "completed" {
		t.Fatalf("expected completed mock record, got %+v", record)
	}
	if record.Metadata["isMock"] != true {
		t.Fatalf("expected isMock metadata, got %v", record.Metadata)
	}

	resp, env = doJSON(t, ts, http.MethodGet, "/api/generations/"+record.ID, tok, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get record: status %d message %q", resp.StatusCode, env.Message)
	}
}

func TestLoginRateLimited(t *testing.T) {
	srv := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(srv.Addr(), "", "test:login", 2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	ts := newTestServer(t, Config{Limiters: Limiters{Login: limiter}})
	registerAccount(t, ts, "alice", "alice@example.com")

	body := map[string]any{"email": "alice@example.com", "password": "sup3rsecret"}
	for i := 0; i < 2; i++ {
		resp, _ := doJSON(t, ts, http.MethodPost, "/api/accounts/login", "", body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("login %d: status %d", i, resp.StatusCode)
		}
	}
	resp, env := doJSON(t, ts, http.MethodPost, "/api/accounts/login", "", body)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d message %q", resp.StatusCode, env.Message)
	}
}

func TestUploadAndServeFile(t *testing.T) {
	dir := t.TempDir()
	a := newTestApp(t, dir)
	ts := newTestServer(t, Config{App: a, UploadsDir: dir, UploadsPrefix: "/uploads"})
	_, tok := registerAccount(t, ts, "teacher", "teacher@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("kind", "image"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	fw, err := mw.CreateFormFile("file", "diagram.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("png-bytes")); err != nil {
		t.Fatalf("write file: %v", err)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/uploads", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload: status %d", resp.StatusCode)
	}
	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var data struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !strings.HasPrefix(data.URL, "/uploads/images/") {
		t.Fatalf("unexpected upload url %q", data.URL)
	}

	got, err := ts.Client().Get(ts.URL + data.URL)
	if err != nil {
		t.Fatalf("fetch uploaded file: %v", err)
	}
	defer got.Body.Close()
	if got.StatusCode != http.StatusOK {
		t.Fatalf("fetch uploaded file: status %d", got.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, Config{})
	resp, env := doJSON(t, ts, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("healthz: status %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected security headers")
	}
}
