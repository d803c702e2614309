package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/faucetdb/memberapi/internal/schema"
	"github.com/faucetdb/memberapi/internal/service"
	"github.com/faucetdb/memberapi/internal/store"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testJWTSecret = "test-secret-for-jwt-integration-tests"
	testPassword  = "supersecretpassword"
	testAdminName = "admin"
)

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server   *Server
	identity *service.IdentityService
	authSvc  *service.AuthService
}

// newTestEnv creates a fresh test environment backed by a SQLite file in a
// temp dir and a fully wired Server.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, func(cfg *Config) {})
}

func newTestEnvWithConfig(t *testing.T, mutate func(cfg *Config)) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dir := t.TempDir()
	schemaPath := filepath.Join(dir, schema.Admins)
	if _, err := schema.WriteFile(schema.Admins, schemaPath, true); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	conn := store.NewConn(filepath.Join(dir, "memberapi.db"), logger)
	admins := store.NewAdminStore(context.Background(), conn, schemaPath, logger)

	identity := service.NewIdentityService(admins, logger)
	identity.SetHashCost(bcrypt.MinCost)
	authSvc := service.NewAuthService(identity, testJWTSecret, time.Hour)

	cfg := DefaultConfig()
	cfg.LoginAttempts = 0
	mutate(&cfg)
	srv := New(cfg, identity, authSvc, "test", logger)

	return &testEnv{
		server:   srv,
		identity: identity,
		authSvc:  authSvc,
	}
}

// seedAdmin creates the default admin account and returns its id.
func (e *testEnv) seedAdmin(t *testing.T) int64 {
	t.Helper()
	id, _, err := e.identity.Register(context.Background(), testAdminName, "admin@example.com", testPassword)
	if err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	return id
}

// adminToken exchanges the default admin's credentials for a session token.
func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	rr := e.doBasic(t, "POST", "/api/session", nil, testAdminName, testPassword)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Token string `json:"session_token"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Token == "" {
		t.Fatal("adminToken: got empty token from login")
	}
	return resp.Token
}

// do executes an HTTP request against the test server and returns the recorder.
// headers is an optional map of header key-value pairs.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

// doBasic executes a request with HTTP basic credentials.
func (e *testEnv) doBasic(t *testing.T, method, path string, body io.Reader, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(username, password)
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

// doAuth executes a request authenticated with a session token.
func (e *testEnv) doAuth(t *testing.T, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("jsonBody: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func assertContentType(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	got := rr.Header().Get("Content-Type")
	if got != want {
		t.Errorf("Content-Type = %q, want %q", got, want)
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Unauthenticated routes
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	assertContentType(t, rr, "application/json")

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want %q", resp["status"], "ok")
	}
}

func TestRootRedirects(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/", nil, nil)
	assertStatus(t, rr, http.StatusFound)
	if loc := rr.Header().Get("Location"); loc != "/api/" {
		t.Errorf("Location = %q, want /api/", loc)
	}
}

func TestHome(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	assertContentType(t, rr, "application/json")

	var resp map[string]interface{}
	decodeJSON(t, rr, &resp)
	if resp["api_version"] != float64(1) || resp["name"] != "Member API" {
		t.Errorf("home = %v", resp)
	}
}

func TestOpenAPIDocument(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/openapi.json", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	var doc struct {
		OpenAPI string                 `json:"openapi"`
		Info    map[string]interface{} `json:"info"`
		Paths   map[string]interface{} `json:"paths"`
		Servers []struct {
			URL string `json:"url"`
		} `json:"servers"`
		Components struct {
			Schemas map[string]struct {
				Properties map[string]interface{} `json:"properties"`
			} `json:"schemas"`
		} `json:"components"`
	}
	decodeJSON(t, rr, &doc)

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if doc.Info["version"] != "test" {
		t.Errorf("info.version = %v, want test", doc.Info["version"])
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://example.com" {
		t.Errorf("servers = %+v", doc.Servers)
	}
	for _, p := range []string{"/api/", "/api/session", "/api/admin", "/api/admin/{id}"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Errorf("path %s missing", p)
		}
	}
	admin := doc.Components.Schemas["Admin"]
	if _, ok := admin.Properties["username"]; !ok {
		t.Error("Admin schema should be built from the admins table")
	}
	if _, ok := admin.Properties["password"]; ok {
		t.Error("Admin schema exposes password")
	}
}

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

func TestAdminEndpoints_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/session"},
		{"GET", "/api/admin"},
		{"POST", "/api/admin"},
		{"GET", "/api/admin/1"},
		{"PATCH", "/api/admin/1"},
		{"DELETE", "/api/admin/1"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			rr := env.do(t, ep.method, ep.path, nil, nil)
			assertStatus(t, rr, http.StatusUnauthorized)
			if rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate challenge")
			}
		})
	}
}

func TestAdminEndpoints_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	rr := env.doBasic(t, "GET", "/api/admin", nil, testAdminName, "wrongpassword")
	assertStatus(t, rr, http.StatusUnauthorized)

	rr = env.doBasic(t, "GET", "/api/admin", nil, "ghost", testPassword)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestAdminEndpoints_InvalidToken(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	rr := env.doAuth(t, "GET", "/api/admin", nil, "not-a-jwt")
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedAdmin(t)

	rr := env.doBasic(t, "POST", "/api/session", nil, testAdminName, testPassword)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Token     string `json:"session_token"`
		TokenType string `json:"token_type"`
		ExpiresIn int    `json:"expires_in"`
		AdminID   int64  `json:"admin_id"`
		Username  string `json:"username"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Token == "" || resp.TokenType != "bearer" {
		t.Errorf("session = %+v", resp)
	}
	if resp.ExpiresIn <= 0 || resp.ExpiresIn > 3600 {
		t.Errorf("expires_in = %d, want within (0, 3600]", resp.ExpiresIn)
	}
	if resp.AdminID != id || resp.Username != testAdminName {
		t.Errorf("principal = %d %q", resp.AdminID, resp.Username)
	}

	rr = env.doAuth(t, "GET", "/api/admin", nil, resp.Token)
	assertStatus(t, rr, http.StatusOK)
}

func TestSession_DisabledAdmin(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedAdmin(t)
	token := env.adminToken(t)

	if err := env.identity.SetActive(context.Background(), id, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	rr := env.doBasic(t, "GET", "/api/admin", nil, testAdminName, testPassword)
	assertStatus(t, rr, http.StatusUnauthorized)

	rr = env.doAuth(t, "GET", "/api/admin", nil, token)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnvWithConfig(t, func(cfg *Config) { cfg.LoginAttempts = 2 })
	env.seedAdmin(t)

	for i := 0; i < 2; i++ {
		rr := env.doBasic(t, "GET", "/api/admin", nil, testAdminName, "guess")
		assertStatus(t, rr, http.StatusUnauthorized)
	}
	rr := env.doBasic(t, "GET", "/api/admin", nil, testAdminName, testPassword)
	assertStatus(t, rr, http.StatusTooManyRequests)

	// Unauthenticated routes are not limited.
	rr = env.do(t, "GET", "/api/", nil, nil)
	assertStatus(t, rr, http.StatusOK)
}

func TestLoginRateLimitIgnoresBearerTraffic(t *testing.T) {
	env := newTestEnvWithConfig(t, func(cfg *Config) {
		cfg.LoginAttempts = DefaultConfig().LoginAttempts
	})
	env.seedAdmin(t)
	token := env.adminToken(t)

	for i := 1; i <= DefaultConfig().LoginAttempts+10; i++ {
		rr := env.doAuth(t, "GET", "/api/admin", nil, token)
		if rr.Code != http.StatusOK {
			t.Fatalf("bearer request #%d: status = %d, want 200", i, rr.Code)
		}
	}
}

// ---------------------------------------------------------------------------
// Admin management
// ---------------------------------------------------------------------------

func TestAdminCRUD(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	// --- List (should include the seed admin) ---
	rr := env.doAuth(t, "GET", "/api/admin", nil, token)
	assertStatus(t, rr, http.StatusOK)

	var listResp struct {
		Resource []map[string]interface{} `json:"resource"`
		Meta     struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	decodeJSON(t, rr, &listResp)
	if len(listResp.Resource) != 1 || listResp.Meta.Count != 1 {
		t.Fatalf("list count = %d (meta %d), want 1", len(listResp.Resource), listResp.Meta.Count)
	}
	if listResp.Resource[0]["emailid"] != "admin@example.com" {
		t.Errorf("emailid = %v, want admin@example.com", listResp.Resource[0]["emailid"])
	}
	if _, ok := listResp.Resource[0]["password"]; ok {
		t.Error("list exposes password")
	}

	// --- Create a second admin ---
	createBody := jsonBody(t, map[string]string{
		"username": "second",
		"emailid":  "admin2@example.com",
		"password": "anothersecretpassword",
	})
	rr = env.doAuth(t, "POST", "/api/admin", createBody, token)
	assertStatus(t, rr, http.StatusCreated)

	var created map[string]interface{}
	decodeJSON(t, rr, &created)
	if created["api_version"] != float64(1) {
		t.Errorf("api_version = %v", created["api_version"])
	}
	rec, ok := created["2"].(map[string]interface{})
	if !ok {
		t.Fatalf("created body not keyed by id 2: %v", created)
	}
	if rec["username"] != "second" || rec["active"] != float64(1) {
		t.Errorf("created = %v", rec)
	}
	if _, ok := rec["password"]; ok {
		t.Error("create exposes password")
	}
	if _, ok := rec["id"]; ok {
		t.Error("keyed record should not repeat its id")
	}

	// --- Get ---
	rr = env.doAuth(t, "GET", "/api/admin/2", nil, token)
	assertStatus(t, rr, http.StatusOK)

	// --- New admin can log in ---
	rr = env.doBasic(t, "POST", "/api/session", nil, "second", "anothersecretpassword")
	assertStatus(t, rr, http.StatusOK)

	// --- Update password ---
	rr = env.doAuth(t, "PATCH", "/api/admin/2", jsonBody(t, map[string]string{"password": "rotated"}), token)
	assertStatus(t, rr, http.StatusOK)
	rr = env.doBasic(t, "POST", "/api/session", nil, "second", "anothersecretpassword")
	assertStatus(t, rr, http.StatusUnauthorized)
	rr = env.doBasic(t, "POST", "/api/session", nil, "second", "rotated")
	assertStatus(t, rr, http.StatusOK)

	// --- Delete, twice ---
	rr = env.doAuth(t, "DELETE", "/api/admin/2", nil, token)
	assertStatus(t, rr, http.StatusOK)
	rr = env.doAuth(t, "DELETE", "/api/admin/2", nil, token)
	assertStatus(t, rr, http.StatusOK)

	rr = env.doAuth(t, "GET", "/api/admin/2", nil, token)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestCreateAdmin_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing username", map[string]interface{}{"emailid": "x@example.com", "password": "pw"}},
		{"missing emailid", map[string]interface{}{"username": "x", "password": "pw"}},
		{"missing password", map[string]interface{}{"username": "x", "emailid": "x@example.com"}},
		{"empty body", map[string]interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.doAuth(t, "POST", "/api/admin", jsonBody(t, tt.body), token)
			assertStatus(t, rr, http.StatusBadRequest)
		})
	}
}

func TestCreateAdmin_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"username", map[string]string{"username": testAdminName, "emailid": "other@example.com", "password": "pw"}},
		{"emailid", map[string]string{"username": "other", "emailid": "admin@example.com", "password": "pw"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.doAuth(t, "POST", "/api/admin", jsonBody(t, tt.body), token)
			assertStatus(t, rr, http.StatusConflict)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "OPTIONS", "/api/admin", nil, map[string]string{
		"Origin":                        "https://console.example.com",
		"Access-Control-Request-Method": "GET",
	})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Errorf("missing Access-Control-Allow-Origin; status = %d", rr.Code)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	env := newTestEnvWithConfig(t, func(cfg *Config) {
		cfg.Host = "127.0.0.1"
		cfg.Port = 0
		cfg.ShutdownTimeout = time.Second
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
