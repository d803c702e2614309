package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/faucetdb/memberapi/internal/schema"
	"github.com/faucetdb/memberapi/internal/server/middleware"
	"github.com/faucetdb/memberapi/internal/service"
	"github.com/faucetdb/memberapi/internal/store"
)

const (
	testJWTSecret = "test-secret-for-handler-tests"
	testPassword  = "supersecretpassword"
)

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	identity *service.IdentityService
	authSvc  *service.AuthService
	handler  *AdminHandler
	router   chi.Router

	// principal, when set, is attached to every request as if RequireAdmin
	// had admitted it.
	principal *service.Principal
}

// newTestEnv creates a fresh test environment over a temp-dir database, an
// admin handler, and a Chi router with routes mounted (no auth middleware).
func newTestEnv(t *testing.T) *testEnv {
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
	h := NewAdminHandler(identity, authSvc, logger)

	e := &testEnv{
		identity: identity,
		authSvc:  authSvc,
		handler:  h,
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if e.principal != nil {
				ctx := middleware.WithAuthContext(r.Context(), &middleware.AuthContext{
					Principal: e.principal,
					Method:    middleware.MethodBasic,
				})
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.Home)
		r.Post("/session", h.CreateSession)
		r.Get("/admin", h.ListAdmins)
		r.Post("/admin", h.CreateAdmin)
		r.Get("/admin/{id}", h.GetAdmin)
		r.Patch("/admin/{id}", h.UpdateAdmin)
		r.Delete("/admin/{id}", h.DeleteAdmin)
	})
	e.router = r
	return e
}

// seedAdmin registers an admin and returns its id.
func (e *testEnv) seedAdmin(t *testing.T, username, emailid string) int64 {
	t.Helper()
	id, _, err := e.identity.Register(context.Background(), username, emailid, testPassword)
	if err != nil {
		t.Fatalf("seedAdmin(%q): %v", username, err)
	}
	return id
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// toJSON marshals v into a reader for use as a request body.
func toJSON(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return bytes.NewReader(b)
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// errorMessage decodes an error envelope and returns its message.
func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Error.Code != rr.Code {
		t.Errorf("error.code = %d, want %d", resp.Error.Code, rr.Code)
	}
	return resp.Error.Message
}

// ---------------------------------------------------------------------------
// Home
// ---------------------------------------------------------------------------

func TestHome(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/", nil)
	assertStatus(t, rr, http.StatusOK)

	var resp map[string]interface{}
	decodeJSON(t, rr, &resp)
	if resp["api_version"] != float64(1) {
		t.Errorf("api_version = %v, want 1", resp["api_version"])
	}
	if resp["name"] != "Member API" {
		t.Errorf("name = %v, want Member API", resp["name"])
	}
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedAdmin(t, "alice", "alice@example.com")
	env.principal = &service.Principal{AdminID: id, Username: "alice"}

	rr := env.do(t, "POST", "/api/session", nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Token     string `json:"session_token"`
		TokenType string `json:"token_type"`
		ExpiresIn int    `json:"expires_in"`
		AdminID   int64  `json:"admin_id"`
	}
	decodeJSON(t, rr, &resp)
	if resp.TokenType != "bearer" || resp.AdminID != id {
		t.Errorf("session = %+v", resp)
	}

	p, err := env.authSvc.ValidateToken(context.Background(), resp.Token)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if p.AdminID != id {
		t.Errorf("token admin = %d, want %d", p.AdminID, id)
	}
}

func TestCreateSession_NoAuthContext(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/session", nil)
	assertStatus(t, rr, http.StatusUnauthorized)
}

// ---------------------------------------------------------------------------
// Admin management
// ---------------------------------------------------------------------------

func TestListAdmins(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/admin", nil)
	assertStatus(t, rr, http.StatusOK)
	var empty struct {
		Resource []map[string]interface{} `json:"resource"`
	}
	decodeJSON(t, rr, &empty)
	if empty.Resource == nil || len(empty.Resource) != 0 {
		t.Errorf("empty list should be [], got %v", empty.Resource)
	}

	env.seedAdmin(t, "alice", "alice@example.com")
	env.seedAdmin(t, "bob", "bob@example.com")

	rr = env.do(t, "GET", "/api/admin", nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		APIVersion int                      `json:"api_version"`
		Resource   []map[string]interface{} `json:"resource"`
		Meta       struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	decodeJSON(t, rr, &resp)
	if resp.APIVersion != 1 {
		t.Errorf("api_version = %d", resp.APIVersion)
	}
	if resp.Meta.Count != 2 || len(resp.Resource) != 2 {
		t.Fatalf("count = %d, resource = %d, want 2", resp.Meta.Count, len(resp.Resource))
	}
	for _, rec := range resp.Resource {
		if _, ok := rec["password"]; ok {
			t.Errorf("record %v exposes password", rec["username"])
		}
	}
}

func TestCreateAdmin(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/admin", toJSON(t, map[string]string{
		"username": "alice",
		"emailid":  "alice@example.com",
		"password": "s3cret",
	}))
	assertStatus(t, rr, http.StatusCreated)

	var resp map[string]json.RawMessage
	decodeJSON(t, rr, &resp)
	raw, ok := resp["1"]
	if !ok {
		t.Fatalf("response not keyed by id 1: %v", resp)
	}
	var rec map[string]interface{}
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("decode keyed record: %v", err)
	}
	if rec["username"] != "alice" || rec["emailid"] != "alice@example.com" {
		t.Errorf("record = %v", rec)
	}
	for _, hidden := range []string{"id", "password"} {
		if _, ok := rec[hidden]; ok {
			t.Errorf("record carries %q", hidden)
		}
	}

	ok, err := env.identity.ValidatePassword(context.Background(), "alice", "s3cret")
	if err != nil || !ok {
		t.Errorf("ValidatePassword after create = %v, %v", ok, err)
	}
}

func TestCreateAdmin_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "alice", "alice@example.com")

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"invalid json", `{"username":`, http.StatusBadRequest, "Invalid request body"},
		{"missing password", `{"username":"bob","emailid":"bob@example.com"}`, http.StatusBadRequest, "required"},
		{"duplicate username", `{"username":"alice","emailid":"new@example.com","password":"x"}`, http.StatusConflict, "already exists"},
		{"duplicate emailid", `{"username":"bob","emailid":"alice@example.com","password":"x"}`, http.StatusConflict, "already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "POST", "/api/admin", strings.NewReader(tt.body))
			assertStatus(t, rr, tt.wantStatus)
			if msg := errorMessage(t, rr); !strings.Contains(msg, tt.wantMsg) {
				t.Errorf("message = %q, want it to contain %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestGetAdmin(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedAdmin(t, "alice", "alice@example.com")

	rr := env.do(t, "GET", "/api/admin/1", nil)
	assertStatus(t, rr, http.StatusOK)

	var resp map[string]interface{}
	decodeJSON(t, rr, &resp)
	rec, ok := resp["1"].(map[string]interface{})
	if !ok {
		t.Fatalf("response not keyed by id %d: %v", id, resp)
	}
	if rec["username"] != "alice" {
		t.Errorf("username = %v", rec["username"])
	}
	if _, ok := rec["password"]; ok {
		t.Error("GET exposes password")
	}
	for _, col := range []string{"active", "created_at", "updated_at"} {
		if _, ok := rec[col]; !ok {
			t.Errorf("record missing %q", col)
		}
	}
}

func TestGetAdmin_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "alice", "alice@example.com")

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"not found", "/api/admin/99", http.StatusNotFound},
		{"not a number", "/api/admin/abc", http.StatusBadRequest},
		{"zero", "/api/admin/0", http.StatusBadRequest},
		{"negative", "/api/admin/-1", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "GET", tt.path, nil)
			assertStatus(t, rr, tt.wantStatus)
		})
	}
}

func TestUpdateAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "alice", "alice@example.com")
	env.seedAdmin(t, "bob", "bob@example.com")

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"rename", "/api/admin/1", `{"username":"alicia"}`, http.StatusOK},
		{"new email", "/api/admin/1", `{"emailid":"alicia@example.com"}`, http.StatusOK},
		{"nothing to change", "/api/admin/1", `{}`, http.StatusBadRequest},
		{"username taken", "/api/admin/1", `{"username":"bob"}`, http.StatusConflict},
		{"emailid taken", "/api/admin/1", `{"emailid":"bob@example.com"}`, http.StatusConflict},
		{"unknown admin", "/api/admin/42", `{"username":"ghost"}`, http.StatusNotFound},
		{"bad id", "/api/admin/x", `{"username":"ghost"}`, http.StatusBadRequest},
		{"invalid json", "/api/admin/1", `not json`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "PATCH", tt.path, strings.NewReader(tt.body))
			assertStatus(t, rr, tt.wantStatus)
		})
	}

	rec, err := env.identity.GetInfoByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetInfoByID: %v", err)
	}
	if u, _ := rec.String("username"); u != "alicia" {
		t.Errorf("username = %q, want alicia", u)
	}
	if e, _ := rec.String("emailid"); e != "alicia@example.com" {
		t.Errorf("emailid = %q, want alicia@example.com", e)
	}
}

func TestUpdateAdmin_Password(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "alice", "alice@example.com")

	rr := env.do(t, "PATCH", "/api/admin/1", toJSON(t, map[string]string{"password": "rotated"}))
	assertStatus(t, rr, http.StatusOK)

	ctx := context.Background()
	if ok, _ := env.identity.ValidatePassword(ctx, "alice", testPassword); ok {
		t.Error("old password still accepted")
	}
	if ok, err := env.identity.ValidatePassword(ctx, "alice", "rotated"); !ok || err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestDeleteAdmin(t *testing.T) {
	env := newTestEnv(t)
	self := env.seedAdmin(t, "alice", "alice@example.com")
	env.seedAdmin(t, "bob", "bob@example.com")
	env.principal = &service.Principal{AdminID: self, Username: "alice"}

	rr := env.do(t, "DELETE", "/api/admin/2", nil)
	assertStatus(t, rr, http.StatusOK)
	var resp map[string]interface{}
	decodeJSON(t, rr, &resp)
	if resp["success"] != true {
		t.Errorf("success = %v", resp["success"])
	}

	// Deleting an id that no longer exists still succeeds.
	rr = env.do(t, "DELETE", "/api/admin/2", nil)
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "DELETE", "/api/admin/1", nil)
	assertStatus(t, rr, http.StatusConflict)

	if _, err := env.identity.GetInfoByID(context.Background(), self); err != nil {
		t.Errorf("requesting admin was removed: %v", err)
	}
}
