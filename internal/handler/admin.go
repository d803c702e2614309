package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/faucetdb/memberapi/internal/model"
	"github.com/faucetdb/memberapi/internal/server/middleware"
	"github.com/faucetdb/memberapi/internal/service"
)

// AdminHandler serves the admin account API.
type AdminHandler struct {
	identity *service.IdentityService
	auth     *service.AuthService
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(identity *service.IdentityService, auth *service.AuthService, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		identity: identity,
		auth:     auth,
		logger:   logger,
	}
}

// Home returns the API version envelope.
// GET /api/
func (h *AdminHandler) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.CurrentAPI)
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// sessionResponse is the response payload for a successful login.
type sessionResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	AdminID   int64  `json:"admin_id"`
	Username  string `json:"username"`
}

// CreateSession exchanges the caller's credentials for a bearer token. The
// caller has already been authenticated by middleware.
// POST /api/session
func (h *AdminHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ac := middleware.GetAuthContext(r.Context())
	if ac == nil || ac.Principal == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	token, exp, err := h.auth.IssueToken(ac.Principal)
	if err != nil {
		h.logger.Error("issue session token failed", "admin_id", ac.Principal.AdminID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(time.Until(exp).Seconds()),
		AdminID:   ac.Principal.AdminID,
		Username:  ac.Principal.Username,
	})
}

// ---------------------------------------------------------------------------
// Admin management
// ---------------------------------------------------------------------------

// ListAdmins returns all admin accounts without their password hashes.
// GET /api/admin
func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	recs, err := h.identity.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list admins")
		return
	}

	body := model.CurrentAPI.Envelope()
	body["resource"] = recs
	body["meta"] = model.ResponseMeta{Count: len(recs)}
	writeJSON(w, http.StatusOK, body)
}

// adminRequest is the payload for creating or updating an admin.
type adminRequest struct {
	Username string `json:"username"`
	EmailID  string `json:"emailid"`
	Password string `json:"password"`
}

// CreateAdmin creates a new active admin account.
// POST /api/admin
func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("create admin request")

	var req adminRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Username == "" || req.EmailID == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username, emailid and password are required")
		return
	}

	id, rec, err := h.identity.Register(r.Context(), req.Username, req.EmailID, req.Password)
	if err != nil {
		status, msg := classifyStoreError(err, "Failed to create admin")
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusCreated, adminBody(id, rec))
}

// GetAdmin returns a single admin.
// GET /api/admin/{id}
func (h *AdminHandler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Debug("get admin request", "id", id)

	rec, err := h.identity.GetInfoByID(r.Context(), id)
	if err != nil {
		status, msg := classifyStoreError(err, "Failed to get admin")
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, adminBody(id, rec))
}

// UpdateAdmin changes any subset of username, emailid and password.
// PATCH /api/admin/{id}
func (h *AdminHandler) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Debug("update admin request", "id", id)

	var req adminRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.identity.ChangeDetails(r.Context(), id, req.Username, req.EmailID, req.Password); err != nil {
		status, msg := classifyStoreError(err, "Failed to update admin")
		writeError(w, status, msg)
		return
	}

	rec, err := h.identity.GetInfoByID(r.Context(), id)
	if err != nil {
		status, msg := classifyStoreError(err, "Failed to read updated admin")
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, adminBody(id, rec))
}

// DeleteAdmin removes an admin. Deleting an unknown id succeeds.
// DELETE /api/admin/{id}
func (h *AdminHandler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Debug("delete admin request", "id", id)

	if ac := middleware.GetAuthContext(r.Context()); ac != nil && ac.Principal != nil && ac.Principal.AdminID == id {
		writeError(w, http.StatusConflict, "Cannot delete the account making the request")
		return
	}

	if !h.identity.Remove(r.Context(), id) {
		writeError(w, http.StatusInternalServerError, "Failed to delete admin")
		return
	}

	body := model.CurrentAPI.Envelope()
	body["success"] = true
	body["message"] = "Admin deleted"
	writeJSON(w, http.StatusOK, body)
}
