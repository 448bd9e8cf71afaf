package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/console/internal/auth"
	"github.com/kiwari-pos/console/internal/backend"
	"github.com/kiwari-pos/console/internal/enum"
	"github.com/kiwari-pos/console/internal/middleware"
	"github.com/kiwari-pos/console/internal/model"
	"github.com/kiwari-pos/console/internal/service"
)

// AuthAPI is the backend's admin authentication. Satisfied by *backend.Client.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (string, model.Admin, error)
	Register(ctx context.Context, req backend.RegisterAdminRequest) (string, model.Admin, error)
}

// SessionStore creates and ends admin sessions. Satisfied by *service.Registry.
type SessionStore interface {
	Create(api service.Backend, token string, admin model.Admin) *service.AdminSession
	Delete(id uuid.UUID)
}

// SessionCloser disconnects a session's live browser connections.
// Satisfied by *ws.Hub.
type SessionCloser interface {
	DropSession(id uuid.UUID)
}

// BackendFactory returns a backend client authenticated with token.
type BackendFactory func(token string) service.Backend

// AuthHandler handles admin login, registration and logout.
type AuthHandler struct {
	api        AuthAPI
	sessions   SessionStore
	newBackend BackendFactory
	closer     SessionCloser
	jwtSecret  string
}

// NewAuthHandler creates a new AuthHandler. closer may be nil.
func NewAuthHandler(api AuthAPI, sessions SessionStore, newBackend BackendFactory, closer SessionCloser, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		api:        api,
		sessions:   sessions,
		newBackend: newBackend,
		closer:     closer,
		jwtSecret:  jwtSecret,
	}
}

// RegisterRoutes registers the public auth endpoints on the given Chi router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/register", h.Register)
}

// --- Request / Response types ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	RestaurantName string `json:"restaurant_name"`
	Phone          string `json:"phone"`
}

type tokenResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Admin     model.Admin `json:"admin"`
	Warnings  []string    `json:"warnings,omitempty"`
}

// --- Handlers ---

// Login authenticates against the backend and opens an admin session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	token, admin, err := h.api.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, err, "Login failed")
		return
	}

	h.openSession(w, r, token, admin)
}

// Register creates an admin account on the backend and opens a session for it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name, email and password are required"})
		return
	}
	if len(req.Password) < 6 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 6 characters"})
		return
	}

	token, admin, err := h.api.Register(r.Context(), backend.RegisterAdminRequest{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		RestaurantName: strings.TrimSpace(req.RestaurantName),
		Phone:          strings.TrimSpace(req.Phone),
	})
	if err != nil {
		writeAuthError(w, err, "Registration failed")
		return
	}

	h.openSession(w, r, token, admin)
}

// Logout ends the caller's session. Mounted behind RequireSession.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	h.sessions.Delete(sess.ID)
	if h.closer != nil {
		h.closer.DropSession(sess.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

// openSession registers the session, loads the dashboard reference data and
// replies with the console token. Reference data failures do not fail the
// login; they are returned as warnings.
func (h *AuthHandler) openSession(w http.ResponseWriter, r *http.Request, backendToken string, admin model.Admin) {
	if admin.Role == "" {
		admin.Role = enum.AdminRoleOwner
	}
	sess := h.sessions.Create(h.newBackend(backendToken), backendToken, admin)

	token, err := auth.GenerateToken(h.jwtSecret, sess.ID, admin.Email, admin.Role, time.Until(sess.ExpiresAt))
	if err != nil {
		log.Printf("ERROR: sign session token: %v", err)
		h.sessions.Delete(sess.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	var warnings []string
	if err := sess.LoadReferenceData(r.Context()); err != nil {
		warnings = append(warnings, service.UserMessage(err, "Failed to load dashboard data"))
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		Admin:     admin,
		Warnings:  warnings,
	})
}

// writeAuthError maps backend credential rejections to 401 and everything
// else to 502.
func writeAuthError(w http.ResponseWriter, err error, fallback string) {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		status := http.StatusUnauthorized
		if apiErr.Status == http.StatusConflict || apiErr.Status == http.StatusBadRequest {
			status = apiErr.Status
		}
		writeJSON(w, status, map[string]string{"error": service.UserMessage(err, fallback)})
		return
	}
	log.Printf("ERROR: %s: %v", fallback, err)
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": service.UserMessage(err, fallback)})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// writeServiceError maps session rule violations and backend failures onto
// HTTP statuses. The body always carries a message fit for the admin.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	msg := service.UserMessage(err, fallback)

	switch {
	case errors.Is(err, service.ErrNoActiveTable):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	case errors.Is(err, service.ErrEmptyCart):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": msg})
		return
	case errors.Is(err, service.ErrUnknownItem), errors.Is(err, service.ErrUnknownTable):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": msg})
		return
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		writeJSON(w, apiErr.Status, map[string]string{"error": msg})
		return
	}

	log.Printf("ERROR: %s: %v", fallback, err)
	writeJSON(w, http.StatusBadGateway, map[string]string{"error": msg})
}
