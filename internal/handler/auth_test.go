package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/console/internal/auth"
	"github.com/kiwari-pos/console/internal/backend"
	"github.com/kiwari-pos/console/internal/enum"
	"github.com/kiwari-pos/console/internal/handler"
	"github.com/kiwari-pos/console/internal/model"
	"github.com/kiwari-pos/console/internal/service"
)

const testSecret = "test-secret"

// --- Mocks ---

type mockAuthAPI struct {
	loginFn    func(ctx context.Context, email, password string) (string, model.Admin, error)
	registerFn func(ctx context.Context, req backend.RegisterAdminRequest) (string, model.Admin, error)
}

func (m *mockAuthAPI) Login(ctx context.Context, email, password string) (string, model.Admin, error) {
	return m.loginFn(ctx, email, password)
}

func (m *mockAuthAPI) Register(ctx context.Context, req backend.RegisterAdminRequest) (string, model.Admin, error) {
	return m.registerFn(ctx, req)
}

type mockCloser struct {
	dropped []uuid.UUID
}

func (m *mockCloser) DropSession(id uuid.UUID) {
	m.dropped = append(m.dropped, id)
}

// --- Helpers ---

func setupAuthRouter(api *mockAuthAPI, reg *service.Registry, sessAPI service.Backend) *chi.Mux {
	h := handler.NewAuthHandler(api, reg, func(string) service.Backend { return sessAPI }, nil, testSecret)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func goodLogin(_ context.Context, email, password string) (string, model.Admin, error) {
	if email == "admin@example.com" && password == "secret123" {
		return "backend-token", model.Admin{ID: "a1", Name: "Admin", Email: email}, nil
	}
	return "", model.Admin{}, &backend.APIError{Status: http.StatusUnauthorized, Message: "Invalid credentials"}
}

// --- Login tests ---

func TestLogin_Success(t *testing.T) {
	reg := service.NewRegistry(time.Hour, service.Options{}, nil)
	router := setupAuthRouter(&mockAuthAPI{loginFn: goodLogin}, reg, newFixtureBackend())

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    " admin@example.com ",
		"password": "secret123",
	})
	assertStatus(t, rr, http.StatusOK)

	resp := decodeObject(t, rr)
	token, _ := resp["token"].(string)
	claims, err := auth.ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Role != enum.AdminRoleOwner {
		t.Errorf("role: got %q, want %s", claims.Role, enum.AdminRoleOwner)
	}

	sess, ok := reg.Get(claims.SessionID)
	if !ok {
		t.Fatal("session not registered")
	}
	if sess.Token != "backend-token" {
		t.Errorf("backend token: got %q", sess.Token)
	}
	if len(sess.Tables()) != 2 {
		t.Errorf("reference data not loaded: got %d tables", len(sess.Tables()))
	}
	if _, ok := resp["warnings"]; ok {
		t.Errorf("unexpected warnings: %v", resp["warnings"])
	}
}

func TestLogin_ReferenceDataFailureIsWarning(t *testing.T) {
	reg := service.NewRegistry(time.Hour, service.Options{}, nil)
	sessAPI := newFixtureBackend()
	sessAPI.listTablesFn = func(context.Context) ([]model.Table, error) {
		return nil, errors.New("connection refused")
	}
	router := setupAuthRouter(&mockAuthAPI{loginFn: goodLogin}, reg, sessAPI)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"email":    "admin@example.com",
		"password": "secret123",
	})
	assertStatus(t, rr, http.StatusOK)

	if warnings, _ := decodeObject(t, rr)["warnings"].([]interface{}); len(warnings) != 1 {
		t.Errorf("warnings: got %v, want 1", warnings)
	}
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name string
		body map[string]string
		api  *mockAuthAPI
		want int
	}{
		{"missing password", map[string]string{"email": "admin@example.com"}, &mockAuthAPI{loginFn: goodLogin}, http.StatusBadRequest},
		{"bad credentials", map[string]string{"email": "admin@example.com", "password": "nope"}, &mockAuthAPI{loginFn: goodLogin}, http.StatusUnauthorized},
		{"backend down", map[string]string{"email": "admin@example.com", "password": "secret123"}, &mockAuthAPI{
			loginFn: func(context.Context, string, string) (string, model.Admin, error) {
				return "", model.Admin{}, errors.New("dial tcp: connection refused")
			},
		}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := service.NewRegistry(time.Hour, service.Options{}, nil)
			router := setupAuthRouter(tt.api, reg, newFixtureBackend())

			rr := doRequest(t, router, "POST", "/auth/login", tt.body)
			assertStatus(t, rr, tt.want)
			if reg.Len() != 0 {
				t.Errorf("sessions: got %d, want 0", reg.Len())
			}
		})
	}
}

// --- Register tests ---

func TestRegister(t *testing.T) {
	var got backend.RegisterAdminRequest
	api := &mockAuthAPI{registerFn: func(_ context.Context, req backend.RegisterAdminRequest) (string, model.Admin, error) {
		got = req
		return "backend-token", model.Admin{ID: "a2", Name: req.Name, Email: req.Email, Role: enum.AdminRoleStaff}, nil
	}}
	reg := service.NewRegistry(time.Hour, service.Options{}, nil)
	router := setupAuthRouter(api, reg, newFixtureBackend())

	rr := doRequest(t, router, "POST", "/auth/register", map[string]string{
		"name":            "Sari",
		"email":           "sari@example.com",
		"password":        "secret123",
		"restaurant_name": " Warung Sari ",
	})
	assertStatus(t, rr, http.StatusOK)

	if got.RestaurantName != "Warung Sari" {
		t.Errorf("restaurant name: got %q", got.RestaurantName)
	}
	admin, _ := decodeObject(t, rr)["admin"].(map[string]interface{})
	if admin["role"] != enum.AdminRoleStaff {
		t.Errorf("role: got %v, want backend role kept", admin["role"])
	}
	if reg.Len() != 1 {
		t.Errorf("sessions: got %d, want 1", reg.Len())
	}
}

func TestRegister_Validation(t *testing.T) {
	api := &mockAuthAPI{registerFn: func(context.Context, backend.RegisterAdminRequest) (string, model.Admin, error) {
		t.Fatal("backend should not be called")
		return "", model.Admin{}, nil
	}}
	router := setupAuthRouter(api, service.NewRegistry(time.Hour, service.Options{}, nil), newFixtureBackend())

	rr := doRequest(t, router, "POST", "/auth/register", map[string]string{"email": "x@example.com", "password": "secret123"})
	assertStatus(t, rr, http.StatusBadRequest)

	rr = doRequest(t, router, "POST", "/auth/register", map[string]string{"name": "X", "email": "x@example.com", "password": "123"})
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	api := &mockAuthAPI{registerFn: func(context.Context, backend.RegisterAdminRequest) (string, model.Admin, error) {
		return "", model.Admin{}, &backend.APIError{Status: http.StatusConflict, Message: "Email already registered"}
	}}
	router := setupAuthRouter(api, service.NewRegistry(time.Hour, service.Options{}, nil), newFixtureBackend())

	rr := doRequest(t, router, "POST", "/auth/register", map[string]string{
		"name": "X", "email": "x@example.com", "password": "secret123",
	})
	assertStatus(t, rr, http.StatusConflict)
}

// --- Logout tests ---

func TestLogout(t *testing.T) {
	reg := service.NewRegistry(time.Hour, service.Options{}, nil)
	sess := reg.Create(newFixtureBackend(), "backend-token", model.Admin{ID: "a1"})
	closer := &mockCloser{}
	h := handler.NewAuthHandler(&mockAuthAPI{}, reg, nil, closer, testSecret)

	router := withSession(sess, "/auth", func(r chi.Router) {
		r.Post("/logout", h.Logout)
	})

	rr := doRequest(t, router, "POST", "/auth/logout", nil)
	assertStatus(t, rr, http.StatusNoContent)

	if _, ok := reg.Get(sess.ID); ok {
		t.Error("session still registered after logout")
	}
	if len(closer.dropped) != 1 || closer.dropped[0] != sess.ID {
		t.Errorf("dropped: got %v, want [%s]", closer.dropped, sess.ID)
	}
}
