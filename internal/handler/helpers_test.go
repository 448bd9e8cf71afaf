package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/console/internal/middleware"
	"github.com/kiwari-pos/console/internal/model"
	"github.com/kiwari-pos/console/internal/service"
	"github.com/shopspring/decimal"
)

// --- Mock backend ---

// mockBackend implements service.Backend. Nil functions return empty results.
type mockBackend struct {
	listTablesFn     func(ctx context.Context) ([]model.Table, error)
	listCategoriesFn func(ctx context.Context) ([]model.Category, error)
	listDishesFn     func(ctx context.Context) ([]model.MenuItem, error)
	getActiveOrderFn func(ctx context.Context, tableID string) (model.Order, error)
	placeOrderFn     func(ctx context.Context, tableID string, lines []model.CartLine) error

	mu     sync.Mutex
	placed [][]model.CartLine
}

func (m *mockBackend) ListTables(ctx context.Context) ([]model.Table, error) {
	if m.listTablesFn == nil {
		return nil, nil
	}
	return m.listTablesFn(ctx)
}

func (m *mockBackend) ListCategories(ctx context.Context) ([]model.Category, error) {
	if m.listCategoriesFn == nil {
		return nil, nil
	}
	return m.listCategoriesFn(ctx)
}

func (m *mockBackend) ListDishes(ctx context.Context) ([]model.MenuItem, error) {
	if m.listDishesFn == nil {
		return nil, nil
	}
	return m.listDishesFn(ctx)
}

func (m *mockBackend) GetActiveOrder(ctx context.Context, tableID string) (model.Order, error) {
	if m.getActiveOrderFn == nil {
		return model.Order{TableID: tableID, Items: []model.CartLine{}}, nil
	}
	return m.getActiveOrderFn(ctx, tableID)
}

func (m *mockBackend) PlaceOrder(ctx context.Context, tableID string, lines []model.CartLine) error {
	m.mu.Lock()
	m.placed = append(m.placed, lines)
	m.mu.Unlock()
	if m.placeOrderFn == nil {
		return nil
	}
	return m.placeOrderFn(ctx, tableID, lines)
}

func (m *mockBackend) placedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.placed)
}

// --- Fixtures ---

var (
	testTables = []model.Table{
		{ID: "t1", Label: "1"},
		{ID: "t2", Label: "2", Occupied: true},
	}
	testCategories = []model.Category{
		{ID: "c1", Name: "Mains"},
		{ID: "c2", Name: "Drinks"},
	}
	testDishes = []model.MenuItem{
		{ID: "d1", Name: "Fried Rice", Price: decimal.RequireFromString("12.5"), CategoryID: "c1"},
		{ID: "d2", Name: "Iced Tea", Price: decimal.NewFromInt(3), CategoryID: "c2"},
	}
)

func newFixtureBackend() *mockBackend {
	return &mockBackend{
		listTablesFn:     func(context.Context) ([]model.Table, error) { return testTables, nil },
		listCategoriesFn: func(context.Context) ([]model.Category, error) { return testCategories, nil },
		listDishesFn:     func(context.Context) ([]model.MenuItem, error) { return testDishes, nil },
	}
}

// newLoadedSession returns a session with reference data loaded and the
// first table's active order committed.
func newLoadedSession(t *testing.T, api service.Backend) *service.AdminSession {
	t.Helper()
	reg := service.NewRegistry(time.Hour, service.Options{}, nil)
	sess := reg.Create(api, "backend-token", model.Admin{ID: "a1", Email: "admin@example.com"})
	if err := sess.LoadReferenceData(context.Background()); err != nil {
		t.Fatalf("load reference data: %v", err)
	}
	sess.Wait()
	return sess
}

// withSession mounts routes under prefix with sess injected the way
// RequireSession does.
func withSession(sess *service.AdminSession, prefix string, routes func(chi.Router)) *chi.Mux {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithSession(r.Context(), sess)))
		})
	})
	r.Route(prefix, routes)
	return r
}

// --- Helpers ---

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeObject(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}
