package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/console/internal/backend"
	"github.com/kiwari-pos/console/internal/handler"
	"github.com/kiwari-pos/console/internal/model"
	"github.com/kiwari-pos/console/internal/service"
)

// --- Mock menu API ---

type mockMenuAPI struct {
	categories []model.Category
	dishes     []model.MenuItem

	createdDish       *backend.CreateDishRequest
	deletedCategories []string
}

func (m *mockMenuAPI) ListCategories(_ context.Context) ([]model.Category, error) {
	return m.categories, nil
}

func (m *mockMenuAPI) CreateCategory(_ context.Context, name string) (model.Category, error) {
	c := model.Category{ID: "c-" + name, Name: name}
	m.categories = append(m.categories, c)
	return c, nil
}

func (m *mockMenuAPI) DeleteCategory(_ context.Context, id string) error {
	m.deletedCategories = append(m.deletedCategories, id)
	return nil
}

func (m *mockMenuAPI) ListDishes(_ context.Context) ([]model.MenuItem, error) {
	return m.dishes, nil
}

func (m *mockMenuAPI) CreateDish(_ context.Context, req backend.CreateDishRequest) (model.MenuItem, error) {
	m.createdDish = &req
	d := model.MenuItem{ID: "d-new", Name: req.Name, Price: req.Price, CategoryID: req.CategoryID}
	m.dishes = append(m.dishes, d)
	return d, nil
}

func (m *mockMenuAPI) DeleteDish(_ context.Context, id string) error {
	return &backend.APIError{Status: http.StatusNotFound, Message: "Dish not found"}
}

// --- Helpers ---

func setupMenuRouter(sess *service.AdminSession, api *mockMenuAPI) *chi.Mux {
	h := handler.NewMenuHandler(func(string) handler.MenuAPI { return api })
	return withSession(sess, "/menu", h.RegisterRoutes)
}

// --- Category tests ---

func TestMenuCreateCategory(t *testing.T) {
	api := &mockMenuAPI{}
	router := setupMenuRouter(newLoadedSession(t, newFixtureBackend()), api)

	rr := doRequest(t, router, "POST", "/menu/categories", map[string]string{"name": " Desserts "})
	assertStatus(t, rr, http.StatusCreated)

	if resp := decodeObject(t, rr); resp["name"] != "Desserts" {
		t.Errorf("name: got %v, want Desserts", resp["name"])
	}
}

func TestMenuCreateCategory_NameRequired(t *testing.T) {
	router := setupMenuRouter(newLoadedSession(t, newFixtureBackend()), &mockMenuAPI{})

	rr := doRequest(t, router, "POST", "/menu/categories", map[string]string{"name": "  "})
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestMenuDeleteCategory_RejectsWhenDishesRemain(t *testing.T) {
	api := &mockMenuAPI{dishes: testDishes}
	router := setupMenuRouter(newLoadedSession(t, newFixtureBackend()), api)

	rr := doRequest(t, router, "DELETE", "/menu/categories/c1", nil)
	assertStatus(t, rr, http.StatusConflict)

	if len(api.deletedCategories) != 0 {
		t.Errorf("backend delete called: %v", api.deletedCategories)
	}
}

func TestMenuDeleteCategory_Empty(t *testing.T) {
	api := &mockMenuAPI{dishes: testDishes}
	router := setupMenuRouter(newLoadedSession(t, newFixtureBackend()), api)

	rr := doRequest(t, router, "DELETE", "/menu/categories/c9", nil)
	assertStatus(t, rr, http.StatusNoContent)

	if len(api.deletedCategories) != 1 || api.deletedCategories[0] != "c9" {
		t.Errorf("deleted: got %v, want [c9]", api.deletedCategories)
	}
}

// --- Dish tests ---

func TestMenuCreateDish(t *testing.T) {
	api := &mockMenuAPI{}
	router := setupMenuRouter(newLoadedSession(t, newFixtureBackend()), api)

	rr := doRequest(t, router, "POST", "/menu/dishes", map[string]interface{}{
		"name":        "Satay",
		"price":       "18.50",
		"category_id": "c1",
	})
	assertStatus(t, rr, http.StatusCreated)

	if api.createdDish == nil {
		t.Fatal("backend CreateDish not called")
	}
	if !api.createdDish.IsAvailable {
		t.Error("dishes should default to available")
	}
	if got := api.createdDish.Price.String(); got != "18.5" {
		t.Errorf("price: got %s, want 18.5", got)
	}
}

func TestMenuCreateDish_Validation(t *testing.T) {
	router := setupMenuRouter(newLoadedSession(t, newFixtureBackend()), &mockMenuAPI{})

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing name", map[string]interface{}{"price": "1", "category_id": "c1"}},
		{"missing category", map[string]interface{}{"name": "Satay", "price": "1"}},
		{"bad price", map[string]interface{}{"name": "Satay", "price": "abc", "category_id": "c1"}},
		{"negative price", map[string]interface{}{"name": "Satay", "price": "-2", "category_id": "c1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, router, "POST", "/menu/dishes", tt.body)
			assertStatus(t, rr, http.StatusBadRequest)
		})
	}
}

func TestMenuDeleteDish_NotFound(t *testing.T) {
	router := setupMenuRouter(newLoadedSession(t, newFixtureBackend()), &mockMenuAPI{})

	rr := doRequest(t, router, "DELETE", "/menu/dishes/ghost", nil)
	assertStatus(t, rr, http.StatusNotFound)

	if resp := decodeObject(t, rr); resp["error"] != "Dish not found" {
		t.Errorf("error: got %v", resp["error"])
	}
}
