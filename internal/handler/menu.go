package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/console/internal/backend"
	"github.com/kiwari-pos/console/internal/middleware"
	"github.com/kiwari-pos/console/internal/model"
	"github.com/shopspring/decimal"
)

// MenuAPI is the backend's menu management. Satisfied by *backend.Client.
type MenuAPI interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, name string) (model.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	ListDishes(ctx context.Context) ([]model.MenuItem, error)
	CreateDish(ctx context.Context, req backend.CreateDishRequest) (model.MenuItem, error)
	DeleteDish(ctx context.Context, id string) error
}

// MenuAPIFactory returns a MenuAPI authenticated with the session's token.
type MenuAPIFactory func(token string) MenuAPI

// MenuHandler manages categories and dishes.
type MenuHandler struct {
	newAPI MenuAPIFactory
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(newAPI MenuAPIFactory) *MenuHandler {
	return &MenuHandler{newAPI: newAPI}
}

// RegisterRoutes registers menu endpoints, mounted at /menu.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/categories", h.ListCategories)
	r.Post("/categories", h.CreateCategory)
	r.Delete("/categories/{id}", h.DeleteCategory)
	r.Get("/dishes", h.ListDishes)
	r.Post("/dishes", h.CreateDish)
	r.Delete("/dishes/{id}", h.DeleteDish)
}

// --- Request types ---

type createCategoryRequest struct {
	Name string `json:"name"`
}

type createDishRequest struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	CategoryID  string `json:"category_id"`
	IsAvailable *bool  `json:"is_available"`
}

// --- Handlers ---

// ListCategories returns all categories.
func (h *MenuHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	categories, err := h.newAPI(sess.Token).ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to load categories")
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// CreateCategory adds a category.
func (h *MenuHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	category, err := h.newAPI(sess.Token).CreateCategory(r.Context(), name)
	if err != nil {
		writeServiceError(w, err, "Failed to create category")
		return
	}

	sess.RefreshCategories(r.Context()) //nolint:errcheck

	writeJSON(w, http.StatusCreated, category)
}

// DeleteCategory removes a category that has no dishes.
func (h *MenuHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	id := chi.URLParam(r, "id")
	api := h.newAPI(sess.Token)

	dishes, err := api.ListDishes(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to delete category")
		return
	}
	for _, d := range dishes {
		if d.CategoryID == id {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "category still has dishes"})
			return
		}
	}

	if err := api.DeleteCategory(r.Context(), id); err != nil {
		writeServiceError(w, err, "Failed to delete category")
		return
	}

	sess.RefreshCategories(r.Context()) //nolint:errcheck

	w.WriteHeader(http.StatusNoContent)
}

// ListDishes returns the orderable dishes.
func (h *MenuHandler) ListDishes(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	dishes, err := h.newAPI(sess.Token).ListDishes(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to load dishes")
		return
	}
	writeJSON(w, http.StatusOK, dishes)
}

// CreateDish adds a dish. Price must be a non-negative decimal.
func (h *MenuHandler) CreateDish(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	var req createDishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || req.CategoryID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and category_id are required"})
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be a non-negative number"})
		return
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	dish, err := h.newAPI(sess.Token).CreateDish(r.Context(), backend.CreateDishRequest{
		Name:        name,
		Price:       price,
		CategoryID:  req.CategoryID,
		IsAvailable: available,
	})
	if err != nil {
		writeServiceError(w, err, "Failed to create dish")
		return
	}

	sess.RefreshDishes(r.Context()) //nolint:errcheck

	writeJSON(w, http.StatusCreated, dish)
}

// DeleteDish removes a dish.
func (h *MenuHandler) DeleteDish(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	if err := h.newAPI(sess.Token).DeleteDish(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, "Failed to delete dish")
		return
	}

	sess.RefreshDishes(r.Context()) //nolint:errcheck

	w.WriteHeader(http.StatusNoContent)
}
