package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/console/internal/middleware"
	"github.com/kiwari-pos/console/internal/model"
	"github.com/kiwari-pos/console/internal/service"
	"github.com/shopspring/decimal"
)

// DashboardHandler exposes the point-of-sale dashboard of the caller's
// session: table selection, menu filtering, the per-table cart and order
// placement. Every route must sit behind RequireSession.
type DashboardHandler struct{}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{}
}

// RegisterRoutes registers dashboard endpoints, mounted at /dashboard.
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Post("/reload", h.Reload)
	r.Put("/table", h.SelectTable)
	r.Put("/category", h.SelectCategory)
	r.Put("/search", h.Search)
	r.Get("/menu", h.Menu)
	r.Get("/cart", h.Cart)
	r.Post("/cart/items", h.AddItem)
	r.Delete("/cart/items/{itemID}", h.DecrementItem)
	r.Post("/orders", h.PlaceOrder)
}

// --- Request / Response types ---

type selectTableRequest struct {
	TableID string `json:"table_id"`
}

type selectCategoryRequest struct {
	CategoryID string `json:"category_id"`
}

type searchRequest struct {
	Q string `json:"q"`
}

type addItemRequest struct {
	ItemID string `json:"item_id"`
}

type cartResponse struct {
	TableID string           `json:"table_id"`
	State   string           `json:"state"`
	Lines   []model.CartLine `json:"lines"`
	Total   decimal.Decimal  `json:"total"`
}

type reloadResponse struct {
	service.State
	Warnings []string `json:"warnings,omitempty"`
}

func cartOf(sess *service.AdminSession) cartResponse {
	tableID := sess.ActiveTableID()
	return cartResponse{
		TableID: tableID,
		State:   sess.CartState(tableID),
		Lines:   sess.Cart(tableID),
		Total:   sess.Total(tableID),
	}
}

// --- Handlers ---

// Get returns the whole dashboard state.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// Reload refetches tables, categories and dishes. Failed lists keep their
// previous contents and are reported as warnings.
func (h *DashboardHandler) Reload(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	var warnings []string
	if err := sess.LoadReferenceData(r.Context()); err != nil {
		warnings = append(warnings, service.UserMessage(err, "Failed to load dashboard data"))
	}
	writeJSON(w, http.StatusOK, reloadResponse{State: sess.Snapshot(), Warnings: warnings})
}

// SelectTable switches the active table. With ?wait=true the reply is sent
// after the table's active order has loaded.
func (h *DashboardHandler) SelectTable(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	var req selectTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	loaded, err := sess.SelectTable(r.Context(), req.TableID)
	if err != nil {
		writeServiceError(w, err, "Failed to select table")
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait && loaded != nil {
		select {
		case err := <-loaded:
			if err != nil {
				writeServiceError(w, err, "Failed to load active order")
				return
			}
		case <-r.Context().Done():
			return
		}
	}

	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// SelectCategory sets the menu category filter.
func (h *DashboardHandler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	var req selectCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sess.SelectCategory(req.CategoryID)
	writeJSON(w, http.StatusOK, sess.ActiveMenu())
}

// Search sets the menu text filter.
func (h *DashboardHandler) Search(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	sess.SetSearch(req.Q)
	writeJSON(w, http.StatusOK, sess.ActiveMenu())
}

// Menu returns the dishes visible under the current filters. Query params
// category and q override the session's selection for this call only.
func (h *DashboardHandler) Menu(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	q := r.URL.Query()
	if q.Has("category") || q.Has("q") {
		state := sess.Snapshot()
		category := state.ActiveCategoryID
		if q.Has("category") {
			category = q.Get("category")
		}
		search := state.Search
		if q.Has("q") {
			search = q.Get("q")
		}
		writeJSON(w, http.StatusOK, sess.VisibleMenu(category, search))
		return
	}
	writeJSON(w, http.StatusOK, sess.ActiveMenu())
}

// Cart returns the active table's cart and total.
func (h *DashboardHandler) Cart(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, cartOf(sess))
}

// AddItem adds one of a dish to the active table's cart.
func (h *DashboardHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ItemID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item_id is required"})
		return
	}

	if err := sess.AddItemByID(req.ItemID); err != nil {
		writeServiceError(w, err, "Failed to add item")
		return
	}
	writeJSON(w, http.StatusOK, cartOf(sess))
}

// DecrementItem removes one of a dish from the active table's cart.
func (h *DashboardHandler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	if err := sess.DecrementItem(chi.URLParam(r, "itemID")); err != nil {
		writeServiceError(w, err, "Failed to update cart")
		return
	}
	writeJSON(w, http.StatusOK, cartOf(sess))
}

// PlaceOrder submits the active table's cart to the backend.
func (h *DashboardHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	tableID := sess.ActiveTableID()
	if err := sess.PlaceOrder(r.Context(), tableID); err != nil {
		writeServiceError(w, err, "Failed to place order")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Order placed",
		"table":   tableID,
		"tables":  sess.Tables(),
		"cart":    cartOf(sess),
	})
}
