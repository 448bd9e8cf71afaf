package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/console/internal/middleware"
	"github.com/kiwari-pos/console/internal/model"
)

// TableAPI is the backend's table management. Satisfied by *backend.Client.
type TableAPI interface {
	ListTables(ctx context.Context) ([]model.Table, error)
	CreateTable(ctx context.Context, number string) (model.Table, error)
	UpdateTable(ctx context.Context, id, number string) (model.Table, error)
	DeleteTable(ctx context.Context, id string) error
}

// TableAPIFactory returns a TableAPI authenticated with the session's token.
type TableAPIFactory func(token string) TableAPI

// TableHandler manages restaurant tables and the QR payload printed on each.
type TableHandler struct {
	newAPI        TableAPIFactory
	publicMenuURL string
}

// NewTableHandler creates a new TableHandler. publicMenuURL is the customer
// menu site that table QR codes point to.
func NewTableHandler(newAPI TableAPIFactory, publicMenuURL string) *TableHandler {
	return &TableHandler{newAPI: newAPI, publicMenuURL: strings.TrimRight(publicMenuURL, "/")}
}

// RegisterRoutes registers table endpoints, mounted at /tables.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createTableRequest struct {
	TableNumber string `json:"table_number"`
}

type tableResponse struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Occupied bool   `json:"occupied"`
	QRValue  string `json:"qr_value"`
}

func (h *TableHandler) toTableResponse(t model.Table) tableResponse {
	qr := t.QRValue
	if qr == "" {
		qr = h.publicMenuURL + "/menu?tableId=" + url.QueryEscape(t.ID)
	}
	return tableResponse{ID: t.ID, Label: t.Label, Occupied: t.Occupied, QRValue: qr}
}

// --- Handlers ---

// List returns all tables with their QR payloads.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	tables, err := h.newAPI(sess.Token).ListTables(r.Context())
	if err != nil {
		writeServiceError(w, err, "Failed to fetch tables")
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = h.toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create adds a table. An empty table_number lets the backend pick one.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	table, err := h.newAPI(sess.Token).CreateTable(r.Context(), strings.TrimSpace(req.TableNumber))
	if err != nil {
		writeServiceError(w, err, "Failed to create table")
		return
	}

	// Keep the dashboard's table row in step; failures surface as notices.
	sess.RefreshTables(r.Context()) //nolint:errcheck

	writeJSON(w, http.StatusCreated, h.toTableResponse(table))
}

// Update renumbers a table.
func (h *TableHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	number := strings.TrimSpace(req.TableNumber)
	if number == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "table_number is required"})
		return
	}

	table, err := h.newAPI(sess.Token).UpdateTable(r.Context(), chi.URLParam(r, "id"), number)
	if err != nil {
		writeServiceError(w, err, "Failed to update table")
		return
	}

	sess.RefreshTables(r.Context()) //nolint:errcheck

	writeJSON(w, http.StatusOK, h.toTableResponse(table))
}

// Delete removes a table.
func (h *TableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())

	if err := h.newAPI(sess.Token).DeleteTable(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, "Failed to delete table")
		return
	}

	sess.RefreshTables(r.Context()) //nolint:errcheck

	w.WriteHeader(http.StatusNoContent)
}
