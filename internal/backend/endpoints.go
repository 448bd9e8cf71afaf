package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kiwari-pos/console/internal/model"
	"github.com/shopspring/decimal"
)

// --- Reference data ---

// ListTables fetches every table with its occupancy.
func (c *Client) ListTables(ctx context.Context) ([]model.Table, error) {
	var data []apiTable
	if err := c.getData(ctx, http.MethodGet, "/tables", nil, &data); err != nil {
		return nil, err
	}
	tables := make([]model.Table, len(data))
	for i, t := range data {
		tables[i] = t.toModel()
	}
	return tables, nil
}

// ListCategories fetches the menu categories.
func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	var data []apiCategory
	if err := c.getData(ctx, http.MethodGet, "/menu/category", nil, &data); err != nil {
		return nil, err
	}
	categories := make([]model.Category, len(data))
	for i, cat := range data {
		categories[i] = model.Category{ID: cat.ID, Name: cat.Name}
	}
	return categories, nil
}

// ListDishes fetches the dishes that are available for ordering. Dishes the
// backend marks isAvailable=false are dropped.
func (c *Client) ListDishes(ctx context.Context) ([]model.MenuItem, error) {
	var data []apiDish
	if err := c.getData(ctx, http.MethodGet, "/menu/dish", nil, &data); err != nil {
		return nil, err
	}
	dishes := make([]model.MenuItem, 0, len(data))
	for _, d := range data {
		if !d.available() {
			continue
		}
		dishes = append(dishes, d.toModel())
	}
	return dishes, nil
}

// --- Orders ---

// GetActiveOrder fetches the in-progress order for tableID. A table with no
// active order (null data or 404) yields an order with no items.
func (c *Client) GetActiveOrder(ctx context.Context, tableID string) (model.Order, error) {
	order := model.Order{TableID: tableID, Items: []model.CartLine{}}

	var data apiActiveOrder
	err := c.getData(ctx, http.MethodGet, "/orders/active/"+url.PathEscape(tableID), nil, &data)
	if errors.Is(err, ErrNotFound) {
		return order, nil
	}
	if err != nil {
		return model.Order{}, err
	}

	for _, it := range data.Items {
		if it.Dish == nil || it.Dish.ID == "" {
			continue
		}
		qty := 1
		if it.Qty != nil {
			qty = *it.Qty
		}
		if qty < 1 {
			continue
		}
		order.Items = append(order.Items, model.CartLine{Item: it.Dish.toModel(), Qty: qty})
	}
	return order, nil
}

// PlaceOrder submits the full cart for tableID.
func (c *Client) PlaceOrder(ctx context.Context, tableID string, lines []model.CartLine) error {
	return c.getData(ctx, http.MethodPost, "/orders/place", newPlaceOrderRequest(tableID, lines), nil)
}

// --- Admin authentication ---

// RegisterAdminRequest is the payload for creating an admin account.
type RegisterAdminRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	RestaurantName string `json:"restaurantName,omitempty"`
	Phone          string `json:"phone,omitempty"`
}

// Login exchanges admin credentials for a backend bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, model.Admin, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/admin/login", body)
}

// Register creates an admin account and returns its bearer token.
func (c *Client) Register(ctx context.Context, req RegisterAdminRequest) (string, model.Admin, error) {
	return c.authenticate(ctx, "/admin/register", req)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (string, model.Admin, error) {
	raw, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return "", model.Admin{}, err
	}

	// Older backends wrap the reply in the data envelope.
	var resp authResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", model.Admin{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if resp.Token == "" {
		var env struct {
			Data authResponse `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err == nil {
			resp = env.Data
		}
	}
	if resp.Token == "" {
		return "", model.Admin{}, fmt.Errorf("%s: response carried no token", path)
	}

	admin := model.Admin{
		ID:    resp.Admin.ID,
		Name:  resp.Admin.Name,
		Email: resp.Admin.Email,
		Role:  resp.Admin.Role,
	}
	return resp.Token, admin, nil
}

// --- Table management ---

// CreateTable adds a table. An empty number lets the backend assign the next one.
func (c *Client) CreateTable(ctx context.Context, number string) (model.Table, error) {
	body := map[string]string{}
	if number != "" {
		body["tableNumber"] = number
	}
	var data apiTable
	if err := c.getData(ctx, http.MethodPost, "/tables/create", body, &data); err != nil {
		return model.Table{}, err
	}
	return data.toModel(), nil
}

// UpdateTable renumbers a table.
func (c *Client) UpdateTable(ctx context.Context, id, number string) (model.Table, error) {
	var data apiTable
	err := c.getData(ctx, http.MethodPut, "/tables/update/"+url.PathEscape(id), map[string]string{"tableNumber": number}, &data)
	if err != nil {
		return model.Table{}, err
	}
	if data.ID == "" {
		data.ID = id
	}
	return data.toModel(), nil
}

// DeleteTable removes a table.
func (c *Client) DeleteTable(ctx context.Context, id string) error {
	return c.getData(ctx, http.MethodDelete, "/tables/delete/"+url.PathEscape(id), nil, nil)
}

// --- Menu management ---

// CreateCategory adds a menu category.
func (c *Client) CreateCategory(ctx context.Context, name string) (model.Category, error) {
	var data apiCategory
	if err := c.getData(ctx, http.MethodPost, "/menu/category", map[string]string{"name": name}, &data); err != nil {
		return model.Category{}, err
	}
	return model.Category{ID: data.ID, Name: data.Name}, nil
}

// DeleteCategory removes a menu category.
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.getData(ctx, http.MethodDelete, "/menu/category/"+url.PathEscape(id), nil, nil)
}

// CreateDishRequest is the payload for adding a dish.
type CreateDishRequest struct {
	Name        string
	Price       decimal.Decimal
	CategoryID  string
	IsAvailable bool
}

// CreateDish adds a dish to a category.
func (c *Client) CreateDish(ctx context.Context, req CreateDishRequest) (model.MenuItem, error) {
	body := struct {
		Name        string      `json:"name"`
		Price       json.Number `json:"price"`
		CategoryID  string      `json:"categoryId"`
		IsAvailable bool        `json:"isAvailable"`
	}{
		Name:        req.Name,
		Price:       json.Number(req.Price.String()),
		CategoryID:  req.CategoryID,
		IsAvailable: req.IsAvailable,
	}
	var data apiDish
	if err := c.getData(ctx, http.MethodPost, "/menu/dish", body, &data); err != nil {
		return model.MenuItem{}, err
	}
	return data.toModel(), nil
}

// DeleteDish removes a dish.
func (c *Client) DeleteDish(ctx context.Context, id string) error {
	return c.getData(ctx, http.MethodDelete, "/menu/dish/"+url.PathEscape(id), nil, nil)
}
