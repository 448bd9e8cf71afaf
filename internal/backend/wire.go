package backend

import (
	"bytes"
	"encoding/json"

	"github.com/kiwari-pos/console/internal/model"
	"github.com/shopspring/decimal"
)

// refID decodes either a bare id string or a populated document such as
// {"_id": "...", "name": "..."} into the id.
type refID string

func (r *refID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*r = ""
		return nil
	}
	if b[0] == '{' {
		var doc struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(b, &doc); err != nil {
			return err
		}
		*r = refID(doc.ID)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r = refID(s)
	return nil
}

// label decodes a JSON string or number as text. Table numbers are stored
// either way depending on the backend version.
type label string

func (l *label) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*l = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = label(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*l = label(n.String())
	return nil
}

type apiTable struct {
	ID          string `json:"_id"`
	TableNumber label  `json:"tableNumber"`
	Occupied    bool   `json:"occupied"`
	QRValue     string `json:"qrValue"`
}

func (t apiTable) toModel() model.Table {
	return model.Table{
		ID:       t.ID,
		Label:    string(t.TableNumber),
		Occupied: t.Occupied,
		QRValue:  t.QRValue,
	}
}

type apiCategory struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type apiDish struct {
	ID          string          `json:"_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  refID           `json:"categoryId"`
	IsAvailable *bool           `json:"isAvailable"`
}

func (d apiDish) toModel() model.MenuItem {
	return model.MenuItem{
		ID:         d.ID,
		Name:       d.Name,
		Price:      d.Price,
		CategoryID: string(d.CategoryID),
	}
}

// available reports false only when the backend explicitly marked the dish
// unavailable.
func (d apiDish) available() bool {
	return d.IsAvailable == nil || *d.IsAvailable
}

type apiOrderItem struct {
	Dish *apiDish `json:"dish"`
	Qty  *int     `json:"qty"`
}

type apiActiveOrder struct {
	Items []apiOrderItem `json:"items"`
}

type placeOrderDish struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Price      json.Number `json:"price"`
	CategoryID string      `json:"categoryId"`
}

type placeOrderItem struct {
	Item placeOrderDish `json:"item"`
	Qty  int            `json:"qty"`
}

type placeOrderRequest struct {
	TableID string           `json:"tableId"`
	Items   []placeOrderItem `json:"items"`
}

func newPlaceOrderRequest(tableID string, lines []model.CartLine) placeOrderRequest {
	items := make([]placeOrderItem, len(lines))
	for i, l := range lines {
		items[i] = placeOrderItem{
			Item: placeOrderDish{
				ID:         l.Item.ID,
				Name:       l.Item.Name,
				Price:      json.Number(l.Item.Price.String()),
				CategoryID: l.Item.CategoryID,
			},
			Qty: l.Qty,
		}
	}
	return placeOrderRequest{TableID: tableID, Items: items}
}

type apiAdmin struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type authResponse struct {
	Token string   `json:"token"`
	Admin apiAdmin `json:"admin"`
}
