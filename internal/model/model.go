// Package model holds the restaurant entities shared by the backend client,
// the order session manager and the HTTP handlers.
package model

import "github.com/shopspring/decimal"

type Table struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Occupied bool   `json:"occupied"`
	// QRValue is the payload encoded in the table's QR code, when the
	// backend stores one.
	QRValue string `json:"qr_value,omitempty"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type MenuItem struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	CategoryID string          `json:"category_id"`
}

// CartLine is one dish and its pending quantity. Qty is always >= 1.
type CartLine struct {
	Item MenuItem `json:"item"`
	Qty  int      `json:"qty"`
}

// Subtotal returns Qty * Item.Price.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Item.Price.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// Order is a table's in-progress order as persisted by the backend.
type Order struct {
	TableID string     `json:"table_id"`
	Items   []CartLine `json:"items"`
}

// Admin is the profile returned by the backend on login or registration.
type Admin struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}
