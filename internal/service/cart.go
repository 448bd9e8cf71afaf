package service

import (
	"strings"

	"github.com/kiwari-pos/console/internal/model"
	"github.com/shopspring/decimal"
)

func indexOfLine(lines []model.CartLine, itemID string) int {
	for i, l := range lines {
		if l.Item.ID == itemID {
			return i
		}
	}
	return -1
}

// addLine increments the line for item or appends a new line with qty 1.
func addLine(lines []model.CartLine, item model.MenuItem) []model.CartLine {
	if i := indexOfLine(lines, item.ID); i >= 0 {
		lines[i].Qty++
		return lines
	}
	return append(lines, model.CartLine{Item: item, Qty: 1})
}

// decrementLine lowers itemID's qty by one, dropping the line when it would
// reach zero. changed is false when no line matched.
func decrementLine(lines []model.CartLine, itemID string) (updated []model.CartLine, changed bool) {
	i := indexOfLine(lines, itemID)
	if i < 0 {
		return lines, false
	}
	if lines[i].Qty-1 <= 0 {
		return append(lines[:i:i], lines[i+1:]...), true
	}
	lines[i].Qty--
	return lines, true
}

// subtractLines removes placed quantities from lines, dropping lines that
// reach zero. The result is a new slice and never nil.
func subtractLines(lines, placed []model.CartLine) []model.CartLine {
	out := make([]model.CartLine, 0, len(lines))
	for _, l := range lines {
		if i := indexOfLine(placed, l.Item.ID); i >= 0 {
			l.Qty -= placed[i].Qty
		}
		if l.Qty > 0 {
			out = append(out, l)
		}
	}
	return out
}

// cloneLines copies lines; the result is never nil.
func cloneLines(lines []model.CartLine) []model.CartLine {
	out := make([]model.CartLine, len(lines))
	copy(out, lines)
	return out
}

func total(lines []model.CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

// filterMenu keeps dishes of categoryID whose name contains search, ignoring
// case and surrounding whitespace. Source order is preserved.
func filterMenu(dishes []model.MenuItem, categoryID, search string) []model.MenuItem {
	q := strings.ToLower(strings.TrimSpace(search))
	out := []model.MenuItem{}
	for _, d := range dishes {
		if d.CategoryID != categoryID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(d.Name), q) {
			continue
		}
		out = append(out, d)
	}
	return out
}
