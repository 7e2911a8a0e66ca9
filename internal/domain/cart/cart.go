// Package cart defines the cart snapshot consumed by the discount engine.
// The snapshot is supplied by the cart collaborator; the engine never
// recomputes line totals itself.
package cart

import "github.com/shopspring/decimal"

// Item is a single cart line as seen by the discount engine.
type Item struct {
	ProductID string
	LineID    string
	Category  string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Snapshot is an immutable view of a cart at evaluation time.
type Snapshot struct {
	Items []Item
	Total decimal.Decimal
}

// TotalQuantity returns the sum of quantities across all lines.
func (s Snapshot) TotalQuantity() int {
	total := 0
	for _, item := range s.Items {
		total += item.Quantity
	}
	return total
}

// LineTotal returns unit price * quantity for a single item.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
