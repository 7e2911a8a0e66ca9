package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTotalQuantity(t *testing.T) {
	snap := Snapshot{Items: []Item{
		{ProductID: "p1", LineID: "l1", Quantity: 2},
		{ProductID: "p2", LineID: "l2", Quantity: 3},
	}}

	assert.Equal(t, 5, snap.TotalQuantity())
	assert.Equal(t, 0, Snapshot{}.TotalQuantity())
}

func TestLineTotal(t *testing.T) {
	item := Item{Quantity: 3, UnitPrice: decimal.RequireFromString("9.99")}

	assert.True(t, item.LineTotal().Equal(decimal.RequireFromString("29.97")),
		"got %s", item.LineTotal())
}
