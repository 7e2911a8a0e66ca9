package promotion

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/cart"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func snapshotOf(items ...cart.Item) cart.Snapshot {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return cart.Snapshot{Items: items, Total: total}
}

func line(product, lineID, category string, qty int, unitPrice string) cart.Item {
	return cart.Item{
		ProductID: product,
		LineID:    lineID,
		Category:  category,
		Quantity:  qty,
		UnitPrice: dec(unitPrice),
	}
}

func TestEvaluatePercentage(t *testing.T) {
	p := &Promotion{
		Name: "Summer Sale",
		Type: TypePercentage,
		Rules: Rules{
			Percentage: &PercentageParams{Percentage: dec("10")},
		},
	}
	snap := snapshotOf(
		line("p1", "l1", "books", 2, "25.00"),
		line("p2", "l2", "toys", 1, "50.00"),
	)

	d := p.Evaluate(snap)

	assert.True(t, d.Amount.Equal(dec("10")), "want 10, got %s", d.Amount)
	assert.ElementsMatch(t, []string{"l1", "l2"}, d.AffectedLineIDs)
	assert.False(t, d.FreeShipping)
}

func TestEvaluatePercentage_ProductFilterLimitsBase(t *testing.T) {
	p := &Promotion{
		Name: "Book Sale",
		Type: TypePercentage,
		Conditions: Conditions{
			SpecificProducts: []string{"p1"},
		},
		Rules: Rules{
			Percentage: &PercentageParams{Percentage: dec("20")},
		},
	}
	snap := snapshotOf(
		line("p1", "l1", "books", 2, "25.00"),
		line("p2", "l2", "toys", 1, "50.00"),
	)

	d := p.Evaluate(snap)

	// 20% of the p1 subtotal only.
	assert.True(t, d.Amount.Equal(dec("10")), "got %s", d.Amount)
	assert.Equal(t, []string{"l1"}, d.AffectedLineIDs)
}

func TestEvaluateFixedAmount_CappedAtCartTotal(t *testing.T) {
	p := &Promotion{
		Name: "Five Off",
		Type: TypeFixedAmount,
		Rules: Rules{
			FixedAmount: &FixedAmountParams{DiscountAmount: dec("15")},
		},
	}
	snap := snapshotOf(line("p1", "l1", "", 1, "9.99"))

	d := p.Evaluate(snap)

	assert.True(t, d.Amount.Equal(dec("9.99")), "discount must not exceed cart total, got %s", d.Amount)
}

func TestEvaluateFreeShipping(t *testing.T) {
	p := &Promotion{Name: "Ship Free", Type: TypeFreeShipping}
	snap := snapshotOf(line("p1", "l1", "", 1, "10.00"))

	d := p.Evaluate(snap)

	assert.True(t, d.Amount.IsZero())
	assert.True(t, d.FreeShipping)
}

func TestEvaluateBuyXGetY(t *testing.T) {
	promo := func() *Promotion {
		return &Promotion{
			Name: "Buy 2 Get 1",
			Type: TypeBuyXGetY,
			Rules: Rules{
				BuyXGetY: &BuyXGetYParams{
					BuyQuantity:           2,
					GetQuantity:           1,
					GetDiscountPercentage: dec("100"),
				},
			},
		}
	}

	tests := []struct {
		name string
		qty  int
		want string
	}{
		{name: "one full set with remainder", qty: 5, want: "10"},
		{name: "two full sets", qty: 6, want: "20"},
		{name: "below one set", qty: 2, want: "0"},
		{name: "exactly one set", qty: 3, want: "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := snapshotOf(line("p1", "l1", "", tt.qty, "10.00"))
			d := promo().Evaluate(snap)
			assert.True(t, d.Amount.Equal(dec(tt.want)), "qty %d: want %s, got %s", tt.qty, tt.want, d.Amount)
		})
	}
}

func TestEvaluateBuyXGetY_HalfOffGetUnits(t *testing.T) {
	p := &Promotion{
		Name: "Buy 1 Get 1 Half",
		Type: TypeBuyXGetY,
		Rules: Rules{
			BuyXGetY: &BuyXGetYParams{
				BuyQuantity:           1,
				GetQuantity:           1,
				GetDiscountPercentage: dec("50"),
			},
		},
	}
	snap := snapshotOf(line("p1", "l1", "", 4, "20.00"))

	d := p.Evaluate(snap)

	// Two full sets, two discounted units at 50% of 20.00 each.
	assert.True(t, d.Amount.Equal(dec("20")), "got %s", d.Amount)
}

func TestEvaluateBuyXGetY_GroupsByProduct(t *testing.T) {
	p := &Promotion{
		Name: "Buy 2 Get 1",
		Type: TypeBuyXGetY,
		Rules: Rules{
			BuyXGetY: &BuyXGetYParams{
				BuyQuantity:           2,
				GetQuantity:           1,
				GetDiscountPercentage: dec("100"),
			},
		},
	}
	// Two units of p1 and one of p2 never form a set together.
	snap := snapshotOf(
		line("p1", "l1", "", 2, "10.00"),
		line("p2", "l2", "", 1, "10.00"),
	)

	d := p.Evaluate(snap)

	assert.True(t, d.Amount.IsZero(), "mixed products must not combine into sets, got %s", d.Amount)
}

func TestEvaluateQuantityTiered(t *testing.T) {
	promo := func() *Promotion {
		return &Promotion{
			Name: "Bulk Deal",
			Type: TypeQuantityTiered,
			Rules: Rules{
				QuantityTiers: []QuantityTier{
					{MinQuantity: 3, DiscountValue: dec("10"), IsPercentage: true},
					{MinQuantity: 5, DiscountValue: dec("20"), IsPercentage: true},
				},
			},
		}
	}

	tests := []struct {
		name string
		qty  int
		want string
	}{
		{name: "below lowest tier", qty: 2, want: "0"},
		{name: "between tiers picks lower tier of 10 percent", qty: 4, want: "4"},
		{name: "at upper tier of 20 percent", qty: 5, want: "10"},
		{name: "above upper tier", qty: 8, want: "16"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := snapshotOf(line("p1", "l1", "", tt.qty, "10.00"))
			d := promo().Evaluate(snap)
			assert.True(t, d.Amount.Equal(dec(tt.want)), "qty %d: want %s, got %s", tt.qty, tt.want, d.Amount)
		})
	}
}

func TestEvaluateQuantityTiered_FixedTierAppliesOnce(t *testing.T) {
	p := &Promotion{
		Name: "Flat Bulk",
		Type: TypeQuantityTiered,
		Rules: Rules{
			QuantityTiers: []QuantityTier{
				{MinQuantity: 5, DiscountValue: dec("7.50")},
			},
		},
	}
	snap := snapshotOf(line("p1", "l1", "", 9, "10.00"))

	d := p.Evaluate(snap)

	assert.True(t, d.Amount.Equal(dec("7.50")), "got %s", d.Amount)
}

func TestEvaluateCategory(t *testing.T) {
	p := &Promotion{
		Name: "Electronics Week",
		Type: TypeCategory,
		Rules: Rules{
			Category: &CategoryParams{
				Categories: []string{"electronics"},
				Percentage: dec("25"),
			},
		},
	}
	snap := snapshotOf(
		line("p1", "l1", "electronics", 1, "100.00"),
		line("p2", "l2", "books", 3, "10.00"),
	)

	d := p.Evaluate(snap)

	assert.True(t, d.Amount.Equal(dec("25")), "got %s", d.Amount)
	assert.Equal(t, []string{"l1"}, d.AffectedLineIDs)
}

func TestEvaluateMinimumPurchase(t *testing.T) {
	promo := &Promotion{
		Name: "Spend 50 Save 5",
		Type: TypeMinimumPurchase,
		Conditions: Conditions{
			MinimumPurchaseAmount: dec("50"),
		},
		Rules: Rules{
			MinimumPurchase: &MinimumPurchaseParams{DiscountAmount: dec("5")},
		},
	}

	t.Run("below threshold", func(t *testing.T) {
		d := promo.Evaluate(snapshotOf(line("p1", "l1", "", 1, "49.99")))
		assert.True(t, d.Amount.IsZero())
	})
	t.Run("at threshold", func(t *testing.T) {
		d := promo.Evaluate(snapshotOf(line("p1", "l1", "", 1, "50.00")))
		assert.True(t, d.Amount.Equal(dec("5")), "got %s", d.Amount)
	})
}

func TestEvaluateReservedTypeFailsSoft(t *testing.T) {
	p := &Promotion{Name: "Mystery Bundle", Type: TypeBundle}
	snap := snapshotOf(line("p1", "l1", "", 1, "10.00"))

	d := p.Evaluate(snap)

	assert.True(t, d.Amount.IsZero())
	assert.Contains(t, d.Description, "not supported")
	assert.False(t, d.FreeShipping)
}

func TestClampMaxCapsAmount(t *testing.T) {
	p := &Promotion{
		Name: "Half Off",
		Type: TypePercentage,
		Rules: Rules{
			Percentage:        &PercentageParams{Percentage: dec("50")},
			MaxDiscountAmount: dec("30"),
		},
	}
	snap := snapshotOf(line("p1", "l1", "", 1, "100.00"))

	d := p.Evaluate(snap)

	require.True(t, d.Amount.Equal(dec("30")), "got %s", d.Amount)
	assert.Contains(t, d.Description, "capped at 30.00")
}

func TestClampMinZeroesSmallDiscount(t *testing.T) {
	p := &Promotion{
		Name: "Tiny Cut",
		Type: TypePercentage,
		Rules: Rules{
			Percentage:        &PercentageParams{Percentage: dec("1")},
			MinDiscountAmount: dec("5"),
		},
	}
	snap := snapshotOf(line("p1", "l1", "", 1, "100.00"))

	d := p.Evaluate(snap)

	assert.True(t, d.Amount.IsZero(), "below-minimum discount must zero out, got %s", d.Amount)
	assert.Empty(t, d.AffectedLineIDs)
}

func TestEvaluateMissingPayloadYieldsZero(t *testing.T) {
	types := []Type{TypePercentage, TypeFixedAmount, TypeBuyXGetY, TypeQuantityTiered, TypeCategory, TypeMinimumPurchase}
	snap := snapshotOf(line("p1", "l1", "", 1, "10.00"))

	for _, typ := range types {
		t.Run(string(typ), func(t *testing.T) {
			p := &Promotion{Name: "Broken", Type: typ}
			d := p.Evaluate(snap)
			assert.True(t, d.Amount.IsZero())
			assert.NotEmpty(t, d.Description)
		})
	}
}
